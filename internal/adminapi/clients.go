package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/estmator/estmator/internal/webserver"
	"github.com/estmator/estmator/pkg/common"
)

func registerClientRoutes() {
	webserver.ApiGET("/crm/clients", listClients)
	webserver.ApiGET("/crm/clients/:id", getClient)
	webserver.ApiGET("/crm/clients/:id/quotes", listClientQuotes)
	webserver.ApiPOST("/crm/clients", createClient)
	webserver.ApiPUT("/crm/clients/:id", updateClient)
	webserver.ApiDELETE("/crm/clients/:id", deleteClient)
}

func listClients(c echo.Context) error {
	page, pageSize := parsePagination(c)

	base := GetDB(c).Model(&domain.Client{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		if strings.EqualFold(base.Name(), "postgres") { //nolint:staticcheck
			base = base.Where("name ILIKE ? OR company ILIKE ? OR email ILIKE ?", "%"+q+"%", "%"+q+"%", "%"+q+"%")
		} else {
			like := "%" + strings.ToLower(q) + "%"
			base = base.Where("LOWER(name) LIKE ? OR LOWER(company) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query clients", err.Error())
	}

	var clients []domain.Client
	if err := base.Order("name ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&clients).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query clients", err.Error())
	}
	return paged(c, clients, total, page, pageSize)
}

func findClient(c echo.Context) (*domain.Client, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid client ID", nil)
	}
	var cl domain.Client
	if err := GetDB(c).Where("id = ?", id).First(&cl).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(c, http.StatusNotFound, "CLIENT_NOT_FOUND", "Client not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query client", err.Error())
	}
	return &cl, nil
}

func getClient(c echo.Context) error {
	cl, err := findClient(c)
	if cl == nil {
		return err
	}
	return ok(c, cl)
}

func listClientQuotes(c echo.Context) error {
	cl, err := findClient(c)
	if cl == nil {
		return err
	}
	page, pageSize := parsePagination(c)
	quotes, total, err := GetAppContext(c).Quotes().List(c.Request().Context(), quoting.ListFilter{
		ClientID: cl.ID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query quotes", err.Error())
	}
	return paged(c, quotes, total, page, pageSize)
}

type clientPayload struct {
	Name    string `json:"name" validate:"required,max=200"`
	Company string `json:"company" validate:"max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=64"`
	Address string `json:"address" validate:"max=500"`
	City    string `json:"city" validate:"max=100"`
	Remark  string `json:"remark" validate:"max=1000"`
}

func (p *clientPayload) apply(cl *domain.Client) {
	cl.Name = strings.TrimSpace(p.Name)
	cl.Company = strings.TrimSpace(p.Company)
	cl.Email = strings.TrimSpace(p.Email)
	cl.Phone = strings.TrimSpace(p.Phone)
	cl.Address = p.Address
	cl.City = p.City
	cl.Remark = p.Remark
}

func createClient(c echo.Context) error {
	var payload clientPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse client parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	cl := domain.Client{ID: common.UUIDint64(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	payload.apply(&cl)
	if err := GetDB(c).Create(&cl).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create client", err.Error())
	}

	audit(c, "client.created", "client "+cl.Name)
	return ok(c, cl)
}

func updateClient(c echo.Context) error {
	cl, err := findClient(c)
	if cl == nil {
		return err
	}

	var payload clientPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse client parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	payload.apply(cl)
	cl.UpdatedAt = time.Now()
	if err := GetDB(c).Save(cl).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update client", err.Error())
	}
	return ok(c, cl)
}

func deleteClient(c echo.Context) error {
	cl, err := findClient(c)
	if cl == nil {
		return err
	}

	var quoteCount int64
	GetDB(c).Model(&domain.Quote{}).Where("client_id = ?", cl.ID).Count(&quoteCount)
	if quoteCount > 0 {
		return fail(c, http.StatusConflict, "CLIENT_IN_USE", "Client has quotes and cannot be deleted",
			map[string]interface{}{"quote_count": quoteCount})
	}

	if err := GetDB(c).Where("id = ?", cl.ID).Delete(&domain.Client{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete client", err.Error())
	}

	audit(c, "client.deleted", "client "+cl.Name)
	return ok(c, map[string]interface{}{"id": cl.ID})
}
