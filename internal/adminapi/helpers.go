package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/estmator/estmator/internal/app"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/estmator/estmator/internal/webserver"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// Response is the API envelope
type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
	Meta    *PageMeta   `json:"meta,omitempty"`
}

type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Code: "SUCCESS", Data: data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, Response{
		Code: "SUCCESS",
		Data: data,
		Meta: &PageMeta{Total: total, Page: page, PageSize: pageSize},
	})
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, Response{Code: code, Message: message, Detail: detail})
}

// parsePagination reads page and pageSize (or perPage) query params
func parsePagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	sizeStr := c.QueryParam("pageSize")
	if sizeStr == "" {
		sizeStr = c.QueryParam("perPage")
	}
	pageSize, _ := strconv.Atoi(sizeStr)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
}

// GetAppContext returns the application injected by the web server
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.AppContextKey).(app.AppContext)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB()
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldError{Field: fe.Namespace(), Rule: fe.Tag(), Param: fe.Param()})
		}
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", details)
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", err.Error())
}

// currentActor describes the authenticated operator for audit events
func currentActor(c echo.Context) quoting.Actor {
	actor := quoting.Actor{IP: c.RealIP()}
	if claims, ok := webserver.CurrentClaims(c); ok {
		actor.ID = claims.OprID()
		actor.Name = claims.Username
	}
	return actor
}

// audit records an operator action outside the quote workflow
func audit(c echo.Context, action, desc string) {
	actor := currentActor(c)
	GetAppContext(c).Bus().Publish(app.TopicOprAction, app.OprAction{
		OprName: actor.Name,
		OprIp:   actor.IP,
		Action:  action,
		Desc:    desc,
	})
}
