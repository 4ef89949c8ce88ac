package adminapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/report"
	"github.com/estmator/estmator/internal/webserver"
	"github.com/estmator/estmator/pkg/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxImportSize = 4 << 20

type productPayload struct {
	CategoryID  int64  `json:"category_id,string" validate:"required"`
	Name        string `json:"name" validate:"required,min=1,max=200"`
	MinsPiece   int64  `json:"mins_piece" validate:"gte=0"`
	MultDollies int64  `json:"mult_dollies" validate:"gte=0"`
	MCart       int64  `json:"m_cart" validate:"gte=0"`
	LCart       int64  `json:"l_cart" validate:"gte=0"`
	PCart       int64  `json:"p_cart" validate:"gte=0"`
	SPack       int64  `json:"s_pack" validate:"gte=0"`
}

func (p *productPayload) apply(prod *domain.Product) {
	prod.CategoryID = p.CategoryID
	prod.Name = strings.TrimSpace(p.Name)
	prod.MinsPiece = p.MinsPiece
	prod.MultDollies = p.MultDollies
	prod.MCart = p.MCart
	prod.LCart = p.LCart
	prod.PCart = p.PCart
	prod.SPack = p.SPack
}

// registerProductRoutes registers catalog product endpoints
func registerProductRoutes() {
	webserver.ApiGET("/catalog/products", listProducts)
	webserver.ApiGET("/catalog/products/export", exportProducts)
	webserver.ApiPOST("/catalog/products/import", importProducts)
	webserver.ApiGET("/catalog/products/:id", getProduct)
	webserver.ApiPOST("/catalog/products", createProduct)
	webserver.ApiPUT("/catalog/products/:id", updateProduct)
	webserver.ApiDELETE("/catalog/products/:id", deleteProduct)
}

// whitelist allowed sort columns to avoid SQL injection
var productSortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"mins_piece": "mins_piece",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)

	sortCol, found := productSortColumns[strings.TrimSpace(c.QueryParam("sort"))]
	if !found {
		sortCol = "name"
	}
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	db := GetDB(c).Model(&domain.Product{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		if strings.EqualFold(db.Name(), "postgres") { //nolint:staticcheck
			db = db.Where("name ILIKE ?", "%"+q+"%")
		} else {
			db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
		}
	}
	if cid := strings.TrimSpace(c.QueryParam("category_id")); cid != "" {
		db = db.Where("category_id = ?", cid)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	var products []domain.Product
	err := db.Preload("Category").
		Order(sortCol + " " + order).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&products).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	return paged(c, products, total, page, pageSize)
}

func findProduct(c echo.Context) (*domain.Product, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var prod domain.Product
	if err := GetDB(c).Preload("Category").Where("id = ?", id).First(&prod).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return &prod, nil
}

func getProduct(c echo.Context) error {
	prod, err := findProduct(c)
	if prod == nil {
		return err
	}
	return ok(c, prod)
}

func categoryExists(c echo.Context, id int64) bool {
	var count int64
	GetDB(c).Model(&domain.Category{}).Where("id = ?", id).Count(&count)
	return count > 0
}

func createProduct(c echo.Context) error {
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	if !categoryExists(c, payload.CategoryID) {
		return fail(c, http.StatusBadRequest, "CATEGORY_NOT_FOUND", "Category does not exist", nil)
	}

	prod := domain.Product{ID: common.UUIDint64(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	payload.apply(&prod)
	if err := GetDB(c).Create(&prod).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create product", err.Error())
	}

	audit(c, "product.created", "product "+prod.Name)
	return ok(c, prod)
}

func updateProduct(c echo.Context) error {
	prod, err := findProduct(c)
	if prod == nil {
		return err
	}

	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	if payload.CategoryID != prod.CategoryID && !categoryExists(c, payload.CategoryID) {
		return fail(c, http.StatusBadRequest, "CATEGORY_NOT_FOUND", "Category does not exist", nil)
	}

	payload.apply(prod)
	prod.Category = nil
	prod.UpdatedAt = time.Now()
	if err := GetDB(c).Save(prod).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update product", err.Error())
	}
	return ok(c, prod)
}

func deleteProduct(c echo.Context) error {
	prod, err := findProduct(c)
	if prod == nil {
		return err
	}

	// Quote items keep pricing their product, so referenced products stay
	var itemCount int64
	GetDB(c).Model(&domain.QuoteItem{}).Where("product_id = ?", prod.ID).Count(&itemCount)
	if itemCount > 0 {
		return fail(c, http.StatusConflict, "PRODUCT_IN_USE", "Product is used by quotes and cannot be deleted",
			map[string]interface{}{"item_count": itemCount})
	}

	if err := GetDB(c).Where("id = ?", prod.ID).Delete(&domain.Product{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", err.Error())
	}

	audit(c, "product.deleted", "product "+prod.Name)
	return ok(c, map[string]interface{}{"id": prod.ID})
}

func exportProducts(c echo.Context) error {
	var products []domain.Product
	if err := GetDB(c).Preload("Category").Order("category_id, name").Find(&products).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	var buf bytes.Buffer
	if err := report.ExportProducts(&buf, products); err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to export products", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="products.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// importSource returns the uploaded "file" form field, or the raw body
func importSource(c echo.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, err
		}
		return fh.Open()
	}
	return c.Request().Body, nil
}

func importProducts(c echo.Context) error {
	src, err := importSource(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Missing catalog file", err.Error())
	}
	defer src.Close()

	rows, err := report.ParseProducts(io.LimitReader(src, maxImportSize))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_CSV", "Unable to parse catalog CSV", err.Error())
	}

	result, err := report.ImportProducts(c.Request().Context(), GetDB(c), rows)
	if err != nil {
		zap.L().Error("catalog import failed", zap.Error(err), zap.String("namespace", "api"))
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to import catalog", err.Error())
	}

	audit(c, "product.imported", "catalog import")
	return ok(c, result)
}
