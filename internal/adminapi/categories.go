package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/webserver"
	"github.com/estmator/estmator/pkg/common"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type categoryPayload struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// registerCategoryRoutes registers category CRUD routes
func registerCategoryRoutes() {
	webserver.ApiGET("/catalog/categories", listCategories)
	webserver.ApiGET("/catalog/categories/:id", getCategory)
	webserver.ApiPOST("/catalog/categories", createCategory)
	webserver.ApiPUT("/catalog/categories/:id", updateCategory)
	webserver.ApiDELETE("/catalog/categories/:id", deleteCategory)
}

func listCategories(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.Category{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		if strings.EqualFold(db.Name(), "postgres") { //nolint:staticcheck
			db = db.Where("name ILIKE ?", "%"+q+"%")
		} else {
			db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
		}
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query categories", err.Error())
	}

	var categories []domain.Category
	if err := db.Order("name ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&categories).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query categories", err.Error())
	}

	return paged(c, categories, total, page, pageSize)
}

func findCategory(c echo.Context) (*domain.Category, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid category ID", nil)
	}
	var cat domain.Category
	if err := GetDB(c).Where("id = ?", id).First(&cat).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(c, http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query category", err.Error())
	}
	return &cat, nil
}

func getCategory(c echo.Context) error {
	cat, err := findCategory(c)
	if cat == nil {
		return err
	}
	return ok(c, cat)
}

func createCategory(c echo.Context) error {
	var payload categoryPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse category parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	name := strings.TrimSpace(payload.Name)

	var exists int64
	GetDB(c).Model(&domain.Category{}).Where("name = ?", name).Count(&exists)
	if exists > 0 {
		return fail(c, http.StatusConflict, "CATEGORY_EXISTS", "Category name already exists", nil)
	}

	cat := domain.Category{
		ID:        common.UUIDint64(),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := GetDB(c).Create(&cat).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create category", err.Error())
	}

	audit(c, "category.created", "category "+cat.Name)
	return ok(c, cat)
}

func updateCategory(c echo.Context) error {
	cat, err := findCategory(c)
	if cat == nil {
		return err
	}

	var payload categoryPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse category parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	name := strings.TrimSpace(payload.Name)
	if name != cat.Name {
		var exists int64
		GetDB(c).Model(&domain.Category{}).Where("name = ? AND id != ?", name, cat.ID).Count(&exists)
		if exists > 0 {
			return fail(c, http.StatusConflict, "CATEGORY_EXISTS", "Category name already exists", nil)
		}
		cat.Name = name
	}
	cat.UpdatedAt = time.Now()

	if err := GetDB(c).Save(cat).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update category", err.Error())
	}
	return ok(c, cat)
}

func deleteCategory(c echo.Context) error {
	cat, err := findCategory(c)
	if cat == nil {
		return err
	}

	// Prevent deletion while products reference this category
	var productCount int64
	GetDB(c).Model(&domain.Product{}).Where("category_id = ?", cat.ID).Count(&productCount)
	if productCount > 0 {
		return fail(c, http.StatusConflict, "CATEGORY_IN_USE", "Category has products and cannot be deleted",
			map[string]interface{}{"product_count": productCount})
	}

	if err := GetDB(c).Where("id = ?", cat.ID).Delete(&domain.Category{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete category", err.Error())
	}

	audit(c, "category.deleted", "category "+cat.Name)
	return ok(c, map[string]interface{}{"id": cat.ID})
}
