package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/estmator/estmator/internal/app"
	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/webserver"
	"github.com/estmator/estmator/pkg/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loginPayload struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

func registerAuthRoutes() {
	webserver.PublicPOST("/auth/login", loginHandler)
	webserver.ApiGET("/auth/me", currentUserHandler)
}

func loginHandler(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse login parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	var opr domain.SysOpr
	err := GetDB(c).Where("username = ?", strings.TrimSpace(payload.Username)).First(&opr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !common.CheckPassword(opr.Password, payload.Password)) {
		zap.L().Warn("login failed",
			zap.String("username", payload.Username),
			zap.String("remote_ip", c.RealIP()),
			zap.String("namespace", "auth"))
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}
	if opr.Status != common.ENABLED {
		return fail(c, http.StatusForbidden, "ACCOUNT_DISABLED", "Operator account is disabled", nil)
	}

	cfg := GetAppContext(c).Config()
	ttl := time.Duration(cfg.Web.TokenTTL) * time.Hour
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	token, expire, err := webserver.IssueToken(cfg.Web.Secret, &opr, ttl)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err.Error())
	}

	now := time.Now()
	GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).Update("last_login", now)
	opr.LastLogin = now

	GetAppContext(c).Bus().Publish(app.TopicOprAction, app.OprAction{
		OprName: opr.Username,
		OprIp:   c.RealIP(),
		Action:  "login",
		Desc:    "operator login",
	})

	return ok(c, map[string]interface{}{
		"token":  token,
		"expire": expire,
		"user":   opr,
	})
}

func currentUserHandler(c echo.Context) error {
	claims, found := webserver.CurrentClaims(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token", nil)
	}
	var opr domain.SysOpr
	if err := GetDB(c).Where("id = ?", claims.OprID()).First(&opr).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}
	return ok(c, opr)
}
