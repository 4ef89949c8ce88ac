// Package webserver hosts the echo instance the admin API registers on.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/estmator/estmator/internal/app"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"
)

const (
	ApiPrefix     = "/api/v1"
	AppContextKey = "estmator.app"
)

type WebServer struct {
	root   *echo.Echo
	api    *echo.Group
	public *echo.Group
	appCtx app.AppContext
}

var server *WebServer

// Init builds the echo instance and its route groups. Routes registered
// through the Api* helpers require a bearer token; Public* routes do not.
func Init(appCtx app.AppContext) {
	cfg := appCtx.Config()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &JSONSerializer{}
	e.Validator = NewValidator()
	e.HTTPErrorHandler = httpErrorHandler
	if cfg.System.Debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.INFO)
	}

	e.Use(middleware.Recover())
	e.Use(ZapLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})

	e.GET("/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	server = &WebServer{
		root:   e,
		public: e.Group(ApiPrefix),
		api:    e.Group(ApiPrefix, JWTMiddleware(cfg.Web.Secret)),
		appCtx: appCtx,
	}
}

// Echo returns the underlying echo instance
func Echo() *echo.Echo {
	return server.root
}

// Start listens on the configured address until Shutdown
func Start() error {
	cfg := server.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.S().Infof("Start web server %s", addr)
	err := server.root.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func Shutdown(ctx context.Context) error {
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return server.root.Shutdown(ctx)
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

func PublicGET(path string, h echo.HandlerFunc) {
	server.public.GET(path, h)
}

func PublicPOST(path string, h echo.HandlerFunc) {
	server.public.POST(path, h)
}

// ZapLogger logs each request through the global zap logger
func ZapLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogUserAgent: false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("namespace", "http"),
			}
			if v.Error != nil {
				zap.L().Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zap.L().Debug("request", fields...)
			return nil
		},
	})
}

// httpErrorHandler renders echo errors in the API envelope
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	errCode := "SERVER_ERROR"
	switch code {
	case http.StatusNotFound:
		errCode = "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		errCode = "METHOD_NOT_ALLOWED"
	case http.StatusUnauthorized:
		errCode = "UNAUTHORIZED"
	case http.StatusBadRequest:
		errCode = "INVALID_REQUEST"
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]interface{}{
		"code":    errCode,
		"message": msg,
	})
}
