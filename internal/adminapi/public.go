package adminapi

import (
	"github.com/labstack/echo/v4"

	"github.com/estmator/estmator/internal/webserver"
)

// registerPublicRoutes exposes the review view a client opens from the mailed link
func registerPublicRoutes() {
	webserver.PublicGET("/public/quotes/:token", publicQuote)
	webserver.PublicGET("/public/quotes/:token/pdf", publicQuotePDF)
}

func publicQuote(c echo.Context) error {
	pq, err := GetAppContext(c).Quotes().GetByToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return quoteError(c, err)
	}
	pq.Operator = nil
	return ok(c, pq)
}

func publicQuotePDF(c echo.Context) error {
	pq, err := GetAppContext(c).Quotes().GetByToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return quoteError(c, err)
	}
	return writePDF(c, pq)
}
