package adminapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/pricing"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/estmator/estmator/internal/report"
	"github.com/estmator/estmator/internal/webserver"
)

type quotePayload struct {
	ClientID   int64                `json:"client_id,string" validate:"required"`
	Name       string               `json:"name" validate:"required,max=256"`
	TravelTime int64                `json:"travel_time" validate:"gte=0"`
	Location   domain.LocationFlags `json:"location"`
	Items      []quoting.DraftItem  `json:"items" validate:"dive"`
}

func (p *quotePayload) draft() quoting.Draft {
	return quoting.Draft{
		ClientID:   p.ClientID,
		Name:       p.Name,
		TravelTime: p.TravelTime,
		Location:   p.Location,
		Items:      p.Items,
	}
}

// estimatePayload is the live form state, it may lack a client or a name
type estimatePayload struct {
	TravelTime int64                `json:"travel_time" validate:"gte=0"`
	Location   domain.LocationFlags `json:"location"`
	Items      []quoting.DraftItem  `json:"items" validate:"dive"`
}

type quoteFormView struct {
	*quoting.QuoteForm
	DefaultTravelTime int64 `json:"default_travel_time"`
}

func registerQuoteRoutes() {
	webserver.ApiGET("/quotes/form", quoteForm)
	webserver.ApiPOST("/quotes/estimate", estimateQuote)
	webserver.ApiGET("/quotes/summary", quoteSummary)
	webserver.ApiGET("/quotes/export", exportQuotes)
	webserver.ApiGET("/quotes", listQuotes)
	webserver.ApiPOST("/quotes", createQuote)
	webserver.ApiGET("/quotes/:id", getQuote)
	webserver.ApiPUT("/quotes/:id", updateQuote)
	webserver.ApiDELETE("/quotes/:id", deleteQuote)
	webserver.ApiPOST("/quotes/:id/send", sendQuote)
	webserver.ApiGET("/quotes/:id/pdf", quotePDF)
}

// quoteError maps workflow errors to API responses
func quoteError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, quoting.ErrQuoteNotFound):
		return fail(c, http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found", nil)
	case errors.Is(err, quoting.ErrClientNotFound):
		return fail(c, http.StatusBadRequest, "CLIENT_NOT_FOUND", "Client does not exist", err.Error())
	case errors.Is(err, quoting.ErrProductNotFound):
		return fail(c, http.StatusBadRequest, "PRODUCT_NOT_FOUND", "Product does not exist", err.Error())
	case errors.Is(err, quoting.ErrRatesNotFound):
		return fail(c, http.StatusNotFound, "GLOBALS_NOT_FOUND", "No active global modifiers", nil)
	case errors.Is(err, quoting.ErrClientEmailMissing):
		return fail(c, http.StatusBadRequest, "CLIENT_EMAIL_MISSING", "Client has no email address", nil)
	case errors.Is(err, quoting.ErrNotifyFailed):
		return fail(c, http.StatusBadGateway, "MAIL_FAILED", "Failed to send quote", err.Error())
	case errors.Is(err, quoting.ErrInvalidDraft),
		errors.Is(err, pricing.ErrNegativeCount),
		errors.Is(err, pricing.ErrNegativeTravel),
		errors.Is(err, pricing.ErrUnknownFlag):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid quote", err.Error())
	}
	zap.L().Error("quote request failed", zap.Error(err), zap.String("namespace", "api"))
	return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Quote operation failed", err.Error())
}

func quoteForm(c echo.Context) error {
	var quoteID int64
	if raw := strings.TrimSpace(c.QueryParam("quote_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid quote ID", nil)
		}
		quoteID = id
	}
	form, err := GetAppContext(c).Quotes().Form(c.Request().Context(), quoteID)
	if err != nil {
		return quoteError(c, err)
	}
	return ok(c, quoteFormView{
		QuoteForm:         form,
		DefaultTravelTime: GetAppContext(c).GetSettingsInt64Value("quote", "DefaultTravelTime"),
	})
}

func estimateQuote(c echo.Context) error {
	var payload estimatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse quote parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	res, err := GetAppContext(c).Quotes().Estimate(c.Request().Context(), quoting.Draft{
		TravelTime: payload.TravelTime,
		Location:   payload.Location,
		Items:      payload.Items,
	})
	if err != nil {
		return quoteError(c, err)
	}
	return ok(c, res)
}

// parseDateParam accepts any layout dateparse understands. A bare date used
// as an upper bound covers the whole day.
func parseDateParam(c echo.Context, name string, upper bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	t, err := dateparse.ParseLocal(raw)
	if err != nil {
		return nil, err
	}
	if upper && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func parseQuoteFilter(c echo.Context) (quoting.ListFilter, error) {
	page, pageSize := parsePagination(c)
	f := quoting.ListFilter{
		Query:    c.QueryParam("q"),
		Page:     page,
		PageSize: pageSize,
		SortBy:   strings.TrimSpace(c.QueryParam("sort")),
		Order:    strings.TrimSpace(c.QueryParam("order")),
	}
	if raw := strings.TrimSpace(c.QueryParam("client_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, fmt.Errorf("client_id: %w", err)
		}
		f.ClientID = id
	}
	var err error
	if f.From, err = parseDateParam(c, "from", false); err != nil {
		return f, fmt.Errorf("from: %w", err)
	}
	if f.To, err = parseDateParam(c, "to", true); err != nil {
		return f, fmt.Errorf("to: %w", err)
	}
	return f, nil
}

func listQuotes(c echo.Context) error {
	f, err := parseQuoteFilter(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid quote filter", err.Error())
	}
	quotes, total, err := GetAppContext(c).Quotes().List(c.Request().Context(), f)
	if err != nil {
		return quoteError(c, err)
	}
	return paged(c, quotes, total, f.Page, f.PageSize)
}

func quoteSummary(c echo.Context) error {
	f, err := parseQuoteFilter(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid quote filter", err.Error())
	}
	sum, err := GetAppContext(c).Quotes().Summary(c.Request().Context(), f)
	if err != nil {
		return quoteError(c, err)
	}
	return ok(c, sum)
}

// exportQuotes writes every quote matching the filter to a workbook
func exportQuotes(c echo.Context) error {
	f, err := parseQuoteFilter(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid quote filter", err.Error())
	}
	f.Page, f.PageSize = 0, 0
	quotes, _, err := GetAppContext(c).Quotes().List(c.Request().Context(), f)
	if err != nil {
		return quoteError(c, err)
	}

	var clients []domain.Client
	if err := GetDB(c).Select("id", "name").Find(&clients).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query clients", err.Error())
	}
	names := make(map[int64]string, len(clients))
	for _, cl := range clients {
		names[cl.ID] = cl.Name
	}

	var buf bytes.Buffer
	if err := report.ExportQuotes(&buf, quotes, names); err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to export quotes", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="quotes.xlsx"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func createQuote(c echo.Context) error {
	var payload quotePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse quote parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	pq, err := GetAppContext(c).Quotes().Create(c.Request().Context(), currentActor(c), payload.draft())
	if err != nil {
		return quoteError(c, err)
	}
	return ok(c, pq)
}

func getQuote(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid quote ID", nil)
	}
	pq, err := GetAppContext(c).Quotes().Get(c.Request().Context(), id)
	if err != nil {
		return quoteError(c, err)
	}
	return ok(c, pq)
}

func updateQuote(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid quote ID", nil)
	}
	var payload quotePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse quote parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	pq, err := GetAppContext(c).Quotes().Update(c.Request().Context(), currentActor(c), id, payload.draft())
	if err != nil {
		return quoteError(c, err)
	}
	return ok(c, pq)
}

func deleteQuote(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid quote ID", nil)
	}
	if err := GetAppContext(c).Quotes().Delete(c.Request().Context(), currentActor(c), id); err != nil {
		return quoteError(c, err)
	}
	return ok(c, map[string]interface{}{"id": strconv.FormatInt(id, 10)})
}

func sendQuote(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid quote ID", nil)
	}
	if !GetAppContext(c).GetSettingsBoolValue("quote", "SendEnabled") {
		return fail(c, http.StatusForbidden, "SEND_DISABLED", "Sending quotes is disabled", nil)
	}
	pq, link, err := GetAppContext(c).Quotes().Send(c.Request().Context(), currentActor(c), id)
	if err != nil {
		return quoteError(c, err)
	}
	return ok(c, map[string]interface{}{
		"quote":   pq.Quote,
		"link":    link,
		"email":   pq.Client.Email,
		"sent_at": pq.Quote.SentAt,
	})
}

func writePDF(c echo.Context, pq *quoting.PricedQuote) error {
	data, err := report.QuotePDF(pq)
	if err != nil {
		zap.L().Error("render quote pdf failed", zap.Int64("quote_id", pq.Quote.ID), zap.Error(err), zap.String("namespace", "api"))
		return fail(c, http.StatusInternalServerError, "PDF_ERROR", "Failed to render quote", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`inline; filename="quote-%d.pdf"`, pq.Quote.ID))
	return c.Blob(http.StatusOK, "application/pdf", data)
}

func quotePDF(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid quote ID", nil)
	}
	pq, err := GetAppContext(c).Quotes().Get(c.Request().Context(), id)
	if err != nil {
		return quoteError(c, err)
	}
	return writePDF(c, pq)
}
