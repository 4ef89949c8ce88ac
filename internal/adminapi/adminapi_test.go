package adminapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estmator/estmator/config"
	"github.com/estmator/estmator/internal/app"
	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/mailer"
	"github.com/estmator/estmator/internal/pricing"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/estmator/estmator/internal/webserver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakeSender struct {
	mu       sync.Mutex
	messages []*mailer.Message
}

func (s *fakeSender) Send(_ context.Context, m *mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *fakeSender) sent() []*mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*mailer.Message(nil), s.messages...)
}

type testServer struct {
	t      *testing.T
	e      *echo.Echo
	app    *app.Application
	sender *fakeSender
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.DefaultAppConfig()
	cfg.System.Workdir = t.TempDir()
	cfg.Database.Type = "sqlite"
	cfg.Database.Name = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.Web.Secret = "test-secret"
	cfg.Web.BaseURL = "https://quotes.example.com"

	a := app.NewApplication(cfg)
	sender := &fakeSender{}
	a.OverrideMailSender(sender)
	a.Init(cfg)
	t.Cleanup(a.Release)

	webserver.Init(a)
	Init()

	ts := &testServer{t: t, e: webserver.Echo(), app: a, sender: sender}
	ts.token = ts.login("admin", "estmator")
	return ts
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) api(method, path string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	return ts.do(method, webserver.ApiPrefix+path, ts.token, body)
}

type envelope struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data"`
	Meta    *PageMeta           `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil {
		require.Equal(t, "SUCCESS", env.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (ts *testServer) login(username, password string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, webserver.ApiPrefix+"/auth/login", "",
		map[string]string{"username": username, "password": password})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	decode(ts.t, rec, &out)
	require.NotEmpty(ts.t, out.Token)
	return out.Token
}

func (ts *testServer) product(name string) domain.Product {
	ts.t.Helper()
	rec := ts.api(http.MethodGet, "/catalog/products?q="+strings.ReplaceAll(name, " ", "%20"), nil)
	require.Equal(ts.t, http.StatusOK, rec.Code)
	var products []domain.Product
	decode(ts.t, rec, &products)
	for _, p := range products {
		if p.Name == name {
			return p
		}
	}
	ts.t.Fatalf("product %q not seeded", name)
	return domain.Product{}
}

func (ts *testServer) client(name, email string) domain.Client {
	ts.t.Helper()
	rec := ts.api(http.MethodPost, "/crm/clients", map[string]string{"name": name, "email": email})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	var cl domain.Client
	decode(ts.t, rec, &cl)
	return cl
}

func itemsPayload(counts map[int64]int64) []map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(counts))
	for id, n := range counts {
		items = append(items, map[string]interface{}{"product_id": fmt.Sprint(id), "count": n})
	}
	return items
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, webserver.ApiPrefix+"/auth/login", "",
		map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec, nil).Code)

	rec = ts.do(http.MethodGet, webserver.ApiPrefix+"/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.api(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var opr domain.SysOpr
	decode(t, rec, &opr)
	assert.Equal(t, "admin", opr.Username)
	assert.Equal(t, domain.OprLevelSuper, opr.Level)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = ts.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.api(http.MethodPost, "/catalog/categories", map[string]string{"name": "Garage"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var garage domain.Category
	decode(t, rec, &garage)
	assert.Equal(t, "Garage", garage.Name)

	rec = ts.api(http.MethodPost, "/catalog/categories", map[string]string{"name": "Garage"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CATEGORY_EXISTS", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodPost, "/catalog/categories", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodGet, "/catalog/categories?q=gar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []domain.Category
	env := decode(t, rec, &found)
	assert.EqualValues(t, 1, env.Meta.Total)

	rec = ts.api(http.MethodPut, fmt.Sprintf("/catalog/categories/%d", garage.ID), map[string]string{"name": "Office"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.api(http.MethodPut, fmt.Sprintf("/catalog/categories/%d", garage.ID), map[string]string{"name": "Garage and shed"})
	require.Equal(t, http.StatusOK, rec.Code)

	// seeded category with products
	office := ts.product("Desk").CategoryID
	rec = ts.api(http.MethodDelete, fmt.Sprintf("/catalog/categories/%d", office), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CATEGORY_IN_USE", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodDelete, fmt.Sprintf("/catalog/categories/%d", garage.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.api(http.MethodGet, fmt.Sprintf("/catalog/categories/%d", garage.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CATEGORY_NOT_FOUND", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodGet, "/catalog/categories/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts(t *testing.T) {
	ts := newTestServer(t)
	desk := ts.product("Desk")

	payload := map[string]interface{}{
		"category_id":  fmt.Sprint(desk.CategoryID),
		"name":         "Credenza",
		"mins_piece":   25,
		"mult_dollies": 1,
	}
	rec := ts.api(http.MethodPost, "/catalog/products", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var credenza domain.Product
	decode(t, rec, &credenza)
	assert.EqualValues(t, 25, credenza.MinsPiece)

	payload["m_cart"] = -1
	rec = ts.api(http.MethodPost, "/catalog/products", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec, nil).Code)

	payload["m_cart"] = 0
	payload["category_id"] = "12345"
	rec = ts.api(http.MethodPost, "/catalog/products", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CATEGORY_NOT_FOUND", decode(t, rec, nil).Code)

	payload["category_id"] = fmt.Sprint(desk.CategoryID)
	payload["mins_piece"] = 30
	rec = ts.api(http.MethodPut, fmt.Sprintf("/catalog/products/%d", credenza.ID), payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &credenza)
	assert.EqualValues(t, 30, credenza.MinsPiece)

	rec = ts.api(http.MethodGet, "/catalog/products/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Body.String(), "category,name,mins_piece")
	assert.Contains(t, rec.Body.String(), "Office,Credenza,30")

	csv := "category,name,mins_piece,mult_dollies,m_cart,l_cart,p_cart,s_pack\n" +
		"Office,Credenza,35,1,0,0,0,0\n" +
		"Lab,Bench,45,2,0,0,1,0\n"
	req := httptest.NewRequest(http.MethodPost, webserver.ApiPrefix+"/catalog/products/import", strings.NewReader(csv))
	req.Header.Set(echo.HeaderContentType, "text/csv")
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+ts.token)
	rec = httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Categories int `json:"categories"`
		Created    int `json:"created"`
		Updated    int `json:"updated"`
	}
	decode(t, rec, &result)
	assert.Equal(t, 1, result.Categories)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.EqualValues(t, 35, ts.product("Credenza").MinsPiece)

	req = httptest.NewRequest(http.MethodPost, webserver.ApiPrefix+"/catalog/products/import",
		strings.NewReader("category,name,mins_piece\nOffice,,3\n"))
	req.Header.Set(echo.HeaderContentType, "text/csv")
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+ts.token)
	rec = httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.api(http.MethodDelete, fmt.Sprintf("/catalog/products/%d", credenza.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.api(http.MethodGet, fmt.Sprintf("/catalog/products/%d", credenza.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClients(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.api(http.MethodPost, "/crm/clients", map[string]string{"name": "Acme", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	acme := ts.client("Acme Corp", "ops@acme.example")
	rec = ts.api(http.MethodPut, fmt.Sprintf("/crm/clients/%d", acme.ID),
		map[string]string{"name": "Acme Corp", "email": "moves@acme.example", "city": "Pasadena"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &acme)
	assert.Equal(t, "moves@acme.example", acme.Email)

	rec = ts.api(http.MethodGet, "/crm/clients?q=ACME", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var clients []domain.Client
	env := decode(t, rec, &clients)
	assert.EqualValues(t, 1, env.Meta.Total)

	rec = ts.api(http.MethodDelete, fmt.Sprintf("/crm/clients/%d", acme.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.api(http.MethodGet, fmt.Sprintf("/crm/clients/%d", acme.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CLIENT_NOT_FOUND", decode(t, rec, nil).Code)
}

func TestQuoteLifecycle(t *testing.T) {
	ts := newTestServer(t)
	desk := ts.product("Desk")
	chair := ts.product("Office chair")
	cl := ts.client("Globex", "facilities@globex.example")

	draft := map[string]interface{}{
		"client_id":   fmt.Sprint(cl.ID),
		"name":        "HQ move",
		"travel_time": 45,
		"location":    map[string]bool{"org_stairs": true, "dest_street_load": true},
		"items":       itemsPayload(map[int64]int64{desk.ID: 4, chair.ID: 0}),
	}

	rec := ts.api(http.MethodPost, "/quotes/estimate", draft)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var estimate pricing.Result
	decode(t, rec, &estimate)

	rec = ts.api(http.MethodPost, "/quotes", draft)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created quoting.PricedQuote
	decode(t, rec, &created)
	assert.True(t, estimate.GrandTotal.Equal(created.Totals.GrandTotal))
	assert.True(t, created.Quote.GrandTotal.Equal(created.Totals.GrandTotal))
	require.Len(t, created.Categories, 1)
	assert.Len(t, created.Categories[0].Lines, 1, "zero-count lines are dropped")
	assert.EqualValues(t, 4*desk.MinsPiece, created.Totals.TotalMinutes)
	assert.Len(t, created.Totals.Adjustments, 2)
	assert.NotEmpty(t, created.Quote.Token)
	quoteID := created.Quote.ID

	rec = ts.api(http.MethodGet, fmt.Sprintf("/quotes/%d", quoteID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got quoting.PricedQuote
	decode(t, rec, &got)
	assert.True(t, created.Totals.GrandTotal.Equal(got.Totals.GrandTotal))

	rec = ts.do(http.MethodGet, webserver.ApiPrefix+"/public/quotes/"+created.Quote.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var public quoting.PricedQuote
	decode(t, rec, &public)
	assert.True(t, created.Totals.GrandTotal.Equal(public.Totals.GrandTotal))
	assert.Nil(t, public.Operator)

	rec = ts.do(http.MethodGet, webserver.ApiPrefix+"/public/quotes/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, webserver.ApiPrefix+"/public/quotes/"+created.Quote.Token+"/pdf", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = ts.api(http.MethodGet, fmt.Sprintf("/quotes/%d/pdf", quoteID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.api(http.MethodGet, fmt.Sprintf("/quotes/form?quote_id=%d", quoteID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var form struct {
		Categories []quoting.FormCategory `json:"categories"`
		Flags      []string               `json:"flags"`
		Default    int64                  `json:"default_travel_time"`
	}
	decode(t, rec, &form)
	assert.Len(t, form.Flags, 12)
	assert.EqualValues(t, 30, form.Default)
	var deskCount int64
	for _, fc := range form.Categories {
		for _, p := range fc.Products {
			if p.ID == desk.ID {
				deskCount = p.Count
			}
		}
	}
	assert.EqualValues(t, 4, deskCount)

	draft["items"] = itemsPayload(map[int64]int64{desk.ID: 2, chair.ID: 10})
	rec = ts.api(http.MethodPut, fmt.Sprintf("/quotes/%d", quoteID), draft)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated quoting.PricedQuote
	decode(t, rec, &updated)
	assert.EqualValues(t, 2*desk.MinsPiece+10*chair.MinsPiece, updated.Totals.TotalMinutes)
	assert.Equal(t, created.Quote.Token, updated.Quote.Token)

	rec = ts.api(http.MethodPost, fmt.Sprintf("/quotes/%d/send", quoteID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sent struct {
		Link  string `json:"link"`
		Email string `json:"email"`
	}
	decode(t, rec, &sent)
	assert.Equal(t, "https://quotes.example.com"+mailer.PublicQuotePath+created.Quote.Token, sent.Link)
	messages := ts.sender.sent()
	require.Len(t, messages, 1)
	assert.Equal(t, "facilities@globex.example", messages[0].To)
	assert.Equal(t, mailer.Subject, messages[0].Subject)
	assert.Contains(t, messages[0].Text, sent.Link)

	rec = ts.api(http.MethodGet, fmt.Sprintf("/quotes/%d", quoteID), nil)
	decode(t, rec, &got)
	assert.NotNil(t, got.Quote.SentAt)

	rec = ts.api(http.MethodGet, fmt.Sprintf("/quotes?client_id=%d&from=2000-01-01", cl.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var quotes []domain.Quote
	env := decode(t, rec, &quotes)
	assert.EqualValues(t, 1, env.Meta.Total)

	rec = ts.api(http.MethodGet, "/quotes?to=2000-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env = decode(t, rec, &quotes)
	assert.EqualValues(t, 0, env.Meta.Total)

	rec = ts.api(http.MethodGet, "/quotes?from=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.api(http.MethodGet, fmt.Sprintf("/crm/clients/%d/quotes", cl.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env = decode(t, rec, &quotes)
	assert.EqualValues(t, 1, env.Meta.Total)

	rec = ts.api(http.MethodGet, "/quotes/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "quotes.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = ts.api(http.MethodGet, "/quotes/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum quoting.Summary
	decode(t, rec, &sum)
	assert.Equal(t, 1, sum.Count)
	assert.InDelta(t, updated.Totals.GrandTotal.InexactFloat64(), sum.Total, 0.01)

	rec = ts.api(http.MethodDelete, fmt.Sprintf("/crm/clients/%d", cl.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CLIENT_IN_USE", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodDelete, fmt.Sprintf("/catalog/products/%d", desk.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PRODUCT_IN_USE", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodDelete, fmt.Sprintf("/quotes/%d", quoteID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.api(http.MethodGet, fmt.Sprintf("/quotes/%d", quoteID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "QUOTE_NOT_FOUND", decode(t, rec, nil).Code)
}

func TestQuoteRejectsBadDrafts(t *testing.T) {
	ts := newTestServer(t)
	desk := ts.product("Desk")
	cl := ts.client("Initech", "")

	draft := func(clientID, productID int64, count int64) map[string]interface{} {
		return map[string]interface{}{
			"client_id": fmt.Sprint(clientID),
			"name":      "Basement",
			"items":     []map[string]interface{}{{"product_id": fmt.Sprint(productID), "count": count}},
		}
	}

	rec := ts.api(http.MethodPost, "/quotes", draft(cl.ID, 999, 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodPost, "/quotes", draft(cl.ID, desk.ID, -2))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodPost, "/quotes", draft(999, desk.ID, 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CLIENT_NOT_FOUND", decode(t, rec, nil).Code)

	rec = ts.api(http.MethodPost, "/quotes/estimate", map[string]interface{}{"travel_time": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// no email on the client
	rec = ts.api(http.MethodPost, "/quotes", draft(cl.ID, desk.ID, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pq quoting.PricedQuote
	decode(t, rec, &pq)
	rec = ts.api(http.MethodPost, fmt.Sprintf("/quotes/%d/send", pq.Quote.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CLIENT_EMAIL_MISSING", decode(t, rec, nil).Code)
	assert.Empty(t, ts.sender.sent())
}

func TestGlobalsKeepQuoteRates(t *testing.T) {
	ts := newTestServer(t)
	desk := ts.product("Desk")
	cl := ts.client("Hooli", "move@hooli.example")

	rec := ts.api(http.MethodGet, "/pricing/globals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var before domain.GlobalVars
	decode(t, rec, &before)
	assert.Equal(t, app.DefaultGlobalVars().HourlyRate, before.HourlyRate)

	rec = ts.api(http.MethodPost, "/quotes", map[string]interface{}{
		"client_id": fmt.Sprint(cl.ID),
		"name":      "Campus",
		"items":     itemsPayload(map[int64]int64{desk.ID: 3}),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pq quoting.PricedQuote
	decode(t, rec, &pq)

	next := map[string]interface{}{
		"street_load": 0.05, "midrise_elev_std": 0.1, "midrise_elv_frt": 0.05,
		"highrise": 0.15, "stairs": 0.2, "lng_psh": 0.1,
		"hourly_rate": before.HourlyRate * 2, "travel_rate": 60, "overtime_factor": 1.5,
	}
	rec = ts.api(http.MethodPut, "/pricing/globals", next)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.api(http.MethodGet, "/pricing/globals", nil)
	var after domain.GlobalVars
	decode(t, rec, &after)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Equal(t, before.HourlyRate*2, after.HourlyRate)

	var active int64
	ts.app.DB().Model(&domain.GlobalVars{}).Where("active = ?", true).Count(&active)
	assert.EqualValues(t, 1, active)

	rec = ts.api(http.MethodGet, fmt.Sprintf("/quotes/%d", pq.Quote.ID), nil)
	var reread quoting.PricedQuote
	decode(t, rec, &reread)
	assert.True(t, pq.Totals.GrandTotal.Equal(reread.Totals.GrandTotal))

	next["overtime_factor"] = 0.5
	rec = ts.api(http.MethodPut, "/pricing/globals", next)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystem(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.api(http.MethodGet, "/system/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status SystemStatus
	decode(t, rec, &status)
	assert.Equal(t, "sqlite", status.DatabaseType)
	require.NotNil(t, status.Host)
	assert.Positive(t, status.Host.NumRoutines)
	counts := make(map[string]int64)
	for _, tbl := range status.Tables {
		counts[tbl.Name] = tbl.RowCount
	}
	assert.EqualValues(t, 1, counts["sys_opr"])
	assert.EqualValues(t, 2, counts["est_category"])

	rec = ts.api(http.MethodPut, "/system/settings", map[string]interface{}{"quote.SendEnabled": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var settings map[string]map[string]string
	decode(t, rec, &settings)
	assert.Equal(t, "false", settings["quote"]["SendEnabled"])

	rec = ts.api(http.MethodPut, "/system/settings", map[string]interface{}{"SendEnabled": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.api(http.MethodPost, "/quotes/1/send", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "SEND_DISABLED", decode(t, rec, nil).Code)

	// operators below super may read but not change settings
	opr := domain.SysOpr{ID: 77, Username: "clerk", Level: domain.OprLevelOpr}
	clerk, _, err := webserver.IssueToken("test-secret", &opr, time.Hour)
	require.NoError(t, err)
	rec = ts.do(http.MethodPut, webserver.ApiPrefix+"/system/settings", clerk, map[string]interface{}{"quote.SendEnabled": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(http.MethodGet, webserver.ApiPrefix+"/system/settings", clerk, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.app.Bus().WaitAsync()
	rec = ts.api(http.MethodGet, "/system/oprlogs?action=login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []domain.SysOprLog
	env := decode(t, rec, &logs)
	assert.GreaterOrEqual(t, env.Meta.Total, int64(1))
	assert.Equal(t, "admin", logs[0].OprName)
}
