package webserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestIssueAndParseToken(t *testing.T) {
	opr := &domain.SysOpr{ID: 42, Username: "admin", Level: domain.OprLevelSuper}
	token, expire, err := IssueToken(testSecret, opr, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expire, time.Minute)

	parsed, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	claims := parsed.Claims.(*Claims)
	assert.EqualValues(t, 42, claims.OprID())
	assert.Equal(t, "admin", claims.Username)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)

	expired, _, err := IssueToken(testSecret, opr, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, expired)
	assert.Error(t, err)
}

func newAuthEcho() *echo.Echo {
	e := echo.New()
	g := e.Group("/api", JWTMiddleware(testSecret))
	g.GET("/me", func(c echo.Context) error {
		claims, ok := CurrentClaims(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, claims.Username)
	})
	g.GET("/super", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, RequireSuper)
	return e
}

func doGet(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	e := newAuthEcho()

	rec := doGet(e, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")

	rec = doGet(e, "/api/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	opr, _, err := IssueToken(testSecret, &domain.SysOpr{ID: 1, Username: "sam", Level: domain.OprLevelOpr}, time.Hour)
	require.NoError(t, err)
	rec = doGet(e, "/api/me", opr)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sam", rec.Body.String())

	rec = doGet(e, "/api/super", opr)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	super, _, err := IssueToken(testSecret, &domain.SysOpr{ID: 2, Username: "admin", Level: domain.OprLevelSuper}, time.Hour)
	require.NoError(t, err)
	rec = doGet(e, "/api/super", super)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type idPayload struct {
	ID    int64  `json:"id,string" validate:"required"`
	Name  string `json:"name" validate:"required,max=5"`
	Count int64  `json:"count" validate:"gte=0"`
}

func TestCodec(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = &JSONSerializer{}
	e.Validator = NewValidator()
	e.POST("/echo", func(c echo.Context) error {
		var p idPayload
		if err := c.Bind(&p); err != nil {
			return err
		}
		if err := c.Validate(&p); err != nil {
			return c.String(http.StatusBadRequest, "invalid")
		}
		return c.JSON(http.StatusOK, p)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"id":"1234567890123456789","name":"desk","count":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"1234567890123456789","name":"desk","count":2}`, rec.Body.String())

	rec = post(`{"id":"1","name":"too long name","count":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(`{"id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
