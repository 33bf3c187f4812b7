package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/context"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestCheckBearer(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		masterKey     string
		wantErr       bool
	}{
		{"match", "Bearer k1", "k1", false},
		{"mismatch", "Bearer k2", "k1", true},
		{"missing prefix", "k1", "k1", true},
		{"lowercase scheme", "bearer k1", "k1", true},
		{"empty token", "Bearer ", "k1", true},
		{"empty header", "", "k1", true},
		{"unset master key", "Bearer ", "", true},
		{"unset master key with token", "Bearer anything", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBearer(tt.authorization, tt.masterKey)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrForbidden)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context())
	return e
}

func TestMasterKey(t *testing.T) {
	e := newEcho()
	called := false
	e.GET("/admin", func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusNoContent)
	}, MasterKey(testLogger(), "k1"))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer wrong")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer k1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, called)
}

func TestError_HidesUnknownErrors(t *testing.T) {
	e := newEcho()
	e.GET("/boom", func(echo.Context) error {
		return errors.New("pq: password authentication failed")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.NotEmpty(t, body.RequestID)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestError_HTTPError(t *testing.T) {
	e := newEcho()
	e.GET("/missing", func(echo.Context) error {
		return httperror.NewHTTPError(http.StatusNotFound, "no sync run found")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no sync run found")
}

func TestError_EchoNotFound(t *testing.T) {
	e := newEcho()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nothing-here", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContext_SetsRequestValues(t *testing.T) {
	e := newEcho()
	var requestID, shop string
	e.POST("/webhook", func(c echo.Context) error {
		requestID = context.GetRequestID(c.Request().Context())
		shop = context.GetShopDomain(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	req.Header.Set(HeaderShopDomain, "demo.myshopify.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, "demo.myshopify.com", shop)
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
}
