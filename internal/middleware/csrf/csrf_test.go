package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	cfg := DefaultConfig()
	cfg.Secure = false
	err := Middleware(cfg)(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })(c)
	return rec, err
}

func TestCSRF_SkipsRequestsWithoutSessionCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	rec, err := serve(t, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-CSRF-Token"))
}

func TestCSRF_CookieRequests(t *testing.T) {
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "http://example.com/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "rt"})
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "tok"})
		req.Header.Set("Origin", "http://example.com")
		return req
	}

	t.Run("matching token", func(t *testing.T) {
		req := newReq()
		req.Header.Set("X-CSRF-Token", "tok")
		rec, err := serve(t, req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := serve(t, newReq())
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusForbidden, he.Code)
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := newReq()
		req.Header.Set("X-CSRF-Token", "tok")
		req.Header.Set("Origin", "http://evil.test")
		_, err := serve(t, req)
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusForbidden, he.Code)
	})
}
