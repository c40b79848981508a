package ratelimit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCtx(e *echo.Echo, body, ip string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestByEmailOrIP(t *testing.T) {
	e := echo.New()

	c, _ := newCtx(e, `{"email":" Alice@Example.com ","password":"x"}`, "10.0.0.1")
	assert.Equal(t, "email:alice@example.com", ByEmailOrIP(c))
	rest, err := io.ReadAll(c.Request().Body)
	require.NoError(t, err)
	assert.Contains(t, string(rest), `"password":"x"`, "body must be restored")

	c, _ = newCtx(e, `{"password":"x"}`, "10.0.0.2")
	assert.Equal(t, "ip:10.0.0.2", ByEmailOrIP(c))

	c, _ = newCtx(e, `not json`, "10.0.0.3")
	assert.Equal(t, "ip:10.0.0.3", ByEmailOrIP(c))
}

func TestMiddleware_BlocksOverLimit(t *testing.T) {
	e := echo.New()
	rule := Rule{Name: "test", Limit: 2, Window: time.Minute, Key: ByIP}
	h := Middleware(NewMemory(), rule)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		c, rec := newCtx(e, `{}`, "10.0.0.9")
		require.NoError(t, h(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	c, rec := newCtx(e, `{}`, "10.0.0.9")
	err := h(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusTooManyRequests, he.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	c, rec = newCtx(e, `{}`, "10.0.0.10")
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{}, errors.New("backend down")
}

func TestMiddleware_FailsOpen(t *testing.T) {
	e := echo.New()
	h := Middleware(brokenLimiter{}, Login)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	c, rec := newCtx(e, `{"email":"a@example.com"}`, "10.0.0.1")
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
