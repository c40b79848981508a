package ratelimit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

type KeyFunc func(c echo.Context) string

type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Key    KeyFunc
}

var (
	Global         = Rule{Name: "global", Limit: 100, Window: time.Minute, Key: ByIP}
	Register       = Rule{Name: "register", Limit: 5, Window: time.Minute, Key: ByIP}
	Login          = Rule{Name: "login", Limit: 5, Window: time.Minute, Key: ByEmailOrIP}
	Refresh        = Rule{Name: "refresh", Limit: 3, Window: 5 * time.Minute, Key: ByIP}
	VerifyEmail    = Rule{Name: "verify_email", Limit: 5, Window: time.Minute, Key: ByIP}
	ForgotPassword = Rule{Name: "forgot_password", Limit: 3, Window: time.Hour, Key: ByEmailOrIP}
	ResetPassword  = Rule{Name: "reset_password", Limit: 5, Window: time.Minute, Key: ByIP}
)

func ByIP(c echo.Context) string { return "ip:" + c.RealIP() }

const maxPeekBytes = 64 << 10

// ByEmailOrIP keys on the email in a JSON body and falls back to the client IP.
// The body is restored so the handler can bind it again.
func ByEmailOrIP(c echo.Context) string {
	req := c.Request()
	if req.Body == nil {
		return ByIP(c)
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxPeekBytes))
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ByIP(c)
	}

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ByIP(c)
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return ByIP(c)
	}
	return "email:" + email
}

// Middleware rejects requests over the rule's budget with 429. A limiter
// backend failure lets the request through and is logged.
func Middleware(l Limiter, rule Rule) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := rule.Name + ":" + rule.Key(c)

			d, err := l.Allow(ctx, key, rule.Limit, rule.Window)
			if err != nil {
				logging.FromContext(ctx).Warn("ratelimit_unavailable", "rule", rule.Name, "error", err)
				return next(c)
			}

			now := time.Now()
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter(now).Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				metrics.RateLimited.WithLabelValues(rule.Name).Inc()
				logging.FromContext(ctx).Warn("rate_limit_exceeded", "rule", rule.Name, "ip", c.RealIP(), "path", c.Path())
				return echo.NewHTTPError(http.StatusTooManyRequests,
					fmt.Sprintf("too many attempts, retry in %d seconds", secs))
			}
			return next(c)
		}
	}
}
