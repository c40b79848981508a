package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/auth_service/internal/handlers"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	authmw "github.com/Skotchmaster/auth_service/internal/middleware/auth"
	"github.com/Skotchmaster/auth_service/internal/middleware/csrf"
	"github.com/Skotchmaster/auth_service/internal/ratelimit"
	"github.com/Skotchmaster/auth_service/internal/validation"
	loggingmw "github.com/Skotchmaster/auth_service/pkg/middleware/logging"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

// Check is one readiness probe, e.g. a database or cache ping.
type Check func(ctx context.Context) error

type Deps struct {
	AuthHandler *handlers.AuthHandler
	UserHandler *handlers.UserHandler
	AccessCodec *tokens.Codec
	Limiter     ratelimit.Limiter
	Ready       map[string]Check

	// CSRF is applied to /auth routes when set.
	CSRF *csrf.Config
}

// New builds the echo instance with the shared middleware chain and routes.
func New(log *slog.Logger, d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = ErrorHandler(log)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.BodyLimit("64K"),
		metrics.HTTPMiddleware(),
		loggingmw.RequestLogger(log),
	)

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"status": "ok"}) })
	e.GET("/health/ready", ready(d.Ready))
	e.GET("/metrics", metrics.Handler())

	limit := func(r ratelimit.Rule) echo.MiddlewareFunc { return ratelimit.Middleware(d.Limiter, r) }
	requireLogin := authmw.RequireLogin(d.AccessCodec)

	authMW := []echo.MiddlewareFunc{limit(ratelimit.Global)}
	if d.CSRF != nil {
		authMW = append(authMW, csrf.Middleware(*d.CSRF))
	}
	a := e.Group("/auth", authMW...)
	ah := d.AuthHandler

	a.POST("/register", ah.Register, limit(ratelimit.Register))
	a.POST("/login", ah.Login, limit(ratelimit.Login))
	a.POST("/refresh", ah.Refresh, limit(ratelimit.Refresh))
	a.POST("/logout", ah.Logout)
	a.POST("/logout-all", ah.LogoutAll, requireLogin)
	a.GET("/me", ah.Me, requireLogin)
	a.POST("/verify-email/:token", ah.VerifyEmail, limit(ratelimit.VerifyEmail))
	a.POST("/resend-verification", ah.ResendVerification, requireLogin)
	a.POST("/forgot-password", ah.ForgotPassword, limit(ratelimit.ForgotPassword))
	a.POST("/reset-password", ah.ResetPassword, limit(ratelimit.ResetPassword))

	u := e.Group("/users", limit(ratelimit.Global), requireLogin)
	uh := d.UserHandler

	u.GET("/profile", uh.GetProfile)
	u.PATCH("/profile", uh.UpdateProfile)
	u.PATCH("/password", uh.ChangePassword)
	u.GET("/sessions", uh.Sessions)
	u.GET("/activity", uh.ActivityLog)
}

func ready(checks map[string]Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "up"
		}
		return c.JSON(code, echo.Map{"status": http.StatusText(code), "checks": status})
	}
}
