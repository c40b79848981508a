package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/pkg/logging"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

const (
	userIDKey = "userID"
	emailKey  = "email"
)

// RequireLogin accepts only a valid access token in the Authorization header.
// Refresh tokens fail verification because the codecs are bound to a kind.
func RequireLogin(codec *tokens.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logging.FromContext(c.Request().Context())

			raw, ok := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c, "missing access token")
			}
			claims, err := codec.Verify(raw)
			if err != nil {
				l.Warn("access_denied", "status", 401, "reason", "token verification failed", "error", err)
				return unauthorized(c, "invalid or expired access token")
			}
			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				return unauthorized(c, "invalid or expired access token")
			}

			c.Set(userIDKey, id)
			c.Set(emailKey, claims.Email)
			return next(c)
		}
	}
}

// UserID returns the authenticated user set by RequireLogin.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(userIDKey).(uuid.UUID)
	return id, ok
}

func bearer(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="auth"`)
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
