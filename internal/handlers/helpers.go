package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/auth_service/internal/middleware/auth"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/transport"
)

type normalizer interface {
	Normalize()
}

// bindValid binds the request, normalizes it when it knows how and runs the
// validator registered on echo.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if n, ok := req.(normalizer); ok {
		n.Normalize()
	}
	return c.Validate(req)
}

func clientInfo(c echo.Context) service.ClientInfo {
	return service.ClientInfo{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func currentUser(c echo.Context) (uuid.UUID, error) {
	id, ok := authmw.UserID(c)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}
	return id, nil
}

func tokensResponse(p *service.TokenPair) transport.TokensResponse {
	return transport.TokensResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
