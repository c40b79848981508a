package handlers

import (
	"time"

	"github.com/labstack/echo/v4"

	jwthelp "github.com/Skotchmaster/auth_service/pkg/jwt"
)

const (
	RefreshCookie = "refreshToken"
	refreshPath   = "/auth"
)

// Cookies writes the HttpOnly refresh cookie that browser clients rely on.
type Cookies struct {
	Secure bool
}

func (k Cookies) setRefresh(c echo.Context, token string, exp time.Time) {
	c.SetCookie(jwthelp.CreateCookie(RefreshCookie, token, refreshPath, exp, k.Secure))
}

func (k Cookies) clearRefresh(c echo.Context) {
	c.SetCookie(jwthelp.DeleteCookie(RefreshCookie, refreshPath, k.Secure))
}

// refreshFromRequest prefers the JSON body and falls back to the cookie.
func refreshFromRequest(c echo.Context, body string) string {
	if body != "" {
		return body
	}
	if ck, err := c.Cookie(RefreshCookie); err == nil {
		return ck.Value
	}
	return ""
}
