package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/transport"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

type AuthHandler struct {
	Auth    *service.AuthService
	Cookies Cookies
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req transport.RegisterRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	res, err := h.Auth.Register(c.Request().Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, clientInfo(c))
	if err != nil {
		return err
	}

	h.Cookies.setRefresh(c, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	return c.JSON(http.StatusCreated, transport.AuthResponse{
		User:   transport.NewUserResponse(res.User),
		Tokens: tokensResponse(res.Tokens),
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req transport.LoginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	res, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		return err
	}

	h.Cookies.setRefresh(c, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	return c.JSON(http.StatusOK, transport.AuthResponse{
		User:   transport.NewUserResponse(res.User),
		Tokens: tokensResponse(res.Tokens),
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.RefreshToken = refreshFromRequest(c, req.RefreshToken)
	if err := c.Validate(&req); err != nil {
		return err
	}

	pair, err := h.Auth.Refresh(c.Request().Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) || errors.Is(err, service.ErrForbidden) {
			h.Cookies.clearRefresh(c)
		}
		return err
	}

	h.Cookies.setRefresh(c, pair.RefreshToken, pair.RefreshExpiresAt)
	return c.JSON(http.StatusOK, tokensResponse(pair))
}

// Logout always clears the cookie. A token the ledger does not know is
// not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		logging.FromContext(c.Request().Context()).Debug("logout_body_unreadable", "error", err)
	}
	token := refreshFromRequest(c, req.RefreshToken)

	h.Cookies.clearRefresh(c)
	if err := h.Auth.Logout(c.Request().Context(), token, clientInfo(c)); err != nil {
		return err
	}
	logging.FromContext(c.Request().Context()).Info("successful_logout")
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.Auth.LogoutAll(c.Request().Context(), userID); err != nil {
		return err
	}
	h.Cookies.clearRefresh(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.Auth.Me(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.NewUserResponse(user))
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	req := transport.VerifyEmailRequest{Token: c.Param("token")}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.Auth.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.Auth.ResendVerification(c.Request().Context(), userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req transport.ForgotPasswordRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.Auth.ForgotPassword(c.Request().Context(), req.Email, clientInfo(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req transport.ResetPasswordRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.Auth.ResetPassword(c.Request().Context(), req.Token, req.Password, clientInfo(c)); err != nil {
		return err
	}
	h.Cookies.clearRefresh(c)
	return c.NoContent(http.StatusNoContent)
}
