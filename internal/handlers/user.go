package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/transport"
	"github.com/Skotchmaster/auth_service/internal/util"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

// ActivityReader serves a user's audit trail.
type ActivityReader interface {
	Activity(ctx context.Context, userID string, from, size int) (int64, []events.Event, error)
}

type UserHandler struct {
	Users    *service.UserService
	Auth     *service.AuthService
	Activity ActivityReader
	Cookies  Cookies
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.Users.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.NewUserResponse(user))
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req transport.UpdateProfileRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	user, err := h.Users.UpdateProfile(c.Request().Context(), userID, repo.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.NewUserResponse(user))
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req transport.ChangePasswordRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	if err := h.Users.ChangePassword(c.Request().Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	h.Cookies.clearRefresh(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

func (h *UserHandler) Sessions(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	rows, err := h.Auth.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	out := make([]transport.SessionResponse, len(rows))
	for i, r := range rows {
		out[i] = transport.NewSessionResponse(r)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UserHandler) ActivityLog(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	if h.Activity == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "activity log is not enabled")
	}

	from, size := util.ParsePage(c.QueryParam("page"), c.QueryParam("size"))
	total, evs, err := h.Activity.Activity(c.Request().Context(), userID.String(), from, size)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("activity_failed", "status", 503, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "activity log unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "events": evs})
}
