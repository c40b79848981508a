package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/validation"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

type errorBody struct {
	Error   string                  `json:"error"`
	Details []validation.FieldError `json:"details,omitempty"`
}

var kindStatus = []struct {
	kind   error
	status int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrBadRequest, http.StatusBadRequest},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrConflict, http.StatusConflict},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrRateLimited, http.StatusTooManyRequests},
}

// mapError turns any handler error into the status and body sent to the client.
// Nothing from an unclassified error reaches the body.
func mapError(err error) (int, errorBody) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorBody{Error: "validation failed", Details: verr.Fields}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok || he.Code >= 500 {
			msg = http.StatusText(he.Code)
		}
		return he.Code, errorBody{Error: msg}
	}

	for _, ks := range kindStatus {
		if errors.Is(err, ks.kind) {
			return ks.status, errorBody{Error: service.PublicMessage(err)}
		}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error"}
}

// ErrorHandler renders errors as {"error": ...} and logs every 5xx with its cause.
func ErrorHandler(base *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := mapError(err)
		if status >= 500 {
			l := logging.FromContext(c.Request().Context())
			if l == slog.Default() && base != nil {
				l = base
			}
			l.Error("request_failed", "status", status, "path", c.Path(), "error", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil && base != nil {
			base.Error("write_error_response", "error", werr)
		}
	}
}
