package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

func TestLogout_MalformedBodyIsLoggedAndIgnored(t *testing.T) {
	var logs bytes.Buffer
	log := logging.NewWithWriter(&logs, "debug")

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(`{"refreshToken":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(logging.IntoContext(req.Context(), log))
	rec := httptest.NewRecorder()

	h := &AuthHandler{Auth: &service.AuthService{}}
	require.NoError(t, h.Logout(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderSetCookie), RefreshCookie+"=;")
	assert.Contains(t, logs.String(), `"msg":"logout_body_unreadable"`)
	assert.Contains(t, logs.String(), `"level":"DEBUG"`)
}
