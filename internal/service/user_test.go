package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/repo"
)

func TestUserService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "xena@example.com", "Passw0rd!")

	err := env.users.ChangePassword(bg, reg.User.ID, "wrong", "N3w-Passw0rd!")
	require.ErrorIs(t, err, ErrBadRequest)

	require.NoError(t, env.users.ChangePassword(bg, reg.User.ID, "Passw0rd!", "N3w-Passw0rd!"))

	_, err = env.auth.Refresh(bg, reg.Tokens.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized, "other sessions end on password change")

	_, err = env.auth.Login(bg, "xena@example.com", "N3w-Passw0rd!", ClientInfo{})
	require.NoError(t, err)
	assert.Contains(t, env.events.types(), events.PasswordChanged)

	err = env.users.ChangePassword(bg, uuid.New(), "x", "N3w-Passw0rd!")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_Profile(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "yara@example.com", "Passw0rd!")

	user, err := env.users.GetProfile(bg, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FirstName)

	last := "Carroll"
	user, err = env.users.UpdateProfile(bg, reg.User.ID, repo.ProfileUpdate{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FirstName)
	assert.Equal(t, "Carroll", user.LastName)

	_, err = env.users.UpdateProfile(bg, reg.User.ID, repo.ProfileUpdate{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.users.GetProfile(bg, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_Deactivate(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "zed@example.com", "Passw0rd!")

	require.NoError(t, env.users.Deactivate(bg, reg.User.ID))

	_, err := env.auth.Refresh(bg, reg.Tokens.RefreshToken, ClientInfo{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.auth.Login(bg, "zed@example.com", "Passw0rd!", ClientInfo{})
	assert.ErrorIs(t, err, ErrForbidden)
}
