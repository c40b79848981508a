package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	LogoutAll(ctx context.Context, userID uuid.UUID) error
}

type UserService struct {
	Users    UserStore
	Hasher   PasswordHasher
	Sessions SessionRevoker
	Events   events.Publisher

	StoreTimeout time.Duration
}

func (s *UserService) timeout() time.Duration {
	if s.StoreTimeout <= 0 {
		return DefaultStoreTimeout
	}
	return s.StoreTimeout
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := bounded(ctx, s.timeout(), func(ctx context.Context) (*models.User, error) {
		return s.Users.FindUserByID(ctx, userID)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil, fail(ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, internal("find user", err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, upd repo.ProfileUpdate) (*models.User, error) {
	if upd.FirstName == nil && upd.LastName == nil {
		return nil, fail(ErrValidation, "nothing to update")
	}
	user, err := bounded(ctx, s.timeout(), func(ctx context.Context) (*models.User, error) {
		return s.Users.UpdateProfile(ctx, userID, upd)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil, fail(ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, internal("update profile", err)
	}
	publish(ctx, s.Events, s.timeout(), events.New(events.ProfileUpdated, user.ID.String(), user.Email), ClientInfo{})
	return user, nil
}

// ChangePassword also ends every session of the user, the same as a reset.
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) (err error) {
	l := logging.FromContext(ctx).With("svc", "user.change_password", "user_id", userID.String())
	defer func() { metrics.AuthOps.WithLabelValues("change_password", metrics.Outcome(err)).Inc() }()

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !s.Hasher.CheckPassword(user.PasswordHash, current) {
		l.Warn("change_password_failed", "status", 400, "reason", "current password mismatch")
		return fail(ErrBadRequest, "current password is incorrect")
	}

	pwHash, err := s.Hasher.HashPassword(next)
	if err != nil {
		return internal("hash password", err)
	}
	err = boundedErr(ctx, s.timeout(), func(ctx context.Context) error {
		return s.Users.UpdatePassword(ctx, userID, pwHash)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		return fail(ErrNotFound, "user not found")
	}
	if err != nil {
		return internal("update password", err)
	}

	if err := s.Sessions.LogoutAll(ctx, userID); err != nil {
		l.Error("change_password_error", "status", 500, "reason", "cannot revoke sessions", "error", err)
		return err
	}
	publish(ctx, s.Events, s.timeout(), events.New(events.PasswordChanged, user.ID.String(), user.Email), ClientInfo{})
	l.Info("password_changed")
	return nil
}

// Deactivate disables the account and ends its sessions.
func (s *UserService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	err := boundedErr(ctx, s.timeout(), func(ctx context.Context) error {
		return s.Users.SetActive(ctx, userID, false)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		return fail(ErrNotFound, "user not found")
	}
	if err != nil {
		return internal("deactivate user", err)
	}
	if err := s.Sessions.LogoutAll(ctx, userID); err != nil {
		return err
	}
	publish(ctx, s.Events, s.timeout(), events.New(events.UserDeactivated, userID.String(), ""), ClientInfo{})
	return nil
}
