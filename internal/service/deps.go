package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByVerificationToken(ctx context.Context, token string) (*models.User, error)
	SetVerificationToken(ctx context.Context, userID uuid.UUID, token string) error
	ConsumeVerificationToken(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	SetPasswordReset(ctx context.Context, userID uuid.UUID, token string, expires time.Time) error
	FindUserByResetToken(ctx context.Context, token string) (*models.User, error)
	ConsumeResetToken(ctx context.Context, userID uuid.UUID, token, newHash string) (bool, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, newHash string) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd repo.ProfileUpdate) (*models.User, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
}

// Ledger is the durable record of issued refresh tokens.
type Ledger interface {
	RecordRefresh(ctx context.Context, rec repo.RefreshRecord) error
	FindActiveRefresh(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefresh(ctx context.Context, token string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error)
}

// SessionStore is the expendable cache in front of the ledger.
type SessionStore interface {
	Put(ctx context.Context, token, userID string, expiresAt time.Time) error
	Get(ctx context.Context, token string) (string, bool, error)
	Delete(ctx context.Context, token string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
	DummyCheck(password string)
}

// bounded runs one store call under the store timeout.
func bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(cctx)
}

func boundedErr(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(cctx)
}

func bounded3[A, B any](ctx context.Context, d time.Duration, fn func(context.Context) (A, B, error)) (A, B, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(cctx)
}
