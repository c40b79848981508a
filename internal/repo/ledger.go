package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/models"
	jwthelp "github.com/Skotchmaster/auth_service/pkg/jwt"
)

type RefreshRecord struct {
	Token     string
	JTI       string
	UserID    uuid.UUID
	ExpiresAt time.Time
	UserAgent string
	IP        string
}

func (r *GormRepo) RecordRefresh(ctx context.Context, rec RefreshRecord) error {
	row := models.RefreshToken{
		TokenHash: jwthelp.Sha256Hex(rec.Token),
		JTI:       rec.JTI,
		UserID:    rec.UserID,
		ExpiresAt: rec.ExpiresAt.UTC(),
		UserAgent: rec.UserAgent,
		IP:        rec.IP,
	}
	return r.DB.WithContext(ctx).Create(&row).Error
}

// FindActiveRefresh returns the ledger row for token if it is neither revoked
// nor expired.
func (r *GormRepo) FindActiveRefresh(ctx context.Context, token string) (*models.RefreshToken, error) {
	var row models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", jwthelp.Sha256Hex(token), r.now()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshNotFound
		}
		return nil, err
	}
	return &row, nil
}

// RevokeRefresh soft-deletes the row. The boolean reports whether this call
// did the revoking, which makes it usable as a compare-and-swap for rotation.
func (r *GormRepo) RevokeRefresh(ctx context.Context, token string) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("token_hash = ?", jwthelp.Sha256Hex(token)).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	var rows []models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, r.now()).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// PurgeExpired hard-deletes rows that expired or were revoked before the horizon.
func (r *GormRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	before = before.UTC()
	res := r.DB.WithContext(ctx).Unscoped().
		Where("expires_at < ? OR (deleted_at IS NOT NULL AND deleted_at < ?)", before, before).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// ActiveHashes reports which of the given token hashes still have a live row.
func (r *GormRepo) ActiveHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	out := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}
	var found []string
	err := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash IN ? AND expires_at > ?", hashes, r.now()).
		Pluck("token_hash", &found).Error
	if err != nil {
		return nil, err
	}
	for _, h := range found {
		out[h] = true
	}
	return out, nil
}
