package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/models"
	jwthelp "github.com/Skotchmaster/auth_service/pkg/jwt"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	db := r.DB.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", u.Email).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return ErrUserAlreadyExist
	}
	if err := db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserAlreadyExist
		}
		return err
	}
	return nil
}

func (r *GormRepo) findUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findUser(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *GormRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findUser(ctx, "id = ?", id)
}

func (r *GormRepo) FindUserByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.findUser(ctx, "email_verification_token = ?", jwthelp.Sha256Hex(token))
}

func (r *GormRepo) SetVerificationToken(ctx context.Context, userID uuid.UUID, token string) error {
	h := jwthelp.Sha256Hex(token)
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("email_verification_token", &h).Error
}

// ConsumeVerificationToken marks the user verified only if the token is still
// the one on record, so a token can be spent exactly once.
func (r *GormRepo) ConsumeVerificationToken(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND email_verification_token = ? AND email_verified = ?", userID, jwthelp.Sha256Hex(token), false).
		Updates(map[string]any{
			"email_verified":           true,
			"email_verification_token": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) SetPasswordReset(ctx context.Context, userID uuid.UUID, token string, expires time.Time) error {
	h := jwthelp.Sha256Hex(token)
	exp := expires.UTC()
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"password_reset_token":   &h,
			"password_reset_expires": &exp,
		}).Error
}

func (r *GormRepo) FindUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.findUser(ctx, "password_reset_token = ? AND password_reset_expires > ?", jwthelp.Sha256Hex(token), r.now())
}

// ConsumeResetToken stores the new hash and clears the reset token in one
// conditional update. It reports false when the token was already spent,
// replaced, or expired in the meantime.
func (r *GormRepo) ConsumeResetToken(ctx context.Context, userID uuid.UUID, token, newHash string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password_reset_token = ? AND password_reset_expires > ?", userID, jwthelp.Sha256Hex(token), r.now()).
		Updates(map[string]any{
			"password_hash":          newHash,
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newHash string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", newHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

func (r *GormRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	fields := map[string]any{}
	if upd.FirstName != nil {
		fields["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		fields["last_name"] = *upd.LastName
	}
	if len(fields) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}
	return r.FindUserByID(ctx, userID)
}

func (r *GormRepo) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
