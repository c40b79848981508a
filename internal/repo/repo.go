package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/models"
)

var (
	ErrUserAlreadyExist = errors.New("user already exist")
	ErrUserNotFound     = errors.New("user not found")
	ErrRefreshNotFound  = errors.New("refresh token not found")
)

type GormRepo struct {
	DB  *gorm.DB
	Now func() time.Time
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.RefreshToken{})
}

func (r *GormRepo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
