package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primaryKey"           json:"id"`
	Email                  string     `gorm:"uniqueIndex;not null"           json:"email"`
	PasswordHash           string     `gorm:"not null"                       json:"-"`
	FirstName              string     `gorm:"not null"                       json:"firstName"`
	LastName               string     `gorm:"not null"                       json:"lastName"`
	EmailVerified          bool       `gorm:"not null;default:false"         json:"emailVerified"`
	EmailVerificationToken *string    `gorm:"uniqueIndex"                    json:"-"`
	PasswordResetToken     *string    `gorm:"index"                          json:"-"`
	PasswordResetExpires   *time.Time `                                      json:"-"`
	IsActive               bool       `gorm:"not null;default:true"          json:"isActive"`
	CreatedAt              time.Time  `                                      json:"createdAt"`
	UpdatedAt              time.Time  `                                      json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// RefreshToken is a ledger row. Only the SHA-256 of the signed token is kept;
// revocation is a soft delete so revoked rows stay around for audit until purged.
type RefreshToken struct {
	ID        uint           `gorm:"primaryKey"                json:"id"`
	TokenHash string         `gorm:"uniqueIndex;not null"      json:"-"`
	JTI       string         `gorm:"uniqueIndex;not null"      json:"jti"`
	UserID    uuid.UUID      `gorm:"type:uuid;index;not null"  json:"userId"`
	ExpiresAt time.Time      `gorm:"index;not null"            json:"expiresAt"`
	UserAgent string         `                                 json:"userAgent,omitempty"`
	IP        string         `                                 json:"ip,omitempty"`
	CreatedAt time.Time      `                                 json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index"                     json:"-"`
}
