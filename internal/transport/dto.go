package transport

import (
	"strings"
	"time"

	"github.com/Skotchmaster/auth_service/internal/models"
)

type RegisterRequest struct {
	Email     string `json:"email"     validate:"required,min=3,max=254,email,safeemail"`
	Password  string `json:"password"  validate:"required,strongpassword"`
	FirstName string `json:"firstName" validate:"required,max=100,personname"`
	LastName  string `json:"lastName"  validate:"required,max=100,personname"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,min=3,max=254,email"`
	Password string `json:"password" validate:"required,max=128"`
}

func (r *LoginRequest) Normalize() { r.Email = normalizeEmail(r.Email) }

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,max=500,opaquetoken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,min=3,max=254,email"`
}

func (r *ForgotPasswordRequest) Normalize() { r.Email = normalizeEmail(r.Email) }

type ResetPasswordRequest struct {
	Token    string `json:"token"    validate:"required,max=500,opaquetoken"`
	Password string `json:"password" validate:"required,strongpassword"`
}

type VerifyEmailRequest struct {
	Token string `param:"token" json:"token" validate:"required,max=500,opaquetoken"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitnil,max=100,personname"`
	LastName  *string `json:"lastName"  validate:"omitnil,max=100,personname"`
}

func (r *UpdateProfileRequest) Normalize() {
	if r.FirstName != nil {
		v := strings.TrimSpace(*r.FirstName)
		r.FirstName = &v
	}
	if r.LastName != nil {
		v := strings.TrimSpace(*r.LastName)
		r.LastName = &v
	}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=128"`
	NewPassword     string `json:"newPassword"     validate:"required,strongpassword"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	EmailVerified bool      `json:"emailVerified"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		IsActive:      u.IsActive,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

type TokensResponse struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type AuthResponse struct {
	User   UserResponse   `json:"user"`
	Tokens TokensResponse `json:"tokens"`
}

type SessionResponse struct {
	ID        uint      `json:"id"`
	UserAgent string    `json:"userAgent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewSessionResponse(rt models.RefreshToken) SessionResponse {
	return SessionResponse{
		ID:        rt.ID,
		UserAgent: rt.UserAgent,
		IP:        rt.IP,
		CreatedAt: rt.CreatedAt,
		ExpiresAt: rt.ExpiresAt,
	}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
