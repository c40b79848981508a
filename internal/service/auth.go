package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
	jwthelp "github.com/Skotchmaster/auth_service/pkg/jwt"
	"github.com/Skotchmaster/auth_service/pkg/logging"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

const (
	DefaultStoreTimeout = 3 * time.Second
	DefaultResetTTL     = time.Hour
)

type AuthService struct {
	Users        UserStore
	Ledger       Ledger
	Sessions     SessionStore
	Hasher       PasswordHasher
	AccessCodec  *tokens.Codec
	RefreshCodec *tokens.Codec
	Mailer       events.Mailer
	Events       events.Publisher

	StoreTimeout time.Duration
	ResetTTL     time.Duration
	Now          func() time.Time
}

// Init fills unset tunables with defaults.
func (s *AuthService) Init() *AuthService {
	if s.StoreTimeout <= 0 {
		s.StoreTimeout = DefaultStoreTimeout
	}
	if s.ResetTTL <= 0 {
		s.ResetTTL = DefaultResetTTL
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Events == nil {
		s.Events = events.Noop{}
	}
	return s
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthResult struct {
	User   *models.User
	Tokens *TokenPair
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (res *AuthResult, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")
	defer func() { metrics.AuthOps.WithLabelValues("register", metrics.Outcome(err)).Inc() }()

	pwHash, err := s.Hasher.HashPassword(in.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, internal("hash password", err)
	}
	verifyToken, err := jwthelp.NewOpaqueToken()
	if err != nil {
		return nil, internal("verification token", err)
	}
	verifyHash := jwthelp.Sha256Hex(verifyToken)

	user := &models.User{
		Email:                  in.Email,
		PasswordHash:           pwHash,
		FirstName:              in.FirstName,
		LastName:               in.LastName,
		EmailVerificationToken: &verifyHash,
		IsActive:               true,
	}
	err = boundedErr(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Users.CreateUser(ctx, user)
	})
	if errors.Is(err, repo.ErrUserAlreadyExist) {
		l.Warn("register_error", "status", 409, "reason", "user already exist")
		return nil, fail(ErrConflict, "email already registered")
	}
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot create user", "error", err)
		return nil, internal("create user", err)
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendVerification(ctx, user.Email, user.FirstName, verifyToken); err != nil {
			l.Warn("verification_mail_failed", "user_id", user.ID.String(), "error", err)
		}
	}

	pair, err := s.issuePair(ctx, user, client)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.UserRegistered, user.ID.String(), user.Email), client)
	l.Info("register_successful", "user_id", user.ID.String())
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (res *AuthResult, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")
	defer func() { metrics.AuthOps.WithLabelValues("login", metrics.Outcome(err)).Inc() }()

	user, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (*models.User, error) {
		return s.Users.FindUserByEmail(ctx, email)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		s.Hasher.DummyCheck(password)
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password")
		s.publish(ctx, events.New(events.UserLoginFailed, "", email), client)
		return nil, errInvalidCredentials
	}
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, internal("find user", err)
	}

	if !s.Hasher.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid email or password", "user_id", user.ID.String())
		s.publish(ctx, events.New(events.UserLoginFailed, user.ID.String(), user.Email), client)
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		l.Warn("login_failed", "status", 403, "reason", "account disabled", "user_id", user.ID.String())
		return nil, fail(ErrForbidden, "account is disabled")
	}

	pair, err := s.issuePair(ctx, user, client)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.UserLoggedIn, user.ID.String(), user.Email), client)
	l.Info("login_successful", "user_id", user.ID.String())
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh rotates a refresh token. The presented token is consumed in the
// ledger before the new pair is minted, and only one caller can consume it.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (pair *TokenPair, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")
	defer func() { metrics.AuthOps.WithLabelValues("refresh", metrics.Outcome(err)).Inc() }()

	claims, err := s.RefreshCodec.Verify(refreshToken)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "token verification failed", "error", err)
		return nil, errInvalidRefresh
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errInvalidRefresh
	}

	if err := s.lookupRefresh(ctx, refreshToken, claims.Subject); err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "token not live", "user_id", claims.Subject)
		return nil, err
	}

	user, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (*models.User, error) {
		return s.Users.FindUserByID(ctx, userID)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil, errInvalidRefresh
	}
	if err != nil {
		return nil, internal("find user", err)
	}
	if !user.IsActive {
		l.Warn("refresh_failed", "status", 403, "reason", "account disabled", "user_id", claims.Subject)
		return nil, fail(ErrForbidden, "account is disabled")
	}

	consumed, err := s.revokeOne(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !consumed {
		l.Warn("refresh_failed", "status", 401, "reason", "token already used", "user_id", claims.Subject)
		return nil, errInvalidRefresh
	}

	pair, err = s.issuePair(ctx, user, client)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.TokenRefreshed, user.ID.String(), user.Email), client)
	return pair, nil
}

// Logout revokes one refresh token. Unknown or already revoked tokens are fine.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, client ClientInfo) (err error) {
	defer func() { metrics.AuthOps.WithLabelValues("logout", metrics.Outcome(err)).Inc() }()
	if refreshToken == "" {
		return nil
	}

	revoked, err := s.revokeOne(ctx, refreshToken)
	if err != nil {
		logging.FromContext(ctx).Error("logout_failed", "status", 500, "reason", "cannot revoke refreshToken", "error", err)
		return err
	}
	if revoked {
		userID := ""
		if claims, verr := s.RefreshCodec.Verify(refreshToken); verr == nil {
			userID = claims.Subject
		}
		s.publish(ctx, events.New(events.UserLoggedOut, userID, ""), client)
	}
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) (err error) {
	defer func() { metrics.AuthOps.WithLabelValues("logout_all", metrics.Outcome(err)).Inc() }()

	n, err := s.revokeAll(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("logout_all_failed", "status", 500, "user_id", userID.String(), "error", err)
		return err
	}
	ev := events.New(events.UserLoggedOutAll, userID.String(), "")
	ev.Meta = map[string]string{"revoked": strconv.FormatInt(n, 10)}
	s.publish(ctx, ev, ClientInfo{})
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.verify_email")
	defer func() { metrics.AuthOps.WithLabelValues("verify_email", metrics.Outcome(err)).Inc() }()

	user, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (*models.User, error) {
		return s.Users.FindUserByVerificationToken(ctx, token)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		return errInvalidVerify
	}
	if err != nil {
		return internal("find user by verification token", err)
	}
	if user.EmailVerified {
		return fail(ErrBadRequest, "email already verified")
	}

	ok, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (bool, error) {
		return s.Users.ConsumeVerificationToken(ctx, user.ID, token)
	})
	if err != nil {
		return internal("consume verification token", err)
	}
	if !ok {
		return errInvalidVerify
	}

	s.publish(ctx, events.New(events.EmailVerified, user.ID.String(), user.Email), ClientInfo{})
	l.Info("email_verified", "user_id", user.ID.String())
	return nil
}

// ResendVerification issues a fresh verification token. Verified users get no mail.
func (s *AuthService) ResendVerification(ctx context.Context, userID uuid.UUID) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.resend_verification")

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}

	token, err := jwthelp.NewOpaqueToken()
	if err != nil {
		return internal("verification token", err)
	}
	err = boundedErr(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Users.SetVerificationToken(ctx, user.ID, token)
	})
	if err != nil {
		return internal("set verification token", err)
	}
	if s.Mailer != nil {
		if err := s.Mailer.SendVerification(ctx, user.Email, user.FirstName, token); err != nil {
			l.Warn("verification_mail_failed", "user_id", user.ID.String(), "error", err)
		}
	}
	s.publish(ctx, events.New(events.VerificationResent, user.ID.String(), user.Email), ClientInfo{})
	return nil
}

// ForgotPassword answers the same way whether or not the email is known.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, client ClientInfo) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")
	defer func() { metrics.AuthOps.WithLabelValues("forgot_password", metrics.Outcome(err)).Inc() }()

	user, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (*models.User, error) {
		return s.Users.FindUserByEmail(ctx, email)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		l.Info("reset_requested_unknown_email")
		return nil
	}
	if err != nil {
		return internal("find user", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := jwthelp.NewOpaqueToken()
	if err != nil {
		return internal("reset token", err)
	}
	expires := s.Now().Add(s.ResetTTL)
	err = boundedErr(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Users.SetPasswordReset(ctx, user.ID, token, expires)
	})
	if err != nil {
		return internal("set reset token", err)
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendPasswordReset(ctx, user.Email, user.FirstName, token); err != nil {
			l.Warn("reset_mail_failed", "user_id", user.ID.String(), "error", err)
		}
	}
	s.publish(ctx, events.New(events.PasswordResetRequested, user.ID.String(), user.Email), client)
	return nil
}

// ResetPassword sets a new password and ends every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, client ClientInfo) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")
	defer func() { metrics.AuthOps.WithLabelValues("reset_password", metrics.Outcome(err)).Inc() }()

	user, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (*models.User, error) {
		return s.Users.FindUserByResetToken(ctx, token)
	})
	if errors.Is(err, repo.ErrUserNotFound) {
		return errInvalidReset
	}
	if err != nil {
		return internal("find user by reset token", err)
	}

	pwHash, err := s.Hasher.HashPassword(newPassword)
	if err != nil {
		return internal("hash password", err)
	}
	ok, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (bool, error) {
		return s.Users.ConsumeResetToken(ctx, user.ID, token, pwHash)
	})
	if err != nil {
		return internal("consume reset token", err)
	}
	if !ok {
		return errInvalidReset
	}

	if _, err := s.revokeAll(ctx, user.ID); err != nil {
		l.Error("reset_password_error", "status", 500, "reason", "cannot revoke sessions", "user_id", user.ID.String(), "error", err)
		return err
	}
	s.publish(ctx, events.New(events.PasswordReset, user.ID.String(), user.Email), client)
	l.Info("password_reset", "user_id", user.ID.String())
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.findUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, fail(ErrUnauthorized, "user no longer exists")
	}
	return user, err
}

func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	rows, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) ([]models.RefreshToken, error) {
		return s.Ledger.ListActiveForUser(ctx, userID)
	})
	if err != nil {
		return nil, internal("list sessions", err)
	}
	return rows, nil
}

func (s *AuthService) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (*models.User, error) {
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
