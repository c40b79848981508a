// Package events publishes auth domain events and outgoing mail requests.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	UserRegistered         Type = "user.registered"
	UserLoggedIn           Type = "user.logged_in"
	UserLoginFailed        Type = "user.login_failed"
	TokenRefreshed         Type = "token.refreshed"
	UserLoggedOut          Type = "user.logged_out"
	UserLoggedOutAll       Type = "user.logged_out_all"
	EmailVerified          Type = "email.verified"
	VerificationResent     Type = "email.verification_resent"
	PasswordResetRequested Type = "password.reset_requested"
	PasswordReset          Type = "password.reset"
	PasswordChanged        Type = "password.changed"
	ProfileUpdated         Type = "profile.updated"
	UserDeactivated        Type = "user.deactivated"
)

type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	UserID    string            `json:"userId,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	At        time.Time         `json:"at"`
	Meta      map[string]string `json:"meta,omitempty"`
}

func New(t Type, userID, email string) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   t,
		UserID: userID,
		Email:  email,
		At:     time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
