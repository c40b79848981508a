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

type ClientInfo struct {
	IP        string
	UserAgent string
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// issuePair mints a token pair and registers the refresh token in the ledger,
// then in the cache. No pair is returned unless both writes succeeded.
func (s *AuthService) issuePair(ctx context.Context, user *models.User, client ClientInfo) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.issue", "user_id", user.ID.String())
	subject := user.ID.String()

	access, accessClaims, err := s.AccessCodec.Sign(subject, user.Email)
	if err != nil {
		return nil, internal("sign access token", err)
	}
	refresh, refreshClaims, err := s.RefreshCodec.Sign(subject, user.Email)
	if err != nil {
		return nil, internal("sign refresh token", err)
	}
	refreshExp := refreshClaims.ExpiresAt.Time

	err = boundedErr(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Ledger.RecordRefresh(ctx, repo.RefreshRecord{
			Token:     refresh,
			JTI:       refreshClaims.ID,
			UserID:    user.ID,
			ExpiresAt: refreshExp,
			UserAgent: truncate(client.UserAgent, 255),
			IP:        client.IP,
		})
	})
	if err != nil {
		return nil, internal("record refresh token", err)
	}

	err = boundedErr(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Sessions.Put(ctx, refresh, subject, refreshExp)
	})
	if err != nil {
		metrics.SessionCacheErrors.WithLabelValues("put").Inc()
		l.Error("issue_failed", "status", 500, "reason", "session cache write failed", "error", err)
		// the ledger row must not outlive a failed issuance
		if _, rerr := bounded(context.WithoutCancel(ctx), s.StoreTimeout, func(ctx context.Context) (bool, error) {
			return s.Ledger.RevokeRefresh(ctx, refresh)
		}); rerr != nil {
			l.Error("issue_rollback_failed", "error", rerr)
		}
		return nil, internal("cache refresh token", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// revokeOne removes a refresh token from the ledger, then from the cache.
// It reports whether the ledger row was live. A cache failure is logged and
// left to the reconcile job; a ledger failure is returned.
func (s *AuthService) revokeOne(ctx context.Context, token string) (bool, error) {
	revoked, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (bool, error) {
		return s.Ledger.RevokeRefresh(ctx, token)
	})
	if err != nil {
		return false, internal("revoke refresh token", err)
	}
	s.dropCached(ctx, token)
	return revoked, nil
}

func (s *AuthService) dropCached(ctx context.Context, token string) {
	err := boundedErr(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Sessions.Delete(ctx, token)
	})
	if err != nil {
		metrics.SessionCacheErrors.WithLabelValues("delete").Inc()
		logging.FromContext(ctx).Warn("session_cache_delete_failed", "error", err)
	}
}

// revokeAll is authoritative in the ledger and best effort in the cache.
func (s *AuthService) revokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	l := logging.FromContext(ctx).With("svc", "auth.revoke_all", "user_id", userID.String())

	n, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (int64, error) {
		return s.Ledger.RevokeAllForUser(ctx, userID)
	})
	if err != nil {
		return 0, internal("revoke all refresh tokens", err)
	}

	removed, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (int, error) {
		return s.Sessions.DeleteAll(ctx, userID.String())
	})
	if err != nil {
		metrics.SessionCacheErrors.WithLabelValues("delete_all").Inc()
		l.Warn("session_cache_sweep_failed", "revoked", n, "removed", removed, "error", err)
	}
	return n, nil
}

// lookupRefresh checks the presented token against the cache, falling back
// to the ledger on a miss. It does not consume the token.
func (s *AuthService) lookupRefresh(ctx context.Context, token, subject string) error {
	l := logging.FromContext(ctx)

	owner, ok, err := bounded3(ctx, s.StoreTimeout, func(ctx context.Context) (string, bool, error) {
		return s.Sessions.Get(ctx, token)
	})
	if err != nil {
		metrics.SessionCacheErrors.WithLabelValues("get").Inc()
		l.Warn("session_cache_get_failed", "error", err)
		ok = false
	}
	if ok {
		if owner != subject {
			return errInvalidRefresh
		}
		return nil
	}

	metrics.SessionCacheMisses.Inc()
	row, err := bounded(ctx, s.StoreTimeout, func(ctx context.Context) (*models.RefreshToken, error) {
		return s.Ledger.FindActiveRefresh(ctx, token)
	})
	if errors.Is(err, repo.ErrRefreshNotFound) {
		return errInvalidRefresh
	}
	if err != nil {
		return internal("find refresh token", err)
	}
	if row.UserID.String() != subject {
		return errInvalidRefresh
	}
	return nil
}

// publish is fire-and-log: event delivery never fails the operation.
func (s *AuthService) publish(ctx context.Context, ev events.Event, client ClientInfo) {
	publish(ctx, s.Events, s.StoreTimeout, ev, client)
}

func publish(ctx context.Context, p events.Publisher, timeout time.Duration, ev events.Event, client ClientInfo) {
	if p == nil {
		return
	}
	ev.IP = client.IP
	ev.UserAgent = client.UserAgent
	err := boundedErr(context.WithoutCancel(ctx), timeout, func(ctx context.Context) error {
		return p.Publish(ctx, ev)
	})
	if err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", string(ev.Type), "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
