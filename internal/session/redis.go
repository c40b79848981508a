// Package session keeps the fast projection of live refresh tokens in Redis.
// Keys are derived from the token hash so raw tokens never reach the cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	jwthelp "github.com/Skotchmaster/auth_service/pkg/jwt"
)

const (
	KeyPrefix = "refresh_token:"

	scanCount = 100
)

var ErrExpired = errors.New("session already expired")

type RedisStore struct {
	rdb     redis.UniversalClient
	retries int
	backoff time.Duration
	now     func() time.Time
}

type Option func(*RedisStore)

func WithRetries(attempts int, backoff time.Duration) Option {
	return func(s *RedisStore) {
		if attempts > 0 {
			s.retries = attempts
		}
		s.backoff = backoff
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *RedisStore) { s.now = now }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...Option) *RedisStore {
	s := &RedisStore{
		rdb:     rdb,
		retries: 3,
		backoff: 100 * time.Millisecond,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func Key(token string) string { return KeyPrefix + jwthelp.Sha256Hex(token) }

func (s *RedisStore) Put(ctx context.Context, token, userID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpired
	}
	if err := s.rdb.Set(ctx, Key(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, Key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session get: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.DeleteHash(ctx, jwthelp.Sha256Hex(token))
}

func (s *RedisStore) DeleteHash(ctx context.Context, hash string) error {
	if err := s.rdb.Del(ctx, KeyPrefix+hash).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

// DeleteAll removes every entry owned by userID. The store is keyed by token,
// so this walks the keyspace; it is not atomic and is retried on failure.
func (s *RedisStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	removed := 0
	for attempt := 1; ; attempt++ {
		n, err := s.deleteAllOnce(ctx, userID)
		removed += n
		if err == nil {
			return removed, nil
		}
		if attempt >= s.retries || ctx.Err() != nil {
			return removed, fmt.Errorf("session delete all after %d attempts: %w", attempt, err)
		}
		select {
		case <-time.After(s.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return removed, ctx.Err()
		}
	}
}

func (s *RedisStore) deleteAllOnce(ctx context.Context, userID string) (int, error) {
	removed := 0
	err := s.scan(ctx, func(keys []string, owners []string) error {
		var doomed []string
		for i, k := range keys {
			if owners[i] == userID {
				doomed = append(doomed, k)
			}
		}
		if len(doomed) == 0 {
			return nil
		}
		n, err := s.rdb.Del(ctx, doomed...).Result()
		removed += int(n)
		return err
	})
	return removed, err
}

// Scan calls fn for every cached entry with the token hash and its owner.
func (s *RedisStore) Scan(ctx context.Context, fn func(hash, userID string) error) error {
	return s.scan(ctx, func(keys, owners []string) error {
		for i, k := range keys {
			if owners[i] == "" {
				continue
			}
			if err := fn(strings.TrimPrefix(k, KeyPrefix), owners[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *RedisStore) scan(ctx context.Context, batch func(keys, owners []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, KeyPrefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("session scan: %w", err)
		}
		if len(keys) > 0 {
			owners, err := s.owners(ctx, keys)
			if err != nil {
				return err
			}
			if err := batch(keys, owners); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// owners resolves keys to user ids in one round trip; vanished keys map to "".
func (s *RedisStore) owners(ctx context.Context, keys []string) ([]string, error) {
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Get(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session pipeline: %w", err)
	}
	out := make([]string, len(keys))
	for i, cmd := range cmds {
		v, err := cmd.Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session get: %w", err)
		}
		out[i] = v
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
