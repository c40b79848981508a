package jobs

import (
	"context"
	"fmt"
	"time"
)

// Cleaner drops expired rate limit windows.
type Cleaner interface {
	Cleanup() int
}

type RateLimitCleanup struct {
	Limiter Cleaner
}

func (RateLimitCleanup) Name() string { return "ratelimit_cleanup" }

func (j RateLimitCleanup) Run(context.Context) (int, error) {
	return j.Limiter.Cleanup(), nil
}

type Purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// LedgerPurge hard-deletes ledger rows that expired or were revoked more
// than Retention ago.
type LedgerPurge struct {
	Ledger    Purger
	Retention time.Duration
	Now       func() time.Time
}

func (LedgerPurge) Name() string { return "ledger_purge" }

func (j LedgerPurge) Run(ctx context.Context) (int, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	n, err := j.Ledger.PurgeExpired(ctx, now().Add(-j.Retention))
	if err != nil {
		return 0, fmt.Errorf("purge ledger: %w", err)
	}
	return int(n), nil
}

type CacheScanner interface {
	Scan(ctx context.Context, fn func(hash, userID string) error) error
	DeleteHash(ctx context.Context, hash string) error
}

type ActiveChecker interface {
	ActiveHashes(ctx context.Context, hashes []string) (map[string]bool, error)
}

const reconcileBatch = 500

// CacheReconcile removes cache entries with no live ledger row. It finishes
// what a failed best-effort cache sweep left behind.
type CacheReconcile struct {
	Cache  CacheScanner
	Ledger ActiveChecker
}

func (CacheReconcile) Name() string { return "cache_reconcile" }

func (j CacheReconcile) Run(ctx context.Context) (int, error) {
	removed := 0
	batch := make([]string, 0, reconcileBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		live, err := j.Ledger.ActiveHashes(ctx, batch)
		if err != nil {
			return fmt.Errorf("check ledger: %w", err)
		}
		for _, h := range batch {
			if live[h] {
				continue
			}
			if err := j.Cache.DeleteHash(ctx, h); err != nil {
				return fmt.Errorf("drop cache entry: %w", err)
			}
			removed++
		}
		batch = batch[:0]
		return nil
	}

	err := j.Cache.Scan(ctx, func(hash, _ string) error {
		batch = append(batch, hash)
		if len(batch) >= reconcileBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, flush()
}
