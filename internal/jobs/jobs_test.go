package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/ratelimit"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRateLimitCleanup(t *testing.T) {
	mem := ratelimit.NewMemory()
	ctx := context.Background()
	_, err := mem.Allow(ctx, "short", 1, time.Millisecond)
	require.NoError(t, err)
	_, err = mem.Allow(ctx, "long", 1, time.Hour)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	n, err := RateLimitCleanup{Limiter: mem}.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, mem.Len())
}

func TestLedgerPurge(t *testing.T) {
	r := repo.New(testutil.InitTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	userID := uuid.New()

	record := func(token string, exp time.Time) {
		require.NoError(t, r.RecordRefresh(ctx, repo.RefreshRecord{Token: token, JTI: token, UserID: userID, ExpiresAt: exp}))
	}
	record("old-expired", now.Add(-60*24*time.Hour))
	record("fresh-expired", now.Add(-time.Hour))
	record("live", now.Add(time.Hour))

	job := LedgerPurge{Ledger: r, Retention: 30 * 24 * time.Hour, Now: func() time.Time { return now }}
	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var left int64
	require.NoError(t, r.DB.Unscoped().Model(&models.RefreshToken{}).Count(&left).Error)
	assert.EqualValues(t, 2, left)
}

func TestCacheReconcile(t *testing.T) {
	r := repo.New(testutil.InitTestDB(t))
	mr, rdb := testutil.InitTestRedis(t)
	store := session.NewRedisStore(rdb)
	ctx := context.Background()
	userID := uuid.New()
	exp := time.Now().Add(time.Hour)

	for _, tok := range []string{"kept", "revoked", "orphan"} {
		require.NoError(t, store.Put(ctx, tok, userID.String(), exp))
	}
	for _, tok := range []string{"kept", "revoked"} {
		require.NoError(t, r.RecordRefresh(ctx, repo.RefreshRecord{Token: tok, JTI: tok, UserID: userID, ExpiresAt: exp}))
	}
	_, err := r.RevokeRefresh(ctx, "revoked")
	require.NoError(t, err)

	n, err := CacheReconcile{Cache: store, Ledger: r}.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.True(t, mr.Exists(session.Key("kept")))
	assert.False(t, mr.Exists(session.Key("revoked")))
	assert.False(t, mr.Exists(session.Key("orphan")))
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (*countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) (int, error) {
	j.runs.Add(1)
	return 1, j.err
}

func TestStart_TicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &countingJob{err: errors.New("boom")}

	Start(ctx, quiet, job, 5*time.Millisecond, time.Second)
	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	stopped := job.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, job.runs.Load())
}
