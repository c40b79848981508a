package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skotchmaster/auth_service/internal/metrics"
)

// Job is one unit of periodic maintenance. It reports how many items it removed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Start runs job every interval until ctx is done. Each tick gets its own
// timeout; a failed tick is logged and the loop carries on.
func Start(ctx context.Context, log *slog.Logger, job Job, interval, timeout time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := log.With("job", job.Name())

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				RunOnce(tickCtx, l, job)
				cancel()
			}
		}
	}()
	l.Info("job_started", "interval", interval.String())
}

// RunOnce executes a single tick and records its outcome.
func RunOnce(ctx context.Context, l *slog.Logger, job Job) {
	n, err := job.Run(ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(job.Name(), "error").Inc()
		l.Error("job_failed", "removed", n, "error", err)
		return
	}
	metrics.JobRuns.WithLabelValues(job.Name(), "success").Inc()
	if n > 0 {
		metrics.JobRemoved.WithLabelValues(job.Name()).Add(float64(n))
		l.Info("job_done", "removed", n)
	}
}
