package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds the startup connect loop.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // 0 retries until the context is cancelled
}

// DefaultRetryPolicy waits 3s, doubling up to 30s, without an attempt limit.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: 3 * time.Second, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// ConnectWithRetry connects src, waiting between attempts while the
// simulator is not reachable. Any other link error is returned at once.
func ConnectWithRetry(ctx context.Context, src Source, p RetryPolicy) (VersionInfo, error) {
	for attempt := 1; ; attempt++ {
		info, err := src.Connect(ctx)
		if err == nil {
			return info, nil
		}
		if !Retryable(err) {
			return VersionInfo{}, fmt.Errorf("connect to simulator: %w", err)
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return VersionInfo{}, fmt.Errorf("connect to simulator after %d attempts: %w", attempt, err)
		}

		wait := p.delay(attempt)
		slog.Info("Simulator not reachable, retrying", "attempt", attempt, "wait", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return VersionInfo{}, ctx.Err()
		case <-t.C:
		}
	}
}
