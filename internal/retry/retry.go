package retry

import (
	"context"
	"math"
	"time"
)

// Policy describes a bounded retry schedule with multiplicative backoff.
// The zero value is not usable; construct with the fields set.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration

	// Sleep is swapped out in tests. Nil means sleep on the real clock,
	// honoring context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay returns the backoff delay preceding the given retry, starting at 0
// for the first retry: InitialDelay * Factor^retry, capped at MaxDelay.
func (p Policy) Delay(retry int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.Factor, float64(retry)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op up to MaxAttempts times. After a failed attempt it consults
// retryable; a terminal error is returned immediately, a retryable one
// triggers a backoff sleep and another attempt. The last error is returned
// once attempts are exhausted.
func (p Policy) Do(ctx context.Context, op func() error, retryable func(error) bool) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, p.Delay(attempt-1)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
