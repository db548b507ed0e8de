package sonarqube

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// throttle bounds concurrent in-flight requests and enforces a minimum
// spacing between request starts. Cache hits never touch it.
type throttle struct {
	sem  *semaphore.Weighted
	pace *rate.Limiter
}

func newThrottle(maxConcurrent int64, minInterval time.Duration) *throttle {
	return &throttle{
		sem:  semaphore.NewWeighted(maxConcurrent),
		pace: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// acquire blocks until a concurrency slot is free and the spacing interval
// has elapsed, or the context is cancelled.
func (t *throttle) acquire(ctx context.Context) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := t.pace.Wait(ctx); err != nil {
		t.sem.Release(1)
		return err
	}
	return nil
}

func (t *throttle) release() {
	t.sem.Release(1)
}
