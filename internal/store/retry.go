package store

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// connectRetry bounds how long a server waits for its database at startup.
type connectRetry struct {
	Attempts int
	Backoff  time.Duration // first delay; doubles each attempt
	Max      time.Duration
}

var defaultConnectRetry = connectRetry{Attempts: 5, Backoff: 250 * time.Millisecond, Max: 5 * time.Second}

// retryConnect calls fn until it succeeds, attempts run out, or ctx ends.
// Delays grow exponentially with ±25% jitter.
func retryConnect(ctx context.Context, rc connectRetry, what string, fn func(context.Context) error) error {
	if rc.Attempts <= 0 {
		rc.Attempts = 1
	}

	delay := rc.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil || attempt >= rc.Attempts || ctx.Err() != nil {
			return err
		}

		zap.L().Warn("store: retrying connection",
			zap.String("target", what),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		wait := delay + time.Duration((rand.Float64()*0.5-0.25)*float64(delay))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		delay *= 2
		if rc.Max > 0 && delay > rc.Max {
			delay = rc.Max
		}
	}
}
