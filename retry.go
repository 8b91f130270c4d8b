package sculptor

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Retry defaults.
const (
	DefaultRetries = 3
	DefaultBackoff = time.Second
)

// AttemptState is the per-item retry state handed to each attempt.
type AttemptState struct {
	Attempt int
	LastErr error
}

// IsRetryable reports whether a failed attempt may be retried. Schema and
// build failures are permanent; transport, parse and validation failures
// share one budget.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrSchema) && !errors.Is(err, ErrBuild)
}

// runWithRetry drives one item through at most retries attempts, sleeping a
// fixed backoff between them. Exhaustion yields *RetriesExhaustedError.
func runWithRetry(
	ctx context.Context,
	retries int,
	backoff time.Duration,
	log *slog.Logger,
	attempt func(ctx context.Context, state AttemptState) (Record, error),
) (Record, error) {
	if retries <= 0 {
		retries = 1
	}

	var state AttemptState
	for n := 0; n < retries; n++ {
		state.Attempt = n
		out, err := attempt(ctx, state)
		if err == nil {
			if n > 0 {
				log.Debug("Attempt succeeded", "attempt", n+1)
			}
			return out, nil
		}
		if !IsRetryable(err) {
			log.Debug("Attempt failed permanently", "attempt", n+1, "error", err)
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		state.LastErr = err

		if n == retries-1 {
			log.Debug("Final attempt failed", "attempt", n+1, "error", err)
			break
		}
		log.Debug("Attempt failed, retrying", "attempt", n+1, "error", err, "delay", backoff)
		if err := sleepContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, &RetriesExhaustedError{Attempts: retries, Last: state.LastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
