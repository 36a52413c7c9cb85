package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tweska/TildeverseGallery/pkg/logger"
)

// Operation is one attempt of something that may fail transiently
type Operation func(ctx context.Context) error

// Policy bounds the retries of an operation
type Policy struct {
	// MaxAttempts counts the first try; values below 1 mean a single try
	MaxAttempts int
	Backoff     BackoffStrategy
}

// DefaultPolicy tries three times with exponential backoff
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: DefaultExponentialBackoff()}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so that Do returns it without retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs op until it succeeds, returns a permanent error, ctx is done or
// the attempts are used up. Permanent errors are returned unwrapped.
func Do(ctx context.Context, policy Policy, log logger.Logger, op Operation) error {
	if log == nil {
		log = logger.NewNopLogger()
	}
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := policy.Backoff
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("Operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		delay := backoff.NextDelay(attempt)
		log.WarnWithFields("Retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": attempts,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", lastErr)
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
