// Package retry implements the bounded exponential backoff used by every
// externally-fallible pipeline step: attempts = MaxRetries+1, the delay
// doubling from Base before each retry.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Policy struct {
	MaxRetries int
	Base       time.Duration
}

// DefaultPolicy mirrors the historical constants: three retries, one second
// base delay (1s, 2s, 4s).
var DefaultPolicy = Policy{MaxRetries: 3, Base: time.Second}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying; Do returns it immediately.
// Structural failures (malformed content, missing shape) use this.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether the error carries the Permanent marker.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs fn until it succeeds, returns a permanent error, the attempt budget
// is exhausted, or the context is cancelled. The sleep between attempts
// honors context cancellation.
func Do(ctx context.Context, p Policy, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Base << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			var pe *permanentError
			errors.As(err, &pe)
			return pe.err
		}
		lastErr = err
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.MaxRetries+1, lastErr)
}
