// Package retry provides the fixed-delay retry policy applied uniformly to
// outbound calls. Backoff is deliberately non-exponential: every collaborator
// here is called with a small budget of quick attempts, never an open-ended
// loop.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy is a reusable retry policy value.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

// permanentError marks an error that must not be retried (application-level
// rejections, as opposed to transient network failure).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do stops immediately instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs op until it succeeds, returns a permanent error, the attempt budget
// is exhausted, or ctx is done. The last error is returned, unwrapped from
// its permanent marker.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = op()
		if err == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
	}
	return err
}
