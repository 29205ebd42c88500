// Package retry re-runs operations that fail with types.ErrBusy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joshuapare/famkit/pkg/types"
)

const (
	// InitialBackoff is the sleep before the second attempt.
	InitialBackoff = 50 * time.Microsecond

	// MaxBackoff caps the exponential growth.
	MaxBackoff = 10 * time.Millisecond
)

// NewBackOff returns the policy every retry loop shares: 50µs doubling up to
// MaxBackoff, with 50% jitter so contending processes spread out. It never
// gives up on its own.
func NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialBackoff
	b.MaxInterval = MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// While calls fn until it succeeds, fails with an error retryable rejects,
// or b stops. It returns fn's last result, or ctx.Err() when the context
// ends first.
func While(ctx context.Context, b backoff.BackOff, retryable func(error) bool, fn func() error) error {
	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// OnBusy calls fn until it returns something other than a busy error or ctx
// is done.
func OnBusy(ctx context.Context, fn func() error) error {
	return While(ctx, NewBackOff(), types.Retryable, fn)
}

// Attempts is While bounded by a number of calls instead of a deadline. The
// error of the last call is returned when all attempts fail.
func Attempts(n int, retryable func(error) bool, fn func() error) error {
	b := backoff.WithMaxRetries(NewBackOff(), uint64(max(n-1, 0)))
	return While(context.Background(), b, retryable, fn)
}
