// Package retry runs fallible operations under a bounded exponential-backoff
// policy built on failsafe-go, reporting how many attempts were spent.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Policy bounds how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first. Minimum 1.
	Attempts int
	// BaseDelay is the wait before the second attempt; it doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// JitterFactor randomizes each delay by +/- this fraction.
	JitterFactor float64
}

// DefaultPolicy returns 3 attempts, 500ms doubling to a 4s cap, 10% jitter.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:     3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		JitterFactor: 0.1,
	}
}

func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.JitterFactor < 0 || p.JitterFactor >= 1 {
		p.JitterFactor = 0
	}
	return p
}

// Result is the explicit outcome of a retried operation.
type Result[T any] struct {
	Value    T
	Attempts int
	// Exhausted is true when every allowed attempt failed with a retryable error.
	Exhausted bool
	// Err is the last failure, unwrapped from the retry machinery.
	Err error
}

// OK reports whether the operation eventually succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do stops immediately and
// reports the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn until it succeeds, returns a permanent error, the context ends,
// or the policy's attempts are spent. fn receives the 1-based attempt number.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) Result[T] {
	p = p.normalized()

	policy := retrypolicy.NewBuilder[T]().
		WithBackoff(p.BaseDelay, p.MaxDelay).
		WithMaxRetries(p.Attempts - 1).
		WithJitterFactor(p.JitterFactor).
		HandleIf(func(_ T, err error) bool {
			return err != nil && !IsPermanent(err) && ctx.Err() == nil
		}).
		ReturnLastFailure().
		Build()

	attempts := 0
	var (
		done   bool
		doneOK T
	)
	value, err := failsafe.With(policy).WithContext(ctx).Get(func() (T, error) {
		attempts++
		v, err := fn(ctx, attempts)
		if err == nil {
			done, doneOK = true, v
		}
		return v, err
	})

	res := Result[T]{Value: value, Attempts: attempts}
	// failsafe reports the context error when ctx ends during a successful
	// attempt; the side effect already happened, so keep the success.
	if done {
		res.Value = doneOK
		return res
	}
	if err == nil {
		return res
	}

	var p2 *permanentError
	if errors.As(err, &p2) {
		res.Err = p2.err
		return res
	}
	res.Err = err
	res.Exhausted = attempts >= p.Attempts && ctx.Err() == nil
	return res
}
