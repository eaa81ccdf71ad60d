package engine

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffStrategy selects how RetryPolicy computes inter-attempt delay.
type BackoffStrategy int

const (
	BackoffConstant BackoffStrategy = iota
	BackoffLinear
	BackoffExponential
)

// RetryPolicy governs retries of a failing action-handler dispatch
// (spec.md §4.9 action dispatch). Delay computation is delegated to
// cenkalti/backoff rather than hand-rolled, matching the strategy the
// rest of the dependency stack follows.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffStrategy BackoffStrategy

	// RetryableErrors restricts retries to errors whose message contains
	// one of these substrings. An empty list retries every error.
	RetryableErrors []string

	// OnRetry, if set, is called after each failed attempt that will be
	// retried, before the backoff delay is waited out.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy returns a 3-attempt exponential-backoff policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffStrategy: BackoffExponential,
	}
}

// NoRetryPolicy returns a policy that attempts a handler exactly once.
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 1}
}

func (rp *RetryPolicy) newBackOff() backoff.BackOff {
	var b backoff.BackOff
	switch rp.BackoffStrategy {
	case BackoffConstant:
		b = backoff.NewConstantBackOff(rp.InitialDelay)
	case BackoffLinear:
		b = &linearBackOff{initial: rp.InitialDelay, max: rp.MaxDelay}
	default:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = rp.InitialDelay
		eb.MaxInterval = rp.MaxDelay
		eb.MaxElapsedTime = 0
		b = eb
	}
	if rp.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(rp.MaxAttempts-1))
	}
	return b
}

// ShouldRetry reports whether err is retryable under this policy. With no
// RetryableErrors configured every non-nil error is retryable; otherwise
// err's message must contain at least one of the configured substrings.
func (rp *RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if len(rp.RetryableErrors) == 0 {
		return true
	}
	msg := err.Error()
	for _, pattern := range rp.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Execute runs fn, retrying per the policy until it succeeds, exhausts
// MaxAttempts, hits a non-retryable error (ShouldRetry returns false), or
// ctx is done. OnRetry, if set, fires after each attempt that will be
// retried.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	if rp.MaxAttempts <= 0 {
		rp.MaxAttempts = 1
	}

	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !rp.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, _ time.Duration) {
		if rp.OnRetry != nil {
			rp.OnRetry(attempt, err)
		}
	}

	return backoff.RetryNotify(op, backoff.WithContext(rp.newBackOff(), ctx), notify)
}

// linearBackOff increases delay linearly with each call to NextBackOff,
// filling the gap cenkalti/backoff's built-ins leave for linear growth.
type linearBackOff struct {
	initial time.Duration
	max     time.Duration
	attempt int
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	d := l.initial * time.Duration(l.attempt)
	if l.max > 0 && d > l.max {
		d = l.max
	}
	return d
}
