package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyRetriesUntilSuccess(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialDelay: 0, MaxDelay: 0, BackoffStrategy: BackoffConstant}

	attempts := 0
	err := policy.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicyGivesUpAfterMaxAttempts(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 2, InitialDelay: 0, MaxDelay: 0, BackoffStrategy: BackoffConstant}

	attempts := 0
	err := policy.Execute(context.Background(), func() error {
		attempts++
		return errors.New("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestNoRetryPolicyAttemptsOnce(t *testing.T) {
	policy := NoRetryPolicy()
	attempts := 0
	_ = policy.Execute(context.Background(), func() error {
		attempts++
		return errors.New("fails")
	})
	assert.Equal(t, 1, attempts)
}

func TestShouldRetry_NoRetryableErrorsRetriesEverything(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3}
	assert.True(t, policy.ShouldRetry(errors.New("anything")))
	assert.False(t, policy.ShouldRetry(nil))
}

func TestShouldRetry_MatchesConfiguredSubstrings(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, RetryableErrors: []string{"timeout", "connection refused"}}
	assert.True(t, policy.ShouldRetry(errors.New("dial: connection refused")))
	assert.True(t, policy.ShouldRetry(errors.New("context timeout exceeded")))
	assert.False(t, policy.ShouldRetry(errors.New("permission denied")))
}

func TestRetryPolicy_NonRetryableErrorStopsImmediately(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 5, InitialDelay: 0, MaxDelay: 0, BackoffStrategy: BackoffConstant, RetryableErrors: []string{"transient"}}

	attempts := 0
	err := policy.Execute(context.Background(), func() error {
		attempts++
		return errors.New("permission denied")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a non-retryable error should abort after the first attempt")
}

func TestRetryPolicy_OnRetryFiresBeforeEachRetry(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialDelay: 0, MaxDelay: 0, BackoffStrategy: BackoffConstant}

	var notified []int
	policy.OnRetry = func(attempt int, err error) {
		notified = append(notified, attempt)
	}

	attempts := 0
	err := policy.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, notified, "OnRetry should fire once per failed-but-retried attempt, not on the final success")
}
