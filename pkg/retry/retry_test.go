package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		MaxElapsedTime:  time.Second,
	}
}

func TestRetryWithCallback_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	retries := 0

	err := RetryWithCallback(context.Background(), fastPolicy(5), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		retries++
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, retries)
}

func TestRetryWithCallback_FatalStopsImmediately(t *testing.T) {
	attempts := 0
	fatal := NewFatalError(errors.New("rejected"))

	err := RetryWithCallback(context.Background(), fastPolicy(5), func() error {
		attempts++
		return fatal
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var fatalErr FatalError
	assert.True(t, errors.As(err, &fatalErr))
}

func TestRetryWithCallback_ExhaustsMaxAttempts(t *testing.T) {
	attempts := 0

	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		attempts++
		return errors.New("still down")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithCallback_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := RetryWithCallback(ctx, fastPolicy(10), func() error {
		attempts++
		cancel()
		return errors.New("transient")
	}, nil)

	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}
