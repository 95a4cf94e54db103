package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklinehq/taskline"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(), func() (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", taskline.NewTransientError("flaky", nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestDoPermanentPropagatesImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(), func() (int, error) {
		calls++
		return 0, taskline.NewPermanentError("no retry", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, taskline.IsPermanent(err))
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := taskline.NewTransientError("still down", nil)
	_, err := Do(context.Background(), fastConfig(), func() (int, error) {
		calls++
		return 0, transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestDoRespectsContextDuringBackoff(t *testing.T) {
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: time.Hour, // backoff would block forever
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, cfg, func() (int, error) {
		return 0, taskline.NewTransientError("flaky", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigDelay(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0, // deterministic
	}

	assert.Equal(t, 100*time.Millisecond, cfg.Delay(0))
	assert.Equal(t, 200*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 400*time.Millisecond, cfg.Delay(2))
	assert.Equal(t, 100*time.Millisecond, cfg.Delay(-1))
}

func TestConfigDelayMaxCap(t *testing.T) {
	cfg := Config{
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
	assert.Equal(t, 5*time.Second, cfg.Delay(10))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(taskline.NewTransientError("x", nil)))
	assert.False(t, IsTransient(taskline.NewPermanentError("x", nil)))
	assert.False(t, IsTransient(taskline.NewCancellationError("x", nil)))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(context.DeadlineExceeded))

	// Heuristics for uncategorized errors.
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(errors.New("429 too many requests")))
	assert.False(t, IsTransient(errors.New("invalid api key")))
}
