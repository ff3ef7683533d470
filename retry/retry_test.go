package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adolfousier/opencrab"
)

// fastConfig returns a config with negligible delays for tests.
func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	// Three consecutive 503s, then success.
	calls := 0
	result, err := Do(context.Background(), fastConfig(5), func() (string, error) {
		calls++
		if calls <= 3 {
			return "", opencrab.NewTransientError("service unavailable", 503, nil)
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, 4, calls)
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	// A single 401 fails immediately with no retry.
	calls := 0
	_, err := Do(context.Background(), fastConfig(5), func() (string, error) {
		calls++
		return "", opencrab.NewPermanentError("unauthorized", 401, nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 401, opencrab.StatusCodeOf(err))
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		return 0, opencrab.NewTransientError("overloaded", 529, nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, opencrab.IsTransient(err))
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: time.Hour, // force the wait path
		MaxDelay:     time.Hour,
		Multiplier:   1.0,
	}

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, func() (int, error) {
			return 0, opencrab.NewTransientError("retry me", 503, nil)
		})
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoStreamRetriesConnectionOnly(t *testing.T) {
	calls := 0
	ch, err := DoStream(context.Background(), fastConfig(3), func() (<-chan int, error) {
		calls++
		if calls == 1 {
			return nil, opencrab.NewTransientError("bad gateway", 502, nil)
		}
		out := make(chan int, 1)
		out <- 42
		close(out)
		return out, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 42, <-ch)
}

func TestEffectiveDelayHonorsRetryAfter(t *testing.T) {
	err := opencrab.NewTransientErrorWithRetry("rate limited", 429, 10*time.Second, nil)
	assert.Equal(t, 10*time.Second, effectiveDelay(time.Second, err))
	assert.Equal(t, time.Minute, effectiveDelay(time.Minute, err))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"categorized transient", opencrab.NewTransientError("x", 503, nil), true},
		{"categorized permanent", opencrab.NewPermanentError("x", 401, nil), false},
		{"categorized user input", opencrab.NewUserInputError("x", 400, nil), false},
		{"googleapi 503", errors.New("googleapi: Error 503: backend error"), true},
		{"googleapi 400", errors.New("googleapi: Error 400: bad request"), false},
		{"message pattern", errors.New("dial tcp: connection refused"), true},
		{"plain error", errors.New("something else entirely"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestConfigDelay(t *testing.T) {
	cfg := Config{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, time.Second, cfg.Delay(0))
	assert.Equal(t, 2*time.Second, cfg.Delay(1))
	assert.Equal(t, 4*time.Second, cfg.Delay(2))
	// Capped at MaxDelay.
	assert.Equal(t, 10*time.Second, cfg.Delay(10))
	// Negative attempts clamp to zero.
	assert.Equal(t, time.Second, cfg.Delay(-1))
}
