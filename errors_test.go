package opencrab

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		category  ErrorCategory
		retryable bool
	}{
		{
			name:      "transient error",
			err:       NewTransientError("rate limited", 429, nil),
			category:  ErrorTransient,
			retryable: true,
		},
		{
			name:      "permanent error",
			err:       NewPermanentError("invalid api key", 401, nil),
			category:  ErrorPermanent,
			retryable: false,
		},
		{
			name:      "user input error",
			err:       NewUserInputError("bad request", 400, nil),
			category:  ErrorUserInput,
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category())
			assert.Equal(t, tt.retryable, tt.err.Retryable())
		})
	}
}

func TestErrorMessage(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewTransientError("server overloaded", 503, nil)
		assert.Equal(t, "server overloaded", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewTransientError("request failed", 0, cause)
		assert.Equal(t, "request failed: connection reset", err.Error())
		assert.Equal(t, cause, err.Unwrap())
		assert.True(t, errors.Is(err, cause))
	})
}

func TestErrorPredicates(t *testing.T) {
	t.Run("direct errors", func(t *testing.T) {
		assert.True(t, IsTransient(NewTransientError("x", 503, nil)))
		assert.True(t, IsPermanent(NewPermanentError("x", 401, nil)))
		assert.True(t, IsUserInput(NewUserInputError("x", 400, nil)))
	})

	t.Run("wrapped errors", func(t *testing.T) {
		inner := NewTransientError("x", 429, nil)
		wrapped := fmt.Errorf("call failed: %w", inner)
		assert.True(t, IsTransient(wrapped))
		assert.False(t, IsPermanent(wrapped))
	})

	t.Run("uncategorized errors", func(t *testing.T) {
		plain := errors.New("plain")
		assert.False(t, IsTransient(plain))
		assert.False(t, IsPermanent(plain))
		assert.False(t, IsUserInput(plain))
	})
}

func TestStatusCodeAndRetryAfter(t *testing.T) {
	err := NewTransientErrorWithRetry("rate limited", 429, 30*time.Second, nil)
	wrapped := fmt.Errorf("chat: %w", err)

	assert.Equal(t, 429, StatusCodeOf(wrapped))
	assert.Equal(t, 30*time.Second, RetryAfterOf(wrapped))
	assert.Equal(t, 0, StatusCodeOf(errors.New("plain")))
	assert.Equal(t, time.Duration(0), RetryAfterOf(errors.New("plain")))
}
