package taskline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCategories(t *testing.T) {
	cause := errors.New("boom")

	assert.True(t, IsValidation(NewValidationError("bad request", nil)))
	assert.True(t, IsTransient(NewTransientError("store write failed", cause)))
	assert.True(t, IsPermanent(NewPermanentError("no such model", nil)))
	assert.True(t, IsCanceled(NewCancellationError("canceled by caller", nil)))
	assert.Equal(t, ErrorAgent, CategoryOf(NewAgentError("tool blew up", cause)))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewAgentError("generation failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "generation failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestWrappedCategorySurvives(t *testing.T) {
	err := fmt.Errorf("saving snapshot: %w", NewTransientError("redis timeout", nil))
	assert.True(t, IsTransient(err))
	assert.False(t, IsPermanent(err))
}

func TestRetryableOnlyForTransient(t *testing.T) {
	assert.True(t, NewTransientError("x", nil).Retryable())
	assert.False(t, NewAgentError("x", nil).Retryable())
	assert.False(t, NewValidationError("x", nil).Retryable())
}

func TestIsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, IsCanceled(ctx.Err()))
}

func TestUncategorizedDefaultsToPermanent(t *testing.T) {
	assert.Equal(t, ErrorPermanent, CategoryOf(errors.New("who knows")))
	assert.False(t, IsTransient(errors.New("who knows")))
}
