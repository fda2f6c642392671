package ai

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	assert.False(t, IsTransient(nil))

	permanent := Permanent(fmt.Errorf("bad request"))
	assert.True(t, IsPermanent(permanent))
	assert.False(t, IsTransient(permanent))

	badKey := &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}
	assert.True(t, IsPermanent(badKey))

	rateLimited := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
	assert.False(t, IsPermanent(rateLimited))
	assert.True(t, IsTransient(rateLimited))

	upstream := &openai.APIError{HTTPStatusCode: http.StatusBadGateway}
	assert.True(t, IsTransient(upstream))

	assert.True(t, IsTransient(context.DeadlineExceeded))
}

func TestWithRetry_PermanentNotRetried(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(fmt.Errorf("invalid credential"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_TransientRetried(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), "test", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}
		}
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_Exhausted(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}
	})
	assert.Error(t, err)
	assert.Equal(t, RETRY_MAX_ATTEMPTS, calls)
}
