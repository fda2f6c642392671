package ai

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

const (
	RETRY_MAX_ATTEMPTS = 3
	RETRY_BASE_DELAY   = time.Millisecond * 500
)

// WithRetry 对瞬时错误做指数退避重试，永久错误立即返回。
func WithRetry[T any](ctx context.Context, name string, call func(ctx context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)

	for attempt := 0; attempt < RETRY_MAX_ATTEMPTS; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			slog.Warn("retrying provider call",
				slog.String("call", name),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err = call(ctx)
		if err == nil {
			return result, nil
		}

		if !IsTransient(err) {
			return result, err
		}
	}

	return result, err
}

func backoffDelay(attempt int) time.Duration {
	delay := RETRY_BASE_DELAY << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	return delay + jitter
}
