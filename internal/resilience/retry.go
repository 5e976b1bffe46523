package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Do calls fn until it succeeds, fails with an error p does not retry, runs
// out of attempts, or ctx ends. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.Attempts || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if !sleep(ctx, p.jittered(p.Delay(attempt))) {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// LogRetries returns an OnRetry hook that logs each retry of op.
func LogRetries(op string, fields ...zap.Field) func(int, error) {
	log := zap.L().With(fields...)
	return func(attempt int, err error) {
		log.Warn("retrying",
			zap.String("op", op),
			zap.Int("failed_attempt", attempt),
			zap.Error(err),
		)
	}
}
