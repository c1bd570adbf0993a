package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"
)

// RetryTarget wraps another Target and retries transient errors with
// exponential backoff and jitter.
type RetryTarget struct {
	inner      Target
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryTarget creates a Target that retries transient errors up to
// maxRetries times.
func NewRetryTarget(inner Target, maxRetries int) *RetryTarget {
	return &RetryTarget{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   10 * time.Second,
	}
}

func (r *RetryTarget) Name() string {
	return r.inner.Name()
}

// Put buffers body so every attempt sends the full payload.
func (r *RetryTarget) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	return r.retryOp(ctx, func() error {
		return r.inner.Put(ctx, key, bytes.NewReader(data), opts)
	})
}

func (r *RetryTarget) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := r.retryOp(ctx, func() error {
		var e error
		rc, e = r.inner.Get(ctx, key)
		return e
	})
	return rc, err
}

func (r *RetryTarget) Delete(ctx context.Context, key string) error {
	return r.retryOp(ctx, func() error {
		return r.inner.Delete(ctx, key)
	})
}

func (r *RetryTarget) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

// isTransient reports whether err may succeed on retry.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (r *RetryTarget) retryOp(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		lastErr = op()
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == r.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}
	return lastErr
}

// backoff doubles the delay per attempt and adds +/- 25% jitter.
func (r *RetryTarget) backoff(attempt int) time.Duration {
	delay := r.baseDelay << attempt
	if delay > r.maxDelay || delay <= 0 {
		delay = r.maxDelay
	}
	if q := int64(delay / 2); q > 0 {
		delay += time.Duration(rand.Int63n(q)) - delay/4
	}
	if delay < 0 {
		delay = r.baseDelay
	}
	return delay
}
