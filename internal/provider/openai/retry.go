package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aigentive/openai-image-mcp/internal/provider"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

// transientError wraps failures expected to resolve on retry: network
// errors, rate limits, 5xx responses. Everything else is terminal.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// retryPolicy bounds the retry loop: the initial attempt plus up to
// maxRetries retries, so maxRetries=3 means four upstream calls at most.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// callWithRetry runs one upstream call through a bounded retry loop.
// Terminal failures exit immediately; transient failures back off
// exponentially until the retry ceiling, then surface as
// ErrUpstreamUnavailable wrapping the last error.
func (c *Client) callWithRetry(ctx context.Context, call func(ctx context.Context) (*apiResponse, error)) (*models.Response, error) {
	var lastErr error

	delay := c.retry.baseDelay
	for attempt := 0; attempt <= c.retry.maxRetries; attempt++ {
		apiResp, err := call(ctx)
		if err == nil {
			return buildResponse(apiResp)
		}

		te, transient := asTransient(err)
		if !transient {
			return nil, err
		}
		lastErr = te.err

		c.log.Warn("transient upstream failure",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", c.retry.maxRetries),
			zap.Error(te.err))

		if attempt == c.retry.maxRetries {
			break
		}
		if err := c.retry.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w: %v", provider.ErrUpstreamUnavailable, lastErr)
}

func asTransient(err error) (*transientError, bool) {
	var te *transientError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
