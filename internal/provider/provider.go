package provider

import (
	"context"
	"errors"

	"github.com/aigentive/openai-image-mcp/pkg/models"
)

var (
	ErrAPIKeyRequired = errors.New("API key is required")

	// ErrRequestRejected marks terminal upstream failures: malformed
	// parameters, content-policy rejections, any non-retryable 4xx. The
	// upstream message is preserved in the wrapping error and the call is
	// never retried.
	ErrRequestRejected = errors.New("request rejected by upstream")

	// ErrUpstreamUnavailable marks transient failures that persisted
	// through the retry budget (network errors, rate limits, 5xx).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	ErrEditNotSupported = errors.New("image editing not supported by model")
)

// Client is the outbound boundary to the image generation service.
// Implementations perform network calls only; persisting results is the
// caller's job.
type Client interface {
	Generate(ctx context.Context, req *models.Request) (*models.Response, error)
	Edit(ctx context.Context, req *models.EditRequest) (*models.Response, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
}
