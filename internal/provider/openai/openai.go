package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aigentive/openai-image-mcp/internal/provider"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

type apiRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	OutputFormat   string `json:"output_format,omitempty"`
	Background     string `json:"background,omitempty"`
}

type apiResponse struct {
	Created int64       `json:"created"`
	Data    []imageData `json:"data"`
	Error   *apiError   `json:"error,omitempty"`
}

type imageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Client talks to the OpenAI Images API. Transient failures are retried
// with exponential backoff; terminal rejections surface immediately.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	registry   *models.ModelRegistry
	retry      retryPolicy
	log        *zap.Logger
}

func New(cfg *provider.Config, registry *models.ModelRegistry, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}
	if log == nil {
		log = zap.NewNop()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		registry: registry,
		retry:    defaultRetryPolicy(),
		log:      log,
	}, nil
}

func (c *Client) Generate(ctx context.Context, req *models.Request) (*models.Response, error) {
	cap, ok := c.registry.Get(req.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownModel, req.Model)
	}
	cap.ApplyDefaults(req)
	if err := cap.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrRequestRejected, err)
	}

	apiReq := c.buildAPIRequest(req)
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.callWithRetry(ctx, func(ctx context.Context) (*apiResponse, error) {
		return c.postJSON(ctx, c.baseURL+"/images/generations", body)
	})
}

func (c *Client) buildAPIRequest(req *models.Request) *apiRequest {
	apiReq := &apiRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		N:       req.Count,
		Size:    req.Size,
		Quality: req.Quality,
	}

	switch req.Model {
	case "gpt-image-1":
		if req.Format != "" {
			apiReq.OutputFormat = req.Format.String()
		}
		if req.Background == "transparent" {
			apiReq.Background = "transparent"
		}
	default:
		// dall-e models return hosted URLs.
		apiReq.ResponseFormat = "url"
	}

	return apiReq
}

func (c *Client) postJSON(ctx context.Context, url string, body []byte) (*apiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	return decodeResponse(resp.StatusCode, respBody)
}

// decodeResponse classifies the upstream reply. Rate limits and 5xx are
// transient; any other non-200 is a terminal rejection carrying the
// upstream message verbatim.
func decodeResponse(status int, body []byte) (*apiResponse, error) {
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil && status == http.StatusOK {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		msg := fmt.Sprintf("status %d", status)
		if apiResp.Error != nil {
			msg = apiResp.Error.Message
		}
		return nil, &transientError{err: fmt.Errorf("%s", msg)}
	case status != http.StatusOK:
		msg := fmt.Sprintf("status %d", status)
		if apiResp.Error != nil {
			msg = apiResp.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", provider.ErrRequestRejected, msg)
	case apiResp.Error != nil:
		return nil, fmt.Errorf("%w: %s", provider.ErrRequestRejected, apiResp.Error.Message)
	}

	return &apiResp, nil
}

func buildResponse(apiResp *apiResponse) (*models.Response, error) {
	response := &models.Response{
		Images: make([]models.GeneratedImage, 0, len(apiResp.Data)),
	}

	for i, data := range apiResp.Data {
		img := models.GeneratedImage{
			Index: i,
			URL:   data.URL,
		}

		if data.B64JSON != "" {
			img.Base64 = data.B64JSON
			decoded, err := base64.StdEncoding.DecodeString(data.B64JSON)
			if err != nil {
				return nil, fmt.Errorf("failed to decode image %d: %w", i, err)
			}
			img.Data = decoded
		}

		if i == 0 && data.RevisedPrompt != "" {
			response.RevisedPrompt = data.RevisedPrompt
		}

		response.Images = append(response.Images, img)
	}

	return response, nil
}

// Download fetches image bytes from a hosted result URL.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
