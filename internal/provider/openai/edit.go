package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/aigentive/openai-image-mcp/internal/provider"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

func (c *Client) supportsEdit(model string) bool {
	cap, ok := c.registry.Get(model)
	return ok && cap.SupportsEdit
}

func (c *Client) Edit(ctx context.Context, req *models.EditRequest) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrRequestRejected, err)
	}

	if !c.supportsEdit(req.Model) {
		return nil, fmt.Errorf("%w: %s", provider.ErrEditNotSupported, req.Model)
	}

	// The multipart body is rebuilt per attempt: the reader is consumed
	// by each request.
	return c.callWithRetry(ctx, func(ctx context.Context) (*apiResponse, error) {
		body, contentType, err := encodeEditForm(req)
		if err != nil {
			return nil, err
		}
		return c.postMultipart(ctx, c.baseURL+"/images/edits", body, contentType)
	})
}

func encodeEditForm(req *models.EditRequest) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	imagePart, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := imagePart.Write(req.Image); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}

	if len(req.Mask) > 0 {
		maskPart, err := writer.CreateFormFile("mask", "mask.png")
		if err != nil {
			return nil, "", fmt.Errorf("failed to create mask part: %w", err)
		}
		if _, err := maskPart.Write(req.Mask); err != nil {
			return nil, "", fmt.Errorf("failed to write mask: %w", err)
		}
	}

	fields := map[string]string{
		"prompt": req.Prompt,
		"model":  req.Model,
	}
	if req.Size != "" && req.Size != "auto" {
		fields["size"] = req.Size
	}
	if req.Quality != "" && req.Model == "gpt-image-1" {
		fields["quality"] = req.Quality
	}
	if req.Count > 0 {
		fields["n"] = fmt.Sprintf("%d", req.Count)
	}
	if req.Model == "gpt-image-1" && req.Format != "" {
		fields["output_format"] = req.Format.String()
	} else if req.Model == "dall-e-2" {
		fields["response_format"] = "url"
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

func (c *Client) postMultipart(ctx context.Context, url string, body *bytes.Buffer, contentType string) (*apiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
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
