package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aigentive/openai-image-mcp/internal/organizer"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

const (
	maxBatchPrompts    = 10
	maxBatchVariations = 3
)

type batchGenerateArgs struct {
	Prompts             []string `json:"prompts"`
	VariationsPerPrompt int      `json:"variations_per_prompt"`
	Size                string   `json:"size"`
	Quality             string   `json:"quality"`
}

type batchEntry struct {
	Prompt    string       `json:"prompt"`
	Success   bool         `json:"success"`
	Error     string       `json:"error,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
	Images    []savedImage `json:"images,omitempty"`
}

// handleBatchGenerate runs every prompt independently: one rejected or
// failed prompt is reported in its entry and the rest still run.
func (s *Server) handleBatchGenerate(ctx context.Context, raw json.RawMessage) (any, error) {
	var args batchGenerateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if len(args.Prompts) == 0 {
		return nil, fmt.Errorf("%w: prompts is required", errInvalidParams)
	}
	if len(args.Prompts) > maxBatchPrompts {
		return nil, fmt.Errorf("%w: at most %d prompts per batch, got %d", errInvalidParams, maxBatchPrompts, len(args.Prompts))
	}
	variations := args.VariationsPerPrompt
	if variations == 0 {
		variations = 1
	}
	if variations < 1 || variations > maxBatchVariations {
		return nil, fmt.Errorf("%w: variations_per_prompt must be between 1 and %d", errInvalidParams, maxBatchVariations)
	}

	batchID := uuid.New().String()[:8]
	s.log.Info("batch started",
		zap.String("batch_id", batchID),
		zap.Int("prompts", len(args.Prompts)),
		zap.Int("variations", variations))

	entries := make([]batchEntry, 0, len(args.Prompts))
	succeeded := 0
	totalImages := 0

	for _, prompt := range args.Prompts {
		entry := batchEntry{Prompt: prompt}
		if prompt == "" {
			entry.Error = "empty prompt"
			entry.ErrorKind = "invalid_params"
			entries = append(entries, entry)
			continue
		}

		result, err := s.runGeneration(ctx, generationSpec{
			Prompt:     prompt,
			UseCase:    models.UseCaseBatch,
			Size:       args.Size,
			Quality:    args.Quality,
			Count:      variations,
			Category:   organizer.CategoryBatch,
			Subdir:     "batch_" + batchID,
			Descriptor: prompt,
		})
		if err != nil {
			entry.Error = err.Error()
			entry.ErrorKind = errorKind(err)
		} else {
			entry.Success = true
			entry.Images = result.Images
			succeeded++
			totalImages += len(result.Images)
		}
		entries = append(entries, entry)
	}

	return map[string]any{
		"success":      true,
		"batch_id":     batchID,
		"prompts":      len(args.Prompts),
		"succeeded":    succeeded,
		"failed":       len(args.Prompts) - succeeded,
		"total_images": totalImages,
		"results":      entries,
	}, nil
}
