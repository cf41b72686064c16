package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aigentive/openai-image-mcp/internal/history"
	"github.com/aigentive/openai-image-mcp/internal/organizer"
	"github.com/aigentive/openai-image-mcp/internal/security"
	"github.com/aigentive/openai-image-mcp/internal/session"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

type editImageArgs struct {
	ImagePath    string `json:"image_path"`
	ImageURL     string `json:"image_url"`
	Prompt       string `json:"prompt"`
	MaskPath     string `json:"mask_path"`
	Model        string `json:"model"`
	Size         string `json:"size"`
	Quality      string `json:"quality"`
	OutputFormat string `json:"output_format"`
	N            int    `json:"n"`
}

func (s *Server) handleEditImage(ctx context.Context, raw json.RawMessage) (any, error) {
	var args editImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", errInvalidParams)
	}
	if args.ImagePath == "" && args.ImageURL == "" {
		return nil, fmt.Errorf("%w: image_path or image_url is required", errInvalidParams)
	}
	if args.ImagePath != "" && args.ImageURL != "" {
		return nil, fmt.Errorf("%w: image_path and image_url are mutually exclusive", errInvalidParams)
	}

	var (
		image []byte
		err   error
	)
	if args.ImagePath != "" {
		image, err = readLocalImage(args.ImagePath)
	} else {
		if err = security.ValidateImageURL(args.ImageURL); err == nil {
			image, err = s.client.Download(ctx, args.ImageURL)
		}
	}
	if err != nil {
		return nil, err
	}

	sel := models.Select(s.registry, models.UseCaseEdit, args.Model, args.Quality, args.Size, args.Prompt, "")

	req := models.NewEditRequest(image, args.Prompt)
	req.Model = sel.Model
	req.Size = sel.Size
	req.Quality = sel.Quality
	req.Format = sel.Format
	if args.OutputFormat != "" {
		f := models.OutputFormat(args.OutputFormat)
		if !f.IsValid() {
			return nil, fmt.Errorf("%w: output_format must be png, jpeg or webp", errInvalidParams)
		}
		req.Format = f
	}
	if args.N > 0 {
		req.Count = args.N
	}
	if args.MaskPath != "" {
		if req.Mask, err = readLocalImage(args.MaskPath); err != nil {
			return nil, err
		}
	}

	resp, err := s.client.Edit(ctx, req)
	if err != nil {
		return nil, err
	}

	spec := generationSpec{
		Prompt:     args.Prompt,
		UseCase:    models.UseCaseEdit,
		Category:   organizer.CategoryEdited,
		Descriptor: args.Prompt,
	}
	return s.persistImages(ctx, spec, &models.Request{
		Prompt:  args.Prompt,
		Model:   req.Model,
		Size:    req.Size,
		Quality: req.Quality,
		Format:  req.Format,
	}, resp)
}

type promoteImageArgs struct {
	ImagePath   string `json:"image_path"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handlePromoteImage(ctx context.Context, raw json.RawMessage) (any, error) {
	var args promoteImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.ImagePath == "" {
		return nil, fmt.Errorf("%w: image_path is required", errInvalidParams)
	}
	if args.Description == "" {
		return nil, fmt.Errorf("%w: description is required", errInvalidParams)
	}
	if err := security.ValidateLocalPath(args.ImagePath); err != nil {
		return nil, err
	}
	if _, err := os.Stat(args.ImagePath); err != nil {
		return nil, fmt.Errorf("%w: image not found: %v", organizer.ErrIO, err)
	}

	rec := s.lookupProvenance(ctx, args.ImagePath)

	name := args.Name
	if name == "" {
		name = "promoted"
	}
	summary, err := s.store.Create(args.Description, rec.Model, name)
	if err != nil {
		return nil, err
	}

	rec.SessionID = summary.ID
	if err := s.store.AppendImage(summary.ID, *rec); err != nil {
		return nil, err
	}
	if _, err := s.store.AppendTurn(summary.ID, session.RoleImage, rec.Prompt, rec.ID); err != nil {
		return nil, err
	}

	s.log.Info("image promoted to session",
		zap.String("session_id", summary.ID),
		zap.String("image_path", args.ImagePath))

	return map[string]any{
		"success":    true,
		"session_id": summary.ID,
		"image":      rec,
	}, nil
}

// lookupProvenance recovers the generation record for an existing file:
// the JSON sidecar first, the history log second, and a minimal stub when
// neither has it (foreign files can still seed a session).
func (s *Server) lookupProvenance(ctx context.Context, imagePath string) *session.ImageRecord {
	if rec, err := organizer.ReadMetadata(organizer.MetadataPath(imagePath)); err == nil {
		return rec
	}
	if s.history != nil {
		if rec, err := s.history.FindByPath(ctx, imagePath); err == nil {
			return rec
		} else if !errors.Is(err, history.ErrRecordNotFound) {
			s.log.Warn("history lookup failed", zap.Error(err))
		}
	}
	return &session.ImageRecord{
		ID:       uuid.New().String(),
		FilePath: imagePath,
	}
}
