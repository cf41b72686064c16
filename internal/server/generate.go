package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aigentive/openai-image-mcp/internal/cost"
	"github.com/aigentive/openai-image-mcp/internal/organizer"
	"github.com/aigentive/openai-image-mcp/internal/security"
	"github.com/aigentive/openai-image-mcp/internal/session"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

// generationSpec is the internal input to the shared generation pipeline.
// Prompt is the caller's raw instruction; when SessionID is set the
// pipeline prepends the bounded conversation context before calling
// upstream.
type generationSpec struct {
	Prompt     string
	UseCase    models.UseCase
	Model      string
	Quality    string
	Size       string
	Background string
	Format     string
	Count      int

	SessionID  string
	Category   organizer.Category
	Subdir     string
	Descriptor string
}

type savedImage struct {
	ID           string `json:"id"`
	FilePath     string `json:"file_path"`
	MetadataPath string `json:"metadata_path"`
	SizeBytes    int64  `json:"size_bytes"`
}

type generationResult struct {
	Success       bool          `json:"success"`
	SessionID     string        `json:"session_id,omitempty"`
	Model         string        `json:"model"`
	Size          string        `json:"size"`
	Quality       string        `json:"quality,omitempty"`
	Background    string        `json:"background,omitempty"`
	Format        string        `json:"format"`
	Prompt        string        `json:"prompt"`
	RevisedPrompt string        `json:"revised_prompt,omitempty"`
	Images        []savedImage  `json:"images"`
	Cost          cost.Estimate `json:"estimated_cost"`
}

// runGeneration drives one generation end to end: resolve the session
// context (failing before any upstream call if the session is gone),
// resolve auto parameters, call upstream, persist artifacts with their
// metadata sidecars, then record the turn in the session and the history
// log. Nothing is written to disk unless upstream succeeded.
func (s *Server) runGeneration(ctx context.Context, spec generationSpec) (*generationResult, error) {
	upstreamPrompt := spec.Prompt
	if spec.SessionID != "" {
		sess, err := s.store.Get(spec.SessionID)
		if err != nil {
			return nil, err
		}
		upstreamPrompt = s.builder.Prompt(sess, spec.Prompt)
		if spec.Model == "" {
			spec.Model = sess.Model
		}
	}

	sel := models.Select(s.registry, spec.UseCase, spec.Model, spec.Quality, spec.Size, spec.Prompt, spec.Background)

	req := &models.Request{
		Prompt:     upstreamPrompt,
		Model:      sel.Model,
		Size:       sel.Size,
		Quality:    sel.Quality,
		Background: spec.Background,
		Count:      spec.Count,
		Format:     sel.Format,
	}
	if spec.Format != "" {
		req.Format = models.OutputFormat(spec.Format)
	}
	if req.Count == 0 {
		req.Count = 1
	}

	resp, err := s.client.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := s.persistImages(ctx, spec, req, resp)
	if err != nil {
		return nil, err
	}

	if spec.SessionID != "" {
		if _, err := s.store.AppendTurn(spec.SessionID, session.RoleUser, spec.Prompt, ""); err != nil {
			// The session expired between the upstream call and the append.
			// The artifacts are already on disk; report the turn loss.
			s.log.Warn("session vanished after generation", zap.String("session_id", spec.SessionID))
		} else {
			for _, img := range result.Images {
				s.store.AppendTurn(spec.SessionID, session.RoleImage, spec.Prompt, img.ID)
			}
			s.store.SetModel(spec.SessionID, req.Model)
		}
	}

	return result, nil
}

// persistImages writes every returned image plus its sidecar, links
// records to the session, and appends to the history log.
func (s *Server) persistImages(ctx context.Context, spec generationSpec, req *models.Request, resp *models.Response) (*generationResult, error) {
	estimate := cost.EstimateCost(req.Model, req.Size, req.Quality, len(resp.Images))

	result := &generationResult{
		Success:       true,
		SessionID:     spec.SessionID,
		Model:         req.Model,
		Size:          req.Size,
		Quality:       req.Quality,
		Background:    req.Background,
		Format:        req.Format.String(),
		Prompt:        spec.Prompt,
		RevisedPrompt: resp.RevisedPrompt,
		Cost:          estimate,
	}

	for _, img := range resp.Images {
		data := img.Data
		if len(data) == 0 && img.URL != "" {
			var err error
			data, err = s.client.Download(ctx, img.URL)
			if err != nil {
				return nil, err
			}
		}

		path, err := s.organizer.SavePath(spec.Category, spec.Subdir, spec.Descriptor, req.Format)
		if err != nil {
			return nil, err
		}
		if err := s.organizer.WriteArtifact(path, data); err != nil {
			return nil, err
		}

		rec := &session.ImageRecord{
			ID:            uuid.New().String(),
			SessionID:     spec.SessionID,
			Prompt:        spec.Prompt,
			RevisedPrompt: resp.RevisedPrompt,
			Model:         req.Model,
			Size:          req.Size,
			Quality:       req.Quality,
			Background:    req.Background,
			Format:        req.Format.String(),
			FilePath:      path,
			SizeBytes:     int64(len(data)),
			CostUSD:       estimate.PerImage,
			CreatedAt:     time.Now().UTC(),
		}

		metaPath, err := s.organizer.WriteMetadata(path, rec)
		if err != nil {
			return nil, err
		}

		if spec.SessionID != "" {
			if err := s.store.AppendImage(spec.SessionID, *rec); err != nil {
				s.log.Warn("failed to link image to session",
					zap.String("session_id", spec.SessionID), zap.Error(err))
			}
		}
		if s.history != nil {
			if err := s.history.Record(ctx, rec); err != nil {
				s.log.Warn("failed to record generation history", zap.Error(err))
			}
		}

		result.Images = append(result.Images, savedImage{
			ID:           rec.ID,
			FilePath:     path,
			MetadataPath: metaPath,
			SizeBytes:    rec.SizeBytes,
		})
	}

	s.log.Info("generation complete",
		zap.String("model", req.Model),
		zap.String("size", req.Size),
		zap.Int("images", len(result.Images)),
		zap.Float64("cost_usd", estimate.Total))

	return result, nil
}

type generateImageArgs struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model"`
	Quality      string `json:"quality"`
	Size         string `json:"size"`
	Background   string `json:"background"`
	OutputFormat string `json:"output_format"`
	N            int    `json:"n"`
	SessionID    string `json:"session_id"`
}

func (s *Server) handleGenerateImage(ctx context.Context, raw json.RawMessage) (any, error) {
	var args generateImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", errInvalidParams)
	}
	if args.OutputFormat != "" && !models.OutputFormat(args.OutputFormat).IsValid() {
		return nil, fmt.Errorf("%w: output_format must be png, jpeg or webp", errInvalidParams)
	}

	spec := generationSpec{
		Prompt:     args.Prompt,
		UseCase:    models.UseCaseGeneral,
		Model:      args.Model,
		Quality:    args.Quality,
		Size:       args.Size,
		Background: args.Background,
		Format:     args.OutputFormat,
		Count:      args.N,
		SessionID:  args.SessionID,
		Category:   organizer.CategoryGeneral,
		Descriptor: args.Prompt,
	}
	if args.SessionID != "" {
		spec.Category = organizer.CategorySessions
		spec.Subdir = args.SessionID
	}

	return s.runGeneration(ctx, spec)
}

type generateInSessionArgs struct {
	SessionID          string `json:"session_id"`
	Prompt             string `json:"prompt"`
	ReferenceImagePath string `json:"reference_image_path"`
	MaskImagePath      string `json:"mask_image_path"`
}

func (s *Server) handleGenerateInSession(ctx context.Context, raw json.RawMessage) (any, error) {
	var args generateInSessionArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", errInvalidParams)
	}
	if args.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", errInvalidParams)
	}

	if args.ReferenceImagePath != "" {
		return s.editInSession(ctx, args)
	}

	return s.runGeneration(ctx, generationSpec{
		Prompt:     args.Prompt,
		UseCase:    models.UseCaseGeneral,
		SessionID:  args.SessionID,
		Category:   organizer.CategorySessions,
		Subdir:     args.SessionID,
		Descriptor: args.Prompt,
	})
}

// editInSession runs the session turn as an edit of a reference image
// rather than a fresh generation.
func (s *Server) editInSession(ctx context.Context, args generateInSessionArgs) (any, error) {
	sess, err := s.store.Get(args.SessionID)
	if err != nil {
		return nil, err
	}

	image, err := readLocalImage(args.ReferenceImagePath)
	if err != nil {
		return nil, err
	}
	var mask []byte
	if args.MaskImagePath != "" {
		if mask, err = readLocalImage(args.MaskImagePath); err != nil {
			return nil, err
		}
	}

	req := models.NewEditRequest(image, s.builder.Prompt(sess, args.Prompt))
	req.Mask = mask
	resp, err := s.client.Edit(ctx, req)
	if err != nil {
		return nil, err
	}

	spec := generationSpec{
		Prompt:     args.Prompt,
		UseCase:    models.UseCaseEdit,
		SessionID:  args.SessionID,
		Category:   organizer.CategorySessions,
		Subdir:     args.SessionID,
		Descriptor: args.Prompt,
	}
	result, err := s.persistImages(ctx, spec, &models.Request{
		Prompt: args.Prompt,
		Model:  req.Model,
		Size:   req.Size,
		Format: req.Format,
	}, resp)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.AppendTurn(args.SessionID, session.RoleUser, args.Prompt, ""); err == nil {
		for _, img := range result.Images {
			s.store.AppendTurn(args.SessionID, session.RoleImage, args.Prompt, img.ID)
		}
	}
	return result, nil
}

func readLocalImage(path string) ([]byte, error) {
	if err := security.ValidateLocalPath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", organizer.ErrIO, path, err)
	}
	return data, nil
}
