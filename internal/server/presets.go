package server

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/aigentive/openai-image-mcp/internal/organizer"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

// Prompt fragments for the preset tools. Every enum value maps to a fixed
// fragment so the same arguments always compose the same upstream prompt.
var (
	productBackgrounds = map[string]string{
		"white":       "on a pure white seamless background",
		"transparent": "isolated on a transparent background",
		"lifestyle":   "in a natural lifestyle setting",
		"gradient":    "on a smooth studio gradient background",
	}
	productAngles = map[string]string{
		"front":   "shot straight-on from the front",
		"side":    "shot from the side profile",
		"top":     "shot from directly above",
		"angle45": "shot from a 45-degree angle",
	}
	productLighting = map[string]string{
		"studio":   "with even professional studio lighting",
		"natural":  "with soft natural daylight",
		"dramatic": "with dramatic high-contrast lighting",
		"soft":     "with soft diffused lighting",
	}

	uiAssetTypes = []string{"icon", "illustration", "banner", "background", "button"}
	uiThemes     = map[string]string{
		"light":      "light theme with bright colors",
		"dark":       "dark theme with deep muted colors",
		"colorful":   "vibrant multi-color palette",
		"monochrome": "single-color monochrome palette",
	}
	uiStyles = map[string]string{
		"flat":      "flat design style",
		"gradient":  "modern gradient style",
		"outline":   "clean outline style",
		"realistic": "realistic detailed style",
		"pixel":     "retro pixel art style",
	}
	uiSizePresets = map[string]string{
		"small":  "1024x1024",
		"medium": "1024x1024",
		"large":  "1536x1024",
		"wide":   "1536x1024",
		"tall":   "1024x1536",
	}
)

const maxProductBatch = 4

func enumOrDefault(value, def string, valid map[string]string, field string) (string, error) {
	if value == "" {
		return def, nil
	}
	if _, ok := valid[value]; !ok {
		keys := make([]string, 0, len(valid))
		for k := range valid {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return "", fmt.Errorf("%w: %s must be one of %s", errInvalidParams, field, strings.Join(keys, ", "))
	}
	return value, nil
}

type productImageArgs struct {
	Description    string `json:"description"`
	BackgroundType string `json:"background_type"`
	Angle          string `json:"angle"`
	Lighting       string `json:"lighting"`
	BatchCount     int    `json:"batch_count"`
}

func (s *Server) handleProductImage(ctx context.Context, raw json.RawMessage) (any, error) {
	var args productImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Description == "" {
		return nil, fmt.Errorf("%w: description is required", errInvalidParams)
	}

	background, err := enumOrDefault(args.BackgroundType, "white", productBackgrounds, "background_type")
	if err != nil {
		return nil, err
	}
	angle, err := enumOrDefault(args.Angle, "front", productAngles, "angle")
	if err != nil {
		return nil, err
	}
	lighting, err := enumOrDefault(args.Lighting, "studio", productLighting, "lighting")
	if err != nil {
		return nil, err
	}
	count := args.BatchCount
	if count == 0 {
		count = 1
	}
	if count < 1 || count > maxProductBatch {
		return nil, fmt.Errorf("%w: batch_count must be between 1 and %d", errInvalidParams, maxProductBatch)
	}

	prompt := fmt.Sprintf("Professional product photograph of %s, %s, %s, %s, sharp focus, commercial quality",
		args.Description, productBackgrounds[background], productAngles[angle], productLighting[lighting])

	bg := ""
	if background == "transparent" {
		bg = "transparent"
	}

	return s.runGeneration(ctx, generationSpec{
		Prompt:     prompt,
		UseCase:    models.UseCaseProduct,
		Background: bg,
		Count:      count,
		Category:   organizer.CategoryProducts,
		Subdir:     args.Description,
		Descriptor: args.Description,
	})
}

type uiAssetArgs struct {
	AssetType   string `json:"asset_type"`
	Description string `json:"description"`
	Theme       string `json:"theme"`
	StylePreset string `json:"style_preset"`
	SizePreset  string `json:"size_preset"`
}

func (s *Server) handleUIAsset(ctx context.Context, raw json.RawMessage) (any, error) {
	var args uiAssetArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Description == "" {
		return nil, fmt.Errorf("%w: description is required", errInvalidParams)
	}
	if !slices.Contains(uiAssetTypes, args.AssetType) {
		return nil, fmt.Errorf("%w: asset_type must be one of %s", errInvalidParams, strings.Join(uiAssetTypes, ", "))
	}

	theme, err := enumOrDefault(args.Theme, "light", uiThemes, "theme")
	if err != nil {
		return nil, err
	}
	style, err := enumOrDefault(args.StylePreset, "flat", uiStyles, "style_preset")
	if err != nil {
		return nil, err
	}
	sizePreset, err := enumOrDefault(args.SizePreset, "medium", uiSizePresets, "size_preset")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("UI %s of %s, %s, %s, clean professional design suitable for a software interface",
		args.AssetType, args.Description, uiStyles[style], uiThemes[theme])

	// Icons and buttons get transparent backgrounds so they composite
	// cleanly onto any surface.
	bg := ""
	if args.AssetType == "icon" || args.AssetType == "button" {
		bg = "transparent"
	}

	return s.runGeneration(ctx, generationSpec{
		Prompt:     prompt,
		UseCase:    models.UseCaseUI,
		Size:       uiSizePresets[sizePreset],
		Background: bg,
		Category:   organizer.CategoryFor(models.UseCaseUI, args.AssetType),
		Descriptor: args.Description,
	})
}
