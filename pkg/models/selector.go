package models

import "strings"

// UseCase categorizes a generation request so "auto" parameters can be
// resolved deterministically. It also decides where the organizer files
// the resulting artifact.
type UseCase string

const (
	UseCaseGeneral   UseCase = "general"
	UseCaseProduct   UseCase = "product"
	UseCaseUI        UseCase = "ui"
	UseCaseBatch     UseCase = "batch"
	UseCaseEdit      UseCase = "edit"
	UseCaseVariation UseCase = "variation"
)

// Selection is the fully resolved parameter set for one upstream call.
type Selection struct {
	Model   string
	Quality string
	Size    string
	Format  OutputFormat
}

var textIndicators = []string{
	"text", "writing", "words", "letters", "sign", "label",
	"logo", "typography", "font", "readable", "inscription",
}

var artisticIndicators = []string{
	"artistic", "painting", "abstract", "creative", "style",
}

// Select resolves "auto" model/quality/size values to concrete parameters.
// Explicitly requested values are kept (clamped to what the model supports).
// The mapping is deterministic: the same inputs always produce the same
// selection.
func Select(registry *ModelRegistry, useCase UseCase, model, quality, size string, prompt, background string) Selection {
	m := model
	if m == "" || m == "auto" {
		m = selectModel(useCase, prompt, background)
	}

	cap, ok := registry.Get(m)
	if !ok {
		cap, _ = registry.Get("gpt-image-1")
		m = cap.Name
	}

	return Selection{
		Model:   m,
		Quality: selectQuality(quality, cap, useCase),
		Size:    selectSize(size, cap),
		Format:  selectFormat(useCase, background),
	}
}

func selectModel(useCase UseCase, prompt, background string) string {
	switch useCase {
	case UseCaseVariation:
		// Only dall-e-2 supports variations.
		return "dall-e-2"
	case UseCaseUI, UseCaseProduct, UseCaseEdit, UseCaseBatch:
		return "gpt-image-1"
	}

	if background == "transparent" || promptContains(prompt, textIndicators) {
		return "gpt-image-1"
	}

	if promptContains(prompt, artisticIndicators) {
		return "dall-e-3"
	}

	return "gpt-image-1"
}

func selectQuality(quality string, cap *ModelCapabilities, useCase UseCase) string {
	if quality != "" && quality != "auto" {
		return mapQuality(quality, cap.Name)
	}

	var preferred string
	switch useCase {
	case UseCaseProduct, UseCaseEdit:
		preferred = "high"
	default:
		preferred = "medium"
	}

	return mapQuality(preferred, cap.Name)
}

// mapQuality translates the common low/medium/high vocabulary into each
// model's own quality values.
func mapQuality(quality, model string) string {
	switch model {
	case "dall-e-3":
		if quality == "high" || quality == "hd" {
			return "hd"
		}
		return "standard"
	case "dall-e-2":
		return ""
	default:
		if quality == "hd" {
			return "high"
		}
		return quality
	}
}

func selectSize(size string, cap *ModelCapabilities) string {
	if size == "" || size == "auto" {
		return cap.DefaultSize
	}

	for _, s := range cap.SupportedSizes {
		if s == size {
			return size
		}
	}
	return cap.DefaultSize
}

func selectFormat(useCase UseCase, background string) OutputFormat {
	if background == "transparent" {
		// Transparency needs an alpha channel.
		return FormatPNG
	}
	if useCase == UseCaseBatch {
		return FormatJPEG
	}
	return FormatPNG
}

func promptContains(prompt string, indicators []string) bool {
	lower := strings.ToLower(prompt)
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}
