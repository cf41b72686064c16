package models

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrEmptyPrompt       = errors.New("prompt cannot be empty")
	ErrInvalidCount      = errors.New("count must be at least 1")
	ErrCountExceedsMax   = errors.New("count exceeds maximum for model")
	ErrInvalidSize       = errors.New("invalid size for model")
	ErrInvalidQuality    = errors.New("invalid quality for model")
	ErrInvalidFormat     = errors.New("invalid output format")
	ErrInvalidBackground = errors.New("invalid background")
	ErrUnknownModel      = errors.New("unknown model")
	ErrNoImageData       = errors.New("image data is required for editing")
)

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWebP OutputFormat = "webp"
)

func ValidFormats() []OutputFormat {
	return []OutputFormat{FormatPNG, FormatJPEG, FormatWebP}
}

func (f OutputFormat) IsValid() bool {
	return slices.Contains(ValidFormats(), f)
}

func (f OutputFormat) String() string {
	return string(f)
}

// Request describes a single image generation call after "auto" values
// have been resolved to concrete model parameters.
type Request struct {
	Prompt     string
	Model      string
	Size       string
	Quality    string
	Background string
	Count      int
	Format     OutputFormat
}

func NewRequest(prompt string) *Request {
	return &Request{
		Prompt:     prompt,
		Count:      1,
		Format:     FormatPNG,
		Background: "auto",
	}
}

type EditRequest struct {
	Image   []byte
	Mask    []byte
	Prompt  string
	Model   string
	Size    string
	Quality string
	Count   int
	Format  OutputFormat
}

func NewEditRequest(image []byte, prompt string) *EditRequest {
	return &EditRequest{
		Image:  image,
		Prompt: prompt,
		Model:  "gpt-image-1",
		Count:  1,
		Format: FormatPNG,
	}
}

func (r *EditRequest) Validate() error {
	if len(r.Image) == 0 {
		return ErrNoImageData
	}
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Response carries the upstream result back to the caller. The caller is
// responsible for persisting image bytes; nothing here touches disk.
type Response struct {
	Images        []GeneratedImage
	RevisedPrompt string
}

type GeneratedImage struct {
	Data   []byte
	URL    string
	Base64 string
	Index  int
}

type ModelCapabilities struct {
	Name               string
	SupportedSizes     []string
	SupportedQualities []string
	MaxImages          int
	DefaultSize        string
	DefaultQuality     string
	SupportsBackground bool
	SupportsEdit       bool
}

func (c *ModelCapabilities) Validate(req *Request) error {
	if req.Prompt == "" {
		return ErrEmptyPrompt
	}

	if req.Count < 1 {
		return ErrInvalidCount
	}

	if req.Count > c.MaxImages {
		return fmt.Errorf("%w: max %d, got %d", ErrCountExceedsMax, c.MaxImages, req.Count)
	}

	if req.Size != "" && !slices.Contains(c.SupportedSizes, req.Size) {
		return fmt.Errorf("%w: %q not in %v", ErrInvalidSize, req.Size, c.SupportedSizes)
	}

	if req.Quality != "" && len(c.SupportedQualities) > 0 && !slices.Contains(c.SupportedQualities, req.Quality) {
		return fmt.Errorf("%w: %q not in %v", ErrInvalidQuality, req.Quality, c.SupportedQualities)
	}

	if req.Format != "" && !req.Format.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, req.Format)
	}

	if req.Background == "transparent" && !c.SupportsBackground {
		return fmt.Errorf("%w: %s does not support transparent backgrounds", ErrInvalidBackground, c.Name)
	}

	return nil
}

func (c *ModelCapabilities) ApplyDefaults(req *Request) {
	if req.Model == "" {
		req.Model = c.Name
	}
	if req.Size == "" || (req.Size == "auto" && !slices.Contains(c.SupportedSizes, "auto")) {
		req.Size = c.DefaultSize
	}
	if (req.Quality == "" || req.Quality == "auto") && !slices.Contains(c.SupportedQualities, "auto") {
		req.Quality = c.DefaultQuality
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Format == "" {
		req.Format = FormatPNG
	}
}

type ModelRegistry struct {
	models map[string]*ModelCapabilities
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models: make(map[string]*ModelCapabilities),
	}
}

func (r *ModelRegistry) Register(cap *ModelCapabilities) {
	r.models[cap.Name] = cap
}

func (r *ModelRegistry) Get(name string) (*ModelCapabilities, bool) {
	cap, ok := r.models[name]
	return cap, ok
}

func (r *ModelRegistry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func DefaultRegistry() *ModelRegistry {
	r := NewModelRegistry()

	r.Register(&ModelCapabilities{
		Name:               "gpt-image-1",
		SupportedSizes:     []string{"1024x1024", "1536x1024", "1024x1536", "auto"},
		SupportedQualities: []string{"auto", "low", "medium", "high"},
		MaxImages:          10,
		DefaultSize:        "1024x1024",
		DefaultQuality:     "auto",
		SupportsBackground: true,
		SupportsEdit:       true,
	})

	r.Register(&ModelCapabilities{
		Name:               "dall-e-3",
		SupportedSizes:     []string{"1024x1024", "1024x1792", "1792x1024"},
		SupportedQualities: []string{"standard", "hd"},
		MaxImages:          1,
		DefaultSize:        "1024x1024",
		DefaultQuality:     "standard",
		SupportsBackground: false,
		SupportsEdit:       false,
	})

	r.Register(&ModelCapabilities{
		Name:               "dall-e-2",
		SupportedSizes:     []string{"256x256", "512x512", "1024x1024"},
		SupportedQualities: nil,
		MaxImages:          10,
		DefaultSize:        "1024x1024",
		DefaultQuality:     "",
		SupportsBackground: false,
		SupportsEdit:       true,
	})

	return r
}
