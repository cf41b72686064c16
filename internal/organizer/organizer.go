package organizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aigentive/openai-image-mcp/internal/security"
	"github.com/aigentive/openai-image-mcp/internal/session"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

// ErrIO marks local filesystem failures. Callers surface these
// immediately; they are never retried.
var ErrIO = errors.New("filesystem error")

const baseDirName = "generated_images"

// Category names the fixed top-level directories under the workspace root.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryProducts      Category = "products"
	CategoryUIIcons       Category = "ui_assets/icons"
	CategoryUIllustration Category = "ui_assets/illustrations"
	CategoryBatch         Category = "batch_generations"
	CategoryEdited        Category = "edited_images"
	CategoryVariations    Category = "variations"
	CategorySessions      Category = "sessions"
)

func allCategories() []Category {
	return []Category{
		CategoryGeneral, CategoryProducts, CategoryUIIcons,
		CategoryUIllustration, CategoryBatch, CategoryEdited,
		CategoryVariations, CategorySessions,
	}
}

// CategoryFor maps a use case to its directory. UI assets split by type.
func CategoryFor(useCase models.UseCase, assetType string) Category {
	switch useCase {
	case models.UseCaseProduct:
		return CategoryProducts
	case models.UseCaseUI:
		if assetType == "illustration" || assetType == "banner" || assetType == "background" {
			return CategoryUIllustration
		}
		return CategoryUIIcons
	case models.UseCaseBatch:
		return CategoryBatch
	case models.UseCaseEdit:
		return CategoryEdited
	case models.UseCaseVariation:
		return CategoryVariations
	default:
		return CategoryGeneral
	}
}

// Organizer owns the deterministic path layout for generated artifacts
// and their JSON metadata sidecars.
type Organizer struct {
	baseDir string
	now     func() time.Time
}

// New creates the category tree under workspaceRoot.
func New(workspaceRoot string) (*Organizer, error) {
	o := &Organizer{
		baseDir: filepath.Join(workspaceRoot, baseDirName),
		now:     time.Now,
	}

	for _, cat := range allCategories() {
		dir := filepath.Join(o.baseDir, filepath.FromSlash(string(cat)))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", ErrIO, dir, err)
		}
	}
	return o, nil
}

func (o *Organizer) BaseDir() string {
	return o.baseDir
}

// SavePath builds a unique path for a new artifact. The descriptor
// (typically a prompt fragment) is sanitized, and a timestamp plus a short
// unique suffix keep concurrent writes from colliding. An optional subdir
// groups related artifacts (product name, batch id, session id).
func (o *Organizer) SavePath(category Category, subdir, descriptor string, format models.OutputFormat) (string, error) {
	dir := filepath.Join(o.baseDir, filepath.FromSlash(string(category)))
	if subdir != "" {
		dir = filepath.Join(dir, security.SanitizeDescriptor(subdir))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrIO, dir, err)
	}

	name := fmt.Sprintf("%s_%s_%s.%s",
		security.SanitizeDescriptor(descriptor),
		o.now().Format("20060102_150405"),
		uuid.New().String()[:8],
		format)
	return filepath.Join(dir, name), nil
}

func (o *Organizer) WriteArtifact(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing artifact: %v", ErrIO, err)
	}
	return nil
}

// MetadataPath derives the sidecar path for an image file.
func MetadataPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + ".json"
}

// WriteMetadata persists the provenance record as a JSON sidecar next to
// the image and returns the sidecar path.
func (o *Organizer) WriteMetadata(imagePath string, rec *session.ImageRecord) (string, error) {
	data, err := rec.ToJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	path := MetadataPath(imagePath)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: writing metadata: %v", ErrIO, err)
	}
	return path, nil
}

// ReadMetadata loads a sidecar written by WriteMetadata.
func ReadMetadata(path string) (*session.ImageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading metadata: %v", ErrIO, err)
	}

	var rec session.ImageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &rec, nil
}
