package session

import (
	"encoding/json"
	"time"
)

// Role tags a conversation turn as either caller input or a reference to a
// generated artifact.
type Role string

const (
	RoleUser  Role = "user"
	RoleImage Role = "image"
)

type Turn struct {
	Seq     int    `json:"seq"`
	Role    Role   `json:"role"`
	Text    string `json:"text,omitempty"`
	ImageID string `json:"image_id,omitempty"`
}

// Session is the server-side record of a multi-turn image conversation.
// It is owned by the Store; callers receive copies and never mutate the
// stored value directly.
type Session struct {
	ID          string
	Name        string
	Description string
	Model       string
	CreatedAt   time.Time
	LastActive  time.Time
	Turns       []Turn
	Images      []ImageRecord
}

// ImageRecord is the provenance record for one generated artifact. It is
// written once, persisted as a JSON sidecar next to the image, and never
// mutated. A record may outlive the session that produced it.
type ImageRecord struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id,omitempty"`
	Prompt        string    `json:"prompt"`
	RevisedPrompt string    `json:"revised_prompt,omitempty"`
	Model         string    `json:"model"`
	Size          string    `json:"size"`
	Quality       string    `json:"quality,omitempty"`
	Background    string    `json:"background,omitempty"`
	Format        string    `json:"format"`
	FilePath      string    `json:"file_path"`
	SizeBytes     int64     `json:"size_bytes"`
	CostUSD       float64   `json:"cost_usd,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *ImageRecord) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Summary is returned by Close and by status/list operations.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
	TurnCount   int       `json:"turn_count"`
	ImageCount  int       `json:"image_count"`
}

func (s *Session) Summary() Summary {
	return Summary{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Model:       s.Model,
		CreatedAt:   s.CreatedAt,
		LastActive:  s.LastActive,
		TurnCount:   len(s.Turns),
		ImageCount:  len(s.Images),
	}
}
