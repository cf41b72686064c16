package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/aigentive/openai-image-mcp/internal/session"
)

var ErrRecordNotFound = errors.New("generation record not found")

const schema = `
CREATE TABLE IF NOT EXISTS generations (
    id TEXT PRIMARY KEY,
    session_id TEXT,
    prompt TEXT NOT NULL,
    revised_prompt TEXT,
    model TEXT NOT NULL,
    size TEXT NOT NULL,
    quality TEXT,
    background TEXT,
    format TEXT NOT NULL,
    file_path TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    cost_usd REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_generations_session_id ON generations(session_id);
CREATE INDEX IF NOT EXISTS idx_generations_file_path ON generations(file_path);
CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
`

// Log is an append-only record of every generated artifact. Sessions live
// in memory and vanish with the process; the log is what keeps provenance
// and usage totals across restarts.
type Log struct {
	db *sql.DB
}

func Open(dbPath string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Log{db: db}, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) Record(ctx context.Context, rec *session.ImageRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO generations (id, session_id, prompt, revised_prompt, model, size, quality, background, format, file_path, size_bytes, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.SessionID), rec.Prompt, nullString(rec.RevisedPrompt),
		rec.Model, rec.Size, nullString(rec.Quality), nullString(rec.Background),
		rec.Format, rec.FilePath, rec.SizeBytes, rec.CostUSD, rec.CreatedAt)
	return err
}

// FindByPath looks up the provenance record for a previously generated
// file, used when promoting an image without a sidecar into a session.
func (l *Log) FindByPath(ctx context.Context, path string) (*session.ImageRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, session_id, prompt, revised_prompt, model, size, quality, background, format, file_path, size_bytes, cost_usd, created_at
		 FROM generations WHERE file_path = ? ORDER BY created_at DESC LIMIT 1`, path)

	rec := &session.ImageRecord{}
	var sessionID, revisedPrompt, quality, background sql.NullString
	err := row.Scan(&rec.ID, &sessionID, &rec.Prompt, &revisedPrompt, &rec.Model,
		&rec.Size, &quality, &background, &rec.Format, &rec.FilePath,
		&rec.SizeBytes, &rec.CostUSD, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.SessionID = sessionID.String
	rec.RevisedPrompt = revisedPrompt.String
	rec.Quality = quality.String
	rec.Background = background.String
	return rec, nil
}

type Totals struct {
	Images     int     `json:"images"`
	TotalBytes int64   `json:"total_bytes"`
	TotalCost  float64 `json:"total_cost_usd"`
}

func (l *Log) Totals(ctx context.Context) (Totals, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(cost_usd), 0) FROM generations`)

	var t Totals
	if err := row.Scan(&t.Images, &t.TotalBytes, &t.TotalCost); err != nil {
		return Totals{}, err
	}
	return t, nil
}

type ModelTotals struct {
	Model  string  `json:"model"`
	Images int     `json:"images"`
	Cost   float64 `json:"cost_usd"`
}

func (l *Log) TotalsByModel(ctx context.Context) ([]ModelTotals, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT model, COUNT(*), COALESCE(SUM(cost_usd), 0)
		 FROM generations GROUP BY model ORDER BY model`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []ModelTotals
	for rows.Next() {
		var mt ModelTotals
		if err := rows.Scan(&mt.Model, &mt.Images, &mt.Cost); err != nil {
			return nil, err
		}
		totals = append(totals, mt)
	}
	return totals, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
