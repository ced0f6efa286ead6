// Package db provides the SQLite-backed persistent store for processed
// screenshot analyses and monthly insight snapshots.
//
// 1. The creation method creates the tables if they do not exist.
// 2. Screenshot documents are content-addressed by a stable hash of the
//    source filename.
// 3. Insight snapshots are insert-only, keyed by period.
package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db     *sqlx.DB
	logger *log.Logger
}

// ScreenshotDoc is a processed screenshot analysis as persisted.
type ScreenshotDoc struct {
	ID           string         `db:"id"`
	Filename     string         `db:"filename"`
	Content      string         `db:"content"`
	Metadata     map[string]any `db:"-"`
	MetadataJSON string         `db:"metadata"`
	CreatedTime  time.Time      `db:"created_time"`
	ModifiedTime time.Time      `db:"modified_time"`
	InsertedAt   time.Time      `db:"inserted_at"`
}

// NewStore creates a new SQLite-backed store.
func NewStore(dbPath string, logger *log.Logger) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// Enable WAL mode for better concurrency and performance
	_, err = db.Exec("PRAGMA journal_mode=WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS screenshots (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSON,
			created_time TIMESTAMP NOT NULL,
			modified_time TIMESTAMP NOT NULL,
			inserted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_screenshots_created_time ON screenshots(created_time);

		CREATE TABLE IF NOT EXISTS insight_snapshots (
			period TEXT PRIMARY KEY,
			payload JSON NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, err
	}

	logger.Debug("SQLite store ready", "path", dbPath)
	return &Store{db: db, logger: logger}, nil
}

// DocID derives the stable document id for a source filename.
func DocID(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:])
}

// AddScreenshot inserts or replaces a screenshot analysis and returns its id.
func (s *Store) AddScreenshot(ctx context.Context, filename, content string, metadata map[string]any, createdTime, modifiedTime time.Time) (string, error) {
	id := DocID(filename)

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO screenshots (id, filename, content, metadata, created_time, modified_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, filename, content, string(metadataJSON), createdTime.UTC(), modifiedTime.UTC())
	if err != nil {
		return "", err
	}

	return id, nil
}

// GetScreenshot returns one screenshot analysis by id, nil when absent.
func (s *Store) GetScreenshot(ctx context.Context, id string) (*ScreenshotDoc, error) {
	var doc ScreenshotDoc
	err := s.db.GetContext(ctx, &doc, `
		SELECT id, filename, content, metadata, created_time, modified_time, inserted_at
		FROM screenshots WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}

	if err := doc.decodeMetadata(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetAllScreenshots returns every stored analysis ordered by capture time.
func (s *Store) GetAllScreenshots(ctx context.Context) ([]ScreenshotDoc, error) {
	var docs []ScreenshotDoc
	err := s.db.SelectContext(ctx, &docs, `
		SELECT id, filename, content, metadata, created_time, modified_time, inserted_at
		FROM screenshots ORDER BY created_time ASC
	`)
	if err != nil {
		return nil, err
	}

	for i := range docs {
		if err := docs[i].decodeMetadata(); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// SearchScreenshots matches content or filename by substring.
func (s *Store) SearchScreenshots(ctx context.Context, query string) ([]ScreenshotDoc, error) {
	pattern := "%" + query + "%"

	var docs []ScreenshotDoc
	err := s.db.SelectContext(ctx, &docs, `
		SELECT id, filename, content, metadata, created_time, modified_time, inserted_at
		FROM screenshots
		WHERE content LIKE ? OR filename LIKE ?
		ORDER BY created_time DESC
	`, pattern, pattern)
	if err != nil {
		return nil, err
	}

	for i := range docs {
		if err := docs[i].decodeMetadata(); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// UpdateScreenshotContent replaces the analysis text of a stored document.
func (s *Store) UpdateScreenshotContent(ctx context.Context, id, content string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE screenshots SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("screenshot %s not found", id)
	}
	return nil
}

// DeleteScreenshot removes a stored document.
func (s *Store) DeleteScreenshot(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM screenshots WHERE id = ?`, id); err != nil {
		return err
	}
	s.logger.Debug("Screenshot deleted", "id", id)
	return nil
}

// HasFilename reports whether an analysis for the filename already exists.
func (s *Store) HasFilename(ctx context.Context, filename string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM screenshots WHERE id = ?`, DocID(filename))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *ScreenshotDoc) decodeMetadata() error {
	if d.MetadataJSON == "" {
		d.Metadata = map[string]any{}
		return nil
	}
	return json.Unmarshal([]byte(d.MetadataJSON), &d.Metadata)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sqlx.DB instance.
func (s *Store) DB() *sqlx.DB {
	return s.db
}
