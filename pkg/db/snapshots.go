package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SnapshotRow is one persisted cumulative-insight snapshot. Snapshots are
// written once per period and never updated in place.
type SnapshotRow struct {
	Period    string    `db:"period"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// PutSnapshot stores the snapshot payload for a period. Writing the same
// period twice is an error; a pass produces exactly one snapshot.
func (s *Store) PutSnapshot(ctx context.Context, period, payload string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insight_snapshots (period, payload) VALUES (?, ?)
	`, period, payload)
	if err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", period, err)
	}
	return nil
}

// GetSnapshot returns the snapshot for a period, nil when absent.
func (s *Store) GetSnapshot(ctx context.Context, period string) (*SnapshotRow, error) {
	var row SnapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT period, payload, created_at FROM insight_snapshots WHERE period = ?
	`, period)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetLatestSnapshot returns the most recent snapshot by period ordering,
// nil when none exist yet.
func (s *Store) GetLatestSnapshot(ctx context.Context) (*SnapshotRow, error) {
	var row SnapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT period, payload, created_at FROM insight_snapshots
		ORDER BY period DESC LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
