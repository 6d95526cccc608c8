package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/clearsight/adscope/internal/domain"
)

// SnapshotRepo persists landing-page captures for audit. Snapshots are
// append-only from the engines' point of view: written once per capture,
// never updated, never deleted.
type SnapshotRepo struct{ db *sql.DB }

// NewSnapshotRepo creates a Postgres-backed snapshot repository.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

// Upsert records captures fetched during a run. The (ad, condition,
// captured_at) key makes re-processing the same snapshots a no-op.
func (r *SnapshotRepo) Upsert(ctx context.Context, snaps []domain.Snapshot) error {
	for _, s := range snaps {
		id := s.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO snapshots (id, ad_id, target_url, condition, captured_at,
				content_hash, preview, archive_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
			ON CONFLICT (ad_id, condition, captured_at) DO NOTHING
		`, id, s.AdID, s.TargetURL, s.Condition, s.CapturedAt, s.ContentHash, s.Preview, s.ArchiveKey)
		if err != nil {
			return fmt.Errorf("upsert snapshot for ad %s: %w", s.AdID, err)
		}
	}
	return nil
}

// ListByAd returns an ad's stored captures, newest first.
func (r *SnapshotRepo) ListByAd(ctx context.Context, adID string, limit int) ([]domain.Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ad_id, target_url, condition, captured_at, content_hash,
		       preview, COALESCE(archive_key, '')
		FROM snapshots
		WHERE ad_id = $1
		ORDER BY captured_at DESC
		LIMIT $2
	`, adID, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.AdID, &s.TargetURL, &s.Condition,
			&s.CapturedAt, &s.ContentHash, &s.Preview, &s.ArchiveKey); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
