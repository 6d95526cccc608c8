package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clearsight/adscope/internal/domain"
)

// AlertRepo implements the alert sink and read-model queries.
type AlertRepo struct{ db *sql.DB }

// NewAlertRepo creates a Postgres-backed alert repository.
func NewAlertRepo(db *sql.DB) *AlertRepo { return &AlertRepo{db: db} }

// InsertAlert persists one alert record.
func (r *AlertRepo) InsertAlert(ctx context.Context, a domain.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, tenant_id, type, severity, title, message,
			related_ad_id, related_advertiser_id, metadata, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, false, $10)
	`, a.ID, a.TenantID, a.Type, a.Severity, a.Title, a.Message,
		a.RelatedAdID, a.RelatedAdvertiserID, []byte(a.Metadata), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// AlertExistsSince reports whether an alert of this (adID, type) pair was
// created at or after the given time. Backs the 24h dedup invariant.
func (r *AlertRepo) AlertExistsSince(ctx context.Context, adID string, t domain.AlertType, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM alerts WHERE related_ad_id = $1 AND type = $2 AND created_at >= $3)`,
		adID, t, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("alert dedup lookup: %w", err)
	}
	return exists, nil
}

// AlertFilter narrows List results.
type AlertFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// List returns alerts newest first plus the matching total.
func (r *AlertRepo) List(ctx context.Context, f AlertFilter) ([]domain.Alert, int, error) {
	where := `WHERE ($1 = false OR read = false)`

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts `+where, f.UnreadOnly,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, type, severity, title, message,
		       COALESCE(related_ad_id, ''), COALESCE(related_advertiser_id, ''),
		       COALESCE(metadata, '{}'), read, created_at
		FROM alerts `+where+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, f.UnreadOnly, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var meta []byte
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Type, &a.Severity, &a.Title,
			&a.Message, &a.RelatedAdID, &a.RelatedAdvertiserID, &meta, &a.Read, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		a.Metadata = meta
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// MarkRead flips an alert's read state.
func (r *AlertRepo) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an alert. User action only; engines never delete alerts.
func (r *AlertRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
