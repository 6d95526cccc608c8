// Package postgres implements the persistence boundary over PostgreSQL.
// Every write the engines need is a single-row statement; there are no
// multi-step transactional guarantees to uphold.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/clearsight/adscope/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("postgres: not found")

// AdRepo implements the ad store against PostgreSQL.
type AdRepo struct{ db *sql.DB }

// NewAdRepo creates a Postgres-backed ad repository.
func NewAdRepo(db *sql.DB) *AdRepo { return &AdRepo{db: db} }

const adColumns = `id, advertiser_id, domain_id, headline, body, media_type, status,
	countries, start_date, end_date, engagement_score, suspicion_score,
	is_cloaked, white_url, detected_black_url, redirect_chain_depth,
	created_at, updated_at`

func scanAd(row interface{ Scan(...any) error }) (domain.Ad, error) {
	var ad domain.Ad
	var endDate sql.NullTime
	var blackURL sql.NullString
	err := row.Scan(
		&ad.ID, &ad.AdvertiserID, &ad.DomainID, &ad.Headline, &ad.Body,
		&ad.MediaType, &ad.Status, pq.Array(&ad.Countries), &ad.StartDate,
		&endDate, &ad.EngagementScore, &ad.SuspicionScore, &ad.IsCloaked,
		&ad.WhiteURL, &blackURL, &ad.RedirectChainDepth,
		&ad.CreatedAt, &ad.UpdatedAt,
	)
	if err != nil {
		return ad, err
	}
	if endDate.Valid {
		t := endDate.Time
		ad.EndDate = &t
	}
	ad.DetectedBlackURL = blackURL.String
	return ad, nil
}

// Get returns one ad by ID.
func (r *AdRepo) Get(ctx context.Context, id string) (domain.Ad, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+adColumns+` FROM ads WHERE id = $1`, id)
	ad, err := scanAd(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ad, ErrNotFound
	}
	if err != nil {
		return ad, fmt.Errorf("get ad: %w", err)
	}
	return ad, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status       domain.AdStatus
	AdvertiserID string
	Limit        int
	Offset       int
}

// List returns ads matching the filter plus the unfiltered-page total.
func (r *AdRepo) List(ctx context.Context, f ListFilter) ([]domain.Ad, int, error) {
	where := `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR advertiser_id = $2)`

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ads `+where, string(f.Status), f.AdvertiserID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ads: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+adColumns+` FROM ads `+where+`
		 ORDER BY suspicion_score DESC, created_at DESC
		 LIMIT $3 OFFSET $4`,
		string(f.Status), f.AdvertiserID, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ads: %w", err)
	}
	defer rows.Close()

	var out []domain.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ad: %w", err)
		}
		out = append(out, ad)
	}
	return out, total, rows.Err()
}

// ListActive returns every ad eligible for a scheduled divergence run.
func (r *AdRepo) ListActive(ctx context.Context) ([]domain.Ad, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+adColumns+` FROM ads WHERE status = 'active' ORDER BY updated_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active ads: %w", err)
	}
	defer rows.Close()

	var out []domain.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		out = append(out, ad)
	}
	return out, rows.Err()
}

// WriteScore persists a computed suspicion score and cloaking flag for one
// ad. Single-row update; recomputing the same inputs is an idempotent
// no-op difference, so at-least-once re-processing is safe.
func (r *AdRepo) WriteScore(ctx context.Context, adID string, score int, isCloaked bool, blackURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ads
		SET suspicion_score = $2,
		    is_cloaked = $3,
		    detected_black_url = NULLIF($4, ''),
		    updated_at = NOW()
		WHERE id = $1
	`, adID, score, isCloaked, blackURL)
	if err != nil {
		return fmt.Errorf("write score for ad %s: %w", adID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-retires an ad. Ads are never hard-deleted.
func (r *AdRepo) Deactivate(ctx context.Context, adID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ads SET status = 'inactive', updated_at = NOW() WHERE id = $1 AND status = 'active'`,
		adID)
	if err != nil {
		return fmt.Errorf("deactivate ad %s: %w", adID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
