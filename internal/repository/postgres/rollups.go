package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clearsight/adscope/internal/domain"
)

// RollupRepo recomputes and reads the advertiser/domain aggregates.
type RollupRepo struct{ db *sql.DB }

// NewRollupRepo creates a Postgres-backed rollup repository.
func NewRollupRepo(db *sql.DB) *RollupRepo { return &RollupRepo{db: db} }

// RecomputeAll rebuilds every advertiser and domain aggregate as a full
// arithmetic mean over current ad scores. Always a full recompute: an
// incremental average would drift as ads are added, removed, or rescored.
// Called once after a batch completes, never mid-batch.
func (r *RollupRepo) RecomputeAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE advertisers a
		SET avg_suspicion_score = COALESCE(s.avg_score, 0),
		    total_ads = COALESCE(s.total, 0),
		    active_ads = COALESCE(s.active, 0),
		    domains_count = COALESCE(s.domains, 0),
		    updated_at = NOW()
		FROM (
			SELECT advertiser_id,
			       AVG(suspicion_score)::float8 AS avg_score,
			       COUNT(*) AS total,
			       COUNT(*) FILTER (WHERE status = 'active') AS active,
			       COUNT(DISTINCT domain_id) AS domains
			FROM ads
			GROUP BY advertiser_id
		) s
		WHERE s.advertiser_id = a.id
	`); err != nil {
		return fmt.Errorf("recompute advertiser rollups: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		UPDATE domains d
		SET suspicion_score = COALESCE(s.avg_score, 0),
		    total_ads = COALESCE(s.total, 0),
		    active_ads = COALESCE(s.active, 0),
		    updated_at = NOW()
		FROM (
			SELECT domain_id,
			       AVG(suspicion_score)::float8 AS avg_score,
			       COUNT(*) AS total,
			       COUNT(*) FILTER (WHERE status = 'active') AS active
			FROM ads
			GROUP BY domain_id
		) s
		WHERE s.domain_id = d.id
	`); err != nil {
		return fmt.Errorf("recompute domain rollups: %w", err)
	}
	return nil
}

// ListAdvertisers returns advertiser aggregates, most suspicious first.
func (r *RollupRepo) ListAdvertisers(ctx context.Context, limit, offset int) ([]domain.Advertiser, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(page_id, ''), avg_suspicion_score,
		       total_ads, active_ads, domains_count, created_at, updated_at
		FROM advertisers
		ORDER BY avg_suspicion_score DESC, name ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list advertisers: %w", err)
	}
	defer rows.Close()

	var out []domain.Advertiser
	for rows.Next() {
		var a domain.Advertiser
		if err := rows.Scan(&a.ID, &a.Name, &a.PageID, &a.AvgSuspicionScore,
			&a.TotalAds, &a.ActiveAds, &a.DomainsCount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan advertiser: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListDomains returns domain aggregates, most suspicious first.
func (r *RollupRepo) ListDomains(ctx context.Context, limit, offset int) ([]domain.AdDomain, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, host, registrable, suspicion_score, total_ads, active_ads,
		       created_at, updated_at
		FROM domains
		ORDER BY suspicion_score DESC, host ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []domain.AdDomain
	for rows.Next() {
		var d domain.AdDomain
		if err := rows.Scan(&d.ID, &d.Host, &d.Registrable, &d.SuspicionScore,
			&d.TotalAds, &d.ActiveAds, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
