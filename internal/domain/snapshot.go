package domain

import (
	"time"
)

// Snapshot is one capture of a landing page's rendered content under a
// specific access condition ("US+mobile", "EU+desktop", "fb-referer", ...).
// Snapshots are produced by the crawler collaborator and are read-only to
// the scoring engines; they are retained indefinitely for audit.
type Snapshot struct {
	ID         string    `json:"id" db:"id"`
	AdID       string    `json:"ad_id" db:"ad_id"`
	TargetURL  string    `json:"target_url" db:"target_url"`
	Condition  string    `json:"condition" db:"condition"`
	CapturedAt time.Time `json:"captured_at" db:"captured_at"`

	// ContentHash is a SHA-256 over the normalized page text, hex encoded.
	ContentHash string `json:"content_hash" db:"content_hash"`

	// Preview is a short plain-text excerpt kept in the row; the full raw
	// body lives in the S3 archive under ArchiveKey.
	Preview    string `json:"preview" db:"preview"`
	ArchiveKey string `json:"archive_key,omitempty" db:"archive_key"`

	// Body is the full rendered HTML when the crawler inlines it. It is
	// moved to the archive on ingestion and never serialized or stored in
	// a row.
	Body string `json:"-" db:"-"`
}

// DivergenceStatus classifies the outcome of a divergence check.
type DivergenceStatus string

const (
	// DivergenceChecked means the engine compared snapshots and produced a
	// definitive verdict (diverging or not).
	DivergenceChecked DivergenceStatus = "checked"
	// DivergenceInsufficientData means fewer than two comparable snapshots
	// existed. Not an error: the ad cannot be judged yet.
	DivergenceInsufficientData DivergenceStatus = "insufficient_data"
	// DivergenceFetchFailed means snapshot acquisition failed; the ad was
	// not judged and the failure is counted on the run.
	DivergenceFetchFailed DivergenceStatus = "fetch_failed"
)

// DivergenceReport groups an ad's snapshots with the computed verdict.
// It is derived on demand and never persisted as its own table.
type DivergenceReport struct {
	AdID              string           `json:"ad_id"`
	Status            DivergenceStatus `json:"status"`
	Diverges          bool             `json:"diverges"`
	SuspicionDelta    int              `json:"suspicion_delta"`
	MatchedConditions []string         `json:"matched_conditions"`
	Snapshots         []Snapshot       `json:"snapshots,omitempty"`
	CheckedAt         time.Time        `json:"checked_at"`
}
