package domain

import (
	"time"
)

// AdStatus enumerates the lifecycle states of a tracked creative.
// Ads are never hard-deleted; they only move between statuses.
type AdStatus string

const (
	AdActive   AdStatus = "active"
	AdInactive AdStatus = "inactive"
)

// MediaType enumerates the creative formats seen in the ad library.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaCarousel MediaType = "carousel"
	MediaText     MediaType = "text"
)

// Ad represents one tracked creative imported from the external ad library.
type Ad struct {
	ID           string     `json:"id" db:"id"`
	AdvertiserID string     `json:"advertiser_id" db:"advertiser_id"`
	DomainID     string     `json:"domain_id" db:"domain_id"`
	Headline     string     `json:"headline" db:"headline"`
	Body         string     `json:"body" db:"body"`
	MediaType    MediaType  `json:"media_type" db:"media_type"`
	Status       AdStatus   `json:"status" db:"status"`
	Countries    []string   `json:"countries" db:"countries"`
	StartDate    time.Time  `json:"start_date" db:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty" db:"end_date"`

	// Engagement is supplied by the ad-library import (already 0-100).
	EngagementScore int `json:"engagement_score" db:"engagement_score"`

	// Computed by the suspicion scorer.
	SuspicionScore int  `json:"suspicion_score" db:"suspicion_score"`
	IsCloaked      bool `json:"is_cloaked" db:"is_cloaked"`

	// WhiteURL is the "safe" page shown to reviewers; DetectedBlackURL is
	// the diverging page served to targets, set once divergence confirms.
	WhiteURL         string `json:"white_url" db:"white_url"`
	DetectedBlackURL string `json:"detected_black_url,omitempty" db:"detected_black_url"`

	RedirectChainDepth int `json:"redirect_chain_depth" db:"redirect_chain_depth"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LongevityDays returns the number of whole days the ad has been (or was)
// live: start date to end date if ended, otherwise start date to now.
// Ads that have not started yet report zero.
func (a Ad) LongevityDays(now time.Time) int {
	end := now
	if a.EndDate != nil && a.EndDate.Before(now) {
		end = *a.EndDate
	}
	if end.Before(a.StartDate) {
		return 0
	}
	return int(end.Sub(a.StartDate).Hours() / 24)
}

// IsActive reports whether the ad is currently serving.
func (a Ad) IsActive() bool { return a.Status == AdActive }
