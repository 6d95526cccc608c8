package domain

import (
	"time"
)

// Advertiser is an aggregation root rolling up suspicion across its ads.
// Rollup fields are recomputed from the constituent ads whenever any ad's
// score changes — never incrementally patched, to avoid drift.
type Advertiser struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	PageID            string    `json:"page_id,omitempty" db:"page_id"`
	AvgSuspicionScore float64   `json:"avg_suspicion_score" db:"avg_suspicion_score"`
	TotalAds          int       `json:"total_ads" db:"total_ads"`
	ActiveAds         int       `json:"active_ads" db:"active_ads"`
	DomainsCount      int       `json:"domains_count" db:"domains_count"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// AdDomain is a landing domain aggregation root. Name avoids colliding with
// the package name in callers.
type AdDomain struct {
	ID   string `json:"id" db:"id"`
	Host string `json:"host" db:"host"`
	// Registrable is the eTLD+1 the rollup groups by ("sub.shop.example.co.uk"
	// rolls up under "example.co.uk").
	Registrable    string    `json:"registrable" db:"registrable"`
	SuspicionScore float64   `json:"suspicion_score" db:"suspicion_score"`
	TotalAds       int       `json:"total_ads" db:"total_ads"`
	ActiveAds      int       `json:"active_ads" db:"active_ads"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
