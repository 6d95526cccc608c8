package domain

import (
	"encoding/json"
	"time"
)

// AlertType enumerates the alert kinds the platform emits.
type AlertType string

const (
	AlertNewAd             AlertType = "new_ad"
	AlertHighSuspicion     AlertType = "high_suspicion"
	AlertCloakingConfirmed AlertType = "cloaking_confirmed"
	AlertAPIRecovery       AlertType = "api_recovery"
)

// AlertSeverity is derived from the suspicion score at emission time.
type AlertSeverity string

const (
	SeverityInfo    AlertSeverity = "info"
	SeverityWarning AlertSeverity = "warning"
	SeverityError   AlertSeverity = "error"
)

// Alert is a persisted notification record. Created by the alerting layer,
// mutated only by read-state transitions, deleted on user action.
type Alert struct {
	ID                  string          `json:"id" db:"id"`
	TenantID            string          `json:"tenant_id" db:"tenant_id"`
	Type                AlertType       `json:"type" db:"type"`
	Severity            AlertSeverity   `json:"severity" db:"severity"`
	Title               string          `json:"title" db:"title"`
	Message             string          `json:"message" db:"message"`
	RelatedAdID         string          `json:"related_ad_id,omitempty" db:"related_ad_id"`
	RelatedAdvertiserID string          `json:"related_advertiser_id,omitempty" db:"related_advertiser_id"`
	Metadata            json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	Read                bool            `json:"read" db:"read"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// SeverityForScore maps a suspicion score to the alert severity used when
// emitting score-driven alerts: >=80 error, 50-79 warning, else info.
func SeverityForScore(score int) AlertSeverity {
	switch {
	case score >= 80:
		return SeverityError
	case score >= 50:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
