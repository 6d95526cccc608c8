// Package alerting turns engine outputs into persisted, deduplicated alert
// records. It never computes scores itself; it only reacts to them.
package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/pkg/logger"
)

// DefaultDedupWindow is the rolling window within which a second candidate
// alert for the same (ad, type) pair is dropped.
const DefaultDedupWindow = 24 * time.Hour

// Sink persists alert records. Implemented by the Postgres alert repository.
type Sink interface {
	InsertAlert(ctx context.Context, a domain.Alert) error
	// AlertExistsSince reports whether an alert of this (adID, type) pair
	// was created at or after the given time.
	AlertExistsSince(ctx context.Context, adID string, t domain.AlertType, since time.Time) (bool, error)
}

// Candidate is one alert the engines want emitted. The service decides
// whether it actually gets persisted.
type Candidate struct {
	TenantID       string
	AdID           string
	AdvertiserID   string
	Type           domain.AlertType
	SuspicionScore int
	Data           map[string]any
}

// Service enforces the dedup invariant and renders alert content.
type Service struct {
	sink        Sink
	redisClient *redis.Client // optional; nil falls back to sink-only dedup
	renderer    *Renderer
	window      time.Duration
	now         func() time.Time
}

// NewService creates the alerting service. redisClient may be nil; dedup
// then relies solely on the persisted alert history.
func NewService(sink Sink, redisClient *redis.Client, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Service{
		sink:        sink,
		redisClient: redisClient,
		renderer:    NewRenderer(),
		window:      window,
		now:         time.Now,
	}
}

// Emit persists the candidate unless an alert of the same (adID, type) pair
// already exists inside the rolling dedup window. Returns true when an
// alert was actually inserted. Repeated worker runs therefore cannot storm
// the alert table.
func (s *Service) Emit(ctx context.Context, c Candidate) (bool, error) {
	if c.AdID == "" || c.Type == "" {
		return false, fmt.Errorf("alerting: candidate needs ad id and type")
	}

	// Fast path: a Redis SETNX with the window as TTL. Losing the race or a
	// Redis outage falls through to the authoritative store check. The key is
	// released again if the sink fails, so a transient store error cannot
	// suppress the pair for the rest of the window.
	dedupKey := ""
	if s.redisClient != nil {
		dedupKey = fmt.Sprintf("alertdedup:%s:%s", c.AdID, c.Type)
		ok, err := s.redisClient.SetNX(ctx, dedupKey, 1, s.window).Result()
		if err == nil && !ok {
			return false, nil
		}
		if err != nil {
			logger.Warn("alert dedup cache unavailable, using store", "error", err.Error())
			dedupKey = ""
		}
	}

	since := s.now().Add(-s.window)
	exists, err := s.sink.AlertExistsSince(ctx, c.AdID, c.Type, since)
	if err != nil {
		s.releaseDedup(ctx, dedupKey)
		return false, fmt.Errorf("alerting: dedup lookup: %w", err)
	}
	if exists {
		return false, nil
	}

	title, message := s.renderer.Render(c)

	var meta json.RawMessage
	if len(c.Data) > 0 {
		meta, _ = json.Marshal(c.Data)
	}

	alert := domain.Alert{
		ID:                  uuid.New().String(),
		TenantID:            c.TenantID,
		Type:                c.Type,
		Severity:            domain.SeverityForScore(c.SuspicionScore),
		Title:               title,
		Message:             message,
		RelatedAdID:         c.AdID,
		RelatedAdvertiserID: c.AdvertiserID,
		Metadata:            meta,
		CreatedAt:           s.now().UTC(),
	}
	if err := s.sink.InsertAlert(ctx, alert); err != nil {
		s.releaseDedup(ctx, dedupKey)
		return false, fmt.Errorf("alerting: insert: %w", err)
	}

	logger.Info("alert emitted",
		"type", string(c.Type),
		"severity", string(alert.Severity),
		"ad_id", c.AdID,
	)
	return true, nil
}

// releaseDedup removes a dedup marker claimed by an Emit that then failed to
// persist its alert. Best effort; if the delete itself fails the marker
// expires with its TTL.
func (s *Service) releaseDedup(ctx context.Context, key string) {
	if key == "" || s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		logger.Warn("alert dedup release failed", "key", key, "error", err.Error())
	}
}
