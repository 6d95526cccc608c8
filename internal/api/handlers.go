package api

import (
	"context"
	"time"

	"github.com/clearsight/adscope/internal/cache"
	"github.com/clearsight/adscope/internal/divergence"
	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/repository/postgres"
	"github.com/clearsight/adscope/internal/suspicion"
	"github.com/clearsight/adscope/internal/winning"
	"github.com/clearsight/adscope/internal/worker"
)

// AdStore is the ad persistence surface the handlers need.
type AdStore interface {
	Get(ctx context.Context, id string) (domain.Ad, error)
	List(ctx context.Context, f postgres.ListFilter) ([]domain.Ad, int, error)
	ListActive(ctx context.Context) ([]domain.Ad, error)
	WriteScore(ctx context.Context, adID string, score int, isCloaked bool, blackURL string) error
}

// AlertStore is the alert persistence surface the handlers need.
type AlertStore interface {
	List(ctx context.Context, f postgres.AlertFilter) ([]domain.Alert, int, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SnapshotLister reads archived captures for an ad, newest first.
type SnapshotLister interface {
	ListByAd(ctx context.Context, adID string, limit int) ([]domain.Snapshot, error)
}

// RollupLister reads advertiser and domain aggregates.
type RollupLister interface {
	ListAdvertisers(ctx context.Context, limit, offset int) ([]domain.Advertiser, error)
	ListDomains(ctx context.Context, limit, offset int) ([]domain.AdDomain, error)
}

// BodyArchive retrieves raw snapshot bodies, satisfied by *snapshots.Archive.
type BodyArchive interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// RunTrigger is satisfied by *worker.Runner.
type RunTrigger interface {
	Run(ctx context.Context, req worker.RunRequest) (worker.RunResult, error)
}

// Handlers carries the dependencies shared by all HTTP handlers.
type Handlers struct {
	ads     AdStore
	alerts  AlertStore
	snaps   SnapshotLister
	rollups RollupLister
	engine  *divergence.Engine
	scorer  *suspicion.Scorer
	runner  RunTrigger
	cache   *cache.Cache
	archive BodyArchive
}

// NewHandlers wires the handler set. cache, runner and archive may be nil;
// the corresponding endpoints degrade (no caching) or return 503.
func NewHandlers(ads AdStore, alerts AlertStore, snaps SnapshotLister, rollups RollupLister,
	engine *divergence.Engine, scorer *suspicion.Scorer, runner RunTrigger, c *cache.Cache, archive BodyArchive) *Handlers {
	return &Handlers{
		ads:     ads,
		alerts:  alerts,
		snaps:   snaps,
		rollups: rollups,
		engine:  engine,
		scorer:  scorer,
		runner:  runner,
		cache:   c,
		archive: archive,
	}
}

// adView decorates a stored ad with its derived winning score. The score is
// computed per read and never persisted, so a longevity change shows up on
// the very next request.
type adView struct {
	domain.Ad
	WinningScore winning.Score `json:"winning_score"`
}

func viewOf(ad domain.Ad, now time.Time) adView {
	return adView{Ad: ad, WinningScore: winning.ForAd(ad, now)}
}
