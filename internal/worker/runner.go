// Package worker drives the scheduled divergence and status-check runs
// across the active ad population.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clearsight/adscope/internal/alerting"
	"github.com/clearsight/adscope/internal/cache"
	"github.com/clearsight/adscope/internal/divergence"
	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/pkg/distlock"
	"github.com/clearsight/adscope/internal/pkg/logger"
	"github.com/clearsight/adscope/internal/suspicion"
	"github.com/clearsight/adscope/internal/urlcheck"
)

// TaskType selects what a scheduled run does.
type TaskType string

const (
	TaskDivergenceTest TaskType = "divergence_test"
	TaskStatusCheck    TaskType = "status_check"
)

// ScheduleType records which schedule fired the run.
type ScheduleType string

const (
	ScheduleDaily    ScheduleType = "daily"
	ScheduleIntraday ScheduleType = "intraday"
)

// ErrRunInProgress means another worker holds the run lock.
var ErrRunInProgress = errors.New("worker: a run is already in progress")

// RunRequest is the scheduled-trigger contract.
type RunRequest struct {
	TaskType     TaskType     `json:"task_type"`
	ScheduleType ScheduleType `json:"schedule_type"`
}

// RunResult is returned to the scheduled invoker. A failed batch still
// reports partial progress; errors never silently vanish.
type RunResult struct {
	Success          bool      `json:"success"`
	ProcessedCount   int       `json:"processed_count"`
	DivergencesFound int       `json:"divergences_found"`
	ErrorsCount      int       `json:"errors_count"`
	CompletedAt      time.Time `json:"completed_at"`
}

// AdStore is the persistence the runner needs for ads.
type AdStore interface {
	ListActive(ctx context.Context) ([]domain.Ad, error)
	WriteScore(ctx context.Context, adID string, score int, isCloaked bool, blackURL string) error
	Deactivate(ctx context.Context, adID string) error
}

// SnapshotStore persists fetched captures for audit. Optional.
type SnapshotStore interface {
	Upsert(ctx context.Context, snaps []domain.Snapshot) error
}

// RollupStore recomputes advertiser/domain aggregates after a batch.
type RollupStore interface {
	RecomputeAll(ctx context.Context) error
}

// AlertEmitter is satisfied by *alerting.Service.
type AlertEmitter interface {
	Emit(ctx context.Context, c alerting.Candidate) (bool, error)
}

// Runner executes scheduled runs. Ads are processed independently with
// bounded concurrency: one ad's failure never blocks the rest, and order
// does not affect correctness because every score is a pure function of
// that ad's own data.
type Runner struct {
	ads     AdStore
	snaps   SnapshotStore
	rollups RollupStore
	alerts  AlertEmitter
	engine  *divergence.Engine
	scorer  *suspicion.Scorer
	cache   *cache.Cache
	lock    distlock.Lock

	tenantID    string
	concurrency int
	runBudget   time.Duration
	adTimeout   time.Duration
}

// Options configures a Runner beyond its required collaborators.
type Options struct {
	TenantID    string
	Concurrency int
	RunBudget   time.Duration
	AdTimeout   time.Duration
	// Lock, Cache, Snapshots and Alerts may be nil; the runner degrades
	// gracefully without them.
	Lock      distlock.Lock
	Cache     *cache.Cache
	Snapshots SnapshotStore
	Alerts    AlertEmitter
}

// NewRunner wires a runner.
func NewRunner(ads AdStore, rollups RollupStore, engine *divergence.Engine, scorer *suspicion.Scorer, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	if opts.RunBudget <= 0 {
		opts.RunBudget = 30 * time.Minute
	}
	if opts.AdTimeout <= 0 {
		opts.AdTimeout = 45 * time.Second
	}
	if opts.TenantID == "" {
		opts.TenantID = "default"
	}
	return &Runner{
		ads:         ads,
		snaps:       opts.Snapshots,
		rollups:     rollups,
		alerts:      opts.Alerts,
		engine:      engine,
		scorer:      scorer,
		cache:       opts.Cache,
		lock:        opts.Lock,
		tenantID:    opts.TenantID,
		concurrency: opts.Concurrency,
		runBudget:   opts.RunBudget,
		adTimeout:   opts.AdTimeout,
	}
}

// Run executes one scheduled run under the wall-clock budget. Ads not yet
// processed when the budget expires are left for the next run; re-checking
// an ad with the same inputs is an idempotent no-op difference.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if req.TaskType != TaskDivergenceTest && req.TaskType != TaskStatusCheck {
		return RunResult{}, fmt.Errorf("worker: unknown task type %q", req.TaskType)
	}

	if r.lock != nil {
		got, err := r.lock.Acquire(ctx)
		if err != nil {
			return RunResult{}, fmt.Errorf("worker: acquire run lock: %w", err)
		}
		if !got {
			return RunResult{}, ErrRunInProgress
		}
		defer r.lock.Release(context.WithoutCancel(ctx))
	}

	runCtx, cancel := context.WithTimeout(ctx, r.runBudget)
	defer cancel()

	started := time.Now()
	logger.Info("scheduled run starting",
		"task", string(req.TaskType),
		"schedule", string(req.ScheduleType),
	)

	ads, err := r.ads.ListActive(runCtx)
	if err != nil {
		return RunResult{CompletedAt: time.Now().UTC()}, fmt.Errorf("worker: list active ads: %w", err)
	}

	var processed, diverged, failed int64

	jobs := make(chan domain.Ad)
	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ad := range jobs {
				var err error
				switch req.TaskType {
				case TaskDivergenceTest:
					var found bool
					found, err = r.checkAd(runCtx, ad)
					if found {
						atomic.AddInt64(&diverged, 1)
					}
				case TaskStatusCheck:
					err = r.statusCheck(runCtx, ad)
				}
				if err != nil {
					atomic.AddInt64(&failed, 1)
					logger.Warn("ad processing failed",
						"ad_id", ad.ID,
						"task", string(req.TaskType),
						"error", err.Error(),
					)
					continue
				}
				atomic.AddInt64(&processed, 1)
			}
		}()
	}

dispatch:
	for _, ad := range ads {
		select {
		case <-runCtx.Done():
			// Budget spent: leave the rest for the next scheduled run.
			break dispatch
		case jobs <- ad:
		}
	}
	close(jobs)
	wg.Wait()

	// Rollups are recomputed once after the batch, never mid-batch, so
	// concurrent readers never see a half-updated aggregate.
	if err := r.rollups.RecomputeAll(context.WithoutCancel(ctx)); err != nil {
		atomic.AddInt64(&failed, 1)
		logger.Error("rollup recompute failed", "error", err.Error())
	}
	r.cache.Invalidate(context.WithoutCancel(ctx), cache.KeyDashboardStats)
	r.cache.Publish(context.WithoutCancel(ctx), cache.TopicScores)

	result := RunResult{
		Success:          failed == 0,
		ProcessedCount:   int(processed),
		DivergencesFound: int(diverged),
		ErrorsCount:      int(failed),
		CompletedAt:      time.Now().UTC(),
	}
	logger.Info("scheduled run finished",
		"task", string(req.TaskType),
		"processed", result.ProcessedCount,
		"divergences", result.DivergencesFound,
		"errors", result.ErrorsCount,
		"elapsed", time.Since(started).String(),
	)
	return result, nil
}

// checkAd runs one divergence check and persists its outcome. Returns
// whether a divergence was found.
func (r *Runner) checkAd(ctx context.Context, ad domain.Ad) (bool, error) {
	adCtx, cancel := context.WithTimeout(ctx, r.adTimeout)
	defer cancel()

	report, err := r.engine.Check(adCtx, ad.ID, ad.WhiteURL)
	if err != nil {
		// InvalidTarget and FetchFailed both count against the run but
		// never abort it.
		return false, err
	}

	if r.snaps != nil && len(report.Snapshots) > 0 {
		if err := r.snaps.Upsert(adCtx, report.Snapshots); err != nil {
			logger.Warn("snapshot persist failed", "ad_id", ad.ID, "error", err.Error())
		}
	}

	if report.Status == domain.DivergenceInsufficientData {
		return false, nil // valid terminal state, nothing to score yet
	}

	score := r.scorer.ScoreReport(ad, report, 0)
	blackURL := DetectBlackURL(ad, report)

	if err := r.ads.WriteScore(adCtx, ad.ID, score, report.Diverges, blackURL); err != nil {
		// An un-persisted score silently reverts the ad's band on the
		// next read, so this surfaces as a run error.
		return report.Diverges, fmt.Errorf("score write: %w", err)
	}

	if report.Diverges {
		r.emitDivergenceAlerts(adCtx, ad, report, score, blackURL)
	}
	return report.Diverges, nil
}

func (r *Runner) emitDivergenceAlerts(ctx context.Context, ad domain.Ad, report domain.DivergenceReport, score int, blackURL string) {
	if r.alerts == nil {
		return
	}
	data := map[string]any{
		"conditions": report.MatchedConditions,
		"black_url":  blackURL,
	}
	if blackURL != "" {
		if reg, err := urlcheck.RegistrableDomain(blackURL); err == nil {
			data["black_domain"] = reg
		}
	}
	_, err := r.alerts.Emit(ctx, alerting.Candidate{
		TenantID:       r.tenantID,
		AdID:           ad.ID,
		AdvertiserID:   ad.AdvertiserID,
		Type:           domain.AlertCloakingConfirmed,
		SuspicionScore: score,
		Data:           data,
	})
	if err != nil {
		logger.Warn("cloaking alert failed", "ad_id", ad.ID, "error", err.Error())
	}

	if score >= suspicion.HighBandMin {
		_, err := r.alerts.Emit(ctx, alerting.Candidate{
			TenantID:       r.tenantID,
			AdID:           ad.ID,
			AdvertiserID:   ad.AdvertiserID,
			Type:           domain.AlertHighSuspicion,
			SuspicionScore: score,
		})
		if err != nil {
			logger.Warn("high-suspicion alert failed", "ad_id", ad.ID, "error", err.Error())
		}
	}
}

// statusCheck retires ads whose end date has passed.
func (r *Runner) statusCheck(ctx context.Context, ad domain.Ad) error {
	if ad.EndDate == nil || ad.EndDate.After(time.Now()) {
		return nil
	}
	adCtx, cancel := context.WithTimeout(ctx, r.adTimeout)
	defer cancel()
	if err := r.ads.Deactivate(adCtx, ad.ID); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	return nil
}

// DetectBlackURL picks the diverging page to surface: the newest snapshot
// from a matched condition whose target differs from the reviewer-facing
// white URL.
func DetectBlackURL(ad domain.Ad, report domain.DivergenceReport) string {
	if !report.Diverges {
		return ""
	}
	matched := map[string]bool{}
	for _, c := range report.MatchedConditions {
		matched[c] = true
	}
	best := ""
	var bestAt time.Time
	for _, s := range report.Snapshots {
		if !matched[s.Condition] || s.TargetURL == "" || s.TargetURL == ad.WhiteURL {
			continue
		}
		if s.CapturedAt.After(bestAt) {
			best = s.TargetURL
			bestAt = s.CapturedAt
		}
	}
	return best
}
