package api

import (
	"net/http"
	"time"

	"github.com/clearsight/adscope/internal/cache"
	"github.com/clearsight/adscope/internal/pkg/httputil"
	"github.com/clearsight/adscope/internal/suspicion"
	"github.com/clearsight/adscope/internal/winning"
)

// DashboardStats is the one-call dashboard payload.
type DashboardStats struct {
	Winning       winning.Stats `json:"winning"`
	AvgSuspicion  float64       `json:"avg_suspicion"`
	HighSuspicion int           `json:"high_suspicion_ads"`
	CloakedAds    int           `json:"cloaked_ads"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// GetDashboardStats aggregates the active ad set into dashboard numbers.
// Results are cached until a scheduled run invalidates them.
//
//	GET /api/dashboard/stats
func (h *Handlers) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	var stats DashboardStats
	if h.cache.Get(r.Context(), cache.KeyDashboardStats, &stats) {
		httputil.OK(w, stats)
		return
	}

	ads, err := h.ads.ListActive(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	now := time.Now()
	stats = DashboardStats{
		Winning:     winning.Aggregate(ads, now),
		GeneratedAt: now.UTC(),
	}
	scores := make([]int, 0, len(ads))
	for _, ad := range ads {
		scores = append(scores, ad.SuspicionScore)
		if ad.SuspicionScore >= suspicion.HighBandMin {
			stats.HighSuspicion++
		}
		if ad.IsCloaked {
			stats.CloakedAds++
		}
	}
	stats.AvgSuspicion = suspicion.Mean(scores)

	h.cache.Set(r.Context(), cache.KeyDashboardStats, stats)
	httputil.OK(w, stats)
}

// ListAdvertisers returns advertiser aggregates ordered by suspicion.
//
//	GET /api/advertisers
func (h *Handlers) ListAdvertisers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	advs, err := h.rollups.ListAdvertisers(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"advertisers": advs})
}

// ListDomains returns landing-domain aggregates ordered by suspicion.
//
//	GET /api/domains
func (h *Handlers) ListDomains(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	doms, err := h.rollups.ListDomains(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"domains": doms})
}
