package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearsight/adscope/internal/divergence"
	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/pkg/httputil"
	"github.com/clearsight/adscope/internal/repository/postgres"
	"github.com/clearsight/adscope/internal/suspicion"
	"github.com/clearsight/adscope/internal/urlcheck"
	"github.com/clearsight/adscope/internal/worker"
)

// ListAds returns a page of tracked ads with derived winning scores.
//
//	GET /api/ads?status=active&advertiser_id=...&limit=50&offset=0
func (h *Handlers) ListAds(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	f := postgres.ListFilter{
		Status:       domain.AdStatus(r.URL.Query().Get("status")),
		AdvertiserID: r.URL.Query().Get("advertiser_id"),
		Limit:        limit,
		Offset:       offset,
	}
	if f.Status != "" && f.Status != domain.AdActive && f.Status != domain.AdInactive {
		httputil.BadRequest(w, "unknown status filter")
		return
	}

	ads, total, err := h.ads.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	now := time.Now()
	views := make([]adView, 0, len(ads))
	for _, ad := range ads {
		views = append(views, viewOf(ad, now))
	}
	httputil.OK(w, map[string]any{
		"ads":    views,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetAd returns a single ad with its derived winning score.
//
//	GET /api/ads/{id}
func (h *Handlers) GetAd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ad, err := h.ads.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "ad not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, viewOf(ad, time.Now()))
}

// ListAdSnapshots returns archived captures for an ad, newest first.
//
//	GET /api/ads/{id}/snapshots
func (h *Handlers) ListAdSnapshots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.ads.Get(r.Context(), id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "ad not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	limit, _ := parsePagination(r)
	snaps, err := h.snaps.ListByAd(r.Context(), id, limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"snapshots": snaps})
}

// GetSnapshotBody streams the archived raw HTML for one capture.
//
//	GET /api/ads/{id}/snapshots/{snapshotID}/body
func (h *Handlers) GetSnapshotBody(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "snapshot archive not configured")
		return
	}

	adID := chi.URLParam(r, "id")
	snapID := chi.URLParam(r, "snapshotID")
	snaps, err := h.snaps.ListByAd(r.Context(), adID, maxPageSize)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	for _, s := range snaps {
		if s.ID != snapID {
			continue
		}
		if s.ArchiveKey == "" {
			httputil.NotFound(w, "snapshot body was not archived")
			return
		}
		body, err := h.archive.Get(r.Context(), s.ArchiveKey)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}
	httputil.NotFound(w, "snapshot not found")
}

// RunDivergenceCheck runs a single on-demand divergence check for one ad,
// persists the resulting suspicion score, and returns the full report.
//
//	POST /api/ads/{id}/divergence-check
func (h *Handlers) RunDivergenceCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ad, err := h.ads.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "ad not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	report, err := h.engine.Check(r.Context(), ad.ID, ad.WhiteURL)
	if err != nil {
		var verr *urlcheck.ValidationError
		var ferr *divergence.FetchError
		switch {
		case errors.As(err, &verr):
			httputil.ErrorCode(w, http.StatusBadRequest, verr.Error(), "invalid_target")
		case errors.As(err, &ferr):
			httputil.ErrorCode(w, http.StatusBadGateway, "snapshot source unavailable", "fetch_failed")
		default:
			httputil.InternalError(w, err)
		}
		return
	}

	resp := map[string]any{"report": report}
	if report.Status == domain.DivergenceChecked {
		score := h.scorer.ScoreReport(ad, report, 0)
		blackURL := worker.DetectBlackURL(ad, report)
		if err := h.ads.WriteScore(r.Context(), ad.ID, score, report.Diverges, blackURL); err != nil {
			httputil.InternalError(w, err)
			return
		}
		resp["suspicion_score"] = score
		resp["band"] = suspicion.Band(score)
	}
	httputil.OK(w, resp)
}
