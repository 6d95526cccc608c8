package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearsight/adscope/internal/pkg/httputil"
	"github.com/clearsight/adscope/internal/repository/postgres"
)

// ListAlerts returns alerts newest first.
//
//	GET /api/alerts?unread=true&limit=50&offset=0
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	f := postgres.AlertFilter{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      limit,
		Offset:     offset,
	}

	alerts, total, err := h.alerts.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"alerts": alerts,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// MarkAlertRead marks one alert as read.
//
//	POST /api/alerts/{id}/read
func (h *Handlers) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.alerts.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "alert not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"read": true})
}

// DeleteAlert removes one alert.
//
//	DELETE /api/alerts/{id}
func (h *Handlers) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.alerts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "alert not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
