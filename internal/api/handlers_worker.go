package api

import (
	"errors"
	"net/http"

	"github.com/clearsight/adscope/internal/pkg/httputil"
	"github.com/clearsight/adscope/internal/worker"
)

// TriggerWorkerRun starts a scheduled run synchronously and returns its
// result. Concurrent triggers are refused while a run holds the lock.
//
//	POST /api/worker/run  {"task_type":"divergence_test","schedule_type":"daily"}
func (h *Handlers) TriggerWorkerRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "worker not configured")
		return
	}

	var req worker.RunRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.TaskType != worker.TaskDivergenceTest && req.TaskType != worker.TaskStatusCheck {
		httputil.BadRequest(w, "unknown task_type")
		return
	}

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, worker.ErrRunInProgress) {
			httputil.ErrorCode(w, http.StatusConflict, "a run is already in progress", "run_in_progress")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}
