package api

import (
	"net/http"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httputil"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const overviewWindowDays = 7

type createReportRunRequest struct {
	TemplateID uuid.UUID `json:"templateId"`
}

// CreateReportRun enqueues a manual report run for a template.
//
//	POST /api/reports/runs
func (h *Handlers) CreateReportRun(w http.ResponseWriter, r *http.Request) {
	var req createReportRunRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.TemplateID == uuid.Nil {
		httputil.ValidationError(w, "templateId is required")
		return
	}
	tpl, err := h.store.GetReportTemplate(r.Context(), req.TemplateID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !tpl.IsActive {
		httputil.ValidationError(w, "template is inactive")
		return
	}

	runID, err := h.store.CreateReportRun(r.Context(), tpl.ID, actorID(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.reports.Publish(r.Context(), queue.ReportJob{
		ReportRunID:       runID,
		RequestID:         requestID(r),
		RequestedByUserID: actorID(r),
	}); err != nil {
		httputil.DispatchError(w, err)
		return
	}
	httputil.Accepted(w, map[string]any{"reportRunId": runID})
}

// GetReportRun returns one run's current state.
//
//	GET /api/reports/runs/{id}
func (h *Handlers) GetReportRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.ValidationError(w, "id must be a UUID")
		return
	}
	run, err := h.store.GetReportRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OK(w, run)
}

// MonitorOverview returns the 7-day KPI aggregate backing the dashboard.
//
//	GET /api/overview
func (h *Handlers) MonitorOverview(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	overview, err := h.store.MonitorOverview(r.Context(),
		now.Add(-overviewWindowDays*24*time.Hour), now)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OK(w, overview)
}

// ListReconciliations returns recent social reconciliation snapshots.
//
//	GET /api/social/reconciliations
func (h *Handlers) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.store.ListReconciliations(r.Context(), r.URL.Query().Get("channel"), 0)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"reconciliations": snaps})
}
