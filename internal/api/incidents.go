package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ListIncidents lists incidents, optionally filtered by status.
//
//	GET /api/incidents
func (h *Handlers) ListIncidents(w http.ResponseWriter, r *http.Request) {
	status := domain.IncidentStatus(r.URL.Query().Get("status"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	incidents, err := h.store.ListIncidents(r.Context(), status, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"incidents": incidents})
}

// GetIncident returns one incident with its notes.
//
//	GET /api/incidents/{id}
func (h *Handlers) GetIncident(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.ValidationError(w, "id must be a UUID")
		return
	}
	incident, err := h.store.GetIncident(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	notes, err := h.store.ListIncidentNotes(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"incident": incident, "notes": notes})
}

type incidentStatusRequest struct {
	Status string `json:"status"`
	Owner  string `json:"owner"`
}

// UpdateIncidentStatus applies a guarded status transition. Illegal
// transitions are a validation error, same-status writes a conflict.
//
//	POST /api/incidents/{id}/status
func (h *Handlers) UpdateIncidentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.ValidationError(w, "id must be a UUID")
		return
	}
	var req incidentStatusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	to := domain.IncidentStatus(strings.TrimSpace(req.Status))
	switch to {
	case domain.IncidentAcknowledged, domain.IncidentInProgress,
		domain.IncidentResolved, domain.IncidentDismissed:
	default:
		httputil.ValidationError(w, "status must be acknowledged, in_progress, resolved or dismissed")
		return
	}

	if err := h.store.UpdateIncidentStatus(r.Context(), id, to, req.Owner, actorID(r), requestID(r)); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"id": id, "status": to})
}

type incidentNoteRequest struct {
	Body string `json:"body"`
}

// AddIncidentNote appends an analyst note.
//
//	POST /api/incidents/{id}/notes
func (h *Handlers) AddIncidentNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.ValidationError(w, "id must be a UUID")
		return
	}
	var req incidentNoteRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		httputil.ValidationError(w, "body is required")
		return
	}

	noteID, err := h.store.AddIncidentNote(r.Context(), domain.IncidentNote{
		IncidentID: id,
		AuthorID:   actorID(r),
		Body:       req.Body,
	}, requestID(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"id": noteID})
}
