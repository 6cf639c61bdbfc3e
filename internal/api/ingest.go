package api

import (
	"net/http"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httputil"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/google/uuid"
)

type triggerIngestionRequest struct {
	TermIDs            []uuid.UUID `json:"termIds"`
	Terms              []string    `json:"terms"`
	Language           string      `json:"language"`
	MaxArticlesPerTerm int         `json:"maxArticlesPerTerm"`
}

// TriggerIngestion dispatches a manual ingestion run. The worker applies the
// per-term cap and falls back to the active query set when no targets are
// given.
//
//	POST /api/ingestion/runs
func (h *Handlers) TriggerIngestion(w http.ResponseWriter, r *http.Request) {
	var req triggerIngestionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.MaxArticlesPerTerm < 0 {
		httputil.ValidationError(w, "maxArticlesPerTerm must not be negative")
		return
	}
	if len(req.Terms) > 20 || len(req.TermIDs) > 50 {
		httputil.ValidationError(w, "too many targets in one dispatch")
		return
	}

	runID := uuid.New()
	now := h.now()
	err := h.ingestion.Publish(r.Context(), queue.IngestionDispatch{
		RunID:              &runID,
		TriggerType:        string(domain.TriggerManual),
		RequestID:          requestID(r),
		RequestedAt:        &now,
		TermIDs:            req.TermIDs,
		Terms:              req.Terms,
		Language:           req.Language,
		MaxArticlesPerTerm: req.MaxArticlesPerTerm,
	})
	if err != nil {
		httputil.DispatchError(w, err)
		return
	}
	httputil.Accepted(w, map[string]any{"runId": runID})
}
