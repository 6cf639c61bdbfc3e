package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/auth"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httputil"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const bulkStateMax = 200

// ListContent pages content items with the filter allow-list.
//
//	GET /api/content
func (h *Handlers) ListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ContentFilter{
		SourceType:  domain.SourceType(q.Get("source_type")),
		State:       domain.ContentState(q.Get("state")),
		Provider:    q.Get("provider"),
		Category:    q.Get("category"),
		Sentimiento: domain.Sentiment(q.Get("sentimiento")),
		Q:           q.Get("q"),
		Cursor:      q.Get("cursor"),
	}
	if raw := q.Get("term_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.ValidationError(w, "term_id must be a UUID")
			return
		}
		f.TermID = &id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.ValidationError(w, "from must be RFC3339")
			return
		}
		f.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.ValidationError(w, "to must be RFC3339")
			return
		}
		f.To = &t
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}

	page, err := h.store.ListContent(r.Context(), f)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"items":      page.Items,
		"nextCursor": page.NextCursor,
	})
}

type bulkStateRequest struct {
	IDs    []uuid.UUID `json:"ids"`
	State  string      `json:"state"`
	Reason string      `json:"reason"`
}

type bulkStateResult struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// BulkContentState transitions a batch of items. Each id succeeds or fails
// independently; partial progress is preserved and reported per id.
//
//	POST /api/content/state
func (h *Handlers) BulkContentState(w http.ResponseWriter, r *http.Request) {
	var req bulkStateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 || len(req.IDs) > bulkStateMax {
		httputil.ValidationError(w, "ids must contain between 1 and 200 entries")
		return
	}
	to := domain.ContentState(req.State)
	if to != domain.ContentActive && to != domain.ContentArchived && to != domain.ContentHidden {
		httputil.ValidationError(w, "state must be active, archived or hidden")
		return
	}

	actor := actorID(r)
	results := make([]bulkStateResult, 0, len(req.IDs))
	for _, id := range req.IDs {
		res := bulkStateResult{ID: id, Status: "ok"}
		if err := h.store.SetContentState(r.Context(), id, to, actor, req.Reason, requestID(r)); err != nil {
			res.Status = "error"
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	httputil.OK(w, map[string]any{"results": results})
}

type overrideRequest struct {
	Categoria   string   `json:"categoria"`
	Sentimiento string   `json:"sentimiento"`
	Etiquetas   []string `json:"etiquetas"`
	Confianza   float64  `json:"confianza"`
	Resumen     string   `json:"resumen"`
	Reason      string   `json:"reason"`
}

// SetOverride records a manual classification for one item. A second
// override for the same item is a conflict.
//
//	POST /api/content/{id}/override
func (h *Handlers) SetOverride(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.ValidationError(w, "id must be a UUID")
		return
	}
	var req overrideRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Categoria == "" {
		httputil.ValidationError(w, "categoria is required")
		return
	}
	sentiment := domain.Sentiment(req.Sentimiento)
	if sentiment != domain.SentimentPositive && sentiment != domain.SentimentNeutral &&
		sentiment != domain.SentimentNegative {
		httputil.ValidationError(w, "sentimiento must be positivo, neutro or negativo")
		return
	}

	err = h.store.SetOverride(r.Context(), domain.Classification{
		ContentItemID:      itemID,
		Categoria:          req.Categoria,
		Sentimiento:        sentiment,
		Etiquetas:          req.Etiquetas,
		Confianza:          req.Confianza,
		Resumen:            req.Resumen,
		IsOverride:         true,
		OverriddenByUserID: actorID(r),
		OverrideReason:     req.Reason,
	}, requestID(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"contentItemId": itemID, "sentimiento": sentiment})
}

func actorID(r *http.Request) string {
	if id := auth.FromContext(r.Context()); id != nil {
		return id.UserID
	}
	return ""
}
