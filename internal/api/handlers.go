// Package api exposes the analyst surface: trigger endpoints, content and
// incident operations, report runs and export retrieval. Handlers validate,
// check roles and delegate; pipeline semantics live in the worker packages.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httputil"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Store is the persistence slice the handlers use.
type Store interface {
	ListContent(ctx context.Context, f store.ContentFilter) (*store.ContentPage, error)
	SetContentState(ctx context.Context, itemID uuid.UUID, to domain.ContentState, actorUserID, reason, requestID string) error
	SetOverride(ctx context.Context, c domain.Classification, requestID string) error

	GetIncident(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	ListIncidents(ctx context.Context, status domain.IncidentStatus, limit int) ([]domain.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id uuid.UUID, to domain.IncidentStatus, ownerUserID, actorUserID, requestID string) error
	AddIncidentNote(ctx context.Context, note domain.IncidentNote, requestID string) (uuid.UUID, error)
	ListIncidentNotes(ctx context.Context, incidentID uuid.UUID) ([]domain.IncidentNote, error)

	GetReportTemplate(ctx context.Context, id uuid.UUID) (*domain.ReportTemplate, error)
	CreateReportRun(ctx context.Context, templateID uuid.UUID, requestedBy string) (uuid.UUID, error)
	GetReportRun(ctx context.Context, id uuid.UUID) (*domain.ReportRun, error)
	MonitorOverview(ctx context.Context, windowStart, windowEnd time.Time) (*domain.MonitorOverview, error)

	CreateExportJob(ctx context.Context, job domain.ExportJob, requestID string) (uuid.UUID, error)
	GetExportJob(ctx context.Context, id uuid.UUID) (*domain.ExportJob, error)

	ListReconciliations(ctx context.Context, channel string, limit int) ([]domain.ReconciliationSnapshot, error)
}

// Publisher enqueues one queue message.
type Publisher interface {
	Publish(ctx context.Context, v any) error
}

// Handlers carries the wired dependencies for every route.
type Handlers struct {
	store     Store
	ingestion Publisher
	reports   Publisher
	exports   Publisher
	presigner URLSigner
	now       func() time.Time
}

// NewHandlers wires the handler set. Presigner may be nil when the export
// bucket is not configured.
func NewHandlers(st Store, ingestion, reports, exports Publisher, presigner URLSigner) *Handlers {
	return &Handlers{
		store:     st,
		ingestion: ingestion,
		reports:   reports,
		exports:   exports,
		presigner: presigner,
		now:       time.Now,
	}
}

// requestID surfaces the chi request id for audit correlation.
func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// writeStoreError maps the store taxonomy onto the HTTP envelope.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		httputil.ValidationError(w, err.Error())
	case errors.Is(err, store.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, store.ErrConflict):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
