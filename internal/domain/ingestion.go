package domain

import (
	"time"

	"github.com/google/uuid"
)

// IngestionRun is one fan-out of the ingestion worker over a set of queries.
type IngestionRun struct {
	ID                 uuid.UUID
	Status             RunStatus
	TriggerType        TriggerType
	Language           string
	MaxArticlesPerTerm int
	RequestID          string
	StartedAt          *time.Time
	FinishedAt         *time.Time
	Metrics            RunMetrics
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RunMetrics aggregates the outcome of an ingestion run.
type RunMetrics struct {
	TermsProcessed int               `json:"terms_processed"`
	TermsSkipped   int               `json:"terms_skipped"`
	ItemsFetched   int               `json:"items_fetched"`
	ItemsPersisted int               `json:"items_persisted"`
	ProviderErrors int               `json:"provider_errors"`
	TermSummaries  []RunTermSummary  `json:"term_summaries,omitempty"`
	ProviderTotals map[string]int    `json:"provider_totals,omitempty"`
	SkippedTerms   map[string]string `json:"skipped_terms,omitempty"`
}

// RunTermSummary is the per-term slice of run metrics.
type RunTermSummary struct {
	Term      string `json:"term"`
	Fetched   int    `json:"fetched"`
	Matched   int    `json:"matched"`
	Persisted int    `json:"persisted"`
	Providers int    `json:"providers"`
}

// IngestionRunItem is the per-provider, per-run outcome, replaced wholesale
// when the run finishes.
type IngestionRunItem struct {
	ID             uuid.UUID
	RunID          uuid.UUID
	Provider       string
	FetchedCount   int
	PersistedCount int
	LatencyMs      int64
	Status         RunStatus
	ErrorMessage   string
}

// IngestionRunContentLink ties a content item to the run that first saw it.
// The distinct set of newly inserted links is the authoritative persisted
// count for the run.
type IngestionRunContentLink struct {
	RunID         uuid.UUID
	ContentItemID uuid.UUID
	CanonicalURL  string
	Provider      string
	Term          string
}

// RunSnapshot is the claim-check view of a run used for dedupe.
type RunSnapshot struct {
	ID        uuid.UUID
	Status    RunStatus
	StartedAt *time.Time
}
