package domain

import (
	"time"

	"github.com/google/uuid"
)

// Incident is one open reputational alert for a scope.
type Incident struct {
	ID              uuid.UUID
	Scope           Scope
	Status          IncidentStatus
	Severity        IncidentSeverity
	RiskScore       float64
	ClassifiedItems int
	OwnerUserID     string
	SLADueAt        *time.Time
	CooldownUntil   *time.Time
	SignalVersion   string
	Payload         map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
}

// IncidentNote is an analyst annotation on an incident.
type IncidentNote struct {
	ID          uuid.UUID
	IncidentID  uuid.UUID
	AuthorID    string
	Body        string
	CreatedAt   time.Time
}

// IncidentEvaluationRun records one pass of the incident evaluator.
type IncidentEvaluationRun struct {
	ID           uuid.UUID
	Status       RunStatus
	TriggerType  TriggerType
	Metrics      map[string]any
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// ScopeSignals are the per-scope accumulators the evaluator computes over
// the classified window.
type ScopeSignals struct {
	Scope            Scope   `json:"scope"`
	ClassifiedItems  int     `json:"classified_items"`
	ClassifiedWeight float64 `json:"classified_weight"`
	NegativeWeight   float64 `json:"negative_weight"`
	Positives        int     `json:"positives"`
	Negatives        int     `json:"negatives"`
	Neutrals         int     `json:"neutrals"`
	UnknownSentiment int     `json:"unknown_sentiment"`
	RiskWeighted     float64 `json:"risk_weighted"`
}

// SourceWeight is the trust weight of a (provider, source) pair; a row with
// an empty source name is the provider-level fallback.
type SourceWeight struct {
	Provider   string
	SourceName string
	Weight     float64
}
