// Package domain defines the entities and persisted enums shared by the
// pipeline workers, the store, and the HTTP surface.
package domain

// RunStatus is the lifecycle status of an ingestion or evaluation run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TriggerType records how a pipeline run was started.
type TriggerType string

const (
	TriggerScheduled TriggerType = "scheduled"
	TriggerManual    TriggerType = "manual"
)

// SourceType distinguishes news articles from social posts.
type SourceType string

const (
	SourceNews   SourceType = "news"
	SourceSocial SourceType = "social"
)

// ContentState reflects analyst triage of a content item.
type ContentState string

const (
	ContentActive   ContentState = "active"
	ContentArchived ContentState = "archived"
	ContentHidden   ContentState = "hidden"
)

// Scope partitions analysis between own brand and competitors.
type Scope string

const (
	ScopeClaro       Scope = "claro"
	ScopeCompetencia Scope = "competencia"
)

// AllScopes lists every analytical scope the evaluator walks.
func AllScopes() []Scope { return []Scope{ScopeClaro, ScopeCompetencia} }

// Sentiment is the normalized classification sentiment.
type Sentiment string

const (
	SentimentPositive Sentiment = "positivo"
	SentimentNeutral  Sentiment = "neutro"
	SentimentNegative Sentiment = "negativo"
)

// IncidentStatus is the workflow status of a reputational incident.
type IncidentStatus string

const (
	IncidentOpen         IncidentStatus = "open"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentInProgress   IncidentStatus = "in_progress"
	IncidentResolved     IncidentStatus = "resolved"
	IncidentDismissed    IncidentStatus = "dismissed"
)

// ActiveIncidentStatuses are the non-terminal incident statuses. At most one
// incident per scope may be in one of these at any time.
func ActiveIncidentStatuses() []IncidentStatus {
	return []IncidentStatus{IncidentOpen, IncidentAcknowledged, IncidentInProgress}
}

// CanTransitionTo reports whether an analyst may move an incident from s to
// next. Resolved and dismissed are terminal.
func (s IncidentStatus) CanTransitionTo(next IncidentStatus) bool {
	switch s {
	case IncidentOpen:
		return next == IncidentAcknowledged || next == IncidentInProgress ||
			next == IncidentResolved || next == IncidentDismissed
	case IncidentAcknowledged:
		return next == IncidentInProgress || next == IncidentResolved || next == IncidentDismissed
	case IncidentInProgress:
		return next == IncidentResolved || next == IncidentDismissed
	default:
		return false
	}
}

// IncidentSeverity ranks incidents; SEV1 is the most severe.
type IncidentSeverity string

const (
	SeveritySEV1 IncidentSeverity = "SEV1"
	SeveritySEV2 IncidentSeverity = "SEV2"
	SeveritySEV3 IncidentSeverity = "SEV3"
	SeveritySEV4 IncidentSeverity = "SEV4"
)

// Rank returns the ordinal of a severity; lower ranks are more severe.
func (s IncidentSeverity) Rank() int {
	switch s {
	case SeveritySEV1:
		return 1
	case SeveritySEV2:
		return 2
	case SeveritySEV3:
		return 3
	default:
		return 4
	}
}

// ReportRunStatus is the lifecycle status of a report materialization.
type ReportRunStatus string

const (
	ReportQueued        ReportRunStatus = "queued"
	ReportRunning       ReportRunStatus = "running"
	ReportCompleted     ReportRunStatus = "completed"
	ReportFailed        ReportRunStatus = "failed"
	ReportPendingReview ReportRunStatus = "pending_review"
)

// ReportScheduleFrequency is how often a schedule fires.
type ReportScheduleFrequency string

const (
	FrequencyDaily  ReportScheduleFrequency = "daily"
	FrequencyWeekly ReportScheduleFrequency = "weekly"
)

// ExportStatus is the lifecycle status of an async CSV export job.
type ExportStatus string

const (
	ExportQueued    ExportStatus = "queued"
	ExportRunning   ExportStatus = "running"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)
