package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one append-only record of an administrative or pipeline
// decision. Entries are written in the same transaction as the state change
// they describe.
type AuditEntry struct {
	ID           uuid.UUID
	ActorUserID  string
	Action       string
	ResourceType string
	ResourceID   string
	RequestID    string
	Before       map[string]any
	After        map[string]any
	CreatedAt    time.Time
}

// Audit actions written by the pipeline core.
const (
	AuditIngestionRunStarted      = "ingestion_run_started"
	AuditIngestionRunFinished     = "ingestion_run_finished"
	AuditClassificationWritten    = "classification_written"
	AuditOverrideSet              = "classification_override_set"
	AuditContentStateChanged      = "content_state_changed"
	AuditQueryDefinitionChanged   = "tracked_query_definition_changed"
	AuditIncidentAutoCreated      = "incident_auto_created"
	AuditIncidentAutoEscalated    = "incident_auto_escalated"
	AuditIncidentRefreshed        = "incident_refreshed"
	AuditIncidentStatusChanged    = "incident_status_changed"
	AuditIncidentNoteAdded        = "incident_note_added"
	AuditReportRunFinished        = "report_run_finished"
	AuditReportScheduleRunEnqueue = "report_schedule_run_enqueued"
	AuditExportJobCreated         = "export_job_created"
	AuditSocialObjectIngested     = "social_object_ingested"
)
