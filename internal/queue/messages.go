// Package queue carries the pipeline's SQS message contracts and the
// publisher/consumer plumbing shared by the workers. Delivery is
// at-least-once; every sink is idempotent.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// IngestionDispatch starts one ingestion run. All fields besides the trigger
// are optional; the worker fills defaults.
type IngestionDispatch struct {
	RunID              *uuid.UUID  `json:"runId,omitempty"`
	TriggerType        string      `json:"triggerType"`
	RequestID          string      `json:"requestId,omitempty"`
	RequestedAt        *time.Time  `json:"requestedAt,omitempty"`
	TermIDs            []uuid.UUID `json:"termIds,omitempty"`
	Terms              []string    `json:"terms,omitempty"`
	Language           string      `json:"language,omitempty"`
	MaxArticlesPerTerm int         `json:"maxArticlesPerTerm,omitempty"`
}

// ClassificationJob asks the worker to classify one content item.
type ClassificationJob struct {
	ContentItemID uuid.UUID  `json:"content_item_id"`
	PromptVersion string     `json:"prompt_version"`
	ModelID       string     `json:"model_id"`
	SourceType    string     `json:"source_type"`
	TriggerType   string     `json:"trigger_type"`
	RequestID     string     `json:"request_id,omitempty"`
	RequestedAt   *time.Time `json:"requested_at,omitempty"`
}

// ReportJob asks the worker to materialize one queued report run.
type ReportJob struct {
	ReportRunID       uuid.UUID `json:"report_run_id"`
	RequestID         string    `json:"request_id,omitempty"`
	RequestedByUserID string    `json:"requested_by_user_id,omitempty"`
}

// ExportJobMessage asks the export renderer to materialize one CSV.
type ExportJobMessage struct {
	ExportID    uuid.UUID  `json:"export_id"`
	ReportRunID *uuid.UUID `json:"report_run_id,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
}
