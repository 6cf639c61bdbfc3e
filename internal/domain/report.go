package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReportTemplate is a named report definition.
type ReportTemplate struct {
	ID                  uuid.UUID
	Name                string
	Sections            []string
	Filters             map[string]any
	ConfidenceThreshold float64
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ReportSchedule fires a template daily or weekly at a local wall-clock time.
type ReportSchedule struct {
	ID         uuid.UUID
	TemplateID uuid.UUID
	Frequency  ReportScheduleFrequency
	DayOfWeek  *int
	TimeLocal  string
	Timezone   string
	Recipients []string
	Enabled    bool
	NextRunAt  *time.Time
	LastRunAt  *time.Time
}

// ReportRun is one materialization of a template over a 7-day window.
// Schedule-driven runs carry idempotencyKey "schedule:{id}:{slotISO}" so
// repeated scans of the same slot collapse.
type ReportRun struct {
	ID              uuid.UUID
	TemplateID      uuid.UUID
	ScheduleID      *uuid.UUID
	Status          ReportRunStatus
	Confidence      *float64
	Summary         string
	Recommendations []string
	BlockedReason   string
	ExportJobID     *uuid.UUID
	IdempotencyKey  string
	ErrorMessage    string
	RequestedBy     string
	StartedAt       *time.Time
	FinishedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExportJob is an async CSV render request handed to the export renderer.
type ExportJob struct {
	ID                uuid.UUID
	ReportRunID       *uuid.UUID
	Filters           map[string]any
	Status            ExportStatus
	RowCount          *int
	S3Key             string
	RequestedByUserID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MonitorOverview is the KPI aggregate a report run reads.
type MonitorOverview struct {
	TotalItems      int                `json:"total_items"`
	ClassifiedItems int                `json:"classified_items"`
	BHS             float64            `json:"bhs"`
	RiesgoActivo    float64            `json:"riesgo_activo"`
	ShareOfVoice    map[Scope]float64  `json:"share_of_voice"`
	SentimentCounts map[Sentiment]int  `json:"sentiment_counts"`
	DeltaPrevWindow map[string]float64 `json:"delta_prev_window"`
}
