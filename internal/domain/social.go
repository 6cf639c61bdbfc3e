package domain

import (
	"time"

	"github.com/google/uuid"
)

// SocialPost is one parsed row of a channel CSV dump. Posts are persisted as
// content items with sourceType=social; this struct carries the channel
// fields the aggregation step needs.
type SocialPost struct {
	Channel      string
	ExternalID   string
	Author       string
	Text         string
	PermalinkURL string
	PostedAt     *time.Time
	Likes        int
	Shares       int
	Comments     int
	Metadata     map[string]any
}

// SocialObjectMark records that a channel CSV object was fully processed.
// The (bucket, key, etag, lastModified) tuple makes re-listing idempotent.
type SocialObjectMark struct {
	ID           uuid.UUID
	Bucket       string
	Key          string
	ETag         string
	LastModified time.Time
	RowCount     int
	ProcessedAt  time.Time
}

// SocialAggregate is the per-channel rollup written after each ingestion.
type SocialAggregate struct {
	Channel       string
	WindowStart   time.Time
	WindowEnd     time.Time
	PostCount     int
	LikeCount     int
	ShareCount    int
	CommentCount  int
	UpdatedAt     time.Time
}

// ReconciliationStatus grades a reconciliation snapshot.
type ReconciliationStatus string

const (
	ReconciliationOK      ReconciliationStatus = "ok"
	ReconciliationWarning ReconciliationStatus = "warning"
)

// ReconciliationSnapshot compares parsed row totals against persisted totals
// for one channel after an ingestion pass.
type ReconciliationSnapshot struct {
	ID             uuid.UUID
	Channel        string
	Status         ReconciliationStatus
	RowsParsed     int
	RowsPersisted  int
	ObjectsScanned int
	ObjectsSkipped int
	Detail         string
	CreatedAt      time.Time
}
