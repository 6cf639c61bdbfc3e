package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentItem is a normalized news article or social post. The canonical URL
// is the natural key; re-ingesting the same URL updates the row in place.
type ContentItem struct {
	ID              uuid.UUID
	SourceType      SourceType
	TermID          *uuid.UUID
	Provider        string
	SourceName      string
	SourceID        string
	CanonicalURL    string
	Title           string
	Summary         string
	Content         string
	ImageURL        string
	Language        string
	Category        string
	PublishedAt     *time.Time
	SourceScore     *float64
	RawPayloadS3Key string
	State           ContentState
	// Categoria and Sentimiento project the most recent classification onto
	// the item for cheap listing queries.
	Categoria   string
	Sentimiento Sentiment
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentStateEvent records one analyst-driven state transition.
type ContentStateEvent struct {
	ID            uuid.UUID
	ContentItemID uuid.UUID
	FromState     ContentState
	ToState       ContentState
	ActorUserID   string
	Reason        string
	CreatedAt     time.Time
}

// Classification is the result of one LLM call or a manual override,
// identified by (contentItemID, promptVersion, modelID).
type Classification struct {
	ID                 uuid.UUID
	ContentItemID      uuid.UUID
	PromptVersion      string
	ModelID            string
	Categoria          string
	Sentimiento        Sentiment
	Etiquetas          []string
	Confianza          float64
	Resumen            string
	IsOverride         bool
	OverriddenByUserID string
	OverrideReason     string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
