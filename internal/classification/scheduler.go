package classification

import (
	"context"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/google/uuid"
)

// PendingSource is the store slice the scheduler reads.
type PendingSource interface {
	PendingContentIDs(ctx context.Context, windowStart time.Time, promptVersion, modelID string, limit int) ([]uuid.UUID, error)
}

// JobPublisher sends classification jobs.
type JobPublisher interface {
	Publish(ctx context.Context, v any) error
}

// Scheduler enqueues one classification job per pending content item inside
// the rolling window. No batch coalescing: each item is its own message.
type Scheduler struct {
	store         PendingSource
	publisher     JobPublisher
	promptVersion string
	modelID       string
	window        time.Duration
	limit         int
	now           func() time.Time
}

// NewScheduler wires the scheduler. window and limit come straight from
// configuration defaults (7 days, 120).
func NewScheduler(st PendingSource, pub JobPublisher, promptVersion, modelID string,
	window time.Duration, limit int) *Scheduler {
	return &Scheduler{
		store:         st,
		publisher:     pub,
		promptVersion: promptVersion,
		modelID:       modelID,
		window:        window,
		limit:         limit,
		now:           time.Now,
	}
}

// Schedule runs one scan pass and returns how many jobs were enqueued.
func (s *Scheduler) Schedule(ctx context.Context, triggerType, requestID string) (int, error) {
	windowStart := s.now().Add(-s.window)
	ids, err := s.store.PendingContentIDs(ctx, windowStart, s.promptVersion, s.modelID, s.limit)
	if err != nil {
		return 0, err
	}

	now := s.now()
	enqueued := 0
	for _, id := range ids {
		job := queue.ClassificationJob{
			ContentItemID: id,
			PromptVersion: s.promptVersion,
			ModelID:       s.modelID,
			SourceType:    "news",
			TriggerType:   triggerType,
			RequestID:     requestID,
			RequestedAt:   &now,
		}
		if err := s.publisher.Publish(ctx, job); err != nil {
			// Already-enqueued items will be retried on the next scan.
			logger.Error("classification_enqueue_failed", "content_item_id", id, "error", err.Error())
			continue
		}
		enqueued++
	}
	logger.Info("classification_scheduled", "pending", len(ids), "enqueued", enqueued,
		"window_start", windowStart.Format(time.RFC3339))
	return enqueued, nil
}
