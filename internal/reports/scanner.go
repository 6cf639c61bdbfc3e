package reports

import (
	"context"
	"database/sql"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/google/uuid"
)

// Scanner claims due report schedules and enqueues their runs. Concurrent
// scanner instances are safe: due rows are claimed with SKIP LOCKED and
// slots collapse on the idempotency key.
type Scanner struct {
	store     *store.Store
	publisher ExportPublisher
	defaultTZ string
	now       func() time.Time
}

// NewScanner wires the schedule scanner. publisher targets the report queue.
func NewScanner(st *store.Store, publisher ExportPublisher, defaultTZ string) *Scanner {
	return &Scanner{store: st, publisher: publisher, defaultTZ: defaultTZ, now: time.Now}
}

// Scan runs one pass and returns how many report runs were enqueued.
func (s *Scanner) Scan(ctx context.Context, requestID string) (int, error) {
	now := s.now()
	type enqueued struct {
		runID uuid.UUID
	}
	var toPublish []enqueued

	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		due, err := store.DueSchedulesTx(tx, now, 20)
		if err != nil {
			return err
		}
		for _, sc := range due {
			slot := now
			if sc.NextRunAt != nil {
				slot = *sc.NextRunAt
			}
			runID, err := store.InsertScheduledRunTx(tx, sc.ID, sc.TemplateID, SlotKey(sc.ID, slot), requestID)
			if err != nil {
				return err
			}
			if runID != uuid.Nil {
				toPublish = append(toPublish, enqueued{runID: runID})
			}

			next, err := NextRunAt(sc, slot, s.defaultTZ)
			if err != nil {
				logger.Warn("schedule_next_run_failed", "schedule_id", sc.ID, "error", err.Error())
				continue
			}
			if err := store.AdvanceScheduleTx(tx, sc.ID, slot, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Publishing happens after commit so a rollback never leaks messages.
	// The report worker tolerates a lost message: the queued run is picked
	// up by the next manual nudge or redelivery.
	published := 0
	for _, e := range toPublish {
		if err := s.publisher.Publish(ctx, queue.ReportJob{ReportRunID: e.runID, RequestID: requestID}); err != nil {
			logger.Error("schedule_publish_failed", "report_run_id", e.runID, "error", err.Error())
			continue
		}
		published++
	}
	if published > 0 {
		logger.Info("schedules_scanned", "enqueued", published)
	}
	return published, nil
}
