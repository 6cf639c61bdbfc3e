package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/google/uuid"
)

// GetRunSnapshot loads the claim-check view of an ingestion run. A nil
// result means the run has never been seen.
func (s *Store) GetRunSnapshot(ctx context.Context, runID uuid.UUID) (*domain.RunSnapshot, error) {
	var snap domain.RunSnapshot
	var startedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at FROM ingestion_runs WHERE id = $1`, runID).
		Scan(&snap.ID, &snap.Status, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run snapshot: %w", err)
	}
	snap.StartedAt = timePtr(startedAt)
	return &snap, nil
}

// ClaimRun upserts the run to running, clears per-item history, and appends
// the start audit entry, all in one transaction.
func (s *Store) ClaimRun(ctx context.Context, run domain.IngestionRun) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO ingestion_runs
				(id, status, trigger_type, language, max_articles_per_term, request_id,
				 started_at, metrics, created_at, updated_at)
			VALUES ($1, 'running', $2, $3, $4, $5, NOW(), '{}', NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET
				status = 'running',
				trigger_type = EXCLUDED.trigger_type,
				language = EXCLUDED.language,
				max_articles_per_term = EXCLUDED.max_articles_per_term,
				request_id = EXCLUDED.request_id,
				started_at = NOW(),
				finished_at = NULL,
				error_message = NULL,
				updated_at = NOW()
		`, run.ID, run.TriggerType, nullString(run.Language), run.MaxArticlesPerTerm, nullString(run.RequestID))
		if err != nil {
			return fmt.Errorf("claim run: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM ingestion_run_items WHERE run_id = $1`, run.ID); err != nil {
			return fmt.Errorf("clear run items: %w", err)
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			Action:       domain.AuditIngestionRunStarted,
			ResourceType: "ingestion_run",
			ResourceID:   run.ID.String(),
			RequestID:    run.RequestID,
			After:        map[string]any{"trigger_type": run.TriggerType, "language": run.Language},
		})
	})
}

// ReplaceRunItems swaps the per-provider outcomes wholesale.
func (s *Store) ReplaceRunItems(ctx context.Context, runID uuid.UUID, items []domain.IngestionRunItem) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM ingestion_run_items WHERE run_id = $1`, runID); err != nil {
			return fmt.Errorf("clear run items: %w", err)
		}
		for _, it := range items {
			_, err := tx.Exec(`
				INSERT INTO ingestion_run_items
					(id, run_id, provider, fetched_count, persisted_count, latency_ms, status, error_message)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, uuid.New(), runID, it.Provider, it.FetchedCount, it.PersistedCount,
				it.LatencyMs, it.Status, nullString(TruncateError(it.ErrorMessage)))
			if err != nil {
				return fmt.Errorf("insert run item %s: %w", it.Provider, err)
			}
		}
		return nil
	})
}

// FinishRun writes the terminal status, metrics and the finish audit entry.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, status domain.RunStatus,
	metrics domain.RunMetrics, errorMessage, requestID string) error {

	metricsJSON, err := jsonValue(metrics)
	if err != nil {
		return err
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE ingestion_runs
			SET status = $2, metrics = $3, error_message = $4, finished_at = NOW(), updated_at = NOW()
			WHERE id = $1
		`, runID, status, metricsJSON, nullString(TruncateError(errorMessage)))
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			Action:       domain.AuditIngestionRunFinished,
			ResourceType: "ingestion_run",
			ResourceID:   runID.String(),
			RequestID:    requestID,
			After: map[string]any{
				"status":          status,
				"items_persisted": metrics.ItemsPersisted,
				"provider_errors": metrics.ProviderErrors,
			},
		})
	})
}

// LinkRunContent inserts run-content links, ignoring duplicates, and
// returns how many links were newly created. That count is the
// authoritative persisted count for the run.
func (s *Store) LinkRunContent(ctx context.Context, links []domain.IngestionRunContentLink) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, l := range links {
			res, err := tx.Exec(`
				INSERT INTO ingestion_run_content_links (run_id, content_item_id, canonical_url, provider, term)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (run_id, canonical_url) DO NOTHING
			`, l.RunID, l.ContentItemID, l.CanonicalURL, l.Provider, l.Term)
			if err != nil {
				return fmt.Errorf("link run content: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}

// RunItemCounts sums persisted counts per provider for one run, used by the
// metrics consistency checks.
func (s *Store) RunItemCounts(ctx context.Context, runID uuid.UUID) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, persisted_count FROM ingestion_run_items WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("run item counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var provider string
		var count int
		if err := rows.Scan(&provider, &count); err != nil {
			return nil, err
		}
		out[provider] = count
	}
	return out, rows.Err()
}
