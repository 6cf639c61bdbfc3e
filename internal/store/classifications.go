package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PendingContentIDs selects up to limit active news items inside the window
// that have no classification row for the current (promptVersion, modelID).
func (s *Store) PendingContentIDs(ctx context.Context, windowStart time.Time,
	promptVersion, modelID string, limit int) ([]uuid.UUID, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.id
		FROM content_items ci
		WHERE ci.state = 'active'
		  AND ci.source_type = 'news'
		  AND COALESCE(ci.published_at, ci.created_at) >= $1
		  AND NOT EXISTS (
			SELECT 1 FROM classifications c
			WHERE c.content_item_id = ci.id
			  AND c.prompt_version = $2
			  AND c.model_id = $3
		  )
		ORDER BY COALESCE(ci.published_at, ci.created_at) DESC
		LIMIT $4
	`, windowStart, promptVersion, modelID, limit)
	if err != nil {
		return nil, fmt.Errorf("pending content ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClassificationSource is the text bundle the worker sends to the model.
type ClassificationSource struct {
	ID       uuid.UUID
	Title    string
	Summary  string
	Content  string
	Provider string
	Language string
}

// GetClassificationSource loads the fields the prompt template needs.
func (s *Store) GetClassificationSource(ctx context.Context, id uuid.UUID) (*ClassificationSource, error) {
	var src ClassificationSource
	var summary, content, language sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, summary, content, provider, language
		FROM content_items WHERE id = $1
	`, id).Scan(&src.ID, &src.Title, &summary, &content, &src.Provider, &language)
	if err != nil {
		return nil, mapError(err)
	}
	src.Summary = summary.String
	src.Content = content.String
	src.Language = language.String
	return &src, nil
}

// HasOverride reports whether a manual override exists for the content item.
func (s *Store) HasOverride(ctx context.Context, contentItemID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM classifications WHERE content_item_id = $1 AND is_override)`,
		contentItemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has override: %w", err)
	}
	return exists, nil
}

// UpsertAutoClassification writes the model result keyed by
// (contentItemID, promptVersion, modelID) and refreshes the content item's
// derived projection unless an override shadows it. Re-delivery of the same
// result is a no-op upsert: updatedAt changes, content fields do not.
func (s *Store) UpsertAutoClassification(ctx context.Context, c domain.Classification, requestID string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var hasOverride bool
		err := tx.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM classifications WHERE content_item_id = $1 AND is_override)`,
			c.ContentItemID).Scan(&hasOverride)
		if err != nil {
			return fmt.Errorf("override check: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO classifications
				(id, content_item_id, prompt_version, model_id, categoria, sentimiento,
				 etiquetas, confianza, resumen, is_override, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW(), NOW())
			ON CONFLICT (content_item_id, prompt_version, model_id) WHERE NOT is_override
			DO UPDATE SET
				categoria = EXCLUDED.categoria,
				sentimiento = EXCLUDED.sentimiento,
				etiquetas = EXCLUDED.etiquetas,
				confianza = EXCLUDED.confianza,
				resumen = EXCLUDED.resumen,
				updated_at = NOW()
		`, uuid.New(), c.ContentItemID, c.PromptVersion, c.ModelID, c.Categoria,
			c.Sentimiento, pq.Array(c.Etiquetas), c.Confianza, nullString(c.Resumen))
		if err != nil {
			return fmt.Errorf("upsert classification: %w", mapError(err))
		}

		if !hasOverride {
			if _, err := tx.Exec(`
				UPDATE content_items SET categoria = $2, sentimiento = $3, updated_at = NOW()
				WHERE id = $1
			`, c.ContentItemID, c.Categoria, c.Sentimiento); err != nil {
				return fmt.Errorf("project classification: %w", err)
			}
		}

		return AppendAuditTx(tx, domain.AuditEntry{
			Action:       domain.AuditClassificationWritten,
			ResourceType: "content_item",
			ResourceID:   c.ContentItemID.String(),
			RequestID:    requestID,
			After: map[string]any{
				"categoria":   c.Categoria,
				"sentimiento": c.Sentimiento,
				"confianza":   c.Confianza,
				"model_id":    c.ModelID,
			},
		})
	})
}

// SetOverride writes the manual override for a content item. At most one
// override may exist per item; a second attempt maps to ErrConflict.
func (s *Store) SetOverride(ctx context.Context, c domain.Classification, requestID string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM classifications WHERE content_item_id = $1 AND is_override)`,
			c.ContentItemID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("override check: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: override already exists for content %s", ErrConflict, c.ContentItemID)
		}

		_, err = tx.Exec(`
			INSERT INTO classifications
				(id, content_item_id, prompt_version, model_id, categoria, sentimiento,
				 etiquetas, confianza, resumen, is_override, overridden_by_user_id,
				 override_reason, created_at, updated_at)
			VALUES ($1, $2, 'manual', 'manual', $3, $4, $5, $6, $7, TRUE, $8, $9, NOW(), NOW())
		`, uuid.New(), c.ContentItemID, c.Categoria, c.Sentimiento, pq.Array(c.Etiquetas),
			c.Confianza, nullString(c.Resumen), nullString(c.OverriddenByUserID), nullString(c.OverrideReason))
		if err != nil {
			return fmt.Errorf("insert override: %w", mapError(err))
		}

		// The override shadows auto-classifications on the projection.
		if _, err := tx.Exec(`
			UPDATE content_items SET categoria = $2, sentimiento = $3, updated_at = NOW()
			WHERE id = $1
		`, c.ContentItemID, c.Categoria, c.Sentimiento); err != nil {
			return fmt.Errorf("project override: %w", err)
		}

		return AppendAuditTx(tx, domain.AuditEntry{
			ActorUserID:  c.OverriddenByUserID,
			Action:       domain.AuditOverrideSet,
			ResourceType: "content_item",
			ResourceID:   c.ContentItemID.String(),
			RequestID:    requestID,
			After: map[string]any{
				"categoria":   c.Categoria,
				"sentimiento": c.Sentimiento,
				"reason":      c.OverrideReason,
			},
		})
	})
}

// ClassifiedItem is one row of the evaluator's window scan: the latest
// classification per content item (override first, then most recent), with
// the fields weight resolution needs.
type ClassifiedItem struct {
	ContentItemID uuid.UUID
	Scope         domain.Scope
	Provider      string
	SourceName    string
	SourceScore   *float64
	Sentimiento   domain.Sentiment
}

// ClassifiedWindowItems loads active news items classified inside the
// window, joined to their winning classification and owning query scope.
func (s *Store) ClassifiedWindowItems(ctx context.Context, windowStart time.Time) ([]ClassifiedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.id, COALESCE(tq.scope, 'claro'), ci.provider, COALESCE(ci.source_name, ''),
		       ci.source_score, c.sentimiento
		FROM content_items ci
		JOIN LATERAL (
			SELECT sentimiento FROM classifications
			WHERE content_item_id = ci.id
			ORDER BY is_override DESC, created_at DESC
			LIMIT 1
		) c ON TRUE
		LEFT JOIN tracked_queries tq ON tq.id = ci.term_id
		WHERE ci.state = 'active'
		  AND ci.source_type = 'news'
		  AND COALESCE(ci.published_at, ci.created_at) >= $1
	`, windowStart)
	if err != nil {
		return nil, fmt.Errorf("classified window: %w", err)
	}
	defer rows.Close()

	var out []ClassifiedItem
	for rows.Next() {
		var item ClassifiedItem
		var sourceScore sql.NullFloat64
		if err := rows.Scan(&item.ContentItemID, &item.Scope, &item.Provider,
			&item.SourceName, &sourceScore, &item.Sentimiento); err != nil {
			return nil, err
		}
		if sourceScore.Valid {
			item.SourceScore = &sourceScore.Float64
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
