package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/google/uuid"
)

const trackedQueryColumns = `id, name, language, scope, is_active, max_articles_per_run,
	definition, execution, compiled, current_revision, created_at, updated_at`

// GetTrackedQuery loads one saved search by id.
func (s *Store) GetTrackedQuery(ctx context.Context, id uuid.UUID) (*domain.TrackedQuery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackedQueryColumns+` FROM tracked_queries WHERE id = $1`, id)
	q, err := scanTrackedQuery(row)
	if err != nil {
		return nil, mapError(err)
	}
	return q, nil
}

// ListActiveQueries returns the most recently updated active queries.
func (s *Store) ListActiveQueries(ctx context.Context, limit int) ([]domain.TrackedQuery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackedQueryColumns+` FROM tracked_queries
		 WHERE is_active ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list active queries: %w", err)
	}
	defer rows.Close()

	var out []domain.TrackedQuery
	for rows.Next() {
		q, err := scanTrackedQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// EnsureTrackedQuery upserts a query row by (name, language) and returns its
// id. Ad-hoc terms from manual dispatches get a row so run links and content
// items always reference a real term.
func (s *Store) EnsureTrackedQuery(ctx context.Context, q domain.TrackedQuery) (uuid.UUID, error) {
	def, err := jsonValue(q.Definition)
	if err != nil {
		return uuid.Nil, err
	}
	exec, err := jsonValue(q.Execution)
	if err != nil {
		return uuid.Nil, err
	}
	compiled, err := jsonValue(q.Compiled)
	if err != nil {
		return uuid.Nil, err
	}

	id := q.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	maxPerRun := q.MaxArticlesPerRun
	if maxPerRun < 1 {
		maxPerRun = 50
	}
	if maxPerRun > 500 {
		maxPerRun = 500
	}
	lang := strings.ToLower(strings.TrimSpace(q.Language))
	if len(lang) > 8 {
		return uuid.Nil, fmt.Errorf("%w: language longer than 8 chars", ErrValidation)
	}

	var out uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO tracked_queries
			(id, name, language, scope, is_active, max_articles_per_run,
			 definition, execution, compiled, current_revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW())
		ON CONFLICT (name, language) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, id, strings.TrimSpace(q.Name), lang, q.Scope, q.IsActive, maxPerRun, def, exec, compiled).Scan(&out)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ensure tracked query %q: %w", q.Name, mapError(err))
	}
	return out, nil
}

// UpdateTrackedQueryDefinition replaces a query's definition, execution and
// compiled form. The prior forms are appended as a revision row and
// current_revision increments, all in one transaction.
func (s *Store) UpdateTrackedQueryDefinition(ctx context.Context, id uuid.UUID,
	definition, execution, compiled map[string]any, changeReason, actorUserID, requestID string) error {

	def, err := jsonValue(definition)
	if err != nil {
		return err
	}
	exec, err := jsonValue(execution)
	if err != nil {
		return err
	}
	comp, err := jsonValue(compiled)
	if err != nil {
		return err
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var revision int
		var prevDef, prevExec, prevCompiled []byte
		err := tx.QueryRow(`
			SELECT current_revision, definition, execution, compiled
			FROM tracked_queries WHERE id = $1 FOR UPDATE
		`, id).Scan(&revision, &prevDef, &prevExec, &prevCompiled)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: tracked query %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("lock tracked query: %w", err)
		}

		if _, err := tx.Exec(`
			INSERT INTO tracked_query_revisions
				(id, query_id, revision, definition, execution, compiled, change_reason, actor_user_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, uuid.New(), id, revision, prevDef, prevExec, prevCompiled,
			nullString(changeReason), nullString(actorUserID)); err != nil {
			return fmt.Errorf("append query revision: %w", err)
		}

		if _, err := tx.Exec(`
			UPDATE tracked_queries
			SET definition = $2, execution = $3, compiled = $4,
			    current_revision = current_revision + 1, updated_at = NOW()
			WHERE id = $1
		`, id, def, exec, comp); err != nil {
			return fmt.Errorf("update tracked query: %w", err)
		}

		return AppendAuditTx(tx, domain.AuditEntry{
			ActorUserID:  actorUserID,
			Action:       domain.AuditQueryDefinitionChanged,
			ResourceType: "tracked_query",
			ResourceID:   id.String(),
			RequestID:    requestID,
			Before:       map[string]any{"revision": revision},
			After:        map[string]any{"revision": revision + 1, "reason": changeReason},
		})
	})
}

func scanTrackedQuery(row interface{ Scan(...any) error }) (*domain.TrackedQuery, error) {
	var q domain.TrackedQuery
	var def, exec, compiled []byte
	if err := row.Scan(&q.ID, &q.Name, &q.Language, &q.Scope, &q.IsActive, &q.MaxArticlesPerRun,
		&def, &exec, &compiled, &q.CurrentRevision, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	if err := scanJSON(def, &q.Definition); err != nil {
		return nil, fmt.Errorf("definition json: %w", err)
	}
	if err := scanJSON(exec, &q.Execution); err != nil {
		return nil, fmt.Errorf("execution json: %w", err)
	}
	if err := scanJSON(compiled, &q.Compiled); err != nil {
		return nil, fmt.Errorf("compiled json: %w", err)
	}
	return &q, nil
}
