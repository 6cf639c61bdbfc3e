package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/google/uuid"
)

const incidentColumns = `id, scope, status, severity, risk_score, classified_items,
	COALESCE(owner_user_id,''), sla_due_at, cooldown_until, signal_version, payload,
	created_at, updated_at, resolved_at`

func scanIncident(row interface{ Scan(...any) error }) (*domain.Incident, error) {
	var inc domain.Incident
	var slaDueAt, cooldownUntil, resolvedAt sql.NullTime
	var payload []byte
	if err := row.Scan(&inc.ID, &inc.Scope, &inc.Status, &inc.Severity, &inc.RiskScore,
		&inc.ClassifiedItems, &inc.OwnerUserID, &slaDueAt, &cooldownUntil,
		&inc.SignalVersion, &payload, &inc.CreatedAt, &inc.UpdatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	inc.SLADueAt = timePtr(slaDueAt)
	inc.CooldownUntil = timePtr(cooldownUntil)
	inc.ResolvedAt = timePtr(resolvedAt)
	if err := scanJSON(payload, &inc.Payload); err != nil {
		return nil, fmt.Errorf("incident payload json: %w", err)
	}
	return &inc, nil
}

// GetIncident loads one incident by id.
func (s *Store) GetIncident(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
	inc, err := scanIncident(row)
	if err != nil {
		return nil, mapError(err)
	}
	return inc, nil
}

// ListIncidents returns incidents newest first, optionally filtered by status.
func (s *Store) ListIncidents(ctx context.Context, status domain.IncidentStatus, limit int) ([]domain.Incident, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + incidentColumns + ` FROM incidents`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

// ActiveIncidents returns every non-terminal incident, most severe first.
func (s *Store) ActiveIncidents(ctx context.Context) ([]domain.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+incidentColumns+` FROM incidents
		WHERE status IN ('open', 'acknowledged', 'in_progress')
		ORDER BY severity ASC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("active incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

// ActiveIncidentForScopeTx locks and returns the scope's open incident, or
// nil when none exists. At most one open incident per scope is allowed, so
// the row lock serializes competing evaluator passes.
func ActiveIncidentForScopeTx(tx *sql.Tx, scope domain.Scope) (*domain.Incident, error) {
	row := tx.QueryRow(`
		SELECT `+incidentColumns+` FROM incidents
		WHERE scope = $1 AND status IN ('open', 'acknowledged', 'in_progress')
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE
	`, scope)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active incident for %s: %w", scope, err)
	}
	return inc, nil
}

// InsertIncidentTx creates a new open incident and its audit entry.
func InsertIncidentTx(tx *sql.Tx, inc domain.Incident, requestID string) (uuid.UUID, error) {
	payload, err := jsonValue(inc.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	id := inc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err = tx.Exec(`
		INSERT INTO incidents
			(id, scope, status, severity, risk_score, classified_items, sla_due_at,
			 cooldown_until, signal_version, payload, created_at, updated_at)
		VALUES ($1, $2, 'open', $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, id, inc.Scope, inc.Severity, inc.RiskScore, inc.ClassifiedItems,
		nullTime(inc.SLADueAt), nullTime(inc.CooldownUntil), inc.SignalVersion, payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert incident: %w", mapError(err))
	}
	err = AppendAuditTx(tx, domain.AuditEntry{
		Action:       domain.AuditIncidentAutoCreated,
		ResourceType: "incident",
		ResourceID:   id.String(),
		RequestID:    requestID,
		After: map[string]any{
			"scope":      inc.Scope,
			"severity":   inc.Severity,
			"risk_score": inc.RiskScore,
		},
	})
	return id, err
}

// EscalateIncidentTx raises severity on an active incident: status snaps
// back to open, the SLA tightens, the cooldown restarts, and any resolution
// stamp is cleared.
func EscalateIncidentTx(tx *sql.Tx, id uuid.UUID, from, to domain.IncidentSeverity,
	riskScore float64, classifiedItems int, slaDueAt, cooldownUntil time.Time,
	payload map[string]any, requestID string) error {

	payloadJSON, err := jsonValue(payload)
	if err != nil {
		return err
	}
	res, err := tx.Exec(`
		UPDATE incidents
		SET severity = $2, status = 'open', risk_score = $3, classified_items = $4,
		    sla_due_at = $5, cooldown_until = $6, payload = $7,
		    resolved_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, to, riskScore, classifiedItems, slaDueAt, cooldownUntil, payloadJSON)
	if err != nil {
		return fmt.Errorf("escalate incident: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: incident %s", ErrNotFound, id)
	}
	return AppendAuditTx(tx, domain.AuditEntry{
		Action:       domain.AuditIncidentAutoEscalated,
		ResourceType: "incident",
		ResourceID:   id.String(),
		RequestID:    requestID,
		Before:       map[string]any{"severity": from},
		After:        map[string]any{"severity": to, "risk_score": riskScore},
	})
}

// RefreshIncidentTx updates signals on an active incident past its cooldown
// without changing severity, status or SLA. The cooldown restarts.
func RefreshIncidentTx(tx *sql.Tx, id uuid.UUID, riskScore float64,
	classifiedItems int, cooldownUntil time.Time, payload map[string]any, requestID string) error {

	payloadJSON, err := jsonValue(payload)
	if err != nil {
		return err
	}
	res, err := tx.Exec(`
		UPDATE incidents
		SET risk_score = $2, classified_items = $3, cooldown_until = $4, payload = $5, updated_at = NOW()
		WHERE id = $1
	`, id, riskScore, classifiedItems, cooldownUntil, payloadJSON)
	if err != nil {
		return fmt.Errorf("refresh incident: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: incident %s", ErrNotFound, id)
	}
	return AppendAuditTx(tx, domain.AuditEntry{
		Action:       domain.AuditIncidentRefreshed,
		ResourceType: "incident",
		ResourceID:   id.String(),
		RequestID:    requestID,
		After:        map[string]any{"risk_score": riskScore, "classified_items": classifiedItems},
	})
}

// UpdateIncidentStatus applies an analyst-driven transition. Closing or
// resolving stamps resolved_at; a same-status transition maps to ErrConflict.
func (s *Store) UpdateIncidentStatus(ctx context.Context, id uuid.UUID,
	to domain.IncidentStatus, ownerUserID, actorUserID, requestID string) error {

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var from domain.IncidentStatus
		err := tx.QueryRow(`SELECT status FROM incidents WHERE id = $1 FOR UPDATE`, id).Scan(&from)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: incident %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("lock incident: %w", err)
		}
		if from == to {
			return fmt.Errorf("%w: incident already %s", ErrConflict, to)
		}
		if !from.CanTransitionTo(to) {
			return fmt.Errorf("%w: cannot move incident from %s to %s", ErrValidation, from, to)
		}

		resolvedClause := ""
		if to == domain.IncidentResolved || to == domain.IncidentDismissed {
			resolvedClause = ", resolved_at = NOW()"
		}
		q := fmt.Sprintf(`UPDATE incidents SET status = $2, owner_user_id = COALESCE(NULLIF($3,''), owner_user_id), updated_at = NOW()%s WHERE id = $1`, resolvedClause)
		if _, err := tx.Exec(q, id, to, ownerUserID); err != nil {
			return fmt.Errorf("update incident status: %w", err)
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			ActorUserID:  actorUserID,
			Action:       domain.AuditIncidentStatusChanged,
			ResourceType: "incident",
			ResourceID:   id.String(),
			RequestID:    requestID,
			Before:       map[string]any{"status": from},
			After:        map[string]any{"status": to, "owner": ownerUserID},
		})
	})
}

// AddIncidentNote appends an analyst note with its audit entry.
func (s *Store) AddIncidentNote(ctx context.Context, note domain.IncidentNote, requestID string) (uuid.UUID, error) {
	id := note.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, note.IncidentID).Scan(&exists); err != nil {
			return fmt.Errorf("incident check: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: incident %s", ErrNotFound, note.IncidentID)
		}
		if _, err := tx.Exec(`
			INSERT INTO incident_notes (id, incident_id, author_id, body, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`, id, note.IncidentID, note.AuthorID, note.Body); err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			ActorUserID:  note.AuthorID,
			Action:       domain.AuditIncidentNoteAdded,
			ResourceType: "incident",
			ResourceID:   note.IncidentID.String(),
			RequestID:    requestID,
			After:        map[string]any{"note_id": id.String()},
		})
	})
	return id, err
}

// ListIncidentNotes returns notes oldest first.
func (s *Store) ListIncidentNotes(ctx context.Context, incidentID uuid.UUID) ([]domain.IncidentNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, author_id, body, created_at
		FROM incident_notes WHERE incident_id = $1 ORDER BY created_at ASC
	`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []domain.IncidentNote
	for rows.Next() {
		var n domain.IncidentNote
		if err := rows.Scan(&n.ID, &n.IncidentID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// StartEvaluationRun records the evaluator pass start.
func (s *Store) StartEvaluationRun(ctx context.Context, trigger domain.TriggerType) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incident_evaluation_runs (id, status, trigger_type, metrics, started_at)
		VALUES ($1, 'running', $2, '{}', NOW())
	`, id, trigger)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start evaluation run: %w", err)
	}
	return id, nil
}

// FinishEvaluationRun writes the terminal status and pass metrics.
func (s *Store) FinishEvaluationRun(ctx context.Context, id uuid.UUID,
	status domain.RunStatus, metrics map[string]any, errorMessage string) error {

	metricsJSON, err := jsonValue(metrics)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE incident_evaluation_runs
		SET status = $2, metrics = $3, error_message = $4, finished_at = NOW()
		WHERE id = $1
	`, id, status, metricsJSON, nullString(TruncateError(errorMessage)))
	if err != nil {
		return fmt.Errorf("finish evaluation run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: evaluation run %s", ErrNotFound, id)
	}
	return nil
}
