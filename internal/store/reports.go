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

// GetReportTemplate loads one template by id.
func (s *Store) GetReportTemplate(ctx context.Context, id uuid.UUID) (*domain.ReportTemplate, error) {
	var t domain.ReportTemplate
	var filters []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sections, filters, confidence_threshold, is_active, created_at, updated_at
		FROM report_templates WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, pq.Array(&t.Sections), &filters,
		&t.ConfidenceThreshold, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if err := scanJSON(filters, &t.Filters); err != nil {
		return nil, fmt.Errorf("template filters json: %w", err)
	}
	return &t, nil
}

const reportRunColumns = `id, template_id, schedule_id, status, confidence,
	COALESCE(summary,''), recommendations, COALESCE(blocked_reason,''), export_job_id,
	COALESCE(idempotency_key,''), COALESCE(error_message,''), COALESCE(requested_by,''),
	started_at, finished_at, created_at, updated_at`

func scanReportRun(row interface{ Scan(...any) error }) (*domain.ReportRun, error) {
	var r domain.ReportRun
	var scheduleID, exportJobID sql.NullString
	var confidence sql.NullFloat64
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.TemplateID, &scheduleID, &r.Status, &confidence,
		&r.Summary, pq.Array(&r.Recommendations), &r.BlockedReason, &exportJobID,
		&r.IdempotencyKey, &r.ErrorMessage, &r.RequestedBy,
		&startedAt, &finishedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if scheduleID.Valid {
		if id, err := uuid.Parse(scheduleID.String); err == nil {
			r.ScheduleID = &id
		}
	}
	if exportJobID.Valid {
		if id, err := uuid.Parse(exportJobID.String); err == nil {
			r.ExportJobID = &id
		}
	}
	if confidence.Valid {
		r.Confidence = &confidence.Float64
	}
	r.StartedAt = timePtr(startedAt)
	r.FinishedAt = timePtr(finishedAt)
	return &r, nil
}

// GetReportRun loads one run by id.
func (s *Store) GetReportRun(ctx context.Context, id uuid.UUID) (*domain.ReportRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportRunColumns+` FROM report_runs WHERE id = $1`, id)
	r, err := scanReportRun(row)
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

// CreateReportRun enqueues a manual run for a template.
func (s *Store) CreateReportRun(ctx context.Context, templateID uuid.UUID, requestedBy string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_runs (id, template_id, status, requested_by, created_at, updated_at)
		VALUES ($1, $2, 'queued', $3, NOW(), NOW())
	`, id, templateID, nullString(requestedBy))
	if err != nil {
		return uuid.Nil, fmt.Errorf("create report run: %w", mapError(err))
	}
	return id, nil
}

// ClaimReportRun atomically moves a queued run to running. A nil result
// means the run was already claimed or is not queued, so the message should
// be dropped without error.
func (s *Store) ClaimReportRun(ctx context.Context, id uuid.UUID) (*domain.ReportRun, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE report_runs SET status = 'running', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
		RETURNING `+reportRunColumns, id)
	r, err := scanReportRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim report run: %w", err)
	}
	return r, nil
}

// FinalizeReportRun writes the terminal state of a successful evaluation:
// completed when confidence cleared the template threshold, pending_review
// when it did not. The finish audit entry rides the same transaction.
func (s *Store) FinalizeReportRun(ctx context.Context, id uuid.UUID, status domain.ReportRunStatus,
	confidence float64, summary string, recommendations []string,
	blockedReason string, exportJobID *uuid.UUID, requestID string) error {

	var exportID any
	if exportJobID != nil {
		exportID = *exportJobID
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE report_runs
			SET status = $2, confidence = $3, summary = $4, recommendations = $5,
			    blocked_reason = NULLIF($6, ''), export_job_id = $7,
			    finished_at = NOW(), updated_at = NOW()
			WHERE id = $1
		`, id, status, confidence, summary, pq.Array(recommendations), blockedReason, exportID)
		if err != nil {
			return fmt.Errorf("finalize report run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: report run %s", ErrNotFound, id)
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			Action:       domain.AuditReportRunFinished,
			ResourceType: "report_run",
			ResourceID:   id.String(),
			RequestID:    requestID,
			After: map[string]any{
				"status":     status,
				"confidence": confidence,
			},
		})
	})
}

// FailReportRun writes the failed terminal state with a truncated error.
func (s *Store) FailReportRun(ctx context.Context, id uuid.UUID, errorMessage, requestID string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE report_runs
			SET status = 'failed', error_message = $2, finished_at = NOW(), updated_at = NOW()
			WHERE id = $1
		`, id, nullString(TruncateError(errorMessage)))
		if err != nil {
			return fmt.Errorf("fail report run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: report run %s", ErrNotFound, id)
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			Action:       domain.AuditReportRunFinished,
			ResourceType: "report_run",
			ResourceID:   id.String(),
			RequestID:    requestID,
			After:        map[string]any{"status": domain.ReportFailed},
		})
	})
}

// CreateExportJob enqueues an async CSV export with its audit entry.
func (s *Store) CreateExportJob(ctx context.Context, job domain.ExportJob, requestID string) (uuid.UUID, error) {
	filters, err := jsonValue(job.Filters)
	if err != nil {
		return uuid.Nil, err
	}
	id := job.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	var runID any
	if job.ReportRunID != nil {
		runID = *job.ReportRunID
	}
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO export_jobs
				(id, report_run_id, filters, status, requested_by_user_id, created_at, updated_at)
			VALUES ($1, $2, $3, 'queued', $4, NOW(), NOW())
		`, id, runID, filters, nullString(job.RequestedByUserID)); err != nil {
			return fmt.Errorf("create export job: %w", mapError(err))
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			ActorUserID:  job.RequestedByUserID,
			Action:       domain.AuditExportJobCreated,
			ResourceType: "export_job",
			ResourceID:   id.String(),
			RequestID:    requestID,
		})
	})
	return id, err
}

// GetExportJob loads one export job by id.
func (s *Store) GetExportJob(ctx context.Context, id uuid.UUID) (*domain.ExportJob, error) {
	var job domain.ExportJob
	var runID sql.NullString
	var rowCount sql.NullInt64
	var s3Key, requestedBy sql.NullString
	var filters []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, report_run_id, filters, status, row_count, s3_key, requested_by_user_id,
		       created_at, updated_at
		FROM export_jobs WHERE id = $1
	`, id).Scan(&job.ID, &runID, &filters, &job.Status, &rowCount, &s3Key, &requestedBy,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if runID.Valid {
		if rid, err := uuid.Parse(runID.String); err == nil {
			job.ReportRunID = &rid
		}
	}
	if rowCount.Valid {
		n := int(rowCount.Int64)
		job.RowCount = &n
	}
	job.S3Key = s3Key.String
	job.RequestedByUserID = requestedBy.String
	if err := scanJSON(filters, &job.Filters); err != nil {
		return nil, fmt.Errorf("export filters json: %w", err)
	}
	return &job, nil
}

// ClaimExportJob atomically moves a queued export to running; nil means
// already claimed.
func (s *Store) ClaimExportJob(ctx context.Context, id uuid.UUID) (*domain.ExportJob, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE export_jobs SET status = 'running', updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
	`, id)
	if err != nil {
		return nil, fmt.Errorf("claim export job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetExportJob(ctx, id)
}

// FinishExportJob writes the export's terminal state.
func (s *Store) FinishExportJob(ctx context.Context, id uuid.UUID,
	status domain.ExportStatus, rowCount int, s3Key string) error {

	res, err := s.db.ExecContext(ctx, `
		UPDATE export_jobs SET status = $2, row_count = $3, s3_key = NULLIF($4,''), updated_at = NOW()
		WHERE id = $1
	`, id, status, rowCount, s3Key)
	if err != nil {
		return fmt.Errorf("finish export job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: export job %s", ErrNotFound, id)
	}
	return nil
}

// GetReportSchedule loads one schedule by id.
func (s *Store) GetReportSchedule(ctx context.Context, id uuid.UUID) (*domain.ReportSchedule, error) {
	var sc domain.ReportSchedule
	var dayOfWeek sql.NullInt64
	var nextRunAt, lastRunAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, template_id, frequency, day_of_week, time_local, timezone,
		       recipients, enabled, next_run_at, last_run_at
		FROM report_schedules WHERE id = $1
	`, id).Scan(&sc.ID, &sc.TemplateID, &sc.Frequency, &dayOfWeek, &sc.TimeLocal,
		&sc.Timezone, pq.Array(&sc.Recipients), &sc.Enabled, &nextRunAt, &lastRunAt)
	if err != nil {
		return nil, mapError(err)
	}
	if dayOfWeek.Valid {
		d := int(dayOfWeek.Int64)
		sc.DayOfWeek = &d
	}
	sc.NextRunAt = timePtr(nextRunAt)
	sc.LastRunAt = timePtr(lastRunAt)
	return &sc, nil
}

// DueSchedules locks enabled schedules whose next_run_at has passed. The
// SKIP LOCKED keeps concurrent scheduler instances off each other's rows.
func DueSchedulesTx(tx *sql.Tx, now time.Time, limit int) ([]domain.ReportSchedule, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := tx.Query(`
		SELECT id, template_id, frequency, day_of_week, time_local, timezone,
		       recipients, enabled, next_run_at, last_run_at
		FROM report_schedules
		WHERE enabled AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.ReportSchedule
	for rows.Next() {
		var sc domain.ReportSchedule
		var dayOfWeek sql.NullInt64
		var nextRunAt, lastRunAt sql.NullTime
		if err := rows.Scan(&sc.ID, &sc.TemplateID, &sc.Frequency, &dayOfWeek,
			&sc.TimeLocal, &sc.Timezone, pq.Array(&sc.Recipients), &sc.Enabled,
			&nextRunAt, &lastRunAt); err != nil {
			return nil, err
		}
		if dayOfWeek.Valid {
			d := int(dayOfWeek.Int64)
			sc.DayOfWeek = &d
		}
		sc.NextRunAt = timePtr(nextRunAt)
		sc.LastRunAt = timePtr(lastRunAt)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// InsertScheduledRunTx enqueues the slot's report run keyed by the slot
// idempotency key. Returns uuid.Nil with no error when the slot was already
// enqueued by an earlier scan.
func InsertScheduledRunTx(tx *sql.Tx, scheduleID, templateID uuid.UUID,
	idempotencyKey, requestID string) (uuid.UUID, error) {

	id := uuid.New()
	var out uuid.UUID
	err := tx.QueryRow(`
		INSERT INTO report_runs (id, template_id, schedule_id, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, 'queued', $4, NOW(), NOW())
		ON CONFLICT (idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING id
	`, id, templateID, scheduleID, idempotencyKey).Scan(&out)
	if err == sql.ErrNoRows {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert scheduled run: %w", err)
	}
	err = AppendAuditTx(tx, domain.AuditEntry{
		Action:       domain.AuditReportScheduleRunEnqueue,
		ResourceType: "report_schedule",
		ResourceID:   scheduleID.String(),
		RequestID:    requestID,
		After:        map[string]any{"report_run_id": out.String(), "idempotency_key": idempotencyKey},
	})
	return out, err
}

// AdvanceScheduleTx stamps the fired slot and the next occurrence.
func AdvanceScheduleTx(tx *sql.Tx, scheduleID uuid.UUID, firedAt, nextRunAt time.Time) error {
	res, err := tx.Exec(`
		UPDATE report_schedules SET last_run_at = $2, next_run_at = $3, updated_at = NOW()
		WHERE id = $1
	`, scheduleID, firedAt, nextRunAt)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: schedule %s", ErrNotFound, scheduleID)
	}
	return nil
}

// MonitorOverview aggregates the window KPIs a report run reads: item and
// classification volume, sentiment distribution, share of voice per scope,
// and the brand health score.
func (s *Store) MonitorOverview(ctx context.Context, windowStart, windowEnd time.Time) (*domain.MonitorOverview, error) {
	ov := &domain.MonitorOverview{
		ShareOfVoice:    make(map[domain.Scope]float64),
		SentimentCounts: make(map[domain.Sentiment]int),
		DeltaPrevWindow: make(map[string]float64),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE sentimiento IS NOT NULL AND sentimiento <> ''),
		       COUNT(*) FILTER (WHERE sentimiento = 'positivo'),
		       COUNT(*) FILTER (WHERE sentimiento = 'neutro'),
		       COUNT(*) FILTER (WHERE sentimiento = 'negativo')
		FROM content_items
		WHERE state = 'active'
		  AND COALESCE(published_at, created_at) >= $1
		  AND COALESCE(published_at, created_at) < $2
	`, windowStart, windowEnd).Scan(&ov.TotalItems, &ov.ClassifiedItems,
		newSentimentCount(ov, domain.SentimentPositive),
		newSentimentCount(ov, domain.SentimentNeutral),
		newSentimentCount(ov, domain.SentimentNegative))
	if err != nil {
		return nil, fmt.Errorf("overview counts: %w", err)
	}

	// BHS: share of non-negative sentiment among classified items, 0-100.
	if ov.ClassifiedItems > 0 {
		nonNeg := ov.SentimentCounts[domain.SentimentPositive] + ov.SentimentCounts[domain.SentimentNeutral]
		ov.BHS = 100 * float64(nonNeg) / float64(ov.ClassifiedItems)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(tq.scope, 'claro'), COUNT(*)
		FROM content_items ci
		LEFT JOIN tracked_queries tq ON tq.id = ci.term_id
		WHERE ci.state = 'active'
		  AND COALESCE(ci.published_at, ci.created_at) >= $1
		  AND COALESCE(ci.published_at, ci.created_at) < $2
		GROUP BY 1
	`, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("overview share of voice: %w", err)
	}
	defer rows.Close()

	scopeCounts := make(map[domain.Scope]int)
	total := 0
	for rows.Next() {
		var scope domain.Scope
		var n int
		if err := rows.Scan(&scope, &n); err != nil {
			return nil, err
		}
		scopeCounts[scope] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for scope, n := range scopeCounts {
		if total > 0 {
			ov.ShareOfVoice[scope] = float64(n) / float64(total)
		}
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(risk_score), 0)
		FROM incidents WHERE status IN ('open', 'acknowledged', 'in_progress')
	`).Scan(&ov.RiesgoActivo)
	if err != nil {
		return nil, fmt.Errorf("overview active risk: %w", err)
	}
	return ov, nil
}

// sentimentCountScanner routes a COUNT(*) FILTER column into the overview map.
type sentimentCountScanner struct {
	ov *domain.MonitorOverview
	s  domain.Sentiment
}

func newSentimentCount(ov *domain.MonitorOverview, s domain.Sentiment) *sentimentCountScanner {
	return &sentimentCountScanner{ov: ov, s: s}
}

func (c *sentimentCountScanner) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		c.ov.SentimentCounts[c.s] = int(v)
	case nil:
		c.ov.SentimentCounts[c.s] = 0
	default:
		return fmt.Errorf("unexpected sentiment count type %T", src)
	}
	return nil
}

// TopContent returns the window's most relevant items per sentiment for the
// report narrative, source-score descending.
func (s *Store) TopContent(ctx context.Context, windowStart, windowEnd time.Time,
	sentiment domain.Sentiment, limit int) ([]domain.ContentItem, error) {

	if limit <= 0 || limit > 20 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_type, term_id, provider, source_name, source_id, canonical_url,
			title, summary, content, image_url, language, category, published_at, source_score,
			raw_payload_s3_key, state, COALESCE(categoria,''), COALESCE(sentimiento,''), metadata,
			created_at, updated_at
		FROM content_items
		WHERE state = 'active' AND sentimiento = $1
		  AND COALESCE(published_at, created_at) >= $2
		  AND COALESCE(published_at, created_at) < $3
		ORDER BY source_score DESC NULLS LAST, created_at DESC
		LIMIT $4
	`, sentiment, windowStart, windowEnd, limit)
	if err != nil {
		return nil, fmt.Errorf("top content: %w", err)
	}
	defer rows.Close()

	var out []domain.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// ExportRows streams content rows matching the export filters, capped.
func (s *Store) ExportRows(ctx context.Context, f ContentFilter, maxRows int) ([]domain.ContentItem, error) {
	if maxRows <= 0 {
		maxRows = 10000
	}
	f.Limit = 100
	var out []domain.ContentItem
	for len(out) < maxRows {
		page, err := s.ListContent(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextCursor == "" {
			break
		}
		f.Cursor = page.NextCursor
	}
	if len(out) > maxRows {
		out = out[:maxRows]
	}
	return out, nil
}
