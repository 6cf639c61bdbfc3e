package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))

	err := mapError(&pq.Error{Code: "23505", Constraint: "content_items_canonical_url_key"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "content_items_canonical_url_key")

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", TruncateError("short"))
	long := strings.Repeat("x", 5000)
	assert.Len(t, TruncateError(long), maxErrorMessageLen)
}

func TestSetContentStateSameStateConflicts(t *testing.T) {
	s, mock := newMockStore(t)
	itemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT state FROM content_items WHERE id = $1 FOR UPDATE`)).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("archived"))
	mock.ExpectRollback()

	err := s.SetContentState(context.Background(), itemID, domain.ContentArchived, "u1", "", "req-1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetContentStateWritesEventAndAudit(t *testing.T) {
	s, mock := newMockStore(t)
	itemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT state FROM content_items WHERE id = $1 FOR UPDATE`)).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("active"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE content_items SET state = $2`)).
		WithArgs(itemID, domain.ContentArchived).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO content_state_events`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_log`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.SetContentState(context.Background(), itemID, domain.ContentArchived, "u1", "spam", "req-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetContentStateNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	itemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT state FROM content_items WHERE id = $1 FOR UPDATE`)).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"state"}))
	mock.ExpectRollback()

	err := s.SetContentState(context.Background(), itemID, domain.ContentHidden, "u1", "", "req-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimReportRunAlreadyClaimed(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE report_runs SET status = 'running'`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	run, err := s.ClaimReportRun(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, run)
}

// The idempotency_key unique index is partial, so the conflict target has to
// carry the index predicate for Postgres to accept the arbiter.
func TestInsertScheduledRunConflictTargetMatchesPartialIndex(t *testing.T) {
	s, mock := newMockStore(t)
	scheduleID, templateID := uuid.New(), uuid.New()
	runID := uuid.New()
	insertSQL := regexp.QuoteMeta(
		`ON CONFLICT (idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING`)

	mock.ExpectBegin()
	mock.ExpectQuery(insertSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(runID))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_log`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		got, err := InsertScheduledRunTx(tx, scheduleID, templateID, "schedule:s:2026-08-24T13:00:00Z", "req-7")
		require.NoError(t, err)
		assert.Equal(t, runID, got)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertScheduledRunDuplicateSlotIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		got, err := InsertScheduledRunTx(tx, uuid.New(), uuid.New(), "schedule:s:2026-08-24T13:00:00Z", "req-8")
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, got)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOverrideRejectsSecondOverride(t *testing.T) {
	s, mock := newMockStore(t)
	itemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := s.SetOverride(context.Background(), domain.Classification{
		ContentItemID: itemID,
		Categoria:     "servicio",
		Sentimiento:   domain.SentimentNegative,
	}, "req-9")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpsertAutoClassificationSkipsProjectionUnderOverride(t *testing.T) {
	s, mock := newMockStore(t)
	itemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO classifications`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// no content_items projection update expected
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_log`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.UpsertAutoClassification(context.Background(), domain.Classification{
		ContentItemID: itemID,
		PromptVersion: "classification-v1",
		ModelID:       "anthropic.claude-3-haiku",
		Categoria:     "red",
		Sentimiento:   domain.SentimentNeutral,
		Confianza:     0.8,
	}, "req-2")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListContentRejectsBadCursor(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.ListContent(context.Background(), ContentFilter{Cursor: "!!not-base64!!"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLinkRunContentCountsNewLinksOnly(t *testing.T) {
	s, mock := newMockStore(t)
	runID := uuid.New()
	links := []domain.IngestionRunContentLink{
		{RunID: runID, ContentItemID: uuid.New(), CanonicalURL: "https://a.example/1", Provider: "newsapi", Term: "claro"},
		{RunID: runID, ContentItemID: uuid.New(), CanonicalURL: "https://a.example/2", Provider: "newsapi", Term: "claro"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ingestion_run_content_links`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ingestion_run_content_links`)).
		WillReturnResult(sqlmock.NewResult(0, 0)) // duplicate, ON CONFLICT DO NOTHING
	mock.ExpectCommit()

	n, err := s.LinkRunContent(context.Background(), links)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnsureTrackedQueryClampsMaxPerRun(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO tracked_queries`)).
		WithArgs(sqlmock.AnyArg(), "claro colombia", "es", domain.ScopeClaro, true, 500,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	out, err := s.EnsureTrackedQuery(context.Background(), domain.TrackedQuery{
		Name:              " claro colombia ",
		Language:          "ES",
		Scope:             domain.ScopeClaro,
		IsActive:          true,
		MaxArticlesPerRun: 9999,
	})
	require.NoError(t, err)
	assert.Equal(t, id, out)
}

func TestEnsureTrackedQueryRejectsLongLanguage(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.EnsureTrackedQuery(context.Background(), domain.TrackedQuery{
		Name:     "x",
		Language: "too-long-language",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateTrackedQueryDefinitionAppendsRevision(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT current_revision, definition, execution, compiled`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"current_revision", "definition", "execution", "compiled"}).
			AddRow(3, []byte(`{"all":["claro"]}`), []byte(`{}`), []byte(`{"query":"claro"}`)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tracked_query_revisions`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tracked_queries`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_log`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.UpdateTrackedQueryDefinition(context.Background(), id,
		map[string]any{"all": []string{"claro", "hogar"}}, map[string]any{},
		map[string]any{"query": "claro hogar"}, "added hogar term", "u1", "req-7")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTrackedQueryDefinitionNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT current_revision, definition, execution, compiled`)).
		WillReturnRows(sqlmock.NewRows([]string{"current_revision", "definition", "execution", "compiled"}))
	mock.ExpectRollback()

	err := s.UpdateTrackedQueryDefinition(context.Background(), uuid.New(),
		nil, nil, nil, "", "u1", "req-8")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinishRunNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	runID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE ingestion_runs`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.FinishRun(context.Background(), runID, domain.RunCompleted, domain.RunMetrics{}, "", "req")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateIncidentStatusRejectsIllegalTransition(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM incidents WHERE id = $1 FOR UPDATE`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("resolved"))
	mock.ExpectRollback()

	err := s.UpdateIncidentStatus(context.Background(), id, domain.IncidentInProgress, "", "u1", "req")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSourceWeightKey(t *testing.T) {
	assert.Equal(t, "newsapi", SourceWeightKey(" NewsAPI ", ""))
	assert.Equal(t, "newsapi|el tiempo", SourceWeightKey("newsapi", "El Tiempo "))
}

func TestClaimExportJobAlreadyClaimed(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE export_jobs SET status = 'running'`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	job, err := s.ClaimExportJob(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestExportJobClaimAndFinish(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE export_jobs SET status = 'running'`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM export_jobs WHERE id = $1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "report_run_id", "filters", "status", "row_count", "s3_key",
			"requested_by_user_id", "created_at", "updated_at",
		}).AddRow(id, nil, []byte(`{"state":"active"}`), "running", nil, nil, "u1", now, now))

	job, err := s.ClaimExportJob(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.ExportRunning, job.Status)
	assert.Equal(t, "active", job.Filters["state"])
	assert.Nil(t, job.RowCount)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE export_jobs SET status = $2`)).
		WithArgs(id, domain.ExportCompleted, 412, "exports/2026/08/run.csv").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.FinishExportJob(context.Background(), id, domain.ExportCompleted, 412, "exports/2026/08/run.csv"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishExportJobNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE export_jobs SET status = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.FinishExportJob(context.Background(), id, domain.ExportFailed, 0, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTryMarkSocialObjectIdempotent(t *testing.T) {
	s, mock := newMockStore(t)
	mark := domain.SocialObjectMark{
		Bucket:       "social-dumps",
		Key:          "facebook/2026-08-20.csv",
		ETag:         "abc123",
		LastModified: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO social_object_marks`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	claimed, err := s.TryMarkSocialObject(context.Background(), mark)
	require.NoError(t, err)
	assert.True(t, claimed)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO social_object_marks`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	claimed, err = s.TryMarkSocialObject(context.Background(), mark)
	require.NoError(t, err)
	assert.False(t, claimed)
}
