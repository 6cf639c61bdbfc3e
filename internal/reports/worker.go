package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/google/uuid"
)

const (
	reportWindowDays  = 7
	topContentLimit   = 12
	blockedLowConf    = "confidence_below_threshold"
	errNotFoundReason = "report_run_not_found_after_claim"
)

// exportFilterKeys is the allow-list persisted on export jobs.
var exportFilterKeys = map[string]struct{}{
	"source_type": {}, "state": {}, "from": {}, "to": {}, "provider": {},
	"category": {}, "sentimiento": {}, "term_id": {}, "q": {},
}

// ReportStore is the store slice the worker drives.
type ReportStore interface {
	ClaimReportRun(ctx context.Context, id uuid.UUID) (*domain.ReportRun, error)
	GetReportTemplate(ctx context.Context, id uuid.UUID) (*domain.ReportTemplate, error)
	GetReportSchedule(ctx context.Context, id uuid.UUID) (*domain.ReportSchedule, error)
	FailReportRun(ctx context.Context, id uuid.UUID, errorMessage, requestID string) error
	FinalizeReportRun(ctx context.Context, id uuid.UUID, status domain.ReportRunStatus,
		confidence float64, summary string, recommendations []string,
		blockedReason string, exportJobID *uuid.UUID, requestID string) error
	CreateExportJob(ctx context.Context, job domain.ExportJob, requestID string) (uuid.UUID, error)
	MonitorOverview(ctx context.Context, windowStart, windowEnd time.Time) (*domain.MonitorOverview, error)
	ActiveIncidents(ctx context.Context) ([]domain.Incident, error)
	ListContent(ctx context.Context, f store.ContentFilter) (*store.ContentPage, error)
}

// ExportPublisher enqueues export messages.
type ExportPublisher interface {
	Publish(ctx context.Context, v any) error
}

// Worker consumes report-run messages.
type Worker struct {
	store            ReportStore
	exports          ExportPublisher
	mailer           *Mailer
	defaultThreshold float64
	now              func() time.Time
}

// NewWorker wires the report worker. defaultThreshold applies when the
// template does not carry its own.
func NewWorker(st ReportStore, exports ExportPublisher, mailer *Mailer, defaultThreshold float64) *Worker {
	return &Worker{
		store:            st,
		exports:          exports,
		mailer:           mailer,
		defaultThreshold: defaultThreshold,
		now:              time.Now,
	}
}

// Handle processes one raw report message.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job queue.ReportJob
	if err := json.Unmarshal(body, &job); err != nil {
		logger.Warn("report_bad_message", "error", err.Error())
		return nil
	}
	if job.ReportRunID == uuid.Nil {
		logger.Warn("report_bad_message", "error", "missing report_run_id")
		return nil
	}
	return w.Process(ctx, job)
}

// Process materializes one report run end to end.
func (w *Worker) Process(ctx context.Context, job queue.ReportJob) error {
	run, err := w.store.ClaimReportRun(ctx, job.ReportRunID)
	if err != nil {
		return err
	}
	if run == nil {
		logger.Info("report_run_duplicate_dropped", "report_run_id", job.ReportRunID)
		return nil
	}

	tpl, err := w.store.GetReportTemplate(ctx, run.TemplateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return w.store.FailReportRun(ctx, run.ID, errNotFoundReason, job.RequestID)
		}
		return err
	}

	if err := w.materialize(ctx, run, tpl, job); err != nil {
		logger.Error("report_run_failed", "report_run_id", run.ID, "error", err.Error())
		return w.store.FailReportRun(ctx, run.ID, err.Error(), job.RequestID)
	}
	return nil
}

func (w *Worker) materialize(ctx context.Context, run *domain.ReportRun,
	tpl *domain.ReportTemplate, job queue.ReportJob) error {

	now := w.now()
	windowStart := now.Add(-reportWindowDays * 24 * time.Hour)

	overview, err := w.store.MonitorOverview(ctx, windowStart, now)
	if err != nil {
		return err
	}
	incidents, err := w.store.ActiveIncidents(ctx)
	if err != nil {
		return err
	}
	topFilter := filterFromTemplate(tpl.Filters)
	topFilter.Limit = topContentLimit
	topPage, err := w.store.ListContent(ctx, topFilter)
	if err != nil {
		return err
	}
	topContent := topPage.Items

	confidence := Confidence(ConfidenceInputs{
		TotalItems:      overview.TotalItems,
		ClassifiedItems: overview.ClassifiedItems,
		BHS:             overview.BHS,
		RiesgoActivo:    overview.RiesgoActivo,
		TopContentCount: len(topContent),
		ActiveIncidents: len(incidents),
	})
	threshold := tpl.ConfidenceThreshold
	if threshold <= 0 {
		threshold = w.defaultThreshold
	}

	recs := Recommendations(overview, len(incidents), len(topContent))
	summary := buildSummary(tpl.Name, overview, incidents, windowStart, now)

	exportID := w.fanOutExport(ctx, run, tpl, job)

	status := domain.ReportCompleted
	blockedReason := ""
	if confidence < threshold {
		status = domain.ReportPendingReview
		blockedReason = blockedLowConf
	}
	if err := w.store.FinalizeReportRun(ctx, run.ID, status, confidence,
		summary, recs, blockedReason, exportID, job.RequestID); err != nil {
		return err
	}
	logger.Info("report_run_finished", "report_run_id", run.ID, "status", status,
		"confidence", confidence, "threshold", threshold)

	if status == domain.ReportCompleted {
		w.email(ctx, run, tpl, summary, recs, confidence)
	}
	return nil
}

// fanOutExport creates and enqueues the export job. Export failures never
// block the report; a nil id is persisted instead.
func (w *Worker) fanOutExport(ctx context.Context, run *domain.ReportRun,
	tpl *domain.ReportTemplate, job queue.ReportJob) *uuid.UUID {

	filters := sanitizeExportFilters(tpl.Filters)
	exportID, err := w.store.CreateExportJob(ctx, domain.ExportJob{
		ReportRunID:       &run.ID,
		Filters:           filters,
		RequestedByUserID: job.RequestedByUserID,
	}, job.RequestID)
	if err != nil {
		logger.Error("report_export_create_failed", "report_run_id", run.ID, "error", err.Error())
		return nil
	}
	msg := queue.ExportJobMessage{ExportID: exportID, ReportRunID: &run.ID, RequestedAt: w.now()}
	if err := w.exports.Publish(ctx, msg); err != nil {
		logger.Error("report_export_enqueue_failed", "export_id", exportID, "error", err.Error())
	}
	return &exportID
}

func (w *Worker) email(ctx context.Context, run *domain.ReportRun,
	tpl *domain.ReportTemplate, summary string, recs []string, confidence float64) {

	if run.ScheduleID == nil {
		logger.Info("report_email_skipped", "reason", "manual_run_has_no_recipients")
		return
	}
	schedule, err := w.store.GetReportSchedule(ctx, *run.ScheduleID)
	if err != nil {
		logger.Warn("report_email_skipped", "reason", "schedule_not_found", "error", err.Error())
		return
	}
	w.mailer.Send(ctx, schedule.Recipients, Subject(tpl.Name, confidence),
		buildHTML(tpl.Name, summary, recs))
}

// sanitizeExportFilters keeps only the allow-listed keys on the persisted
// export job.
func sanitizeExportFilters(in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		if _, ok := exportFilterKeys[k]; ok {
			out[k] = v
		}
	}
	return out
}

// filterFromTemplate projects template filters onto the content listing.
func filterFromTemplate(in map[string]any) store.ContentFilter {
	f := store.ContentFilter{State: domain.ContentActive}
	str := func(key string) string {
		s, _ := in[key].(string)
		return strings.TrimSpace(s)
	}
	if v := str("source_type"); v != "" {
		f.SourceType = domain.SourceType(v)
	}
	if v := str("state"); v != "" {
		f.State = domain.ContentState(v)
	}
	f.Provider = str("provider")
	f.Category = str("category")
	if v := str("sentimiento"); v != "" {
		f.Sentimiento = domain.Sentiment(v)
	}
	if v := str("term_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.TermID = &id
		}
	}
	f.Q = str("q")
	if v := str("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &t
		}
	}
	if v := str("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &t
		}
	}
	return f
}

func buildSummary(templateName string, overview *domain.MonitorOverview,
	incidents []domain.Incident, windowStart, windowEnd time.Time) string {

	var b strings.Builder
	fmt.Fprintf(&b, "%s: ventana %s a %s. ", templateName,
		windowStart.Format("2006-01-02"), windowEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "%d piezas monitoreadas, %d clasificadas. ",
		overview.TotalItems, overview.ClassifiedItems)
	fmt.Fprintf(&b, "BHS %.1f, riesgo activo %.1f. ", overview.BHS, overview.RiesgoActivo)
	if len(incidents) > 0 {
		fmt.Fprintf(&b, "%d incidente(s) activo(s), el más severo %s.",
			len(incidents), incidents[0].Severity)
	} else {
		b.WriteString("Sin incidentes activos.")
	}
	return b.String()
}

func buildHTML(templateName, summary string, recs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2><p>%s</p>", templateName, summary)
	if len(recs) > 0 {
		b.WriteString("<h3>Recomendaciones</h3><ul>")
		for _, r := range recs {
			fmt.Fprintf(&b, "<li>%s</li>", r)
		}
		b.WriteString("</ul>")
	}
	return b.String()
}
