// Package ingestion runs the news fan-out: one dispatch message expands to
// the active tracked queries, each query fans out to the enabled provider
// adapters, and the surviving articles are persisted with run bookkeeping.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/providers"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queryengine"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/google/uuid"
)

// A running run older than this is treated as abandoned and re-claimed.
const staleRunAfter = 10 * time.Minute

// News runs never take more than this many articles per term.
const newsMaxPerTerm = 2

// RunStore is the persistence surface the worker drives.
type RunStore interface {
	GetRunSnapshot(ctx context.Context, runID uuid.UUID) (*domain.RunSnapshot, error)
	ClaimRun(ctx context.Context, run domain.IngestionRun) error
	FinishRun(ctx context.Context, runID uuid.UUID, status domain.RunStatus, metrics domain.RunMetrics, errorMessage, requestID string) error
	ReplaceRunItems(ctx context.Context, runID uuid.UUID, items []domain.IngestionRunItem) error
	LinkRunContent(ctx context.Context, links []domain.IngestionRunContentLink) (int, error)
	GetTrackedQuery(ctx context.Context, id uuid.UUID) (*domain.TrackedQuery, error)
	ListActiveQueries(ctx context.Context, limit int) ([]domain.TrackedQuery, error)
	EnsureTrackedQuery(ctx context.Context, q domain.TrackedQuery) (uuid.UUID, error)
	UpsertContentItem(ctx context.Context, item domain.ContentItem) (uuid.UUID, error)
}

// AdapterSet is the provider registry surface the worker reads.
type AdapterSet interface {
	Names() []string
	Get(name string) providers.Adapter
}

// Worker consumes ingestion dispatches.
type Worker struct {
	store        RunStore
	registry     AdapterSet
	snapshots    *SnapshotWriter
	defaultTerms []string
	now          func() time.Time
}

// NewWorker wires the ingestion worker. defaultTerms is the comma-separated
// fallback used when a dispatch names no terms and no query is active.
func NewWorker(st RunStore, registry AdapterSet, snapshots *SnapshotWriter, defaultTerms string) *Worker {
	var terms []string
	for _, t := range strings.Split(defaultTerms, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return &Worker{
		store:        st,
		registry:     registry,
		snapshots:    snapshots,
		defaultTerms: terms,
		now:          time.Now,
	}
}

// Handle processes one dispatch message body.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var msg queue.IngestionDispatch
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Warn("ingestion_bad_message", "error", err.Error())
		return nil
	}
	return w.Run(ctx, msg)
}

// Run executes one ingestion run end to end.
func (w *Worker) Run(ctx context.Context, msg queue.IngestionDispatch) error {
	runID := uuid.New()
	if msg.RunID != nil {
		runID = *msg.RunID
	}
	trigger := domain.TriggerType(msg.TriggerType)
	if trigger != domain.TriggerScheduled && trigger != domain.TriggerManual {
		trigger = domain.TriggerManual
	}

	skip, err := w.shouldSkip(ctx, runID)
	if err != nil {
		return err
	}
	if skip != "" {
		logger.Info("ingestion_run_skipped", "run_id", runID, "reason", skip)
		return nil
	}

	maxPerTerm := msg.MaxArticlesPerTerm
	if maxPerTerm <= 0 || maxPerTerm > newsMaxPerTerm {
		maxPerTerm = newsMaxPerTerm
	}

	if err := w.store.ClaimRun(ctx, domain.IngestionRun{
		ID:                 runID,
		TriggerType:        trigger,
		Language:           msg.Language,
		MaxArticlesPerTerm: maxPerTerm,
		RequestID:          msg.RequestID,
	}); err != nil {
		return err
	}

	metrics, runErr := w.execute(ctx, runID, trigger, msg, maxPerTerm)
	status := domain.RunCompleted
	errMsg := ""
	if runErr != nil {
		status = domain.RunFailed
		errMsg = runErr.Error()
		logger.Error("ingestion_run_failed", "run_id", runID, "error", errMsg)
	}
	if err := w.store.FinishRun(ctx, runID, status, metrics, errMsg, msg.RequestID); err != nil {
		return err
	}
	logger.Info("ingestion_run_finished", "run_id", runID, "status", status,
		"items_persisted", metrics.ItemsPersisted, "provider_errors", metrics.ProviderErrors)
	return nil
}

// shouldSkip applies the claim-check rules: completed runs are immutable,
// and a running run younger than the stale threshold belongs to its owner.
func (w *Worker) shouldSkip(ctx context.Context, runID uuid.UUID) (string, error) {
	snap, err := w.store.GetRunSnapshot(ctx, runID)
	if err != nil {
		return "", err
	}
	if snap == nil {
		return "", nil
	}
	switch snap.Status {
	case domain.RunCompleted:
		return "run_already_completed", nil
	case domain.RunRunning:
		if snap.StartedAt != nil && w.now().Sub(*snap.StartedAt) < staleRunAfter {
			return "run_already_running", nil
		}
	}
	return "", nil
}

// target is one resolved query to execute.
type target struct {
	query domain.TrackedQuery
	adHoc bool
}

func (w *Worker) execute(ctx context.Context, runID uuid.UUID, trigger domain.TriggerType,
	msg queue.IngestionDispatch, requestedMax int) (domain.RunMetrics, error) {

	targets, err := w.resolveTargets(ctx, msg)
	if err != nil {
		return domain.RunMetrics{}, err
	}

	metrics := domain.RunMetrics{
		ProviderTotals: make(map[string]int),
		SkippedTerms:   make(map[string]string),
	}
	perProvider := make(map[string]*domain.IngestionRunItem)
	runDate := w.now()

	for _, t := range targets {
		summary, results, err := w.runTarget(ctx, runID, trigger, runDate, t, msg.Language, requestedMax, perProvider)
		if err != nil {
			// A per-target failure is recorded, not fatal for the run.
			metrics.TermsSkipped++
			metrics.SkippedTerms[t.query.Name] = err.Error()
			logger.Warn("ingestion_term_failed", "run_id", runID, "term", t.query.Name, "error", err.Error())
			continue
		}
		if summary == nil {
			metrics.TermsSkipped++
			metrics.SkippedTerms[t.query.Name] = "no_providers"
			continue
		}
		metrics.TermsProcessed++
		metrics.ItemsFetched += summary.Fetched
		metrics.ItemsPersisted += summary.Persisted
		metrics.TermSummaries = append(metrics.TermSummaries, *summary)
		for _, r := range results {
			metrics.ProviderTotals[r.Provider] += len(r.Items)
		}
	}

	items := make([]domain.IngestionRunItem, 0, len(perProvider))
	for _, it := range perProvider {
		if it.ErrorMessage != "" {
			metrics.ProviderErrors++
		}
		items = append(items, *it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Provider < items[j].Provider })
	if err := w.store.ReplaceRunItems(ctx, runID, items); err != nil {
		return metrics, err
	}
	return metrics, nil
}

// resolveTargets builds the query set for a dispatch: manual terms first,
// then explicit ids, then active queries, then the env default. Duplicate
// targets collapse by id or by (name, language).
func (w *Worker) resolveTargets(ctx context.Context, msg queue.IngestionDispatch) ([]target, error) {
	var targets []target

	for _, term := range msg.Terms {
		if term = strings.TrimSpace(term); term != "" {
			targets = append(targets, target{query: adHocQuery(term, msg.Language), adHoc: true})
		}
	}
	for _, id := range msg.TermIDs {
		q, err := w.store.GetTrackedQuery(ctx, id)
		if err != nil {
			logger.Warn("ingestion_term_not_found", "term_id", id, "error", err.Error())
			continue
		}
		targets = append(targets, target{query: *q})
	}
	if len(targets) == 0 {
		active, err := w.store.ListActiveQueries(ctx, 50)
		if err != nil {
			return nil, err
		}
		for _, q := range active {
			targets = append(targets, target{query: q})
		}
	}
	if len(targets) == 0 {
		for _, term := range w.defaultTerms {
			targets = append(targets, target{query: adHocQuery(term, msg.Language), adHoc: true})
		}
	}

	seen := make(map[string]struct{}, len(targets))
	var out []target
	for _, t := range targets {
		key := t.query.ID.String()
		if t.query.ID == uuid.Nil {
			key = strings.ToLower(t.query.Name) + "::" + strings.ToLower(t.query.Language)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func adHocQuery(term, language string) domain.TrackedQuery {
	def := domain.QueryDefinition{Include: []domain.QueryTerm{{Value: term}}}
	return domain.TrackedQuery{
		Name:              term,
		Language:          strings.ToLower(strings.TrimSpace(language)),
		Scope:             domain.ScopeClaro,
		IsActive:          true,
		MaxArticlesPerRun: newsMaxPerTerm,
		Definition:        def,
		Compiled:          queryengine.Compile(def),
	}
}

// runTarget fans one query out to its providers and persists the survivors.
// A nil summary with nil error means the query selected zero providers.
func (w *Worker) runTarget(ctx context.Context, runID uuid.UUID, trigger domain.TriggerType,
	runDate time.Time, t target, language string, requestedMax int,
	perProvider map[string]*domain.IngestionRunItem) (*domain.RunTermSummary, []providers.FetchResult, error) {

	q := t.query
	exec := queryengine.SanitizeExecution(q.Execution)
	selected := queryengine.SelectProviders(w.registry.Names(), exec)
	if len(selected) == 0 {
		return nil, nil, nil
	}

	m := requestedMax
	if q.MaxArticlesPerRun > 0 && q.MaxArticlesPerRun < m {
		m = q.MaxArticlesPerRun
	}
	if m > newsMaxPerTerm {
		m = newsMaxPerTerm
	}

	compiled := q.Compiled.Query
	if compiled == "" {
		compiled = queryengine.Compile(q.Definition).Query
	}
	lang := q.Language
	if lang == "" {
		lang = strings.ToLower(strings.TrimSpace(language))
	}

	results := w.fanOut(ctx, selected, providers.FetchRequest{
		Query:    compiled,
		Term:     q.Name,
		Language: lang,
		Max:      m,
	})

	fetched := 0
	var candidates []providers.NormalizedArticle
	for _, r := range results {
		item := perProvider[r.Provider]
		if item == nil {
			item = &domain.IngestionRunItem{RunID: runID, Provider: r.Provider, Status: domain.RunCompleted}
			perProvider[r.Provider] = item
		}
		item.FetchedCount += len(r.Items)
		item.LatencyMs += r.DurationMs
		if r.Failed() {
			item.Status = domain.RunFailed
			item.ErrorMessage = fmt.Sprintf("%s: %s", r.ErrorType, r.Error)
		}
		fetched += len(r.Items)
		for _, a := range r.Items {
			if matchesTarget(q.Definition, a) && passesExecution(exec, a) {
				candidates = append(candidates, a)
			}
		}
	}
	matched := len(candidates)
	candidates = dedupeByURL(candidates)
	sortCandidates(candidates)
	if len(candidates) > m {
		candidates = candidates[:m]
	}

	persisted, err := w.persistTarget(ctx, runID, trigger, runDate, q, t.adHoc, results, candidates, perProvider)
	if err != nil {
		return nil, nil, err
	}

	return &domain.RunTermSummary{
		Term:      q.Name,
		Fetched:   fetched,
		Matched:   matched,
		Persisted: persisted,
		Providers: len(selected),
	}, results, nil
}

// fanOut calls every selected adapter in parallel. Concurrency is naturally
// bounded by the adapter count.
func (w *Worker) fanOut(ctx context.Context, selected []string, req providers.FetchRequest) []providers.FetchResult {
	results := make([]providers.FetchResult, len(selected))
	var wg sync.WaitGroup
	for i, name := range selected {
		adapter := w.registry.Get(name)
		if adapter == nil {
			continue
		}
		wg.Add(1)
		go func(i int, a providers.Adapter) {
			defer wg.Done()
			results[i] = a.Fetch(ctx, req)
		}(i, adapter)
	}
	wg.Wait()
	return results
}

func (w *Worker) persistTarget(ctx context.Context, runID uuid.UUID, trigger domain.TriggerType,
	runDate time.Time, q domain.TrackedQuery, adHoc bool, results []providers.FetchResult,
	articles []providers.NormalizedArticle, perProvider map[string]*domain.IngestionRunItem) (int, error) {

	termID := q.ID
	if adHoc || termID == uuid.Nil {
		id, err := w.store.EnsureTrackedQuery(ctx, q)
		if err != nil {
			return 0, err
		}
		termID = id
	}

	snapshotKey, err := w.snapshots.Write(ctx, runDate, runID, string(trigger), q.Name, results)
	if err != nil {
		// Snapshot loss is tolerable; persistence continues.
		logger.Warn("ingestion_snapshot_failed", "run_id", runID, "term", q.Name, "error", err.Error())
		snapshotKey = ""
	}

	linksByProvider := make(map[string][]domain.IngestionRunContentLink)
	for _, a := range articles {
		item := toContentItem(a, termID, snapshotKey)
		contentID, err := w.store.UpsertContentItem(ctx, item)
		if err != nil {
			return 0, err
		}
		linksByProvider[a.Provider] = append(linksByProvider[a.Provider], domain.IngestionRunContentLink{
			RunID:         runID,
			ContentItemID: contentID,
			CanonicalURL:  a.CanonicalURL,
			Provider:      a.Provider,
			Term:          q.Name,
		})
	}

	persisted := 0
	for provider, links := range linksByProvider {
		n, err := w.store.LinkRunContent(ctx, links)
		if err != nil {
			return persisted, err
		}
		persisted += n
		if item := perProvider[provider]; item != nil {
			item.PersistedCount += n
		}
	}
	return persisted, nil
}

func toContentItem(a providers.NormalizedArticle, termID uuid.UUID, snapshotKey string) domain.ContentItem {
	return domain.ContentItem{
		SourceType:      domain.SourceNews,
		TermID:          &termID,
		Provider:        a.Provider,
		SourceName:      a.SourceName,
		SourceID:        a.SourceID,
		CanonicalURL:    a.CanonicalURL,
		Title:           a.Title,
		Summary:         a.Summary,
		Content:         a.Content,
		ImageURL:        a.ImageURL,
		Language:        a.Language,
		Category:        a.Category,
		PublishedAt:     a.PublishedAt,
		RawPayloadS3Key: snapshotKey,
		Metadata:        a.Metadata,
	}
}

func matchesTarget(def domain.QueryDefinition, a providers.NormalizedArticle) bool {
	return queryengine.Matches(def, queryengine.ArticleFields{
		Provider:     a.Provider,
		Title:        a.Title,
		Summary:      a.Summary,
		Content:      a.Content,
		CanonicalURL: a.CanonicalURL,
	})
}

// passesExecution applies the sanitized allow/deny lists: provider, canonical
// host, and country candidates pulled from the article metadata.
func passesExecution(exec domain.ExecutionConfig, a providers.NormalizedArticle) bool {
	provider := strings.ToLower(a.Provider)
	if inList(exec.ProvidersDeny, provider) {
		return false
	}
	if len(exec.ProvidersAllow) > 0 && !inList(exec.ProvidersAllow, provider) {
		return false
	}

	host := canonicalHost(a.CanonicalURL)
	if host != "" {
		if inList(exec.DomainsDeny, host) || inList(exec.DomainsDeny, strings.TrimPrefix(host, "www.")) {
			return false
		}
		if len(exec.DomainsAllow) > 0 &&
			!inList(exec.DomainsAllow, host) && !inList(exec.DomainsAllow, strings.TrimPrefix(host, "www.")) {
			return false
		}
	}

	countries := countryCandidates(a.Metadata)
	for _, c := range countries {
		if inList(exec.CountriesDeny, c) {
			return false
		}
	}
	if len(exec.CountriesAllow) > 0 {
		ok := false
		for _, c := range countries {
			if inList(exec.CountriesAllow, c) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func canonicalHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// countryCandidates pulls country codes from article metadata, tolerating a
// scalar or a list.
func countryCandidates(md map[string]any) []string {
	var out []string
	var add func(v any)
	add = func(v any) {
		switch x := v.(type) {
		case string:
			if x = strings.ToLower(strings.TrimSpace(x)); x != "" {
				out = append(out, x)
			}
		case []string:
			for _, s := range x {
				add(s)
			}
		case []any:
			for _, s := range x {
				add(s)
			}
		}
	}
	add(md["country"])
	add(md["countries"])
	return out
}

func dedupeByURL(in []providers.NormalizedArticle) []providers.NormalizedArticle {
	seen := make(map[string]struct{}, len(in))
	var out []providers.NormalizedArticle
	for _, a := range in {
		if _, dup := seen[a.CanonicalURL]; dup {
			continue
		}
		seen[a.CanonicalURL] = struct{}{}
		out = append(out, a)
	}
	return out
}

// sortCandidates orders by publishedAt descending (unknown dates last),
// canonical URL ascending as the tiebreak.
func sortCandidates(in []providers.NormalizedArticle) {
	sort.SliceStable(in, func(i, j int) bool {
		pi, pj := in[i].PublishedAt, in[j].PublishedAt
		switch {
		case pi == nil && pj == nil:
			return in[i].CanonicalURL < in[j].CanonicalURL
		case pi == nil:
			return false
		case pj == nil:
			return true
		case !pi.Equal(*pj):
			return pi.After(*pj)
		default:
			return in[i].CanonicalURL < in[j].CanonicalURL
		}
	})
}

func inList(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
