package incidents

import (
	"context"
	"database/sql"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
)

// action is the state-machine decision for one scope.
type action int

const (
	actionSkip action = iota
	actionCreate
	actionEscalate
	actionDedupe
	actionRefresh
)

// decide applies the per-scope rules given the currently active incident.
// SEV4 and empty scopes never open incidents; an existing incident absorbs
// equal-severity signals inside its cooldown.
func decide(active *domain.Incident, sev domain.IncidentSeverity, classifiedItems int, now time.Time) action {
	if sev == domain.SeveritySEV4 || classifiedItems == 0 {
		return actionSkip
	}
	if active == nil {
		return actionCreate
	}
	if sev.Rank() < active.Severity.Rank() {
		return actionEscalate
	}
	if active.CooldownUntil != nil && now.Before(*active.CooldownUntil) {
		return actionDedupe
	}
	return actionRefresh
}

// Evaluator runs one pass of the incident state machine over the classified
// window.
type Evaluator struct {
	store           *store.Store
	windowDays      int
	cooldownMinutes int
	signalVersion   string
	now             func() time.Time
}

// NewEvaluator wires the evaluator. cooldownMinutes is clamped to [1, 1440].
func NewEvaluator(st *store.Store, windowDays, cooldownMinutes int, signalVersion string) *Evaluator {
	if windowDays <= 0 {
		windowDays = 7
	}
	if cooldownMinutes < 1 {
		cooldownMinutes = 1
	}
	if cooldownMinutes > 1440 {
		cooldownMinutes = 1440
	}
	return &Evaluator{
		store:           st,
		windowDays:      windowDays,
		cooldownMinutes: cooldownMinutes,
		signalVersion:   signalVersion,
		now:             time.Now,
	}
}

// Evaluate performs one full pass and records the evaluation run.
func (e *Evaluator) Evaluate(ctx context.Context, trigger domain.TriggerType, requestID string) error {
	runID, err := e.store.StartEvaluationRun(ctx, trigger)
	if err != nil {
		return err
	}

	metrics, evalErr := e.run(ctx, requestID)
	status := domain.RunCompleted
	errMsg := ""
	if evalErr != nil {
		status = domain.RunFailed
		errMsg = evalErr.Error()
		logger.Error("incident_evaluation_failed", "run_id", runID, "error", errMsg)
	}
	if err := e.store.FinishEvaluationRun(ctx, runID, status, metrics, errMsg); err != nil {
		return err
	}
	return evalErr
}

func (e *Evaluator) run(ctx context.Context, requestID string) (map[string]any, error) {
	now := e.now()
	windowStart := now.Add(-time.Duration(e.windowDays) * 24 * time.Hour)

	items, err := e.store.ClassifiedWindowItems(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	weights, err := e.store.LoadSourceWeights(ctx)
	if err != nil {
		return nil, err
	}
	signals := ComputeSignals(items, weights)

	created, escalated, deduped, skippedSEV4 := 0, 0, 0, 0
	for _, scope := range domain.AllScopes() {
		sig := signals[scope]
		sev := SeverityFor(sig.RiskWeighted)

		var act action
		err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
			active, err := store.ActiveIncidentForScopeTx(tx, scope)
			if err != nil {
				return err
			}
			act = decide(active, sev, sig.ClassifiedItems, now)
			return e.apply(tx, act, active, scope, sev, sig, now, requestID)
		})
		if err != nil {
			return nil, err
		}

		switch act {
		case actionSkip:
			if sev == domain.SeveritySEV4 && sig.ClassifiedItems > 0 {
				skippedSEV4++
			}
		case actionCreate:
			created++
		case actionEscalate:
			escalated++
		case actionDedupe:
			deduped++
		}
		logger.Info("incident_scope_evaluated", "scope", scope, "severity", sev,
			"risk_weighted", sig.RiskWeighted, "classified_items", sig.ClassifiedItems)
	}

	return map[string]any{
		"created_count":      created,
		"escalated_count":    escalated,
		"deduped_count":      deduped,
		"skipped_sev4_count": skippedSEV4,
		"signals":            signals,
		"cooldown_minutes":   e.cooldownMinutes,
		"signal_version":     e.signalVersion,
	}, nil
}

func (e *Evaluator) apply(tx *sql.Tx, act action, active *domain.Incident,
	scope domain.Scope, sev domain.IncidentSeverity, sig *domain.ScopeSignals,
	now time.Time, requestID string) error {

	cooldownUntil := now.Add(time.Duration(e.cooldownMinutes) * time.Minute)
	slaDueAt := now.Add(SLAFor(sev))
	payload := map[string]any{
		"signals":        sig,
		"signal_version": e.signalVersion,
		"window_days":    e.windowDays,
	}

	switch act {
	case actionCreate:
		_, err := store.InsertIncidentTx(tx, domain.Incident{
			Scope:           scope,
			Severity:        sev,
			RiskScore:       sig.RiskWeighted,
			ClassifiedItems: sig.ClassifiedItems,
			SLADueAt:        &slaDueAt,
			CooldownUntil:   &cooldownUntil,
			SignalVersion:   e.signalVersion,
			Payload:         payload,
		}, requestID)
		return err
	case actionEscalate:
		return store.EscalateIncidentTx(tx, active.ID, active.Severity, sev,
			sig.RiskWeighted, sig.ClassifiedItems, slaDueAt, cooldownUntil, payload, requestID)
	case actionRefresh:
		return store.RefreshIncidentTx(tx, active.ID, sig.RiskWeighted,
			sig.ClassifiedItems, cooldownUntil, payload, requestID)
	default:
		return nil
	}
}
