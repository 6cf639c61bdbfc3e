package incidents

import (
	"testing"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func weightPtr(f float64) *float64 { return &f }

func item(scope domain.Scope, provider, source string, sentiment domain.Sentiment, score *float64) store.ClassifiedItem {
	return store.ClassifiedItem{
		ContentItemID: uuid.New(),
		Scope:         scope,
		Provider:      provider,
		SourceName:    source,
		SourceScore:   score,
		Sentimiento:   sentiment,
	}
}

func TestResolveWeightFallbackChain(t *testing.T) {
	weights := map[string]float64{
		"newsapi|el tiempo": 0.9,
		"newsapi":           0.7,
	}

	pair := item(domain.ScopeClaro, "newsapi", "El Tiempo", domain.SentimentNegative, weightPtr(0.3))
	assert.Equal(t, 0.9, ResolveWeight(pair, weights))

	providerOnly := item(domain.ScopeClaro, "newsapi", "Otro Diario", domain.SentimentNegative, weightPtr(0.3))
	assert.Equal(t, 0.7, ResolveWeight(providerOnly, weights))

	scoreOnly := item(domain.ScopeClaro, "gnews", "", domain.SentimentNegative, weightPtr(0.3))
	assert.Equal(t, 0.3, ResolveWeight(scoreOnly, weights))

	bare := item(domain.ScopeClaro, "gnews", "", domain.SentimentNegative, nil)
	assert.Equal(t, defaultWeight, ResolveWeight(bare, weights))
}

func TestComputeSignalsRiskWeighted(t *testing.T) {
	items := []store.ClassifiedItem{
		item(domain.ScopeClaro, "newsapi", "", domain.SentimentNegative, weightPtr(1.0)),
		item(domain.ScopeClaro, "newsapi", "", domain.SentimentPositive, weightPtr(1.0)),
		item(domain.ScopeClaro, "newsapi", "", domain.SentimentNeutral, weightPtr(1.0)),
		item(domain.ScopeCompetencia, "gnews", "", domain.SentimentNegative, weightPtr(0.5)),
	}
	signals := ComputeSignals(items, nil)

	claro := signals[domain.ScopeClaro]
	assert.Equal(t, 3, claro.ClassifiedItems)
	assert.Equal(t, 1, claro.Negatives)
	assert.Equal(t, 1, claro.Positives)
	assert.Equal(t, 1, claro.Neutrals)
	assert.InDelta(t, 100.0/3.0, claro.RiskWeighted, 0.01)

	comp := signals[domain.ScopeCompetencia]
	assert.InDelta(t, 100.0, comp.RiskWeighted, 0.01)
}

func TestComputeSignalsEmptyWindow(t *testing.T) {
	signals := ComputeSignals(nil, nil)
	for _, scope := range domain.AllScopes() {
		sig := signals[scope]
		assert.Equal(t, 0, sig.ClassifiedItems)
		assert.Equal(t, 0.0, sig.RiskWeighted)
	}
}

func TestSeverityBands(t *testing.T) {
	assert.Equal(t, domain.SeveritySEV1, SeverityFor(80))
	assert.Equal(t, domain.SeveritySEV1, SeverityFor(95))
	assert.Equal(t, domain.SeveritySEV2, SeverityFor(60))
	assert.Equal(t, domain.SeveritySEV2, SeverityFor(79.9))
	assert.Equal(t, domain.SeveritySEV3, SeverityFor(40))
	assert.Equal(t, domain.SeveritySEV4, SeverityFor(39.9))
	assert.Equal(t, domain.SeveritySEV4, SeverityFor(0))
}

func TestSLADeadlines(t *testing.T) {
	assert.Equal(t, 30*time.Minute, SLAFor(domain.SeveritySEV1))
	assert.Equal(t, 4*time.Hour, SLAFor(domain.SeveritySEV2))
	assert.Equal(t, 24*time.Hour, SLAFor(domain.SeveritySEV3))
	assert.Equal(t, 24*time.Hour, SLAFor(domain.SeveritySEV4))
}

func TestDecideStateMachine(t *testing.T) {
	now := time.Now()
	inCooldown := now.Add(30 * time.Minute)
	pastCooldown := now.Add(-5 * time.Minute)

	active := func(sev domain.IncidentSeverity, cooldown *time.Time) *domain.Incident {
		return &domain.Incident{ID: uuid.New(), Severity: sev, Status: domain.IncidentOpen, CooldownUntil: cooldown}
	}

	// SEV4 or empty window never opens anything.
	assert.Equal(t, actionSkip, decide(nil, domain.SeveritySEV4, 10, now))
	assert.Equal(t, actionSkip, decide(nil, domain.SeveritySEV1, 0, now))

	assert.Equal(t, actionCreate, decide(nil, domain.SeveritySEV2, 5, now))
	assert.Equal(t, actionEscalate, decide(active(domain.SeveritySEV3, &inCooldown), domain.SeveritySEV1, 5, now))
	assert.Equal(t, actionDedupe, decide(active(domain.SeveritySEV2, &inCooldown), domain.SeveritySEV2, 5, now))
	assert.Equal(t, actionRefresh, decide(active(domain.SeveritySEV2, &pastCooldown), domain.SeveritySEV2, 5, now))

	// Lower severity than the active incident behaves like same severity.
	assert.Equal(t, actionDedupe, decide(active(domain.SeveritySEV1, &inCooldown), domain.SeveritySEV2, 5, now))
	assert.Equal(t, actionRefresh, decide(active(domain.SeveritySEV1, &pastCooldown), domain.SeveritySEV2, 5, now))
}

func TestNewEvaluatorClampsCooldown(t *testing.T) {
	e := NewEvaluator(nil, 7, 0, "alert-v1-weighted")
	assert.Equal(t, 1, e.cooldownMinutes)

	e = NewEvaluator(nil, 7, 99999, "alert-v1-weighted")
	assert.Equal(t, 1440, e.cooldownMinutes)

	e = NewEvaluator(nil, 0, 60, "alert-v1-weighted")
	assert.Equal(t, 7, e.windowDays)
}
