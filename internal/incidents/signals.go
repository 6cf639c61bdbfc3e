// Package incidents turns the classified content window into per-scope risk
// signals and drives the incident state machine.
package incidents

import (
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
)

// defaultWeight applies when neither a configured weight nor a source score
// exists for an item.
const defaultWeight = 0.5

// ResolveWeight picks the trust weight for one classified item: the
// (provider, source) pair first, then the provider fallback, then the item's
// own source score, then the default.
func ResolveWeight(item store.ClassifiedItem, weights map[string]float64) float64 {
	if w, ok := weights[store.SourceWeightKey(item.Provider, item.SourceName)]; ok {
		return w
	}
	if w, ok := weights[store.SourceWeightKey(item.Provider, "")]; ok {
		return w
	}
	if item.SourceScore != nil {
		return *item.SourceScore
	}
	return defaultWeight
}

// ComputeSignals aggregates the window per scope. Every scope gets an entry
// even when empty so the run metrics are complete.
func ComputeSignals(items []store.ClassifiedItem, weights map[string]float64) map[domain.Scope]*domain.ScopeSignals {
	out := make(map[domain.Scope]*domain.ScopeSignals, 2)
	for _, scope := range domain.AllScopes() {
		out[scope] = &domain.ScopeSignals{Scope: scope}
	}

	for _, item := range items {
		sig := out[item.Scope]
		if sig == nil {
			sig = &domain.ScopeSignals{Scope: item.Scope}
			out[item.Scope] = sig
		}
		w := ResolveWeight(item, weights)
		sig.ClassifiedItems++
		sig.ClassifiedWeight += w
		switch item.Sentimiento {
		case domain.SentimentPositive:
			sig.Positives++
		case domain.SentimentNeutral:
			sig.Neutrals++
		case domain.SentimentNegative:
			sig.Negatives++
			sig.NegativeWeight += w
		default:
			sig.UnknownSentiment++
		}
	}

	for _, sig := range out {
		denom := sig.ClassifiedWeight
		if denom < 1e-4 {
			denom = 1e-4
		}
		sig.RiskWeighted = 100 * sig.NegativeWeight / denom
	}
	return out
}

// SeverityFor maps a weighted risk score onto a severity band.
func SeverityFor(risk float64) domain.IncidentSeverity {
	switch {
	case risk >= 80:
		return domain.SeveritySEV1
	case risk >= 60:
		return domain.SeveritySEV2
	case risk >= 40:
		return domain.SeveritySEV3
	default:
		return domain.SeveritySEV4
	}
}

// SLAFor returns the response deadline for a severity.
func SLAFor(sev domain.IncidentSeverity) time.Duration {
	switch sev {
	case domain.SeveritySEV1:
		return 30 * time.Minute
	case domain.SeveritySEV2:
		return 4 * time.Hour
	default:
		return 24 * time.Hour
	}
}
