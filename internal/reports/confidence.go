// Package reports materializes report runs: KPI aggregation, a deterministic
// confidence gate, recommendations, export fan-out and recipient delivery.
package reports

import "math"

// FormulaVersion tags persisted confidence values so historical runs stay
// comparable after formula changes.
const FormulaVersion = "report-v1-deterministic"

// ConfidenceInputs are the window aggregates the formula reads.
type ConfidenceInputs struct {
	TotalItems      int
	ClassifiedItems int
	BHS             float64
	RiesgoActivo    float64
	TopContentCount int
	ActiveIncidents int
}

// Confidence computes the deterministic report confidence, rounded to three
// decimals. The base of 0.2 keeps an empty window from reading as zero trust.
func Confidence(in ConfidenceInputs) float64 {
	coverage := clamp01(float64(in.ClassifiedItems) / 120)
	volume := clamp01(float64(in.TotalItems) / 180)
	bhsQuality := clamp01(in.BHS / 100)
	lowRisk := 1 - clamp01(in.RiesgoActivo/100)
	contentSignal := clamp01(float64(in.TopContentCount) / 8)
	incidentPenalty := clamp01(float64(in.ActiveIncidents) / 6)

	value := 0.2 +
		coverage*0.25 +
		volume*0.20 +
		bhsQuality*0.20 +
		lowRisk*0.10 +
		contentSignal*0.10 -
		incidentPenalty*0.15

	return math.Round(value*1000) / 1000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
