package reports

import "github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"

const maxRecommendations = 6

// Recommendations derives the action list from the aggregated window. The
// rules are deterministic so two runs over the same data agree.
func Recommendations(overview *domain.MonitorOverview, activeIncidents, topContentCount int) []string {
	var out []string

	if overview.RiesgoActivo >= 60 {
		out = append(out, "Activar protocolo de contención: el riesgo activo supera el umbral crítico.")
	}
	if sov, ok := overview.ShareOfVoice[domain.ScopeClaro]; ok && sov < 0.5 {
		out = append(out, "Reforzar cobertura de marca propia: el share of voice de Claro está por debajo del 50%.")
	}
	if activeIncidents > 0 {
		out = append(out, "Priorizar el triaje de los incidentes activos antes del próximo corte.")
	}
	if topContentCount == 0 {
		out = append(out, "Revisar los términos de búsqueda: la ventana no produjo contenido destacado.")
	}
	if len(out) == 0 {
		out = append(out,
			"Mantener el monitoreo regular de medios y redes.",
			"Revisar semanalmente los pesos de fuentes y la taxonomía de clasificación.")
	}
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}
