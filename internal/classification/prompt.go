package classification

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// Input caps applied before templating so the prompt stays inside the model
// context budget.
const (
	promptTitleMax   = 500
	promptSummaryMax = 1200
	promptContentMax = 9000
)

// classificationPrompt asks for a single JSON object and nothing else. The
// analysis language is Spanish because the monitored market is Colombian.
const classificationPrompt = `Eres un analista de reputación de marca para una empresa de telecomunicaciones en Colombia.

Analiza el siguiente contenido de prensa y responde ÚNICAMENTE con un objeto JSON válido, sin texto adicional ni bloques de código.

Proveedor: {{ provider }}
Título: {{ title }}
{% if summary != "" %}Resumen: {{ summary }}
{% endif %}{% if content != "" %}Contenido: {{ content }}
{% endif %}
El JSON debe tener exactamente estas claves:
- "categoria": una de "servicio", "red", "facturacion", "atencion_cliente", "regulatorio", "competencia", "corporativo", "otro"
- "sentimiento": "positivo", "neutro" o "negativo" respecto a la reputación de la marca mencionada
- "etiquetas": lista de hasta 5 etiquetas cortas en minúsculas
- "confianza": número entre 0 y 1
- "resumen": una frase en español de máximo 200 caracteres`

var (
	promptOnce sync.Once
	promptTpl  *liquid.Template
	promptErr  error
)

// RenderPrompt fills the classification template from one content item.
func RenderPrompt(title, summary, content, provider string) (string, error) {
	promptOnce.Do(func() {
		promptTpl, promptErr = liquid.NewEngine().ParseString(classificationPrompt)
	})
	if promptErr != nil {
		return "", fmt.Errorf("parse prompt template: %w", promptErr)
	}
	out, err := promptTpl.RenderString(map[string]any{
		"provider": provider,
		"title":    truncate(title, promptTitleMax),
		"summary":  truncate(summary, promptSummaryMax),
		"content":  truncate(content, promptContentMax),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
