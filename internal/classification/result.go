package classification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/dynjson"
)

const (
	maxEtiquetas  = 50
	maxResumenLen = 1000
)

// Result is the validated model output.
type Result struct {
	Categoria   string
	Sentimiento domain.Sentiment
	Etiquetas   []string
	Confianza   float64
	Resumen     string
}

// ParseResult validates the raw model text against the JSON contract.
// Error strings are stable so failures aggregate cleanly in logs.
func ParseResult(raw string) (*Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("model_empty_response")
	}
	raw = stripFences(raw)
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	v, err := dynjson.Decode([]byte(raw))
	if err != nil {
		return nil, errors.New("model_invalid_json")
	}
	if _, err := v.AsObject(); err != nil {
		return nil, errors.New("model_invalid_json")
	}

	out := &Result{}
	out.Categoria, err = v.Field("categoria").AsString()
	if err != nil || strings.TrimSpace(out.Categoria) == "" {
		return nil, errors.New("model_missing_categoria")
	}
	rawSentiment, err := v.Field("sentimiento").AsString()
	if err != nil || strings.TrimSpace(rawSentiment) == "" {
		return nil, errors.New("model_missing_sentimiento")
	}
	sentiment, ok := NormalizeSentiment(rawSentiment)
	if !ok {
		return nil, fmt.Errorf("model_invalid_sentimiento: %q", rawSentiment)
	}
	out.Sentimiento = sentiment

	if arr, err := v.Field("etiquetas").AsArray(); err == nil {
		seen := make(map[string]struct{}, len(arr))
		for _, e := range arr {
			if s, err := e.AsString(); err == nil {
				if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
					if _, dup := seen[s]; dup {
						continue
					}
					seen[s] = struct{}{}
					out.Etiquetas = append(out.Etiquetas, s)
				}
			}
		}
		if len(out.Etiquetas) > maxEtiquetas {
			out.Etiquetas = out.Etiquetas[:maxEtiquetas]
		}
	}
	if f, err := v.Field("confianza").AsFloat(); err == nil {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		out.Confianza = f
	}
	if s, err := v.Field("resumen").AsString(); err == nil {
		s = strings.TrimSpace(s)
		if r := []rune(s); len(r) > maxResumenLen {
			s = string(r[:maxResumenLen])
		}
		out.Resumen = s
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence when present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// NormalizeSentiment folds model variants onto the canonical Spanish values.
// The verdict is tokenized on non-letter runes after diacritic folding, so
// punctuated or compound answers ("positivo.", "positive/negative") still
// classify. An ambiguous positive-and-negative verdict, or an explicit
// "mixed", maps to neutral; a verdict with no recognized token fails.
func NormalizeSentiment(raw string) (domain.Sentiment, bool) {
	folded := foldDiacritics(strings.ToLower(strings.TrimSpace(raw)))
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return r < 'a' || r > 'z'
	})

	var pos, neg, neu, mixed bool
	for _, tok := range tokens {
		switch tok {
		case "positivo", "positiva", "positive":
			pos = true
		case "negativo", "negativa", "negative":
			neg = true
		case "neutro", "neutra", "neutral":
			neu = true
		case "mixed", "mixto", "mixta":
			mixed = true
		}
	}

	switch {
	case mixed, pos && neg:
		return domain.SentimentNeutral, true
	case pos:
		return domain.SentimentPositive, true
	case neg:
		return domain.SentimentNegative, true
	case neu:
		return domain.SentimentNeutral, true
	default:
		return "", false
	}
}

var diacriticFold = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func foldDiacritics(s string) string {
	return diacriticFold.Replace(s)
}
