package classification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultAcceptsPlainJSON(t *testing.T) {
	raw := `{"categoria":"red","sentimiento":"negativo","etiquetas":["caída","5g"],"confianza":0.9,"resumen":"Falla masiva en la red."}`
	r, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "red", r.Categoria)
	assert.Equal(t, domain.SentimentNegative, r.Sentimiento)
	assert.Equal(t, []string{"caída", "5g"}, r.Etiquetas)
	assert.Equal(t, 0.9, r.Confianza)
}

func TestParseResultStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"categoria\":\"servicio\",\"sentimiento\":\"neutro\"}\n```"
	r, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "servicio", r.Categoria)
	assert.Equal(t, domain.SentimentNeutral, r.Sentimiento)
}

func TestParseResultBraceSliceFallback(t *testing.T) {
	raw := `Claro, aquí está el análisis: {"categoria":"otro","sentimiento":"positivo"} Espero que sirva.`
	r, err := ParseResult(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentPositive, r.Sentimiento)
}

func TestParseResultErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", "model_empty_response"},
		{"not json", "no soy json", "model_invalid_json"},
		{"array", `[1,2]`, "model_invalid_json"},
		{"missing categoria", `{"sentimiento":"neutro"}`, "model_missing_categoria"},
		{"missing sentimiento", `{"categoria":"red"}`, "model_missing_sentimiento"},
		{"bad sentimiento", `{"categoria":"red","sentimiento":"enfadado"}`, "model_invalid_sentimiento"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResult(tc.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNormalizeSentimentVariants(t *testing.T) {
	cases := map[string]domain.Sentiment{
		"Positivo":          domain.SentimentPositive,
		"POSITIVE":          domain.SentimentPositive,
		"neutro":            domain.SentimentNeutral,
		"neutral":           domain.SentimentNeutral,
		"Negativo":          domain.SentimentNegative,
		"negative":          domain.SentimentNegative,
		"mixed":             domain.SentimentNeutral,
		"positive+negative": domain.SentimentNeutral,
	}
	for raw, want := range cases {
		got, ok := NormalizeSentiment(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := NormalizeSentiment("feliz")
	assert.False(t, ok)
}

func TestNormalizeSentimentTokenizesPunctuatedVerdicts(t *testing.T) {
	cases := map[string]domain.Sentiment{
		"positive/negative":           domain.SentimentNeutral,
		"positivo / negativo":         domain.SentimentNeutral,
		"positivo.":                   domain.SentimentPositive,
		"Sentimiento: negativo":       domain.SentimentNegative,
		"mixto (positivo y negativo)": domain.SentimentNeutral,
		"\"neutral\"":                 domain.SentimentNeutral,
	}
	for raw, want := range cases {
		got, ok := NormalizeSentiment(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	// Unrecognized words around a real verdict must not change it, and a
	// verdict made only of unrecognized words still fails.
	got, ok := NormalizeSentiment("claramente positivo")
	require.True(t, ok)
	assert.Equal(t, domain.SentimentPositive, got)
	_, ok = NormalizeSentiment("muy enfadado!!")
	assert.False(t, ok)
}

func TestParseResultDedupesAndCapsEtiquetas(t *testing.T) {
	tags := make([]string, 0, 120)
	tags = append(tags, "Caída", "caída", " caída ", "5G")
	for i := 0; i < 100; i++ {
		tags = append(tags, fmt.Sprintf("tag-%03d", i))
	}
	body, err := json.Marshal(map[string]any{
		"categoria":   "red",
		"sentimiento": "negativo",
		"etiquetas":   tags,
	})
	require.NoError(t, err)

	r, err := ParseResult(string(body))
	require.NoError(t, err)
	require.Len(t, r.Etiquetas, 50)
	assert.Equal(t, "caída", r.Etiquetas[0])
	assert.Equal(t, "5g", r.Etiquetas[1])
	seen := make(map[string]struct{}, len(r.Etiquetas))
	for _, tag := range r.Etiquetas {
		_, dup := seen[tag]
		require.False(t, dup, tag)
		seen[tag] = struct{}{}
	}
}

func TestParseResultTruncatesResumen(t *testing.T) {
	long := strings.Repeat("ñ", 1200)
	body, err := json.Marshal(map[string]any{
		"categoria":   "servicio",
		"sentimiento": "neutro",
		"resumen":     long,
	})
	require.NoError(t, err)

	r, err := ParseResult(string(body))
	require.NoError(t, err)
	assert.Equal(t, 1000, len([]rune(r.Resumen)))
	assert.Equal(t, strings.Repeat("ñ", 1000), r.Resumen)
}

func TestRenderPromptTruncatesAndInterpolates(t *testing.T) {
	long := make([]rune, promptContentMax+500)
	for i := range long {
		long[i] = 'x'
	}
	out, err := RenderPrompt("Claro presenta resultados", "Resumen corto", string(long), "newsapi")
	require.NoError(t, err)
	assert.Contains(t, out, "Claro presenta resultados")
	assert.Contains(t, out, "newsapi")
	assert.LessOrEqual(t, len(out), promptContentMax+promptSummaryMax+promptTitleMax+2000)
}

type fakeBedrock struct {
	outputs []string
	errs    []error
	calls   int
}

func (f *fakeBedrock) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	body, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": f.outputs[i]}},
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func TestInvokerRetriesOnThrottling(t *testing.T) {
	fake := &fakeBedrock{
		errs:    []error{errors.New("ThrottlingException: slow down"), nil},
		outputs: []string{"", `{"ok":true}`},
	}
	iv := NewInvoker(fake, "anthropic.claude-3-haiku")
	iv.sleep = func(time.Duration) {}

	out, err := iv.Invoke(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, 2, fake.calls)
}

func TestInvokerDoesNotRetryPermanentErrors(t *testing.T) {
	fake := &fakeBedrock{errs: []error{errors.New("AccessDeniedException")}}
	iv := NewInvoker(fake, "anthropic.claude-3-haiku")
	iv.sleep = func(time.Duration) {}

	_, err := iv.Invoke(context.Background(), "hola")
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestInvokerExhaustsAttempts(t *testing.T) {
	throttle := errors.New("ThrottlingException")
	fake := &fakeBedrock{errs: []error{throttle, throttle, throttle}}
	iv := NewInvoker(fake, "anthropic.claude-3-haiku")
	iv.sleep = func(time.Duration) {}

	_, err := iv.Invoke(context.Background(), "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bedrock_attempts_exhausted")
	assert.Equal(t, 3, fake.calls)
}

type fakeClassStore struct {
	override bool
	source   *store.ClassificationSource
	written  []domain.Classification
}

func (f *fakeClassStore) HasOverride(ctx context.Context, id uuid.UUID) (bool, error) {
	return f.override, nil
}

func (f *fakeClassStore) GetClassificationSource(ctx context.Context, id uuid.UUID) (*store.ClassificationSource, error) {
	return f.source, nil
}

func (f *fakeClassStore) UpsertAutoClassification(ctx context.Context, c domain.Classification, requestID string) error {
	f.written = append(f.written, c)
	return nil
}

type fixedInvoker struct{ out string }

func (f fixedInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	return f.out, nil
}

func TestWorkerSkipsOverriddenItems(t *testing.T) {
	st := &fakeClassStore{override: true}
	w := NewWorker(st, fixedInvoker{out: `{"categoria":"red","sentimiento":"negativo"}`})

	err := w.Process(context.Background(), queue.ClassificationJob{
		ContentItemID: uuid.New(),
		PromptVersion: "classification-v1",
		ModelID:       "m1",
	})
	require.NoError(t, err)
	assert.Empty(t, st.written)
}

func TestWorkerWritesClassification(t *testing.T) {
	id := uuid.New()
	st := &fakeClassStore{source: &store.ClassificationSource{
		ID: id, Title: "Claro cae en Bogotá", Provider: "gnews",
	}}
	w := NewWorker(st, fixedInvoker{out: `{"categoria":"red","sentimiento":"negativo","confianza":0.85}`})

	err := w.Process(context.Background(), queue.ClassificationJob{
		ContentItemID: id,
		PromptVersion: "classification-v1",
		ModelID:       "anthropic.claude-3-haiku",
	})
	require.NoError(t, err)
	require.Len(t, st.written, 1)
	assert.Equal(t, id, st.written[0].ContentItemID)
	assert.Equal(t, "classification-v1", st.written[0].PromptVersion)
	assert.Equal(t, domain.SentimentNegative, st.written[0].Sentimiento)
}

type capturePublisher struct{ jobs []queue.ClassificationJob }

func (c *capturePublisher) Publish(ctx context.Context, v any) error {
	c.jobs = append(c.jobs, v.(queue.ClassificationJob))
	return nil
}

type fixedPending struct{ ids []uuid.UUID }

func (f fixedPending) PendingContentIDs(ctx context.Context, windowStart time.Time, pv, m string, limit int) ([]uuid.UUID, error) {
	return f.ids, nil
}

func TestSchedulerEnqueuesOneJobPerItem(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	pub := &capturePublisher{}
	s := NewScheduler(fixedPending{ids: ids}, pub, "classification-v1", "m1", 7*24*time.Hour, 120)

	n, err := s.Schedule(context.Background(), "scheduled", "req-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.jobs, 3)
	assert.Equal(t, ids[0], pub.jobs[0].ContentItemID)
	assert.Equal(t, "news", pub.jobs[0].SourceType)
}
