package classification

import (
	"context"
	"encoding/json"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/google/uuid"
)

// ModelInvoker abstracts the Bedrock call for tests.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// ClassificationStore is the store slice the worker drives.
type ClassificationStore interface {
	HasOverride(ctx context.Context, contentItemID uuid.UUID) (bool, error)
	GetClassificationSource(ctx context.Context, id uuid.UUID) (*store.ClassificationSource, error)
	UpsertAutoClassification(ctx context.Context, c domain.Classification, requestID string) error
}

// Worker consumes classification jobs: one LLM call per content item with a
// strict JSON contract. Items carrying a manual override are skipped.
type Worker struct {
	store   ClassificationStore
	invoker ModelInvoker
}

// NewWorker wires the classification worker.
func NewWorker(st ClassificationStore, invoker ModelInvoker) *Worker {
	return &Worker{store: st, invoker: invoker}
}

// Handle processes one raw job message.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job queue.ClassificationJob
	if err := json.Unmarshal(body, &job); err != nil {
		logger.Warn("classification_bad_message", "error", err.Error())
		return nil
	}
	if job.ContentItemID == uuid.Nil {
		logger.Warn("classification_bad_message", "error", "missing content_item_id")
		return nil
	}
	return w.Process(ctx, job)
}

// Process classifies one content item.
func (w *Worker) Process(ctx context.Context, job queue.ClassificationJob) error {
	overridden, err := w.store.HasOverride(ctx, job.ContentItemID)
	if err != nil {
		return err
	}
	if overridden {
		logger.Info("classification_skipped_manual_override", "content_item_id", job.ContentItemID)
		return nil
	}

	src, err := w.store.GetClassificationSource(ctx, job.ContentItemID)
	if err != nil {
		return err
	}

	prompt, err := RenderPrompt(src.Title, src.Summary, src.Content, src.Provider)
	if err != nil {
		return err
	}

	raw, err := w.invoker.Invoke(ctx, prompt)
	if err != nil {
		logger.Error("classification_invoke_failed", "content_item_id", job.ContentItemID, "error", err.Error())
		return err
	}

	result, err := ParseResult(raw)
	if err != nil {
		logger.Error("classification_invalid_output", "content_item_id", job.ContentItemID, "error", err.Error())
		return err
	}

	err = w.store.UpsertAutoClassification(ctx, domain.Classification{
		ContentItemID: job.ContentItemID,
		PromptVersion: job.PromptVersion,
		ModelID:       job.ModelID,
		Categoria:     result.Categoria,
		Sentimiento:   result.Sentimiento,
		Etiquetas:     result.Etiquetas,
		Confianza:     result.Confianza,
		Resumen:       result.Resumen,
	}, job.RequestID)
	if err != nil {
		return err
	}
	logger.Info("classification_written", "content_item_id", job.ContentItemID,
		"sentimiento", result.Sentimiento, "categoria", result.Categoria)
	return nil
}
