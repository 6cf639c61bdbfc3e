// Package classification runs the LLM enrichment stage: the scheduler picks
// unclassified window content, the worker invokes Bedrock with a strict JSON
// contract and writes the result.
package classification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	invokeMaxAttempts = 3
	invokeTemperature = 0.1
	invokeMaxTokens   = 800
)

// BedrockAPI is the slice of the runtime client the invoker touches.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Invoker calls one Anthropic model through Bedrock with retry on transient
// upstream failures.
type Invoker struct {
	client  BedrockAPI
	modelID string
	sleep   func(time.Duration)
}

// NewInvoker binds a Bedrock client to a model id.
func NewInvoker(client BedrockAPI, modelID string) *Invoker {
	return &Invoker{client: client, modelID: modelID, sleep: time.Sleep}
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Invoke sends the prompt and returns the model's text output. Throttling,
// timeout and service-unavailable errors retry up to 3 attempts with
// attempt-scaled backoff; everything else propagates immediately.
func (iv *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        invokeMaxTokens,
		Temperature:      invokeTemperature,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: prompt}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal bedrock request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= invokeMaxAttempts; attempt++ {
		out, err := iv.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(iv.modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err == nil {
			return extractText(out.Body)
		}
		if !retryableInvokeError(err) {
			return "", err
		}
		lastErr = err
		if attempt < invokeMaxAttempts {
			delay := time.Duration(attempt)*500*time.Millisecond +
				time.Duration(rand.Intn(250))*time.Millisecond
			logger.Warn("bedrock_invoke_retry", "model_id", iv.modelID, "attempt", attempt, "error", err.Error())
			iv.sleep(delay)
		}
	}
	return "", fmt.Errorf("bedrock_attempts_exhausted: %w", lastErr)
}

func extractText(raw []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("parse bedrock response: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", errors.New("bedrock_missing_text_output")
}

// retryableInvokeError matches throttling, timeout, and service-unavailable
// shapes by error text, which is how the runtime surfaces them.
func retryableInvokeError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "throttl") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "serviceunavailable")
}
