package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the slice of the SQS client the queue package touches.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Publisher sends JSON messages to one queue.
type Publisher struct {
	client   SQSAPI
	queueURL string
}

// NewPublisher builds a publisher bound to queueURL.
func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// Publish marshals v and sends it. Unlike fire-and-forget telemetry, pipeline
// dispatches must surface send failures to the caller.
func (p *Publisher) Publish(ctx context.Context, v any) error {
	if p.queueURL == "" {
		return fmt.Errorf("publish: queue url not configured")
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", p.queueURL, err)
	}
	return nil
}
