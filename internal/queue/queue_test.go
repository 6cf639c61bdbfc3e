package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	mu       sync.Mutex
	sent     []string
	batches  [][]sqstypes.Message
	deleted  []string
	sendErr  error
	received int
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.received >= len(f.batches) {
		f.mu.Unlock()
		<-ctx.Done()
		f.mu.Lock()
		return nil, ctx.Err()
	}
	batch := f.batches[f.received]
	f.received++
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestPublisherMarshalsAndSends(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.example/q")

	job := ClassificationJob{
		ContentItemID: uuid.New(),
		PromptVersion: "classification-v1",
		ModelID:       "anthropic.claude-3-haiku",
		SourceType:    "news",
		TriggerType:   "scheduled",
	}
	require.NoError(t, p.Publish(context.Background(), job))
	require.Len(t, fake.sent, 1)

	var got ClassificationJob
	require.NoError(t, json.Unmarshal([]byte(fake.sent[0]), &got))
	assert.Equal(t, job.ContentItemID, got.ContentItemID)
	assert.Equal(t, "classification-v1", got.PromptVersion)
}

func TestPublisherRequiresQueueURL(t *testing.T) {
	p := NewPublisher(&fakeSQS{}, "")
	err := p.Publish(context.Background(), ReportJob{ReportRunID: uuid.New()})
	assert.Error(t, err)
}

func TestPublisherPropagatesSendError(t *testing.T) {
	fake := &fakeSQS{sendErr: errors.New("throttled")}
	p := NewPublisher(fake, "https://sqs.example/q")
	err := p.Publish(context.Background(), ReportJob{ReportRunID: uuid.New()})
	assert.ErrorContains(t, err, "throttled")
}

func TestConsumerDeletesOnlySuccessfulMessages(t *testing.T) {
	msg := func(handle, body string) sqstypes.Message {
		return sqstypes.Message{ReceiptHandle: aws.String(handle), Body: aws.String(body)}
	}
	fake := &fakeSQS{batches: [][]sqstypes.Message{{
		msg("h1", `{"n":1}`),
		msg("h2", `{"n":2}`),
		msg("h3", `{"n":3}`),
	}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	var handled []int
	c := NewConsumer(fake, "https://sqs.example/q", "test", 2, func(ctx context.Context, body []byte) error {
		var payload struct{ N int }
		if err := json.Unmarshal(body, &payload); err != nil {
			return err
		}
		mu.Lock()
		handled = append(handled, payload.N)
		mu.Unlock()
		if payload.N == 2 {
			return errors.New("boom")
		}
		return nil
	})
	c.Start(ctx)
	<-ctx.Done()
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, handled, 3)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.ElementsMatch(t, []string{"h1", "h3"}, fake.deleted)
}
