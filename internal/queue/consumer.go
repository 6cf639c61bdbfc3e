package queue

import (
	"context"
	"sync"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Handler processes one raw message body. A nil return deletes the message;
// an error leaves it for redelivery after the visibility timeout.
type Handler func(ctx context.Context, body []byte) error

// Consumer long-polls one queue and hands each received batch to the
// handler. Messages in a batch run concurrently up to Concurrency, and a
// failing message never blocks its siblings.
type Consumer struct {
	client      SQSAPI
	queueURL    string
	name        string
	handler     Handler
	concurrency int
	done        chan struct{}
	stopOnce    sync.Once
}

// NewConsumer builds a consumer. Concurrency below 1 means one at a time.
func NewConsumer(client SQSAPI, queueURL, name string, concurrency int, handler Handler) *Consumer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{
		client:      client,
		queueURL:    queueURL,
		name:        name,
		handler:     handler,
		concurrency: concurrency,
		done:        make(chan struct{}),
	}
}

// Start launches the poll loop in its own goroutine.
func (c *Consumer) Start(ctx context.Context) {
	logger.Info("queue consumer started", "queue", c.name, "url", c.queueURL, "concurrency", c.concurrency)
	go c.poll(ctx)
}

// Stop signals the poll loop to exit after the in-flight batch.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("queue receive failed", "queue", c.name, "error", err.Error())
			time.Sleep(5 * time.Second)
			continue
		}
		if len(out.Messages) == 0 {
			continue
		}

		sem := make(chan struct{}, c.concurrency)
		var wg sync.WaitGroup
		for _, msg := range out.Messages {
			wg.Add(1)
			sem <- struct{}{}
			go func(body string, handle *string) {
				defer wg.Done()
				defer func() { <-sem }()

				if err := c.handler(ctx, []byte(body)); err != nil {
					logger.Error("queue message failed", "queue", c.name, "error", err.Error())
					return
				}
				c.delete(ctx, handle)
			}(aws.ToString(msg.Body), msg.ReceiptHandle)
		}
		wg.Wait()
	}
}

func (c *Consumer) delete(ctx context.Context, handle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		logger.Warn("queue delete failed", "queue", c.name, "error", err.Error())
	}
}
