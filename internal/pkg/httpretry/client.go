// Package httpretry provides an HTTP client with automatic retry on
// throttling and upstream server errors, exponential backoff with jitter,
// and a cancellable per-attempt deadline.
package httpretry

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 400 * time.Millisecond
	defaultJitterMax   = 250 * time.Millisecond

	// AttemptTimeout bounds each in-flight provider call.
	AttemptTimeout = 20 * time.Second
)

// RetryClient wraps an HTTPDoer with retry logic. Retryable outcomes are
// HTTP 429, HTTP 5xx, and transport errors; client errors return
// immediately so callers can classify them.
type RetryClient struct {
	client      HTTPDoer
	maxAttempts int
	baseDelay   time.Duration
	jitterMax   time.Duration
}

// NewRetryClient wraps client with the standard retry policy. A nil client
// gets a default http.Client whose timeout matches AttemptTimeout.
func NewRetryClient(client HTTPDoer, maxAttempts int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: AttemptTimeout}
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &RetryClient{
		client:      client,
		maxAttempts: maxAttempts,
		baseDelay:   defaultBaseDelay,
		jitterMax:   defaultJitterMax,
	}
}

// Do executes the request, retrying up to maxAttempts times. On the final
// attempt the response is returned as-is so the caller can read the status
// and body. Context cancellation stops retrying immediately.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= rc.maxAttempts; attempt++ {
		if err := req.Context().Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		if attempt > 1 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: resetting request body: %w", err)
				}
				req.Body = body
			}

			delay := rc.backoff(attempt)
			logger.Debug("httpretry_backoff",
				"attempt", attempt, "max", rc.maxAttempts,
				"host", req.URL.Host, "delay_ms", delay.Milliseconds())

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, req.Context().Err()
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == rc.maxAttempts {
			return resp, nil
		}

		// Drain for connection reuse before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// backoff returns 400ms * 2^(attempt-2) plus up to jitterMax of random
// jitter; attempt 2 waits ~400ms, attempt 3 ~800ms.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	d := rc.baseDelay << (attempt - 2)
	return d + time.Duration(rand.Int63n(int64(rc.jitterMax)))
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
