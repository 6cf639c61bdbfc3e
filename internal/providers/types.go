// Package providers implements the news-provider adapters: one adapter per
// upstream, each returning normalized articles plus a classified error tag.
// Provider failures never abort an ingestion run; they are recorded on the
// per-provider run item.
package providers

import (
	"context"
	"time"
)

// ErrorType partitions provider failures for observability.
type ErrorType string

const (
	ErrRateLimit   ErrorType = "rate_limit"
	ErrAuth        ErrorType = "auth"
	ErrTimeout     ErrorType = "timeout"
	ErrUpstream5xx ErrorType = "upstream_5xx"
	ErrSchema      ErrorType = "schema"
	ErrUnknown     ErrorType = "unknown"
)

// FetchRequest is the compiled query handed to an adapter.
type FetchRequest struct {
	Query    string // compiled provider query text
	Term     string // display name of the tracked query
	Language string
	Max      int
}

// NormalizedArticle is the provider-independent article shape. Title and a
// canonicalizable URL are required; everything else is best-effort.
type NormalizedArticle struct {
	SourceType   string         `json:"sourceType"`
	Provider     string         `json:"provider"`
	Term         string         `json:"term"`
	CanonicalURL string         `json:"canonicalUrl"`
	Title        string         `json:"title"`
	SourceName   string         `json:"sourceName,omitempty"`
	SourceID     string         `json:"sourceId,omitempty"`
	Author       string         `json:"author,omitempty"`
	Summary      string         `json:"summary,omitempty"`
	Content      string         `json:"content,omitempty"`
	ImageURL     string         `json:"imageUrl,omitempty"`
	PublishedAt  *time.Time     `json:"publishedAt,omitempty"`
	Language     string         `json:"language,omitempty"`
	Category     string         `json:"category,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// FetchResult is the outcome of one adapter call.
type FetchResult struct {
	Provider   string
	Term       string
	Items      []NormalizedArticle
	RequestURL string
	RawCount   int
	DurationMs int64
	ErrorType  ErrorType // empty on success
	Error      string    // empty on success
}

// Failed reports whether the fetch ended in a classified error.
func (r FetchResult) Failed() bool { return r.ErrorType != "" }

// Adapter is one news provider.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) FetchResult
}

func failResult(provider, term, requestURL string, started time.Time, et ErrorType, msg string) FetchResult {
	return FetchResult{
		Provider:   provider,
		Term:       term,
		RequestURL: requestURL,
		DurationMs: time.Since(started).Milliseconds(),
		ErrorType:  et,
		Error:      msg,
	}
}
