package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httpretry"
)

const mediastackName = "mediastack"

// Mediastack queries the mediastack live-news endpoint.
type Mediastack struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewMediastack creates the adapter with the shared retry policy.
func NewMediastack(apiKey string) *Mediastack {
	return &Mediastack{
		baseURL:    "https://api.mediastack.com/v1",
		apiKey:     apiKey,
		httpClient: httpretry.NewRetryClient(nil, 3),
	}
}

func (a *Mediastack) Name() string { return mediastackName }

func (a *Mediastack) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	started := time.Now()

	params := url.Values{}
	params.Set("access_key", a.apiKey)
	params.Set("keywords", req.Query)
	params.Set("limit", strconv.Itoa(clampPageSize(req.Max, 100)))
	params.Set("sort", "published_desc")
	if req.Language != "" {
		params.Set("languages", req.Language)
	}
	requestURL := a.baseURL + "/news?" + params.Encode()

	v, err := getJSON(ctx, a.httpClient, requestURL, nil)
	if err != nil {
		return failResult(mediastackName, req.Term, requestURL, started, classify(err), err.Error())
	}

	raw, err := v.Field("data").AsArrayOfObjects()
	if err != nil {
		return failResult(mediastackName, req.Term, requestURL, started, ErrSchema,
			fmt.Sprintf("data field: %v", err))
	}

	items := make([]NormalizedArticle, 0, len(raw))
	for _, obj := range raw {
		art := NormalizedArticle{
			Provider:     mediastackName,
			Term:         req.Term,
			CanonicalURL: obj["url"].AsOptionalString(),
			Title:        obj["title"].AsOptionalString(),
			SourceName:   obj["source"].AsOptionalString(),
			Author:       obj["author"].AsOptionalString(),
			Summary:      obj["description"].AsOptionalString(),
			ImageURL:     obj["image"].AsOptionalString(),
			PublishedAt:  parseTime(obj["published_at"].AsOptionalString()),
			Language:     obj["language"].AsOptionalString(),
			Category:     obj["category"].AsOptionalString(),
			Metadata:     map[string]any{},
		}
		if country := obj["country"].AsOptionalString(); country != "" {
			art.Metadata["country"] = country
		}
		if err := Finalize(&art); err != nil {
			continue
		}
		items = append(items, art)
	}

	return FetchResult{
		Provider:   mediastackName,
		Term:       req.Term,
		Items:      items,
		RequestURL: requestURL,
		RawCount:   len(raw),
		DurationMs: time.Since(started).Milliseconds(),
	}
}
