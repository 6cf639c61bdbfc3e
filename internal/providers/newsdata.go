package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/dynjson"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httpretry"
)

const newsDataName = "newsdata"

// NewsData queries the newsdata.io latest-news endpoint.
type NewsData struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewNewsData creates the adapter with the shared retry policy.
func NewNewsData(apiKey string) *NewsData {
	return &NewsData{
		baseURL:    "https://newsdata.io/api/1",
		apiKey:     apiKey,
		httpClient: httpretry.NewRetryClient(nil, 3),
	}
}

func (a *NewsData) Name() string { return newsDataName }

func (a *NewsData) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	started := time.Now()

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("apikey", a.apiKey)
	if req.Language != "" {
		params.Set("language", req.Language)
	}
	requestURL := a.baseURL + "/latest?" + params.Encode()

	v, err := getJSON(ctx, a.httpClient, requestURL, nil)
	if err != nil {
		return failResult(newsDataName, req.Term, requestURL, started, classify(err), err.Error())
	}

	raw, err := v.Field("results").AsArrayOfObjects()
	if err != nil {
		return failResult(newsDataName, req.Term, requestURL, started, ErrSchema,
			fmt.Sprintf("results field: %v", err))
	}

	items := make([]NormalizedArticle, 0, len(raw))
	for _, obj := range raw {
		art := NormalizedArticle{
			Provider:     newsDataName,
			Term:         req.Term,
			CanonicalURL: obj["link"].AsOptionalString(),
			Title:        obj["title"].AsOptionalString(),
			SourceName:   obj["source_name"].AsOptionalString(),
			SourceID:     obj["source_id"].AsOptionalString(),
			Summary:      obj["description"].AsOptionalString(),
			Content:      obj["content"].AsOptionalString(),
			ImageURL:     obj["image_url"].AsOptionalString(),
			PublishedAt:  parseTime(obj["pubDate"].AsOptionalString()),
			Language:     obj["language"].AsOptionalString(),
			Category:     firstString(obj["category"]),
			Metadata:     map[string]any{},
		}
		if country := joinStrings(obj["country"]); country != "" {
			art.Metadata["country"] = country
		}
		if err := Finalize(&art); err != nil {
			continue
		}
		items = append(items, art)
	}

	return FetchResult{
		Provider:   newsDataName,
		Term:       req.Term,
		Items:      items,
		RequestURL: requestURL,
		RawCount:   len(raw),
		DurationMs: time.Since(started).Milliseconds(),
	}
}

// firstString returns the first string element of a JSON array value.
func firstString(v dynjson.Value) string {
	arr, err := v.AsArray()
	if err != nil || len(arr) == 0 {
		return ""
	}
	return arr[0].AsOptionalString()
}

// joinStrings flattens an array of strings to a comma-joined list.
func joinStrings(v dynjson.Value) string {
	arr, err := v.AsArray()
	if err != nil {
		return ""
	}
	var parts []string
	for _, e := range arr {
		if s := e.AsOptionalString(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}
