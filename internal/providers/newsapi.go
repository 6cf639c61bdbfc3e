package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httpretry"
)

const newsAPIName = "newsapi"

// NewsAPI queries the newsapi.org "everything" endpoint.
type NewsAPI struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewNewsAPI creates the adapter with the shared retry policy.
func NewNewsAPI(apiKey string) *NewsAPI {
	return &NewsAPI{
		baseURL:    "https://newsapi.org/v2",
		apiKey:     apiKey,
		httpClient: httpretry.NewRetryClient(nil, 3),
	}
}

func (a *NewsAPI) Name() string { return newsAPIName }

// Fetch runs one search and normalizes the article list.
func (a *NewsAPI) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	started := time.Now()

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(clampPageSize(req.Max, 100)))
	if req.Language != "" {
		params.Set("language", req.Language)
	}
	requestURL := a.baseURL + "/everything?" + params.Encode()

	v, err := getJSON(ctx, a.httpClient, requestURL, map[string]string{"X-Api-Key": a.apiKey})
	if err != nil {
		return failResult(newsAPIName, req.Term, requestURL, started, classify(err), err.Error())
	}

	raw, err := v.Field("articles").AsArrayOfObjects()
	if err != nil {
		return failResult(newsAPIName, req.Term, requestURL, started, ErrSchema,
			fmt.Sprintf("articles field: %v", err))
	}

	items := make([]NormalizedArticle, 0, len(raw))
	for _, obj := range raw {
		art := NormalizedArticle{
			Provider:     newsAPIName,
			Term:         req.Term,
			CanonicalURL: obj["url"].AsOptionalString(),
			Title:        obj["title"].AsOptionalString(),
			SourceName:   obj["source"].Field("name").AsOptionalString(),
			SourceID:     obj["source"].Field("id").AsOptionalString(),
			Author:       obj["author"].AsOptionalString(),
			Summary:      obj["description"].AsOptionalString(),
			Content:      obj["content"].AsOptionalString(),
			ImageURL:     obj["urlToImage"].AsOptionalString(),
			PublishedAt:  parseTime(obj["publishedAt"].AsOptionalString()),
			Language:     req.Language,
		}
		if err := Finalize(&art); err != nil {
			continue
		}
		items = append(items, art)
	}

	return FetchResult{
		Provider:   newsAPIName,
		Term:       req.Term,
		Items:      items,
		RequestURL: requestURL,
		RawCount:   len(raw),
		DurationMs: time.Since(started).Milliseconds(),
	}
}

func clampPageSize(n, max int) int {
	if n <= 0 || n > max {
		return max
	}
	return n
}
