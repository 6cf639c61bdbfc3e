package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httpretry"
)

const gnewsName = "gnews"

// GNews queries the gnews.io search endpoint.
type GNews struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewGNews creates the adapter with the shared retry policy.
func NewGNews(apiKey string) *GNews {
	return &GNews{
		baseURL:    "https://gnews.io/api/v4",
		apiKey:     apiKey,
		httpClient: httpretry.NewRetryClient(nil, 3),
	}
}

func (a *GNews) Name() string { return gnewsName }

func (a *GNews) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	started := time.Now()

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("max", strconv.Itoa(clampPageSize(req.Max, 25)))
	params.Set("apikey", a.apiKey)
	if req.Language != "" {
		params.Set("lang", req.Language)
	}
	requestURL := a.baseURL + "/search?" + params.Encode()

	v, err := getJSON(ctx, a.httpClient, requestURL, nil)
	if err != nil {
		return failResult(gnewsName, req.Term, requestURL, started, classify(err), err.Error())
	}

	raw, err := v.Field("articles").AsArrayOfObjects()
	if err != nil {
		return failResult(gnewsName, req.Term, requestURL, started, ErrSchema,
			fmt.Sprintf("articles field: %v", err))
	}

	items := make([]NormalizedArticle, 0, len(raw))
	for _, obj := range raw {
		art := NormalizedArticle{
			Provider:     gnewsName,
			Term:         req.Term,
			CanonicalURL: obj["url"].AsOptionalString(),
			Title:        obj["title"].AsOptionalString(),
			SourceName:   obj["source"].Field("name").AsOptionalString(),
			Summary:      obj["description"].AsOptionalString(),
			Content:      obj["content"].AsOptionalString(),
			ImageURL:     obj["image"].AsOptionalString(),
			PublishedAt:  parseTime(obj["publishedAt"].AsOptionalString()),
			Language:     req.Language,
		}
		if err := Finalize(&art); err != nil {
			continue
		}
		items = append(items, art)
	}

	return FetchResult{
		Provider:   gnewsName,
		Term:       req.Term,
		Items:      items,
		RequestURL: requestURL,
		RawCount:   len(raw),
		DurationMs: time.Since(started).Milliseconds(),
	}
}
