package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httpretry"
)

const gdeltName = "gdelt"

// GDELT queries the GDELT 2.0 DOC API. No API key is required.
type GDELT struct {
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewGDELT creates the adapter; baseURL is configurable because GDELT
// mirrors exist.
func NewGDELT(baseURL string) *GDELT {
	if baseURL == "" {
		baseURL = "https://api.gdeltproject.org/api/v2/doc/doc"
	}
	return &GDELT{
		baseURL:    baseURL,
		httpClient: httpretry.NewRetryClient(nil, 3),
	}
}

func (a *GDELT) Name() string { return gdeltName }

func (a *GDELT) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	started := time.Now()

	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("mode", "ArtList")
	params.Set("format", "json")
	params.Set("maxrecords", strconv.Itoa(clampPageSize(req.Max, 75)))
	params.Set("sort", "DateDesc")
	requestURL := a.baseURL + "?" + params.Encode()

	v, err := getJSON(ctx, a.httpClient, requestURL, nil)
	if err != nil {
		return failResult(gdeltName, req.Term, requestURL, started, classify(err), err.Error())
	}

	raw, err := v.Field("articles").AsArrayOfObjects()
	if err != nil {
		return failResult(gdeltName, req.Term, requestURL, started, ErrSchema,
			fmt.Sprintf("articles field: %v", err))
	}

	items := make([]NormalizedArticle, 0, len(raw))
	for _, obj := range raw {
		art := NormalizedArticle{
			Provider:     gdeltName,
			Term:         req.Term,
			CanonicalURL: obj["url"].AsOptionalString(),
			Title:        obj["title"].AsOptionalString(),
			SourceName:   obj["domain"].AsOptionalString(),
			ImageURL:     obj["socialimage"].AsOptionalString(),
			PublishedAt:  parseTime(obj["seendate"].AsOptionalString()),
			Language:     obj["language"].AsOptionalString(),
			Metadata:     map[string]any{},
		}
		if country := obj["sourcecountry"].AsOptionalString(); country != "" {
			art.Metadata["country"] = country
		}
		if err := Finalize(&art); err != nil {
			continue
		}
		items = append(items, art)
	}

	return FetchResult{
		Provider:   gdeltName,
		Term:       req.Term,
		Items:      items,
		RequestURL: requestURL,
		RawCount:   len(raw),
		DurationMs: time.Since(started).Milliseconds(),
	}
}
