package providers

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const rssFeedName = "rssfeed"

// RSSFeed aggregates a fixed set of newsroom RSS feeds. Feeds cannot take a
// query parameter, so the adapter returns everything recent and relies on
// the query evaluator to filter downstream.
type RSSFeed struct {
	feedURLs []string
	parser   *gofeed.Parser
}

// NewRSSFeed creates the adapter over a comma-separated feed list.
func NewRSSFeed(feedURLs string) *RSSFeed {
	var urls []string
	for _, u := range strings.Split(feedURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return &RSSFeed{feedURLs: urls, parser: gofeed.NewParser()}
}

func (a *RSSFeed) Name() string { return rssFeedName }

func (a *RSSFeed) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	started := time.Now()

	var items []NormalizedArticle
	rawCount := 0
	var lastErr error

	for _, feedURL := range a.feedURLs {
		feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			lastErr = err
			continue
		}
		rawCount += len(feed.Items)
		for _, it := range feed.Items {
			art := NormalizedArticle{
				Provider:     rssFeedName,
				Term:         req.Term,
				CanonicalURL: it.Link,
				Title:        it.Title,
				SourceName:   feed.Title,
				SourceID:     it.GUID,
				Summary:      it.Description,
				Content:      it.Content,
				Language:     req.Language,
			}
			if len(it.Authors) > 0 {
				art.Author = it.Authors[0].Name
			}
			if it.PublishedParsed != nil {
				t := it.PublishedParsed.UTC()
				art.PublishedAt = &t
			}
			if it.Image != nil {
				art.ImageURL = it.Image.URL
			}
			if err := Finalize(&art); err != nil {
				continue
			}
			items = append(items, art)
		}
	}

	// Only report failure when every feed failed; partial feed outages
	// still produce a usable batch.
	if len(items) == 0 && rawCount == 0 && lastErr != nil {
		return failResult(rssFeedName, req.Term, strings.Join(a.feedURLs, ","), started,
			ClassifyErr(lastErr), lastErr.Error())
	}

	return FetchResult{
		Provider:   rssFeedName,
		Term:       req.Term,
		Items:      items,
		RequestURL: strings.Join(a.feedURLs, ","),
		RawCount:   rawCount,
		DurationMs: time.Since(started).Milliseconds(),
	}
}
