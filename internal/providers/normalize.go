package providers

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Field length budgets applied to every normalized article.
const (
	maxTitleLen   = 500
	maxSummaryLen = 2000
	maxContentLen = 16000
	maxURLLen     = 2048
)

// CanonicalURL strips the fragment and query, removes a trailing slash
// unless the path is the root, and preserves scheme, host and path.
// Canonicalizing an already-canonical URL is a no-op.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url has no host")
	}
	u.Fragment = ""
	u.RawQuery = ""
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), nil
}

// Finalize trims and caps the article's string fields, canonicalizes the
// URL, and enforces the required fields. The article is mutated in place.
func Finalize(a *NormalizedArticle) error {
	a.Title = capString(strings.TrimSpace(a.Title), maxTitleLen)
	if a.Title == "" {
		return fmt.Errorf("article has no title")
	}

	canonical, err := CanonicalURL(a.CanonicalURL)
	if err != nil {
		return fmt.Errorf("article url: %w", err)
	}
	if len(canonical) > maxURLLen {
		return fmt.Errorf("article url exceeds %d bytes", maxURLLen)
	}
	a.CanonicalURL = canonical

	a.SourceType = "news"
	a.Summary = capString(strings.TrimSpace(a.Summary), maxSummaryLen)
	a.Content = capString(strings.TrimSpace(a.Content), maxContentLen)
	a.SourceName = strings.TrimSpace(a.SourceName)
	a.Author = strings.TrimSpace(a.Author)
	a.Language = strings.ToLower(strings.TrimSpace(a.Language))
	a.Category = strings.TrimSpace(a.Category)
	return nil
}

func capString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary.
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}

// parseTime tries the timestamp layouts the upstreams actually emit.
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"20060102T150405Z",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
