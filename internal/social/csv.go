// Package social ingests channel CSV dumps from the social bucket: object
// listing with idempotent marks, row parsing, content persistence, daily
// aggregation and a per-channel reconciliation snapshot.
package social

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
)

// postedAtLayouts are tried in order; exports from the four channels disagree
// on timestamp formats.
var postedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseChannelCSV reads one channel dump. Columns are matched by header name,
// not position. Rows missing the id or text column are counted as parsed but
// dropped; a malformed CSV stream aborts with the rows read so far.
func ParseChannelCSV(channel string, r io.Reader) ([]domain.SocialPost, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, 0, fmt.Errorf("channel %s: csv missing id column", channel)
	}

	field := func(record []string, names ...string) string {
		for _, name := range names {
			if i, ok := cols[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
		}
		return ""
	}

	var posts []domain.SocialPost
	parsed := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return posts, parsed, fmt.Errorf("read csv row %d: %w", parsed+1, err)
		}
		parsed++

		id := field(record, "id", "post_id")
		text := field(record, "text", "message", "caption")
		if id == "" || text == "" {
			continue
		}
		post := domain.SocialPost{
			Channel:      channel,
			ExternalID:   id,
			Author:       field(record, "author", "username", "account"),
			Text:         text,
			PermalinkURL: field(record, "permalink", "url", "link"),
			Likes:        parseCount(field(record, "likes", "like_count")),
			Shares:       parseCount(field(record, "shares", "share_count", "retweets")),
			Comments:     parseCount(field(record, "comments", "comment_count", "replies")),
		}
		if raw := field(record, "posted_at", "created_at", "date"); raw != "" {
			if ts := parsePostedAt(raw); ts != nil {
				post.PostedAt = ts
			}
		}
		posts = append(posts, post)
	}
	return posts, parsed, nil
}

func parseCount(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parsePostedAt(v string) *time.Time {
	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
