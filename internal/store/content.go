package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/cursor"
	"github.com/google/uuid"
)

// UpsertContentItem writes one normalized article or social post keyed by
// canonical URL. On conflict the mutable fields update, the term id keeps
// its first non-null value, and the raw payload key is replaced.
func (s *Store) UpsertContentItem(ctx context.Context, item domain.ContentItem) (uuid.UUID, error) {
	metadata, err := jsonValue(item.Metadata)
	if err != nil {
		return uuid.Nil, err
	}
	id := item.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var termID any
	if item.TermID != nil {
		termID = *item.TermID
	}
	var sourceScore any
	if item.SourceScore != nil {
		sourceScore = *item.SourceScore
	}

	var out uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO content_items
			(id, source_type, term_id, provider, source_name, source_id, canonical_url,
			 title, summary, content, image_url, language, category, published_at,
			 source_score, raw_payload_s3_key, state, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 'active', $17, NOW(), NOW())
		ON CONFLICT (canonical_url) DO UPDATE SET
			term_id = COALESCE(content_items.term_id, EXCLUDED.term_id),
			source_name = EXCLUDED.source_name,
			source_id = EXCLUDED.source_id,
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			content = EXCLUDED.content,
			image_url = EXCLUDED.image_url,
			language = EXCLUDED.language,
			category = EXCLUDED.category,
			published_at = COALESCE(EXCLUDED.published_at, content_items.published_at),
			source_score = COALESCE(EXCLUDED.source_score, content_items.source_score),
			raw_payload_s3_key = EXCLUDED.raw_payload_s3_key,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`, id, item.SourceType, termID, item.Provider, nullString(item.SourceName),
		nullString(item.SourceID), item.CanonicalURL, item.Title, nullString(item.Summary),
		nullString(item.Content), nullString(item.ImageURL), nullString(item.Language),
		nullString(item.Category), nullTime(item.PublishedAt), sourceScore,
		nullString(item.RawPayloadS3Key), metadata).Scan(&out)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert content %s: %w", item.CanonicalURL, mapError(err))
	}
	return out, nil
}

// ContentFilter narrows the content listing.
type ContentFilter struct {
	SourceType  domain.SourceType
	State       domain.ContentState
	Provider    string
	Category    string
	Sentimiento domain.Sentiment
	TermID      *uuid.UUID
	Q           string
	From        *time.Time
	To          *time.Time
	Limit       int
	Cursor      string
}

// ContentPage is one page of a cursor-paginated listing.
type ContentPage struct {
	Items      []domain.ContentItem
	NextCursor string
}

// ListContent pages through content items ordered by (created_at, id)
// strictly descending. The opaque cursor encodes the last row seen.
func (s *Store) ListContent(ctx context.Context, f ContentFilter) (*ContentPage, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := `SELECT id, source_type, term_id, provider, source_name, source_id, canonical_url,
		title, summary, content, image_url, language, category, published_at, source_score,
		raw_payload_s3_key, state, COALESCE(categoria,''), COALESCE(sentimiento,''), metadata,
		created_at, updated_at
		FROM content_items WHERE 1=1`
	var args []any
	idx := 1
	add := func(clause string, val any) {
		q += fmt.Sprintf(" AND "+clause, idx)
		args = append(args, val)
		idx++
	}

	if f.SourceType != "" {
		add("source_type = $%d", f.SourceType)
	}
	if f.State != "" {
		add("state = $%d", f.State)
	}
	if f.Provider != "" {
		add("provider = $%d", f.Provider)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Sentimiento != "" {
		add("sentimiento = $%d", f.Sentimiento)
	}
	if f.TermID != nil {
		add("term_id = $%d", *f.TermID)
	}
	if f.Q != "" {
		add("title ILIKE $%d", "%"+f.Q+"%")
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	if f.Cursor != "" {
		c, err := cursor.Decode(f.Cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor", ErrValidation)
		}
		q += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", idx, idx+1)
		args = append(args, c.Key, c.ID)
		idx += 2
	}

	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", idx)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := &ContentPage{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		page.NextCursor = cursor.Encode(last.CreatedAt, last.ID)
	}
	page.Items = items
	return page, nil
}

func scanContentItem(rows *sql.Rows) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var termID sql.NullString
	var sourceName, sourceID, summary, content, imageURL, language, category, rawKey sql.NullString
	var publishedAt sql.NullTime
	var sourceScore sql.NullFloat64
	var metadata []byte
	var sentimiento string

	err := rows.Scan(&item.ID, &item.SourceType, &termID, &item.Provider, &sourceName,
		&sourceID, &item.CanonicalURL, &item.Title, &summary, &content, &imageURL,
		&language, &category, &publishedAt, &sourceScore, &rawKey, &item.State,
		&item.Categoria, &sentimiento, &metadata, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan content item: %w", err)
	}
	if termID.Valid {
		if id, err := uuid.Parse(termID.String); err == nil {
			item.TermID = &id
		}
	}
	item.SourceName = sourceName.String
	item.SourceID = sourceID.String
	item.Summary = summary.String
	item.Content = content.String
	item.ImageURL = imageURL.String
	item.Language = language.String
	item.Category = category.String
	item.PublishedAt = timePtr(publishedAt)
	if sourceScore.Valid {
		item.SourceScore = &sourceScore.Float64
	}
	item.RawPayloadS3Key = rawKey.String
	item.Sentimiento = domain.Sentiment(sentimiento)
	if err := scanJSON(metadata, &item.Metadata); err != nil {
		return nil, fmt.Errorf("content metadata json: %w", err)
	}
	return &item, nil
}

// SetContentState transitions one item, recording the state event and audit
// entry in the same transaction. A no-op transition maps to ErrConflict.
func (s *Store) SetContentState(ctx context.Context, itemID uuid.UUID, to domain.ContentState,
	actorUserID, reason, requestID string) error {

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var from domain.ContentState
		err := tx.QueryRow(`SELECT state FROM content_items WHERE id = $1 FOR UPDATE`, itemID).Scan(&from)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: content %s", ErrNotFound, itemID)
		}
		if err != nil {
			return fmt.Errorf("lock content: %w", err)
		}
		if from == to {
			return fmt.Errorf("%w: content already %s", ErrConflict, to)
		}

		if _, err := tx.Exec(`UPDATE content_items SET state = $2, updated_at = NOW() WHERE id = $1`, itemID, to); err != nil {
			return fmt.Errorf("update content state: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO content_state_events (id, content_item_id, from_state, to_state, actor_user_id, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, uuid.New(), itemID, from, to, nullString(actorUserID), nullString(reason)); err != nil {
			return fmt.Errorf("insert state event: %w", err)
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			ActorUserID:  actorUserID,
			Action:       domain.AuditContentStateChanged,
			ResourceType: "content_item",
			ResourceID:   itemID.String(),
			RequestID:    requestID,
			Before:       map[string]any{"state": from},
			After:        map[string]any{"state": to, "reason": reason},
		})
	})
}
