package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/google/uuid"
)

// TryMarkSocialObject claims a channel CSV object for processing. It returns
// false when the same (bucket, key, etag, lastModified) tuple was already
// marked, which is how re-listed objects are skipped.
func (s *Store) TryMarkSocialObject(ctx context.Context, mark domain.SocialObjectMark) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO social_object_marks (id, bucket, key, etag, last_modified, row_count, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (bucket, key, etag, last_modified) DO NOTHING
	`, uuid.New(), mark.Bucket, mark.Key, mark.ETag, mark.LastModified, mark.RowCount)
	if err != nil {
		return false, fmt.Errorf("mark social object: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateSocialObjectRowCount backfills the row count after parsing finishes.
func (s *Store) UpdateSocialObjectRowCount(ctx context.Context, bucket, key, etag string, rowCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE social_object_marks SET row_count = $4
		WHERE bucket = $1 AND key = $2 AND etag = $3
	`, bucket, key, etag, rowCount)
	if err != nil {
		return fmt.Errorf("update social object rows: %w", err)
	}
	return nil
}

// UpsertSocialAggregate accumulates the per-channel rollup for a window.
func (s *Store) UpsertSocialAggregate(ctx context.Context, agg domain.SocialAggregate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO social_aggregates
			(channel, window_start, window_end, post_count, like_count, share_count, comment_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (channel, window_start) DO UPDATE SET
			window_end = EXCLUDED.window_end,
			post_count = social_aggregates.post_count + EXCLUDED.post_count,
			like_count = social_aggregates.like_count + EXCLUDED.like_count,
			share_count = social_aggregates.share_count + EXCLUDED.share_count,
			comment_count = social_aggregates.comment_count + EXCLUDED.comment_count,
			updated_at = NOW()
	`, agg.Channel, agg.WindowStart, agg.WindowEnd,
		agg.PostCount, agg.LikeCount, agg.ShareCount, agg.CommentCount)
	if err != nil {
		return fmt.Errorf("upsert social aggregate: %w", mapError(err))
	}
	return nil
}

// InsertReconciliation records one channel's parsed-versus-persisted check
// with its audit entry. Warnings are recorded but never block the next run.
func (s *Store) InsertReconciliation(ctx context.Context, snap domain.ReconciliationSnapshot, requestID string) (uuid.UUID, error) {
	id := snap.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO social_reconciliations
				(id, channel, status, rows_parsed, rows_persisted, objects_scanned, objects_skipped, detail, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, id, snap.Channel, snap.Status, snap.RowsParsed, snap.RowsPersisted,
			snap.ObjectsScanned, snap.ObjectsSkipped, nullString(snap.Detail)); err != nil {
			return fmt.Errorf("insert reconciliation: %w", err)
		}
		return AppendAuditTx(tx, domain.AuditEntry{
			Action:       domain.AuditSocialObjectIngested,
			ResourceType: "social_channel",
			ResourceID:   snap.Channel,
			RequestID:    requestID,
			After: map[string]any{
				"status":         snap.Status,
				"rows_parsed":    snap.RowsParsed,
				"rows_persisted": snap.RowsPersisted,
			},
		})
	})
	return id, err
}

// ListReconciliations returns the latest snapshots per channel, newest first.
func (s *Store) ListReconciliations(ctx context.Context, channel string, limit int) ([]domain.ReconciliationSnapshot, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := `SELECT id, channel, status, rows_parsed, rows_persisted, objects_scanned,
		objects_skipped, COALESCE(detail,''), created_at
		FROM social_reconciliations`
	args := []any{}
	if channel != "" {
		q += ` WHERE channel = $1`
		args = append(args, channel)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	defer rows.Close()

	var out []domain.ReconciliationSnapshot
	for rows.Next() {
		var snap domain.ReconciliationSnapshot
		if err := rows.Scan(&snap.ID, &snap.Channel, &snap.Status, &snap.RowsParsed,
			&snap.RowsPersisted, &snap.ObjectsScanned, &snap.ObjectsSkipped,
			&snap.Detail, &snap.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SocialWindowBounds snaps a post time to its daily aggregation window.
func SocialWindowBounds(t time.Time) (time.Time, time.Time) {
	start := t.UTC().Truncate(24 * time.Hour)
	return start, start.Add(24 * time.Hour)
}
