package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
)

// LoadSourceWeights returns every configured trust weight keyed by
// "provider" or "provider|source". The evaluator resolves an item through
// the pair key first, then the provider key, then the item's own source
// score, then 0.5.
func (s *Store) LoadSourceWeights(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, COALESCE(source_name, ''), weight FROM source_weights`)
	if err != nil {
		return nil, fmt.Errorf("load source weights: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var w domain.SourceWeight
		if err := rows.Scan(&w.Provider, &w.SourceName, &w.Weight); err != nil {
			return nil, err
		}
		out[SourceWeightKey(w.Provider, w.SourceName)] = w.Weight
	}
	return out, rows.Err()
}

// SourceWeightKey builds the lookup key for a weight row. An empty source
// name yields the provider-level key.
func SourceWeightKey(provider, sourceName string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	sourceName = strings.ToLower(strings.TrimSpace(sourceName))
	if sourceName == "" {
		return provider
	}
	return provider + "|" + sourceName
}

// UpsertSourceWeight writes one weight row, clamping into [0, 1].
func (s *Store) UpsertSourceWeight(ctx context.Context, w domain.SourceWeight) error {
	weight := w.Weight
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_weights (provider, source_name, weight, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider, source_name) DO UPDATE SET weight = EXCLUDED.weight, updated_at = NOW()
	`, strings.ToLower(strings.TrimSpace(w.Provider)), strings.ToLower(strings.TrimSpace(w.SourceName)), weight)
	if err != nil {
		return fmt.Errorf("upsert source weight: %w", mapError(err))
	}
	return nil
}
