// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StrategyAll marks a citation-discovery result that combined every
// strategy. An "all" entry satisfies lookups for any single strategy.
const StrategyAll = "all"

func cacheKey(geoID, strategy string) string {
	return geoID + ":" + strategy
}

// PutCitationCache stores a discovery result for (geoID, strategy) with
// the given time-to-live. Re-running discovery overwrites the entry and
// resets its hit count.
func (s *Store) PutCitationCache(ctx context.Context, geoID, strategy string, result []byte, ttl time.Duration) error {
	created := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO citation_discovery_cache
			(cache_key, geo_id, strategy, result_json, created_at, expires_at, hit_count)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(cache_key) DO UPDATE SET
			result_json = excluded.result_json,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			hit_count = 0`,
		cacheKey(geoID, strategy), geoID, strategy, string(result),
		created.Format(time.RFC3339), created.Add(ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("caching citations for %s: %w", geoID, err)
	}
	return nil
}

// GetCitationCache returns the unexpired discovery result for
// (geoID, strategy) and bumps its hit count. A stored "all" entry
// satisfies any strategy. Expired entries are removed and reported as a
// miss.
func (s *Store) GetCitationCache(ctx context.Context, geoID, strategy string) ([]byte, bool, error) {
	keys := []string{cacheKey(geoID, strategy)}
	if strategy != StrategyAll {
		keys = append(keys, cacheKey(geoID, StrategyAll))
	}

	for _, key := range keys {
		var resultJSON, expiresAt string
		row := s.db.QueryRowContext(ctx,
			`SELECT result_json, expires_at FROM citation_discovery_cache WHERE cache_key = ?`, key)
		err := row.Scan(&resultJSON, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("reading citation cache for %s: %w", geoID, err)
		}

		expiry, _ := time.Parse(time.RFC3339, expiresAt)
		if !expiry.After(time.Now().UTC()) {
			s.db.ExecContext(ctx, `DELETE FROM citation_discovery_cache WHERE cache_key = ?`, key)
			continue
		}

		s.db.ExecContext(ctx,
			`UPDATE citation_discovery_cache SET hit_count = hit_count + 1 WHERE cache_key = ?`, key)
		return []byte(resultJSON), true, nil
	}
	return nil, false, nil
}

// InvalidateCitationCache drops every cached discovery result for a
// dataset, forcing the next lookup to hit the sources again.
func (s *Store) InvalidateCitationCache(ctx context.Context, geoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM citation_discovery_cache WHERE geo_id = ?`, geoID)
	return err
}

// PutNegative records that a source returned not-found for a lookup key,
// so the pipeline skips re-asking until the entry expires.
func (s *Store) PutNegative(ctx context.Context, lookupKey, source string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO negative_cache (lookup_key, source, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(lookup_key, source) DO UPDATE SET expires_at = excluded.expires_at`,
		lookupKey, source, time.Now().UTC().Add(ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording negative entry for %s/%s: %w", source, lookupKey, err)
	}
	return nil
}

// IsNegative reports whether an unexpired negative entry exists for
// (lookupKey, source).
func (s *Store) IsNegative(ctx context.Context, lookupKey, source string) (bool, error) {
	var expiresAt string
	row := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM negative_cache WHERE lookup_key = ? AND source = ?`, lookupKey, source)
	err := row.Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading negative cache for %s/%s: %w", source, lookupKey, err)
	}

	expiry, _ := time.Parse(time.RFC3339, expiresAt)
	if !expiry.After(time.Now().UTC()) {
		s.db.ExecContext(ctx, `DELETE FROM negative_cache WHERE lookup_key = ? AND source = ?`, lookupKey, source)
		return false, nil
	}
	return true, nil
}
