// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// AddURLs persists URL candidates for a publication. Append-only and
// idempotent: a duplicate (identifier_key, url) pair is a no-op, so
// repeated collection runs converge to the set union.
func (s *Store) AddURLs(ctx context.Context, key string, candidates []types.URLCandidate) error {
	if len(candidates) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO publication_urls
				(identifier_key, url, url_type, source, priority, confidence, requires_auth, metadata, discovered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(identifier_key, url) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("preparing url insert: %w", err)
		}
		defer stmt.Close()

		ts := now()
		for _, c := range candidates {
			urlType := c.Type
			if urlType == "" {
				urlType = types.URLUnknown
			}
			if _, err := stmt.ExecContext(ctx, key, c.URL, string(urlType), c.Source,
				c.Priority, c.Confidence, boolInt(c.RequiresAuth), jsonColumn(c.Metadata), ts); err != nil {
				return fmt.Errorf("inserting url %s: %w", c.URL, err)
			}
		}
		return nil
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// URLsFor returns the stored candidates for a publication, in discovery
// order.
func (s *Store) URLsFor(ctx context.Context, key string) ([]types.URLCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, url_type, source, priority, confidence, requires_auth, metadata
		FROM publication_urls WHERE identifier_key = ?
		ORDER BY discovered_at, url`, key)
	if err != nil {
		return nil, fmt.Errorf("reading urls for %s: %w", key, err)
	}
	defer rows.Close()

	var out []types.URLCandidate
	for rows.Next() {
		var (
			c            types.URLCandidate
			urlType      string
			requiresAuth int
			meta         sql.NullString
		)
		if err := rows.Scan(&c.URL, &urlType, &c.Source, &c.Priority, &c.Confidence, &requiresAuth, &meta); err != nil {
			return nil, err
		}
		c.Type = types.URLType(urlType)
		c.RequiresAuth = requiresAuth != 0
		if meta.String != "" {
			json.Unmarshal([]byte(meta.String), &c.Metadata)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
