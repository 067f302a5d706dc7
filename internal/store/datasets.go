// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// UpsertDataset writes a GEO dataset. Re-fetches refresh every column and
// updated_at; datasets are never deleted.
func (s *Store) UpsertDataset(ctx context.Context, ds types.GEODataset) error {
	if ds.GEOID == "" {
		return fmt.Errorf("dataset has no accession")
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geo_datasets
			(geo_id, title, summary, organism, platform, sample_count, original_pmids, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(geo_id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			organism = excluded.organism,
			platform = excluded.platform,
			sample_count = excluded.sample_count,
			original_pmids = excluded.original_pmids,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		ds.GEOID, ds.Title, ds.Summary, ds.Organism, ds.Platform, ds.SampleCount,
		jsonColumn(ds.OriginalPMIDs), jsonColumn(ds.Metadata), ts, ts)
	if err != nil {
		return fmt.Errorf("upserting dataset %s: %w", ds.GEOID, err)
	}
	return nil
}

// GetDataset fetches a GEO dataset by accession.
func (s *Store) GetDataset(ctx context.Context, geoID string) (types.GEODataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT geo_id, title, summary, organism, platform, sample_count, original_pmids, metadata
		FROM geo_datasets WHERE geo_id = ?`, geoID)

	var (
		ds                          types.GEODataset
		title, summary, organism    sql.NullString
		platform, pmids, meta       sql.NullString
		sampleCount                 sql.NullInt64
	)
	err := row.Scan(&ds.GEOID, &title, &summary, &organism, &platform, &sampleCount, &pmids, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return types.GEODataset{}, ErrNotFound
	}
	if err != nil {
		return types.GEODataset{}, fmt.Errorf("reading dataset %s: %w", geoID, err)
	}
	ds.Title = title.String
	ds.Summary = summary.String
	ds.Organism = organism.String
	ds.Platform = platform.String
	ds.SampleCount = int(sampleCount.Int64)
	if pmids.String != "" {
		json.Unmarshal([]byte(pmids.String), &ds.OriginalPMIDs)
	}
	if meta.String != "" {
		json.Unmarshal([]byte(meta.String), &ds.Metadata)
	}
	return ds, nil
}

// LinkPublication relates a dataset to a publication with a relationship
// tag. Idempotent on (geo_id, identifier_key); re-linking keeps the first
// relationship.
func (s *Store) LinkPublication(ctx context.Context, geoID, key string, rel types.Relationship, strategy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geo_publications (geo_id, identifier_key, relationship, strategy, discovered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(geo_id, identifier_key) DO NOTHING`,
		geoID, key, string(rel), strategy, now())
	if err != nil {
		return fmt.Errorf("linking %s to %s: %w", key, geoID, err)
	}
	return nil
}

// LinkedKeys returns the identifier keys linked to a dataset, optionally
// filtered by relationship ("" for all).
func (s *Store) LinkedKeys(ctx context.Context, geoID string, rel types.Relationship) ([]string, error) {
	q := `SELECT identifier_key FROM geo_publications WHERE geo_id = ?`
	args := []any{geoID}
	if rel != "" {
		q += ` AND relationship = ?`
		args = append(args, string(rel))
	}
	q += ` ORDER BY discovered_at, identifier_key`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("reading links for %s: %w", geoID, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CountDatasets returns the number of stored GEO datasets.
func (s *Store) CountDatasets(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM geo_datasets`).Scan(&n)
	return n, err
}
