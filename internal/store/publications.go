// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/omics-oracle/omics-oracle/internal/identifier"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// ErrNotFound is returned by point lookups with no matching row.
var ErrNotFound = errors.New("store: not found")

func jsonColumn(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UpsertPublication writes a publication under its canonical key. A second
// upsert of the same key is a no-op that fills previously empty columns
// and refreshes updated_at. Returns the identifier key.
func (s *Store) UpsertPublication(ctx context.Context, pub types.Publication) (string, error) {
	key, err := identifier.Key(pub)
	if err != nil {
		return "", fmt.Errorf("deriving identifier: %w", err)
	}

	ts := now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO publications
			(identifier_key, pmid, doi, pmc_id, arxiv_id, title, authors, journal, year, abstract, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier_key) DO UPDATE SET
			pmid = CASE WHEN publications.pmid IS NULL OR publications.pmid = '' THEN excluded.pmid ELSE publications.pmid END,
			doi = CASE WHEN publications.doi IS NULL OR publications.doi = '' THEN excluded.doi ELSE publications.doi END,
			pmc_id = CASE WHEN publications.pmc_id IS NULL OR publications.pmc_id = '' THEN excluded.pmc_id ELSE publications.pmc_id END,
			arxiv_id = CASE WHEN publications.arxiv_id IS NULL OR publications.arxiv_id = '' THEN excluded.arxiv_id ELSE publications.arxiv_id END,
			title = CASE WHEN publications.title IS NULL OR publications.title = '' THEN excluded.title ELSE publications.title END,
			authors = CASE WHEN publications.authors IS NULL OR publications.authors = '' THEN excluded.authors ELSE publications.authors END,
			journal = CASE WHEN publications.journal IS NULL OR publications.journal = '' THEN excluded.journal ELSE publications.journal END,
			year = CASE WHEN publications.year IS NULL OR publications.year = 0 THEN excluded.year ELSE publications.year END,
			abstract = CASE WHEN publications.abstract IS NULL OR publications.abstract = '' THEN excluded.abstract ELSE publications.abstract END,
			updated_at = excluded.updated_at`,
		key, pub.PMID, identifier.NormalizeDOI(pub.DOI), pub.PMCID, pub.ArxivID,
		pub.Title, jsonColumn(pub.Authors), pub.Journal, pub.Year, pub.Abstract,
		jsonColumn(pub.Metadata), ts, ts)
	if err != nil {
		return "", fmt.Errorf("upserting publication %s: %w", key, err)
	}
	return key, nil
}

func scanPublication(row interface{ Scan(...any) error }) (string, types.Publication, error) {
	var (
		key, pmid, doi, pmcID, arxivID          string
		title, authors, journal, abstract, meta sql.NullString
		year                                    sql.NullInt64
	)
	err := row.Scan(&key, &pmid, &doi, &pmcID, &arxivID, &title, &authors, &journal, &year, &abstract, &meta)
	if err != nil {
		return "", types.Publication{}, err
	}
	pub := types.Publication{
		PMID:     pmid,
		DOI:      doi,
		PMCID:    pmcID,
		ArxivID:  arxivID,
		Title:    title.String,
		Journal:  journal.String,
		Year:     int(year.Int64),
		Abstract: abstract.String,
	}
	if authors.String != "" {
		json.Unmarshal([]byte(authors.String), &pub.Authors)
	}
	if meta.String != "" {
		json.Unmarshal([]byte(meta.String), &pub.Metadata)
	}
	return key, pub, nil
}

const publicationColumns = `identifier_key, pmid, doi, pmc_id, arxiv_id, title, authors, journal, year, abstract, metadata`

// GetPublication fetches a publication by its canonical key.
func (s *Store) GetPublication(ctx context.Context, key string) (types.Publication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+publicationColumns+` FROM publications WHERE identifier_key = ?`, key)
	_, pub, err := scanPublication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Publication{}, ErrNotFound
	}
	if err != nil {
		return types.Publication{}, fmt.Errorf("reading publication %s: %w", key, err)
	}
	return pub, nil
}

// FindByPMID fetches a publication by PMID.
func (s *Store) FindByPMID(ctx context.Context, pmid string) (string, types.Publication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+publicationColumns+` FROM publications WHERE pmid = ?`, pmid)
	key, pub, err := scanPublication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.Publication{}, ErrNotFound
	}
	if err != nil {
		return "", types.Publication{}, fmt.Errorf("reading publication pmid=%s: %w", pmid, err)
	}
	return key, pub, nil
}

// FindByDOI fetches a publication by DOI.
func (s *Store) FindByDOI(ctx context.Context, doi string) (string, types.Publication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+publicationColumns+` FROM publications WHERE doi = ?`, identifier.NormalizeDOI(doi))
	key, pub, err := scanPublication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.Publication{}, ErrNotFound
	}
	if err != nil {
		return "", types.Publication{}, fmt.Errorf("reading publication doi=%s: %w", doi, err)
	}
	return key, pub, nil
}

// CountPublications returns the number of stored publications.
func (s *Store) CountPublications(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM publications`).Scan(&n)
	return n, err
}
