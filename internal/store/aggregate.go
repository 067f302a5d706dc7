// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// CompleteGEOData assembles the full GEO-rooted record for a dataset:
// the dataset row, every linked publication joined with its PDF artifact,
// extraction record, and download history, plus corpus statistics. This
// is the warm-tier read behind the cache.
func (s *Store) CompleteGEOData(ctx context.Context, geoID string) (*types.GEOAggregate, error) {
	ds, err := s.GetDataset(ctx, geoID)
	if err != nil {
		return nil, err
	}

	agg := &types.GEOAggregate{GEO: ds, AssembledAt: time.Now().UTC()}

	agg.Original, err = s.paperRecords(ctx, geoID, types.RelOriginal)
	if err != nil {
		return nil, err
	}
	agg.Citing, err = s.paperRecords(ctx, geoID, types.RelCiting)
	if err != nil {
		return nil, err
	}

	agg.Statistics = computeStatistics(agg.Original, agg.Citing)
	return agg, nil
}

// paperRecords assembles the records for one relationship with one
// query per table over the linked key set, joined in memory.
func (s *Store) paperRecords(ctx context.Context, geoID string, rel types.Relationship) ([]types.PaperRecord, error) {
	keys, err := s.LinkedKeys(ctx, geoID, rel)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pubs, err := s.publicationsByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.pdfsByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	parsed, err := s.parsedContentByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	history, err := s.historyByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}

	records := make([]types.PaperRecord, 0, len(keys))
	for _, key := range keys {
		pub, ok := pubs[key]
		if !ok {
			// Dangling link; skip rather than fail the whole aggregate.
			continue
		}
		rec := types.PaperRecord{
			IdentifierKey:   key,
			Publication:     pub,
			Relationship:    rel,
			DownloadHistory: history[key],
		}
		if artifact, ok := artifacts[key]; ok {
			rec.PDFPath = artifact.FilePath
			rec.FileHash = artifact.FileHash
		} else if path := dedupedPath(rec.DownloadHistory); path != "" {
			// Content that hashed into another publication's file has no
			// artifact row of its own; the success attempt carries the
			// shared path, and the paper counts as downloaded.
			rec.PDFPath = path
		}
		if pc, ok := parsed[key]; ok {
			rec.Extraction = &pc
		}
		records = append(records, rec)
	}
	return records, nil
}

// dedupedPath returns the file path of the latest successful attempt,
// for publications whose bytes deduplicated into another's artifact.
func dedupedPath(history []types.DownloadAttempt) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Status == types.AttemptSuccess && history[i].FilePath != "" {
			return history[i].FilePath
		}
	}
	return ""
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func keyArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}

func (s *Store) publicationsByKeys(ctx context.Context, keys []string) (map[string]types.Publication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+publicationColumns+` FROM publications WHERE identifier_key IN (`+placeholders(len(keys))+`)`,
		keyArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("reading publications: %w", err)
	}
	defer rows.Close()

	pubs := make(map[string]types.Publication, len(keys))
	for rows.Next() {
		key, pub, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		pubs[key] = pub
	}
	return pubs, rows.Err()
}

func (s *Store) pdfsByKeys(ctx context.Context, keys []string) (map[string]PDFArtifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier_key, file_path, file_hash, file_size, source, downloaded_at, access_count
		FROM cached_pdfs WHERE identifier_key IN (`+placeholders(len(keys))+`)`,
		keyArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("reading pdfs: %w", err)
	}
	defer rows.Close()

	artifacts := make(map[string]PDFArtifact)
	for rows.Next() {
		var (
			a      PDFArtifact
			source sql.NullString
			at     string
		)
		if err := rows.Scan(&a.IdentifierKey, &a.FilePath, &a.FileHash, &a.FileSize, &source, &at, &a.AccessCount); err != nil {
			return nil, err
		}
		a.Source = source.String
		a.DownloadedAt, _ = time.Parse(time.RFC3339, at)
		artifacts[a.IdentifierKey] = a
	}
	return artifacts, rows.Err()
}

func (s *Store) parsedContentByKeys(ctx context.Context, keys []string) (map[string]types.ParsedContent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier_key, has_fulltext, has_tables, has_figures, word_count, table_count,
		       figure_count, section_count, quality_score, parser_version, content_path
		FROM parsed_content WHERE identifier_key IN (`+placeholders(len(keys))+`)`,
		keyArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("reading parsed content: %w", err)
	}
	defer rows.Close()

	parsed := make(map[string]types.ParsedContent)
	for rows.Next() {
		var (
			key                            string
			pc                             types.ParsedContent
			hasFull, hasTables, hasFigures int
			parserVersion, contentPath     sql.NullString
		)
		if err := rows.Scan(&key, &hasFull, &hasTables, &hasFigures, &pc.WordCount, &pc.TableCount,
			&pc.FigureCount, &pc.SectionCount, &pc.QualityScore, &parserVersion, &contentPath); err != nil {
			return nil, err
		}
		pc.HasFulltext = hasFull != 0
		pc.HasTables = hasTables != 0
		pc.HasFigures = hasFigures != 0
		pc.ParserVersion = parserVersion.String
		pc.ContentPath = contentPath.String
		parsed[key] = pc
	}
	return parsed, rows.Err()
}

func (s *Store) historyByKeys(ctx context.Context, keys []string) (map[string][]types.DownloadAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier_key, url, source, status, error_message, attempt_number, file_path, file_size, downloaded_at
		FROM download_history WHERE identifier_key IN (`+placeholders(len(keys))+`) ORDER BY id`,
		keyArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("reading download history: %w", err)
	}
	defer rows.Close()

	history := make(map[string][]types.DownloadAttempt)
	for rows.Next() {
		var (
			a                    types.DownloadAttempt
			source, errMsg, path sql.NullString
			size                 sql.NullInt64
			status, at           string
		)
		if err := rows.Scan(&a.IdentifierKey, &a.URL, &source, &status, &errMsg, &a.AttemptNumber, &path, &size, &at); err != nil {
			return nil, err
		}
		a.Source = source.String
		a.Status = types.AttemptStatus(status)
		a.Error = errMsg.String
		a.FilePath = path.String
		a.FileSize = size.Int64
		a.At, _ = time.Parse(time.RFC3339, at)
		history[a.IdentifierKey] = append(history[a.IdentifierKey], a)
	}
	return history, rows.Err()
}

func computeStatistics(original, citing []types.PaperRecord) types.AggregateStatistics {
	stats := types.AggregateStatistics{
		OriginalPapers: len(original),
		CitingPapers:   len(citing),
		TotalPapers:    len(original) + len(citing),
	}

	count := func(records []types.PaperRecord) {
		for _, r := range records {
			if r.PDFPath != "" {
				stats.SuccessfulDownloads++
			} else if attempted(r.DownloadHistory) {
				stats.FailedDownloads++
			}
			if r.Extraction != nil {
				stats.ExtractedPapers++
			}
		}
	}
	count(original)
	count(citing)

	if stats.TotalPapers > 0 {
		stats.SuccessRate = float64(stats.SuccessfulDownloads) / float64(stats.TotalPapers)
	}
	return stats
}

// attempted reports whether any history row represents a real try, so
// papers whose every URL was skipped do not count as failed downloads.
func attempted(history []types.DownloadAttempt) bool {
	for _, a := range history {
		if a.Status != types.AttemptSkipped {
			return true
		}
	}
	return false
}

// Stats summarizes the whole database for the stats subcommand.
type Stats struct {
	Datasets     int
	Publications int
	CachedPDFs   int
	TotalBytes   int64
	Extracted    int
}

// DatabaseStats counts rows across the main tables.
func (s *Store) DatabaseStats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error

	if st.Datasets, err = s.CountDatasets(ctx); err != nil {
		return Stats{}, err
	}
	if st.Publications, err = s.CountPublications(ctx); err != nil {
		return Stats{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM cached_pdfs`)
	if err := row.Scan(&st.CachedPDFs, &st.TotalBytes); err != nil {
		return Stats{}, fmt.Errorf("counting cached pdfs: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parsed_content`)
	if err := row.Scan(&st.Extracted); err != nil {
		return Stats{}, fmt.Errorf("counting parsed content: %w", err)
	}
	return st, nil
}
