// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// PDFArtifact is one stored PDF row.
type PDFArtifact struct {
	IdentifierKey string
	FilePath      string
	FileHash      string
	FileSize      int64
	Source        string
	DownloadedAt  time.Time
	AccessCount   int
}

// RecordPDF stores a downloaded PDF row. file_hash is unique across the
// table: when the hash already exists the new row points at the existing
// file and the returned dedup flag is true, so the caller discards its
// copy. Re-recording the same publication refreshes its row.
func (s *Store) RecordPDF(ctx context.Context, key, filePath, fileHash string, fileSize int64, source string) (dedup bool, existingPath string, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var ownerKey, ownerPath string
		row := tx.QueryRowContext(ctx,
			`SELECT identifier_key, file_path FROM cached_pdfs WHERE file_hash = ?`, fileHash)
		scanErr := row.Scan(&ownerKey, &ownerPath)
		switch {
		case scanErr == nil:
			// These bytes are already stored; file_hash is unique across
			// the table, so the caller points at the existing file and
			// discards its copy.
			dedup = true
			existingPath = ownerPath
			return nil
		case !errors.Is(scanErr, sql.ErrNoRows):
			return fmt.Errorf("checking hash %s: %w", fileHash, scanErr)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO cached_pdfs
				(identifier_key, file_path, file_hash, file_size, source, downloaded_at, access_count)
			VALUES (?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(identifier_key) DO UPDATE SET
				file_path = excluded.file_path,
				file_hash = excluded.file_hash,
				file_size = excluded.file_size,
				source = excluded.source,
				downloaded_at = excluded.downloaded_at`,
			key, filePath, fileHash, fileSize, source, now())
		if err != nil {
			return fmt.Errorf("recording pdf for %s: %w", key, err)
		}
		return nil
	})
	return dedup, existingPath, err
}

// GetPDF fetches the artifact row for a publication.
func (s *Store) GetPDF(ctx context.Context, key string) (PDFArtifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identifier_key, file_path, file_hash, file_size, source, downloaded_at, access_count
		FROM cached_pdfs WHERE identifier_key = ?`, key)

	var (
		a      PDFArtifact
		source sql.NullString
		at     string
	)
	err := row.Scan(&a.IdentifierKey, &a.FilePath, &a.FileHash, &a.FileSize, &source, &at, &a.AccessCount)
	if errors.Is(err, sql.ErrNoRows) {
		return PDFArtifact{}, ErrNotFound
	}
	if err != nil {
		return PDFArtifact{}, fmt.Errorf("reading pdf for %s: %w", key, err)
	}
	a.Source = source.String
	a.DownloadedAt, _ = time.Parse(time.RFC3339, at)
	return a, nil
}

// FindPDFByHash returns the artifact owning the given content hash.
func (s *Store) FindPDFByHash(ctx context.Context, fileHash string) (PDFArtifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identifier_key, file_path, file_hash, file_size, source, downloaded_at, access_count
		FROM cached_pdfs WHERE file_hash = ?`, fileHash)

	var (
		a      PDFArtifact
		source sql.NullString
		at     string
	)
	err := row.Scan(&a.IdentifierKey, &a.FilePath, &a.FileHash, &a.FileSize, &source, &at, &a.AccessCount)
	if errors.Is(err, sql.ErrNoRows) {
		return PDFArtifact{}, ErrNotFound
	}
	if err != nil {
		return PDFArtifact{}, fmt.Errorf("reading pdf hash %s: %w", fileHash, err)
	}
	a.Source = source.String
	a.DownloadedAt, _ = time.Parse(time.RFC3339, at)
	return a, nil
}

// TouchAccess bumps an artifact's access count and timestamp.
func (s *Store) TouchAccess(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cached_pdfs SET access_count = access_count + 1, last_accessed = ?
		WHERE identifier_key = ?`, now(), key)
	return err
}

// UpsertParsedContent records the extraction result for a publication's
// PDF. Rows are regenerated when the parser version changes.
func (s *Store) UpsertParsedContent(ctx context.Context, key string, pc types.ParsedContent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parsed_content
			(identifier_key, has_fulltext, has_tables, has_figures, word_count, table_count,
			 figure_count, section_count, quality_score, parser_version, content_path, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier_key) DO UPDATE SET
			has_fulltext = excluded.has_fulltext,
			has_tables = excluded.has_tables,
			has_figures = excluded.has_figures,
			word_count = excluded.word_count,
			table_count = excluded.table_count,
			figure_count = excluded.figure_count,
			section_count = excluded.section_count,
			quality_score = excluded.quality_score,
			parser_version = excluded.parser_version,
			content_path = excluded.content_path,
			parsed_at = excluded.parsed_at`,
		key, boolInt(pc.HasFulltext), boolInt(pc.HasTables), boolInt(pc.HasFigures),
		pc.WordCount, pc.TableCount, pc.FigureCount, pc.SectionCount,
		pc.QualityScore, pc.ParserVersion, pc.ContentPath, now())
	if err != nil {
		return fmt.Errorf("recording parsed content for %s: %w", key, err)
	}
	return nil
}

// GetParsedContent fetches the extraction record for a publication.
func (s *Store) GetParsedContent(ctx context.Context, key string) (types.ParsedContent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT has_fulltext, has_tables, has_figures, word_count, table_count,
		       figure_count, section_count, quality_score, parser_version, content_path
		FROM parsed_content WHERE identifier_key = ?`, key)

	var (
		pc                             types.ParsedContent
		hasFull, hasTables, hasFigures int
		parserVersion, contentPath     sql.NullString
	)
	err := row.Scan(&hasFull, &hasTables, &hasFigures, &pc.WordCount, &pc.TableCount,
		&pc.FigureCount, &pc.SectionCount, &pc.QualityScore, &parserVersion, &contentPath)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ParsedContent{}, ErrNotFound
	}
	if err != nil {
		return types.ParsedContent{}, fmt.Errorf("reading parsed content for %s: %w", key, err)
	}
	pc.HasFulltext = hasFull != 0
	pc.HasTables = hasTables != 0
	pc.HasFigures = hasFigures != 0
	pc.ParserVersion = parserVersion.String
	pc.ContentPath = contentPath.String
	return pc, nil
}
