// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the GEO-rooted data model in a single SQLite
// database: datasets, publications, their links, URL candidates, PDF
// artifacts, extraction records, download history, the citation-discovery
// cache, and AI analyses. The store is the durable source of truth; the
// hot cache above it is never authoritative.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the unified SQLite database. One Store owns one
// connection pool; multi-statement writes run in a transaction.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath and ensures the schema
// exists.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS publications (
			identifier_key TEXT PRIMARY KEY,
			pmid TEXT,
			doi TEXT,
			pmc_id TEXT,
			arxiv_id TEXT,
			title TEXT,
			authors TEXT,
			journal TEXT,
			year INTEGER,
			abstract TEXT,
			metadata TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_pmid ON publications(pmid)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_doi ON publications(doi)`,
		`CREATE TABLE IF NOT EXISTS geo_datasets (
			geo_id TEXT PRIMARY KEY,
			title TEXT,
			summary TEXT,
			organism TEXT,
			platform TEXT,
			sample_count INTEGER,
			original_pmids TEXT,
			metadata TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS geo_publications (
			geo_id TEXT NOT NULL REFERENCES geo_datasets(geo_id),
			identifier_key TEXT NOT NULL REFERENCES publications(identifier_key),
			relationship TEXT NOT NULL,
			strategy TEXT,
			discovered_at TEXT NOT NULL,
			UNIQUE(geo_id, identifier_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_geo_publications_geo ON geo_publications(geo_id)`,
		`CREATE INDEX IF NOT EXISTS idx_geo_publications_key ON geo_publications(identifier_key)`,
		`CREATE TABLE IF NOT EXISTS publication_urls (
			identifier_key TEXT NOT NULL REFERENCES publications(identifier_key),
			url TEXT NOT NULL,
			url_type TEXT NOT NULL,
			source TEXT NOT NULL,
			priority INTEGER NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			requires_auth INTEGER NOT NULL DEFAULT 0,
			metadata TEXT,
			discovered_at TEXT NOT NULL,
			UNIQUE(identifier_key, url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publication_urls_key ON publication_urls(identifier_key)`,
		`CREATE INDEX IF NOT EXISTS idx_publication_urls_type ON publication_urls(url_type)`,
		`CREATE TABLE IF NOT EXISTS cached_pdfs (
			identifier_key TEXT PRIMARY KEY REFERENCES publications(identifier_key),
			file_path TEXT NOT NULL,
			file_hash TEXT NOT NULL UNIQUE,
			file_size INTEGER NOT NULL,
			source TEXT,
			downloaded_at TEXT NOT NULL,
			last_accessed TEXT,
			access_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cached_pdfs_hash ON cached_pdfs(file_hash)`,
		`CREATE TABLE IF NOT EXISTS parsed_content (
			identifier_key TEXT PRIMARY KEY REFERENCES publications(identifier_key),
			has_fulltext INTEGER NOT NULL DEFAULT 0,
			has_tables INTEGER NOT NULL DEFAULT 0,
			has_figures INTEGER NOT NULL DEFAULT 0,
			word_count INTEGER NOT NULL DEFAULT 0,
			table_count INTEGER NOT NULL DEFAULT 0,
			figure_count INTEGER NOT NULL DEFAULT 0,
			section_count INTEGER NOT NULL DEFAULT 0,
			quality_score REAL NOT NULL DEFAULT 0,
			parser_version TEXT,
			content_path TEXT,
			parsed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS download_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier_key TEXT NOT NULL,
			url TEXT NOT NULL,
			source TEXT,
			status TEXT NOT NULL,
			error_message TEXT,
			attempt_number INTEGER NOT NULL DEFAULT 1,
			file_path TEXT,
			file_size INTEGER,
			downloaded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_download_history_key ON download_history(identifier_key)`,
		`CREATE TABLE IF NOT EXISTS citation_discovery_cache (
			cache_key TEXT PRIMARY KEY,
			geo_id TEXT NOT NULL,
			strategy TEXT NOT NULL,
			result_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			hit_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS negative_cache (
			lookup_key TEXT NOT NULL,
			source TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			UNIQUE(lookup_key, source)
		)`,
		`CREATE TABLE IF NOT EXISTS ai_analysis (
			identifier_key TEXT NOT NULL REFERENCES publications(identifier_key),
			analysis_type TEXT NOT NULL,
			prompt_hash TEXT NOT NULL,
			response TEXT NOT NULL,
			model TEXT,
			tokens INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			UNIQUE(identifier_key, analysis_type, prompt_hash)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
