// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the omics-oracle pipeline:
// publications, GEO datasets, URL candidates, download outcomes, and the
// configuration tree threaded through component constructors.
package types

import "time"

// Publication is the single record type produced at the boundary of every
// external client. Optional identifiers are empty strings when absent; the
// canonical identifier is derived from them (see internal/identifier).
type Publication struct {
	// PMID is the PubMed identifier, digits only (e.g. "19753302").
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// DOI keeps its original slashes (e.g. "10.1371/journal.pone.0123456").
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// PMCID includes the PMC prefix (e.g. "PMC2718629").
	PMCID string `json:"pmc_id,omitempty" yaml:"pmc_id,omitempty"`

	// ArxivID is the bare arXiv identifier (e.g. "2301.07041").
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Journal is the publishing venue.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Year is the publication year, zero when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Source identifies which client produced this record
	// (e.g. "openalex", "pubmed", "europepmc").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Metadata carries arbitrary source-specific fields.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// HasIdentifier reports whether the publication carries at least one
// standard identifier.
func (p Publication) HasIdentifier() bool {
	return p.PMID != "" || p.DOI != "" || p.PMCID != "" || p.ArxivID != ""
}

// GEODataset is a Gene Expression Omnibus series record. Created on first
// discovery and updated on re-fetch, never deleted.
type GEODataset struct {
	// GEOID is the accession (e.g. "GSE12345").
	GEOID string `json:"geo_id" yaml:"geo_id"`

	Title    string `json:"title" yaml:"title"`
	Summary  string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Organism string `json:"organism,omitempty" yaml:"organism,omitempty"`
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`

	// SampleCount is the number of samples in the series, zero when unknown.
	SampleCount int `json:"sample_count,omitempty" yaml:"sample_count,omitempty"`

	// OriginalPMIDs lists the PMIDs of the paper(s) announcing the dataset.
	OriginalPMIDs []string `json:"original_pmids,omitempty" yaml:"original_pmids,omitempty"`

	// Metadata carries arbitrary source fields from the GDS summary.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Relationship tags a GEO-publication link.
type Relationship string

const (
	RelOriginal Relationship = "original"
	RelCiting   Relationship = "citing"
)

// URLType classifies a URL candidate by the payload it serves.
type URLType string

const (
	URLPDFDirect    URLType = "pdf_direct"
	URLHTMLFulltext URLType = "html_fulltext"
	URLLandingPage  URLType = "landing_page"
	URLDOIResolver  URLType = "doi_resolver"
	URLUnknown      URLType = "unknown"
)

// URLCandidate is one URL discovered for a publication by the full-text
// waterfall. Candidates are unique on (identifier key, URL).
type URLCandidate struct {
	URL string `json:"url" yaml:"url"`

	// Source names the waterfall source that produced the URL
	// (e.g. "pmc", "unpaywall", "core").
	Source string `json:"source" yaml:"source"`

	// Priority is the source's base priority; lower is tried earlier.
	Priority int `json:"priority" yaml:"priority"`

	// Type is the URL classification; set by ClassifyURL before sorting.
	Type URLType `json:"url_type" yaml:"url_type"`

	// Confidence in [0,1] that the URL will serve a usable PDF.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// RequiresAuth marks URLs behind an institutional proxy or paywall.
	RequiresAuth bool `json:"requires_auth,omitempty" yaml:"requires_auth,omitempty"`

	// Metadata carries arbitrary source fields (license, OA status, ...).
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// EffectivePriority is the base priority plus the url-type adjustment.
// Direct PDFs move up, landing pages and resolvers move down.
func (c URLCandidate) EffectivePriority() int {
	switch c.Type {
	case URLPDFDirect:
		return c.Priority - 2
	case URLLandingPage:
		return c.Priority + 2
	case URLDOIResolver:
		return c.Priority + 3
	default:
		return c.Priority
	}
}

// AttemptStatus records the outcome of one download attempt.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
	AttemptRetry   AttemptStatus = "retry"
	AttemptSkipped AttemptStatus = "skipped"
)

// DownloadAttempt is one row of download history: a single try of a single
// URL for a publication.
type DownloadAttempt struct {
	IdentifierKey string        `json:"identifier_key" yaml:"identifier_key"`
	URL           string        `json:"url" yaml:"url"`
	Source        string        `json:"source" yaml:"source"`
	Status        AttemptStatus `json:"status" yaml:"status"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	AttemptNumber int           `json:"attempt_number" yaml:"attempt_number"`
	FilePath      string        `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	FileSize      int64         `json:"file_size,omitempty" yaml:"file_size,omitempty"`
	At            time.Time     `json:"at" yaml:"at"`
}

// DownloadResult is the outcome of walking a publication's URL waterfall.
type DownloadResult struct {
	Success bool `json:"success" yaml:"success"`

	// FilePath is the stored PDF location on success.
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`

	// FileHash is the SHA-256 of the stored bytes on success.
	FileHash string `json:"file_hash,omitempty" yaml:"file_hash,omitempty"`

	// FileSize is the stored size in bytes on success.
	FileSize int64 `json:"file_size,omitempty" yaml:"file_size,omitempty"`

	// Source names the waterfall source that served the PDF.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Deduplicated is true when the bytes matched an existing artifact and
	// no second file was written.
	Deduplicated bool `json:"deduplicated,omitempty" yaml:"deduplicated,omitempty"`

	// Attempts lists every try in order, including retries and failures.
	Attempts []DownloadAttempt `json:"attempts" yaml:"attempts"`
}

// ParsedContent summarizes the structured extraction of one PDF.
type ParsedContent struct {
	HasFulltext   bool    `json:"has_fulltext" yaml:"has_fulltext"`
	HasTables     bool    `json:"has_tables" yaml:"has_tables"`
	HasFigures    bool    `json:"has_figures" yaml:"has_figures"`
	WordCount     int     `json:"word_count" yaml:"word_count"`
	TableCount    int     `json:"table_count" yaml:"table_count"`
	FigureCount   int     `json:"figure_count" yaml:"figure_count"`
	SectionCount  int     `json:"section_count" yaml:"section_count"`
	QualityScore  float64 `json:"quality_score" yaml:"quality_score"`
	ParserVersion string  `json:"parser_version" yaml:"parser_version"`

	// ContentPath points at the parsed JSON on disk.
	ContentPath string `json:"content_path,omitempty" yaml:"content_path,omitempty"`
}
