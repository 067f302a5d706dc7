// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperRecord is one publication as it appears inside a GEO aggregate,
// joined with its download and extraction state.
type PaperRecord struct {
	IdentifierKey string       `json:"identifier_key" yaml:"identifier_key"`
	Publication   Publication  `json:"publication" yaml:"publication"`
	Relationship  Relationship `json:"relationship" yaml:"relationship"`

	// PDFPath is set when a validated PDF has been stored.
	PDFPath  string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
	FileHash string `json:"file_hash,omitempty" yaml:"file_hash,omitempty"`

	// Extraction is non-nil when parsed content exists for the PDF.
	Extraction *ParsedContent `json:"extraction,omitempty" yaml:"extraction,omitempty"`

	// DownloadHistory lists recorded attempts, oldest first.
	DownloadHistory []DownloadAttempt `json:"download_history,omitempty" yaml:"download_history,omitempty"`
}

// AggregateStatistics summarizes an aggregate's publication corpus.
type AggregateStatistics struct {
	OriginalPapers      int     `json:"original_papers" yaml:"original_papers"`
	CitingPapers        int     `json:"citing_papers" yaml:"citing_papers"`
	TotalPapers         int     `json:"total_papers" yaml:"total_papers"`
	SuccessfulDownloads int     `json:"successful_downloads" yaml:"successful_downloads"`
	FailedDownloads     int     `json:"failed_downloads" yaml:"failed_downloads"`
	ExtractedPapers     int     `json:"extracted_papers" yaml:"extracted_papers"`
	SuccessRate         float64 `json:"success_rate" yaml:"success_rate"`
}

// GEOAggregate is the complete GEO-rooted record served by the cache: the
// dataset, its original and citing papers, and corpus statistics. This is
// the value promoted between cache tiers.
type GEOAggregate struct {
	GEO         GEODataset          `json:"geo" yaml:"geo"`
	Original    []PaperRecord       `json:"original" yaml:"original"`
	Citing      []PaperRecord       `json:"citing" yaml:"citing"`
	Statistics  AggregateStatistics `json:"statistics" yaml:"statistics"`
	AssembledAt time.Time           `json:"assembled_at" yaml:"assembled_at"`
}

// SourceStatus records how one external source fared during a fan-out.
type SourceStatus struct {
	// Status is one of "ok", "failed", "timeout", "skipped".
	Status string `json:"status" yaml:"status"`

	// Papers is the number of publications the source contributed.
	Papers int `json:"papers,omitempty" yaml:"papers,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SearchError is one entry of a SearchResult's errors field.
type SearchError struct {
	Source   string `json:"source" yaml:"source"`
	Category string `json:"category" yaml:"category"`
	Message  string `json:"message" yaml:"message"`
}

// RankedDataset is one dataset in a SearchResult, with its relevance score
// and, when enrichment succeeded, the full aggregate.
type RankedDataset struct {
	GEOID     string        `json:"geo_id" yaml:"geo_id"`
	Title     string        `json:"title" yaml:"title"`
	Score     float64       `json:"score" yaml:"score"`
	Aggregate *GEOAggregate `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
}

// SearchResult is the structured response of a top-level search. It can
// represent partial success: failed branches appear in Errors while the
// surviving branches still contribute datasets and publications.
type SearchResult struct {
	Query        string          `json:"query" yaml:"query"`
	Datasets     []RankedDataset `json:"datasets" yaml:"datasets"`
	Publications []Publication   `json:"publications,omitempty" yaml:"publications,omitempty"`
	Errors       []SearchError   `json:"errors,omitempty" yaml:"errors,omitempty"`
	FromCache    bool            `json:"from_cache,omitempty" yaml:"from_cache,omitempty"`
	Elapsed      time.Duration   `json:"elapsed" yaml:"elapsed"`
}
