// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "omics-oracle/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ClientConfig holds per-source client settings.
type ClientConfig struct {
	// APIKey is the source API key, when the source supports one.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Email is sent to polite-pool sources (OpenAlex mailto, Unpaywall,
	// Crossref).
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// RateLimitRPS overrides the source's default requests-per-second
	// budget. Zero keeps the default.
	RateLimitRPS float64 `json:"rate_limit_rps,omitempty" yaml:"rate_limit_rps,omitempty" mapstructure:"rate_limit_rps"`

	// TimeoutSeconds overrides the global HTTP timeout for this source.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`

	// Retries is the total attempt count for transient failures (default 3).
	Retries int `json:"retries,omitempty" yaml:"retries,omitempty" mapstructure:"retries"`
}

// ClientsConfig groups per-source settings keyed the way the sources are
// named in logs and download history.
type ClientsConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	NCBI            ClientConfig `json:"ncbi" yaml:"ncbi" mapstructure:"ncbi"`
	OpenAlex        ClientConfig `json:"openalex" yaml:"openalex" mapstructure:"openalex"`
	SemanticScholar ClientConfig `json:"semantic_scholar" yaml:"semantic_scholar" mapstructure:"semantic_scholar"`
	EuropePMC       ClientConfig `json:"europepmc" yaml:"europepmc" mapstructure:"europepmc"`
	Unpaywall       ClientConfig `json:"unpaywall" yaml:"unpaywall" mapstructure:"unpaywall"`
	CORE            ClientConfig `json:"core" yaml:"core" mapstructure:"core"`
	Biorxiv         ClientConfig `json:"biorxiv" yaml:"biorxiv" mapstructure:"biorxiv"`
	Arxiv           ClientConfig `json:"arxiv" yaml:"arxiv" mapstructure:"arxiv"`
	Crossref        ClientConfig `json:"crossref" yaml:"crossref" mapstructure:"crossref"`

	// ProxyURL enables the institutional proxy source when set. Proxied
	// URLs are marked requires_auth.
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty" mapstructure:"proxy_url"`
}

// HotCacheConfig selects and sizes the hot cache tier.
type HotCacheConfig struct {
	// Backend is "redis" or "memory" (default "memory").
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// URL is the redis connection URL (e.g. "redis://localhost:6379/0").
	URL string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`

	// TTLSeconds is the hot-tier entry lifetime (default 7 days).
	TTLSeconds int `json:"ttl_seconds" yaml:"ttl_seconds" mapstructure:"ttl_seconds"`

	// MaxEntries bounds the in-memory fallback (default 1000).
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`
}

// ValidationConfig bounds accepted PDF sizes.
type ValidationConfig struct {
	// MinSize is the minimum accepted PDF size in bytes (default 10 KiB).
	MinSize int64 `json:"min_size" yaml:"min_size" mapstructure:"min_size"`

	// MaxSize is the maximum accepted PDF size in bytes (default 200 MiB).
	MaxSize int64 `json:"max_size" yaml:"max_size" mapstructure:"max_size"`
}

// DownloadConfig holds settings for the PDF downloader.
type DownloadConfig struct {
	// Concurrency bounds how many publications download in parallel
	// (default 4). One publication's candidates are always sequential.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// PerURLRetries is the number of extra attempts per URL on transient
	// failure (default 2).
	PerURLRetries int `json:"per_url_retries" yaml:"per_url_retries" mapstructure:"per_url_retries"`

	// RetryDelay seeds the linear backoff between attempts (default 1s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`

	Validation ValidationConfig `json:"validation" yaml:"validation" mapstructure:"validation"`
}

// CitationDiscoveryConfig holds settings for the citation-discovery engine.
type CitationDiscoveryConfig struct {
	// StrategyTimeout bounds the whole fan-out; sources still outstanding
	// when it fires are marked timeout (default 10s).
	StrategyTimeout time.Duration `json:"strategy_timeout" yaml:"strategy_timeout" mapstructure:"strategy_timeout"`

	// CacheTTL is the citation-discovery cache lifetime (default 7 days).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`

	// MaxResults caps the merged citing-paper list (default 100).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// SearchConfig holds settings for the top-level orchestrator.
type SearchConfig struct {
	// Deadline bounds one top-level search (default 30s).
	Deadline time.Duration `json:"deadline" yaml:"deadline" mapstructure:"deadline"`

	// ResultTTL bounds how long a SearchResult stays in the hot cache
	// (default 1h, never more).
	ResultTTL time.Duration `json:"result_ttl" yaml:"result_ttl" mapstructure:"result_ttl"`

	MaxGEOResults         int `json:"max_geo_results" yaml:"max_geo_results" mapstructure:"max_geo_results"`
	MaxPublicationResults int `json:"max_publication_results" yaml:"max_publication_results" mapstructure:"max_publication_results"`
}

// Config is the root configuration, loaded once at process start and
// threaded through component constructors. There are no hidden globals.
type Config struct {
	// DBPath is the SQLite database location (default "omics/oracle.db").
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// StoreRoot is the base directory for PDFs and parsed content,
	// laid out as {store_root}/{geo_id}/{original|citing}/{filename}.
	StoreRoot string `json:"store_root" yaml:"store_root" mapstructure:"store_root"`

	HotCache          HotCacheConfig          `json:"hot_cache" yaml:"hot_cache" mapstructure:"hot_cache"`
	Clients           ClientsConfig           `json:"clients" yaml:"clients" mapstructure:"clients"`
	Download          DownloadConfig          `json:"download" yaml:"download" mapstructure:"download"`
	CitationDiscovery CitationDiscoveryConfig `json:"citation_discovery" yaml:"citation_discovery" mapstructure:"citation_discovery"`
	Search            SearchConfig            `json:"search" yaml:"search" mapstructure:"search"`

	// SciHubEnabled and LibgenEnabled gate sources this build does not
	// ship clients for; they are recognized so configs round-trip.
	SciHubEnabled bool `json:"scihub_enabled" yaml:"scihub_enabled" mapstructure:"scihub_enabled"`
	LibgenEnabled bool `json:"libgen_enabled" yaml:"libgen_enabled" mapstructure:"libgen_enabled"`
}

// Default returns a Config with every knob at its documented default.
func Default() Config {
	return Config{
		DBPath:    "omics/oracle.db",
		StoreRoot: "omics/pdfs",
		HotCache: HotCacheConfig{
			Backend:    "memory",
			TTLSeconds: int((7 * 24 * time.Hour).Seconds()),
			MaxEntries: 1000,
		},
		Clients: ClientsConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "omics-oracle/0.1",
			},
		},
		Download: DownloadConfig{
			Concurrency:   4,
			PerURLRetries: 2,
			RetryDelay:    time.Second,
			Validation: ValidationConfig{
				MinSize: 10 * 1024,
				MaxSize: 200 * 1024 * 1024,
			},
		},
		CitationDiscovery: CitationDiscoveryConfig{
			StrategyTimeout: 10 * time.Second,
			CacheTTL:        7 * 24 * time.Hour,
			MaxResults:      100,
		},
		Search: SearchConfig{
			Deadline:              30 * time.Second,
			ResultTTL:             time.Hour,
			MaxGEOResults:         10,
			MaxPublicationResults: 20,
		},
	}
}
