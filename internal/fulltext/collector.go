// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext turns a publication into a stored, validated PDF: it
// collects candidate URLs from every open-access source that applies,
// classifies and orders them into a waterfall, and walks the waterfall
// with retries until one candidate yields a real PDF.
package fulltext

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/omics-oracle/omics-oracle/internal/identifier"
	"github.com/omics-oracle/omics-oracle/internal/sources"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// NegativeCache suppresses lookups that a source already answered
// not-found. A nil cache disables suppression.
type NegativeCache interface {
	IsNegative(ctx context.Context, lookupKey, source string) (bool, error)
	PutNegative(ctx context.Context, lookupKey, source string, ttl time.Duration) error
}

// negativeTTL is how long a not-found answer suppresses repeat lookups.
const negativeTTL = 24 * time.Hour

// Base source priorities; lower is tried earlier. The url-type
// adjustment in types.URLCandidate shifts these per candidate.
var sourcePriority = map[string]int{
	"proxy":     1,
	"pmc":       2,
	"unpaywall": 3,
	"biorxiv":   4,
	"arxiv":     4,
	"openalex":  5,
	"core":      6,
	"crossref":  7,
}

const defaultPriority = 8

// Collector queries all URL sources for a publication. Clients left nil
// are skipped.
type Collector struct {
	pmc       *sources.PMCClient
	unpaywall *sources.UnpaywallClient
	openalex  *sources.OpenAlexClient
	core      *sources.COREClient
	biorxiv   *sources.BiorxivClient
	arxiv     *sources.ArxivClient
	crossref  *sources.CrossrefClient
	europepmc *sources.EuropePMCClient
	proxy     *sources.ProxyRewriter
	negatives NegativeCache
	logger    *slog.Logger
}

// NewCollector wires the URL waterfall sources.
func NewCollector(
	pmc *sources.PMCClient,
	unpaywall *sources.UnpaywallClient,
	openalex *sources.OpenAlexClient,
	core *sources.COREClient,
	biorxiv *sources.BiorxivClient,
	arxiv *sources.ArxivClient,
	crossref *sources.CrossrefClient,
	europepmc *sources.EuropePMCClient,
	proxy *sources.ProxyRewriter,
	logger *slog.Logger,
) *Collector {
	return &Collector{
		pmc:       pmc,
		unpaywall: unpaywall,
		openalex:  openalex,
		core:      core,
		biorxiv:   biorxiv,
		arxiv:     arxiv,
		crossref:  crossref,
		europepmc: europepmc,
		proxy:     proxy,
		logger:    logger,
	}
}

// SetNegativeCache installs the store-backed negative cache so sources
// that answered not-found are not asked again until the entry expires.
func (c *Collector) SetNegativeCache(n NegativeCache) { c.negatives = n }

// CollectURLs queries every source that applies to the publication's
// identifiers concurrently and returns the merged candidate list sorted
// into attempt order. Per-source failures are soft: a failed source
// simply contributes nothing.
func (c *Collector) CollectURLs(ctx context.Context, pub types.Publication) []types.URLCandidate {
	type sourceHit struct {
		name       string
		candidates []types.URLCandidate
		err        error
	}

	lookupKey, _ := identifier.Key(pub)

	var jobs []func(context.Context) sourceHit
	add := func(name string, run func(context.Context) ([]types.URLCandidate, error)) {
		jobs = append(jobs, func(ctx context.Context) sourceHit {
			if c.suppressed(ctx, lookupKey, name) {
				return sourceHit{name: name}
			}
			cands, err := run(ctx)
			if err != nil && sources.IsNotFound(err) {
				c.recordNegative(ctx, lookupKey, name)
			}
			return sourceHit{name: name, candidates: cands, err: err}
		})
	}

	if c.pmc != nil && (pub.PMID != "" || pub.PMCID != "" || pub.DOI != "") {
		add("pmc", func(ctx context.Context) ([]types.URLCandidate, error) {
			return c.pmc.URLCandidates(ctx, pub)
		})
	}
	if c.unpaywall != nil && c.unpaywall.Enabled() && pub.DOI != "" {
		add("unpaywall", func(ctx context.Context) ([]types.URLCandidate, error) {
			return c.unpaywall.URLCandidates(ctx, pub.DOI)
		})
	}
	if c.openalex != nil && pub.DOI != "" {
		add("openalex", func(ctx context.Context) ([]types.URLCandidate, error) {
			work, err := c.openalex.GetWork(ctx, pub.DOI)
			if err != nil {
				return nil, err
			}
			var cands []types.URLCandidate
			if work.PDFURL != "" {
				cands = append(cands, types.URLCandidate{
					URL: work.PDFURL, Source: "openalex", Confidence: 0.8,
				})
			}
			if work.LandingURL != "" {
				cands = append(cands, types.URLCandidate{
					URL: work.LandingURL, Source: "openalex", Confidence: 0.4,
				})
			}
			return cands, nil
		})
	}
	if c.core != nil && (pub.DOI != "" || pub.Title != "") {
		add("core", func(ctx context.Context) ([]types.URLCandidate, error) {
			return c.core.Search(ctx, pub)
		})
	}
	if c.biorxiv != nil && pub.DOI != "" {
		add("biorxiv", func(ctx context.Context) ([]types.URLCandidate, error) {
			return c.biorxiv.Lookup(ctx, pub.DOI)
		})
	}
	if c.arxiv != nil && pub.ArxivID != "" {
		add("arxiv", func(_ context.Context) ([]types.URLCandidate, error) {
			return c.arxiv.Lookup(pub.ArxivID), nil
		})
	}
	if c.crossref != nil && pub.DOI != "" {
		add("crossref", func(ctx context.Context) ([]types.URLCandidate, error) {
			_, cands, err := c.crossref.Lookup(ctx, pub.DOI)
			return cands, err
		})
	}
	if c.europepmc != nil && (pub.PMID != "" || pub.PMCID != "" || pub.DOI != "") {
		add("europepmc", func(ctx context.Context) ([]types.URLCandidate, error) {
			return c.europepmc.GetFullTextURLs(ctx, pub)
		})
	}

	ch := make(chan sourceHit, len(jobs))
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job func(context.Context) sourceHit) {
			defer wg.Done()
			ch <- job(ctx)
		}(job)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()

	var merged []types.URLCandidate
	for hit := range ch {
		if hit.err != nil {
			if !sources.IsNotFound(hit.err) {
				c.logger.Debug("url source failed", "source", hit.name, "error", hit.err)
			}
			continue
		}
		merged = append(merged, hit.candidates...)
	}

	// The proxy rewrites the DOI resolver URL. It carries the top base
	// priority but classifies as doi_resolver, so type grouping still
	// tries direct PDFs first.
	if c.proxy != nil && c.proxy.Enabled() && pub.DOI != "" {
		merged = append(merged, c.proxy.Rewrite("https://doi.org/"+pub.DOI))
	}

	seen := make(map[string]bool, len(merged))
	deduped := merged[:0]
	for _, cand := range merged {
		if cand.URL == "" || seen[cand.URL] {
			continue
		}
		seen[cand.URL] = true
		if cand.Priority == 0 {
			cand.Priority = basePriority(cand.Source)
		}
		deduped = append(deduped, cand)
	}
	return SortCandidates(deduped)
}

func (c *Collector) suppressed(ctx context.Context, key, source string) bool {
	if c.negatives == nil || key == "" {
		return false
	}
	neg, err := c.negatives.IsNegative(ctx, key, source)
	return err == nil && neg
}

func (c *Collector) recordNegative(ctx context.Context, key, source string) {
	if c.negatives == nil || key == "" {
		return
	}
	if err := c.negatives.PutNegative(ctx, key, source, negativeTTL); err != nil {
		c.logger.Warn("recording negative entry failed", "key", key, "source", source, "error", err)
	}
}

func basePriority(source string) int {
	if p, ok := sourcePriority[source]; ok {
		return p
	}
	return defaultPriority
}
