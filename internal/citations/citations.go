// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citations discovers the papers related to a GEO dataset: the
// original publication(s) announcing it and everything citing them. Four
// citation sources and a dataset-mention search run concurrently under a
// bounded timeout; per-source failures are soft.
package citations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/omics-oracle/omics-oracle/internal/identifier"
	"github.com/omics-oracle/omics-oracle/internal/sources"
	"github.com/omics-oracle/omics-oracle/internal/store"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// Source names as they appear in Result.SourcesUsed, in dedup-preference
// order. When two sources return the same paper, the earlier one wins.
const (
	SourceOpenAlex        = "openalex"
	SourceSemanticScholar = "semantic_scholar"
	SourceEuropePMC       = "europepmc"
	SourcePubMed          = "pubmed"
	SourceMentionSearch   = "pubmed_mention"
)

var sourceOrder = []string{
	SourceOpenAlex, SourceSemanticScholar, SourceEuropePMC, SourcePubMed, SourceMentionSearch,
}

// negativeTTL is how long a not-found answer for a PMID suppresses
// repeat lookups against the same source.
const negativeTTL = 24 * time.Hour

// Result is the outcome of one discovery run.
type Result struct {
	GEOID       string                        `json:"geo_id"`
	Original    []types.Publication           `json:"original"`
	Citing      []types.Publication           `json:"citing"`
	SourcesUsed map[string]types.SourceStatus `json:"sources_used"`
	FromCache   bool                          `json:"from_cache,omitempty"`
}

// Engine runs citation discovery against the configured sources and
// caches results in the store.
type Engine struct {
	eutils    *sources.EUtilsClient
	openalex  *sources.OpenAlexClient
	semantic  *sources.SemanticScholarClient
	europepmc *sources.EuropePMCClient
	store     *store.Store
	cfg       types.CitationDiscoveryConfig
	logger    *slog.Logger
}

// NewEngine wires the discovery engine. Any client may be nil, in which
// case its source is reported as skipped.
func NewEngine(
	eutils *sources.EUtilsClient,
	openalex *sources.OpenAlexClient,
	semantic *sources.SemanticScholarClient,
	europepmc *sources.EuropePMCClient,
	st *store.Store,
	cfg types.CitationDiscoveryConfig,
	logger *slog.Logger,
) *Engine {
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 7 * 24 * time.Hour
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	return &Engine{
		eutils:    eutils,
		openalex:  openalex,
		semantic:  semantic,
		europepmc: europepmc,
		store:     st,
		cfg:       cfg,
		logger:    logger,
	}
}

type sourceResult struct {
	name string
	pubs []types.Publication
	err  error
}

// FindCitingPapers returns the original and citing papers for a dataset,
// deduplicated by canonical identifier. maxResults caps the citing list;
// zero means the caller wants no citations and nothing is fetched or
// cached. Results for stable upstream responses are deterministic.
func (e *Engine) FindCitingPapers(ctx context.Context, geo types.GEODataset, maxResults int) (Result, error) {
	result := Result{GEOID: geo.GEOID, SourcesUsed: map[string]types.SourceStatus{}}
	if maxResults == 0 {
		return result, nil
	}
	if maxResults < 0 || maxResults > e.cfg.MaxResults {
		maxResults = e.cfg.MaxResults
	}

	if cached, ok := e.cachedResult(ctx, geo.GEOID); ok {
		return cached, nil
	}

	result.Original = e.fetchOriginals(ctx, geo)

	gathered, statuses := e.fanOut(ctx, geo)
	result.SourcesUsed = statuses

	failed := 0
	for _, st := range statuses {
		if st.Status == "failed" || st.Status == "timeout" {
			failed++
		}
	}
	if failed == len(statuses) && len(gathered) == 0 && len(statuses) > 0 {
		return result, fmt.Errorf("citation discovery for %s: every source failed", geo.GEOID)
	}

	result.Citing = dedupe(gathered, result.Original, maxResults)

	if payload, err := json.Marshal(result); err == nil {
		if err := e.store.PutCitationCache(ctx, geo.GEOID, store.StrategyAll, payload, e.cfg.CacheTTL); err != nil {
			e.logger.Warn("caching citation result failed", "geo_id", geo.GEOID, "error", err)
		}
	}
	return result, nil
}

func (e *Engine) cachedResult(ctx context.Context, geoID string) (Result, bool) {
	payload, ok, err := e.store.GetCitationCache(ctx, geoID, store.StrategyAll)
	if err != nil || !ok {
		return Result{}, false
	}
	var cached Result
	if err := json.Unmarshal(payload, &cached); err != nil {
		e.logger.Warn("dropping undecodable citation cache entry", "geo_id", geoID, "error", err)
		e.store.InvalidateCitationCache(ctx, geoID)
		return Result{}, false
	}
	cached.FromCache = true
	return cached, true
}

func (e *Engine) fetchOriginals(ctx context.Context, geo types.GEODataset) []types.Publication {
	if len(geo.OriginalPMIDs) == 0 || e.eutils == nil {
		return nil
	}
	pubs, err := e.eutils.FetchSummaries(ctx, geo.OriginalPMIDs)
	if err != nil {
		e.logger.Warn("fetching original papers failed", "geo_id", geo.GEOID, "error", err)
		return nil
	}
	return pubs
}

// fanOut runs every applicable source concurrently and gathers whatever
// finishes within the strategy timeout. Sources still outstanding when
// the timer fires are marked timeout; the context passed to them is
// cancelled on return.
func (e *Engine) fanOut(parent context.Context, geo types.GEODataset) (map[string][]types.Publication, map[string]types.SourceStatus) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := e.jobs(geo)
	statuses := make(map[string]types.SourceStatus, len(jobs))
	launched := 0
	ch := make(chan sourceResult, len(jobs))

	for name, run := range jobs {
		if run == nil {
			statuses[name] = types.SourceStatus{Status: "skipped"}
			continue
		}
		launched++
		go func(name string, run func(context.Context) ([]types.Publication, error)) {
			pubs, err := run(ctx)
			ch <- sourceResult{name: name, pubs: pubs, err: err}
		}(name, run)
	}

	gathered := make(map[string][]types.Publication, launched)
	timer := time.NewTimer(e.cfg.StrategyTimeout)
	defer timer.Stop()

	heard := 0
gather:
	for heard < launched {
		select {
		case r := <-ch:
			heard++
			if r.err != nil {
				e.logger.Warn("citation source failed",
					"geo_id", geo.GEOID, "source", r.name, "error", r.err)
				statuses[r.name] = types.SourceStatus{Status: "failed", Error: r.err.Error()}
				continue
			}
			gathered[r.name] = r.pubs
			statuses[r.name] = types.SourceStatus{Status: "ok", Papers: len(r.pubs)}
		case <-timer.C:
			break gather
		case <-parent.Done():
			break gather
		}
	}

	for name, run := range jobs {
		if run == nil {
			continue
		}
		if _, ok := statuses[name]; !ok {
			e.logger.Warn("citation source timed out", "geo_id", geo.GEOID, "source", name)
			statuses[name] = types.SourceStatus{Status: "timeout"}
		}
	}
	return gathered, statuses
}

// jobs maps each source to its fetch closure, nil when the source cannot
// serve this dataset. Each closure walks every original PMID so one slow
// PMID cannot stall the other sources.
func (e *Engine) jobs(geo types.GEODataset) map[string]func(context.Context) ([]types.Publication, error) {
	pmids := geo.OriginalPMIDs
	jobs := map[string]func(context.Context) ([]types.Publication, error){
		SourceOpenAlex:        nil,
		SourceSemanticScholar: nil,
		SourceEuropePMC:       nil,
		SourcePubMed:          nil,
		SourceMentionSearch:   nil,
	}

	if e.openalex != nil && len(pmids) > 0 {
		jobs[SourceOpenAlex] = func(ctx context.Context) ([]types.Publication, error) {
			var all []types.Publication
			for _, pmid := range pmids {
				if e.suppressed(ctx, pmid, SourceOpenAlex) {
					continue
				}
				work, err := e.openalex.GetWork(ctx, pmid)
				if err != nil {
					if sources.IsNotFound(err) {
						e.recordNegative(ctx, pmid, SourceOpenAlex)
						continue
					}
					return all, err
				}
				citing, err := e.openalex.GetCitations(ctx, work.WorkID, e.cfg.MaxResults)
				if err != nil {
					return all, err
				}
				for _, w := range citing {
					all = append(all, w.Publication)
				}
			}
			return all, nil
		}
	}

	if e.semantic != nil && len(pmids) > 0 {
		jobs[SourceSemanticScholar] = func(ctx context.Context) ([]types.Publication, error) {
			var all []types.Publication
			for _, pmid := range pmids {
				if e.suppressed(ctx, pmid, SourceSemanticScholar) {
					continue
				}
				pubs, err := e.semantic.GetCitations(ctx, "PMID:"+pmid, e.cfg.MaxResults)
				if err != nil {
					if sources.IsNotFound(err) {
						e.recordNegative(ctx, pmid, SourceSemanticScholar)
						continue
					}
					return all, err
				}
				all = append(all, pubs...)
			}
			return all, nil
		}
	}

	if e.europepmc != nil && len(pmids) > 0 {
		jobs[SourceEuropePMC] = func(ctx context.Context) ([]types.Publication, error) {
			var all []types.Publication
			for _, pmid := range pmids {
				if e.suppressed(ctx, pmid, SourceEuropePMC) {
					continue
				}
				pubs, err := e.europepmc.GetCitations(ctx, pmid, e.cfg.MaxResults)
				if err != nil {
					if sources.IsNotFound(err) {
						e.recordNegative(ctx, pmid, SourceEuropePMC)
						continue
					}
					return all, err
				}
				all = append(all, pubs...)
			}
			return all, nil
		}
	}

	if e.eutils != nil && len(pmids) > 0 {
		jobs[SourcePubMed] = func(ctx context.Context) ([]types.Publication, error) {
			var all []types.Publication
			for _, pmid := range pmids {
				if e.suppressed(ctx, pmid, SourcePubMed) {
					continue
				}
				pubs, err := e.eutils.LinkedCitations(ctx, pmid, e.cfg.MaxResults)
				if err != nil {
					if sources.IsNotFound(err) {
						e.recordNegative(ctx, pmid, SourcePubMed)
						continue
					}
					return all, err
				}
				all = append(all, pubs...)
			}
			return all, nil
		}
	}

	// Mention-based discovery searches PubMed for the accession itself,
	// catching reuse papers that never cite the original.
	if e.eutils != nil && geo.GEOID != "" {
		jobs[SourceMentionSearch] = func(ctx context.Context) ([]types.Publication, error) {
			return e.eutils.SearchPubMed(ctx, geo.GEOID, e.cfg.MaxResults)
		}
	}
	return jobs
}

func (e *Engine) suppressed(ctx context.Context, pmid, source string) bool {
	neg, err := e.store.IsNegative(ctx, pmid, source)
	return err == nil && neg
}

func (e *Engine) recordNegative(ctx context.Context, pmid, source string) {
	if err := e.store.PutNegative(ctx, pmid, source, negativeTTL); err != nil {
		e.logger.Warn("recording negative entry failed", "pmid", pmid, "source", source, "error", err)
	}
}

// dedupe merges per-source results in preference order, dropping papers
// already seen (including the originals) and capping at max.
func dedupe(gathered map[string][]types.Publication, originals []types.Publication, max int) []types.Publication {
	seen := make(map[string]bool)
	for _, pub := range originals {
		if key, err := identifier.Key(pub); err == nil {
			seen[key] = true
		}
	}

	var citing []types.Publication
	for _, source := range sourceOrder {
		for _, pub := range gathered[source] {
			key, err := identifier.Key(pub)
			if err != nil || seen[key] {
				continue
			}
			seen[key] = true
			citing = append(citing, pub)
			if len(citing) >= max {
				return citing
			}
		}
	}
	return citing
}
