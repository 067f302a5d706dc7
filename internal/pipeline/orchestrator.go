// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline is the top of the stack: it answers searches by
// fanning out across GEO and the publication indexes, and fills cache
// misses by running discovery, URL collection, download, and extraction
// for a dataset end to end.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/omics-oracle/omics-oracle/internal/citations"
	"github.com/omics-oracle/omics-oracle/internal/fulltext"
	"github.com/omics-oracle/omics-oracle/internal/hotcache"
	"github.com/omics-oracle/omics-oracle/internal/identifier"
	"github.com/omics-oracle/omics-oracle/internal/sources"
	"github.com/omics-oracle/omics-oracle/internal/store"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// Orchestrator coordinates the whole pipeline. It owns the tiered cache
// and implements the Discoverer callback that fills its misses.
type Orchestrator struct {
	eutils    *sources.EUtilsClient
	openalex  *sources.OpenAlexClient
	citations *citations.Engine
	collector *fulltext.Collector
	download  *fulltext.Downloader
	extractor fulltext.Extractor
	store     *store.Store
	hot       hotcache.Backend
	cache     *TieredCache
	expander  QueryExpander
	cfg       types.SearchConfig
	dlCfg     types.DownloadConfig
	logger    *slog.Logger
}

// NewOrchestrator wires the pipeline and its cache.
func NewOrchestrator(
	eutils *sources.EUtilsClient,
	openalex *sources.OpenAlexClient,
	citationEngine *citations.Engine,
	collector *fulltext.Collector,
	downloader *fulltext.Downloader,
	extractor fulltext.Extractor,
	st *store.Store,
	hot hotcache.Backend,
	hotTTL time.Duration,
	cfg types.SearchConfig,
	dlCfg types.DownloadConfig,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 30 * time.Second
	}
	if cfg.ResultTTL <= 0 || cfg.ResultTTL > time.Hour {
		cfg.ResultTTL = time.Hour
	}
	if cfg.MaxGEOResults <= 0 {
		cfg.MaxGEOResults = 10
	}
	if cfg.MaxPublicationResults <= 0 {
		cfg.MaxPublicationResults = 20
	}
	if dlCfg.Concurrency <= 0 {
		dlCfg.Concurrency = 4
	}

	o := &Orchestrator{
		eutils:    eutils,
		openalex:  openalex,
		citations: citationEngine,
		collector: collector,
		download:  downloader,
		extractor: extractor,
		store:     st,
		hot:       hot,
		expander:  NoopExpander{},
		cfg:       cfg,
		dlCfg:     dlCfg,
		logger:    logger,
	}
	o.cache = NewTieredCache(hot, st, o, hotTTL, logger)
	return o
}

// Cache exposes the tiered cache for direct aggregate reads and
// invalidation.
func (o *Orchestrator) Cache() *TieredCache { return o.cache }

// SetExpander replaces the query expander.
func (o *Orchestrator) SetExpander(e QueryExpander) {
	if e != nil {
		o.expander = e
	}
}

func searchKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return "search:" + hex.EncodeToString(sum[:])[:16]
}

// Search answers a free-form query: a GEO accession resolves directly, a
// PMID resolves to its publication, anything else fans out across GEO,
// PubMed, and OpenAlex. The result can represent partial success; failed
// branches are listed in Errors while surviving branches contribute.
func (o *Orchestrator) Search(ctx context.Context, query string) (types.SearchResult, error) {
	start := time.Now()
	trace := uuid.NewString()
	logger := o.logger.With("trace_id", trace, "query", query)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	expanded := o.expander.Expand(query)
	kind, value := classifyQuery(expanded)

	if payload, err := o.hot.Get(ctx, searchKey(expanded)); err == nil {
		var cached types.SearchResult
		if err := json.Unmarshal(payload, &cached); err == nil {
			cached.FromCache = true
			cached.Elapsed = time.Since(start)
			logger.Debug("search served from hot cache")
			return cached, nil
		}
	}

	result := types.SearchResult{Query: query}
	switch kind {
	case queryGEOID:
		o.searchByGEOID(ctx, value, &result, logger)
	case queryPMID:
		o.searchByPMID(ctx, value, &result)
	default:
		o.searchByKeyword(ctx, expanded, &result, logger)
	}

	result.Elapsed = time.Since(start)
	logger.Info("search finished",
		"datasets", len(result.Datasets),
		"publications", len(result.Publications),
		"errors", len(result.Errors),
		"elapsed", result.Elapsed)

	if len(result.Datasets) > 0 || len(result.Publications) > 0 {
		if payload, err := json.Marshal(result); err == nil {
			o.hot.Set(ctx, searchKey(expanded), payload, o.cfg.ResultTTL)
		}
	}
	return result, nil
}

func (o *Orchestrator) searchByGEOID(ctx context.Context, geoID string, result *types.SearchResult, logger *slog.Logger) {
	agg, err := o.cache.Get(ctx, geoID)
	if err != nil {
		logger.Warn("direct dataset lookup failed", "geo_id", geoID, "error", err)
		result.Errors = append(result.Errors, searchError("geo", err))
		return
	}
	result.Datasets = []types.RankedDataset{{
		GEOID:     geoID,
		Title:     agg.GEO.Title,
		Score:     1,
		Aggregate: agg,
	}}
}

func (o *Orchestrator) searchByPMID(ctx context.Context, pmid string, result *types.SearchResult) {
	pubs, err := o.eutils.FetchSummaries(ctx, []string{pmid})
	if err != nil {
		result.Errors = append(result.Errors, searchError("pubmed", err))
		return
	}
	result.Publications = pubs
	o.persistPublications(ctx, pubs)
}

// searchByKeyword fans out three branches, merges and ranks, and
// enriches the ranked datasets from the cache in parallel.
func (o *Orchestrator) searchByKeyword(ctx context.Context, query string, result *types.SearchResult, logger *slog.Logger) {
	type branch struct {
		name     string
		datasets []types.GEODataset
		pubs     []types.Publication
		err      error
	}

	ch := make(chan branch, 3)
	var wg sync.WaitGroup
	run := func(name string, fn func() branch) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := fn()
			b.name = name
			ch <- b
		}()
	}

	run("geo", func() branch {
		datasets, err := o.eutils.SearchGEO(ctx, query, o.cfg.MaxGEOResults)
		return branch{datasets: datasets, err: err}
	})
	run("pubmed", func() branch {
		pubs, err := o.eutils.SearchPubMed(ctx, query, o.cfg.MaxPublicationResults)
		return branch{pubs: pubs, err: err}
	})
	run("openalex", func() branch {
		works, err := o.openalex.SearchWorks(ctx, query, o.cfg.MaxPublicationResults)
		b := branch{err: err}
		for _, w := range works {
			b.pubs = append(b.pubs, w.Publication)
		}
		return b
	})

	go func() {
		wg.Wait()
		close(ch)
	}()

	var datasets []types.GEODataset
	for b := range ch {
		if b.err != nil {
			logger.Warn("search branch failed", "branch", b.name, "error", b.err)
			result.Errors = append(result.Errors, searchError(b.name, b.err))
			continue
		}
		datasets = append(datasets, b.datasets...)
		result.Publications = append(result.Publications, b.pubs...)
	}

	result.Datasets = rankDatasets(query, datasets)
	if len(result.Datasets) > o.cfg.MaxGEOResults {
		result.Datasets = result.Datasets[:o.cfg.MaxGEOResults]
	}
	o.persistPublications(ctx, result.Publications)
	o.enrich(ctx, result.Datasets, logger)
}

// enrich attaches aggregates to the ranked datasets in parallel. An
// enrichment failure leaves that dataset without an aggregate rather
// than failing the search.
func (o *Orchestrator) enrich(ctx context.Context, ranked []types.RankedDataset, logger *slog.Logger) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range ranked {
		g.Go(func() error {
			agg, err := o.cache.Get(ctx, ranked[i].GEOID)
			if err != nil {
				logger.Warn("enrichment failed", "geo_id", ranked[i].GEOID, "error", err)
				return nil
			}
			ranked[i].Aggregate = agg
			return nil
		})
	}
	g.Wait()
}

func (o *Orchestrator) persistPublications(ctx context.Context, pubs []types.Publication) {
	for _, pub := range pubs {
		if _, err := o.store.UpsertPublication(ctx, pub); err != nil {
			o.logger.Warn("persisting publication failed", "title", pub.Title, "error", err)
		}
	}
}

// AutoDiscover runs the cache-miss path: fetch the dataset, discover its
// papers, collect URLs, download, extract, then assemble the aggregate
// from the store. Re-running it for the same dataset updates rows but
// never duplicates them.
func (o *Orchestrator) AutoDiscover(ctx context.Context, geoID string) (*types.GEOAggregate, error) {
	logger := o.logger.With("geo_id", geoID)
	logger.Info("auto-discovery started")

	geo, err := o.eutils.FetchGEODataset(ctx, geoID)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpsertDataset(ctx, geo); err != nil {
		return nil, err
	}

	// A discovery that finds nothing still leaves the dataset persisted
	// and yields an aggregate with no citing papers.
	discovery, err := o.citations.FindCitingPapers(ctx, geo, -1)
	if err != nil {
		logger.Warn("citation discovery failed", "error", err)
	}

	o.persistLinked(ctx, geoID, discovery.Original, types.RelOriginal, logger)
	o.persistLinked(ctx, geoID, discovery.Citing, types.RelCiting, logger)

	o.acquire(ctx, geoID, discovery.Original, types.RelOriginal, logger)
	o.acquire(ctx, geoID, discovery.Citing, types.RelCiting, logger)

	agg, err := o.store.CompleteGEOData(ctx, geoID)
	if err != nil {
		return nil, err
	}
	o.cache.Update(ctx, geoID, agg)
	logger.Info("auto-discovery finished",
		"original", agg.Statistics.OriginalPapers,
		"citing", agg.Statistics.CitingPapers,
		"downloads", agg.Statistics.SuccessfulDownloads)
	return agg, nil
}

func (o *Orchestrator) persistLinked(ctx context.Context, geoID string, pubs []types.Publication, rel types.Relationship, logger *slog.Logger) {
	for _, pub := range pubs {
		key, err := o.store.UpsertPublication(ctx, pub)
		if err != nil {
			logger.Warn("persisting publication failed", "title", pub.Title, "error", err)
			continue
		}
		if err := o.store.LinkPublication(ctx, geoID, key, rel, pub.Source); err != nil {
			logger.Warn("linking publication failed", "key", key, "error", err)
		}
	}
}

// acquire collects URLs and downloads PDFs for a set of publications,
// bounded by the download concurrency limit. One publication's
// candidates stay sequential inside the downloader.
func (o *Orchestrator) acquire(ctx context.Context, geoID string, pubs []types.Publication, rel types.Relationship, logger *slog.Logger) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.dlCfg.Concurrency)

	for _, pub := range pubs {
		g.Go(func() error {
			if _, err := o.acquireOne(ctx, pub, geoID, rel, logger); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Warn("download failed", "title", pub.Title, "error", err)
				}
			}
			return nil
		})
	}
	g.Wait()
}

// AcquireOne runs the URL waterfall, download, and extraction for a
// single publication, persisting it under the given dataset. It is the
// single-identifier surface behind the download subcommand.
func (o *Orchestrator) AcquireOne(ctx context.Context, pub types.Publication, geoID string, rel types.Relationship) (types.DownloadResult, error) {
	// The link table requires the dataset row; fetch it, or record a
	// stub when the sources are unreachable.
	if _, err := o.store.GetDataset(ctx, geoID); errors.Is(err, store.ErrNotFound) {
		geo, ferr := o.eutils.FetchGEODataset(ctx, geoID)
		if ferr != nil {
			geo = types.GEODataset{GEOID: geoID}
		}
		if err := o.store.UpsertDataset(ctx, geo); err != nil {
			return types.DownloadResult{}, err
		}
	} else if err != nil {
		return types.DownloadResult{}, err
	}

	key, err := o.store.UpsertPublication(ctx, pub)
	if err != nil {
		return types.DownloadResult{}, err
	}
	if err := o.store.LinkPublication(ctx, geoID, key, rel, "manual"); err != nil {
		return types.DownloadResult{}, err
	}
	return o.acquireOne(ctx, pub, geoID, rel, o.logger)
}

func (o *Orchestrator) acquireOne(ctx context.Context, pub types.Publication, geoID string, rel types.Relationship, logger *slog.Logger) (types.DownloadResult, error) {
	candidates := o.collector.CollectURLs(ctx, pub)
	if key, err := identifier.Key(pub); err == nil && len(candidates) > 0 {
		if err := o.store.AddURLs(ctx, key, candidates); err != nil {
			logger.Warn("persisting urls failed", "key", key, "error", err)
		}
	}

	result, err := o.download.DownloadWithFallback(ctx, pub, candidates, geoID, rel)
	if err != nil {
		return result, err
	}
	if result.Success {
		o.extract(ctx, pub, result.FilePath, logger)
	}
	return result, nil
}

func (o *Orchestrator) extract(ctx context.Context, pub types.Publication, pdfPath string, logger *slog.Logger) {
	if o.extractor == nil {
		return
	}
	pc, err := o.extractor.Extract(ctx, pdfPath)
	if err != nil {
		logger.Warn("extraction failed", "path", pdfPath, "error", err)
		return
	}
	key, err := identifier.Key(pub)
	if err != nil {
		return
	}
	if err := o.store.UpsertParsedContent(ctx, key, pc); err != nil {
		logger.Warn("persisting extraction failed", "key", key, "error", err)
	}
}

func searchError(source string, err error) types.SearchError {
	return types.SearchError{
		Source:   source,
		Category: string(sources.CategoryOf(err)),
		Message:  err.Error(),
	}
}
