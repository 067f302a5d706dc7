// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/omics-oracle/omics-oracle/internal/citations"
	"github.com/omics-oracle/omics-oracle/internal/fulltext"
	"github.com/omics-oracle/omics-oracle/internal/hotcache"
	"github.com/omics-oracle/omics-oracle/internal/sources"
	"github.com/omics-oracle/omics-oracle/internal/store"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

func testClientConfig() (types.ClientConfig, types.HTTPConfig) {
	return types.ClientConfig{RateLimitRPS: 1000, TimeoutSeconds: 5, Retries: 1},
		types.HTTPConfig{UserAgent: "omics-oracle-test"}
}

// upstream wires httptest servers into every source the pipeline talks
// to and restores the real base URLs afterwards. A nil handler answers
// 502 so an unexpected call fails loudly instead of hanging a test.
type upstream struct {
	eutils    http.HandlerFunc
	openalex  http.HandlerFunc
	semantic  http.HandlerFunc
	europepmc http.HandlerFunc
}

func swapBase(t *testing.T, target *string, h http.HandlerFunc) {
	t.Helper()
	if h == nil {
		h = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected call", http.StatusBadGateway)
		}
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	old := *target
	*target = srv.URL
	t.Cleanup(func() { *target = old })
}

func newTestOrchestrator(t *testing.T, up upstream) (*Orchestrator, *store.Store) {
	t.Helper()

	swapBase(t, &sources.EUtilsBase, up.eutils)
	swapBase(t, &sources.OpenAlexBase, up.openalex)
	swapBase(t, &sources.SemanticBase, up.semantic)
	swapBase(t, &sources.EuropePMCBase, up.europepmc)

	st, err := store.Open(filepath.Join(t.TempDir(), "oracle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.DiscardHandler)
	hot := hotcache.New(types.HotCacheConfig{Backend: "memory"}, logger)
	t.Cleanup(func() { hot.Close() })

	cc, shared := testClientConfig()
	eutils := sources.NewEUtilsClient(cc, shared)
	openalex := sources.NewOpenAlexClient(cc, shared)
	semantic := sources.NewSemanticScholarClient(cc, shared)
	europepmc := sources.NewEuropePMCClient(cc, shared)

	engine := citations.NewEngine(eutils, openalex, semantic, europepmc, st,
		types.CitationDiscoveryConfig{StrategyTimeout: 2 * time.Second, CacheTTL: time.Hour, MaxResults: 50},
		logger)

	collector := fulltext.NewCollector(nil, nil, nil, nil, nil, nil, nil, europepmc, nil, logger)
	collector.SetNegativeCache(st)
	dlCfg := types.DownloadConfig{
		Concurrency:   2,
		PerURLRetries: 1,
		RetryDelay:    time.Millisecond,
	}
	downloader := fulltext.NewDownloader(st, dlCfg, t.TempDir(), logger)
	extractor := &fulltext.StructureExtractor{Version: "structure-v1"}

	orch := NewOrchestrator(
		eutils, openalex, engine, collector, downloader, extractor,
		st, hot, time.Hour,
		types.SearchConfig{
			Deadline:              10 * time.Second,
			ResultTTL:             time.Minute,
			MaxGEOResults:         10,
			MaxPublicationResults: 10,
		},
		dlCfg, logger,
	)
	return orch, st
}

func pdfFixture(tag string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%%PDF-1.7\n%% %s\n", tag)
	b.WriteString("1 0 obj << /Type /Catalog >> endobj\n")
	b.WriteString("2 0 obj << /Type /Page /Font << /F1 3 0 R >> >> endobj\n")
	for b.Len() < 12*1024 {
		b.WriteString("% fixture padding to clear the minimum size gate\n")
	}
	b.WriteString("%%EOF\n")
	return b.Bytes()
}

// discoveryUpstream serves the happy path for GSE12345: one original
// paper (PMID 111), one citing paper found by OpenAlex (PMID 200), and a
// distinct open-access PDF per paper via Europe PMC.
func discoveryUpstream(t *testing.T, eutilsCalls *atomic.Int64) upstream {
	t.Helper()

	pdfSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pdfFixture(r.URL.Path))
	}))
	t.Cleanup(pdfSrv.Close)

	eutils := func(w http.ResponseWriter, r *http.Request) {
		if eutilsCalls != nil {
			eutilsCalls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		db := r.FormValue("db")
		switch {
		case r.URL.Path == "/esearch.fcgi" && db == "gds":
			fmt.Fprint(w, `{"esearchresult":{"count":"1","idlist":["200012345"]}}`)
		case r.URL.Path == "/esummary.fcgi" && db == "gds":
			fmt.Fprint(w, `{"result":{"uids":["200012345"],
				"200012345":{"accession":"GSE12345","title":"Lung tumor atlas",
				"summary":"Single-cell profiling of lung tumors","taxon":"Homo sapiens",
				"gpl":"570","n_samples":12,"pubmedids":[111]}}}`)
		case r.URL.Path == "/esearch.fcgi" && db == "pubmed":
			// Mention search finds nothing new.
			fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
		case r.URL.Path == "/esummary.fcgi" && db == "pubmed":
			fmt.Fprint(w, `{"result":{"uids":["111"],
				"111":{"uid":"111","title":"Original paper","pubdate":"2009 Sep",
				"fulljournalname":"Nature","authors":[{"name":"Smith J"}],"articleids":[]}}}`)
		case r.URL.Path == "/elink.fcgi":
			fmt.Fprint(w, `{"linksets":[{"linksetdbs":[]}]}`)
		default:
			t.Errorf("unexpected eutils call %s db=%s", r.URL.Path, db)
			http.NotFound(w, r)
		}
	}

	openalex := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/works/pmid:111":
			fmt.Fprint(w, `{"id":"https://openalex.org/W1","title":"Original paper",
				"ids":{"pmid":"https://pubmed.ncbi.nlm.nih.gov/111"}}`)
		case r.URL.Path == "/works":
			fmt.Fprint(w, `{"meta":{"count":1,"next_cursor":""},"results":[
				{"id":"https://openalex.org/W2","title":"Citing paper A",
				 "ids":{"pmid":"https://pubmed.ncbi.nlm.nih.gov/200"},
				 "publication_year":2020}]}`)
		default:
			http.NotFound(w, r)
		}
	}

	europepmc := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/citations"):
			fmt.Fprint(w, `{"citationList":{"citation":[]}}`)
		case strings.HasSuffix(r.URL.Path, "/search"):
			pmid := "111"
			if strings.Contains(r.URL.Query().Get("query"), "EXT_ID:200") {
				pmid = "200"
			}
			fmt.Fprintf(w, `{"hitCount":1,"resultList":{"result":[
				{"id":%q,"source":"MED","fullTextUrlList":{"fullTextUrl":[
				 {"url":"%s/%s.pdf","documentStyle":"pdf","availability":"Open access"}]}}]}}`,
				pmid, pdfSrv.URL, pmid)
		default:
			http.NotFound(w, r)
		}
	}

	semantic := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusInternalServerError)
	}

	return upstream{eutils: eutils, openalex: openalex, semantic: semantic, europepmc: europepmc}
}

func TestSearchByAccessionRunsFullDiscovery(t *testing.T) {
	orch, st := newTestOrchestrator(t, discoveryUpstream(t, nil))

	result, err := orch.Search(context.Background(), "gse12345")
	require.NoError(t, err)
	require.Len(t, result.Datasets, 1)
	assert.False(t, result.FromCache)
	assert.Empty(t, result.Errors)

	ds := result.Datasets[0]
	assert.Equal(t, "GSE12345", ds.GEOID)
	assert.Equal(t, "Lung tumor atlas", ds.Title)
	require.NotNil(t, ds.Aggregate)

	stats := ds.Aggregate.Statistics
	assert.Equal(t, 1, stats.OriginalPapers)
	assert.Equal(t, 1, stats.CitingPapers)
	assert.Equal(t, 2, stats.SuccessfulDownloads)
	assert.Equal(t, 2, stats.ExtractedPapers)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)

	require.Len(t, ds.Aggregate.Original, 1)
	rec := ds.Aggregate.Original[0]
	assert.Equal(t, "Original paper", rec.Publication.Title)
	assert.NotEmpty(t, rec.PDFPath)
	require.NotNil(t, rec.Extraction)
	assert.Equal(t, "structure-v1", rec.Extraction.ParserVersion)

	dbStats, err := st.DatabaseStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dbStats.Datasets)
	assert.Equal(t, 2, dbStats.Publications)
	assert.Equal(t, 2, dbStats.CachedPDFs)
}

func TestSearchServesRepeatQueryFromHotCache(t *testing.T) {
	var calls atomic.Int64
	orch, _ := newTestOrchestrator(t, discoveryUpstream(t, &calls))

	first, err := orch.Search(context.Background(), "GSE12345")
	require.NoError(t, err)
	require.False(t, first.FromCache)
	upstreamCalls := calls.Load()
	require.NotZero(t, upstreamCalls)

	second, err := orch.Search(context.Background(), "GSE12345")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, upstreamCalls, calls.Load(), "cached search must not touch upstream")
	require.Len(t, second.Datasets, 1)
	assert.Equal(t, "GSE12345", second.Datasets[0].GEOID)
}

func TestAutoDiscoverIsIdempotent(t *testing.T) {
	orch, st := newTestOrchestrator(t, discoveryUpstream(t, nil))
	ctx := context.Background()

	first, err := orch.AutoDiscover(ctx, "GSE12345")
	require.NoError(t, err)
	second, err := orch.AutoDiscover(ctx, "GSE12345")
	require.NoError(t, err)

	assert.Equal(t, first.Statistics.TotalPapers, second.Statistics.TotalPapers)
	assert.Equal(t, first.Statistics.SuccessfulDownloads, second.Statistics.SuccessfulDownloads)

	dbStats, err := st.DatabaseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dbStats.Datasets)
	assert.Equal(t, 2, dbStats.Publications, "re-discovery must not duplicate rows")
	assert.Equal(t, 2, dbStats.CachedPDFs)
}

// keywordUpstream serves a two-dataset keyword corpus with no linked
// publications; the OpenAlex branch always fails.
func keywordUpstream(t *testing.T) upstream {
	t.Helper()

	gds := map[string]string{
		"1": `{"accession":"GSE101","title":"Breast cancer organoid atlas","summary":"Organoid lines from breast cancer biopsies","taxon":"Homo sapiens","pubmedids":[]}`,
		"2": `{"accession":"GSE99","title":"Mouse liver baseline","summary":"Untreated liver expression baseline","taxon":"Mus musculus","pubmedids":[]}`,
	}

	eutils := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		db := r.FormValue("db")
		switch {
		case r.URL.Path == "/esearch.fcgi" && db == "gds":
			term := r.FormValue("term")
			switch {
			case strings.Contains(term, "GSE101[ACCN]"):
				fmt.Fprint(w, `{"esearchresult":{"count":"1","idlist":["1"]}}`)
			case strings.Contains(term, "GSE99[ACCN]"):
				fmt.Fprint(w, `{"esearchresult":{"count":"1","idlist":["2"]}}`)
			default:
				fmt.Fprint(w, `{"esearchresult":{"count":"2","idlist":["1","2"]}}`)
			}
		case r.URL.Path == "/esummary.fcgi" && db == "gds":
			var uids, docs []string
			for _, id := range strings.Split(r.FormValue("id"), ",") {
				if doc, ok := gds[id]; ok {
					uids = append(uids, fmt.Sprintf("%q", id))
					docs = append(docs, fmt.Sprintf("%q:%s", id, doc))
				}
			}
			fmt.Fprintf(w, `{"result":{"uids":[%s],%s}}`,
				strings.Join(uids, ","), strings.Join(docs, ","))
		case r.URL.Path == "/esearch.fcgi" && db == "pubmed":
			fmt.Fprint(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
		case r.URL.Path == "/elink.fcgi":
			fmt.Fprint(w, `{"linksets":[{"linksetdbs":[]}]}`)
		default:
			t.Errorf("unexpected eutils call %s db=%s", r.URL.Path, db)
			http.NotFound(w, r)
		}
	}

	fail := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
	europepmc := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/citations") {
			fmt.Fprint(w, `{"citationList":{"citation":[]}}`)
			return
		}
		fmt.Fprint(w, `{"hitCount":0,"resultList":{"result":[]}}`)
	}

	return upstream{eutils: eutils, openalex: fail, semantic: fail, europepmc: europepmc}
}

func TestSearchKeywordSurvivesBranchFailure(t *testing.T) {
	orch, _ := newTestOrchestrator(t, keywordUpstream(t))

	result, err := orch.Search(context.Background(), "breast cancer")
	require.NoError(t, err)

	// OpenAlex failed; GEO and PubMed still contribute.
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "openalex", result.Errors[0].Source)
	assert.NotEmpty(t, result.Errors[0].Category)
	assert.NotEmpty(t, result.Errors[0].Message)

	require.Len(t, result.Datasets, 2)
	assert.Equal(t, "GSE101", result.Datasets[0].GEOID, "matching dataset ranks first")
	assert.Equal(t, "GSE99", result.Datasets[1].GEOID)
	assert.Greater(t, result.Datasets[0].Score, result.Datasets[1].Score)

	// Enrichment ran discovery for both; neither dataset has papers.
	require.NotNil(t, result.Datasets[0].Aggregate)
	assert.Equal(t, 0, result.Datasets[0].Aggregate.Statistics.TotalPapers)
}

func TestClassifyQuery(t *testing.T) {
	tests := []struct {
		query string
		kind  queryKind
		value string
	}{
		{"GSE12345", queryGEOID, "GSE12345"},
		{"  gse7[tab]", queryKeyword, "gse7[tab]"},
		{"gse42", queryGEOID, "GSE42"},
		{"19753302", queryPMID, "19753302"},
		{"1234567890", queryKeyword, "1234567890"},
		{"breast cancer single cell", queryKeyword, "breast cancer single cell"},
	}
	for _, tt := range tests {
		kind, value := classifyQuery(tt.query)
		assert.Equal(t, tt.kind, kind, tt.query)
		assert.Equal(t, tt.value, value, tt.query)
	}
}

func TestRankDatasetsIsDeterministic(t *testing.T) {
	datasets := []types.GEODataset{
		{GEOID: "GSE10", Title: "Liver baseline"},
		{GEOID: "GSE20", Title: "Breast cancer cohort"},
		{GEOID: "GSE20", Title: "Breast cancer cohort (duplicate)"},
		{GEOID: "GSE30", Title: "Breast cancer organoids", Summary: "cancer models"},
	}

	ranked := rankDatasets("breast cancer", datasets)
	require.Len(t, ranked, 3, "duplicates collapse")
	assert.Equal(t, "GSE30", ranked[0].GEOID)
	assert.Equal(t, "GSE20", ranked[1].GEOID)
	assert.Equal(t, "GSE10", ranked[2].GEOID)

	again := rankDatasets("breast cancer", datasets)
	assert.Equal(t, ranked, again)
}

type stubDiscoverer struct {
	calls int
	agg   *types.GEOAggregate
	err   error
}

func (d *stubDiscoverer) AutoDiscover(context.Context, string) (*types.GEOAggregate, error) {
	d.calls++
	return d.agg, d.err
}

func TestTieredCachePromotesWarmHits(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "oracle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.DiscardHandler)
	hot := hotcache.New(types.HotCacheConfig{Backend: "memory"}, logger)
	t.Cleanup(func() { hot.Close() })

	disc := &stubDiscoverer{err: errors.New("no sources in this test")}
	cache := NewTieredCache(hot, st, disc, time.Hour, logger)

	require.NoError(t, st.UpsertDataset(ctx, types.GEODataset{GEOID: "GSE7", Title: "Warm dataset"}))

	// Warm hit: served from SQLite and promoted to the hot tier.
	agg, err := cache.Get(ctx, "GSE7")
	require.NoError(t, err)
	assert.Equal(t, "Warm dataset", agg.GEO.Title)
	assert.Zero(t, disc.calls)

	// Hot hit: no warm read needed.
	agg, err = cache.Get(ctx, "GSE7")
	require.NoError(t, err)
	assert.Equal(t, "GSE7", agg.GEO.GEOID)

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Promotions)
	assert.Equal(t, int64(0), stats.Misses)
	assert.InDelta(t, 1.0, stats.HitRate, 1e-9)

	// Invalidation drops the hot entry; the next read promotes again.
	require.NoError(t, cache.Invalidate(ctx, "GSE7"))
	_, err = cache.Get(ctx, "GSE7")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cache.GetStats().Promotions)
}

func TestTieredCacheMissTriggersDiscovery(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "oracle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.DiscardHandler)
	hot := hotcache.New(types.HotCacheConfig{Backend: "memory"}, logger)
	t.Cleanup(func() { hot.Close() })

	disc := &stubDiscoverer{agg: &types.GEOAggregate{
		GEO: types.GEODataset{GEOID: "GSE404", Title: "Discovered"},
	}}
	cache := NewTieredCache(hot, st, disc, time.Hour, logger)

	agg, err := cache.Get(ctx, "GSE404")
	require.NoError(t, err)
	assert.Equal(t, "Discovered", agg.GEO.Title)
	assert.Equal(t, 1, disc.calls)
	assert.Equal(t, int64(1), cache.GetStats().Misses)

	// Without a discoverer a full miss surfaces as not found.
	bare := NewTieredCache(hot, st, nil, time.Hour, logger)
	_, err = bare.Get(ctx, "GSE500")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExportWritesBothFormats(t *testing.T) {
	agg := &types.GEOAggregate{
		GEO: types.GEODataset{GEOID: "GSE77", Title: "Export fixture"},
		Statistics: types.AggregateStatistics{
			TotalPapers: 2, OriginalPapers: 1, CitingPapers: 1,
		},
	}
	dir := t.TempDir()

	yamlPath, err := ExportYAML(agg, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "GSE77.yaml"), yamlPath)

	jsonPath, err := ExportJSON(agg, dir)
	require.NoError(t, err)

	var fromJSON types.GEOAggregate
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, "Export fixture", fromJSON.GEO.Title)

	var fromYAML types.GEOAggregate
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, 2, fromYAML.Statistics.TotalPapers)
}
