// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citations

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omics-oracle/omics-oracle/internal/sources"
	"github.com/omics-oracle/omics-oracle/internal/store"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

func clientConfig() (types.ClientConfig, types.HTTPConfig) {
	return types.ClientConfig{RateLimitRPS: 1000, TimeoutSeconds: 5, Retries: 1},
		types.HTTPConfig{UserAgent: "omics-oracle-test"}
}

// fakeUpstream wires httptest servers into every source client the
// engine talks to and restores the real base URLs afterwards.
type fakeUpstream struct {
	eutils    http.HandlerFunc
	openalex  http.HandlerFunc
	semantic  http.HandlerFunc
	europepmc http.HandlerFunc
}

func newTestEngine(t *testing.T, up fakeUpstream, cfg types.CitationDiscoveryConfig) (*Engine, *store.Store) {
	t.Helper()

	swap := func(target *string, h http.HandlerFunc) {
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
	swap(&sources.EUtilsBase, up.eutils)
	swap(&sources.OpenAlexBase, up.openalex)
	swap(&sources.SemanticBase, up.semantic)
	swap(&sources.EuropePMCBase, up.europepmc)

	st, err := store.Open(filepath.Join(t.TempDir(), "oracle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cc, shared := clientConfig()
	engine := NewEngine(
		sources.NewEUtilsClient(cc, shared),
		sources.NewOpenAlexClient(cc, shared),
		sources.NewSemanticScholarClient(cc, shared),
		sources.NewEuropePMCClient(cc, shared),
		st, cfg, slog.New(slog.DiscardHandler),
	)
	return engine, st
}

func eutilsHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/esummary.fcgi":
			// Serves both the original PMID and the mention-search hit.
			fmt.Fprint(w, `{"result":{"uids":["111","400"],
				"111":{"uid":"111","title":"Original paper","pubdate":"2009 Sep","fulljournalname":"Nature","authors":[{"name":"Smith J"}],"articleids":[{"idtype":"doi","value":"10.1038/orig"}]},
				"400":{"uid":"400","title":"Mention paper","pubdate":"2021 Jan","fulljournalname":"PLOS ONE","authors":[],"articleids":[]}}}`)
		case r.URL.Path == "/esearch.fcgi":
			fmt.Fprint(w, `{"esearchresult":{"count":"1","idlist":["400"]}}`)
		case r.URL.Path == "/elink.fcgi":
			fmt.Fprint(w, `{"linksets":[{"linksetdbs":[]}]}`)
		default:
			t.Errorf("unexpected eutils path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func openalexHandler(w http.ResponseWriter, r *http.Request) {
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

// europepmcDuplicate returns the same paper OpenAlex found, so dedup
// preference can be observed.
func europepmcDuplicate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"citationList":{"citation":[
		{"id":"200","source":"MED","title":"Citing paper A (europepmc rendering)","pubYear":"2020"}]}}`)
}

func TestFindCitingPapersMergesAndDeduplicates(t *testing.T) {
	engine, _ := newTestEngine(t, fakeUpstream{
		eutils:   eutilsHandler(t),
		openalex: openalexHandler,
		semantic: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusInternalServerError)
		},
		europepmc: europepmcDuplicate,
	}, types.CitationDiscoveryConfig{StrategyTimeout: 5 * time.Second})

	geo := types.GEODataset{GEOID: "GSE12345", OriginalPMIDs: []string{"111"}}
	result, err := engine.FindCitingPapers(context.Background(), geo, 50)
	require.NoError(t, err)

	require.Len(t, result.Original, 1)
	assert.Equal(t, "Original paper", result.Original[0].Title)

	// Citing paper A appears once, from OpenAlex (preferred over Europe
	// PMC); the mention-search paper is separate. The original must not
	// reappear in citing.
	require.Len(t, result.Citing, 2)
	assert.Equal(t, "Citing paper A", result.Citing[0].Title)
	assert.Equal(t, "Mention paper", result.Citing[1].Title)

	assert.Equal(t, "ok", result.SourcesUsed[SourceOpenAlex].Status)
	assert.Equal(t, "failed", result.SourcesUsed[SourceSemanticScholar].Status)
	assert.Equal(t, "ok", result.SourcesUsed[SourceEuropePMC].Status)
	assert.Equal(t, "ok", result.SourcesUsed[SourceMentionSearch].Status)
	assert.NotEmpty(t, result.SourcesUsed[SourceSemanticScholar].Error)
}

func TestFindCitingPapersUsesCache(t *testing.T) {
	calls := 0
	engine, _ := newTestEngine(t, fakeUpstream{
		eutils: func(w http.ResponseWriter, r *http.Request) {
			calls++
			eutilsHandler(t)(w, r)
		},
		openalex:  openalexHandler,
		europepmc: europepmcDuplicate,
		semantic: func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[]}`)
		},
	}, types.CitationDiscoveryConfig{StrategyTimeout: 5 * time.Second})

	geo := types.GEODataset{GEOID: "GSE12345", OriginalPMIDs: []string{"111"}}
	first, err := engine.FindCitingPapers(context.Background(), geo, 50)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	callsAfterFirst := calls
	second, err := engine.FindCitingPapers(context.Background(), geo, 50)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, callsAfterFirst, calls, "cache hit must not touch upstream")
	assert.Equal(t, len(first.Citing), len(second.Citing))
}

func TestFindCitingPapersNegativeCachesMissingPMID(t *testing.T) {
	var openalexHits atomic.Int64
	engine, st := newTestEngine(t, fakeUpstream{
		eutils: eutilsHandler(t),
		openalex: func(w http.ResponseWriter, r *http.Request) {
			openalexHits.Add(1)
			http.NotFound(w, r)
		},
		semantic: func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[]}`)
		},
		europepmc: europepmcDuplicate,
	}, types.CitationDiscoveryConfig{StrategyTimeout: 5 * time.Second})

	ctx := context.Background()
	geo := types.GEODataset{GEOID: "GSE12345", OriginalPMIDs: []string{"111"}}
	_, err := engine.FindCitingPapers(ctx, geo, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), openalexHits.Load())

	neg, err := st.IsNegative(ctx, "111", SourceOpenAlex)
	require.NoError(t, err)
	assert.True(t, neg, "not-found answer must be recorded")

	// Even with the result cache dropped, the recorded miss keeps the
	// source from being asked about the same PMID again.
	require.NoError(t, st.InvalidateCitationCache(ctx, "GSE12345"))
	_, err = engine.FindCitingPapers(ctx, geo, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), openalexHits.Load(), "negative-cached pmid asked again")
}

func TestFindCitingPapersZeroMax(t *testing.T) {
	engine, _ := newTestEngine(t, fakeUpstream{}, types.CitationDiscoveryConfig{})

	result, err := engine.FindCitingPapers(context.Background(),
		types.GEODataset{GEOID: "GSE1", OriginalPMIDs: []string{"111"}}, 0)
	require.NoError(t, err)
	assert.Empty(t, result.Citing)
	assert.Empty(t, result.Original)
}

func TestFindCitingPapersAllSourcesFailed(t *testing.T) {
	down := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}
	engine, _ := newTestEngine(t, fakeUpstream{
		eutils: down, openalex: down, semantic: down, europepmc: down,
	}, types.CitationDiscoveryConfig{StrategyTimeout: 5 * time.Second})

	_, err := engine.FindCitingPapers(context.Background(),
		types.GEODataset{GEOID: "GSE1", OriginalPMIDs: []string{"111"}}, 50)
	assert.Error(t, err)
}

func TestFindCitingPapersTimeout(t *testing.T) {
	slow := func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		http.Error(w, "too late", http.StatusGatewayTimeout)
	}
	engine, _ := newTestEngine(t, fakeUpstream{
		eutils:    eutilsHandler(t),
		openalex:  openalexHandler,
		semantic:  slow,
		europepmc: europepmcDuplicate,
	}, types.CitationDiscoveryConfig{StrategyTimeout: 200 * time.Millisecond})

	geo := types.GEODataset{GEOID: "GSE12345", OriginalPMIDs: []string{"111"}}
	result, err := engine.FindCitingPapers(context.Background(), geo, 50)
	require.NoError(t, err)
	assert.Equal(t, "timeout", result.SourcesUsed[SourceSemanticScholar].Status)
	assert.NotEmpty(t, result.Citing, "fast sources still contribute")
}
