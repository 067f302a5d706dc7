// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

func swapBase(t *testing.T, base *string, handler http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	old := *base
	*base = ts.URL
	t.Cleanup(func() { *base = old })
}

func TestOpenAlexGetWorkByDOI(t *testing.T) {
	swapBase(t, &OpenAlexBase, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "10.1000/widget.1")
		fmt.Fprint(w, `{
		  "id": "https://openalex.org/W123",
		  "doi": "https://doi.org/10.1000/widget.1",
		  "title": "Widget study",
		  "publication_year": 2020,
		  "ids": {"pmid": "https://pubmed.ncbi.nlm.nih.gov/19753302", "pmcid": "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC2718629"},
		  "authorships": [{"author": {"display_name": "J. Doe"}}],
		  "primary_location": {"pdf_url": "https://host.org/w.pdf", "landing_page_url": "https://host.org/w", "source": {"display_name": "Widget Journal"}},
		  "open_access": {"is_oa": true, "oa_url": "https://host.org/oa.pdf"}
		}`)
	})

	cfg, shared := testClientConfig()
	c := NewOpenAlexClient(cfg, shared)
	work, err := c.GetWork(context.Background(), "10.1000/widget.1")
	require.NoError(t, err)
	assert.Equal(t, "W123", work.WorkID)
	assert.Equal(t, "10.1000/widget.1", work.Publication.DOI)
	assert.Equal(t, "19753302", work.Publication.PMID)
	assert.Equal(t, "PMC2718629", work.Publication.PMCID)
	assert.Equal(t, "Widget Journal", work.Publication.Journal)
	assert.Equal(t, "https://host.org/w.pdf", work.PDFURL)
	assert.True(t, work.IsOA)
}

func TestOpenAlexGetCitations(t *testing.T) {
	swapBase(t, &OpenAlexBase, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cites:W123", r.URL.Query().Get("filter"))
		fmt.Fprint(w, `{
		  "meta": {"count": 2, "next_cursor": ""},
		  "results": [
		    {"id": "https://openalex.org/W1", "title": "Citing one", "ids": {"pmid": "https://pubmed.ncbi.nlm.nih.gov/111"}},
		    {"id": "https://openalex.org/W2", "title": "Citing two", "doi": "https://doi.org/10.2/b"}
		  ]
		}`)
	})

	cfg, shared := testClientConfig()
	c := NewOpenAlexClient(cfg, shared)
	works, err := c.GetCitations(context.Background(), "W123", 10)
	require.NoError(t, err)
	require.Len(t, works, 2)
	assert.Equal(t, "111", works[0].Publication.PMID)
	assert.Equal(t, "10.2/b", works[1].Publication.DOI)
}

func TestDecodeInvertedAbstract(t *testing.T) {
	idx := map[string][]int{
		"widgets": {2},
		"love":    {1},
		"we":      {0},
	}
	assert.Equal(t, "we love widgets", decodeInvertedAbstract(idx))
}

func TestSemanticScholarGetCitations(t *testing.T) {
	swapBase(t, &SemanticBase, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "PMID:19753302")
		fmt.Fprint(w, `{
		  "data": [
		    {"citingPaper": {"paperId": "abc", "title": "Citing", "year": 2021,
		      "externalIds": {"DOI": "10.3/c", "PubMed": "222", "PubMedCentral": "345"},
		      "authors": [{"name": "R. Roe"}]}}
		  ]
		}`)
	})

	cfg, shared := testClientConfig()
	c := NewSemanticScholarClient(cfg, shared)
	pubs, err := c.GetCitations(context.Background(), "PMID:19753302", 10)
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, "222", pubs[0].PMID)
	assert.Equal(t, "PMC345", pubs[0].PMCID)
	assert.Equal(t, []string{"R. Roe"}, pubs[0].Authors)
}

func TestEuropePMCGetCitations(t *testing.T) {
	swapBase(t, &EuropePMCBase, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/MED/19753302/citations")
		// MED citation records carry the PMID in "id"; "pmid" appears only
		// on search results.
		fmt.Fprint(w, `{
		  "citationList": {"citation": [
		    {"id": "333", "source": "MED", "title": "EPMC citing", "authorString": "Doe J, Roe R.", "pubYear": "2022"},
		    {"id": "PPR500", "source": "PPR", "title": "Preprint citing", "pubYear": "2023"}
		  ]}
		}`)
	})

	cfg, shared := testClientConfig()
	c := NewEuropePMCClient(cfg, shared)
	pubs, err := c.GetCitations(context.Background(), "19753302", 10)
	require.NoError(t, err)
	require.Len(t, pubs, 2)
	assert.Equal(t, "333", pubs[0].PMID)
	assert.Equal(t, 2022, pubs[0].Year)
	assert.Equal(t, []string{"Doe J", "Roe R"}, pubs[0].Authors)
	assert.Empty(t, pubs[1].PMID, "non-MED ids are not PMIDs")
}

func TestEuropePMCFullTextURLs(t *testing.T) {
	swapBase(t, &EuropePMCBase, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("query"), "PMCID:PMC777")
		fmt.Fprint(w, `{
		  "resultList": {"result": [
		    {"pmcid": "PMC777", "fullTextUrlList": {"fullTextUrl": [
		      {"url": "https://europepmc.org/articles/PMC777?pdf=render", "documentStyle": "pdf", "availability": "Open access"},
		      {"url": "https://europepmc.org/articles/PMC777", "documentStyle": "html", "availability": "Open access"}
		    ]}}
		  ]}
		}`)
	})

	cfg, shared := testClientConfig()
	c := NewEuropePMCClient(cfg, shared)
	urls, err := c.GetFullTextURLs(context.Background(), types.Publication{PMCID: "PMC777"})
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "europepmc", urls[0].Source)
	assert.Greater(t, urls[0].Confidence, urls[1].Confidence)
}

func TestUnpaywallLookup(t *testing.T) {
	swapBase(t, &UnpaywallBase, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "oa@example.org", r.URL.Query().Get("email"))
		fmt.Fprint(w, `{
		  "doi": "10.1371/journal.pone.0123456",
		  "is_oa": true,
		  "best_oa_location": {"url_for_pdf": "https://journals.plos.org/x.pdf", "url_for_landing_page": "https://journals.plos.org/x", "license": "cc-by"}
		}`)
	})

	cfg, shared := testClientConfig()
	cfg.Email = "oa@example.org"
	c := NewUnpaywallClient(cfg, shared)
	candidates, err := c.URLCandidates(context.Background(), "10.1371/journal.pone.0123456")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "https://journals.plos.org/x.pdf", candidates[0].URL)
}

func TestUnpaywallDisabledWithoutEmail(t *testing.T) {
	cfg, shared := testClientConfig()
	c := NewUnpaywallClient(cfg, shared)
	assert.False(t, c.Enabled())
	_, err := c.Lookup(context.Background(), "10.1/x")
	assert.True(t, IsNotFound(err))
}

func TestBiorxivLookupSkipsForeignDOIs(t *testing.T) {
	cfg, shared := testClientConfig()
	c := NewBiorxivClient(cfg, shared)
	candidates, err := c.Lookup(context.Background(), "10.1371/journal.pone.0123456")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestBiorxivLookupBuildsPDFURL(t *testing.T) {
	swapBase(t, &BiorxivAPIBase, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/biorxiv/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"collection": [{"doi": "10.1101/2023.01.01.522000", "version": "2", "server": "biorxiv"}]}`)
	})

	cfg, shared := testClientConfig()
	c := NewBiorxivClient(cfg, shared)
	candidates, err := c.Lookup(context.Background(), "10.1101/2023.01.01.522000")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "https://www.biorxiv.org/content/10.1101/2023.01.01.522000v2.full.pdf", candidates[0].URL)
}

func TestArxivLookupOffline(t *testing.T) {
	cfg, shared := testClientConfig()
	c := NewArxivClient(cfg, shared)
	candidates := c.Lookup("arXiv:2301.07041")
	require.Len(t, candidates, 1)
	assert.Equal(t, "https://arxiv.org/pdf/2301.07041", candidates[0].URL)
	assert.Empty(t, c.Lookup("  "))
}

func TestCrossrefLookup(t *testing.T) {
	swapBase(t, &CrossrefBase, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
		  "message": {
		    "title": ["Widget study"],
		    "URL": "https://publisher.example/article/10.1000-widget.1",
		    "container-title": ["Widget Journal"],
		    "author": [{"given": "Jane", "family": "Doe"}],
		    "issued": {"date-parts": [[2020, 3, 1]]}
		  }
		}`)
	})

	cfg, shared := testClientConfig()
	c := NewCrossrefClient(cfg, shared)
	pub, candidates, err := c.Lookup(context.Background(), "10.1000/widget.1")
	require.NoError(t, err)
	assert.Equal(t, "Widget study", pub.Title)
	assert.Equal(t, 2020, pub.Year)
	assert.Equal(t, []string{"Jane Doe"}, pub.Authors)
	require.Len(t, candidates, 1)
	assert.Equal(t, "https://publisher.example/article/10.1000-widget.1", candidates[0].URL)
}

func TestPMCURLCandidates(t *testing.T) {
	cfg, shared := testClientConfig()
	c := NewPMCClient(cfg, shared)
	candidates, err := c.URLCandidates(context.Background(), types.Publication{PMCID: "PMC2718629"})
	require.NoError(t, err)
	require.Len(t, candidates, 4)
	for _, cand := range candidates {
		assert.Contains(t, cand.URL, "PMC2718629")
		assert.Equal(t, "pmc", cand.Source)
	}
}

func TestPMCResolvePMCIDViaConverter(t *testing.T) {
	swapBase(t, &PMCIDConvBase, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "19753302", r.URL.Query().Get("ids"))
		fmt.Fprint(w, `{"records": [{"pmid": "19753302", "pmcid": "PMC2718629"}]}`)
	})

	cfg, shared := testClientConfig()
	c := NewPMCClient(cfg, shared)
	pmcid, err := c.ResolvePMCID(context.Background(), types.Publication{PMID: "19753302"})
	require.NoError(t, err)
	assert.Equal(t, "PMC2718629", pmcid)
}

func TestProxyRewriter(t *testing.T) {
	p, err := NewProxyRewriter("https://login.ezproxy.example.edu/login?url=")
	require.NoError(t, err)
	require.True(t, p.Enabled())

	cand := p.Rewrite("https://publisher.example/a.pdf")
	assert.True(t, cand.RequiresAuth)
	assert.Contains(t, cand.URL, "login.ezproxy.example.edu")

	off, err := NewProxyRewriter("")
	require.NoError(t, err)
	assert.False(t, off.Enabled())
}
