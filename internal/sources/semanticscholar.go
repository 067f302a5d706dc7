// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// SemanticBase is the Semantic Scholar graph API root. Declared as a var
// so tests can substitute an httptest server.
var SemanticBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "title,abstract,authors,externalIds,year,venue"

// SemanticScholarClient queries the Semantic Scholar graph API. Budget is
// 1 rps without a key and 5 rps with one.
type SemanticScholarClient struct {
	client
	apiKey string
}

// NewSemanticScholarClient builds the client.
func NewSemanticScholarClient(cfg types.ClientConfig, shared types.HTTPConfig) *SemanticScholarClient {
	rps := 1.0
	if cfg.APIKey != "" {
		rps = 5.0
	}
	return &SemanticScholarClient{
		client: newClient("semantic_scholar", rps, cfg, shared),
		apiKey: cfg.APIKey,
	}
}

func (c *SemanticScholarClient) header() http.Header {
	if c.apiKey == "" {
		return nil
	}
	return http.Header{"X-Api-Key": {c.apiKey}}
}

type semanticPaper struct {
	PaperID     string `json:"paperId"`
	Title       string `json:"title"`
	Abstract    string `json:"abstract"`
	Year        int    `json:"year"`
	Venue       string `json:"venue"`
	ExternalIDs struct {
		DOI      string `json:"DOI"`
		ArXiv    string `json:"ArXiv"`
		PubMed   string `json:"PubMed"`
		PMCID    string `json:"PubMedCentral"`
	} `json:"externalIds"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

func (p semanticPaper) publication() types.Publication {
	pub := types.Publication{
		Title:    p.Title,
		Abstract: p.Abstract,
		Year:     p.Year,
		Journal:  p.Venue,
		PMID:     p.ExternalIDs.PubMed,
		DOI:      p.ExternalIDs.DOI,
		ArxivID:  p.ExternalIDs.ArXiv,
		Source:   "semantic_scholar",
	}
	if p.ExternalIDs.PMCID != "" {
		pub.PMCID = p.ExternalIDs.PMCID
		if !strings.HasPrefix(pub.PMCID, "PMC") {
			pub.PMCID = "PMC" + pub.PMCID
		}
	}
	for _, a := range p.Authors {
		pub.Authors = append(pub.Authors, a.Name)
	}
	return pub
}

// GetPaper resolves a paper by Semantic Scholar's composite identifiers,
// e.g. "PMID:19753302" or "DOI:10.1038/nmeth.1923".
func (c *SemanticScholarClient) GetPaper(ctx context.Context, id string) (types.Publication, error) {
	p := url.Values{"fields": {semanticFields}}
	var paper semanticPaper
	err := c.getJSON(ctx, SemanticBase+"/paper/"+url.PathEscape(id)+"?"+p.Encode(), c.header(), &paper)
	if err != nil {
		return types.Publication{}, err
	}
	if paper.PaperID == "" {
		return types.Publication{}, &Error{Source: c.name, Category: CategoryNotFound,
			Err: fmt.Errorf("no Semantic Scholar paper for %q", id)}
	}
	return paper.publication(), nil
}

// GetCitations returns papers citing the given identifier, usually
// "PMID:<pmid>" for citation discovery.
func (c *SemanticScholarClient) GetCitations(ctx context.Context, id string, max int) ([]types.Publication, error) {
	if max <= 0 {
		max = 100
	}
	if max > 1000 {
		max = 1000
	}
	p := url.Values{
		"fields": {semanticFields},
		"limit":  {strconv.Itoa(max)},
	}
	var out struct {
		Data []struct {
			CitingPaper semanticPaper `json:"citingPaper"`
		} `json:"data"`
	}
	err := c.getJSON(ctx, SemanticBase+"/paper/"+url.PathEscape(id)+"/citations?"+p.Encode(), c.header(), &out)
	if err != nil {
		return nil, err
	}
	pubs := make([]types.Publication, 0, len(out.Data))
	for _, d := range out.Data {
		if d.CitingPaper.PaperID == "" && d.CitingPaper.Title == "" {
			continue
		}
		pubs = append(pubs, d.CitingPaper.publication())
	}
	return pubs, nil
}
