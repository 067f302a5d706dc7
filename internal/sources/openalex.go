// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// OpenAlexBase is the OpenAlex API root. Declared as a var so tests can
// substitute an httptest server.
var OpenAlexBase = "https://api.openalex.org"

// OpenAlexClient queries the OpenAlex works API. OpenAlex needs no key;
// an email in the mailto parameter joins the polite pool. Budget 10 rps.
type OpenAlexClient struct {
	client
	email string
}

// NewOpenAlexClient builds the client.
func NewOpenAlexClient(cfg types.ClientConfig, shared types.HTTPConfig) *OpenAlexClient {
	return &OpenAlexClient{
		client: newClient("openalex", 10, cfg, shared),
		email:  cfg.Email,
	}
}

// openAlexWork is the subset of an OpenAlex work document the pipeline
// consumes.
type openAlexWork struct {
	ID              string            `json:"id"`
	DOI             string            `json:"doi"`
	Title           string            `json:"title"`
	DisplayName     string            `json:"display_name"`
	PublicationYear int               `json:"publication_year"`
	IDs             map[string]string `json:"ids"`
	Authorships     []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation *struct {
		LandingPageURL string `json:"landing_page_url"`
		PDFURL         string `json:"pdf_url"`
		Source         *struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	OpenAccess *struct {
		IsOA  bool   `json:"is_oa"`
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

type openAlexList struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []openAlexWork `json:"results"`
}

// Work is an OpenAlex work mapped to the pipeline's publication record,
// keeping the OpenAlex work ID and any open-access URLs for the waterfall.
type Work struct {
	WorkID      string
	Publication types.Publication
	PDFURL      string
	LandingURL  string
	IsOA        bool
}

func (c *OpenAlexClient) mailto(p url.Values) url.Values {
	if c.email != "" {
		p.Set("mailto", c.email)
	}
	return p
}

func (w openAlexWork) toWork() Work {
	pub := types.Publication{
		Title:  w.Title,
		Year:   w.PublicationYear,
		Source: "openalex",
	}
	if pub.Title == "" {
		pub.Title = w.DisplayName
	}
	pub.DOI = strings.TrimPrefix(strings.TrimPrefix(w.DOI, "https://doi.org/"), "http://doi.org/")
	if pmid, ok := w.IDs["pmid"]; ok {
		pub.PMID = strings.TrimPrefix(pmid, "https://pubmed.ncbi.nlm.nih.gov/")
	}
	if pmc, ok := w.IDs["pmcid"]; ok {
		if i := strings.Index(pmc, "PMC"); i >= 0 {
			pub.PMCID = pmc[i:]
		}
	}
	for _, a := range w.Authorships {
		pub.Authors = append(pub.Authors, a.Author.DisplayName)
	}
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		pub.Journal = w.PrimaryLocation.Source.DisplayName
	}
	if len(w.AbstractInvertedIndex) > 0 {
		pub.Abstract = decodeInvertedAbstract(w.AbstractInvertedIndex)
	}

	out := Work{WorkID: workID(w.ID), Publication: pub}
	if w.PrimaryLocation != nil {
		out.PDFURL = w.PrimaryLocation.PDFURL
		out.LandingURL = w.PrimaryLocation.LandingPageURL
	}
	if w.OpenAccess != nil {
		out.IsOA = w.OpenAccess.IsOA
		if out.PDFURL == "" {
			out.PDFURL = w.OpenAccess.OAURL
		}
	}
	return out
}

// workID strips the https://openalex.org/ prefix from a work URI.
func workID(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// decodeInvertedAbstract rebuilds the abstract text from OpenAlex's
// inverted index representation.
func decodeInvertedAbstract(idx map[string][]int) string {
	type posWord struct {
		pos  int
		word string
	}
	var words []posWord
	for word, positions := range idx {
		for _, p := range positions {
			words = append(words, posWord{p, word})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}

// GetWork resolves a work by DOI or PMID. The id argument is either a bare
// DOI ("10.x/y") or a PMID ("12345").
func (c *OpenAlexClient) GetWork(ctx context.Context, id string) (Work, error) {
	var path string
	if strings.HasPrefix(id, "10.") {
		path = "/works/https://doi.org/" + id
	} else {
		path = "/works/pmid:" + id
	}
	p := c.mailto(url.Values{})
	var w openAlexWork
	if err := c.getJSON(ctx, OpenAlexBase+path+"?"+p.Encode(), nil, &w); err != nil {
		return Work{}, err
	}
	if w.ID == "" {
		return Work{}, &Error{Source: c.name, Category: CategoryNotFound,
			Err: fmt.Errorf("no OpenAlex work for %q", id)}
	}
	return w.toWork(), nil
}

// GetCitations returns works citing the given OpenAlex work ID, paging
// through the cites filter up to max results.
func (c *OpenAlexClient) GetCitations(ctx context.Context, workID string, max int) ([]Work, error) {
	if max <= 0 {
		max = 100
	}
	perPage := max
	if perPage > 200 {
		perPage = 200
	}

	var works []Work
	cursor := "*"
	for len(works) < max && cursor != "" {
		p := c.mailto(url.Values{
			"filter":   {"cites:" + workID},
			"per_page": {strconv.Itoa(perPage)},
			"cursor":   {cursor},
		})
		var out struct {
			Meta struct {
				Count      int    `json:"count"`
				NextCursor string `json:"next_cursor"`
			} `json:"meta"`
			Results []openAlexWork `json:"results"`
		}
		if err := c.getJSON(ctx, OpenAlexBase+"/works?"+p.Encode(), nil, &out); err != nil {
			return nil, err
		}
		for _, w := range out.Results {
			works = append(works, w.toWork())
			if len(works) >= max {
				break
			}
		}
		if len(out.Results) < perPage {
			break
		}
		cursor = out.Meta.NextCursor
	}
	return works, nil
}

// SearchWorks runs a free-text works search.
func (c *OpenAlexClient) SearchWorks(ctx context.Context, query string, max int) ([]Work, error) {
	if max <= 0 {
		max = 20
	}
	if max > 200 {
		max = 200
	}
	p := c.mailto(url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(max)},
	})
	var out openAlexList
	if err := c.getJSON(ctx, OpenAlexBase+"/works?"+p.Encode(), nil, &out); err != nil {
		return nil, err
	}
	works := make([]Work, 0, len(out.Results))
	for _, w := range out.Results {
		works = append(works, w.toWork())
	}
	return works, nil
}
