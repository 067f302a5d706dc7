// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// EuropePMCBase is the Europe PMC REST API root. Declared as a var so
// tests can substitute an httptest server.
var EuropePMCBase = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// EuropePMCClient queries the Europe PMC REST API: literature search,
// citation lists, and full-text URL discovery. Europe PMC publishes no
// hard budget; the client stays polite at 5 rps.
type EuropePMCClient struct {
	client
}

// NewEuropePMCClient builds the client.
func NewEuropePMCClient(cfg types.ClientConfig, shared types.HTTPConfig) *EuropePMCClient {
	return &EuropePMCClient{client: newClient("europepmc", 5, cfg, shared)}
}

type europePMCResult struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	PMID       string `json:"pmid"`
	PMCID      string `json:"pmcid"`
	DOI        string `json:"doi"`
	Title      string `json:"title"`
	AuthorText string `json:"authorString"`
	Journal    string `json:"journalTitle"`
	PubYear    string `json:"pubYear"`
	Abstract   string `json:"abstractText"`
	FullText   *struct {
		URLList []struct {
			URL           string `json:"url"`
			DocumentStyle string `json:"documentStyle"`
			Availability  string `json:"availability"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

func (r europePMCResult) publication() types.Publication {
	pub := types.Publication{
		PMID:     r.PMID,
		PMCID:    r.PMCID,
		DOI:      r.DOI,
		Title:    r.Title,
		Journal:  r.Journal,
		Abstract: r.Abstract,
		Source:   "europepmc",
	}
	// Citation records from the MED source carry the PMID in "id" with
	// no separate pmid field.
	if pub.PMID == "" && r.Source == "MED" {
		pub.PMID = r.ID
	}
	if r.AuthorText != "" {
		for _, a := range strings.Split(r.AuthorText, ", ") {
			a = strings.TrimSuffix(strings.TrimSpace(a), ".")
			if a != "" {
				pub.Authors = append(pub.Authors, a)
			}
		}
	}
	if y, err := strconv.Atoi(r.PubYear); err == nil {
		pub.Year = y
	}
	return pub
}

type europePMCSearchResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

// Search runs a Europe PMC query and returns publication records.
func (c *EuropePMCClient) Search(ctx context.Context, query string, max int) ([]types.Publication, error) {
	if max <= 0 {
		max = 25
	}
	p := url.Values{
		"query":    {query},
		"format":   {"json"},
		"pageSize": {strconv.Itoa(max)},
	}
	var out europePMCSearchResponse
	if err := c.getJSON(ctx, EuropePMCBase+"/search?"+p.Encode(), nil, &out); err != nil {
		return nil, err
	}
	pubs := make([]types.Publication, 0, len(out.ResultList.Result))
	for _, r := range out.ResultList.Result {
		pubs = append(pubs, r.publication())
	}
	return pubs, nil
}

// GetCitations returns papers citing the given PMID.
func (c *EuropePMCClient) GetCitations(ctx context.Context, pmid string, max int) ([]types.Publication, error) {
	if max <= 0 {
		max = 100
	}
	p := url.Values{
		"format":   {"json"},
		"pageSize": {strconv.Itoa(max)},
	}
	var out struct {
		CitationList struct {
			Citation []europePMCResult `json:"citation"`
		} `json:"citationList"`
	}
	u := fmt.Sprintf("%s/MED/%s/citations?%s", EuropePMCBase, url.PathEscape(pmid), p.Encode())
	if err := c.getJSON(ctx, u, nil, &out); err != nil {
		return nil, err
	}
	pubs := make([]types.Publication, 0, len(out.CitationList.Citation))
	for _, r := range out.CitationList.Citation {
		pubs = append(pubs, r.publication())
	}
	return pubs, nil
}

// GetFullTextURLs looks up a publication's full-text URLs by PMID or
// PMCID, classified later by the waterfall.
func (c *EuropePMCClient) GetFullTextURLs(ctx context.Context, pub types.Publication) ([]types.URLCandidate, error) {
	query := ""
	switch {
	case pub.PMCID != "":
		query = "PMCID:" + pub.PMCID
	case pub.PMID != "":
		query = "EXT_ID:" + pub.PMID + " AND SRC:MED"
	case pub.DOI != "":
		query = `DOI:"` + pub.DOI + `"`
	default:
		return nil, nil
	}

	p := url.Values{
		"query":      {query},
		"format":     {"json"},
		"resultType": {"core"},
		"pageSize":   {"1"},
	}
	var out europePMCSearchResponse
	if err := c.getJSON(ctx, EuropePMCBase+"/search?"+p.Encode(), nil, &out); err != nil {
		return nil, err
	}

	var candidates []types.URLCandidate
	for _, r := range out.ResultList.Result {
		if r.FullText == nil {
			continue
		}
		for _, u := range r.FullText.URLList {
			confidence := 0.6
			if strings.EqualFold(u.DocumentStyle, "pdf") {
				confidence = 0.85
			}
			candidates = append(candidates, types.URLCandidate{
				URL:        u.URL,
				Source:     c.name,
				Confidence: confidence,
				Metadata: map[string]any{
					"document_style": u.DocumentStyle,
					"availability":   u.Availability,
				},
			})
		}
	}
	return candidates, nil
}
