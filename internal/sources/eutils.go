// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// EUtilsBase is the NCBI E-utilities endpoint root. Declared as a var so
// tests can substitute an httptest server.
var EUtilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// EUtilsClient talks to NCBI E-utilities: esearch, esummary, efetch, and
// elink over the gds (GEO) and pubmed databases. The budget is 3 rps
// without an API key and 10 rps with one.
type EUtilsClient struct {
	client
	apiKey string
}

// NewEUtilsClient builds the client. When cfg.APIKey is set the rate
// budget rises from 3 to 10 requests per second.
func NewEUtilsClient(cfg types.ClientConfig, shared types.HTTPConfig) *EUtilsClient {
	rps := 3.0
	if cfg.APIKey != "" {
		rps = 10.0
	}
	return &EUtilsClient{
		client: newClient("pubmed", rps, cfg, shared),
		apiKey: cfg.APIKey,
	}
}

func (c *EUtilsClient) params(extra url.Values) url.Values {
	p := url.Values{}
	p.Set("retmode", "json")
	if c.apiKey != "" {
		p.Set("api_key", c.apiKey)
	}
	for k, vs := range extra {
		for _, v := range vs {
			p.Set(k, v)
		}
	}
	return p
}

type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// ESearch runs an esearch query against db and returns the matching UIDs.
func (c *EUtilsClient) ESearch(ctx context.Context, db, term string, retmax int) ([]string, error) {
	if retmax <= 0 {
		retmax = 20
	}
	p := c.params(url.Values{
		"db":     {db},
		"term":   {term},
		"retmax": {strconv.Itoa(retmax)},
	})
	var out esearchResponse
	if err := c.getJSON(ctx, EUtilsBase+"/esearch.fcgi?"+p.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.ESearchResult.IDList, nil
}

// esummaryResult is the shared shape of esummary JSON: a result object
// keyed by UID plus a "uids" ordering list.
type esummaryResult struct {
	Result map[string]json.RawMessage `json:"result"`
}

func (c *EUtilsClient) esummary(ctx context.Context, db string, ids []string) (map[string]json.RawMessage, []string, error) {
	p := c.params(url.Values{
		"db": {db},
		"id": {strings.Join(ids, ",")},
	})
	var out esummaryResult
	if err := c.getJSON(ctx, EUtilsBase+"/esummary.fcgi?"+p.Encode(), nil, &out); err != nil {
		return nil, nil, err
	}
	var uids []string
	if raw, ok := out.Result["uids"]; ok {
		if err := json.Unmarshal(raw, &uids); err != nil {
			return nil, nil, malformed(c.name, err)
		}
	}
	return out.Result, uids, nil
}

// gdsSummary is one GEO DataSets esummary document.
type gdsSummary struct {
	Accession string          `json:"accession"`
	Title     string          `json:"title"`
	Summary   string          `json:"summary"`
	Taxon     string          `json:"taxon"`
	GPL       string          `json:"gpl"`
	NSamples  int             `json:"n_samples"`
	GDSType   string          `json:"gdstype"`
	EntryType string          `json:"entrytype"`
	PDat      string          `json:"pdat"`
	PubMedIDs []json.Number   `json:"pubmedids"`
	Samples   []gdsSampleInfo `json:"samples"`
}

type gdsSampleInfo struct {
	Accession string `json:"accession"`
	Title     string `json:"title"`
}

func (s gdsSummary) dataset() types.GEODataset {
	ds := types.GEODataset{
		GEOID:       s.Accession,
		Title:       s.Title,
		Summary:     s.Summary,
		Organism:    s.Taxon,
		Platform:    s.GPL,
		SampleCount: s.NSamples,
		Metadata:    map[string]any{},
	}
	if ds.SampleCount == 0 && len(s.Samples) > 0 {
		ds.SampleCount = len(s.Samples)
	}
	if s.GPL != "" && !strings.HasPrefix(s.GPL, "GPL") {
		ds.Platform = "GPL" + s.GPL
	}
	for _, id := range s.PubMedIDs {
		ds.OriginalPMIDs = append(ds.OriginalPMIDs, id.String())
	}
	if s.GDSType != "" {
		ds.Metadata["dataset_type"] = s.GDSType
	}
	if s.EntryType != "" {
		ds.Metadata["entry_type"] = s.EntryType
	}
	if s.PDat != "" {
		ds.Metadata["publication_date"] = s.PDat
	}
	return ds
}

// FetchGEODataset resolves an accession like GSE12345 to its series
// metadata via esearch + esummary over db=gds.
func (c *EUtilsClient) FetchGEODataset(ctx context.Context, geoID string) (types.GEODataset, error) {
	ids, err := c.ESearch(ctx, "gds", geoID+"[ACCN]", 5)
	if err != nil {
		return types.GEODataset{}, err
	}
	if len(ids) == 0 {
		return types.GEODataset{}, &Error{Source: c.name, Category: CategoryNotFound,
			Err: fmt.Errorf("no GEO record for %s", geoID)}
	}

	result, uids, err := c.esummary(ctx, "gds", ids)
	if err != nil {
		return types.GEODataset{}, err
	}
	for _, uid := range uids {
		var s gdsSummary
		if err := json.Unmarshal(result[uid], &s); err != nil {
			return types.GEODataset{}, malformed(c.name, err)
		}
		if strings.EqualFold(s.Accession, geoID) {
			ds := s.dataset()
			ds.GEOID = strings.ToUpper(geoID)
			return ds, nil
		}
	}
	return types.GEODataset{}, &Error{Source: c.name, Category: CategoryNotFound,
		Err: fmt.Errorf("accession %s not in esummary result", geoID)}
}

// SearchGEO runs a keyword search over the GEO DataSets database and
// returns series records.
func (c *EUtilsClient) SearchGEO(ctx context.Context, query string, max int) ([]types.GEODataset, error) {
	term := query
	if !strings.Contains(term, "[") {
		// Restrict keyword searches to series entries.
		term = term + " AND gse[ETYP]"
	}
	ids, err := c.ESearch(ctx, "gds", term, max)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	result, uids, err := c.esummary(ctx, "gds", ids)
	if err != nil {
		return nil, err
	}
	var datasets []types.GEODataset
	for _, uid := range uids {
		var s gdsSummary
		if err := json.Unmarshal(result[uid], &s); err != nil {
			continue
		}
		if s.Accession == "" {
			continue
		}
		datasets = append(datasets, s.dataset())
	}
	return datasets, nil
}

// pubmedSummary is one PubMed esummary document.
type pubmedSummary struct {
	UID       string `json:"uid"`
	Title     string `json:"title"`
	FullJourn string `json:"fulljournalname"`
	PubDate   string `json:"pubdate"`
	Authors   []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}

func (s pubmedSummary) publication() types.Publication {
	pub := types.Publication{
		PMID:    s.UID,
		Title:   s.Title,
		Journal: s.FullJourn,
		Source:  "pubmed",
	}
	for _, a := range s.Authors {
		pub.Authors = append(pub.Authors, a.Name)
	}
	for _, id := range s.ArticleIDs {
		switch id.IDType {
		case "doi":
			pub.DOI = id.Value
		case "pmc", "pmcid":
			v := id.Value
			if i := strings.Index(v, "PMC"); i >= 0 {
				v = v[i:]
				if j := strings.IndexAny(v[3:], "./ "); j >= 0 {
					v = v[:3+j]
				}
			}
			pub.PMCID = v
		}
	}
	if len(s.PubDate) >= 4 {
		if y, err := strconv.Atoi(s.PubDate[:4]); err == nil {
			pub.Year = y
		}
	}
	return pub
}

// FetchSummaries returns publication records for a set of PMIDs.
func (c *EUtilsClient) FetchSummaries(ctx context.Context, pmids []string) ([]types.Publication, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	result, _, err := c.esummary(ctx, "pubmed", pmids)
	if err != nil {
		return nil, err
	}
	// The response may carry extra uids; only the requested ones count.
	var pubs []types.Publication
	for _, pmid := range pmids {
		raw, ok := result[pmid]
		if !ok {
			continue
		}
		var s pubmedSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s.UID == "" {
			continue
		}
		pubs = append(pubs, s.publication())
	}
	return pubs, nil
}

// SearchPubMed runs a PubMed term search and returns publication records.
// Mention-based citation discovery searches the literal GEO accession
// through this operation.
func (c *EUtilsClient) SearchPubMed(ctx context.Context, term string, max int) ([]types.Publication, error) {
	ids, err := c.ESearch(ctx, "pubmed", term, max)
	if err != nil {
		return nil, err
	}
	return c.FetchSummaries(ctx, ids)
}

type elinkResponse struct {
	LinkSets []struct {
		LinkSetDBs []struct {
			LinkName string        `json:"linkname"`
			Links    []json.Number `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

// LinkedCitations returns the papers PubMed records as citing the given
// PMID, via elink's pubmed_pubmed_citedin link set.
func (c *EUtilsClient) LinkedCitations(ctx context.Context, pmid string, max int) ([]types.Publication, error) {
	p := c.params(url.Values{
		"dbfrom":   {"pubmed"},
		"db":       {"pubmed"},
		"id":       {pmid},
		"linkname": {"pubmed_pubmed_citedin"},
	})
	var out elinkResponse
	if err := c.getJSON(ctx, EUtilsBase+"/elink.fcgi?"+p.Encode(), nil, &out); err != nil {
		return nil, err
	}

	var citing []string
	for _, set := range out.LinkSets {
		for _, db := range set.LinkSetDBs {
			if db.LinkName != "pubmed_pubmed_citedin" {
				continue
			}
			for _, id := range db.Links {
				citing = append(citing, id.String())
				if max > 0 && len(citing) >= max {
					break
				}
			}
		}
	}
	if len(citing) == 0 {
		return nil, nil
	}
	return c.FetchSummaries(ctx, citing)
}
