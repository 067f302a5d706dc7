// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// PMC endpoints. Declared as vars so tests can substitute httptest servers.
var (
	PMCOABase      = "https://www.ncbi.nlm.nih.gov/pmc/utils/oa/oa.fcgi"
	PMCArticleBase = "https://www.ncbi.nlm.nih.gov/pmc/articles"
	PMCEuropeBase  = "https://europepmc.org/articles"
	PMCIDConvBase  = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"
)

// PMCClient derives PubMed Central full-text URLs. PMC is the highest
// priority free source: four URL patterns per article, from the OA API's
// canonical package to reader views.
type PMCClient struct {
	client
}

// NewPMCClient builds the client.
func NewPMCClient(cfg types.ClientConfig, shared types.HTTPConfig) *PMCClient {
	return &PMCClient{client: newClient("pmc", 3, cfg, shared)}
}

type idConvResponse struct {
	Records []struct {
		PMID  string `json:"pmid"`
		PMCID string `json:"pmcid"`
		DOI   string `json:"doi"`
	} `json:"records"`
}

// ResolvePMCID maps a PMID or DOI to a PMCID via the ID converter.
func (c *PMCClient) ResolvePMCID(ctx context.Context, pub types.Publication) (string, error) {
	if pub.PMCID != "" {
		return pub.PMCID, nil
	}
	id := pub.PMID
	if id == "" {
		id = pub.DOI
	}
	if id == "" {
		return "", &Error{Source: c.name, Category: CategoryNotFound,
			Err: fmt.Errorf("no PMID or DOI to resolve")}
	}

	p := url.Values{
		"ids":    {id},
		"format": {"json"},
		"tool":   {"omics-oracle"},
	}
	var out idConvResponse
	if err := c.getJSON(ctx, PMCIDConvBase+"?"+p.Encode(), nil, &out); err != nil {
		return "", err
	}
	for _, r := range out.Records {
		if r.PMCID != "" {
			return r.PMCID, nil
		}
	}
	return "", &Error{Source: c.name, Category: CategoryNotFound,
		Err: fmt.Errorf("no PMC record for %s", id)}
}

// URLCandidates returns the four PMC URL patterns for a publication that
// has (or can resolve) a PMCID: OA service PDF, direct article PDF,
// Europe PMC mirror, and the reader view.
func (c *PMCClient) URLCandidates(ctx context.Context, pub types.Publication) ([]types.URLCandidate, error) {
	pmcid, err := c.ResolvePMCID(ctx, pub)
	if err != nil {
		return nil, err
	}
	pmcid = strings.TrimSpace(pmcid)
	if !strings.HasPrefix(pmcid, "PMC") {
		pmcid = "PMC" + pmcid
	}

	return []types.URLCandidate{
		{
			URL:        fmt.Sprintf("%s?id=%s&format=pdf", PMCOABase, pmcid),
			Source:     c.name,
			Confidence: 0.9,
			Metadata:   map[string]any{"pattern": "oa_service"},
		},
		{
			URL:        fmt.Sprintf("%s/%s/pdf/", PMCArticleBase, pmcid),
			Source:     c.name,
			Confidence: 0.85,
			Metadata:   map[string]any{"pattern": "direct_pdf"},
		},
		{
			URL:        fmt.Sprintf("%s/%s?pdf=render", PMCEuropeBase, pmcid),
			Source:     c.name,
			Confidence: 0.8,
			Metadata:   map[string]any{"pattern": "europepmc_render"},
		},
		{
			URL:        fmt.Sprintf("%s/%s/", PMCArticleBase, pmcid),
			Source:     c.name,
			Confidence: 0.5,
			Metadata:   map[string]any{"pattern": "reader"},
		},
	}, nil
}
