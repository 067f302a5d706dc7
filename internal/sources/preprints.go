// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// Preprint server endpoints. Declared as vars so tests can substitute
// httptest servers.
var (
	BiorxivAPIBase = "https://api.biorxiv.org/details"
	BiorxivPDFBase = "https://www.biorxiv.org/content"
	MedrxivPDFBase = "https://www.medrxiv.org/content"
	ArxivPDFBase   = "https://arxiv.org/pdf/"
	ArxivAPIBase   = "https://export.arxiv.org/api/query"
)

// BiorxivClient resolves DOIs against the bioRxiv and medRxiv preprint
// servers. Their shared API takes the server name in the path.
type BiorxivClient struct {
	client
}

// NewBiorxivClient builds the client.
func NewBiorxivClient(cfg types.ClientConfig, shared types.HTTPConfig) *BiorxivClient {
	return &BiorxivClient{client: newClient("biorxiv", 2, cfg, shared)}
}

type biorxivDetail struct {
	Collection []struct {
		DOI     string `json:"doi"`
		Version string `json:"version"`
		Server  string `json:"server"`
	} `json:"collection"`
}

// Lookup resolves a DOI to a preprint PDF URL, trying bioRxiv then
// medRxiv. Preprint DOIs use the 10.1101 prefix; anything else misses
// without a network call.
func (c *BiorxivClient) Lookup(ctx context.Context, doi string) ([]types.URLCandidate, error) {
	if !strings.HasPrefix(doi, "10.1101/") {
		return nil, nil
	}

	for _, server := range []string{"biorxiv", "medrxiv"} {
		u := fmt.Sprintf("%s/%s/%s", BiorxivAPIBase, server, url.PathEscape(doi))
		var out biorxivDetail
		if err := c.getJSON(ctx, u, nil, &out); err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if len(out.Collection) == 0 {
			continue
		}
		latest := out.Collection[len(out.Collection)-1]
		base := BiorxivPDFBase
		if latest.Server == "medrxiv" || server == "medrxiv" {
			base = MedrxivPDFBase
		}
		pdf := fmt.Sprintf("%s/%sv%s.full.pdf", base, doi, latest.Version)
		return []types.URLCandidate{{
			URL:        pdf,
			Source:     c.name,
			Confidence: 0.9,
			Metadata:   map[string]any{"server": server, "version": latest.Version},
		}}, nil
	}
	return nil, nil
}

// ArxivClient resolves arXiv IDs to PDF URLs. The PDF endpoint is
// deterministic, so Lookup is offline; Verify hits the Atom API to
// confirm the ID exists.
type ArxivClient struct {
	client
}

// NewArxivClient builds the client.
func NewArxivClient(cfg types.ClientConfig, shared types.HTTPConfig) *ArxivClient {
	return &ArxivClient{client: newClient("arxiv", 1, cfg, shared)}
}

// Lookup maps an arXiv ID to its PDF URL.
func (c *ArxivClient) Lookup(arxivID string) []types.URLCandidate {
	id := strings.TrimPrefix(strings.TrimSpace(arxivID), "arXiv:")
	if id == "" {
		return nil
	}
	return []types.URLCandidate{{
		URL:        ArxivPDFBase + id,
		Source:     c.name,
		Confidence: 0.95,
	}}
}

type arxivFeed struct {
	Entries []struct {
		Title string `xml:"title"`
		ID    string `xml:"id"`
	} `xml:"entry"`
}

// Verify confirms the arXiv ID resolves to an entry.
func (c *ArxivClient) Verify(ctx context.Context, arxivID string) error {
	id := strings.TrimPrefix(strings.TrimSpace(arxivID), "arXiv:")
	var feed arxivFeed
	if err := c.getXML(ctx, ArxivAPIBase+"?id_list="+url.QueryEscape(id), nil, &feed); err != nil {
		return err
	}
	if len(feed.Entries) == 0 {
		return &Error{Source: c.name, Category: CategoryNotFound,
			Err: fmt.Errorf("no arXiv entry for %s", id)}
	}
	return nil
}
