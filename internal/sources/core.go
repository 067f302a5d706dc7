// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// COREBase is the CORE v3 API root. Declared as a var so tests can
// substitute an httptest server.
var COREBase = "https://api.core.ac.uk/v3"

// COREClient queries the CORE aggregator for repository-hosted PDFs.
// CORE wants an API key for sustained use; the client stays at 2 rps.
type COREClient struct {
	client
	apiKey string
}

// NewCOREClient builds the client.
func NewCOREClient(cfg types.ClientConfig, shared types.HTTPConfig) *COREClient {
	return &COREClient{
		client: newClient("core", 2, cfg, shared),
		apiKey: cfg.APIKey,
	}
}

func (c *COREClient) header() http.Header {
	if c.apiKey == "" {
		return nil
	}
	return http.Header{"Authorization": {"Bearer " + c.apiKey}}
}

type coreWork struct {
	Title       string `json:"title"`
	DownloadURL string `json:"downloadUrl"`
	DOI         string `json:"doi"`
	Links       []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"links"`
}

// Search finds repository copies by DOI when available, else by title,
// and returns waterfall candidates for every download link.
func (c *COREClient) Search(ctx context.Context, pub types.Publication) ([]types.URLCandidate, error) {
	var q string
	switch {
	case pub.DOI != "":
		q = `doi:"` + pub.DOI + `"`
	case pub.Title != "":
		q = `title:"` + pub.Title + `"`
	default:
		return nil, nil
	}

	p := url.Values{
		"q":     {q},
		"limit": {"5"},
	}
	var out struct {
		TotalHits int        `json:"totalHits"`
		Results   []coreWork `json:"results"`
	}
	if err := c.getJSON(ctx, COREBase+"/search/works?"+p.Encode(), c.header(), &out); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var candidates []types.URLCandidate
	add := func(u string, confidence float64) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		candidates = append(candidates, types.URLCandidate{
			URL:        u,
			Source:     c.name,
			Confidence: confidence,
		})
	}
	for _, w := range out.Results {
		// When searching by title, require a DOI match if both sides have one.
		if pub.DOI != "" && w.DOI != "" && !strings.EqualFold(pub.DOI, w.DOI) {
			continue
		}
		add(w.DownloadURL, 0.7)
		for _, l := range w.Links {
			if strings.EqualFold(l.Type, "download") {
				add(l.URL, 0.6)
			}
		}
	}
	return candidates, nil
}
