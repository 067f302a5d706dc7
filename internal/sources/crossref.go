// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// CrossrefBase is the Crossref works API root. Declared as a var so tests
// can substitute an httptest server.
var CrossrefBase = "https://api.crossref.org/works"

// CrossrefClient resolves DOIs to publisher metadata and landing URLs.
// Crossref is the waterfall's last resort: its URLs are mostly landing
// pages behind the publisher.
type CrossrefClient struct {
	client
	email string
}

// NewCrossrefClient builds the client.
func NewCrossrefClient(cfg types.ClientConfig, shared types.HTTPConfig) *CrossrefClient {
	return &CrossrefClient{
		client: newClient("crossref", 2, cfg, shared),
		email:  cfg.Email,
	}
}

type crossrefWork struct {
	Title []string `json:"title"`
	URL   string   `json:"URL"`
	Link  []struct {
		URL         string `json:"URL"`
		ContentType string `json:"content-type"`
	} `json:"link"`
	ContainerTitle []string `json:"container-title"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
}

type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

// Lookup resolves a DOI, returning the publication metadata and waterfall
// candidates for the landing URL plus any text-mining PDF links.
func (c *CrossrefClient) Lookup(ctx context.Context, doi string) (types.Publication, []types.URLCandidate, error) {
	u := CrossrefBase + "/" + url.PathEscape(doi)
	if c.email != "" {
		u += "?mailto=" + url.QueryEscape(c.email)
	}
	var out crossrefResponse
	if err := c.getJSON(ctx, u, nil, &out); err != nil {
		return types.Publication{}, nil, err
	}
	w := out.Message

	pub := types.Publication{DOI: doi, Source: c.name}
	if len(w.Title) > 0 {
		pub.Title = w.Title[0]
	}
	if len(w.ContainerTitle) > 0 {
		pub.Journal = w.ContainerTitle[0]
	}
	for _, a := range w.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			pub.Authors = append(pub.Authors, name)
		}
	}
	if len(w.Issued.DateParts) > 0 && len(w.Issued.DateParts[0]) > 0 {
		pub.Year = w.Issued.DateParts[0][0]
	}

	var candidates []types.URLCandidate
	for _, l := range w.Link {
		if strings.Contains(l.ContentType, "pdf") && l.URL != "" {
			candidates = append(candidates, types.URLCandidate{
				URL:        l.URL,
				Source:     c.name,
				Confidence: 0.6,
				Metadata:   map[string]any{"content_type": l.ContentType},
			})
		}
	}
	if w.URL != "" {
		candidates = append(candidates, types.URLCandidate{
			URL:        w.URL,
			Source:     c.name,
			Confidence: 0.3,
		})
	}
	if pub.Title == "" && len(candidates) == 0 {
		return pub, nil, &Error{Source: c.name, Category: CategoryNotFound,
			Err: fmt.Errorf("empty Crossref record for %s", doi)}
	}
	return pub, candidates, nil
}
