// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// UnpaywallBase is the Unpaywall API root. Declared as a var so tests can
// substitute an httptest server.
var UnpaywallBase = "https://api.unpaywall.org/v2"

// UnpaywallClient resolves DOIs to open-access locations. Unpaywall asks
// for an email parameter and politeness; the client stays at 5 rps.
type UnpaywallClient struct {
	client
	email string
}

// NewUnpaywallClient builds the client. Lookups without an email are
// rejected by the API, so Enabled reports whether the source is usable.
func NewUnpaywallClient(cfg types.ClientConfig, shared types.HTTPConfig) *UnpaywallClient {
	return &UnpaywallClient{
		client: newClient("unpaywall", 5, cfg, shared),
		email:  cfg.Email,
	}
}

// Enabled reports whether the client has the email Unpaywall requires.
func (c *UnpaywallClient) Enabled() bool { return c.email != "" }

// OALocation is one open-access location reported by Unpaywall.
type OALocation struct {
	PDFURL     string `json:"url_for_pdf"`
	LandingURL string `json:"url_for_landing_page"`
	Version    string `json:"version"`
	License    string `json:"license"`
}

// OAResult is the Unpaywall lookup outcome for one DOI.
type OAResult struct {
	DOI          string       `json:"doi"`
	IsOA         bool         `json:"is_oa"`
	BestLocation *OALocation  `json:"best_oa_location"`
	Locations    []OALocation `json:"oa_locations"`
}

// Lookup resolves a DOI to its open-access locations.
func (c *UnpaywallClient) Lookup(ctx context.Context, doi string) (OAResult, error) {
	if !c.Enabled() {
		return OAResult{}, &Error{Source: c.name, Category: CategoryNotFound,
			Err: fmt.Errorf("unpaywall disabled: no email configured")}
	}
	p := url.Values{"email": {c.email}}
	var out OAResult
	u := UnpaywallBase + "/" + url.PathEscape(doi) + "?" + p.Encode()
	if err := c.getJSON(ctx, u, nil, &out); err != nil {
		return OAResult{}, err
	}
	return out, nil
}

// URLCandidates maps a lookup result onto waterfall candidates: the best
// PDF location first, then the landing page.
func (c *UnpaywallClient) URLCandidates(ctx context.Context, doi string) ([]types.URLCandidate, error) {
	res, err := c.Lookup(ctx, doi)
	if err != nil {
		return nil, err
	}
	if !res.IsOA || res.BestLocation == nil {
		return nil, nil
	}

	var candidates []types.URLCandidate
	if res.BestLocation.PDFURL != "" {
		candidates = append(candidates, types.URLCandidate{
			URL:        res.BestLocation.PDFURL,
			Source:     c.name,
			Confidence: 0.9,
			Metadata:   map[string]any{"license": res.BestLocation.License, "version": res.BestLocation.Version},
		})
	}
	if res.BestLocation.LandingURL != "" {
		candidates = append(candidates, types.URLCandidate{
			URL:        res.BestLocation.LandingURL,
			Source:     c.name,
			Confidence: 0.5,
		})
	}
	return candidates, nil
}
