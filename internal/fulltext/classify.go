// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// pdfHosts serve PDFs regardless of path shape: preprint servers, PMC
// mirrors, and repository front-ends.
var pdfHosts = map[string]bool{
	"arxiv.org":            true,
	"www.biorxiv.org":      true,
	"www.medrxiv.org":      true,
	"europepmc.org":        true,
	"www.ncbi.nlm.nih.gov": true,
	"pmc.ncbi.nlm.nih.gov": true,
}

var (
	pdfPathPattern = regexp.MustCompile(`(?i)(\.pdf($|\?)|/pdf(/|$)|format=pdf|type=printable|/epdf(/|$))`)
	landingPattern = regexp.MustCompile(`(?i)(/article(s)?/|/doi/(abs|full)/|/content/|/abstract)`)
)

// ClassifyURL buckets a URL by the payload it most likely serves. Known
// PDF hosts win first, then PDF-shaped paths, then publisher landing
// shapes, then DOI resolvers.
func ClassifyURL(raw string) types.URLType {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return types.URLUnknown
	}
	host := strings.ToLower(u.Host)

	if host == "doi.org" || host == "dx.doi.org" {
		return types.URLDOIResolver
	}
	if pdfHosts[host] || pdfPathPattern.MatchString(u.Path+"?"+u.RawQuery) {
		return types.URLPDFDirect
	}
	if strings.Contains(u.Path, "/fulltext") || strings.Contains(u.Path, "/full/") {
		return types.URLHTMLFulltext
	}
	if landingPattern.MatchString(u.Path) {
		return types.URLLandingPage
	}
	return types.URLUnknown
}

// typeRank fixes the attempt-order grouping: direct PDFs first, unknowns
// last.
func typeRank(t types.URLType) int {
	switch t {
	case types.URLPDFDirect:
		return 0
	case types.URLHTMLFulltext:
		return 1
	case types.URLLandingPage:
		return 2
	case types.URLDOIResolver:
		return 3
	default:
		return 4
	}
}

// SortCandidates classifies every candidate and orders them into the
// attempt order: grouped by url type, then by effective priority, with
// confidence and URL as deterministic tie-breakers.
func SortCandidates(candidates []types.URLCandidate) []types.URLCandidate {
	for i := range candidates {
		if candidates[i].Type == "" || candidates[i].Type == types.URLUnknown {
			candidates[i].Type = ClassifyURL(candidates[i].URL)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
			return ra < rb
		}
		if pa, pb := a.EffectivePriority(), b.EffectivePriority(); pa != pb {
			return pa < pb
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.URL < b.URL
	})
	return candidates
}
