// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/omics-oracle/omics-oracle/internal/geo"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// queryKind classifies what the user typed.
type queryKind int

const (
	queryKeyword queryKind = iota
	queryGEOID
	queryPMID
)

var pmidPattern = regexp.MustCompile(`^\d{1,9}$`)

func classifyQuery(q string) (queryKind, string) {
	q = strings.TrimSpace(q)
	if accession, kind, ok := geo.Parse(q); ok && kind == geo.Series {
		return queryGEOID, accession
	}
	if pmidPattern.MatchString(q) {
		return queryPMID, q
	}
	return queryKeyword, q
}

// QueryExpander rewrites a query before the fan-out, e.g. expanding gene
// synonyms. The core passes queries through unchanged.
type QueryExpander interface {
	Expand(query string) string
}

// NoopExpander is the default expander.
type NoopExpander struct{}

func (NoopExpander) Expand(query string) string { return query }

// rankDatasets scores datasets by term overlap between the query and the
// dataset title/summary, with a small recency signal from the numeric
// accession. The ordering is deterministic: ties fall back to the
// accession string.
func rankDatasets(query string, datasets []types.GEODataset) []types.RankedDataset {
	terms := queryTerms(query)

	ranked := make([]types.RankedDataset, 0, len(datasets))
	seen := make(map[string]bool, len(datasets))
	for _, ds := range datasets {
		if ds.GEOID == "" || seen[ds.GEOID] {
			continue
		}
		seen[ds.GEOID] = true
		ranked = append(ranked, types.RankedDataset{
			GEOID: ds.GEOID,
			Title: ds.Title,
			Score: scoreDataset(terms, ds),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].GEOID > ranked[j].GEOID
	})
	return ranked
}

func queryTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if len(t) >= 3 {
			terms = append(terms, t)
		}
	}
	return terms
}

func scoreDataset(terms []string, ds types.GEODataset) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(ds.Title + " " + ds.Summary)
	hits := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			hits++
		}
	}
	score := float64(hits) / float64(len(terms))

	// Higher accessions are newer series. The nudge only reorders
	// datasets with identical term overlap.
	if len(ds.GEOID) > 3 {
		score += float64(len(ds.GEOID)-3) * 0.001
	}
	return score
}
