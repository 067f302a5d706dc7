// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// Extractor turns a stored PDF into structured content. The pipeline
// records whatever the extractor returns; richer parsers plug in behind
// this interface.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (types.ParsedContent, error)
}

// StructureExtractor is the built-in extractor. It inspects the raw PDF
// object structure rather than rendering pages, which is enough to score
// whether a document is worth deeper parsing.
type StructureExtractor struct {
	// ContentRoot receives the JSON sidecar per extraction; empty
	// disables sidecars.
	ContentRoot string

	// Version tags rows in parsed_content so parser upgrades can
	// regenerate stale extractions.
	Version string
}

// Extract reads the PDF and derives structural counts from its object
// markers. Word count is approximated from text-stream density.
func (e *StructureExtractor) Extract(_ context.Context, pdfPath string) (types.ParsedContent, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return types.ParsedContent{}, fmt.Errorf("reading %s: %w", pdfPath, err)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return types.ParsedContent{}, fmt.Errorf("%s is not a PDF", pdfPath)
	}

	pages := bytes.Count(data, []byte("/Type /Page")) + bytes.Count(data, []byte("/Type/Page"))
	pages -= bytes.Count(data, []byte("/Type /Pages")) + bytes.Count(data, []byte("/Type/Pages"))
	if pages < 0 {
		pages = 0
	}
	figures := bytes.Count(data, []byte("/Subtype /Image")) + bytes.Count(data, []byte("/Subtype/Image"))
	fonts := bytes.Count(data, []byte("/Font"))
	streams := bytes.Count(data, []byte("stream"))

	// Rough words-per-text-stream estimate; a scanned PDF has images but
	// almost no font objects.
	words := 0
	if fonts > 0 {
		words = streams * 120
	}

	pc := types.ParsedContent{
		HasFulltext:   fonts > 0 && pages > 0,
		HasFigures:    figures > 0,
		HasTables:     bytes.Contains(data, []byte("/Table")),
		WordCount:     words,
		FigureCount:   figures,
		SectionCount:  pages,
		ParserVersion: e.version(),
	}
	pc.QualityScore = quality(pc)

	if e.ContentRoot != "" {
		sidecar := filepath.Join(e.ContentRoot, strings.TrimSuffix(filepath.Base(pdfPath), ".pdf")+".json")
		if err := writeSidecar(sidecar, pc); err != nil {
			return pc, err
		}
		pc.ContentPath = sidecar
	}
	return pc, nil
}

func (e *StructureExtractor) version() string {
	if e.Version == "" {
		return "structure-v1"
	}
	return e.Version
}

// quality blends the structural signals into [0,1].
func quality(pc types.ParsedContent) float64 {
	score := 0.0
	if pc.HasFulltext {
		score += 0.5
	}
	if pc.WordCount > 1000 {
		score += 0.2
	}
	if pc.HasFigures {
		score += 0.15
	}
	if pc.HasTables {
		score += 0.15
	}
	return score
}

func writeSidecar(path string, pc types.ParsedContent) error {
	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
