// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// ExportYAML writes the assembled record to <dir>/<geo_id>.yaml and
// returns the path.
func ExportYAML(agg *types.GEOAggregate, dir string) (string, error) {
	data, err := yaml.Marshal(agg)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return writeExport(dir, agg.GEO.GEOID+".yaml", data)
}

// ExportJSON writes the assembled record to <dir>/<geo_id>.json and
// returns the path.
func ExportJSON(agg *types.GEOAggregate, dir string) (string, error) {
	data, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return writeExport(dir, agg.GEO.GEOID+".json", data)
}

func writeExport(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
