package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omics-oracle/omics-oracle/internal/pipeline"
)

var exportCmd = &cobra.Command{
	Use:   "export <accession...>",
	Short: "Export assembled dataset records to YAML or JSON files",
	Long: `Export writes the complete record for each dataset (series metadata,
publications, download state, extraction summaries) to a file per
accession. Records not yet assembled go through discovery first.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("dir", "omics/export", "output directory")
	exportCmd.Flags().String("format", "yaml", "output format: yaml or json")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more GEO accessions")
	}
	dir, _ := cmd.Flags().GetString("dir")
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}

	orch, _, closer, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer closer()

	for _, geoID := range args {
		agg, err := orch.Cache().Get(cmd.Context(), geoID)
		if err != nil {
			return fmt.Errorf("%s: %w", geoID, err)
		}

		var path string
		if format == "json" {
			path, err = pipeline.ExportJSON(agg, dir)
		} else {
			path, err = pipeline.ExportYAML(agg, dir)
		}
		if err != nil {
			return err
		}
		fmt.Println("  ", path)
	}
	return nil
}
