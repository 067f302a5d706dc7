package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <accession...>",
	Short: "Drop cached records for GEO datasets",
	Long: `Invalidate removes the hot-cache entry and the citation-discovery cache
for each dataset. Stored publications, PDFs, and extractions are kept;
the next lookup reassembles the record and re-queries citation sources.`,
	RunE: runInvalidate,
}

func init() {
	rootCmd.AddCommand(invalidateCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more GEO accessions")
	}

	orch, _, closer, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer closer()

	if err := orch.Cache().InvalidateBatch(cmd.Context(), args); err != nil {
		return err
	}
	fmt.Printf("invalidated %d record(s)\n", len(args))
	return nil
}
