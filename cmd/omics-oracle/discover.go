package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <accession...>",
	Short: "Run the full discovery pipeline for GEO datasets",
	Long: `Discover fetches each dataset's series metadata, finds its original and
citing publications, resolves open-access URLs, downloads and validates
PDFs, and extracts their structure. The assembled record is cached.

With --refresh the cached record and the citation-discovery cache are
dropped first, forcing a rebuild from the sources.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().Bool("refresh", false, "invalidate cached records before discovery")
	discoverCmd.Flags().Bool("json", false, "output assembled records as JSON")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more GEO accessions (e.g. GSE12345)")
	}

	orch, _, closer, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer closer()

	refresh, _ := cmd.Flags().GetBool("refresh")
	asJSON, _ := cmd.Flags().GetBool("json")

	failed := 0
	for _, geoID := range args {
		if refresh {
			if err := orch.Cache().Invalidate(cmd.Context(), geoID); err != nil {
				fmt.Fprintf(os.Stderr, "warning: invalidating %s: %v\n", geoID, err)
			}
		}

		agg, err := orch.AutoDiscover(cmd.Context(), geoID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", geoID, err)
			failed++
			continue
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(agg); err != nil {
				return err
			}
			continue
		}

		s := agg.Statistics
		fmt.Printf("%s  %s\n", agg.GEO.GEOID, agg.GEO.Title)
		fmt.Printf("  papers: %d original, %d citing\n", s.OriginalPapers, s.CitingPapers)
		fmt.Printf("  PDFs:   %d downloaded, %d failed (%.0f%% success), %d extracted\n",
			s.SuccessfulDownloads, s.FailedDownloads, s.SuccessRate*100, s.ExtractedPapers)
	}

	if failed > 0 {
		return fmt.Errorf("%d dataset(s) failed discovery", failed)
	}
	return nil
}
