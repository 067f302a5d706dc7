package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search GEO and the publication indexes",
	Long: `Search resolves a query to ranked GEO datasets with their publication
records. A GEO accession (GSE12345) resolves directly; a bare PMID
resolves to its publication; anything else fans out across the GEO
DataSets database, PubMed, and OpenAlex.

Search results are cached briefly; dataset records are cached until
invalidated.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Bool("json", false, "output the full result as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a query, GEO accession, or PMID")
	}
	query := strings.Join(args, " ")

	orch, _, closer, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer closer()

	result, err := orch.Search(cmd.Context(), query)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	cached := ""
	if result.FromCache {
		cached = " (cached)"
	}
	fmt.Printf("%d dataset(s), %d publication(s) in %s%s\n",
		len(result.Datasets), len(result.Publications), formatDuration(result.Elapsed), cached)

	for _, ds := range result.Datasets {
		fmt.Printf("  %-10s %.2f  %s\n", ds.GEOID, ds.Score, ds.Title)
		if ds.Aggregate != nil {
			s := ds.Aggregate.Statistics
			fmt.Printf("             %d paper(s), %d PDF(s), %d extracted\n",
				s.TotalPapers, s.SuccessfulDownloads, s.ExtractedPapers)
		}
	}
	for _, pub := range result.Publications {
		fmt.Printf("  PMID %-9s %s\n", pub.PMID, pub.Title)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s failed (%s): %s\n", e.Source, e.Category, e.Message)
	}
	return nil
}
