package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download <identifier...>",
	Short: "Run the URL waterfall for individual publications",
	Long: `Download resolves publication identifiers (PMIDs or DOIs) to open-access
PDFs through the source waterfall, validates and stores them under the
given dataset, and extracts their structure. Already-stored PDFs are
skipped.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("geo", "", "GEO accession the publications belong to (required)")
	downloadCmd.Flags().Bool("citing", false, "file the publications as citing papers instead of original")

	rootCmd.AddCommand(downloadCmd)
}

var pmidArg = regexp.MustCompile(`^\d{1,9}$`)

func runDownload(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more PMIDs or DOIs")
	}
	geoID, _ := cmd.Flags().GetString("geo")
	if geoID == "" {
		return fmt.Errorf("--geo is required")
	}
	rel := types.RelOriginal
	if citing, _ := cmd.Flags().GetBool("citing"); citing {
		rel = types.RelCiting
	}

	orch, _, closer, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer closer()

	failed := 0
	for _, id := range args {
		var pub types.Publication
		switch {
		case pmidArg.MatchString(id):
			pub.PMID = id
		case strings.Contains(id, "/"):
			pub.DOI = id
		default:
			fmt.Fprintf(os.Stderr, "%s: not a PMID or DOI\n", id)
			failed++
			continue
		}

		result, err := orch.AcquireOne(cmd.Context(), pub, geoID, rel)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
			failed++
		case !result.Success:
			fmt.Fprintf(os.Stderr, "%s: no open-access PDF found (%d attempt(s))\n", id, len(result.Attempts))
			failed++
		case result.Deduplicated:
			fmt.Printf("%s: duplicate of %s\n", id, result.FilePath)
		default:
			fmt.Printf("%s: %s (%d bytes, via %s)\n", id, result.FilePath, result.FileSize, result.Source)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d download(s) failed", failed)
	}
	return nil
}
