package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show warm-store and cache statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "output statistics as JSON")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	orch, st, closer, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer closer()

	dbStats, err := st.DatabaseStats(cmd.Context())
	if err != nil {
		return err
	}
	cacheStats := orch.Cache().GetStats()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"store": dbStats,
			"cache": cacheStats,
		})
	}

	fmt.Printf("datasets:      %d\n", dbStats.Datasets)
	fmt.Printf("publications:  %d\n", dbStats.Publications)
	fmt.Printf("cached PDFs:   %d (%.1f MiB)\n", dbStats.CachedPDFs,
		float64(dbStats.TotalBytes)/(1024*1024))
	fmt.Printf("extracted:     %d\n", dbStats.Extracted)
	fmt.Printf("cache:         %d hits, %d promotions, %d misses (%.0f%% hit rate)\n",
		cacheStats.Hits, cacheStats.Promotions, cacheStats.Misses, cacheStats.HitRate*100)
	return nil
}
