// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the omics-oracle CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/omics-oracle/omics-oracle/internal/citations"
	"github.com/omics-oracle/omics-oracle/internal/fulltext"
	"github.com/omics-oracle/omics-oracle/internal/hotcache"
	"github.com/omics-oracle/omics-oracle/internal/pipeline"
	"github.com/omics-oracle/omics-oracle/internal/secrets"
	"github.com/omics-oracle/omics-oracle/internal/sources"
	"github.com/omics-oracle/omics-oracle/internal/store"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the omics-oracle CLI.
var rootCmd = &cobra.Command{
	Use:   "omics-oracle",
	Short: "GEO dataset discovery with publications and open-access PDFs",
	Long: `omics-oracle resolves biomedical queries and GEO accessions to complete
dataset records: series metadata, the original and citing publications,
open-access PDFs, and structural extraction of their content.

Results are assembled once and cached in two tiers (hot key-value cache
over a SQLite warm store), so repeat lookups are instant.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./omics-oracle.yaml or ~/.config/omics-oracle/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("omics-oracle")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "omics-oracle"))
		}
	}

	viper.SetEnvPrefix("OMICS_ORACLE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig merges the config file and environment over the documented
// defaults, then fills credentials from .secrets/.
func loadConfig() (types.Config, error) {
	cfg := types.Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildPipeline assembles the orchestrator from configuration. The
// returned closer flushes and releases the store and hot cache.
func buildPipeline(cmd *cobra.Command) (*pipeline.Orchestrator, *store.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cmd)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store %s: %w", cfg.DBPath, err)
	}

	hot := hotcache.New(cfg.HotCache, logger)

	shared := cfg.Clients.HTTPConfig
	eutils := sources.NewEUtilsClient(cfg.Clients.NCBI, shared)
	openalex := sources.NewOpenAlexClient(cfg.Clients.OpenAlex, shared)
	semantic := sources.NewSemanticScholarClient(cfg.Clients.SemanticScholar, shared)
	europepmc := sources.NewEuropePMCClient(cfg.Clients.EuropePMC, shared)
	pmc := sources.NewPMCClient(cfg.Clients.NCBI, shared)
	unpaywall := sources.NewUnpaywallClient(cfg.Clients.Unpaywall, shared)
	core := sources.NewCOREClient(cfg.Clients.CORE, shared)
	biorxiv := sources.NewBiorxivClient(cfg.Clients.Biorxiv, shared)
	arxiv := sources.NewArxivClient(cfg.Clients.Arxiv, shared)
	crossref := sources.NewCrossrefClient(cfg.Clients.Crossref, shared)

	var proxy *sources.ProxyRewriter
	if cfg.Clients.ProxyURL != "" {
		proxy, err = sources.NewProxyRewriter(cfg.Clients.ProxyURL)
		if err != nil {
			st.Close()
			hot.Close()
			return nil, nil, nil, fmt.Errorf("parsing proxy url: %w", err)
		}
	}

	engine := citations.NewEngine(eutils, openalex, semantic, europepmc, st, cfg.CitationDiscovery, logger)
	collector := fulltext.NewCollector(pmc, unpaywall, openalex, core, biorxiv, arxiv, crossref, europepmc, proxy, logger)
	collector.SetNegativeCache(st)
	downloader := fulltext.NewDownloader(st, cfg.Download, cfg.StoreRoot, logger)
	extractor := &fulltext.StructureExtractor{
		ContentRoot: filepath.Join(cfg.StoreRoot, "parsed"),
		Version:     "structure-v1",
	}

	orch := pipeline.NewOrchestrator(
		eutils, openalex, engine, collector, downloader, extractor,
		st, hot, hotcache.TTL(cfg.HotCache),
		cfg.Search, cfg.Download, logger,
	)

	closer := func() {
		hot.Close()
		st.Close()
	}
	return orch, st, closer, nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
