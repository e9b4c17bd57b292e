// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the refcheck CLI: bibliographic
// search across academic APIs, record reconciliation, and citation
// verification against authoritative sources.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/secrets"
	"github.com/refcheck/refcheck/internal/sources"
	"github.com/refcheck/refcheck/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "refcheck/0.1"
)

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the refcheck CLI.
var rootCmd = &cobra.Command{
	Use:   "refcheck",
	Short: "Search, reconcile, and verify bibliographic records",
	Long: `refcheck searches academic databases (Semantic Scholar, PubMed, Crossref),
reconciles the results into canonical deduplicated records, and verifies
manuscript reference lists against the authoritative sources.

Results accumulate in research sessions (JSON files) and can be archived
into a local full-text-indexed library.`,
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

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./refcheck.yaml or ~/.config/refcheck/config.yaml)")
	rootCmd.PersistentFlags().String("session-dir", "", "directory for session files (default: current directory)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("refcheck")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "refcheck"))
		}
	}

	viper.SetEnvPrefix("REFCHECK")
	viper.AutomaticEnv()

	viper.SetDefault("sources.max_results", 20)
	viper.SetDefault("sources.enable_semantic_scholar", true)
	viper.SetDefault("sources.enable_pubmed", true)
	viper.SetDefault("verify.check_retractions", true)
	viper.SetDefault("library.library_dir", "library")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// sourcesConfig assembles the source-client settings from config and
// secrets.
func sourcesConfig() types.SourcesConfig {
	return types.SourcesConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   defaultTimeout,
			UserAgent: defaultUserAgent,
		},
		MaxResults:            viper.GetInt("sources.max_results"),
		EnableSemanticScholar: viper.GetBool("sources.enable_semantic_scholar"),
		EnablePubMed:          viper.GetBool("sources.enable_pubmed"),
		SemanticScholarAPIKey: secretDefault("semantic-scholar-api-key", viper.GetString("sources.semantic_scholar_api_key")),
		NCBIAPIKey:            secretDefault("ncbi-api-key", viper.GetString("sources.ncbi_api_key")),
		CrossrefMailto:        secretDefault("crossref-mailto", viper.GetString("sources.crossref_mailto")),
	}
}

func verifyConfig() types.VerifyConfig {
	cfg := types.VerifyConfig{
		TitleMatchThreshold:   viper.GetFloat64("verify.title_match_threshold"),
		JournalMatchThreshold: viper.GetFloat64("verify.journal_match_threshold"),
		IdentityThreshold:     viper.GetFloat64("verify.identity_threshold"),
		Precedence:            viper.GetStringSlice("verify.precedence"),
		CheckRetractions:      viper.GetBool("verify.check_retractions"),
	}
	return cfg
}

func matchPolicy() bib.Policy {
	return bib.NewPolicy(verifyConfig())
}

func sessionDir() string {
	if dir, _ := rootCmd.PersistentFlags().GetString("session-dir"); dir != "" {
		return dir
	}
	if dir := viper.GetString("session.dir"); dir != "" {
		return dir
	}
	return "."
}

// searchAdapters returns the enabled search backends: the graph API and
// the biomedical DB, as the registry has no relevance-ranked search
// suited to topic queries.
func searchAdapters(cfg types.SourcesConfig) []sources.Adapter {
	var adapters []sources.Adapter
	if cfg.EnableSemanticScholar {
		adapters = append(adapters, sources.NewSemanticScholar(cfg))
	}
	if cfg.EnablePubMed {
		adapters = append(adapters, sources.NewPubMed(cfg))
	}
	return adapters
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
