// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/session"
	"github.com/refcheck/refcheck/internal/sources"
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search academic databases for papers on a topic",
	Long: `Search queries the enabled sources (Semantic Scholar, PubMed) for papers
matching a topic, pools the results, deduplicates them into canonical
records, and ranks them by citation count. Results are saved into a
research session file for later commands.

PubMed clinical query hedges can narrow biomedical searches:
  --filter therapy|diagnosis|prognosis|etiology|systematic_review`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 0, "maximum results per source (0 = config default)")
	searchCmd.Flags().String("year", "", "publication year range, e.g. 2020-2023 or 2020-")
	searchCmd.Flags().String("filter", "", "PubMed clinical query filter")
	searchCmd.Flags().String("session", "", "append results to an existing session file")
	searchCmd.Flags().Bool("no-save", false, "do not write a session file")
	searchCmd.Flags().Bool("json", false, "output records as JSON")
	searchCmd.Flags().Bool("csl", false, "output records as CSL-YAML")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")
	year, _ := cmd.Flags().GetString("year")
	filter, _ := cmd.Flags().GetString("filter")
	sessionFile, _ := cmd.Flags().GetString("session")
	noSave, _ := cmd.Flags().GetBool("no-save")
	jsonOut, _ := cmd.Flags().GetBool("json")
	cslOut, _ := cmd.Flags().GetBool("csl")

	cfg := sourcesConfig()
	adapters := searchAdapters(cfg)
	opts := sources.SearchOptions{Limit: limit, Year: year, Filter: filter}

	fmt.Fprintf(os.Stderr, "Searching for: %s\n", query)
	pooled, err := sources.SearchAll(context.Background(), adapters, query, opts, os.Stderr)
	if err != nil {
		return err
	}

	policy := matchPolicy()
	records := policy.Deduplicate(pooled)
	fmt.Fprintf(os.Stderr, "%d records after deduplication\n\n", len(records))

	switch {
	case jsonOut:
		if err := printRecordsJSON(records); err != nil {
			return err
		}
	case cslOut:
		if err := bib.FormatCSL(records, os.Stdout); err != nil {
			return err
		}
	default:
		printRecordTable(records)
	}

	if noSave {
		return nil
	}

	var sess *session.Session
	if sessionFile != "" {
		sess, err = session.Load(sessionFile)
		if err != nil {
			return err
		}
	} else {
		sess = session.New(query)
	}

	sess.AddRecords(policy, records, query, "pooled")
	path, err := sess.Save(sessionDir())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\nSession saved: %s\n", path)
	return nil
}
