// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/refcheck/refcheck/internal/sources"
)

var authorCmd = &cobra.Command{
	Use:   "author <name...>",
	Short: "Search for an author and list their papers",
	Long: `Author looks up author profiles in the citation graph API and lists the
top-cited papers of the best match. When the graph API is unavailable
the biomedical database is searched by author field instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAuthor,
}

func init() {
	authorCmd.Flags().Int("limit", 20, "maximum papers to list")
	authorCmd.Flags().Bool("json", false, "output records as JSON")

	rootCmd.AddCommand(authorCmd)
}

func runAuthor(cmd *cobra.Command, args []string) error {
	name := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg := sourcesConfig()
	ctx := context.Background()

	if cfg.EnableSemanticScholar {
		s2 := sources.NewSemanticScholar(cfg)
		authors, err := s2.SearchAuthors(ctx, name, 5)
		if err == nil && len(authors) > 0 {
			best := authors[0]
			fmt.Fprintf(os.Stderr, "Author: %s (%d papers, %d citations, h-index %d)\n\n",
				best.Name, best.PaperCount, best.CitationCount, best.HIndex)

			records, err := s2.AuthorPapers(ctx, best.AuthorID, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return printRecordsJSON(records)
			}
			printRecordTable(records)
			return nil
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: author search failed (%v), falling back to PubMed\n", err)
		}
	}

	if !cfg.EnablePubMed {
		return fmt.Errorf("no source available for author search")
	}

	pm := sources.NewPubMed(cfg)
	records, err := pm.Search(ctx, fmt.Sprintf("%s[Author]", name), sources.SearchOptions{Limit: limit})
	if err != nil {
		return err
	}
	if jsonOut {
		return printRecordsJSON(records)
	}
	printRecordTable(records)
	return nil
}
