// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/session"
	"github.com/refcheck/refcheck/internal/sources"
)

var citationsCmd = &cobra.Command{
	Use:   "citations <identifier>",
	Short: "Explore a paper's citation graph",
	Long: `Citations lists the papers citing a work (--direction citedBy, the
default) or the works it cites (--direction references), ranked by
citation count. With --session the edges are recorded into the session's
citation graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runCitations,
}

func init() {
	citationsCmd.Flags().String("direction", "citedBy", "citedBy or references")
	citationsCmd.Flags().Int("limit", 50, "maximum citations to fetch")
	citationsCmd.Flags().String("session", "", "record edges into this session file")
	citationsCmd.Flags().Bool("json", false, "output records as JSON")

	rootCmd.AddCommand(citationsCmd)
}

func runCitations(cmd *cobra.Command, args []string) error {
	direction, _ := cmd.Flags().GetString("direction")
	limit, _ := cmd.Flags().GetInt("limit")
	sessionFile, _ := cmd.Flags().GetString("session")
	jsonOut, _ := cmd.Flags().GetBool("json")

	idType, id := bib.Classify(args[0])
	paperID := id
	switch idType {
	case bib.TypeDOI:
		paperID = "DOI:" + id
	case bib.TypePMID:
		paperID = "PMID:" + id
	case bib.TypeUnknown:
		return fmt.Errorf("unrecognized identifier %q", args[0])
	}

	cfg := sourcesConfig()
	s2 := sources.NewSemanticScholar(cfg)
	ctx := context.Background()

	records, err := s2.Citations(ctx, paperID, sources.CitationDirection(direction), limit)
	if err != nil {
		return err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CitationCount > records[j].CitationCount
	})

	if jsonOut {
		if err := printRecordsJSON(records); err != nil {
			return err
		}
	} else {
		fmt.Printf("%s (%d results)\n\n", directionLabel(direction), len(records))
		printRecordTable(records)
	}

	if sessionFile == "" {
		return nil
	}

	sess, err := session.Load(sessionFile)
	if err != nil {
		return err
	}
	policy := matchPolicy()
	sess.AddRecords(policy, records, args[0], "citations")

	keys := make([]string, 0, len(records))
	for _, rec := range records {
		if k := rec.Key(); k != "" {
			keys = append(keys, k)
		}
	}
	sess.AddCitations(args[0], direction, keys)

	path, err := sess.Save(sessionDir())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\nSession updated: %s\n", path)
	return nil
}

func directionLabel(direction string) string {
	if direction == "references" {
		return "Works cited by this paper"
	}
	return "Papers citing this work"
}
