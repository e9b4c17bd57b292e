// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/sources"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <identifier...>",
	Short: "Recommend papers related to one or more seed papers",
	Long: `Recommend asks the citation graph API for papers related to the given
seed papers. Seeds may be graph-API paper ids, DOIs, or PMIDs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().Int("limit", 20, "maximum recommendations")
	recommendCmd.Flags().Bool("json", false, "output records as JSON")

	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOut, _ := cmd.Flags().GetBool("json")

	seeds := make([]string, 0, len(args))
	for _, arg := range args {
		idType, id := bib.Classify(arg)
		switch idType {
		case bib.TypeDOI:
			seeds = append(seeds, "DOI:"+id)
		case bib.TypePMID:
			seeds = append(seeds, "PMID:"+id)
		case bib.TypeSourceID:
			seeds = append(seeds, id)
		default:
			return fmt.Errorf("unrecognized seed identifier %q", arg)
		}
	}

	s2 := sources.NewSemanticScholar(sourcesConfig())
	records, err := s2.Recommend(context.Background(), seeds, limit)
	if err != nil {
		return err
	}

	if jsonOut {
		return printRecordsJSON(records)
	}
	printRecordTable(records)
	return nil
}
