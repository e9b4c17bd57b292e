// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refcheck/refcheck/internal/sources"
	"github.com/refcheck/refcheck/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <references-file>",
	Short: "Verify a reference list against authoritative sources",
	Long: `Verify loads a reference list (JSON array or plain text, one reference
per line or paragraph) and checks each entry against Crossref, Semantic
Scholar, and PubMed. Each reference is resolved by DOI, PMID, or
bibliographic search, its asserted fields are compared against the
merged source record, and retractions are flagged.

A human-readable report goes to stdout; --output writes the structured
JSON results to a file.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().String("output", "", "write JSON results to a file")
	verifyCmd.Flags().Bool("json", false, "print JSON results instead of the report")
	verifyCmd.Flags().Bool("no-retraction-check", false, "skip the retraction lookup")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	outputFile, _ := cmd.Flags().GetString("output")
	jsonOut, _ := cmd.Flags().GetBool("json")
	noRetractions, _ := cmd.Flags().GetBool("no-retraction-check")

	refs, err := verify.LoadReferences(args[0])
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("no references found in %s", args[0])
	}
	fmt.Fprintf(os.Stderr, "Loaded %d references from %s\n", len(refs), args[0])

	srcCfg := sourcesConfig()
	vcfg := verifyConfig()
	if noRetractions {
		vcfg.CheckRetractions = false
	}

	var graph, biomedical sources.Adapter
	if srcCfg.EnableSemanticScholar {
		graph = sources.NewSemanticScholar(srcCfg)
	}
	if srcCfg.EnablePubMed {
		biomedical = sources.NewPubMed(srcCfg)
	}
	v := verify.New(vcfg, sources.NewCrossref(srcCfg), graph, biomedical, os.Stderr)

	results, err := v.VerifyAll(context.Background(), refs)
	if err != nil {
		return err
	}

	if jsonOut {
		if err := verify.WriteJSON(os.Stdout, refs, results); err != nil {
			return err
		}
	} else {
		verify.WriteReport(os.Stdout, refs, results)
	}

	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		if err := verify.WriteJSON(f, refs, results); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\nJSON results written to: %s\n", outputFile)
	}
	return nil
}
