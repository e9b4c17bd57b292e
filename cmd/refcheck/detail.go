// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/sources"
	"github.com/refcheck/refcheck/pkg/types"
)

var detailCmd = &cobra.Command{
	Use:   "detail <identifier>",
	Short: "Show the full record for a DOI, PMID, or paper id",
	Long: `Detail classifies the identifier (DOI, PMID, or a native graph-API
paper id) and fetches the record, falling back across sources until one
resolves it. Records found in multiple sources are merged.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetail,
}

func init() {
	detailCmd.Flags().Bool("json", false, "output the record as JSON")
	rootCmd.AddCommand(detailCmd)
}

func runDetail(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	idType, id := bib.Classify(args[0])
	if idType == bib.TypeUnknown {
		return fmt.Errorf("unrecognized identifier %q: expected a DOI, PMID, or paper id", args[0])
	}

	cfg := sourcesConfig()
	rec, err := lookupByIdentifier(context.Background(), cfg, idType, id)
	if err != nil {
		return err
	}

	if jsonOut {
		return printRecordsJSON([]types.Record{*rec})
	}
	printRecordDetail(*rec)
	return nil
}

// lookupByIdentifier walks the sources in fallback order for the
// identifier type, merging every record that resolves.
func lookupByIdentifier(ctx context.Context, cfg types.SourcesConfig, idType bib.IdentifierType, id string) (*types.Record, error) {
	policy := matchPolicy()
	s2 := sources.NewSemanticScholar(cfg)
	pm := sources.NewPubMed(cfg)
	cr := sources.NewCrossref(cfg)

	var merged *types.Record
	try := func(name string, fn func() (*types.Record, error)) {
		rec, err := fn()
		switch {
		case err == nil && rec != nil:
			if merged == nil {
				merged = rec
			} else if policy.SameWork(*merged, *rec) {
				m := policy.Merge(*merged, *rec)
				merged = &m
			}
		case errors.Is(err, sources.ErrNotFound), errors.Is(err, sources.ErrUnsupported):
		case err != nil:
			fmt.Fprintf(os.Stderr, "warning: %s lookup failed: %v\n", name, err)
		}
	}

	switch idType {
	case bib.TypeDOI:
		try(types.SourceCrossref, func() (*types.Record, error) { return cr.LookupDOI(ctx, id) })
		if cfg.EnableSemanticScholar {
			try(types.SourceSemanticScholar, func() (*types.Record, error) { return s2.LookupDOI(ctx, id) })
		}
		if cfg.EnablePubMed {
			try(types.SourcePubMed, func() (*types.Record, error) { return pm.LookupDOI(ctx, id) })
		}
	case bib.TypePMID:
		if cfg.EnablePubMed {
			try(types.SourcePubMed, func() (*types.Record, error) { return pm.LookupPMID(ctx, id) })
		}
		if cfg.EnableSemanticScholar {
			try(types.SourceSemanticScholar, func() (*types.Record, error) { return s2.LookupPMID(ctx, id) })
		}
	case bib.TypeSourceID:
		try(types.SourceSemanticScholar, func() (*types.Record, error) { return s2.LookupPaper(ctx, id) })
	}

	if merged == nil {
		return nil, fmt.Errorf("no source could resolve %q", id)
	}
	return merged, nil
}
