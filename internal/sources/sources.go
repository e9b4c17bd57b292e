// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the three bibliographic source adapters:
// the Semantic Scholar graph API, PubMed E-utilities, and the Crossref
// DOI registry. Each adapter normalizes its raw API responses into
// types.Record before anything downstream sees them; no source-specific
// format escapes this package.
//
// Every adapter paces its own requests with a per-source rate limiter,
// so callers may loop over lookups without sleeping between calls.
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/refcheck/refcheck/pkg/types"
)

// ErrNotFound reports that a lookup completed but matched no record.
// It is non-fatal: the verifier treats it as "try the next layer".
var ErrNotFound = errors.New("record not found")

// ErrUnsupported reports that a source does not implement an operation
// (e.g. the DOI registry has no PMID index).
var ErrUnsupported = errors.New("operation not supported by this source")

// SearchOptions holds per-query search parameters.
type SearchOptions struct {
	// Limit caps the number of results (source defaults apply when 0).
	Limit int

	// Year restricts results to a year range ("2020-2023", "2020-").
	Year string

	// Filter names a PubMed clinical query hedge (therapy, diagnosis,
	// prognosis, etiology, systematic_review). Ignored by other sources.
	Filter string
}

// Adapter is the contract every source client satisfies. A failing or
// rate-limited call returns an error or ErrNotFound, never a partially
// populated record.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOptions) ([]types.Record, error)
	LookupDOI(ctx context.Context, doi string) (*types.Record, error)
	LookupPMID(ctx context.Context, pmid string) (*types.Record, error)
	CheckRetracted(ctx context.Context, pmid string) (bool, error)
}

// SearchAll queries each adapter in turn and pools the raw records.
// Adapters are called sequentially: each enforces its own inter-request
// pacing, and overlapping in-flight requests would defeat that. A
// failing adapter produces a warning on w and is skipped; SearchAll
// fails only when every adapter fails.
func SearchAll(ctx context.Context, adapters []Adapter, query string, opts SearchOptions, w io.Writer) ([]types.Record, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no source adapters configured")
	}

	var pooled []types.Record
	failures := 0
	for _, a := range adapters {
		records, err := a.Search(ctx, query, opts)
		if err != nil {
			failures++
			fmt.Fprintf(w, "warning: source %s failed: %v\n", a.Name(), err)
			continue
		}
		fmt.Fprintf(w, "  %s: %d records\n", a.Name(), len(records))
		pooled = append(pooled, records...)
	}

	if failures == len(adapters) {
		return nil, fmt.Errorf("all %d sources failed", failures)
	}
	return pooled, nil
}
