// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"sort"

	"github.com/refcheck/refcheck/pkg/types"
)

// Deduplicate collapses a result set pooled from multiple source queries
// into exactly one record per distinct work. Records are scanned in
// input order against an accumulator; the first accumulated entry that
// SameWork-matches a new record is replaced by their merge, otherwise
// the record is appended. No record is dropped, only merged.
//
// The O(n²) accumulator scan is fine here: n is bounded by per-query
// result limits, tens of records rather than thousands.
//
// Output order is citation count descending, ties broken by first
// appearance in the input.
func (p Policy) Deduplicate(records []types.Record) []types.Record {
	type entry struct {
		rec   types.Record
		first int
	}

	var acc []entry
	for i, r := range records {
		merged := false
		for j := range acc {
			if p.SameWork(acc[j].rec, r) {
				acc[j].rec = p.Merge(acc[j].rec, r)
				merged = true
				break
			}
		}
		if !merged {
			acc = append(acc, entry{rec: r, first: i})
		}
	}

	sort.SliceStable(acc, func(i, j int) bool {
		if acc[i].rec.CitationCount != acc[j].rec.CitationCount {
			return acc[i].rec.CitationCount > acc[j].rec.CitationCount
		}
		return acc[i].first < acc[j].first
	})

	out := make([]types.Record, len(acc))
	for i, e := range acc {
		out[i] = e.rec
	}
	return out
}
