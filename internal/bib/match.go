// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"github.com/refcheck/refcheck/pkg/types"
)

// Policy holds the tunable knobs for identity matching and merging.
// The precedence order for conflicting scalars is deliberately
// configuration, not a constant: which source wins for a field like the
// journal name is an editorial judgment, and tests exercise both orders.
type Policy struct {
	// Precedence orders source tags from most to least authoritative.
	// Tags absent from the list rank below all listed tags.
	Precedence []string

	// IdentityThreshold is the minimum title token similarity for the
	// fuzzy identity fallback (default 0.9).
	IdentityThreshold float64
}

// DefaultPolicy returns the standard policy: Crossref (the DOI registry
// of record) over PubMed over the graph API, fuzzy identity at 0.9.
func DefaultPolicy() Policy {
	return Policy{
		Precedence: []string{
			types.SourceCrossref,
			types.SourcePubMed,
			types.SourceSemanticScholar,
		},
		IdentityThreshold: 0.9,
	}
}

// NewPolicy builds a Policy from config, falling back to defaults for
// unset values.
func NewPolicy(cfg types.VerifyConfig) Policy {
	p := DefaultPolicy()
	if len(cfg.Precedence) > 0 {
		p.Precedence = cfg.Precedence
	}
	if cfg.IdentityThreshold > 0 {
		p.IdentityThreshold = cfg.IdentityThreshold
	}
	return p
}

// tagRank returns the precedence rank of a single source tag. Unlisted
// tags rank after all listed ones.
func (p Policy) tagRank(tag string) int {
	for i, t := range p.Precedence {
		if t == tag {
			return i
		}
	}
	return len(p.Precedence)
}

// betterTag picks the higher-precedence of two tags; equal ranks break
// lexicographically so the choice is order-independent.
func (p Policy) betterTag(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	ra, rb := p.tagRank(a), p.tagRank(b)
	switch {
	case ra < rb:
		return a
	case rb < ra:
		return b
	case a < b:
		return a
	}
	return b
}

// bestOrigin returns the record's highest-precedence origin tag.
func (p Policy) bestOrigin(r types.Record) string {
	best := ""
	for _, o := range r.Origins {
		best = p.betterTag(best, o)
	}
	return best
}

// fieldTag returns the source tag whose value the record carries for a
// field: the recorded per-field provenance when present, else the
// best-ranked origin. Adapter records carry a single origin, so the
// fallback is exact for them.
func (p Policy) fieldTag(r types.Record, field string) string {
	if tag, ok := r.FieldOrigins[field]; ok {
		return tag
	}
	return p.bestOrigin(r)
}

// SameWork reports whether two records denote the same published work.
//
// Strong identifiers are authoritative in both directions: equal DOIs
// confirm identity, and differing DOIs veto it without falling through
// to fuzzy matching: errata and preprint/published pairs share
// near-identical titles but are distinct works. PMIDs behave the same
// way when DOIs are unavailable. Only when neither identifier is present
// on both sides does the fuzzy fallback apply: title similarity at or
// above the policy threshold (or exact normalized-title equality), year
// agreement (or both unknown), and first-author surname agreement (or
// either side authorless).
//
// SameWork is symmetric: SameWork(a, b) == SameWork(b, a).
func (p Policy) SameWork(a, b types.Record) bool {
	if a.DOI != "" && b.DOI != "" {
		return a.DOI == b.DOI
	}
	if a.PMID != "" && b.PMID != "" {
		return a.PMID == b.PMID
	}

	// Fuzzy fallback: all three sub-conditions must hold.
	keyA, keyB := TitleKey(a.Title), TitleKey(b.Title)
	if keyA == "" || keyB == "" {
		return false
	}
	if keyA != keyB && TokenSimilarity(a.Title, b.Title) < p.IdentityThreshold {
		return false
	}

	if a.Year != 0 && b.Year != 0 && a.Year != b.Year {
		return false
	}
	if a.Year == 0 && b.Year != 0 || a.Year != 0 && b.Year == 0 {
		return false
	}

	sa, sb := FirstAuthorSurname(a.Authors), FirstAuthorSurname(b.Authors)
	if sa != "" && sb != "" && sa != sb {
		return false
	}
	return true
}
