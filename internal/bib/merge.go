// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"strings"

	"github.com/refcheck/refcheck/pkg/types"
)

// Merge combines two records that denote the same work into one
// canonical record. Callers must have established identity with
// SameWork first; Merge assumes shared identifiers are equal.
//
// Field policy: identifiers keep whichever side has one. Scalars prefer
// the non-empty side; when both are set and differ, the value from the
// higher-precedence origin wins. Authors prefer the longer list.
// citation_count takes the maximum: counts from different sources
// undercount independently, so max is a safe lower bound. Abstract
// prefers the longer text. Origins union. Retracted is sticky.
//
// Each value is weighed by the rank of the source that set it, carried
// across merges through FieldOrigins, and equal-precedence conflicts
// break deterministically (longer, then lexicographically smaller).
// This makes Merge commutative and associative in its observable
// result: reordering a multi-source deduplication cannot change the
// final record.
func (p Policy) Merge(a, b types.Record) types.Record {
	out := types.Record{
		DOI:  firstNonEmpty(a.DOI, b.DOI),
		PMID: firstNonEmpty(a.PMID, b.PMID),

		CitationCount: max(a.CitationCount, b.CitationCount),
		Abstract:      pickLonger(a.Abstract, b.Abstract),
		Retracted:     a.Retracted || b.Retracted,
	}
	for _, o := range a.Origins {
		out.AddOrigin(o)
	}
	for _, o := range b.Origins {
		out.AddOrigin(o)
	}

	m := merger{policy: p, a: a, b: b, prov: map[string]string{}}
	out.SourceID = m.scalar("source_id", a.SourceID, b.SourceID)
	out.Title = m.scalar("title", a.Title, b.Title)
	out.Journal = m.scalar("journal", a.Journal, b.Journal)
	out.Volume = m.scalar("volume", a.Volume, b.Volume)
	out.Issue = m.scalar("issue", a.Issue, b.Issue)
	out.Pages = m.scalar("pages", a.Pages, b.Pages)
	out.Year = m.year(a.Year, b.Year)
	out.Authors = m.authors(a.Authors, b.Authors)

	// Provenance entries matching the merged record's best origin are
	// redundant: fieldTag falls back to exactly that tag. Dropping them
	// keeps Merge(a, a) == a.
	best := p.bestOrigin(out)
	for field, tag := range m.prov {
		if tag == "" || tag == best {
			delete(m.prov, field)
		}
	}
	if len(m.prov) > 0 {
		out.FieldOrigins = m.prov
	}
	return out
}

// merger resolves the descriptive fields of two records, recording the
// source tag that supplied each surviving value. Conflicts compare the
// ranks of the supplying tags, not the records' origin sets, so a value
// contributed by a low-precedence source never inherits the rank of a
// higher-precedence origin it happens to be merged with.
type merger struct {
	policy Policy
	a, b   types.Record
	prov   map[string]string
}

func (m *merger) scalar(field, va, vb string) string {
	tagA := m.policy.fieldTag(m.a, field)
	tagB := m.policy.fieldTag(m.b, field)
	switch {
	case va == "" && vb == "":
		return ""
	case vb == "":
		m.prov[field] = tagA
		return va
	case va == "":
		m.prov[field] = tagB
		return vb
	case va == vb:
		m.prov[field] = m.policy.betterTag(tagA, tagB)
		return va
	}
	ra, rb := m.policy.tagRank(tagA), m.policy.tagRank(tagB)
	switch {
	case ra < rb:
		m.prov[field] = tagA
		return va
	case rb < ra:
		m.prov[field] = tagB
		return vb
	case tiebreak(va, vb) == va:
		m.prov[field] = tagA
		return va
	}
	m.prov[field] = tagB
	return vb
}

func (m *merger) year(ya, yb int) int {
	tagA := m.policy.fieldTag(m.a, "year")
	tagB := m.policy.fieldTag(m.b, "year")
	switch {
	case ya == 0 && yb == 0:
		return 0
	case yb == 0:
		m.prov["year"] = tagA
		return ya
	case ya == 0:
		m.prov["year"] = tagB
		return yb
	case ya == yb:
		m.prov["year"] = m.policy.betterTag(tagA, tagB)
		return ya
	}
	ra, rb := m.policy.tagRank(tagA), m.policy.tagRank(tagB)
	switch {
	case ra < rb:
		m.prov["year"] = tagA
		return ya
	case rb < ra:
		m.prov["year"] = tagB
		return yb
	case ya < yb:
		m.prov["year"] = tagA
		return ya
	}
	m.prov["year"] = tagB
	return yb
}

// authors prefers the longer, more complete list; equal-length lists
// that differ defer to the supplying tags' precedence, then to a
// deterministic tiebreak.
func (m *merger) authors(la, lb []string) []string {
	tagA := m.policy.fieldTag(m.a, "authors")
	tagB := m.policy.fieldTag(m.b, "authors")
	switch {
	case len(la) == 0 && len(lb) == 0:
		return nil
	case len(la) > len(lb):
		m.prov["authors"] = tagA
		return la
	case len(lb) > len(la):
		m.prov["authors"] = tagB
		return lb
	case equalStrings(la, lb):
		m.prov["authors"] = m.policy.betterTag(tagA, tagB)
		return la
	}
	ra, rb := m.policy.tagRank(tagA), m.policy.tagRank(tagB)
	switch {
	case ra < rb:
		m.prov["authors"] = tagA
		return la
	case rb < ra:
		m.prov["authors"] = tagB
		return lb
	case tiebreak(strings.Join(la, "|"), strings.Join(lb, "|")) == strings.Join(la, "|"):
		m.prov["authors"] = tagA
		return la
	}
	m.prov["authors"] = tagB
	return lb
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// pickLonger prefers the longer text; equal lengths fall back to the
// order-independent tiebreak.
func pickLonger(a, b string) string {
	switch {
	case len(a) > len(b):
		return a
	case len(b) > len(a):
		return b
	}
	return tiebreak(a, b)
}

// tiebreak picks between two conflicting equal-precedence values without
// regard to argument order: longer wins, then lexicographically smaller.
func tiebreak(a, b string) string {
	switch {
	case len(a) > len(b):
		return a
	case len(b) > len(a):
		return b
	case a < b:
		return a
	}
	return b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
