// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the refcheck engine:
// the canonical bibliographic Record all sources normalize into, the
// user-asserted Reference, and the VerificationResult produced by the
// verifier.
package types

import (
	"sort"
	"strings"
)

// Source tags identifying which adapter contributed a record.
const (
	SourceSemanticScholar = "semantic_scholar"
	SourcePubMed          = "pubmed"
	SourceCrossref        = "crossref"
)

// Record is the canonical in-memory shape for a bibliographic record.
// Every source adapter normalizes its raw API response into this form
// before the record reaches matching, merging, or verification.
type Record struct {
	// Title is the display title as returned by the source. Comparison
	// uses a normalized key, never this field directly.
	Title string `json:"title" yaml:"title"`

	// Authors lists author names in source order. Formats vary across
	// sources ("First Last", "Last FM"); the list is preserved verbatim.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year, or 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Journal is the venue or container title.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	Volume string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue  string `json:"issue,omitempty" yaml:"issue,omitempty"`
	Pages  string `json:"pages,omitempty" yaml:"pages,omitempty"`

	// DOI is the normalized identifier: lowercase, no scheme or
	// "doi:" prefix. Empty when the source supplied none.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// PMID is the biomedical database's numeric-string identifier.
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// SourceID is the origin's native key (e.g. a graph-API paper id).
	SourceID string `json:"source_id,omitempty" yaml:"source_id,omitempty"`

	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// CitationCount is populated only by sources that track it.
	CitationCount int `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`

	// Origins is the set of source tags that contributed to this record.
	// It grows under merging and never shrinks. Kept sorted.
	Origins []string `json:"origins" yaml:"origins"`

	// FieldOrigins maps a descriptive field name to the source tag whose
	// value the record carries, recorded during merging whenever that tag
	// differs from the record's best-ranked origin. It lets later merges
	// weigh each value by the source that actually supplied it rather
	// than by the merged record's origin set.
	FieldOrigins map[string]string `json:"field_origins,omitempty" yaml:"field_origins,omitempty"`

	// Retracted is set only by a retraction check and stays set once true.
	Retracted bool `json:"retracted,omitempty" yaml:"retracted,omitempty"`
}

// AddOrigin inserts a source tag into the origin set, keeping it sorted
// and free of duplicates.
func (r *Record) AddOrigin(tag string) {
	if tag == "" {
		return
	}
	for _, o := range r.Origins {
		if o == tag {
			return
		}
	}
	r.Origins = append(r.Origins, tag)
	sort.Strings(r.Origins)
}

// HasOrigin reports whether tag is in the record's origin set.
func (r Record) HasOrigin(tag string) bool {
	for _, o := range r.Origins {
		if o == tag {
			return true
		}
	}
	return false
}

// Key returns the best available identity key for session and library
// storage: DOI, then PMID, then source id, then the lowercased title.
func (r Record) Key() string {
	switch {
	case r.DOI != "":
		return "doi:" + r.DOI
	case r.PMID != "":
		return "pmid:" + r.PMID
	case r.SourceID != "":
		return "sid:" + r.SourceID
	case r.Title != "":
		return "title:" + strings.ToLower(r.Title)
	default:
		return ""
	}
}

// Reference is a user-asserted citation to verify. It carries the same
// bibliographic fields as Record plus a reporting label and the raw text
// it was parsed from, when the input was free text.
type Reference struct {
	// Label is used purely for reporting and is otherwise inert.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Raw is the original reference text for free-text inputs.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`

	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year    int      `json:"year,omitempty" yaml:"year,omitempty"`
	Journal string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume  string   `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue   string   `json:"issue,omitempty" yaml:"issue,omitempty"`
	Pages   string   `json:"pages,omitempty" yaml:"pages,omitempty"`
	DOI     string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	PMID    string   `json:"pmid,omitempty" yaml:"pmid,omitempty"`
}

// VerificationStatus is the terminal state of verifying one reference.
type VerificationStatus string

const (
	StatusVerified    VerificationStatus = "VERIFIED"
	StatusErrorsFound VerificationStatus = "ERRORS_FOUND"
	StatusNotFound    VerificationStatus = "NOT_FOUND"
	StatusRetracted   VerificationStatus = "RETRACTED"
)

// FieldMismatch reports one disagreement between the asserted reference
// and the resolved source record.
type FieldMismatch struct {
	Field    string `json:"field" yaml:"field"`
	Asserted string `json:"asserted_value" yaml:"asserted_value"`
	Source   string `json:"source_value" yaml:"source_value"`
}

// VerificationResult is the outcome of verifying one reference.
type VerificationResult struct {
	// Index is the 1-based position of the reference in the input list.
	Index int `json:"index" yaml:"index"`

	// Label echoes the reference label for reporting.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	Status VerificationStatus `json:"status" yaml:"status"`

	// Record is the merged source-of-truth record, nil for NOT_FOUND.
	Record *Record `json:"record,omitempty" yaml:"record,omitempty"`

	// Mismatches lists disagreeing fields when Status is ERRORS_FOUND.
	Mismatches []FieldMismatch `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`

	// SourcesUsed lists the source tags that resolved the reference,
	// empty for NOT_FOUND.
	SourcesUsed []string `json:"sources_used" yaml:"sources_used"`
}
