// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bib implements the reconciliation engine: identifier and string
// normalization, record identity matching, field-level merging under a
// source-precedence policy, and multi-source deduplication.
package bib

import (
	"regexp"
	"strings"
	"unicode"
)

// doiPattern matches normalized DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// doiPrefixPattern strips URL and "doi:" prefixes, case-insensitively.
var doiPrefixPattern = regexp.MustCompile(`(?i)^(?:https?://(?:dx\.)?doi\.org/|doi:\s*)`)

// pmidPattern matches a bare numeric PMID.
var pmidPattern = regexp.MustCompile(`^\d+$`)

// NormalizeDOI canonicalizes a DOI: trims whitespace and trailing
// punctuation, strips "doi:" and doi.org URL prefixes, and lowercases.
// Returns "" when the input does not look like a DOI, so callers treat
// the identifier as absent rather than failing.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimRight(doi, ".,;)")
	doi = doiPrefixPattern.ReplaceAllString(doi, "")
	doi = strings.ToLower(strings.TrimSpace(doi))
	if !doiPattern.MatchString(doi) {
		return ""
	}
	return doi
}

// NormalizePMID canonicalizes a PMID: trims whitespace and an optional
// "PMID:" prefix. Returns "" for anything non-numeric.
func NormalizePMID(pmid string) string {
	pmid = strings.TrimSpace(pmid)
	if rest, ok := strings.CutPrefix(strings.ToUpper(pmid), "PMID:"); ok {
		pmid = strings.TrimSpace(rest)
	}
	if !pmidPattern.MatchString(pmid) {
		return ""
	}
	return pmid
}

// leadingArticles are dropped from the front of title comparison keys.
var leadingArticles = map[string]bool{"a": true, "an": true, "the": true}

// TitleKey returns a comparison key for a title: Unicode punctuation
// folded, lowercased, punctuation stripped, whitespace collapsed, and a
// leading article removed. The display title is never replaced by this.
func TitleKey(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(foldPunctuation(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	fields := strings.Fields(b.String())
	if len(fields) > 1 && leadingArticles[fields[0]] {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// foldPunctuation maps Unicode dash and quote variants to their ASCII
// equivalents so that source formatting differences do not defeat
// comparison.
func foldPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '‐', '‑', '‒', '–', '—', '―', '−':
			return '-'
		case '‘', '’', '“', '”':
			return '\''
		}
		return r
	}, s)
}

// FirstAuthorSurname extracts a lowercased surname comparison key from
// the first entry of an author list. It tolerates "Surname, First",
// "First Middle Surname", "Surname FM", and "F Surname" forms. Returns
// "" when the list is empty or the name is unusable.
func FirstAuthorSurname(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	return Surname(authors[0])
}

// Surname extracts the lowercased family name from a single author name.
func Surname(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if before, _, ok := strings.Cut(name, ","); ok {
		return strings.ToLower(strings.TrimSpace(before))
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return strings.ToLower(parts[0])
	}
	// "Surname FM": a trailing 1-2 letter token is an initial block.
	if isInitial(parts[len(parts)-1]) {
		return strings.ToLower(parts[0])
	}
	// "F Surname": a leading initial means the last token is the surname.
	if isInitial(parts[0]) {
		return strings.ToLower(parts[len(parts)-1])
	}
	return strings.ToLower(parts[len(parts)-1])
}

func isInitial(tok string) bool {
	tok = strings.ReplaceAll(tok, ".", "")
	if len(tok) == 0 || len(tok) > 2 {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

var wordPattern = regexp.MustCompile(`\w+`)

// TokenSimilarity computes Jaccard similarity over lowercased word
// tokens of the two strings, after punctuation folding. Returns a value
// in [0, 1]; empty input on either side yields 0.
func TokenSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range wordPattern.FindAllString(strings.ToLower(foldPunctuation(s)), -1) {
		set[tok] = true
	}
	return set
}

// NormalizePages folds en-dashes to hyphens and trims whitespace so page
// ranges from different sources compare exactly.
func NormalizePages(pages string) string {
	return strings.TrimSpace(foldPunctuation(pages))
}
