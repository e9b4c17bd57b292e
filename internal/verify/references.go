// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/pkg/types"
)

var (
	refNumberPattern = regexp.MustCompile(`^\s*\[?\d+[\].)]\s*`)
	doiURLPattern    = regexp.MustCompile(`(?i)(?:https?://doi\.org/|doi[:\s]*)(10\.\d{4,}/[^\s,;"]+)`)
	doiBarePattern   = regexp.MustCompile(`\b(10\.\d{4,}/[^\s,;"]+)`)
	pmidPattern      = regexp.MustCompile(`(?i)PMID[:\s]*(\d+)`)
	yearParenPattern = regexp.MustCompile(`\((\d{4})\)`)
	yearFreePattern  = regexp.MustCompile(`[.\s;,](\d{4})[.\s;,]`)
	// "10(4):663-72" and the volume-only ";15:123-130" form.
	vipPattern = regexp.MustCompile(`(\d+)\((\d+)\)[:\s]*(\d+[-\x{2013}]\d+)`)
	vpPattern  = regexp.MustCompile(`;(\d+)[:\s]+(\d+[-\x{2013}]\d+)`)
)

// ParseReferenceText extracts structured fields from one raw reference
// string. It tolerates the common citation formats (AMA, Vancouver, APA,
// numbered) and fills whatever fields it can recognize; the raw text is
// always preserved for fallback searching.
func ParseReferenceText(text string) types.Reference {
	ref := types.Reference{Raw: strings.TrimSpace(text)}
	cleaned := refNumberPattern.ReplaceAllString(text, "")

	if m := doiURLPattern.FindStringSubmatch(cleaned); m != nil {
		ref.DOI = bib.NormalizeDOI(m[1])
	} else if m := doiBarePattern.FindStringSubmatch(cleaned); m != nil {
		ref.DOI = bib.NormalizeDOI(m[1])
	}

	if m := pmidPattern.FindStringSubmatch(cleaned); m != nil {
		ref.PMID = m[1]
	}

	yearMatch := yearParenPattern.FindStringSubmatch(cleaned)
	if yearMatch == nil {
		yearMatch = yearFreePattern.FindStringSubmatch(cleaned)
	}
	if yearMatch != nil {
		if y, err := strconv.Atoi(yearMatch[1]); err == nil && y >= 1900 && y <= 2100 {
			ref.Year = y
		}
	}

	if m := vipPattern.FindStringSubmatch(cleaned); m != nil {
		ref.Volume, ref.Issue, ref.Pages = m[1], m[2], m[3]
	} else if m := vpPattern.FindStringSubmatch(cleaned); m != nil {
		ref.Volume, ref.Pages = m[1], m[2]
	}

	return ref
}

// LoadReferences reads a reference list from a JSON or plain-text file.
//
// JSON inputs are either a bare array of reference objects or an object
// with a "references" key. Anything that fails to parse as JSON is
// treated as text: one reference per line or per paragraph, with
// numbered lines ("1.", "[12]") starting a new reference.
func LoadReferences(path string) ([]types.Reference, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading references file: %w", err)
	}
	content := strings.TrimSpace(string(raw))
	if content == "" {
		return nil, fmt.Errorf("references file %s is empty", path)
	}

	if refs, ok := parseJSONReferences(content); ok {
		return refs, nil
	}
	return parseTextReferences(content), nil
}

func parseJSONReferences(content string) ([]types.Reference, bool) {
	var list []types.Reference
	if err := json.Unmarshal([]byte(content), &list); err == nil {
		return normalizeRefs(list), true
	}

	var wrapper struct {
		References []types.Reference `json:"references"`
	}
	if err := json.Unmarshal([]byte(content), &wrapper); err == nil && wrapper.References != nil {
		return normalizeRefs(wrapper.References), true
	}
	return nil, false
}

func normalizeRefs(refs []types.Reference) []types.Reference {
	for i := range refs {
		refs[i].DOI = bib.NormalizeDOI(refs[i].DOI)
		refs[i].PMID = bib.NormalizePMID(refs[i].PMID)
	}
	return refs
}

func parseTextReferences(content string) []types.Reference {
	var refs []types.Reference
	var current []string

	flush := func() {
		if len(current) > 0 {
			refs = append(refs, ParseReferenceText(strings.Join(current, " ")))
			current = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		switch {
		case stripped == "":
			flush()
		case refNumberPattern.MatchString(stripped) && len(current) > 0:
			flush()
			current = append(current, stripped)
		default:
			current = append(current, stripped)
		}
	}
	flush()

	return refs
}
