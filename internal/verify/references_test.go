// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseReferenceText(t *testing.T) {
	tests := []struct {
		name string
		text string
		doi  string
		pmid string
		year int
		vol  string
		iss  string
		pgs  string
	}{
		{
			name: "vancouver with doi",
			text: "1. Wright JT, Williamson JD. A Randomized Trial of Intensive versus Standard Blood-Pressure Control. N Engl J Med. 2015;373(22):2103-2116. doi:10.1056/NEJMoa1501035",
			doi:  "10.1056/nejmoa1501035",
			year: 2015,
			vol:  "373",
			iss:  "22",
			pgs:  "2103-2116",
		},
		{
			name: "doi.org url and pmid",
			text: "[3] de Cabo R. Effects of Intermittent Fasting. https://doi.org/10.1056/NEJMra1905136 PMID: 31881139",
			doi:  "10.1056/nejmra1905136",
			pmid: "31881139",
		},
		{
			name: "apa parenthesized year, volume only",
			text: "Doe, J. (2020). A study of things. Some Journal;15:123-130.",
			year: 2020,
			vol:  "15",
			pgs:  "123-130",
		},
		{
			name: "bare text, nothing extractable",
			text: "An untraceable conference abstract",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := ParseReferenceText(tt.text)
			if ref.DOI != tt.doi {
				t.Errorf("DOI = %q, want %q", ref.DOI, tt.doi)
			}
			if ref.PMID != tt.pmid {
				t.Errorf("PMID = %q, want %q", ref.PMID, tt.pmid)
			}
			if ref.Year != tt.year {
				t.Errorf("Year = %d, want %d", ref.Year, tt.year)
			}
			if ref.Volume != tt.vol || ref.Issue != tt.iss || ref.Pages != tt.pgs {
				t.Errorf("Volume/Issue/Pages = %q/%q/%q, want %q/%q/%q",
					ref.Volume, ref.Issue, ref.Pages, tt.vol, tt.iss, tt.pgs)
			}
			if ref.Raw == "" {
				t.Error("Raw should always be preserved")
			}
		})
	}
}

func TestParseReferenceTextImplausibleYear(t *testing.T) {
	ref := ParseReferenceText("A medieval manuscript (1215). Somewhere.")
	if ref.Year != 0 {
		t.Errorf("Year = %d, years outside 1900-2100 should be ignored", ref.Year)
	}
}

func writeRefsFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadReferencesJSONArray(t *testing.T) {
	path := writeRefsFile(t, "refs.json", `[
		{"title": "Paper One", "doi": "DOI:10.1234/ABC", "year": 2020},
		{"title": "Paper Two", "pmid": "PMID: 12345"}
	]`)

	refs, err := LoadReferences(path)
	if err != nil {
		t.Fatalf("LoadReferences: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2", len(refs))
	}
	if refs[0].DOI != "10.1234/abc" {
		t.Errorf("DOI = %q, should be normalized on load", refs[0].DOI)
	}
	if refs[1].PMID != "12345" {
		t.Errorf("PMID = %q, should be normalized on load", refs[1].PMID)
	}
}

func TestLoadReferencesJSONWrapper(t *testing.T) {
	path := writeRefsFile(t, "refs.json", `{"references": [{"title": "Wrapped"}]}`)
	refs, err := LoadReferences(path)
	if err != nil {
		t.Fatalf("LoadReferences: %v", err)
	}
	if len(refs) != 1 || refs[0].Title != "Wrapped" {
		t.Errorf("refs = %+v", refs)
	}
}

func TestLoadReferencesText(t *testing.T) {
	path := writeRefsFile(t, "refs.txt", `1. First reference. J One. 2020;10(2):1-10. doi:10.1234/first
2. Second reference spanning
   two lines. J Two. 2021.

Third reference after a blank line. PMID: 999`)

	refs, err := LoadReferences(path)
	if err != nil {
		t.Fatalf("LoadReferences: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("len(refs) = %d, want 3: %+v", len(refs), refs)
	}
	if refs[0].DOI != "10.1234/first" {
		t.Errorf("refs[0].DOI = %q", refs[0].DOI)
	}
	if refs[1].Year != 2021 {
		t.Errorf("refs[1].Year = %d, continuation lines should be joined", refs[1].Year)
	}
	if refs[2].PMID != "999" {
		t.Errorf("refs[2].PMID = %q", refs[2].PMID)
	}
}

func TestLoadReferencesMissingFile(t *testing.T) {
	if _, err := LoadReferences(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadReferencesEmptyFile(t *testing.T) {
	path := writeRefsFile(t, "empty.txt", "   \n")
	if _, err := LoadReferences(path); err == nil {
		t.Error("expected an error for an empty file")
	}
}
