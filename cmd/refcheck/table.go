// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/refcheck/refcheck/pkg/types"
)

const tableLimit = 25

// printRecordTable renders records as a fixed-width text table, capped
// at tableLimit rows.
func printRecordTable(records []types.Record) {
	header := fmt.Sprintf("%-4s %-6s %-8s %-25s %-55s %-30s",
		"#", "Year", "Cites", "First Author", "Title", "Journal")
	fmt.Println(header)
	fmt.Println(strings.Repeat("-", len(header)))

	shown := records
	if len(shown) > tableLimit {
		shown = shown[:tableLimit]
	}
	for i, rec := range shown {
		firstAuthor := "Unknown"
		if len(rec.Authors) > 0 {
			firstAuthor = rec.Authors[0]
		}
		year := "N/A"
		if rec.Year != 0 {
			year = fmt.Sprintf("%d", rec.Year)
		}
		fmt.Printf("%-4d %-6s %-8d %-25s %-55s %-30s\n",
			i+1, year, rec.CitationCount,
			truncate(firstAuthor, 24), truncate(rec.Title, 54), truncate(rec.Journal, 29))
	}

	if len(records) > tableLimit {
		fmt.Printf("... and %d more\n", len(records)-tableLimit)
	}
}

// truncate shortens s to at most max characters, cutting on rune
// boundaries so multibyte titles stay valid UTF-8.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-2]) + ".."
}

// printRecordDetail renders one record in full.
func printRecordDetail(rec types.Record) {
	fmt.Printf("Title:     %s\n", rec.Title)
	if len(rec.Authors) > 0 {
		fmt.Printf("Authors:   %s\n", strings.Join(rec.Authors, ", "))
	}
	if rec.Year != 0 {
		fmt.Printf("Year:      %d\n", rec.Year)
	}
	if rec.Journal != "" {
		fmt.Printf("Journal:   %s\n", rec.Journal)
	}
	if rec.Volume != "" || rec.Issue != "" || rec.Pages != "" {
		fmt.Printf("Locator:   vol %s issue %s pages %s\n", rec.Volume, rec.Issue, rec.Pages)
	}
	if rec.DOI != "" {
		fmt.Printf("DOI:       %s\n", rec.DOI)
	}
	if rec.PMID != "" {
		fmt.Printf("PMID:      %s\n", rec.PMID)
	}
	if rec.SourceID != "" {
		fmt.Printf("Source ID: %s\n", rec.SourceID)
	}
	fmt.Printf("Citations: %d\n", rec.CitationCount)
	if len(rec.Origins) > 0 {
		fmt.Printf("Origins:   %s\n", strings.Join(rec.Origins, ", "))
	}
	if rec.Retracted {
		fmt.Println("*** RETRACTED ***")
	}
	if rec.Abstract != "" {
		fmt.Printf("\n%s\n", truncate(rec.Abstract, 500))
	}
}

func printRecordsJSON(records []types.Record) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
