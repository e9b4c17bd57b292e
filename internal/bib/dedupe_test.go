// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bib

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/refcheck/refcheck/pkg/types"
)

func TestDeduplicateSharedDOI(t *testing.T) {
	p := DefaultPolicy()
	records := []types.Record{
		{Title: "Intermittent Fasting and Metabolic Health", DOI: "10.1056/nejmra1905136", Origins: []string{types.SourceSemanticScholar}},
		{Title: "INTERMITTENT FASTING AND METABOLIC HEALTH.", DOI: "10.1056/nejmra1905136", PMID: "33369366", Origins: []string{types.SourcePubMed}},
	}

	out := p.Deduplicate(records)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	want := []string{types.SourcePubMed, types.SourceSemanticScholar}
	if !reflect.DeepEqual(out[0].Origins, want) {
		t.Errorf("Origins = %v, want union %v", out[0].Origins, want)
	}
	if out[0].PMID != "33369366" {
		t.Errorf("PMID = %q, should survive the merge", out[0].PMID)
	}
}

func TestDeduplicateKeepsDistinctWorks(t *testing.T) {
	p := DefaultPolicy()
	records := []types.Record{
		{Title: "Paper A", DOI: "10.1234/a", Year: 2020},
		{Title: "Paper B", DOI: "10.1234/b", Year: 2020},
		{Title: "Paper C", Year: 2021, Authors: []string{"Jane Doe"}},
	}

	out := p.Deduplicate(records)
	if len(out) != 3 {
		t.Errorf("len(out) = %d, want 3", len(out))
	}
}

func TestDeduplicateOrdering(t *testing.T) {
	p := DefaultPolicy()
	records := []types.Record{
		{Title: "Low", DOI: "10.1234/low", CitationCount: 5},
		{Title: "High", DOI: "10.1234/high", CitationCount: 500},
		{Title: "Tie one", DOI: "10.1234/t1", CitationCount: 50},
		{Title: "Tie two", DOI: "10.1234/t2", CitationCount: 50},
	}

	out := p.Deduplicate(records)
	wantTitles := []string{"High", "Tie one", "Tie two", "Low"}
	for i, want := range wantTitles {
		if out[i].Title != want {
			t.Errorf("out[%d].Title = %q, want %q", i, out[i].Title, want)
		}
	}
}

func TestDeduplicatePermutationInvariantCount(t *testing.T) {
	p := DefaultPolicy()
	records := []types.Record{
		{Title: "Fasting Study", DOI: "10.1234/a", CitationCount: 10, Origins: []string{types.SourceCrossref}},
		{Title: "fasting study", DOI: "10.1234/a", PMID: "111", Origins: []string{types.SourcePubMed}},
		{Title: "Stent Outcomes", PMID: "222", Year: 2019, Origins: []string{types.SourcePubMed}},
		{Title: "Stent outcomes!", PMID: "222", Year: 2019, Origins: []string{types.SourceSemanticScholar}},
		{Title: "A Third Work", Year: 2021, Authors: []string{"Roe J"}, Origins: []string{types.SourceSemanticScholar}},
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]types.Record, len(records))
		copy(shuffled, records)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		out := p.Deduplicate(shuffled)
		if len(out) != 3 {
			t.Fatalf("trial %d: len(out) = %d, want 3 distinct works", trial, len(out))
		}
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	p := DefaultPolicy()
	if out := p.Deduplicate(nil); len(out) != 0 {
		t.Errorf("Deduplicate(nil) = %v, want empty", out)
	}
}
