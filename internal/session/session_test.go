// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/pkg/types"
)

func TestNewSessionFilename(t *testing.T) {
	s := New("Intermittent Fasting & Metabolic Health")
	assert.True(t, strings.HasPrefix(s.Filename, "research_session_intermittent_fasting_metabolic_health_"))
	assert.True(t, strings.HasSuffix(s.Filename, ".json"))
	assert.NotEmpty(t, s.ID)
	assert.NotNil(t, s.Papers)
	assert.NotNil(t, s.CitationGraph)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New("stent outcomes")
	s.AddRecords(bib.DefaultPolicy(), []types.Record{
		{Title: "Stent Outcomes", DOI: "10.1234/a", Year: 2019, Origins: []string{types.SourceCrossref}},
	}, "stent outcomes", types.SourceCrossref)

	path, err := s.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, s.Filename), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, "stent outcomes", loaded.Topic)
	require.Len(t, loaded.Papers, 1)
	assert.Equal(t, "Stent Outcomes", loaded.Papers["doi:10.1234/a"].Title)
	require.Len(t, loaded.Searches, 1)
	assert.Equal(t, 1, loaded.Searches[0].ResultCount)
}

func TestSaveIsAtomicFilename(t *testing.T) {
	dir := t.TempDir()
	s := New("topic")
	_, err := s.Save(dir)
	require.NoError(t, err)

	// A second save must update the same file, and no temp files may
	// be left behind.
	_, err = s.Save(dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, s.Filename, entries[0].Name())
}

func TestAddRecordsMergesSameWork(t *testing.T) {
	s := New("merge test")
	policy := bib.DefaultPolicy()

	s.AddRecords(policy, []types.Record{
		{Title: "Fasting Study", DOI: "10.1234/a", Origins: []string{types.SourceCrossref}},
	}, "q1", types.SourceCrossref)
	s.AddRecords(policy, []types.Record{
		{Title: "Fasting Study", DOI: "10.1234/a", PMID: "111", Abstract: "An abstract.", Origins: []string{types.SourcePubMed}},
	}, "q2", types.SourcePubMed)

	require.Len(t, s.Papers, 1)
	rec := s.Papers["doi:10.1234/a"]
	assert.Equal(t, "111", rec.PMID, "merge should fill the PMID")
	assert.Equal(t, "An abstract.", rec.Abstract)
	assert.ElementsMatch(t, []string{types.SourceCrossref, types.SourcePubMed}, rec.Origins)
	assert.Len(t, s.Searches, 2)
}

func TestAddRecordsMergesAcrossDifferentKeys(t *testing.T) {
	s := New("cross-key merge")
	policy := bib.DefaultPolicy()

	// First seen without identifiers, keyed by title; the DOI-bearing
	// duplicate must merge into it rather than duplicate the work.
	s.AddRecords(policy, []types.Record{
		{Title: "Fasting Study", Year: 2020, Authors: []string{"Jane Doe"}, Origins: []string{types.SourceSemanticScholar}},
	}, "q1", types.SourceSemanticScholar)
	s.AddRecords(policy, []types.Record{
		{Title: "Fasting study.", Year: 2020, Authors: []string{"Doe J"}, DOI: "10.1234/a", Origins: []string{types.SourceCrossref}},
	}, "q2", types.SourceCrossref)

	require.Len(t, s.Papers, 1)
}

func TestAddRecordsDeterministicMergeTarget(t *testing.T) {
	policy := bib.DefaultPolicy()
	incoming := types.Record{
		Title: "Fasting Study", Year: 2020, Authors: []string{"Jane Doe"},
		SourceID: "abc123", Origins: []string{types.SourceSemanticScholar},
	}

	// Two stored entries, as loaded from an older session file, both
	// match the incoming record. Every run must pick the same merge
	// target: the smallest matching key.
	for i := 0; i < 20; i++ {
		s := New("determinism")
		s.Papers["doi:10.1234/a"] = types.Record{
			Title: "Fasting Study", Year: 2020, Authors: []string{"Jane Doe"},
			DOI: "10.1234/a", Origins: []string{types.SourceCrossref},
		}
		s.Papers["pmid:111"] = types.Record{
			Title: "Fasting Study", Year: 2020, Authors: []string{"Jane Doe"},
			PMID: "111", Origins: []string{types.SourcePubMed},
		}

		s.AddRecords(policy, []types.Record{incoming}, "q", types.SourceSemanticScholar)

		require.Len(t, s.Papers, 2)
		assert.Equal(t, "abc123", s.Papers["doi:10.1234/a"].SourceID,
			"incoming record should merge into the smallest matching key")
		assert.Empty(t, s.Papers["pmid:111"].SourceID)
	}
}

func TestAddCitations(t *testing.T) {
	s := New("graph")
	s.AddCitations("doi:10.1234/a", "citedBy", []string{"sid:x", "sid:y"})
	s.AddCitations("doi:10.1234/a", "cites", []string{"sid:z"})

	edges := s.CitationGraph["doi:10.1234/a"]
	assert.Equal(t, []string{"sid:x", "sid:y"}, edges.CitedBy)
	assert.Equal(t, []string{"sid:z"}, edges.Cites)
}

func TestRecordsSortedByCitations(t *testing.T) {
	s := New("sort")
	policy := bib.DefaultPolicy()
	s.AddRecords(policy, []types.Record{
		{Title: "Low", DOI: "10.1/l", CitationCount: 1},
		{Title: "High", DOI: "10.1/h", CitationCount: 100},
		{Title: "Mid", DOI: "10.1/m", CitationCount: 10},
	}, "q", types.SourceCrossref)

	records := s.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "High", records[0].Title)
	assert.Equal(t, "Low", records[2].Title)
}

func TestList(t *testing.T) {
	dir := t.TempDir()

	a := New("alpha topic")
	_, err := a.Save(dir)
	require.NoError(t, err)

	b := New("beta topic")
	b.Filename = "research_session_beta_topic_2026-01-02.json"
	_, err = b.Save(dir)
	require.NoError(t, err)

	// Junk that should be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "research_session_bad.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.json"), []byte("{}"), 0o644))

	summaries, err := List(dir)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	// Newest first: b was saved last.
	assert.Equal(t, "beta topic", summaries[0].Topic)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
