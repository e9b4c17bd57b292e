// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/refcheck/refcheck/internal/sources"
	"github.com/refcheck/refcheck/pkg/types"
)

// fakeSource scripts one source adapter for verifier tests.
type fakeSource struct {
	name      string
	byDOI     map[string]types.Record
	byPMID    map[string]types.Record
	searchHit *types.Record
	retracted map[string]bool
	err       error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, query string, opts sources.SearchOptions) ([]types.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.searchHit == nil {
		return nil, nil
	}
	return []types.Record{*f.searchHit}, nil
}

func (f *fakeSource) LookupDOI(ctx context.Context, doi string) (*types.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.byDOI[doi]; ok {
		return &rec, nil
	}
	return nil, sources.ErrNotFound
}

func (f *fakeSource) LookupPMID(ctx context.Context, pmid string) (*types.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.byPMID[pmid]; ok {
		return &rec, nil
	}
	return nil, sources.ErrNotFound
}

func (f *fakeSource) CheckRetracted(ctx context.Context, pmid string) (bool, error) {
	if f.retracted == nil {
		return false, sources.ErrUnsupported
	}
	return f.retracted[pmid], nil
}

func sprintRecord() types.Record {
	return types.Record{
		Title:   "A Randomized Trial of Intensive versus Standard Blood-Pressure Control",
		Authors: []string{"Jackson T. Wright"},
		Year:    2015,
		Journal: "New England Journal of Medicine",
		Volume:  "373",
		Issue:   "22",
		Pages:   "2103-2116",
		DOI:     "10.1056/nejmoa1501035",
		Origins: []string{types.SourceCrossref},
	}
}

func testVerifyConfig() types.VerifyConfig {
	return types.VerifyConfig{CheckRetractions: true}
}

func TestVerifyByDOIVerified(t *testing.T) {
	registry := &fakeSource{
		name:  types.SourceCrossref,
		byDOI: map[string]types.Record{"10.1056/nejmoa1501035": sprintRecord()},
	}
	v := New(testVerifyConfig(), registry, nil, nil, nil)

	ref := types.Reference{
		Title:  "A randomized trial of intensive versus standard blood-pressure control",
		Year:   2015,
		Volume: "373",
		DOI:    "doi:10.1056/NEJMoa1501035",
	}
	result := v.Verify(context.Background(), ref, 1)

	if result.Status != types.StatusVerified {
		t.Fatalf("Status = %s, want VERIFIED (mismatches: %+v)", result.Status, result.Mismatches)
	}
	if len(result.SourcesUsed) != 1 || result.SourcesUsed[0] != types.SourceCrossref {
		t.Errorf("SourcesUsed = %v", result.SourcesUsed)
	}
	if result.Record == nil || result.Record.DOI != "10.1056/nejmoa1501035" {
		t.Errorf("Record = %+v", result.Record)
	}
}

func TestVerifyFieldMismatch(t *testing.T) {
	registry := &fakeSource{
		name:  types.SourceCrossref,
		byDOI: map[string]types.Record{"10.1056/nejmoa1501035": sprintRecord()},
	}
	v := New(testVerifyConfig(), registry, nil, nil, nil)

	// Volume asserted as 374; the source says 373.
	ref := types.Reference{
		Title:  "A Randomized Trial of Intensive versus Standard Blood-Pressure Control",
		Volume: "374",
		Pages:  "2103\u20132116", // en dash, must still match
		DOI:    "10.1056/nejmoa1501035",
	}
	result := v.Verify(context.Background(), ref, 1)

	if result.Status != types.StatusErrorsFound {
		t.Fatalf("Status = %s, want ERRORS_FOUND", result.Status)
	}
	if len(result.Mismatches) != 1 {
		t.Fatalf("Mismatches = %+v, want exactly the volume mismatch", result.Mismatches)
	}
	m := result.Mismatches[0]
	if m.Field != "volume" || m.Asserted != "374" || m.Source != "373" {
		t.Errorf("mismatch = %+v", m)
	}
}

func TestVerifyGraphFallbackWhenRegistryMisses(t *testing.T) {
	registry := &fakeSource{name: types.SourceCrossref}
	graph := &fakeSource{
		name: types.SourceSemanticScholar,
		byDOI: map[string]types.Record{"10.1234/abc": {
			Title:   "A Graph-Only Paper",
			Year:    2021,
			DOI:     "10.1234/abc",
			Origins: []string{types.SourceSemanticScholar},
		}},
	}
	v := New(testVerifyConfig(), registry, graph, nil, nil)

	ref := types.Reference{Title: "A Graph-Only Paper", Year: 2021, DOI: "10.1234/abc"}
	result := v.Verify(context.Background(), ref, 1)

	if result.Status != types.StatusVerified {
		t.Fatalf("Status = %s, want VERIFIED via the graph layer", result.Status)
	}
	if len(result.SourcesUsed) != 1 || result.SourcesUsed[0] != types.SourceSemanticScholar {
		t.Errorf("SourcesUsed = %v", result.SourcesUsed)
	}
}

func TestVerifyMergesRegistryAndBiomedical(t *testing.T) {
	cr := sprintRecord()
	pm := sprintRecord()
	pm.PMID = "26551272"
	pm.Journal = "N Engl J Med"
	pm.Origins = []string{types.SourcePubMed}

	registry := &fakeSource{name: types.SourceCrossref, byDOI: map[string]types.Record{cr.DOI: cr}}
	biomedical := &fakeSource{name: types.SourcePubMed, byDOI: map[string]types.Record{cr.DOI: pm}}
	v := New(testVerifyConfig(), registry, nil, biomedical, nil)

	ref := types.Reference{DOI: cr.DOI}
	result := v.Verify(context.Background(), ref, 1)

	if result.Status != types.StatusVerified {
		t.Fatalf("Status = %s, want VERIFIED", result.Status)
	}
	if len(result.SourcesUsed) != 2 {
		t.Errorf("SourcesUsed = %v, want both sources", result.SourcesUsed)
	}
	if result.Record.PMID != "26551272" {
		t.Errorf("PMID = %q, should be filled from the biomedical record", result.Record.PMID)
	}
}

func TestVerifyConflictingPMIDNotMerged(t *testing.T) {
	cr := sprintRecord()
	other := types.Record{
		Title:   "A Completely Different Paper",
		Year:    1999,
		DOI:     "10.9999/other",
		PMID:    "777",
		Origins: []string{types.SourcePubMed},
	}

	registry := &fakeSource{name: types.SourceCrossref, byDOI: map[string]types.Record{cr.DOI: cr}}
	biomedical := &fakeSource{name: types.SourcePubMed, byPMID: map[string]types.Record{"777": other}}
	v := New(testVerifyConfig(), registry, nil, biomedical, nil)

	// The asserted PMID resolves to a different work; its fields must not
	// pollute the comparison record.
	ref := types.Reference{DOI: cr.DOI, PMID: "777"}
	result := v.Verify(context.Background(), ref, 1)

	if result.Record.Title != cr.Title {
		t.Errorf("Title = %q, conflicting record leaked into the merge", result.Record.Title)
	}
	if result.Record.PMID == "777" {
		t.Error("PMID from a conflicting record leaked into the merge")
	}
}

func TestVerifyFallbackSearch(t *testing.T) {
	hit := sprintRecord()
	registry := &fakeSource{name: types.SourceCrossref, searchHit: &hit}
	v := New(testVerifyConfig(), registry, nil, nil, nil)

	ref := types.Reference{
		Raw: "Wright JT et al. A randomized trial of intensive versus standard blood-pressure control. NEJM 2015.",
	}
	result := v.Verify(context.Background(), ref, 1)

	if result.Status != types.StatusVerified {
		t.Fatalf("Status = %s, want VERIFIED via fallback search", result.Status)
	}
}

func TestVerifyFallbackSearchRejectsDissimilar(t *testing.T) {
	hit := sprintRecord()
	registry := &fakeSource{name: types.SourceCrossref, searchHit: &hit}
	v := New(testVerifyConfig(), registry, nil, nil, nil)

	ref := types.Reference{Title: "Entirely unrelated gardening handbook"}
	result := v.Verify(context.Background(), ref, 1)

	if result.Status != types.StatusNotFound {
		t.Fatalf("Status = %s, want NOT_FOUND for a dissimilar search hit", result.Status)
	}
	if len(result.SourcesUsed) != 0 {
		t.Errorf("SourcesUsed = %v, want empty", result.SourcesUsed)
	}
}

func TestVerifyNotFound(t *testing.T) {
	v := New(testVerifyConfig(), &fakeSource{name: types.SourceCrossref}, nil, nil, nil)

	result := v.Verify(context.Background(), types.Reference{Title: "Ghost Citation", Year: 2022}, 4)
	if result.Status != types.StatusNotFound {
		t.Fatalf("Status = %s, want NOT_FOUND", result.Status)
	}
	if result.Index != 4 {
		t.Errorf("Index = %d, want 4", result.Index)
	}
	if result.Record != nil {
		t.Errorf("Record = %+v, want nil", result.Record)
	}
}

func TestVerifyRetractedOverridesVerified(t *testing.T) {
	rec := types.Record{
		Title:   "A Retracted Study",
		Year:    1998,
		PMID:    "9500320",
		Origins: []string{types.SourcePubMed},
	}
	biomedical := &fakeSource{
		name:      types.SourcePubMed,
		byPMID:    map[string]types.Record{"9500320": rec},
		retracted: map[string]bool{"9500320": true},
	}
	v := New(testVerifyConfig(), nil, nil, biomedical, nil)

	ref := types.Reference{Title: "A Retracted Study", Year: 1998, PMID: "9500320"}
	result := v.Verify(context.Background(), ref, 1)

	if result.Status != types.StatusRetracted {
		t.Fatalf("Status = %s, want RETRACTED to override VERIFIED", result.Status)
	}
	if !result.Record.Retracted {
		t.Error("Record.Retracted should be set")
	}
}

func TestVerifyRetractionCheckDisabled(t *testing.T) {
	rec := types.Record{
		Title:   "A Retracted Study",
		Year:    1998,
		PMID:    "9500320",
		Origins: []string{types.SourcePubMed},
	}
	biomedical := &fakeSource{
		name:      types.SourcePubMed,
		byPMID:    map[string]types.Record{"9500320": rec},
		retracted: map[string]bool{"9500320": true},
	}
	cfg := testVerifyConfig()
	cfg.CheckRetractions = false
	v := New(cfg, nil, nil, biomedical, nil)

	ref := types.Reference{Title: "A Retracted Study", Year: 1998, PMID: "9500320"}
	if result := v.Verify(context.Background(), ref, 1); result.Status != types.StatusVerified {
		t.Errorf("Status = %s, want VERIFIED with retraction checks off", result.Status)
	}
}

func TestVerifySourceErrorNonFatal(t *testing.T) {
	registry := &fakeSource{name: types.SourceCrossref, err: errors.New("connection refused")}
	biomedical := &fakeSource{
		name: types.SourcePubMed,
		byDOI: map[string]types.Record{"10.1234/abc": {
			Title: "Survives An Outage", Year: 2020, DOI: "10.1234/abc",
			Origins: []string{types.SourcePubMed},
		}},
	}

	var progress bytes.Buffer
	v := New(testVerifyConfig(), registry, nil, biomedical, &progress)

	ref := types.Reference{Title: "Survives An Outage", Year: 2020, DOI: "10.1234/abc"}
	result := v.Verify(context.Background(), ref, 1)

	if result.Status != types.StatusVerified {
		t.Fatalf("Status = %s, one broken source must not fail the reference", result.Status)
	}
	if !strings.Contains(progress.String(), "crossref") {
		t.Errorf("progress output %q should warn about the failed source", progress.String())
	}
}

func TestVerifyAllBatch(t *testing.T) {
	registry := &fakeSource{
		name:  types.SourceCrossref,
		byDOI: map[string]types.Record{"10.1056/nejmoa1501035": sprintRecord()},
	}
	v := New(testVerifyConfig(), registry, nil, nil, nil)

	refs := []types.Reference{
		{Title: "A Randomized Trial of Intensive versus Standard Blood-Pressure Control", DOI: "10.1056/nejmoa1501035"},
		{Title: "Ghost Citation"},
	}
	results, err := v.VerifyAll(context.Background(), refs)
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Status != types.StatusVerified || results[1].Status != types.StatusNotFound {
		t.Errorf("statuses = %s, %s", results[0].Status, results[1].Status)
	}
	if results[1].Index != 2 {
		t.Errorf("Index = %d, want 2", results[1].Index)
	}
}

func TestWriteReport(t *testing.T) {
	refs := []types.Reference{
		{Title: "A Verified Paper"},
		{Title: "A Missing Paper"},
	}
	rec := sprintRecord()
	results := []types.VerificationResult{
		{Index: 1, Status: types.StatusVerified, Record: &rec, SourcesUsed: []string{types.SourceCrossref}},
		{Index: 2, Status: types.StatusNotFound},
	}

	var buf bytes.Buffer
	WriteReport(&buf, refs, results)
	out := buf.String()

	for _, want := range []string{
		"CITATION VERIFICATION REPORT",
		"Reference 1: VERIFIED (1 source)",
		"Reference 2: NOT FOUND",
		"Total references:  2",
		"Verified:          1",
		"Not found:         1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReportMismatchesAndRetractions(t *testing.T) {
	rec := sprintRecord()
	rec.PMID = "9500320"
	results := []types.VerificationResult{
		{
			Index:  1,
			Label:  "ref12",
			Status: types.StatusErrorsFound,
			Record: &rec,
			Mismatches: []types.FieldMismatch{
				{Field: "volume", Asserted: "374", Source: "373"},
			},
			SourcesUsed: []string{types.SourceCrossref},
		},
		{Index: 2, Status: types.StatusRetracted, Record: &rec, SourcesUsed: []string{types.SourcePubMed}},
	}
	refs := []types.Reference{{Title: "Errored"}, {Title: "Retracted"}}

	var buf bytes.Buffer
	WriteReport(&buf, refs, results)
	out := buf.String()

	for _, want := range []string{
		"[ref12]",
		`manuscript="374" vs source="373"`,
		"*** RETRACTED ***",
		"RETRACTED:         1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	rec := sprintRecord()
	results := []types.VerificationResult{
		{Index: 1, Status: types.StatusVerified, Record: &rec, SourcesUsed: []string{types.SourceCrossref}},
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, []types.Reference{{Title: "T"}}, results); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"verification_results"`) || !strings.Contains(out, `"total": 1`) {
		t.Errorf("unexpected JSON:\n%s", out)
	}
}

func TestVerifyAllProgressPreviewRuneSafe(t *testing.T) {
	var buf bytes.Buffer
	v := New(testVerifyConfig(), nil, nil, nil, &buf)

	// A multibyte title whose 50-byte prefix would split a rune.
	title := "x" + strings.Repeat("ö", 60)
	if _, err := v.VerifyAll(context.Background(), []types.Reference{{Title: title}}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !utf8.ValidString(out) {
		t.Error("progress output contains invalid UTF-8")
	}
	if !strings.Contains(out, "x"+strings.Repeat("ö", 49)+"...") {
		t.Errorf("preview not truncated on a rune boundary:\n%s", out)
	}
}

func TestWriteReportTitleRuneSafe(t *testing.T) {
	refs := []types.Reference{{Title: "x" + strings.Repeat("ö", 80)}}
	results := []types.VerificationResult{{Index: 1, Status: types.StatusNotFound}}

	var buf bytes.Buffer
	WriteReport(&buf, refs, results)
	out := buf.String()

	if !utf8.ValidString(out) {
		t.Error("report contains invalid UTF-8")
	}
	if !strings.Contains(out, "x"+strings.Repeat("ö", 67)+"..") {
		t.Errorf("title not truncated on a rune boundary:\n%s", out)
	}
}
