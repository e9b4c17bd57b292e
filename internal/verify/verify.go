// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify checks user-asserted references against the
// authoritative bibliographic sources. Each reference is resolved
// through a fallback chain (DOI registry, then the citation graph API,
// then the biomedical database), the resolved records are merged into a
// single comparison record, and the asserted fields are compared
// against it field by field.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/sources"
	"github.com/refcheck/refcheck/pkg/types"
)

// Comparison thresholds applied when the config leaves them zero.
// Journal names tolerate more variance than titles because sources
// abbreviate them differently.
const (
	defaultTitleThreshold   = 0.7
	defaultJournalThreshold = 0.5
	fallbackSearchThreshold = 0.5
)

var (
	rawDOIPattern  = regexp.MustCompile(`(?i)(?:doi[:\s]*)?10\.\d{4,}/\S+`)
	rawPMIDPattern = regexp.MustCompile(`(?i)PMID[:\s]*\d+`)
)

// Verifier resolves references against the configured sources. Any of
// the adapters may be nil; the corresponding layer is skipped.
type Verifier struct {
	// Registry is the DOI registry (Crossref), consulted first for
	// references that carry a DOI.
	Registry sources.Adapter

	// Graph is the citation graph API (Semantic Scholar), the second
	// layer when the registry cannot resolve a DOI.
	Graph sources.Adapter

	// Biomedical is the biomedical database (PubMed), consulted for
	// PMIDs, DOI enrichment, and retraction checks.
	Biomedical sources.Adapter

	policy bib.Policy
	cfg    types.VerifyConfig

	// Progress receives per-reference status lines and non-fatal
	// source warnings.
	Progress io.Writer
}

// New builds a Verifier over the given adapters.
func New(cfg types.VerifyConfig, registry, graph, biomedical sources.Adapter, progress io.Writer) *Verifier {
	if cfg.TitleMatchThreshold == 0 {
		cfg.TitleMatchThreshold = defaultTitleThreshold
	}
	if cfg.JournalMatchThreshold == 0 {
		cfg.JournalMatchThreshold = defaultJournalThreshold
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Verifier{
		Registry:   registry,
		Graph:      graph,
		Biomedical: biomedical,
		policy:     bib.NewPolicy(cfg),
		cfg:        cfg,
		Progress:   progress,
	}
}

// VerifyAll verifies every reference in order. Individual failures are
// reported in the result for that reference and never abort the batch.
func (v *Verifier) VerifyAll(ctx context.Context, refs []types.Reference) ([]types.VerificationResult, error) {
	results := make([]types.VerificationResult, 0, len(refs))
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		preview := ref.Title
		if preview == "" {
			preview = ref.Raw
		}
		if r := []rune(preview); len(r) > 50 {
			preview = string(r[:50])
		}
		fmt.Fprintf(v.Progress, "  [%d/%d] checking: %s...\n", i+1, len(refs), preview)

		results = append(results, v.Verify(ctx, ref, i+1))
	}
	return results, nil
}

// Verify resolves and checks a single reference. index is the 1-based
// position used in the result and the report.
func (v *Verifier) Verify(ctx context.Context, ref types.Reference, index int) types.VerificationResult {
	result := types.VerificationResult{
		Index:  index,
		Label:  ref.Label,
		Status: types.StatusNotFound,
	}

	doi := bib.NormalizeDOI(ref.DOI)
	pmid := bib.NormalizePMID(ref.PMID)

	found := v.resolve(ctx, ref, doi, pmid)
	if len(found) == 0 {
		return result
	}

	// Merge only records the policy agrees are the same work; a PMID
	// that resolves to a different paper than the DOI must not pollute
	// the comparison record.
	merged := found[0]
	for _, rec := range found[1:] {
		if v.policy.SameWork(merged, rec) {
			merged = v.policy.Merge(merged, rec)
		}
	}
	result.Record = &merged
	result.SourcesUsed = merged.Origins

	result.Mismatches = v.compare(ref, doi, merged)
	if len(result.Mismatches) > 0 {
		result.Status = types.StatusErrorsFound
	} else {
		result.Status = types.StatusVerified
	}

	if v.cfg.CheckRetractions && v.checkRetracted(ctx, pmid, merged) {
		result.Status = types.StatusRetracted
		merged.Retracted = true
		result.Record = &merged
	}
	return result
}

// resolve walks the three-layer fallback chain and returns every record
// that resolved, one per source.
func (v *Verifier) resolve(ctx context.Context, ref types.Reference, doi, pmid string) []types.Record {
	byTag := map[string]types.Record{}

	lookup := func(a sources.Adapter, fn func() (*types.Record, error)) {
		if a == nil {
			return
		}
		if _, done := byTag[a.Name()]; done {
			return
		}
		rec, err := fn()
		switch {
		case err == nil && rec != nil:
			byTag[a.Name()] = *rec
		case errors.Is(err, sources.ErrNotFound), errors.Is(err, sources.ErrUnsupported):
		case err != nil:
			fmt.Fprintf(v.Progress, "    warning: %s lookup failed: %v\n", a.Name(), err)
		}
	}

	// Layer 1: the registry answers DOI existence authoritatively.
	if doi != "" {
		lookup(v.Registry, func() (*types.Record, error) {
			return v.Registry.LookupDOI(ctx, doi)
		})

		// Layer 2: the graph API covers DOIs the registry lacks.
		if _, ok := byTag[types.SourceCrossref]; !ok {
			lookup(v.Graph, func() (*types.Record, error) {
				return v.Graph.LookupDOI(ctx, doi)
			})
		}

		// The biomedical DB supplies the PMID and retraction data even
		// when another layer already resolved the DOI.
		lookup(v.Biomedical, func() (*types.Record, error) {
			return v.Biomedical.LookupDOI(ctx, doi)
		})
	}

	// Layer 3: direct PMID lookup.
	if pmid != "" {
		lookup(v.Biomedical, func() (*types.Record, error) {
			return v.Biomedical.LookupPMID(ctx, pmid)
		})
	}

	if len(byTag) > 0 {
		return tagOrder(byTag)
	}

	// No identifier resolved: bibliographic fallback search, accepted
	// only above a similarity floor so a near-miss search hit cannot
	// masquerade as the cited work.
	query := fallbackQuery(ref)
	if query == "" {
		return nil
	}
	assertedTitle := ref.Title
	if assertedTitle == "" {
		assertedTitle = ref.Raw
	}

	search := func(a sources.Adapter) {
		if a == nil {
			return
		}
		if _, done := byTag[a.Name()]; done {
			return
		}
		candidates, err := a.Search(ctx, query, sources.SearchOptions{Limit: 3})
		if err != nil {
			if !errors.Is(err, sources.ErrNotFound) {
				fmt.Fprintf(v.Progress, "    warning: %s search failed: %v\n", a.Name(), err)
			}
			return
		}
		for _, cand := range candidates {
			if bib.TokenSimilarity(assertedTitle, cand.Title) > fallbackSearchThreshold {
				byTag[a.Name()] = cand
				return
			}
		}
	}

	search(v.Registry)
	search(v.Biomedical)
	return tagOrder(byTag)
}

// tagOrder returns the resolved records in fixed source order so the
// merge result does not depend on map iteration.
func tagOrder(byTag map[string]types.Record) []types.Record {
	var out []types.Record
	for _, tag := range []string{types.SourceCrossref, types.SourcePubMed, types.SourceSemanticScholar} {
		if rec, ok := byTag[tag]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// fallbackQuery builds a search query from the asserted title, or from
// the raw text with identifier tokens stripped, plus the first author.
func fallbackQuery(ref types.Reference) string {
	var parts []string
	switch {
	case ref.Title != "":
		parts = append(parts, ref.Title)
	case ref.Raw != "":
		clean := rawDOIPattern.ReplaceAllString(ref.Raw, "")
		clean = rawPMIDPattern.ReplaceAllString(clean, "")
		parts = append(parts, strings.TrimSpace(clean))
	}
	if len(ref.Authors) > 0 {
		parts = append(parts, ref.Authors[0])
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// compare checks each asserted field against the merged source record.
// Fields absent on either side are skipped, never counted as mismatches.
func (v *Verifier) compare(ref types.Reference, doi string, src types.Record) []types.FieldMismatch {
	var mismatches []types.FieldMismatch
	add := func(field, asserted, source string) {
		mismatches = append(mismatches, types.FieldMismatch{
			Field: field, Asserted: asserted, Source: source,
		})
	}

	if ref.Title != "" && src.Title != "" {
		if bib.TokenSimilarity(ref.Title, src.Title) < v.cfg.TitleMatchThreshold &&
			bib.TitleKey(ref.Title) != bib.TitleKey(src.Title) {
			add("title", ref.Title, src.Title)
		}
	}
	if ref.Year != 0 && src.Year != 0 && ref.Year != src.Year {
		add("year", strconv.Itoa(ref.Year), strconv.Itoa(src.Year))
	}
	if ref.Journal != "" && src.Journal != "" {
		if bib.TokenSimilarity(ref.Journal, src.Journal) < v.cfg.JournalMatchThreshold {
			add("journal", ref.Journal, src.Journal)
		}
	}
	if len(ref.Authors) > 0 && len(src.Authors) > 0 {
		asserted := bib.Surname(ref.Authors[0])
		source := bib.Surname(src.Authors[0])
		if asserted != "" && source != "" && asserted != source {
			add("first_author", ref.Authors[0], src.Authors[0])
		}
	}
	if ref.Volume != "" && src.Volume != "" && ref.Volume != src.Volume {
		add("volume", ref.Volume, src.Volume)
	}
	if ref.Issue != "" && src.Issue != "" && ref.Issue != src.Issue {
		add("issue", ref.Issue, src.Issue)
	}
	if ref.Pages != "" && src.Pages != "" &&
		bib.NormalizePages(ref.Pages) != bib.NormalizePages(src.Pages) {
		add("pages", ref.Pages, src.Pages)
	}
	if doi != "" && src.DOI != "" && doi != src.DOI {
		add("doi", doi, src.DOI)
	}

	return mismatches
}

// checkRetracted consults the biomedical DB for a retraction notice.
// A record already flagged retracted by an adapter short-circuits.
func (v *Verifier) checkRetracted(ctx context.Context, refPMID string, merged types.Record) bool {
	if merged.Retracted {
		return true
	}
	pmid := refPMID
	if pmid == "" {
		pmid = merged.PMID
	}
	if pmid == "" || v.Biomedical == nil {
		return false
	}

	retracted, err := v.Biomedical.CheckRetracted(ctx, pmid)
	switch {
	case errors.Is(err, sources.ErrNotFound), errors.Is(err, sources.ErrUnsupported):
		return false
	case err != nil:
		fmt.Fprintf(v.Progress, "    warning: retraction check failed for PMID %s: %v\n", pmid, err)
		return false
	}
	return retracted
}
