// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/refcheck/refcheck/pkg/types"
)

const reportRule = "========================================================================"

// WriteReport renders the verification results as a human-readable
// report: one block per reference with its field mismatches and the
// sources that resolved it, followed by a summary.
func WriteReport(w io.Writer, refs []types.Reference, results []types.VerificationResult) {
	fmt.Fprintln(w, reportRule)
	fmt.Fprintln(w, "CITATION VERIFICATION REPORT")
	fmt.Fprintln(w, reportRule)

	var verified, errored, notFound, retracted int
	for i, r := range results {
		var ref types.Reference
		if i < len(refs) {
			ref = refs[i]
		}

		label := ""
		if r.Label != "" {
			label = fmt.Sprintf(" [%s]", r.Label)
		}

		fmt.Fprintln(w)
		switch r.Status {
		case types.StatusRetracted:
			fmt.Fprintf(w, "Reference %d%s: *** RETRACTED ***\n", r.Index, label)
			retracted++
		case types.StatusVerified:
			fmt.Fprintf(w, "Reference %d%s: VERIFIED (%d source%s)\n",
				r.Index, label, len(r.SourcesUsed), plural(len(r.SourcesUsed)))
			verified++
		case types.StatusErrorsFound:
			fmt.Fprintf(w, "Reference %d%s: ERRORS FOUND (%d source%s)\n",
				r.Index, label, len(r.SourcesUsed), plural(len(r.SourcesUsed)))
			errored++
		default:
			fmt.Fprintf(w, "Reference %d%s: NOT FOUND\n", r.Index, label)
			notFound++
		}

		title := ref.Title
		if title == "" {
			title = ref.Raw
		}
		if title == "" {
			title = "(no title)"
		}
		if r := []rune(title); len(r) > 70 {
			title = string(r[:68]) + ".."
		}
		fmt.Fprintf(w, "  Title:  %s\n", title)

		for _, m := range r.Mismatches {
			fmt.Fprintf(w, "  %-14s [XX] manuscript=%q vs source=%q\n", m.Field, m.Asserted, m.Source)
		}

		if r.Record != nil {
			if confirmed := confirmedLine(*r.Record); confirmed != "" {
				fmt.Fprintf(w, "  Confirmed:  %s\n", confirmed)
			}
		}
		if len(r.SourcesUsed) > 0 {
			fmt.Fprintf(w, "  Sources: %s\n", strings.Join(r.SourcesUsed, ", "))
		}
		if r.Status == types.StatusRetracted && r.Record != nil && r.Record.PMID != "" {
			fmt.Fprintf(w, "  *** WARNING: this paper has been RETRACTED (PMID: %s) ***\n", r.Record.PMID)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, reportRule)
	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintf(w, "  Total references:  %d\n", len(results))
	fmt.Fprintf(w, "  Verified:          %d\n", verified)
	fmt.Fprintf(w, "  Errors found:      %d\n", errored)
	fmt.Fprintf(w, "  Not found:         %d\n", notFound)
	if retracted > 0 {
		fmt.Fprintf(w, "  RETRACTED:         %d\n", retracted)
	}
	fmt.Fprintln(w, reportRule)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// confirmedLine summarizes the resolved record's locator metadata.
func confirmedLine(rec types.Record) string {
	var parts []string

	var vip string
	if rec.Volume != "" {
		vip = "Vol " + rec.Volume
		if rec.Issue != "" {
			vip += "(" + rec.Issue + ")"
		}
	} else if rec.Issue != "" {
		vip = "Issue " + rec.Issue
	}
	if rec.Pages != "" {
		if vip != "" {
			vip += ":" + rec.Pages
		} else {
			vip = rec.Pages
		}
	}
	if vip != "" {
		parts = append(parts, vip)
	}

	if rec.PMID != "" {
		parts = append(parts, "PMID: "+rec.PMID)
	}
	if len(rec.Authors) > 0 {
		n := len(rec.Authors)
		if n > 3 {
			n = 3
		}
		parts = append(parts, "Authors: "+strings.Join(rec.Authors[:n], ", "))
	}
	return strings.Join(parts, " | ")
}

// WriteJSON emits the results as a JSON document for machine consumers.
func WriteJSON(w io.Writer, refs []types.Reference, results []types.VerificationResult) error {
	doc := struct {
		VerificationResults []types.VerificationResult `json:"verification_results"`
		Total               int                        `json:"total"`
	}{
		VerificationResults: results,
		Total:               len(refs),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding verification results: %w", err)
	}
	return nil
}
