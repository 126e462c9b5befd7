// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citecheck/pkg/types"
)

// FormatTable writes a run as a human-readable report to w.
func FormatTable(run types.RunResult, w io.Writer) {
	if len(run.Results) == 0 {
		fmt.Fprintln(w, "No citations checked.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-12s  %-5s  %-50s  %s\n", "#", "Status", "Conf", "Title", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 96))

	for _, r := range run.Results {
		src := ""
		if rec := r.Verdict.Record(); rec != nil {
			src = string(rec.Provider())
			if r.Verdict.FromCache {
				src += " (cached)"
			}
		}
		fmt.Fprintf(w, "%-4d  %-12s  %-5.2f  %-50s  %s\n",
			r.Index+1, r.Verdict.Status, r.Verdict.Confidence, truncate(r.Citation.Title, 50), src)
		for _, d := range r.Discrepancies {
			fmt.Fprintf(w, "      %-7s  %-8s  %s\n", d.Severity, d.Field, d.Message)
		}
	}

	s := run.Summary
	fmt.Fprintf(w, "\n%d citations: %d verified, %d partial, %d unverifiable, %d malformed\n",
		s.Total, s.Verified, s.Partial, s.Unverifiable, s.Malformed)
	fmt.Fprintf(w, "%d errors, %d warnings, %d info", s.Errors, s.Warnings, s.Infos)
	if run.TimedOut {
		fmt.Fprint(w, " (run timed out; results are partial)")
	}
	fmt.Fprintln(w)
}

// FormatJSON writes a run as indented JSON to w.
func FormatJSON(run types.RunResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// FormatYAML writes a run as YAML to w.
func FormatYAML(run types.RunResult, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
