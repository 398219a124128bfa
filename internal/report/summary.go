// Package report renders validation reports for people and machines.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cropmodel/dataset/internal/models"
)

const (
	ruleLine     = "------------------------------------------------------------------------"
	summaryWidth = 40
	indent       = "         "
)

// Section prints a banner heading like the ones between validation phases.
func Section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n%s\n\n", ruleLine, title, ruleLine)
}

// SummaryLine formats one verdict, e.g. "ACEB Validation......... SUCCESS".
func SummaryLine(label string, ok bool) string {
	status := "FAILED"
	if ok {
		status = "SUCCESS"
	}
	dots := summaryWidth - len(label)
	if dots < 3 {
		dots = 3
	}
	return label + strings.Repeat(".", dots) + " " + status
}

// WriteSummary prints the five verdict lines, or the nothing-to-verify notice.
func WriteSummary(w io.Writer, r *models.DatasetReport) {
	if r.NothingToValidate {
		fmt.Fprintln(w, "Nothing to verify")
		return
	}
	v := r.Verdicts
	fmt.Fprintln(w, ruleLine)
	fmt.Fprintln(w, "Summary Report:")
	fmt.Fprintln(w, SummaryLine("ACEB Validation", v.Archives))
	fmt.Fprintln(w, SummaryLine("DOME Validation", v.RuleArchiveNames))
	fmt.Fprintln(w, SummaryLine("ACMO Validation", v.OutputTables))
	fmt.Fprintln(w, SummaryLine("ACMO Renaming", v.OutputTableNames))
	fmt.Fprintln(w, SummaryLine("Linkage Validation", v.Linkage))
}

// WriteText prints a complete human-readable report: file counts, every
// failing or warned file, collisions and the summary.
func WriteText(w io.Writer, r *models.DatasetReport) {
	fmt.Fprintf(w, "Run %s\n", r.RunID)
	if r.Root != "" {
		fmt.Fprintf(w, "Root: %s\n", r.Root)
	}
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started: %s (%s)\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}

	fmt.Fprintln(w)
	for _, c := range models.Categories {
		fmt.Fprintf(w, "%s files: %d\n", c.Label(), r.Counts[c])
	}

	for _, f := range r.Files {
		if !f.Valid || len(f.Errors) > 0 {
			fmt.Fprintf(w, "\n[FAILED] %s\n", f.Path)
			for _, e := range f.Errors {
				fmt.Fprintf(w, "%s%s\n", indent, e)
			}
		}
		if len(f.Warnings) > 0 {
			fmt.Fprintf(w, "\n[WARNING] %s\n", f.Path)
			for _, e := range f.Warnings {
				fmt.Fprintf(w, "%s %s\n", indent, e)
			}
		}
	}

	writeCollisions(w, "output tables will share the name", r.NameCollisions)
	writeCollisions(w, "rule sets share the name", r.RuleCollisions)

	fmt.Fprintln(w)
	WriteSummary(w, r)
}

func writeCollisions(w io.Writer, what string, cs []models.Collision) {
	for _, c := range cs {
		fmt.Fprintf(w, "\n[FAILED] %d %s %s\n", len(c.Sources), what, c.Name)
		for _, s := range c.Sources {
			fmt.Fprintf(w, "%s      %s\n", indent, s)
		}
	}
}
