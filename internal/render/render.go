// Package render formats parsed and aggregated perf report data as text
// tables, mirroring perf report's own column layout, and as .xlsx
// workbooks for spreadsheet-based review.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jerrinot/pperf/internal/aggregate"
	"github.com/jerrinot/pperf/internal/ansi"
	"github.com/jerrinot/pperf/internal/hierarchy"
	"github.com/jerrinot/pperf/internal/symbol"
)

const tableHeader = "Children%   Self%  Function\n"

// Row is the minimal shape render needs from an aggregated or flat entry.
type Row struct {
	ChildrenPct float64
	SelfPct     float64
	Symbol      string
}

// TruncateSymbol caps symbol at maxLen, replacing the tail with "..." so
// fixed-width tables don't wrap mid-row. maxLen must be at least 3.
func TruncateSymbol(sym string, maxLen int) string {
	if len(sym) <= maxLen {
		return sym
	}
	return sym[:maxLen-3] + "..."
}

func colored(sym string, colorEnabled bool) string {
	return ansi.Color(symbol.Classify(sym), sym, colorEnabled)
}

// Table writes the flat Children%/Self%/Function listing, the format
// used by the top command without --hierarchy, with or without target
// filtering.
func Table(w io.Writer, rows []Row, colorEnabled bool) error {
	if _, err := io.WriteString(w, tableHeader); err != nil {
		return err
	}
	for _, r := range rows {
		sym := colored(TruncateSymbol(r.Symbol, 100), colorEnabled)
		if _, err := fmt.Fprintf(w, "%8.2f  %6.2f  %s\n", r.ChildrenPct, r.SelfPct, sym); err != nil {
			return err
		}
	}
	return nil
}

// HierarchyOptions controls the optional debug annotation lines
// HierarchyTable emits beneath each row.
type HierarchyOptions struct {
	Debug bool
	// PerReportValues, when non-nil, maps a row's symbol to its
	// per-report (children, self) values so multi-report runs can print
	// a "(values: ...)" annotation line.
	PerReportValues map[string][]*aggregate.ReportValue
}

// HierarchyTable writes each target's row followed by its callees
// indented four spaces, with the caller's self% zeroed out on callee
// rows since their self-time already belongs to the callee's own entry
// elsewhere in the table.
func HierarchyTable(w io.Writer, entries []hierarchy.Entry, colorEnabled bool, opts HierarchyOptions) error {
	if _, err := io.WriteString(w, tableHeader); err != nil {
		return err
	}
	for _, e := range entries {
		childrenPct := e.AdjustedChildrenPct
		if e.IsCaller {
			childrenPct = e.OriginalChildrenPct
		}
		sym := colored(TruncateSymbol(e.Symbol, 100), colorEnabled)
		if _, err := fmt.Fprintf(w, "%8.2f  %6.2f  %s\n", childrenPct, e.OriginalSelfPct, sym); err != nil {
			return err
		}

		if opts.Debug {
			if !e.IsCaller && len(e.Contributions) > 0 {
				if err := writeLine(w, standaloneAnnotation(e)); err != nil {
					return err
				}
			}
			if vals, ok := opts.PerReportValues[e.Symbol]; ok {
				if err := writeLine(w, valuesAnnotation(vals)); err != nil {
					return err
				}
			}
		}

		if err := writeCallees(w, e.Callees, 1, colorEnabled, opts); err != nil {
			return err
		}
	}
	return nil
}

// writeCallees renders one level of a hierarchy row's callees, then
// recurses into each callee's own Nested callees one indent level deeper,
// so C7's Pass-1 "callees of callees" and Pass-2 standalone callees both
// render at arbitrary depth.
func writeCallees(w io.Writer, callees []hierarchy.Relation, depth int, colorEnabled bool, opts HierarchyOptions) error {
	indent := strings.Repeat("    ", depth)
	for _, callee := range callees {
		calleeSym := colored(TruncateSymbol(callee.Callee, 96), colorEnabled)
		if _, err := fmt.Fprintf(w, "%8.2f  %6.2f  %s%s\n", callee.RelativePct, 0.0, indent, calleeSym); err != nil {
			return err
		}
		if opts.Debug {
			if err := writeLine(w, relationAnnotation(callee)); err != nil {
				return err
			}
		}
		if err := writeCallees(w, callee.Nested, depth+1, colorEnabled, opts); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w io.Writer, s string) error {
	_, err := fmt.Fprintf(w, "          %s\n", s)
	return err
}

// relationAnnotation renders "(direct: X.XX%)" for a callee reached with
// no intermediaries, or "(via a P% × b P% × ... × Plast% = R.RR%)" for
// one reached through other target-tree functions.
func relationAnnotation(r hierarchy.Relation) string {
	if len(r.IntermediaryPath) == 0 {
		return fmt.Sprintf("(direct: %.2f%%)", r.RelativePct)
	}
	var factors []string
	for _, step := range r.IntermediaryPath {
		factors = append(factors, fmt.Sprintf("%s %.2f%%", step.Symbol, step.Percentage))
	}
	factors = append(factors, fmt.Sprintf("%.2f%%", r.CalleeDirectPct))
	return fmt.Sprintf("(via %s = %.2f%%)", strings.Join(factors, " × "), r.RelativePct)
}

// standaloneAnnotation renders the subtraction breakdown for a row whose
// adjusted percentage came from removing each caller's contribution.
func standaloneAnnotation(e hierarchy.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(standalone: %.2f%%", e.OriginalChildrenPct)
	for _, c := range e.Contributions {
		fmt.Fprintf(&b, " - %.2f%% (%s)", c.AbsolutePct, c.Caller)
	}
	fmt.Fprintf(&b, " = %.2f%%)", e.AdjustedChildrenPct)
	return b.String()
}

// valuesAnnotation renders the per-report Children% list for multi-report
// runs, with "-" standing in for a report that had no matching symbol.
func valuesAnnotation(values []*aggregate.ReportValue) string {
	var parts []string
	for _, v := range values {
		if v == nil {
			parts = append(parts, "-")
			continue
		}
		parts = append(parts, fmt.Sprintf("%.2f%%", v.ChildrenPct))
	}
	return fmt.Sprintf("(values: %s)", strings.Join(parts, ", "))
}
