// Package aggregate merges the flat entries from multiple perf report
// files into a single averaged view (C3), so a caller who passed several
// report files gets one ranked table back instead of one per file.
package aggregate

import (
	"github.com/jerrinot/pperf/internal/perfreport"
)

// Entry is one symbol's metrics averaged over every report that
// mentions it. PerReportValues is parallel to the file list passed to
// Reports, with a nil slot wherever that report had no matching symbol.
type Entry struct {
	Symbol          string
	ChildrenPct     float64
	SelfPct         float64
	PerReportValues []*ReportValue
	ReportCount     int
}

// ReportValue is the (children%, self%) pair contributed by one report.
type ReportValue struct {
	ChildrenPct float64
	SelfPct     float64
}

// Reports holds the per-file parsed entries to be averaged together,
// keeping file order since symbol first-seen order is derived from it.
type Reports struct {
	Files [][]perfreport.Entry
	Names []string
}

// Average computes the arithmetic mean of ChildrenPct and SelfPct for
// each symbol, over the reports where that symbol is present, in the
// order each symbol was first seen across the file list. This matches
// perf report's own file-argument ordering: the result is deterministic
// regardless of how many reports are merged.
func (rs Reports) Average() []Entry {
	n := len(rs.Files)
	if n == 0 {
		return nil
	}

	var order []string
	index := make(map[string]int)
	var slots [][]*ReportValue

	for fileIdx, entries := range rs.Files {
		for _, e := range entries {
			i, seen := index[e.Symbol]
			if !seen {
				i = len(order)
				index[e.Symbol] = i
				order = append(order, e.Symbol)
				slots = append(slots, make([]*ReportValue, n))
			}
			slots[i][fileIdx] = &ReportValue{ChildrenPct: e.ChildrenPct, SelfPct: e.SelfPct}
		}
	}

	result := make([]Entry, len(order))
	for i, sym := range order {
		var childrenSum, selfSum float64
		var present int
		for _, v := range slots[i] {
			if v == nil {
				continue
			}
			childrenSum += v.ChildrenPct
			selfSum += v.SelfPct
			present++
		}
		var childrenPct, selfPct float64
		if present > 0 {
			childrenPct = childrenSum / float64(present)
			selfPct = selfSum / float64(present)
		}
		result[i] = Entry{
			Symbol:          sym,
			ChildrenPct:     childrenPct,
			SelfPct:         selfPct,
			PerReportValues: slots[i],
			ReportCount:     present,
		}
	}
	return result
}

// FromSingle wraps the entries of a single report as averaged entries
// with a report count of 1, so the single-file and multi-file paths
// through rendering share one data shape.
func FromSingle(entries []perfreport.Entry) []Entry {
	result := make([]Entry, len(entries))
	for i, e := range entries {
		result[i] = Entry{
			Symbol:      e.Symbol,
			ChildrenPct: e.ChildrenPct,
			SelfPct:     e.SelfPct,
			PerReportValues: []*ReportValue{
				{ChildrenPct: e.ChildrenPct, SelfPct: e.SelfPct},
			},
			ReportCount: 1,
		}
	}
	return result
}
