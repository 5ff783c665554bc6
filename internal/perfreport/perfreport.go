// Package perfreport implements the line classifier and top-level entry
// parser (C1): turning raw "perf report --stdio" text into the flat
// PerfEntry rows that feed both aggregation (internal/aggregate) and call
// tree construction (internal/calltree).
package perfreport

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/jerrinot/pperf/internal/pperferr"
)

// Entry is one top-level row: "NN.NN%  NN.NN%  cmd  so  [.]  symbol".
type Entry struct {
	ChildrenPct float64
	SelfPct     float64
	Symbol      string
}

// SortOrder selects the ranking used by Sort.
type SortOrder int

const (
	SortByChildren SortOrder = iota
	SortBySelf
)

// ParseLine classifies a single line of perf report output. It returns
// ok=false for comment lines ("#..."), call-tree lines (leading "|" or
// "-" after trimming), blank lines, and anything that isn't a top-level
// two-percentage entry.
func ParseLine(line string) (Entry, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Entry{}, false
	}
	if strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, "-") {
		return Entry{}, false
	}
	if trimmed[0] < '0' || trimmed[0] > '9' {
		return Entry{}, false
	}

	pctEnd := strings.IndexByte(trimmed, '%')
	if pctEnd < 0 {
		return Entry{}, false
	}
	childrenPct, err := strconv.ParseFloat(strings.TrimSpace(trimmed[:pctEnd]), 64)
	if err != nil {
		return Entry{}, false
	}

	rest := strings.TrimLeft(trimmed[pctEnd+1:], " \t")
	pctEnd2 := strings.IndexByte(rest, '%')
	if pctEnd2 < 0 {
		return Entry{}, false
	}
	selfPct, err := strconv.ParseFloat(strings.TrimSpace(rest[:pctEnd2]), 64)
	if err != nil {
		return Entry{}, false
	}

	afterSelf := strings.TrimLeft(rest[pctEnd2+1:], " \t")

	var symbol string
	switch {
	case strings.Contains(afterSelf, "[.] "):
		symbol = afterSelf[strings.Index(afterSelf, "[.] ")+4:]
	case strings.Contains(afterSelf, "[k] "):
		symbol = afterSelf[strings.Index(afterSelf, "[k] ")+4:]
	default:
		parts := strings.Fields(afterSelf)
		if len(parts) < 2 {
			return Entry{}, false
		}
		symbol = parts[len(parts)-1]
	}

	return Entry{ChildrenPct: childrenPct, SelfPct: selfPct, Symbol: symbol}, true
}

// Parse reads every line from r, keeping the entries ParseLine accepts.
// It returns pperferr.ErrInvalidFormat, wrapped with name, if no line in
// the input parses as a top-level entry.
func Parse(r io.Reader, name string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e, ok := ParseLine(scanner.Text()); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	if len(entries) == 0 {
		return nil, errors.Wrapf(pperferr.ErrInvalidFormat, "%s: no top-level entries found", name)
	}
	return entries, nil
}

// Sort ranks entries in place. SortBySelf breaks ties by descending
// children percentage, matching perf report's own "-s self" ordering.
func Sort(entries []Entry, order SortOrder) {
	switch order {
	case SortByChildren:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ChildrenPct > entries[j].ChildrenPct
		})
	case SortBySelf:
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].SelfPct != entries[j].SelfPct {
				return entries[i].SelfPct > entries[j].SelfPct
			}
			return entries[i].ChildrenPct > entries[j].ChildrenPct
		})
	}
}
