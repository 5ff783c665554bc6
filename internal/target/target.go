// Package target implements the two target-matching modes (C4): loose
// substring matching for -t/--targets, and exact-signature matching for
// --target-file, where every signature must, as a substring of the
// simplified form, resolve to exactly one distinct raw symbol in the
// report.
package target

import (
	"strings"

	"github.com/jerrinot/pperf/internal/pperferr"
	"github.com/jerrinot/pperf/internal/symbol"
)

// Mode selects how Matcher.Matches compares a symbol against the target
// list.
type Mode int

const (
	// Substring matches any target that appears anywhere in the symbol,
	// raw (unsimplified) — perf report's own column text.
	Substring Mode = iota
	// Exact matches when a target's simplified form appears as a
	// substring of the symbol's simplified form.
	Exact
)

// Matcher holds a target list and the mode it should be compared with.
type Matcher struct {
	targets []string
	mode    Mode
}

// New builds a Matcher over targets using mode.
func New(targets []string, mode Mode) *Matcher {
	return &Matcher{targets: targets, mode: mode}
}

// Matches reports whether sym is one of the configured targets. In
// Substring mode sym is compared raw; in Exact mode sym and each target
// are simplified, then the target's simplified form must appear as a
// substring of sym's simplified form, tolerating profiler-added
// prefixes/suffixes (e.g. clone ".part.N" / ".cold" tags) around a
// signature given without them.
func (m *Matcher) Matches(sym string) bool {
	for _, t := range m.targets {
		if m.mode == Exact {
			if strings.Contains(symbol.Simplify(sym), symbol.Simplify(t)) {
				return true
			}
			continue
		}
		if containsSubstring(sym, t) {
			return true
		}
	}
	return false
}

func containsSubstring(sym, target string) bool {
	return strings.Contains(sym, target)
}

// ValidateExact checks the uniqueness invariant for --target-file mode:
// each signature in targets must, once simplified, appear as a substring
// of exactly one distinct raw symbol's simplified form among rawSymbols.
// It returns a *pperferr.AmbiguousTargetError for the first signature
// matching more than one distinct raw symbol, or a
// *pperferr.UnmatchedTargetsError listing every signature that matched
// none, once all signatures have been checked.
func ValidateExact(targets []string, rawSymbols []string) error {
	var unmatched []string

	for _, t := range targets {
		simplified := symbol.Simplify(t)
		seen := map[string]bool{}
		var distinct []string
		for _, raw := range rawSymbols {
			if !strings.Contains(symbol.Simplify(raw), simplified) {
				continue
			}
			if !seen[raw] {
				seen[raw] = true
				distinct = append(distinct, raw)
			}
		}
		switch len(distinct) {
		case 0:
			unmatched = append(unmatched, t)
		case 1:
			// unique, fine
		default:
			return &pperferr.AmbiguousTargetError{Signature: t, Matches: distinct}
		}
	}

	if len(unmatched) > 0 {
		return &pperferr.UnmatchedTargetsError{Signatures: unmatched}
	}
	return nil
}
