// Package symbol simplifies and classifies raw perf-report symbols for
// display. It is an external collaborator of the call-hierarchy core.
// Top-level entry symbols stay raw through parsing and averaging, but
// call-tree node symbols are simplified as they are parsed
// (internal/calltree), so relations and their intermediary paths carry
// simplified names rather than raw ones; cmd/pperf simplifies averaged
// entry symbols before they reach internal/hierarchy.
package symbol

import (
	"strings"
)

// Type classifies a symbol's origin for color coding in internal/ansi.
type Type int

const (
	User Type = iota
	Library
	Unresolved
)

var returnTypes = []string{
	"void ", "int ", "double ", "float ", "char ", "bool ",
	"unsigned int ", "unsigned ", "long ", "short ",
	"const ", "static ", "virtual ", "inline ",
}

var libcFunctions = map[string]bool{
	"malloc": true, "free": true, "memset": true, "memcpy": true,
	"memmove": true, "calloc": true, "realloc": true, "strlen": true,
	"strcpy": true, "strcat": true,
}

var cloneSuffixes = []string{".cold", ".part.", ".isra.", ".constprop."}

// IsHexAddress reports whether symbol looks like an unresolved address:
// a "0x"-prefixed hex run, or an all-hex-digit run (e.g. from a stripped
// binary where perf could only print the raw address).
func IsHexAddress(sym string) bool {
	if rest, ok := strings.CutPrefix(sym, "0x"); ok {
		return rest != "" && isAllHex(rest)
	}
	return sym != "" && isAllHex(sym)
}

func isAllHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func isLibrarySymbol(sym string) bool {
	if strings.HasPrefix(sym, "std::") || strings.HasPrefix(sym, "__") {
		return true
	}
	if libcFunctions[sym] {
		return true
	}
	if strings.HasPrefix(sym, "pthread_") {
		return true
	}
	return strings.Contains(sym, "@GLIBC") || strings.Contains(sym, "@GCC")
}

// Classify determines the Type of a raw (unsimplified) symbol.
func Classify(sym string) Type {
	switch {
	case IsHexAddress(sym):
		return Unresolved
	case isLibrarySymbol(sym):
		return Library
	default:
		return User
	}
}

func stripReturnType(sym string) string {
	for _, rt := range returnTypes {
		if strings.HasPrefix(sym, rt) {
			return sym[len(rt):]
		}
	}
	return sym
}

// stripTemplateParams removes <...> spans, tracking nesting depth so
// "std::vector<std::pair<int, double>>" collapses to "std::vector".
func stripTemplateParams(sym string) string {
	var b strings.Builder
	depth := 0
	for _, c := range sym {
		switch {
		case c == '<':
			depth++
		case c == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// stripArguments cuts sym at its first parenthesized argument list,
// dropping that list and everything after it, leaving "operator()"
// intact as a special case.
func stripArguments(sym string) string {
	var b strings.Builder
	depth := 0
	runes := []rune(sym)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '(':
			if strings.HasSuffix(b.String(), "operator") {
				b.WriteString("()")
				if i+1 < len(runes) && runes[i+1] == ')' {
					i++
				}
				continue
			}
			if depth == 0 {
				return b.String()
			}
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func stripCloneSuffix(sym string) string {
	for _, suffix := range cloneSuffixes {
		if idx := strings.Index(sym, suffix); idx >= 0 {
			return sym[:idx]
		}
	}
	return sym
}

// collapseLambda turns "{lambda(int)#1}" into "{lambda}", leaving
// everything else untouched. Must run before stripArguments so the
// lambda's own parameter list isn't mistaken for the symbol's.
func collapseLambda(sym string) string {
	var b strings.Builder
	runes := []rune(sym)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '{' {
			b.WriteRune(c)
			continue
		}
		b.WriteRune(c)
		if i+7 <= len(runes) && string(runes[i+1:i+7]) == "lambda" {
			b.WriteString("lambda}")
			for i++; i < len(runes) && runes[i] != '}'; i++ {
			}
			continue
		}
	}
	return b.String()
}

// Simplify strips return types, template parameters, argument lists,
// clone suffixes, and collapses lambda syntax, matching the textual
// presentation a reader of perf report expects. Hex addresses pass
// through unchanged since there is nothing to simplify.
func Simplify(sym string) string {
	if IsHexAddress(sym) {
		return sym
	}
	s := strings.TrimPrefix(sym, "auto ")
	s = collapseLambda(s)
	s = stripReturnType(s)
	s = stripTemplateParams(s)
	s = stripArguments(s)
	s = stripCloneSuffix(s)
	return s
}
