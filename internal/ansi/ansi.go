// Package ansi decides whether color output is appropriate and maps
// symbol.Type to concrete escape codes. Kept separate from internal/symbol
// so a caller can classify without pulling in terminal-detection logic,
// and vice versa for a caller that already knows it wants color.
package ansi

import (
	"os"

	"golang.org/x/term"

	"github.com/jerrinot/pperf/internal/symbol"
)

const (
	reset    = "\x1b[0m"
	userCol  = "\x1b[36m" // cyan
	libCol   = "\x1b[90m" // bright black
	unresCol = "\x1b[33m" // yellow
)

// Enabled reports whether color codes should be emitted, honoring NO_COLOR
// (https://no-color.org) before falling back to a TTY check on fd.
func Enabled(fd uintptr) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return term.IsTerminal(int(fd))
}

// Color wraps s in the escape sequence for t, or returns s unchanged when
// enabled is false.
func Color(t symbol.Type, s string, enabled bool) string {
	if !enabled {
		return s
	}
	var code string
	switch t {
	case symbol.User:
		code = userCol
	case symbol.Library:
		code = libCol
	case symbol.Unresolved:
		code = unresCol
	default:
		return s
	}
	return code + s + reset
}
