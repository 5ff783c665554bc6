// Package pperferr defines the error taxonomy shared across pperf's
// pipeline stages. Each sentinel maps to exactly one exit code; cmd/pperf
// is the only place that performs that mapping.
package pperferr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors for errors.Is / errors.Cause comparisons. Pipeline code
// should wrap these with pkg/errors.Wrap to attach context without losing
// the underlying kind.
var (
	ErrFileNotFound     = errors.New("file not found")
	ErrInvalidFormat    = errors.New("invalid perf report format")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNoMatches        = errors.New("no matching functions found")
	ErrAmbiguousTarget  = errors.New("ambiguous target signature")
	ErrUnmatchedTarget  = errors.New("unmatched target signature")
	ErrHierarchyTargets = errors.New("--hierarchy requires a non-empty target set")
	ErrInternal         = errors.New("internal invariant violation")
)

// ExitCode maps an error produced anywhere in the pipeline to the process
// exit code defined by the CLI contract. Unrecognized errors exit 2, the
// same code used for generic format errors, since by the time main sees
// an un-sentineled error the input has already been judged unusable.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch errors.Cause(err) {
	case ErrFileNotFound:
		return 1
	case ErrInvalidFormat:
		return 2
	case ErrInvalidArgument, ErrHierarchyTargets:
		return 3
	case ErrNoMatches:
		return 4
	case ErrAmbiguousTarget:
		return 5
	case ErrUnmatchedTarget:
		return 6
	default:
		return 2
	}
}

// AmbiguousTargetError lists the distinct raw symbols a single exact
// signature matched, per the uniqueness rule in the target matcher (C4).
type AmbiguousTargetError struct {
	Signature string
	Matches   []string
}

func (e *AmbiguousTargetError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous target signature %q\nmatches:\n", e.Signature)
	for _, m := range e.Matches {
		fmt.Fprintf(&b, "  - %s\n", m)
	}
	b.WriteString("use the complete function signature")
	return b.String()
}

// Cause lets errors.Cause route this type to ErrAmbiguousTarget's exit
// code without every caller needing to wrap it explicitly.
func (e *AmbiguousTargetError) Cause() error { return ErrAmbiguousTarget }

// UnmatchedTargetsError lists exact signatures that matched zero entries.
type UnmatchedTargetsError struct {
	Signatures []string
}

func (e *UnmatchedTargetsError) Error() string {
	var b strings.Builder
	b.WriteString("no matches found for target signatures:\n")
	for _, s := range e.Signatures {
		fmt.Fprintf(&b, "  - %s\n", s)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Cause lets errors.Cause route this type to ErrUnmatchedTarget's exit
// code without every caller needing to wrap it explicitly.
func (e *UnmatchedTargetsError) Cause() error { return ErrUnmatchedTarget }
