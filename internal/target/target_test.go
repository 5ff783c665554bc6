package target

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jerrinot/pperf/internal/pperferr"
)

func TestMatcherSubstring(t *testing.T) {
	m := New([]string{"DCT4D", "rd_optimize"}, Substring)
	require.True(t, m.Matches("DCT4DBlock::DCT4DBlock"))
	require.True(t, m.Matches("void rd_optimize(int)"))
	require.False(t, m.Matches("std::inner_product"))
}

func TestMatcherExactSimplifies(t *testing.T) {
	m := New([]string{"auto DCT4DBlock::DCT4DBlock(Block4D const&, double)"}, Exact)
	require.True(t, m.Matches("DCT4DBlock::DCT4DBlock"))
	require.False(t, m.Matches("DCT4DBlock::Other"))
}

func TestValidateExactUnique(t *testing.T) {
	targets := []string{"rd_optimize"}
	raw := []string{"rd_optimize", "DCT4DBlock::DCT4DBlock"}
	require.NoError(t, ValidateExact(targets, raw))
}

func TestValidateExactAmbiguous(t *testing.T) {
	targets := []string{"rd_optimize_transform"}
	raw := []string{"rd_optimize_transform.cold", "rd_optimize_transform.part.3"}
	err := ValidateExact(targets, raw)
	require.Error(t, err)
	ambiguous, ok := err.(*pperferr.AmbiguousTargetError)
	require.True(t, ok, "want *pperferr.AmbiguousTargetError, got %T", err)
	require.ElementsMatch(t, raw, ambiguous.Matches)
}

// TestValidateExactAmbiguousSubstring reproduces the worked example where a
// short signature ("DCT4DBlock") is a substring of two distinct raw
// symbols' simplified forms without being equal to either — the case
// equality-of-simplified-forms would have reported as unmatched.
func TestValidateExactAmbiguousSubstring(t *testing.T) {
	targets := []string{"DCT4DBlock"}
	raw := []string{
		"DCT4DBlock::DCT4DBlock(Block4D const&, double)",
		"DCT4DBlock::inverse(Block4D const&)",
	}
	err := ValidateExact(targets, raw)
	require.Error(t, err)
	ambiguous, ok := err.(*pperferr.AmbiguousTargetError)
	require.True(t, ok, "want *pperferr.AmbiguousTargetError, got %T", err)
	require.ElementsMatch(t, raw, ambiguous.Matches)
}

func TestMatcherExactSubstring(t *testing.T) {
	m := New([]string{"DCT4DBlock"}, Exact)
	require.True(t, m.Matches("DCT4DBlock::DCT4DBlock(Block4D const&, double)"))
	require.True(t, m.Matches("DCT4DBlock::inverse(Block4D const&)"))
	require.False(t, m.Matches("std::inner_product"))
}

func TestValidateExactUnmatched(t *testing.T) {
	targets := []string{"does_not_exist"}
	raw := []string{"rd_optimize", "DCT4DBlock::DCT4DBlock"}
	err := ValidateExact(targets, raw)
	require.Error(t, err)
	unmatched, ok := err.(*pperferr.UnmatchedTargetsError)
	require.True(t, ok, "want *pperferr.UnmatchedTargetsError, got %T", err)
	require.Equal(t, targets, unmatched.Signatures)
}
