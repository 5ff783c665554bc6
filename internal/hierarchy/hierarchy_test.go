package hierarchy

import (
	"math"
	"testing"

	"github.com/jerrinot/pperf/internal/calltree"
	"github.com/jerrinot/pperf/internal/perfreport"
	"github.com/jerrinot/pperf/internal/target"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func buildChainSection() calltree.Section {
	leaf := &calltree.Node{Symbol: "DCT4DBlock::DCT4DBlock", RelativePct: 17.23}
	mid := &calltree.Node{Symbol: "rd_optimize", RelativePct: 49.34, Children: []*calltree.Node{leaf}}
	root := &calltree.Node{Symbol: "parallel_for_with_progress", RelativePct: 90.74, Children: []*calltree.Node{mid}}
	return calltree.Section{
		Entry: perfreport.Entry{ChildrenPct: 90.74, SelfPct: 0.0, Symbol: "parallel_for_with_progress"},
		Roots: []*calltree.Node{root},
	}
}

func TestComputeRelationsDirectAndNested(t *testing.T) {
	m := target.New([]string{"parallel_for_with_progress", "rd_optimize", "DCT4DBlock::DCT4DBlock"}, target.Substring)
	sections := []calltree.Section{buildChainSection()}
	relations := ComputeRelations(sections, m)
	if len(relations) != 2 {
		t.Fatalf("ComputeRelations returned %d relations, want 2: %+v", len(relations), relations)
	}

	direct := relations[0]
	if direct.Caller != "parallel_for_with_progress" || direct.Callee != "rd_optimize" {
		t.Errorf("direct relation = %+v, want parallel_for_with_progress -> rd_optimize", direct)
	}
	if !approx(direct.RelativePct, 49.34, 0.01) {
		t.Errorf("direct relative pct = %.4f, want 49.34", direct.RelativePct)
	}
	if direct.ContextRoot != "parallel_for_with_progress" {
		t.Errorf("direct relation ContextRoot = %q, want parallel_for_with_progress", direct.ContextRoot)
	}

	nested := relations[1]
	if nested.Caller != "rd_optimize" || nested.Callee != "DCT4DBlock::DCT4DBlock" {
		t.Errorf("nested relation = %+v, want rd_optimize -> DCT4DBlock::DCT4DBlock", nested)
	}
	if nested.ContextRoot != "parallel_for_with_progress" {
		t.Errorf("nested relation ContextRoot = %q, want parallel_for_with_progress", nested.ContextRoot)
	}
	if !approx(nested.AbsolutePct, 7.0, 0.05) {
		t.Errorf("nested absolute pct = %.4f, want ~7.0", nested.AbsolutePct)
	}
}

func TestComputeRelationsSkipsLeafTargets(t *testing.T) {
	// A target whose Self% dominates Children% is a leaf in the call
	// tree: its subtree shows callers, not callees, so no relations
	// should be derived from walking "down" from it.
	leafSection := calltree.Section{
		Entry: perfreport.Entry{ChildrenPct: 20, SelfPct: 19.5, Symbol: "leaf_target"},
		Roots: []*calltree.Node{{Symbol: "leaf_target", RelativePct: 20}},
	}
	m := target.New([]string{"leaf_target"}, target.Substring)
	relations := ComputeRelations([]calltree.Section{leafSection}, m)
	if len(relations) != 0 {
		t.Errorf("ComputeRelations on leaf target = %+v, want none", relations)
	}
}

func TestAdjustedPercentageFloorsAtZero(t *testing.T) {
	if got := AdjustedPercentage(10, []float64{6, 7}); got != 0 {
		t.Errorf("AdjustedPercentage = %v, want 0 (floored)", got)
	}
	if got := AdjustedPercentage(10, []float64{3}); !approx(got, 7, 0.001) {
		t.Errorf("AdjustedPercentage = %v, want 7", got)
	}
}

func TestAverageRelationsAcrossReports(t *testing.T) {
	report1 := []Relation{
		{Caller: "root", Callee: "child", ContextRoot: "root", RelativePct: 40, AbsolutePct: 36},
	}
	report2 := []Relation{
		{Caller: "root", Callee: "child", ContextRoot: "root", RelativePct: 60, AbsolutePct: 54},
	}
	averaged := AverageRelations([][]Relation{report1, report2})
	if len(averaged) != 1 {
		t.Fatalf("AverageRelations returned %d relations, want 1: %+v", len(averaged), averaged)
	}
	if !approx(averaged[0].RelativePct, 50, 0.001) {
		t.Errorf("RelativePct = %v, want 50", averaged[0].RelativePct)
	}
	if !approx(averaged[0].AbsolutePct, 45, 0.001) {
		t.Errorf("AbsolutePct = %v, want 45", averaged[0].AbsolutePct)
	}
}

func TestAverageRelationsPresentOnly(t *testing.T) {
	// A relation missing from one report is excluded from that report's
	// contribution to the mean, the same present-only rule C3 applies to
	// averaged entries.
	report1 := []Relation{
		{Caller: "root", Callee: "only_in_one", ContextRoot: "root", AbsolutePct: 10},
	}
	report2 := []Relation{}
	averaged := AverageRelations([][]Relation{report1, report2})
	if len(averaged) != 1 || !approx(averaged[0].AbsolutePct, 10, 0.001) {
		t.Errorf("AverageRelations present-only = %+v, want one relation at 10", averaged)
	}
}

func TestAverageRelationsGroupsByIntermediaryPath(t *testing.T) {
	// Two relations sharing caller/callee/context_root but reached through
	// different intermediary paths are distinct groups, not merged.
	viaA := Relation{Caller: "root", Callee: "deep", ContextRoot: "root", AbsolutePct: 10, IntermediaryPath: []IntermediaryStep{{Symbol: "a", Percentage: 50}}}
	viaB := Relation{Caller: "root", Callee: "deep", ContextRoot: "root", AbsolutePct: 20, IntermediaryPath: []IntermediaryStep{{Symbol: "b", Percentage: 50}}}
	averaged := AverageRelations([][]Relation{{viaA, viaB}})
	if len(averaged) != 2 {
		t.Fatalf("AverageRelations returned %d relations, want 2 distinct intermediary paths: %+v", len(averaged), averaged)
	}
}

// buildThreeSections mirrors what ParseAllSections hands to a real
// --hierarchy run: every target gets its own top-level section, so only
// the non-leaf root is eligible as a C5 traversal root and the two
// downstream targets are callee-only.
func buildThreeSections() []calltree.Section {
	leaf := &calltree.Node{Symbol: "DCT4DBlock::DCT4DBlock", RelativePct: 17.23}
	mid := &calltree.Node{Symbol: "rd_optimize", RelativePct: 49.34, Children: []*calltree.Node{leaf}}
	root := &calltree.Node{Symbol: "parallel_for_with_progress", RelativePct: 90.74, Children: []*calltree.Node{mid}}

	return []calltree.Section{
		{
			Entry: perfreport.Entry{ChildrenPct: 90.74, SelfPct: 0.0, Symbol: "parallel_for_with_progress"},
			Roots: []*calltree.Node{root},
		},
		{
			Entry: perfreport.Entry{ChildrenPct: 49.34, SelfPct: 45.0, Symbol: "rd_optimize"},
			Roots: []*calltree.Node{{Symbol: "rd_optimize", RelativePct: 49.34}},
		},
		{
			Entry: perfreport.Entry{ChildrenPct: 17.23, SelfPct: 16.5, Symbol: "DCT4DBlock::DCT4DBlock"},
			Roots: []*calltree.Node{{Symbol: "DCT4DBlock::DCT4DBlock", RelativePct: 17.23}},
		},
	}
}

func TestBuildEntriesTwoPass(t *testing.T) {
	m := target.New([]string{"parallel_for_with_progress", "rd_optimize", "DCT4DBlock::DCT4DBlock"}, target.Substring)
	sections := buildThreeSections()
	relations := ComputeRelations(sections, m)

	entries := make([]perfreport.Entry, len(sections))
	for i, sec := range sections {
		entries[i] = sec.Entry
	}

	built := BuildEntries(entries, m, relations)
	if len(built) != 3 {
		t.Fatalf("BuildEntries returned %d entries, want 3 (one Pass 1 root, two Pass 2 standalones): %+v", len(built), built)
	}

	var root, mid, leaf *Entry
	for i := range built {
		switch built[i].Symbol {
		case "parallel_for_with_progress":
			root = &built[i]
		case "rd_optimize":
			mid = &built[i]
		case "DCT4DBlock::DCT4DBlock":
			leaf = &built[i]
		}
	}
	if root == nil || mid == nil || leaf == nil {
		t.Fatalf("BuildEntries missing an expected symbol: %+v", built)
	}

	if !root.IsCaller {
		t.Errorf("root entry IsCaller = false, want true (non-leaf, its own Pass 1 row)")
	}
	if !approx(root.AdjustedChildrenPct, 90.74, 0.01) {
		t.Errorf("root adjusted pct = %.4f, want 90.74 (no callers of its own)", root.AdjustedChildrenPct)
	}
	if len(root.Callees) != 1 || root.Callees[0].Callee != "rd_optimize" {
		t.Fatalf("root callees = %+v, want one callee rd_optimize", root.Callees)
	}
	if len(root.Callees[0].Nested) != 1 || root.Callees[0].Nested[0].Callee != "DCT4DBlock::DCT4DBlock" {
		t.Errorf("root's rd_optimize nested callees = %+v, want one callee-of-callee DCT4DBlock::DCT4DBlock", root.Callees[0].Nested)
	}

	if mid.IsCaller {
		t.Errorf("rd_optimize IsCaller = true, want false (leaf, callee-only, standalone row)")
	}
	if len(mid.Contributions) != 1 || mid.Contributions[0].Caller != "parallel_for_with_progress" {
		t.Errorf("rd_optimize contributions = %+v, want one from parallel_for_with_progress", mid.Contributions)
	}
	if !approx(mid.AdjustedChildrenPct, 4.57, 0.05) {
		t.Errorf("rd_optimize adjusted pct = %.4f, want ~4.57", mid.AdjustedChildrenPct)
	}
	if len(mid.Callees) != 1 || mid.Callees[0].Callee != "DCT4DBlock::DCT4DBlock" {
		t.Errorf("rd_optimize standalone callees-of-callees = %+v, want one callee DCT4DBlock::DCT4DBlock from the root's traversal", mid.Callees)
	}

	if leaf.IsCaller {
		t.Errorf("DCT4DBlock IsCaller = true, want false (leaf, callee-only, standalone row)")
	}
	if len(leaf.Contributions) != 1 || leaf.Contributions[0].Caller != "rd_optimize" {
		t.Errorf("DCT4DBlock contributions = %+v, want one from rd_optimize", leaf.Contributions)
	}
	if !approx(leaf.AdjustedChildrenPct, 10.23, 0.05) {
		t.Errorf("DCT4DBlock adjusted pct = %.4f, want ~10.23", leaf.AdjustedChildrenPct)
	}
	if len(leaf.Callees) != 0 {
		t.Errorf("DCT4DBlock standalone callees-of-callees = %+v, want none", leaf.Callees)
	}
}

func TestBuildEntriesSortOrderFollowsInputOrder(t *testing.T) {
	// BuildEntries trusts its caller to have already sorted entries by the
	// selected key; Pass 1 and Pass 2 rows both preserve that order.
	m := target.New([]string{"a", "b"}, target.Substring)
	sections := []calltree.Section{
		{Entry: perfreport.Entry{ChildrenPct: 5, SelfPct: 0, Symbol: "a"}},
		{Entry: perfreport.Entry{ChildrenPct: 90, SelfPct: 0, Symbol: "b"}},
	}
	entries := []perfreport.Entry{
		{ChildrenPct: 90, SelfPct: 0, Symbol: "b"},
		{ChildrenPct: 5, SelfPct: 0, Symbol: "a"},
	}
	relations := ComputeRelations(sections, m)
	built := BuildEntries(entries, m, relations)
	if len(built) != 2 || built[0].Symbol != "b" || built[1].Symbol != "a" {
		t.Errorf("BuildEntries order = %+v, want [b, a] matching entries order", built)
	}
}
