// Package hierarchy implements the caller/callee relation finder (C5),
// the per-callee contribution reducer (C6), and the two-pass hierarchy
// table assembler (C7). Together these turn a flat set of target
// functions into the nested "who calls whom, and for how much" view the
// --hierarchy flag renders.
package hierarchy

import (
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/jerrinot/pperf/internal/calltree"
	"github.com/jerrinot/pperf/internal/perfreport"
	"github.com/jerrinot/pperf/internal/symbol"
	"github.com/jerrinot/pperf/internal/target"
)

// IntermediaryStep is one non-target function traversed between a caller
// and callee, kept so debug output can show the full calculation path.
type IntermediaryStep struct {
	Symbol     string
	Percentage float64
}

// CallerContribution is one caller's absolute-percentage contribution to
// a callee, before it gets subtracted from the callee's own entry.
type CallerContribution struct {
	Caller      string
	AbsolutePct float64
}

// Relation is a caller→callee edge between two target functions.
// ContextRoot always names the non-leaf target top-level entry whose
// traversal found this edge, even when caller is that same root. Nested
// holds this callee's own target callees, within the same root's
// traversal, for C7's recursive display.
type Relation struct {
	Caller           string
	Callee           string
	RelativePct      float64
	AbsolutePct      float64
	ContextRoot      string
	IntermediaryPath []IntermediaryStep
	CalleeDirectPct  float64
	Nested           []Relation
}

// Entry is a target function's computed hierarchy row: its own metrics,
// adjusted for time attributed to its callers, plus the callees found
// under it. A non-leaf target gets an IsCaller Pass 1 row; a target also
// discovered as some caller's callee additionally gets a standalone Pass
// 2 row (IsCaller false, Contributions set) with its adjusted remainder,
// unless that remainder is below 0.01 and the target has no self time.
type Entry struct {
	Symbol              string
	OriginalChildrenPct float64
	OriginalSelfPct     float64
	AdjustedChildrenPct float64
	Callees             []Relation
	IsCaller            bool
	Contributions       []CallerContribution
}

// isLeaf reports whether entry's call tree shows its callers rather than
// its callees: Self% close to Children%, or dominating more than half of
// it, means perf report attributed almost all of entry's time to itself
// and displayed the path INTO it, not out of it.
func isLeaf(entry perfreport.Entry) bool {
	diff := entry.ChildrenPct - entry.SelfPct
	if diff < 0 {
		diff = -diff
	}
	return diff < 1.0 || entry.SelfPct > entry.ChildrenPct*0.5
}

type stackFrame struct {
	symbol        string
	cumulativePct float64
}

// ComputeRelations runs C5 over every section's call tree, looking for
// edges between target functions. Non-leaf target top-level entries are
// treated as roots of the search; leaf entries are skipped because their
// call tree shows callers, not callees, and would produce backwards
// relations.
func ComputeRelations(sections []calltree.Section, m *target.Matcher) []Relation {
	var all []Relation

	for _, sec := range sections {
		// Entry.Symbol is raw; the matcher itself needs that (Substring
		// mode's "raw symbol" rule, Exact mode's substring tolerance). The
		// root identity carried through the traversal below is simplified,
		// since it is compared against and stored alongside call-tree node
		// symbols, which are always simplified.
		if !m.Matches(sec.Entry.Symbol) {
			continue
		}
		if isLeaf(sec.Entry) {
			continue
		}
		rootSymbol := symbol.Simplify(sec.Entry.Symbol)

		for _, root := range sec.Roots {
			seen := mapset.NewThreadUnsafeSet[string](rootSymbol)
			var stack []stackFrame
			var path []IntermediaryStep

			if !m.Matches(root.Symbol) {
				path = append(path, IntermediaryStep{Symbol: root.Symbol, Percentage: root.RelativePct})
			}

			relations := findTargetCallees(
				root, m, rootSymbol, sec.Entry.ChildrenPct,
				&stack, root.RelativePct, seen, true, &path,
			)
			all = append(all, relations...)
		}
	}

	return all
}

// findTargetCallees is the recursive DFS core of C5. See
// cumulativePct/insideRootRecursion semantics inline: when the traversal
// re-enters the root caller itself (recursion), the cumulative product
// resets to the child's own step percentage rather than compounding,
// since perf report shows the recursive call's time relative to the
// outer call, not relative to the original root's total.
func findTargetCallees(
	node *calltree.Node,
	m *target.Matcher,
	rootCaller string,
	rootChildrenPct float64,
	targetStack *[]stackFrame,
	cumulativePct float64,
	seen mapset.Set[string],
	insideRootRecursion bool,
	currentPath *[]IntermediaryStep,
) []Relation {
	var relations []Relation

	for _, child := range node.Children {
		childPct := child.RelativePct
		isRootRecursion := child.Symbol == rootCaller
		stillInsideRootRecursion := isRootRecursion

		var newCumulative float64
		if isRootRecursion {
			newCumulative = childPct
		} else {
			newCumulative = cumulativePct * childPct / 100.0
		}

		if m.Matches(child.Symbol) {
			if seen.Contains(child.Symbol) {
				fresh := []IntermediaryStep{}
				deeper := findTargetCallees(
					child, m, rootCaller, rootChildrenPct, targetStack,
					newCumulative, seen, stillInsideRootRecursion, &fresh,
				)
				relations = append(relations, deeper...)
				continue
			}

			var relation Relation
			if len(*targetStack) == 0 {
				effectivePct := newCumulative
				if insideRootRecursion {
					effectivePct = childPct
				}
				relation = Relation{
					Caller:           rootCaller,
					Callee:           child.Symbol,
					RelativePct:      effectivePct,
					AbsolutePct:      rootChildrenPct * effectivePct / 100.0,
					ContextRoot:      rootCaller,
					IntermediaryPath: append([]IntermediaryStep{}, *currentPath...),
					CalleeDirectPct:  childPct,
				}
			} else {
				top := (*targetStack)[len(*targetStack)-1]
				relativeToCaller := 0.0
				if top.cumulativePct > 0 {
					relativeToCaller = newCumulative / top.cumulativePct * 100.0
				}
				relation = Relation{
					Caller:           top.symbol,
					Callee:           child.Symbol,
					RelativePct:      relativeToCaller,
					AbsolutePct:      rootChildrenPct * newCumulative / 100.0,
					ContextRoot:      rootCaller,
					IntermediaryPath: append([]IntermediaryStep{}, *currentPath...),
					CalleeDirectPct:  childPct,
				}
			}
			relations = append(relations, relation)
			seen.Add(child.Symbol)

			*targetStack = append(*targetStack, stackFrame{symbol: child.Symbol, cumulativePct: newCumulative})
			fresh := []IntermediaryStep{}
			deeper := findTargetCallees(
				child, m, rootCaller, rootChildrenPct, targetStack,
				newCumulative, seen, true, &fresh,
			)
			relations = append(relations, deeper...)
			*targetStack = (*targetStack)[:len(*targetStack)-1]
		} else {
			if !isRootRecursion {
				*currentPath = append(*currentPath, IntermediaryStep{Symbol: child.Symbol, Percentage: childPct})
			}
			deeper := findTargetCallees(
				child, m, rootCaller, rootChildrenPct, targetStack,
				newCumulative, seen, stillInsideRootRecursion, currentPath,
			)
			relations = append(relations, deeper...)
			if !isRootRecursion {
				*currentPath = (*currentPath)[:len(*currentPath)-1]
			}
		}
	}

	return relations
}

// AdjustedPercentage floors original minus the sum of contributions at
// zero, since a target can never show negative remaining time once every
// caller's share has been subtracted.
func AdjustedPercentage(original float64, contributions []float64) float64 {
	sum := 0.0
	for _, c := range contributions {
		sum += c
	}
	adjusted := original - sum
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// AverageRelations merges the independent per-report relation sets
// ComputeRelations produces for each file into one set: relations are
// grouped by (caller, callee, context_root, intermediary_path), and
// relative_pct/absolute_pct/callee_direct_pct are averaged only across
// the reports in which that exact group appears — the same present-only
// mean C3 applies to averaged entries.
func AverageRelations(perReport [][]Relation) []Relation {
	type group struct {
		template  Relation
		relSum    float64
		absSum    float64
		directSum float64
		count     int
	}

	groups := map[string]*group{}
	var order []string

	for _, relations := range perReport {
		seenInReport := map[string]bool{}
		for _, r := range relations {
			key := relationGroupKey(r)
			if seenInReport[key] {
				continue
			}
			seenInReport[key] = true

			g, ok := groups[key]
			if !ok {
				g = &group{template: r}
				groups[key] = g
				order = append(order, key)
			}
			g.relSum += r.RelativePct
			g.absSum += r.AbsolutePct
			g.directSum += r.CalleeDirectPct
			g.count++
		}
	}

	result := make([]Relation, len(order))
	for i, key := range order {
		g := groups[key]
		rel := g.template
		rel.RelativePct = g.relSum / float64(g.count)
		rel.AbsolutePct = g.absSum / float64(g.count)
		rel.CalleeDirectPct = g.directSum / float64(g.count)
		result[i] = rel
	}
	return result
}

func relationGroupKey(r Relation) string {
	var b strings.Builder
	b.WriteString(r.Caller)
	b.WriteByte('\x00')
	b.WriteString(r.Callee)
	b.WriteByte('\x00')
	b.WriteString(r.ContextRoot)
	for _, step := range r.IntermediaryPath {
		b.WriteByte('\x00')
		b.WriteString(step.Symbol)
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(step.Percentage, 'f', 4, 64))
	}
	return b.String()
}

// nestedKey scopes a caller's direct target callees to the root traversal
// that discovered them, so the same function's callees found under two
// different roots are never merged into one display list.
type nestedKey struct {
	root, caller string
}

func groupNested(relations []Relation) map[nestedKey][]Relation {
	nested := map[nestedKey][]Relation{}
	for _, r := range relations {
		k := nestedKey{root: r.ContextRoot, caller: r.Caller}
		nested[k] = append(nested[k], r)
	}
	return nested
}

// buildNestedCallees recursively assembles caller's target callees within
// root's own traversal, sorting each level by descending absolute_pct and
// tallying what gets displayed into consumed.
func buildNestedCallees(root, caller string, nested map[nestedKey][]Relation, consumed map[string]float64) []Relation {
	rels := append([]Relation{}, nested[nestedKey{root: root, caller: caller}]...)
	sort.Slice(rels, func(i, j int) bool { return rels[i].AbsolutePct > rels[j].AbsolutePct })
	for i := range rels {
		consumed[rels[i].Callee] += rels[i].AbsolutePct
		rels[i].Nested = buildNestedCallees(root, rels[i].Callee, nested, consumed)
	}
	return rels
}

// standaloneCallees assembles Pass 2's callees-of-callees for t: direct
// callees of t found under any root OTHER than t itself (t's own tree,
// nested[(t,t)], was already shown under t's Pass 1 row, if it has one).
// Callees discovered under more than one other root are deduped the way
// C6 dedups a (caller, callee) pair, keeping the highest absolute_pct.
func standaloneCallees(t string, nested map[nestedKey][]Relation, allRelations []Relation) []Relation {
	best := map[string]Relation{}
	var order []string
	for _, r := range allRelations {
		if r.Caller != t || r.ContextRoot == t {
			continue
		}
		cur, ok := best[r.Callee]
		if !ok {
			order = append(order, r.Callee)
			best[r.Callee] = r
			continue
		}
		if r.AbsolutePct > cur.AbsolutePct {
			best[r.Callee] = r
		}
	}

	rels := make([]Relation, len(order))
	for i, callee := range order {
		rels[i] = best[callee]
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].AbsolutePct > rels[j].AbsolutePct })
	for i := range rels {
		rels[i].Nested = buildNestedCallees(rels[i].ContextRoot, rels[i].Callee, nested, map[string]float64{})
	}
	return rels
}

// filterTargets keeps the entries matching m, deduplicated by symbol, in
// the order they first arrive — callers sort entries by the selected key
// first, so this order becomes the sort order Pass 1 and Pass 2 iterate
// in. Distinct raw symbols averaged upstream can share the same display
// name once simplified (two overloads, two template instantiations); on
// such a collision the one with the higher children_pct wins, per the
// same rendering-time collapse every other display-name collision gets.
func filterTargets(entries []perfreport.Entry, m *target.Matcher) ([]string, map[string]perfreport.Entry) {
	var order []string
	bySymbol := map[string]perfreport.Entry{}
	for _, e := range entries {
		if !m.Matches(e.Symbol) {
			continue
		}
		cur, ok := bySymbol[e.Symbol]
		if !ok {
			order = append(order, e.Symbol)
			bySymbol[e.Symbol] = e
			continue
		}
		if e.ChildrenPct > cur.ChildrenPct {
			bySymbol[e.Symbol] = e
		}
	}
	return order, bySymbol
}

// reduceContributions runs C6: for every (caller, callee) pair the
// maximum absolute_pct across all matching relations is its contribution,
// kept in first-caller-seen order per callee.
func reduceContributions(relations []Relation) map[string][]CallerContribution {
	maxByPair := map[[2]string]float64{}
	var pairOrder [][2]string
	for _, r := range relations {
		key := [2]string{r.Caller, r.Callee}
		v, ok := maxByPair[key]
		if !ok {
			pairOrder = append(pairOrder, key)
		}
		if !ok || r.AbsolutePct > v {
			maxByPair[key] = r.AbsolutePct
		}
	}

	result := map[string][]CallerContribution{}
	for _, key := range pairOrder {
		caller, callee := key[0], key[1]
		result[callee] = append(result[callee], CallerContribution{Caller: caller, AbsolutePct: maxByPair[key]})
	}
	return result
}

// BuildEntries runs C6 (max-contribution-per-caller reduction) and C7's
// two-pass assembly over entries (already averaged across reports and
// sorted by the selected key) and the relations AverageRelations
// produced.
//
// Pass 1 gives every non-leaf target its own root-caller row with its
// original percentages and its nested target callees, recursively,
// within its own traversal. Pass 2 gives every target that was also
// discovered as some caller's callee a second, standalone row with its
// adjusted remainder percentage, plus whatever callees-of-callees were
// found under it from a different root's traversal. That row is left out
// when the remainder is below 0.01 and the target has no self time.
func BuildEntries(entries []perfreport.Entry, m *target.Matcher, relations []Relation) []Entry {
	targetOrder, bySymbol := filterTargets(entries, m)
	contribByCallee := reduceContributions(relations)
	nested := groupNested(relations)
	consumed := map[string]float64{}

	var result []Entry

	for _, t := range targetOrder {
		entry := bySymbol[t]
		if isLeaf(entry) {
			continue
		}
		callees := buildNestedCallees(t, t, nested, consumed)
		result = append(result, Entry{
			Symbol:              t,
			OriginalChildrenPct: entry.ChildrenPct,
			OriginalSelfPct:     entry.SelfPct,
			AdjustedChildrenPct: entry.ChildrenPct,
			Callees:             callees,
			IsCaller:            true,
		})
	}

	for _, t := range targetOrder {
		contributions := contribByCallee[t]
		if len(contributions) == 0 {
			continue
		}
		entry := bySymbol[t]
		values := make([]float64, len(contributions))
		for i, c := range contributions {
			values[i] = c.AbsolutePct
		}
		adjusted := AdjustedPercentage(entry.ChildrenPct, values)
		if adjusted < 0.01 && entry.SelfPct <= 0 {
			continue
		}
		result = append(result, Entry{
			Symbol:              t,
			OriginalChildrenPct: entry.ChildrenPct,
			OriginalSelfPct:     entry.SelfPct,
			AdjustedChildrenPct: adjusted,
			Callees:             standaloneCallees(t, nested, relations),
			IsCaller:            false,
			Contributions:       contributions,
		})
	}

	return result
}
