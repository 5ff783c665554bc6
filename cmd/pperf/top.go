package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jerrinot/pperf/internal/aggregate"
	"github.com/jerrinot/pperf/internal/ansi"
	"github.com/jerrinot/pperf/internal/calltree"
	"github.com/jerrinot/pperf/internal/config"
	"github.com/jerrinot/pperf/internal/hierarchy"
	"github.com/jerrinot/pperf/internal/metrics"
	"github.com/jerrinot/pperf/internal/perfreport"
	"github.com/jerrinot/pperf/internal/pperferr"
	"github.com/jerrinot/pperf/internal/render"
	"github.com/jerrinot/pperf/internal/reportio"
	"github.com/jerrinot/pperf/internal/symbol"
	"github.com/jerrinot/pperf/internal/target"
)

type topFlags struct {
	self        bool
	number      int
	targets     []string
	targetFile  string
	hierarchy   bool
	debug       bool
	noColor     bool
	configPath  string
	xlsxPath    string
	metricsAddr string
}

func newTopCmd() *cobra.Command {
	f := &topFlags{}

	cmd := &cobra.Command{
		Use:   "top [files...]",
		Short: "Rank functions by Children%/Self%, or trace caller/callee relations between targets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop(cmd, args, f)
		},
	}
	// A flag value pflag cannot parse (e.g. a non-numeric -n) is an
	// invalid argument, exit code 3.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.Wrap(pperferr.ErrInvalidArgument, err.Error())
	})

	flags := cmd.Flags()
	flags.BoolVarP(&f.self, "self", "s", false, "sort by Self% instead of Children%")
	flags.IntVarP(&f.number, "number", "n", 10, "limit non-hierarchy rows (must be >= 1)")
	flags.StringSliceVarP(&f.targets, "targets", "t", nil, "substring target selectors (repeatable or comma-separated)")
	flags.StringVar(&f.targetFile, "target-file", "", "file of exact target signatures, one per line")
	flags.BoolVarP(&f.hierarchy, "hierarchy", "H", false, "trace caller/callee relations among the target set")
	flags.BoolVarP(&f.debug, "debug", "D", false, "emit per-relation and per-report debug annotations")
	flags.BoolVar(&f.noColor, "no-color", false, "disable ANSI color codes")
	flags.StringVar(&f.configPath, "config", "", "YAML file of default flag values")
	flags.StringVar(&f.xlsxPath, "xlsx", "", "also write results to this .xlsx path")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address for the run's duration")

	return cmd
}

func runTop(cmd *cobra.Command, paths []string, f *topFlags) error {
	if f.configPath != "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			return err
		}
		applyConfigDefaults(cmd, f, cfg)
	}

	if err := validateFlags(f); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if f.metricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, f.metricsAddr); err != nil {
				glog.Warningf("metrics server stopped: %v", err)
			}
		}()
	}

	colorEnabled := !f.noColor && ansi.Enabled(os.Stdout.Fd())

	if f.hierarchy {
		return runHierarchy(ctx, cmd, paths, f, colorEnabled)
	}
	return runFlat(ctx, cmd, paths, f, colorEnabled)
}

func applyConfigDefaults(cmd *cobra.Command, f *topFlags, cfg *config.Config) {
	flags := cmd.Flags()
	if !flags.Changed("number") && cfg.Top > 0 {
		f.number = cfg.Top
	}
	if !flags.Changed("self") && cfg.Sort == "self" {
		f.self = true
	}
	if !flags.Changed("no-color") && cfg.Color == config.ColorNever {
		f.noColor = true
	}
	if !flags.Changed("metrics-addr") && cfg.MetricsAddr != "" {
		f.metricsAddr = cfg.MetricsAddr
	}
	if !flags.Changed("targets") && len(cfg.Targets) > 0 {
		f.targets = cfg.Targets
	}
	if !flags.Changed("hierarchy") && cfg.Hierarchy {
		f.hierarchy = true
	}
	if !flags.Changed("debug") && cfg.Debug {
		f.debug = true
	}
}

func validateFlags(f *topFlags) error {
	if f.number < 1 {
		return errors.Wrap(pperferr.ErrInvalidArgument, "-n/--number must be >= 1")
	}
	if len(f.targets) > 0 && f.targetFile != "" {
		return errors.Wrap(pperferr.ErrInvalidArgument, "--targets and --target-file are mutually exclusive")
	}
	if f.hierarchy && len(f.targets) == 0 && f.targetFile == "" {
		return errors.Wrap(pperferr.ErrHierarchyTargets, "-H/--hierarchy")
	}
	return nil
}

func buildMatcher(f *topFlags) (*target.Matcher, error) {
	if f.targetFile != "" {
		data, err := os.ReadFile(f.targetFile)
		if err != nil {
			return nil, errors.Wrapf(pperferr.ErrFileNotFound, "target file %s", f.targetFile)
		}
		sigs := parseTargetFileLines(data)
		if len(sigs) == 0 {
			return nil, errors.Wrap(pperferr.ErrUnmatchedTarget, "target file contains no valid signatures")
		}
		return target.New(sigs, target.Exact), nil
	}
	if len(f.targets) > 0 {
		return target.New(f.targets, target.Substring), nil
	}
	return nil, nil
}

// parseTargetFileLines implements the --target-file format from spec:
// one signature per line, "#"-prefixed comment lines and blank lines
// skipped, leading/trailing whitespace trimmed.
func parseTargetFileLines(data []byte) []string {
	var sigs []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sigs = append(sigs, line)
	}
	return sigs
}

func sortOrder(self bool) perfreport.SortOrder {
	if self {
		return perfreport.SortBySelf
	}
	return perfreport.SortByChildren
}

func runFlat(ctx context.Context, cmd *cobra.Command, paths []string, f *topFlags, colorEnabled bool) error {
	start := time.Now()
	parsed, err := reportio.ParseAll(ctx, paths, 0)
	metrics.ParseDuration.WithLabelValues("top").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ParseErrors.WithLabelValues("top").Inc()
		return err
	}
	metrics.ReportsParsed.WithLabelValues("top").Add(float64(len(paths)))

	var averaged []aggregate.Entry
	if len(parsed) == 1 {
		averaged = aggregate.FromSingle(parsed[0])
	} else {
		averaged = aggregate.Reports{Files: parsed, Names: paths}.Average()
	}

	if matcher, merr := buildMatcher(f); merr != nil {
		return merr
	} else if matcher != nil {
		filtered := averaged[:0:0]
		for _, e := range averaged {
			if matcher.Matches(e.Symbol) {
				filtered = append(filtered, e)
			}
		}
		averaged = filtered
		if len(averaged) == 0 {
			return errors.Wrap(pperferr.ErrNoMatches, "no matches for --targets")
		}
	}

	entries := make([]perfreport.Entry, len(averaged))
	for i, a := range averaged {
		entries[i] = perfreport.Entry{ChildrenPct: a.ChildrenPct, SelfPct: a.SelfPct, Symbol: a.Symbol}
	}
	perfreport.Sort(entries, sortOrder(f.self))
	if f.number < len(entries) {
		entries = entries[:f.number]
	}

	rows := make([]render.Row, len(entries))
	for i, e := range entries {
		rows[i] = render.Row{ChildrenPct: e.ChildrenPct, SelfPct: e.SelfPct, Symbol: e.Symbol}
	}

	if err := render.Table(cmd.OutOrStdout(), rows, colorEnabled); err != nil {
		return err
	}
	if f.xlsxPath != "" {
		if err := render.WriteXLSX(f.xlsxPath, rows); err != nil {
			return err
		}
	}
	return nil
}

func runHierarchy(ctx context.Context, cmd *cobra.Command, paths []string, f *topFlags, colorEnabled bool) error {
	matcher, err := buildMatcher(f)
	if err != nil {
		return err
	}

	start := time.Now()
	perFile, err := reportio.ParseAllSections(ctx, paths, 0)
	metrics.ParseDuration.WithLabelValues("hierarchy").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ParseErrors.WithLabelValues("hierarchy").Inc()
		return err
	}
	metrics.ReportsParsed.WithLabelValues("hierarchy").Add(float64(len(paths)))

	if f.targetFile != "" {
		if verr := validateExactAcrossFiles(perFile, f.targets, f.targetFile); verr != nil {
			return verr
		}
	}

	perReportRelations := make([][]hierarchy.Relation, len(perFile))
	entriesPerFile := make([][]perfreport.Entry, len(perFile))
	for i, fs := range perFile {
		perReportRelations[i] = hierarchy.ComputeRelations(fs, matcher)
		entriesPerFile[i] = sectionEntries(fs)
	}
	relations := hierarchy.AverageRelations(perReportRelations)
	metrics.RelationsFound.Observe(float64(len(relations)))

	var averaged []aggregate.Entry
	if len(entriesPerFile) == 1 {
		averaged = aggregate.FromSingle(entriesPerFile[0])
	} else {
		averaged = aggregate.Reports{Files: entriesPerFile, Names: paths}.Average()
	}

	// averaged is keyed on the raw symbol, same as runFlat, so two
	// overloads or template instantiations that display the same once
	// simplified stay distinct through C3's averaging. hierarchy.BuildEntries
	// works in simplified symbols, same as the call-tree nodes its relations
	// came from, and collapses any such collision here, keeping the entry
	// with the higher children_pct.
	flatEntries := make([]perfreport.Entry, len(averaged))
	for i, a := range averaged {
		flatEntries[i] = perfreport.Entry{ChildrenPct: a.ChildrenPct, SelfPct: a.SelfPct, Symbol: symbol.Simplify(a.Symbol)}
	}
	perfreport.Sort(flatEntries, sortOrder(f.self))

	entries := hierarchy.BuildEntries(flatEntries, matcher, relations)
	if len(entries) == 0 {
		return errors.Wrap(pperferr.ErrNoMatches, "no hierarchy entries for the given targets")
	}

	opts := render.HierarchyOptions{Debug: f.debug}
	if len(perFile) > 1 {
		opts.PerReportValues = perReportValuesBySymbol(perFile, entries)
	}

	if err := render.HierarchyTable(cmd.OutOrStdout(), entries, colorEnabled, opts); err != nil {
		return err
	}
	if f.xlsxPath != "" {
		if err := render.WriteHierarchyXLSX(f.xlsxPath, entries); err != nil {
			return err
		}
	}
	return nil
}

// validateExactAcrossFiles collects every symbol appearing in any file's
// sections — top-level entries raw, call-tree nodes already simplified —
// and checks C4's exact-mode uniqueness invariant before the expensive
// relation search runs. ValidateExact simplifies its own side of the
// comparison, and a call-tree symbol is only added when no top-level
// entry simplifies to the same name, so a function listed both ways
// counts as one match rather than two.
func validateExactAcrossFiles(perFile [][]calltree.Section, _ []string, targetFilePath string) error {
	data, err := os.ReadFile(targetFilePath)
	if err != nil {
		return errors.Wrapf(pperferr.ErrFileNotFound, "target file %s", targetFilePath)
	}
	sigs := parseTargetFileLines(data)

	var raw, treeSymbols []string
	topLevel := map[string]bool{}
	for _, sections := range perFile {
		for _, sec := range sections {
			raw = append(raw, sec.Entry.Symbol)
			topLevel[symbol.Simplify(sec.Entry.Symbol)] = true
			collectTreeSymbols(sec.Roots, &treeSymbols)
		}
	}
	for _, s := range treeSymbols {
		if !topLevel[s] {
			raw = append(raw, s)
		}
	}
	return target.ValidateExact(sigs, raw)
}

// sectionEntries extracts one file's top-level entries in section order,
// for aggregate.Reports.Average()/FromSingle to average across files the
// same way runFlat does.
func sectionEntries(sections []calltree.Section) []perfreport.Entry {
	entries := make([]perfreport.Entry, len(sections))
	for i, sec := range sections {
		entries[i] = sec.Entry
	}
	return entries
}

func collectTreeSymbols(nodes []*calltree.Node, out *[]string) {
	for _, n := range nodes {
		*out = append(*out, n.Symbol)
		collectTreeSymbols(n.Children, out)
	}
}

func perReportValuesBySymbol(perFile [][]calltree.Section, entries []hierarchy.Entry) map[string][]*aggregate.ReportValue {
	result := make(map[string][]*aggregate.ReportValue, len(entries))
	for _, e := range entries {
		values := make([]*aggregate.ReportValue, len(perFile))
		for i, sections := range perFile {
			for _, sec := range sections {
				if symbol.Simplify(sec.Entry.Symbol) == e.Symbol {
					values[i] = &aggregate.ReportValue{ChildrenPct: sec.Entry.ChildrenPct, SelfPct: sec.Entry.SelfPct}
					break
				}
			}
		}
		result[e.Symbol] = values
	}
	return result
}
