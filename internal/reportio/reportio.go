// Package reportio resolves the file-path CLI arguments ("-" for stdin) into readers and
// parses them, bounding concurrency across files with errgroup the way
// a multi-file perf report comparison naturally wants to: each file's
// C1/C2 parse is independent, only the C3 merge needs file order.
package reportio

import (
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jerrinot/pperf/internal/calltree"
	"github.com/jerrinot/pperf/internal/perfreport"
	"github.com/jerrinot/pperf/internal/pperferr"
)

// Open returns a reader for path, transparently gzip-decompressing
// ".gz"-suffixed files and treating "-" as stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(pperferr.ErrFileNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "gzip %s", path)
		}
		return &gzipFile{gz: gr, f: f}, nil
	}
	return f, nil
}

type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}

// ParseFile opens path and parses its flat top-level entries (C1 only),
// for commands that never need the call-tree section.
func ParseFile(path string) ([]perfreport.Entry, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return perfreport.Parse(r, path)
}

// ParseFileSections opens path and parses both its flat entries and call
// trees together (C1+C2), for commands that need caller/callee structure.
func ParseFileSections(path string) ([]calltree.Section, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	sections := calltree.ParseSections(r)
	if len(sections) == 0 {
		return nil, errors.Wrapf(pperferr.ErrInvalidFormat, "%s: no top-level entries found", path)
	}
	return sections, nil
}

// ParseAll parses every path concurrently, bounded by maxConcurrency, and
// returns results in the same order as paths regardless of completion
// order. A maxConcurrency of 0 or less means no limit. It fails fast:
// the first parse error cancels ctx via errgroup, so parses that have
// not started yet are skipped; parses already running finish and their
// results are discarded.
func ParseAll(ctx context.Context, paths []string, maxConcurrency int) ([][]perfreport.Entry, error) {
	results := make([][]perfreport.Entry, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			entries, err := ParseFile(path)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParseAllSections is the call-tree-aware counterpart of ParseAll, used
// by the --hierarchy path when it is given multiple report files.
func ParseAllSections(ctx context.Context, paths []string, maxConcurrency int) ([][]calltree.Section, error) {
	results := make([][]calltree.Section, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			sections, err := ParseFileSections(path)
			if err != nil {
				return err
			}
			results[i] = sections
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
