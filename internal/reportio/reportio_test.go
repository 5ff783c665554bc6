package reportio

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleReport = `# Overhead  Command  Shared Object  Symbol
    90.74%     0.00%  bin  bin  [.] parallel_for_with_progress
     7.45%     7.45%  bin  bin  [.] std::inner_product
`

func writeSample(t *testing.T, dir, name string, gz bool) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if !gz {
		if err := os.WriteFile(path, []byte(sampleReport), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		return path
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(sampleReport)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if err == nil {
		t.Fatal("Open on missing file: want error, got nil")
	}
}

func TestParseFilePlain(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir, "report.txt", false)
	entries, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ParseFile returned %d entries, want 2", len(entries))
	}
}

func TestParseFileGzip(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir, "report.txt.gz", true)
	entries, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile gzip: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ParseFile gzip returned %d entries, want 2", len(entries))
	}
}

func TestParseAllPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSample(t, dir, "a.txt", false)
	p2 := writeSample(t, dir, "b.txt", false)
	results, err := ParseAll(context.Background(), []string{p1, p2}, 2)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(results) != 2 || len(results[0]) != 2 || len(results[1]) != 2 {
		t.Fatalf("ParseAll results = %+v", results)
	}
}

func TestParseAllFailsFastOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	good := writeSample(t, dir, "a.txt", false)
	missing := filepath.Join(dir, "missing.txt")
	_, err := ParseAll(context.Background(), []string{good, missing}, 2)
	if err == nil {
		t.Fatal("ParseAll with a missing file: want error, got nil")
	}
}

func TestParseFileSections(t *testing.T) {
	dir := t.TempDir()
	path := writeSample(t, dir, "report.txt", false)
	sections, err := ParseFileSections(path)
	if err != nil {
		t.Fatalf("ParseFileSections: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("ParseFileSections returned %d sections, want 2", len(sections))
	}
}
