package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/standardbeagle/codeatlas/internal/cache"
	caerrors "github.com/standardbeagle/codeatlas/internal/errors"
	"github.com/standardbeagle/codeatlas/internal/parser"
	"github.com/standardbeagle/codeatlas/internal/patterns"
	"github.com/standardbeagle/codeatlas/internal/types"
)

// countingParser wraps the real parser to observe invocation counts.
type countingParser struct {
	inner parser.Parser
	calls atomic.Int64
}

func (cp *countingParser) Parse(path string, content []byte) (*types.SyntaxTree, error) {
	cp.calls.Add(1)
	return cp.inner.Parse(path, content)
}

func (cp *countingParser) SupportedExtensions() []string {
	return cp.inner.SupportedExtensions()
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const goFixture = `package widget

import (
	"fmt"
	"strings"
)

type Widget struct {
	Name string
}

func NewWidget(name string) *Widget {
	if name == "" {
		name = "unnamed"
	}
	return &Widget{Name: name}
}

func (w *Widget) Describe() string {
	for i := 0; i < 3; i++ {
		fmt.Println(i)
	}
	return strings.ToUpper(w.Name)
}
`

func newTestAnalyzer(c *cache.Cache[*types.FileRecord]) (*FileAnalyzer, *countingParser) {
	cp := &countingParser{inner: parser.NewTreeSitterParser()}
	d := patterns.NewDetector(patterns.DefaultThresholds())
	return New(cp, c, d, 0), cp
}

func TestAnalyzeFile_GoSymbolsAndImports(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "widget.go", goFixture)

	fa, _ := newTestAnalyzer(nil)
	rec, err := fa.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if rec.Language != "go" {
		t.Errorf("expected language go, got %q", rec.Language)
	}

	byName := make(map[string]types.Symbol)
	for _, s := range rec.Symbols {
		byName[s.Name] = s
	}
	if s, ok := byName["Widget"]; !ok || s.Kind != types.SymbolKindStruct {
		t.Errorf("expected struct Widget, got %+v", s)
	}
	if s, ok := byName["NewWidget"]; !ok || s.Kind != types.SymbolKindFunction || !s.Exported {
		t.Errorf("expected exported function NewWidget, got %+v", s)
	}
	if s, ok := byName["Describe"]; !ok || s.Kind != types.SymbolKindMethod {
		t.Errorf("expected method Describe, got %+v", s)
	}

	imports := make(map[string]bool)
	for _, imp := range rec.Imports {
		imports[imp.Specifier] = true
	}
	if !imports["fmt"] || !imports["strings"] {
		t.Errorf("expected fmt and strings imports, got %v", rec.Imports)
	}
}

func TestAnalyzeFile_ComplexityMetrics(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "widget.go", goFixture)

	fa, _ := newTestAnalyzer(nil)
	rec, err := fa.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	// One if plus one for: cyclomatic = 1 + 2
	if rec.Metrics.Cyclomatic != 3 {
		t.Errorf("expected cyclomatic 3, got %d", rec.Metrics.Cyclomatic)
	}
	if rec.Metrics.LinesOfCode == 0 {
		t.Error("expected non-zero lines of code")
	}
	if rec.Metrics.Halstead.Vocabulary == 0 {
		t.Error("expected non-zero halstead vocabulary")
	}
	if rec.Metrics.Maintainability <= 0 || rec.Metrics.Maintainability > 100 {
		t.Errorf("maintainability out of range: %f", rec.Metrics.Maintainability)
	}
}

func TestAnalyzeFile_MissingFile(t *testing.T) {
	fa, _ := newTestAnalyzer(nil)
	_, err := fa.AnalyzeFile(context.Background(), "/definitely/not/here.go")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !caerrors.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestAnalyzeFile_CacheShortCircuitsParser(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "widget.go", goFixture)

	c := cache.New[*types.FileRecord](cache.DefaultConfig())
	fa, cp := newTestAnalyzer(c)

	if _, err := fa.AnalyzeFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if cp.calls.Load() != 1 {
		t.Fatalf("expected 1 parser call, got %d", cp.calls.Load())
	}

	// Unchanged file: record served from cache, zero parser invocations
	if _, err := fa.AnalyzeFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if cp.calls.Load() != 1 {
		t.Errorf("expected parser untouched on cache hit, got %d calls", cp.calls.Load())
	}

	// Changed file: record re-derived
	if err := os.WriteFile(path, []byte("package widget\n\nfunc Changed() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rec, err := fa.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cp.calls.Load() != 2 {
		t.Errorf("expected re-parse after change, got %d calls", cp.calls.Load())
	}
	if len(rec.Symbols) != 1 || rec.Symbols[0].Name != "Changed" {
		t.Errorf("expected fresh record after change, got %+v", rec.Symbols)
	}
}

func TestAnalyzeFiles_BatchCapturesPerFileFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFixture(t, dir, "good.go", "package a\n\nfunc A() {}\n")
	missing := filepath.Join(dir, "missing.go")

	fa, _ := newTestAnalyzer(nil)
	records, failures := fa.AnalyzeFiles(context.Background(), []string{good, missing}, 2)

	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if _, ok := failures[missing]; !ok {
		t.Error("expected failure recorded for the missing path")
	}
}

func TestAnalyzeFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "notes.txt", "line one\nline two\n")

	fa, cp := newTestAnalyzer(nil)
	rec, err := fa.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cp.calls.Load() != 0 {
		t.Error("unsupported types must not hit the parser")
	}
	if rec.Metrics.LinesTotal != 2 {
		t.Errorf("expected 2 lines, got %d", rec.Metrics.LinesTotal)
	}
	if len(rec.Symbols) != 0 {
		t.Errorf("expected no symbols, got %d", len(rec.Symbols))
	}
}
