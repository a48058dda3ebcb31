package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/codeatlas/internal/config"
	"github.com/standardbeagle/codeatlas/internal/parser"
	"github.com/standardbeagle/codeatlas/internal/types"
)

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

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Cache.Persist = false
	return cfg
}

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const mainTS = `import { helper } from "./b";

export function main(): void {
  helper();
}
`

const helperTS = `export function helper(): void {
  return;
}
`

func newTestOrchestrator(t *testing.T, root string) (*Orchestrator, *countingParser) {
	t.Helper()
	cp := &countingParser{inner: parser.NewTreeSitterParser()}
	o, err := NewWithParser(testConfig(t, root), cp)
	require.NoError(t, err)
	return o, cp
}

func TestRunFullPipeline(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.ts", mainTS)
	b := writeFile(t, root, "b.ts", helperTS)

	o, _ := newTestOrchestrator(t, root)
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesDiscovered)
	assert.Equal(t, 2, result.FilesAnalyzed)
	assert.Empty(t, result.Errors)

	require.Contains(t, result.Records, a)
	require.Contains(t, result.Records, b)

	require.NotNil(t, result.Deps)
	assert.Equal(t, 2, result.Deps.Graph.NodeCount())
	assert.Equal(t, []string{b}, result.Deps.Graph.Successors(a))

	require.NotNil(t, result.Symbols)
	assert.Greater(t, result.Symbols.Len(), 0)

	assert.Equal(t, 2, result.Stats.TotalFiles)
	assert.Equal(t, 2, result.Stats.FilesByLanguage["typescript"])
}

func TestRunUnchangedReusesEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", mainTS)
	writeFile(t, root, "b.ts", helperTS)

	o, cp := newTestOrchestrator(t, root)
	_, err := o.Run(context.Background())
	require.NoError(t, err)
	firstCalls := cp.calls.Load()
	require.Greater(t, firstCalls, int64(0))

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, firstCalls, cp.calls.Load(), "unchanged re-run must not invoke the parser")
	assert.Equal(t, 2, result.FilesAnalyzed)
}

func TestRunIncrementalReanalyzesChangedOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", mainTS)
	b := writeFile(t, root, "b.ts", helperTS)

	o, cp := newTestOrchestrator(t, root)
	first, err := o.Run(context.Background())
	require.NoError(t, err)
	baseline := cp.calls.Load()

	// Grow the file so the size check alone marks it changed.
	grown := helperTS + "\nexport function extra(): void {}\n"
	require.NoError(t, os.WriteFile(b, []byte(grown), 0o644))

	second, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, baseline+1, cp.calls.Load(), "only the changed file should be re-parsed")
	assert.Equal(t, first.Records[filepath.Join(root, "a.ts")], second.Records[filepath.Join(root, "a.ts")])
	assert.NotEqual(t, first.Records[b].Hash, second.Records[b].Hash)
}

func TestDiscoverPrunesExcludedAndIgnored(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.ts", helperTS)
	writeFile(t, root, "node_modules/dep/skip.ts", helperTS)
	writeFile(t, root, "ignored.ts", helperTS)
	writeFile(t, root, ".gitignore", "ignored.ts\n")

	o, _ := newTestOrchestrator(t, root)
	files, err := o.Discover()
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "keep.ts")}, files)
}

func TestDiscoverIncludePatternsOverrideExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", helperTS)
	writeFile(t, root, "notes.txt", "plain text\n")

	cfg := testConfig(t, root)
	cfg.Include = []string{"**/*.txt"}
	o, err := NewWithParser(cfg, parser.NewTreeSitterParser())
	require.NoError(t, err)

	files, err := o.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "notes.txt")}, files)
}

func TestNewRejectsMissingRoot(t *testing.T) {
	cfg := config.Default()
	cfg.Project.Root = filepath.Join(t.TempDir(), "does-not-exist")

	_, err := NewWithParser(cfg, parser.NewTreeSitterParser())
	require.Error(t, err)
}

func TestWatcherTriggersIncrementalRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	writeFile(t, root, "a.ts", helperTS)

	cfg := testConfig(t, root)
	cfg.Analysis.WatchDebounceMs = 50
	o, err := NewWithParser(cfg, parser.NewTreeSitterParser())
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	require.NoError(t, err)

	runs := make(chan *Result, 4)
	w, err := o.NewWatcher(func(r *Result, err error) {
		if err == nil {
			runs <- r
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	writeFile(t, root, "b.ts", mainTS)

	select {
	case result := <-runs:
		assert.GreaterOrEqual(t, result.FilesDiscovered, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never triggered a run")
	}

	require.NoError(t, w.Stop())
}

func TestRunNonIncrementalServesFromCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", mainTS)
	writeFile(t, root, "b.ts", helperTS)

	cfg := testConfig(t, root)
	cfg.Analysis.Incremental = false
	cp := &countingParser{inner: parser.NewTreeSitterParser()}
	o, err := NewWithParser(cfg, cp)
	require.NoError(t, err)

	first, err := o.Run(context.Background())
	require.NoError(t, err)
	firstCalls := cp.calls.Load()
	require.Equal(t, int64(2), firstCalls)
	firstHits := first.CacheStats["hits"]

	second, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, firstCalls, cp.calls.Load(), "cached records must short-circuit the parser")
	assert.Equal(t, 2, second.FilesAnalyzed)
	assert.Equal(t, firstHits+2, second.CacheStats["hits"],
		"every unchanged file should register a cache hit")
}

func TestRunBatchedDispatchCoversAllFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.ts", "b.ts", "c.ts"} {
		writeFile(t, root, name, helperTS)
	}

	cfg := testConfig(t, root)
	cfg.Performance.BatchSize = 1
	cp := &countingParser{inner: parser.NewTreeSitterParser()}
	o, err := NewWithParser(cfg, cp)
	require.NoError(t, err)

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.FilesAnalyzed)
	assert.Equal(t, int64(3), cp.calls.Load())
}

func TestDiscoverFollowsSymlinkedDirectoriesWhenEnabled(t *testing.T) {
	shared := t.TempDir()
	writeFile(t, shared, "lib.ts", helperTS)

	root := t.TempDir()
	writeFile(t, root, "a.ts", mainTS)
	link := filepath.Join(root, "vendorlink")
	if err := os.Symlink(shared, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	o, _ := newTestOrchestrator(t, root)
	files, err := o.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.ts")}, files,
		"symlinks are skipped by default")

	cfg := testConfig(t, root)
	cfg.Analysis.FollowSymlinks = true
	of, err := NewWithParser(cfg, parser.NewTreeSitterParser())
	require.NoError(t, err)

	files, err = of.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.ts"),
		filepath.Join(link, "lib.ts"),
	}, files)
}
