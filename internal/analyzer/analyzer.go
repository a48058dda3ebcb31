package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codeatlas/internal/cache"
	"github.com/standardbeagle/codeatlas/internal/debug"
	caerrors "github.com/standardbeagle/codeatlas/internal/errors"
	"github.com/standardbeagle/codeatlas/internal/parser"
	"github.com/standardbeagle/codeatlas/internal/patterns"
	"github.com/standardbeagle/codeatlas/internal/types"
)

const recordKeyPrefix = "record:"

// FileAnalyzer turns one file into a FileRecord via the pluggable parser.
// The cache is consulted before parsing; a hit short-circuits the parser
// entirely.
type FileAnalyzer struct {
	parser      parser.Parser
	cache       *cache.Cache[*types.FileRecord]
	detector    *patterns.Detector
	maxFileSize int64
	supported   map[string]bool
}

// New creates a file analyzer. cache may be nil to disable caching;
// detector may be nil to skip pattern findings.
func New(p parser.Parser, c *cache.Cache[*types.FileRecord], d *patterns.Detector, maxFileSize int64) *FileAnalyzer {
	supported := make(map[string]bool)
	for _, ext := range p.SupportedExtensions() {
		supported[ext] = true
	}
	return &FileAnalyzer{
		parser:      p,
		cache:       c,
		detector:    d,
		maxFileSize: maxFileSize,
		supported:   supported,
	}
}

// RecordKey returns the cache key for a file's record.
func RecordKey(path string) string {
	return recordKeyPrefix + path
}

// AnalyzeFile analyzes one file and returns its record. A missing or
// unreadable file yields a NotFound error.
func (fa *FileAnalyzer) AnalyzeFile(ctx context.Context, path string) (*types.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err == nil {
		path = filepath.Clean(abs)
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, caerrors.NewNotFoundError("file", path)
	}
	if st.IsDir() {
		return nil, caerrors.NewNotFoundError("file", path)
	}
	if fa.maxFileSize > 0 && st.Size() > fa.maxFileSize {
		return nil, caerrors.NewAnalysisError("analyze", os.ErrInvalid).WithFile(path).WithType(caerrors.ErrorTypeParse)
	}

	if fa.cache != nil {
		if rec, ok := fa.cache.Get(RecordKey(path)); ok {
			debug.LogAnalysis("cache hit for %s\n", path)
			return rec, nil
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, caerrors.NewNotFoundError("file", path)
	}

	rec, err := fa.analyzeContent(path, st, content)
	if err != nil {
		return nil, err
	}

	if fa.cache != nil {
		fa.cache.SetWithInfo(RecordKey(path), rec, []types.FileInfo{{
			Path:    path,
			ModTime: st.ModTime(),
			Size:    st.Size(),
			Hash:    rec.Hash,
		}})
	}
	return rec, nil
}

// analyzeContent runs the parse + single-walk extraction pipeline.
func (fa *FileAnalyzer) analyzeContent(path string, st os.FileInfo, content []byte) (*types.FileRecord, error) {
	ext := strings.ToLower(filepath.Ext(path))
	hash := cache.HashBytes(content)

	rec := &types.FileRecord{
		Path:       path,
		Size:       st.Size(),
		ModTime:    st.ModTime(),
		Hash:       hash,
		Symbols:    []types.Symbol{},
		Imports:    []types.Import{},
		Exports:    []string{},
		Patterns:   []types.PatternFinding{},
		AnalyzedAt: time.Now(),
	}

	if !fa.supported[ext] {
		// Unsupported types still get size/line accounting, no parse
		loc, total := countLines(content)
		rec.Metrics = types.ComplexityMetrics{LinesOfCode: loc, LinesTotal: total, Cyclomatic: 1}
		return rec, nil
	}

	tree, err := fa.parser.Parse(path, content)
	if err != nil {
		return nil, err
	}
	rec.Language = tree.Language

	ex := extract(tree, content, path, tree.Language)
	rec.Symbols = ex.symbols
	rec.Imports = ex.imports
	rec.Exports = ex.exports
	rec.Metrics = computeMetrics(ex, content)

	if fa.detector != nil {
		if findings := fa.detector.Detect(tree, path, content); findings != nil {
			rec.Patterns = findings
		}
	}

	return rec, nil
}

// AnalyzeFiles analyzes a batch of paths with bounded parallelism. One
// file's failure is captured per-file and never aborts the batch.
func (fa *FileAnalyzer) AnalyzeFiles(ctx context.Context, paths []string, concurrency int) (map[string]*types.FileRecord, map[string]error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	records := make(map[string]*types.FileRecord, len(paths))
	failures := make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, path := range paths {
		g.Go(func() error {
			rec, err := fa.AnalyzeFile(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[path] = err
				return nil
			}
			records[rec.Path] = rec
			return nil
		})
	}

	// Workers only return nil; Wait is for completion, not errors
	_ = g.Wait()

	return records, failures
}
