package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/standardbeagle/codeatlas/internal/analyzer"
	"github.com/standardbeagle/codeatlas/internal/cache"
	"github.com/standardbeagle/codeatlas/internal/config"
	"github.com/standardbeagle/codeatlas/internal/debug"
	"github.com/standardbeagle/codeatlas/internal/deps"
	caerrors "github.com/standardbeagle/codeatlas/internal/errors"
	"github.com/standardbeagle/codeatlas/internal/graph"
	"github.com/standardbeagle/codeatlas/internal/parser"
	"github.com/standardbeagle/codeatlas/internal/patterns"
	"github.com/standardbeagle/codeatlas/internal/symbols"
	"github.com/standardbeagle/codeatlas/internal/types"
)

// Result bundles the analysis output with the derived indexes. The symbol
// table and graph are live structures; JSON consumers get their exported
// forms through the embedded AnalysisResult and the Deps report.
type Result struct {
	types.AnalysisResult

	Symbols     *symbols.Table      `json:"-"`
	SymbolStats *symbols.Statistics `json:"symbol_stats,omitempty"`
	Deps        *deps.Report        `json:"deps,omitempty"`
}

// Orchestrator drives the pipeline: Discover, Analyze, BuildSymbolTable,
// BuildGraph, DetectGlobalPatterns, Aggregate. The middle stages are
// optional via config. It is the sole fan-out point; everything below runs
// synchronously or inside the analyzer's bounded errgroup.
type Orchestrator struct {
	cfg       *config.Config
	parser    parser.Parser
	cache     *cache.Cache[*types.FileRecord]
	analyzer  *analyzer.FileAnalyzer
	gitignore *config.GitignoreParser

	mu   sync.Mutex
	prev map[string]*types.FileRecord
}

// New builds an orchestrator from configuration with the default
// tree-sitter parser.
func New(cfg *config.Config) (*Orchestrator, error) {
	p := parser.NewTreeSitterParser()
	if cfg != nil && cfg.Analysis.MaxTreeDepth > 0 {
		p.SetMaxDepth(cfg.Analysis.MaxTreeDepth)
	}
	return NewWithParser(cfg, p)
}

// NewWithParser allows injecting a parser implementation.
func NewWithParser(cfg *config.Config, p parser.Parser) (*Orchestrator, error) {
	if cfg == nil {
		return nil, caerrors.NewConfigError("config", "must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !deps.RootExists(cfg.Project.Root) {
		return nil, caerrors.NewConfigError("project.root", "directory does not exist: "+cfg.Project.Root)
	}

	var recordCache *cache.Cache[*types.FileRecord]
	if cfg.Cache.Enabled {
		cacheCfg := cache.Config{
			MaxEntries:           cfg.Cache.MaxEntries,
			TTL:                  cfg.Cache.TTL,
			CompressionThreshold: cfg.Cache.CompressionThreshold,
		}
		if cfg.Cache.Persist {
			cacheCfg.PersistDir = cfg.Cache.Dir
			if cacheCfg.PersistDir == "" {
				cacheCfg.PersistDir = filepath.Join(cfg.Project.Root, ".codeatlas", "cache")
			}
		}
		recordCache = cache.New[*types.FileRecord](cacheCfg)
	}

	var detector *patterns.Detector
	if cfg.Analysis.DetectPatterns {
		detector = patterns.NewDetector(patterns.Thresholds{
			LargeClassMembers:  cfg.Patterns.LargeClassMembers,
			LongMethodLines:    cfg.Patterns.LongMethodLines,
			LongParameterList:  cfg.Patterns.LongParameterList,
			DeepNestingLevels:  cfg.Patterns.DeepNestingLevels,
			GodObjectFanOut:    cfg.Patterns.GodObjectFanOut,
			FactoryMethodCount: cfg.Patterns.FactoryMethodCount,
		})
	}

	o := &Orchestrator{
		cfg:      cfg,
		parser:   p,
		cache:    recordCache,
		analyzer: analyzer.New(p, recordCache, detector, cfg.Analysis.MaxFileSize),
		prev:     make(map[string]*types.FileRecord),
	}

	if cfg.Analysis.RespectGitignore {
		gi := config.NewGitignoreParser()
		if err := gi.LoadGitignore(cfg.Project.Root); err == nil {
			o.gitignore = gi
		}
	}
	return o, nil
}

// Cache exposes the record cache for invalidation by the watcher and for
// stats inspection.
func (o *Orchestrator) Cache() *cache.Cache[*types.FileRecord] {
	return o.cache
}

// Run executes the full pipeline once. Per-file failures accumulate in the
// result's error list; only discovery and graph-construction errors abort.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	files, err := o.Discover()
	if err != nil {
		return nil, err
	}
	debug.LogOrchestrator("discovered %d files under %s", len(files), o.cfg.Project.Root)

	result := &Result{
		AnalysisResult: types.AnalysisResult{
			Root:            o.cfg.Project.Root,
			FilesDiscovered: len(files),
			Records:         make(map[string]*types.FileRecord),
			StartedAt:       started,
		},
	}

	toAnalyze := files
	if o.cfg.Analysis.Incremental {
		toAnalyze = o.changedSince(files, result)
	}

	// Files are dispatched in batches so cancellation lands between
	// batches instead of waiting on the whole set.
	batch := o.cfg.Performance.BatchSize
	if batch <= 0 {
		batch = len(toAnalyze)
	}
	for start := 0; start < len(toAnalyze); start += batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + batch
		if end > len(toAnalyze) {
			end = len(toAnalyze)
		}
		records, failures := o.analyzer.AnalyzeFiles(ctx, toAnalyze[start:end], o.cfg.Concurrency())
		for path, rec := range records {
			result.Records[path] = rec
		}
		for path, ferr := range failures {
			result.Errors = append(result.Errors, types.AnalysisError{
				Path:    path,
				Stage:   "analyze",
				Message: ferr.Error(),
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Path < result.Errors[j].Path })
	result.FilesAnalyzed = len(result.Records)

	if o.cfg.Analysis.BuildSymbolTable {
		result.Symbols = o.buildSymbolTable(result.Records)
		stats := result.Symbols.GetStatistics()
		result.SymbolStats = &stats
	}

	if o.cfg.Analysis.BuildGraph {
		report, depErr := deps.NewAnalyzer(o.cfg.Project.Root).Analyze(result.Records)
		if depErr != nil {
			return nil, depErr
		}
		result.Deps = report
		o.linkSymbolDependencies(result, report.Graph)
	}

	result.Stats = aggregate(result.Records)
	if o.cache != nil {
		result.CacheStats = o.cache.StatsMap()
	}
	result.Duration = time.Since(started)

	o.mu.Lock()
	o.prev = result.Records
	o.mu.Unlock()

	debug.LogOrchestrator("run complete: %d/%d files in %s, %d errors",
		result.FilesAnalyzed, result.FilesDiscovered, result.Duration, len(result.Errors))
	return result, nil
}

// changedSince partitions discovered files into changed and unchanged
// against the previous run. Unchanged files keep their prior record;
// changed and new files are queued for analysis. A matching mtime and size
// is trusted; an mtime-only change falls through to a content hash.
func (o *Orchestrator) changedSince(files []string, result *Result) []string {
	o.mu.Lock()
	prev := o.prev
	o.mu.Unlock()

	if len(prev) == 0 {
		return files
	}

	var changed []string
	for _, path := range files {
		rec, ok := prev[path]
		if !ok {
			changed = append(changed, path)
			continue
		}
		st, err := os.Stat(path)
		if err != nil {
			changed = append(changed, path)
			continue
		}
		if st.Size() == rec.Size && st.ModTime().Equal(rec.ModTime) {
			result.Records[path] = rec
			continue
		}
		if st.Size() == rec.Size {
			if hash, err := cache.HashFile(path); err == nil && hash == rec.Hash {
				result.Records[path] = rec
				continue
			}
		}
		changed = append(changed, path)
	}
	debug.LogOrchestrator("incremental: %d changed of %d discovered", len(changed), len(files))
	return changed
}

// buildSymbolTable populates a fresh table from every record's symbols.
func (o *Orchestrator) buildSymbolTable(records map[string]*types.FileRecord) *symbols.Table {
	table := symbols.New()
	for _, rec := range records {
		for _, sym := range rec.Symbols {
			table.AddSymbol(sym)
		}
	}
	return table
}

// linkSymbolDependencies records cross-file symbol dependencies: when file
// A imports file B, every symbol in A depends on B's exported symbols.
func (o *Orchestrator) linkSymbolDependencies(result *Result, g *graph.Graph) {
	if result.Symbols == nil {
		return
	}
	for _, from := range g.Nodes() {
		fromRec := result.Records[from]
		if fromRec == nil {
			continue
		}
		for _, to := range g.Successors(from) {
			toRec := result.Records[to]
			if toRec == nil {
				continue
			}
			for _, fromSym := range fromRec.Symbols {
				for _, toSym := range toRec.Symbols {
					if toSym.Exported {
						result.Symbols.AddDependency(from, fromSym.Name, to, toSym.Name)
					}
				}
			}
		}
	}
}

// aggregate computes run-level statistics across all records.
func aggregate(records map[string]*types.FileRecord) types.AggregateStats {
	stats := types.AggregateStats{
		FilesByLanguage: make(map[string]int),
		PatternCounts:   make(map[string]int),
	}

	totalComplexity := 0
	for _, rec := range records {
		stats.TotalFiles++
		stats.TotalSymbols += len(rec.Symbols)
		stats.TotalImports += len(rec.Imports)
		stats.TotalLines += rec.Metrics.LinesTotal
		stats.FilesByLanguage[rec.Language]++
		totalComplexity += rec.Metrics.Cyclomatic
		if rec.Metrics.Cyclomatic > stats.MaxComplexity {
			stats.MaxComplexity = rec.Metrics.Cyclomatic
		}
		for _, f := range rec.Patterns {
			stats.PatternCounts[f.PatternID]++
		}
	}
	if stats.TotalFiles > 0 {
		stats.AverageComplexity = float64(totalComplexity) / float64(stats.TotalFiles)
	}
	return stats
}
