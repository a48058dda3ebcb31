package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	caerrors "github.com/standardbeagle/codeatlas/internal/errors"
)

type Config struct {
	Version     int
	Project     Project
	Cache       Cache
	Analysis    Analysis
	Patterns    Patterns
	Performance Performance
	Include     []string
	Exclude     []string
}

type Project struct {
	Root string
	Name string
}

type Cache struct {
	Enabled              bool
	MaxEntries           int
	TTL                  time.Duration
	Persist              bool
	Dir                  string // Directory for persisted entries (one file per key)
	CompressionThreshold int    // Values above this many bytes are gzip-compressed; 0 disables
}

type Analysis struct {
	MaxFileSize    int64
	FollowSymlinks bool
	// RespectGitignore processes .gitignore files for additional exclusions
	RespectGitignore bool
	BuildSymbolTable bool
	BuildGraph       bool
	DetectPatterns   bool
	Incremental      bool
	WatchMode        bool
	WatchDebounceMs  int
	MaxTreeDepth     int // Recursion guard for pathological nesting
}

// Patterns holds the pattern detector thresholds. These are injected into
// the detector rather than embedded as constants so downstream tooling can
// tune them per project.
type Patterns struct {
	LargeClassMembers  int
	LongMethodLines    int
	LongParameterList  int
	DeepNestingLevels  int
	GodObjectFanOut    int
	FactoryMethodCount int
}

type Performance struct {
	MaxConcurrency int // 0 = auto-detect (NumCPU)
	BatchSize      int // Files dispatched per batch in sequential mode
}

// Default returns the configuration used when no project config is found.
func Default() *Config {
	root, _ := os.Getwd()
	if root == "" {
		root = "."
	}
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Cache: Cache{
			Enabled:              true,
			MaxEntries:           2000,
			TTL:                  2 * time.Hour,
			Persist:              false,
			CompressionThreshold: 16 * 1024,
		},
		Analysis: Analysis{
			MaxFileSize:      10 * 1024 * 1024,
			RespectGitignore: true,
			BuildSymbolTable: true,
			BuildGraph:       true,
			DetectPatterns:   true,
			Incremental:      true,
			WatchDebounceMs:  250,
			MaxTreeDepth:     512,
		},
		Patterns: Patterns{
			LargeClassMembers:  20,
			LongMethodLines:    60,
			LongParameterList:  5,
			DeepNestingLevels:  5,
			GodObjectFanOut:    30,
			FactoryMethodCount: 2,
		},
		Performance: Performance{
			MaxConcurrency: runtime.NumCPU(),
			BatchSize:      64,
		},
		Include: []string{},
		Exclude: []string{
			"**/node_modules/**",
			"**/.git/**",
			"**/dist/**",
			"**/build/**",
		},
	}
}

// Load resolves configuration for a project root: project .codeatlas.kdl
// merged over defaults. A missing config file is not an error.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()

	absRoot, err := filepath.Abs(projectRoot)
	if err == nil {
		cfg.Project.Root = absRoot
	} else {
		cfg.Project.Root = projectRoot
	}

	projectCfg, err := LoadKDL(cfg.Project.Root)
	if err != nil {
		return nil, err
	}
	if projectCfg != nil {
		cfg = mergeConfigs(cfg, projectCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// runtime defects deep inside a run.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return caerrors.NewConfigError("project.root", "must not be empty")
	}
	if c.Cache.MaxEntries < 0 {
		return caerrors.NewConfigError("cache.max_entries", "must be >= 0")
	}
	if c.Cache.TTL < 0 {
		return caerrors.NewConfigError("cache.ttl", "must be >= 0")
	}
	if c.Cache.Persist && c.Cache.Dir == "" {
		return caerrors.NewConfigError("cache.dir", "required when cache.persist is enabled")
	}
	if c.Performance.MaxConcurrency < 0 {
		return caerrors.NewConfigError("performance.max_concurrency", "must be >= 0")
	}
	if c.Patterns.LargeClassMembers <= 0 {
		return caerrors.NewConfigError("patterns.large_class_members", "must be > 0")
	}
	if c.Analysis.MaxTreeDepth <= 0 {
		return caerrors.NewConfigError("analysis.max_tree_depth", "must be > 0")
	}
	return nil
}

// Concurrency returns the effective fan-out ceiling.
func (c *Config) Concurrency() int {
	if c.Performance.MaxConcurrency > 0 {
		return c.Performance.MaxConcurrency
	}
	return runtime.NumCPU()
}

// mergeConfigs overlays project settings on the base defaults. Zero values
// in the project config leave the base value in place.
func mergeConfigs(base, project *Config) *Config {
	merged := *base

	if project.Project.Root != "" {
		merged.Project.Root = project.Project.Root
	}
	if project.Project.Name != "" {
		merged.Project.Name = project.Project.Name
	}

	merged.Cache.Enabled = project.Cache.Enabled
	if project.Cache.MaxEntries > 0 {
		merged.Cache.MaxEntries = project.Cache.MaxEntries
	}
	if project.Cache.TTL > 0 {
		merged.Cache.TTL = project.Cache.TTL
	}
	merged.Cache.Persist = project.Cache.Persist
	if project.Cache.Dir != "" {
		merged.Cache.Dir = project.Cache.Dir
	}
	if project.Cache.CompressionThreshold > 0 {
		merged.Cache.CompressionThreshold = project.Cache.CompressionThreshold
	}

	if project.Analysis.MaxFileSize > 0 {
		merged.Analysis.MaxFileSize = project.Analysis.MaxFileSize
	}
	merged.Analysis.FollowSymlinks = project.Analysis.FollowSymlinks
	merged.Analysis.RespectGitignore = project.Analysis.RespectGitignore
	merged.Analysis.BuildSymbolTable = project.Analysis.BuildSymbolTable
	merged.Analysis.BuildGraph = project.Analysis.BuildGraph
	merged.Analysis.DetectPatterns = project.Analysis.DetectPatterns
	merged.Analysis.Incremental = project.Analysis.Incremental
	merged.Analysis.WatchMode = project.Analysis.WatchMode
	if project.Analysis.WatchDebounceMs > 0 {
		merged.Analysis.WatchDebounceMs = project.Analysis.WatchDebounceMs
	}
	if project.Analysis.MaxTreeDepth > 0 {
		merged.Analysis.MaxTreeDepth = project.Analysis.MaxTreeDepth
	}

	if project.Patterns.LargeClassMembers > 0 {
		merged.Patterns.LargeClassMembers = project.Patterns.LargeClassMembers
	}
	if project.Patterns.LongMethodLines > 0 {
		merged.Patterns.LongMethodLines = project.Patterns.LongMethodLines
	}
	if project.Patterns.LongParameterList > 0 {
		merged.Patterns.LongParameterList = project.Patterns.LongParameterList
	}
	if project.Patterns.DeepNestingLevels > 0 {
		merged.Patterns.DeepNestingLevels = project.Patterns.DeepNestingLevels
	}
	if project.Patterns.GodObjectFanOut > 0 {
		merged.Patterns.GodObjectFanOut = project.Patterns.GodObjectFanOut
	}

	if project.Performance.MaxConcurrency > 0 {
		merged.Performance.MaxConcurrency = project.Performance.MaxConcurrency
	}
	if project.Performance.BatchSize > 0 {
		merged.Performance.BatchSize = project.Performance.BatchSize
	}

	if len(project.Include) > 0 {
		merged.Include = project.Include
	}
	if len(project.Exclude) > 0 {
		merged.Exclude = append(merged.Exclude, project.Exclude...)
	}

	return &merged
}
