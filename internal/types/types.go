package types

import (
	"time"
)

// SymbolKind classifies a declaration extracted from a source file.
type SymbolKind string

const (
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindStruct    SymbolKind = "struct"
	SymbolKindEnum      SymbolKind = "enum"
	SymbolKindType      SymbolKind = "type"
	SymbolKindVariable  SymbolKind = "variable"
	SymbolKindConstant  SymbolKind = "constant"
	SymbolKindProperty  SymbolKind = "property"
	SymbolKindUnknown   SymbolKind = "unknown"
)

// Symbol is a named, located declaration extracted from a file's tree.
// Identity within the symbol table is (File, Name) - not globally unique.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	File      string     `json:"file"`
	Line      int        `json:"line"`
	Column    int        `json:"column"`
	EndLine   int        `json:"end_line"`
	Exported  bool       `json:"exported"`
	Signature string     `json:"signature,omitempty"`
}

// Import records one import specifier found in a file.
type Import struct {
	Specifier  string `json:"specifier"`
	Line       int    `json:"line"`
	IsReexport bool   `json:"is_reexport,omitempty"`
}

// HalsteadMetrics are complexity measures derived from operator and
// operand counts using a simplified tokenization.
type HalsteadMetrics struct {
	DistinctOperators int     `json:"distinct_operators"`
	DistinctOperands  int     `json:"distinct_operands"`
	TotalOperators    int     `json:"total_operators"`
	TotalOperands     int     `json:"total_operands"`
	Vocabulary        int     `json:"vocabulary"`
	Length            int     `json:"length"`
	Volume            float64 `json:"volume"`
	Difficulty        float64 `json:"difficulty"`
	Effort            float64 `json:"effort"`
	Bugs              float64 `json:"bugs"`
}

// ComplexityMetrics holds the quality metrics computed for one file.
type ComplexityMetrics struct {
	LinesOfCode     int             `json:"lines_of_code"`
	LinesTotal      int             `json:"lines_total"`
	Cyclomatic      int             `json:"cyclomatic"`
	Cognitive       int             `json:"cognitive"`
	Halstead        HalsteadMetrics `json:"halstead"`
	Maintainability float64         `json:"maintainability"`
}

// PatternCategory groups detected structural motifs.
type PatternCategory string

const (
	PatternCategoryCreational  PatternCategory = "creational"
	PatternCategoryBehavioral  PatternCategory = "behavioral"
	PatternCategoryStructural  PatternCategory = "structural"
	PatternCategoryAntiPattern PatternCategory = "anti-pattern"
)

// Severity grades a pattern finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Location points at a position in a source file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// PatternFinding is one detected design pattern or anti-pattern.
type PatternFinding struct {
	PatternID      string          `json:"pattern_id"`
	Category       PatternCategory `json:"category"`
	Severity       Severity        `json:"severity"`
	Message        string          `json:"message"`
	Locations      []Location      `json:"locations"`
	Recommendation string          `json:"recommendation,omitempty"`
}

// FileRecord is the structural analysis result for one file, keyed by
// normalized absolute path. Records are replaced wholesale when a file is
// re-analyzed, never partially mutated.
type FileRecord struct {
	Path       string            `json:"path"`
	Language   string            `json:"language"`
	Size       int64             `json:"size"`
	ModTime    time.Time         `json:"mod_time"`
	Hash       string            `json:"hash"`
	Symbols    []Symbol          `json:"symbols"`
	Imports    []Import          `json:"imports"`
	Exports    []string          `json:"exports"`
	Patterns   []PatternFinding  `json:"patterns"`
	Metrics    ComplexityMetrics `json:"metrics"`
	AnalyzedAt time.Time         `json:"analyzed_at"`
}

// FileInfo is the modification triple used for cache invalidation. An
// entry carrying a triple is valid only while all three fields still match
// the live file.
type FileInfo struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
	Hash    string    `json:"hash"`
}

// AnalysisError records one non-fatal failure during a run.
type AnalysisError struct {
	Path    string `json:"path,omitempty"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// AggregateStats summarizes a run across all analyzed files.
type AggregateStats struct {
	TotalFiles        int            `json:"total_files"`
	TotalSymbols      int            `json:"total_symbols"`
	TotalImports      int            `json:"total_imports"`
	TotalLines        int            `json:"total_lines"`
	AverageComplexity float64        `json:"average_complexity"`
	MaxComplexity     int            `json:"max_complexity"`
	FilesByLanguage   map[string]int `json:"files_by_language"`
	PatternCounts     map[string]int `json:"pattern_counts"`
}

// AnalysisResult is the full contract surface produced for downstream
// consumers: per-file records, indexes, findings, statistics and the
// complete error list so callers can judge whether partial results are
// usable.
type AnalysisResult struct {
	Root            string                 `json:"root"`
	FilesDiscovered int                    `json:"files_discovered"`
	FilesAnalyzed   int                    `json:"files_analyzed"`
	Records         map[string]*FileRecord `json:"records"`
	Stats           AggregateStats         `json:"stats"`
	CacheStats      map[string]int64       `json:"cache_stats,omitempty"`
	Errors          []AnalysisError        `json:"errors"`
	Warnings        []string               `json:"warnings,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	Duration        time.Duration          `json:"duration"`
}
