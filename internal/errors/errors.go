package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error types for the analysis engine
type ErrorType string

const (
	// File errors
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypePermission ErrorType = "permission"

	// Analysis errors
	ErrorTypeParse ErrorType = "parse"

	// Cache errors
	ErrorTypeCacheCorruption ErrorType = "cache_corruption"

	// Graph errors - these signal an orchestration defect and are fatal
	ErrorTypeGraphConstraint ErrorType = "graph_constraint"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinels for errors.Is matching.
var (
	ErrNotFound        = errors.New("not found")
	ErrCacheCorrupt    = errors.New("cache entry corrupt")
	ErrGraphConstraint = errors.New("graph constraint violated")
	ErrConfig          = errors.New("configuration error")
)

// AnalysisError represents an error during file analysis with context.
type AnalysisError struct {
	Type        ErrorType
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewAnalysisError creates a new analysis error with context
func NewAnalysisError(op string, err error) *AnalysisError {
	return &AnalysisError{
		Type:       ErrorTypeInternal,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *AnalysisError) WithFile(path string) *AnalysisError {
	e.FilePath = path
	return e
}

// WithType sets the error classification
func (e *AnalysisError) WithType(t ErrorType) *AnalysisError {
	e.Type = t
	return e
}

// WithRecoverable marks the error as recoverable
func (e *AnalysisError) WithRecoverable(recoverable bool) *AnalysisError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *AnalysisError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *AnalysisError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the error can be retried
func (e *AnalysisError) IsRecoverable() bool {
	return e.Recoverable
}

// NotFoundError reports a missing file or graph node.
type NotFoundError struct {
	Kind string // "file" or "node"
	Name string
}

func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ParseError represents a parser front-end failure. Parse failures skip
// the file and are recorded as run errors; they never abort a run.
type ParseError struct {
	FilePath   string
	Line       int
	Column     int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(path string, line, column int, err error) *ParseError {
	return &ParseError{
		FilePath:   path,
		Line:       line,
		Column:     column,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at %s:%d:%d: %v", e.FilePath, e.Line, e.Column, e.Underlying)
	}
	return fmt.Sprintf("parse error in %s: %v", e.FilePath, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// CacheCorruptionError marks a cache entry that failed to deserialize or
// decompress. The entry is discarded and the error is never propagated as
// fatal - the cache is strictly best-effort.
type CacheCorruptionError struct {
	Key        string
	Underlying error
}

func NewCacheCorruptionError(key string, err error) *CacheCorruptionError {
	return &CacheCorruptionError{Key: key, Underlying: err}
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("cache entry %q corrupt: %v", e.Key, e.Underlying)
}

func (e *CacheCorruptionError) Unwrap() error {
	return ErrCacheCorrupt
}

// GraphConstraintError reports an edge added to a non-existent node. This
// is fatal: it signals an orchestration defect, not bad input.
type GraphConstraintError struct {
	Operation string
	Node      string
}

func NewGraphConstraintError(op, node string) *GraphConstraintError {
	return &GraphConstraintError{Operation: op, Node: node}
}

func (e *GraphConstraintError) Error() string {
	return fmt.Sprintf("graph %s: node %q does not exist", e.Operation, e.Node)
}

func (e *GraphConstraintError) Unwrap() error {
	return ErrGraphConstraint
}

// ConfigError reports an invalid configuration or a required capability
// that is disabled.
type ConfigError struct {
	Field   string
	Message string
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// IsNotFound reports whether err wraps a missing file or node.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsParseFailure reports whether err is a parser front-end failure.
func IsParseFailure(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
