package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2000, cfg.Cache.MaxEntries)
	assert.True(t, cfg.Analysis.Incremental)
	assert.True(t, cfg.Analysis.BuildGraph)
	assert.Equal(t, 64, cfg.Performance.BatchSize)
}

func TestParseKDL_FullDocument(t *testing.T) {
	kdlContent := `
project {
    name "demo"
}
cache {
    enabled true
    max_entries 500
    ttl_minutes 30
    compression_threshold 4096
}
analysis {
    max_file_size 2097152
    follow_symlinks true
    respect_gitignore false
    incremental false
    watch_mode true
    watch_debounce_ms 100
    max_tree_depth 64
}
patterns {
    large_class_members 40
    long_method_lines 120
}
performance {
    max_concurrency 4
    batch_size 16
}
include "src/**/*.ts" "lib/**/*.ts"
exclude "**/generated/**"
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 4096, cfg.Cache.CompressionThreshold)
	assert.Equal(t, int64(2097152), cfg.Analysis.MaxFileSize)
	assert.True(t, cfg.Analysis.FollowSymlinks)
	assert.False(t, cfg.Analysis.RespectGitignore)
	assert.False(t, cfg.Analysis.Incremental)
	assert.True(t, cfg.Analysis.WatchMode)
	assert.Equal(t, 100, cfg.Analysis.WatchDebounceMs)
	assert.Equal(t, 64, cfg.Analysis.MaxTreeDepth)
	assert.Equal(t, 40, cfg.Patterns.LargeClassMembers)
	assert.Equal(t, 120, cfg.Patterns.LongMethodLines)
	assert.Equal(t, 4, cfg.Performance.MaxConcurrency)
	assert.Equal(t, 16, cfg.Performance.BatchSize)
	assert.Equal(t, []string{"src/**/*.ts", "lib/**/*.ts"}, cfg.Include)
	assert.Equal(t, []string{"**/generated/**"}, cfg.Exclude)
}

func TestParseKDL_ExcludeBlockForm(t *testing.T) {
	kdlContent := `
exclude {
    "**/vendor/**"
    "**/testdata/**"
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/vendor/**", "**/testdata/**"}, cfg.Exclude)
}

func TestParseKDL_Invalid(t *testing.T) {
	_, err := parseKDL(`cache { enabled`)
	assert.Error(t, err)
}

func TestLoadKDL_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadKDL(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_ProjectFileOverlaysDefaults(t *testing.T) {
	root := t.TempDir()
	kdlContent := `
cache {
    enabled true
    max_entries 100
}
analysis {
    incremental false
    respect_gitignore true
    symbol_table true
    graph true
    patterns true
    watch_debounce_ms 75
}
exclude "**/tmp/**"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".codeatlas.kdl"), []byte(kdlContent), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)

	resolved, rerr := filepath.EvalSymlinks(root)
	require.NoError(t, rerr)
	cfgRoot, rerr := filepath.EvalSymlinks(cfg.Project.Root)
	require.NoError(t, rerr)
	assert.Equal(t, resolved, cfgRoot)

	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.False(t, cfg.Analysis.Incremental)
	assert.Equal(t, 75, cfg.Analysis.WatchDebounceMs)
	// Project excludes extend the defaults rather than replacing them.
	assert.Contains(t, cfg.Exclude, "**/node_modules/**")
	assert.Contains(t, cfg.Exclude, "**/tmp/**")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.Project.Root = "" }},
		{"negative max entries", func(c *Config) { c.Cache.MaxEntries = -1 }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Minute }},
		{"persist without dir", func(c *Config) { c.Cache.Persist = true; c.Cache.Dir = "" }},
		{"negative concurrency", func(c *Config) { c.Performance.MaxConcurrency = -2 }},
		{"zero tree depth", func(c *Config) { c.Analysis.MaxTreeDepth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
