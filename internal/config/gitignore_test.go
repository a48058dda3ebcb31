package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitignoreParser_Patterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		ignored  bool
	}{
		{
			name:     "simple file match",
			patterns: []string{"secrets.env"},
			path:     "secrets.env",
			ignored:  true,
		},
		{
			name:     "simple file no match",
			patterns: []string{"secrets.env"},
			path:     "main.ts",
			ignored:  false,
		},
		{
			name:     "unanchored name matches nested component",
			patterns: []string{"dist"},
			path:     "packages/app/dist",
			isDir:    true,
			ignored:  true,
		},
		{
			name:     "directory-only pattern matches the directory",
			patterns: []string{"node_modules/"},
			path:     "node_modules",
			isDir:    true,
			ignored:  true,
		},
		{
			name:     "directory-only pattern matches files beneath it",
			patterns: []string{"node_modules/"},
			path:     "node_modules/react/index.js",
			ignored:  true,
		},
		{
			name:     "directory-only pattern skips a plain file of that name",
			patterns: []string{"build/"},
			path:     "build",
			isDir:    false,
			ignored:  false,
		},
		{
			name:     "anchored pattern matches only at the root",
			patterns: []string{"/out"},
			path:     "out",
			isDir:    true,
			ignored:  true,
		},
		{
			name:     "anchored pattern does not match nested",
			patterns: []string{"/out"},
			path:     "src/out",
			isDir:    true,
			ignored:  false,
		},
		{
			name:     "glob matches any component",
			patterns: []string{"*.log"},
			path:     "logs/today.log",
			ignored:  true,
		},
		{
			name:     "slashed pattern matches subtree",
			patterns: []string{"src/generated"},
			path:     "src/generated/api.ts",
			ignored:  true,
		},
		{
			name:     "later negation un-ignores",
			patterns: []string{"*.log", "!keep.log"},
			path:     "keep.log",
			ignored:  false,
		},
		{
			name:     "negation only lifts matching paths",
			patterns: []string{"*.log", "!keep.log"},
			path:     "other.log",
			ignored:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gp := NewGitignoreParser()
			for _, p := range tt.patterns {
				gp.AddPattern(p)
			}
			assert.Equal(t, tt.ignored, gp.IsIgnored(tt.path, tt.isDir))
		})
	}
}

func TestGitignoreParser_LoadGitignore(t *testing.T) {
	root := t.TempDir()
	content := "# build output\n\ndist/\n*.tmp\n!pinned.tmp\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte(content), 0o644))

	gp := NewGitignoreParser()
	require.NoError(t, gp.LoadGitignore(root))

	assert.True(t, gp.IsIgnored("dist", true))
	assert.True(t, gp.IsIgnored("scratch.tmp", false))
	assert.False(t, gp.IsIgnored("pinned.tmp", false))
	assert.False(t, gp.IsIgnored("main.ts", false))
}

func TestGitignoreParser_MissingFileIsNotAnError(t *testing.T) {
	gp := NewGitignoreParser()
	assert.NoError(t, gp.LoadGitignore(t.TempDir()))
}
