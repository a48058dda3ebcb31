package orchestrator

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/codeatlas/internal/debug"
)

// Discover walks the project root and returns the absolute paths of files
// to analyze. Exclude patterns and gitignore rules prune whole directories
// so excluded trees are never descended into. Symlinks are skipped unless
// analysis.follow_symlinks is set, in which case symlinked directories are
// descended once each to keep link cycles from looping the walk.
func (o *Orchestrator) Discover() ([]string, error) {
	root := o.cfg.Project.Root

	supported := make(map[string]bool)
	for _, ext := range o.parser.SupportedExtensions() {
		supported[ext] = true
	}

	visited := make(map[string]bool)
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		visited[resolved] = true
	}

	var files []string
	var walk func(dir, relPrefix string) error
	walk = func(dir, relPrefix string) error {
		return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				debug.LogOrchestrator("skipping %s: %v", path, err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if relPrefix != "" {
				rel = relPrefix + "/" + rel
			}

			if d.Type()&fs.ModeSymlink != 0 {
				if !o.cfg.Analysis.FollowSymlinks {
					return nil
				}
				target, terr := filepath.EvalSymlinks(path)
				if terr != nil {
					debug.LogOrchestrator("broken symlink %s: %v", path, terr)
					return nil
				}
				st, serr := os.Stat(target)
				if serr != nil {
					return nil
				}
				if st.IsDir() {
					if o.excluded(rel, true) || visited[target] {
						return nil
					}
					visited[target] = true
					return walk(target, rel)
				}
				if o.excluded(rel, false) || !o.included(rel, supported) {
					return nil
				}
				files = append(files, path)
				return nil
			}

			if d.IsDir() {
				if o.excluded(rel, true) {
					return filepath.SkipDir
				}
				return nil
			}

			if o.excluded(rel, false) {
				return nil
			}
			if !o.included(rel, supported) {
				return nil
			}

			files = append(files, path)
			return nil
		})
	}
	if err := walk(root, ""); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// excluded checks configured exclude globs and gitignore rules.
func (o *Orchestrator) excluded(rel string, isDir bool) bool {
	candidate := rel
	if isDir {
		// Directory patterns like **/node_modules/** match paths under the
		// directory, so match against a synthetic child as well.
		candidate = rel + "/x"
	}
	for _, pattern := range o.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, candidate); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	if o.gitignore != nil && o.gitignore.IsIgnored(rel, isDir) {
		return true
	}
	return false
}

// included applies include globs when configured; otherwise a file is
// included when its extension has a registered grammar.
func (o *Orchestrator) included(rel string, supported map[string]bool) bool {
	if len(o.cfg.Include) == 0 {
		return supported[strings.ToLower(filepath.Ext(rel))]
	}
	for _, pattern := range o.cfg.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
