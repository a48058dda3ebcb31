package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// GitignoreParser parses a project's .gitignore and answers match queries
// against slash-normalized paths relative to the project root.
type GitignoreParser struct {
	patterns []gitignorePattern
}

type gitignorePattern struct {
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool
	hasSlash bool
	hasGlob  bool
}

// NewGitignoreParser creates an empty parser.
func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is
// not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.AddPattern(line)
	}
	return scanner.Err()
}

// AddPattern adds a single gitignore pattern line.
func (gp *GitignoreParser) AddPattern(line string) {
	p := gitignorePattern{}

	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	}

	p.pattern = line
	p.hasSlash = strings.Contains(line, "/")
	p.hasGlob = strings.ContainsAny(line, "*?[")
	gp.patterns = append(gp.patterns, p)
}

// IsIgnored reports whether relPath (slash-separated, relative to the
// project root) matches the loaded patterns. Later patterns win, so a
// negation after a match un-ignores the path.
func (gp *GitignoreParser) IsIgnored(relPath string, isDir bool) bool {
	relPath = strings.TrimPrefix(filepath.ToSlash(relPath), "./")

	ignored := false
	for _, p := range gp.patterns {
		if p.dirOnly && !isDir && !pathHasDirComponent(relPath, p) {
			continue
		}
		if p.matches(relPath) {
			ignored = !p.negate
		}
	}
	return ignored
}

func (p *gitignorePattern) matches(relPath string) bool {
	if p.anchored || p.hasSlash {
		// Anchored or slashed patterns match from the root
		if ok, _ := filepath.Match(p.pattern, relPath); ok {
			return true
		}
		return strings.HasPrefix(relPath, p.pattern+"/")
	}

	// Unanchored patterns match any path component
	for _, segment := range strings.Split(relPath, "/") {
		if p.hasGlob {
			if ok, _ := filepath.Match(p.pattern, segment); ok {
				return true
			}
		} else if segment == p.pattern {
			return true
		}
	}
	return false
}

// pathHasDirComponent reports whether a dir-only pattern matches one of the
// parent directories of a file path.
func pathHasDirComponent(relPath string, p gitignorePattern) bool {
	dir := relPath
	for {
		parent := pathDir(dir)
		if parent == dir {
			return false
		}
		dir = parent
		if dir == "." || dir == "" {
			return false
		}
		if p.matches(dir) {
			return true
		}
	}
}

func pathDir(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return p
	}
	return p[:idx]
}
