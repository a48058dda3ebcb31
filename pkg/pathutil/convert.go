// Package pathutil converts between absolute and relative paths.
//
// CodeAtlas uses absolute paths internally for consistency and to avoid
// ambiguity. User-facing output uses relative paths for readability and
// portability; this package is the conversion layer at output boundaries.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/codeatlas/internal/types"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/project/src/main.go", "/home/user/project") → "src/main.go"
//   - ToRelative("/other/location/file.go", "/home/user/project") → "/other/location/file.go" (outside root)
//   - ToRelative("src/main.go", "/home/user/project") → "src/main.go" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	// A ".." prefix means the file is outside the root; the absolute path
	// is clearer in that case.
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// ToRelativeFindings converts file paths in pattern findings from absolute
// to relative. Creates a new slice without modifying the original findings.
//
// Designed for output boundaries where findings are shown to users:
//   - CLI JSON output
//   - report serialization
func ToRelativeFindings(findings []types.PatternFinding, rootDir string) []types.PatternFinding {
	if len(findings) == 0 {
		return findings
	}

	converted := make([]types.PatternFinding, len(findings))
	copy(converted, findings)

	for i := range converted {
		if len(converted[i].Locations) == 0 {
			continue
		}
		locations := make([]types.Location, len(converted[i].Locations))
		copy(locations, converted[i].Locations)
		for j := range locations {
			locations[j].File = ToRelative(locations[j].File, rootDir)
		}
		converted[i].Locations = locations
	}
	return converted
}

// ToRelativePaths converts a slice of absolute paths without modifying the
// original slice.
func ToRelativePaths(paths []string, rootDir string) []string {
	if len(paths) == 0 {
		return paths
	}
	converted := make([]string, len(paths))
	for i, p := range paths {
		converted[i] = ToRelative(p, rootDir)
	}
	return converted
}
