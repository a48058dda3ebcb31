package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/codeatlas/internal/debug"
	"github.com/standardbeagle/codeatlas/internal/graph"
	"github.com/standardbeagle/codeatlas/internal/types"
)

// ExternalDependency is one third-party package referenced by the analyzed
// files, deduped by package name and enriched from the project manifest
// when one is present.
type ExternalDependency struct {
	Name    string   `json:"name"`
	Version string   `json:"version,omitempty"`
	IsDev   bool     `json:"is_dev,omitempty"`
	UsedBy  []string `json:"used_by"`
}

// Report is the output of a dependency analysis pass.
type Report struct {
	Graph     *graph.Graph           `json:"-"`
	Externals []ExternalDependency   `json:"externals"`
	Findings  []types.PatternFinding `json:"findings"`
	Metrics   graph.Metrics          `json:"metrics"`
	Levels    map[string]int         `json:"levels,omitempty"`
}

// Analyzer builds the file dependency graph from analyzed records and
// derives circular, unused and duplicate findings.
type Analyzer struct {
	root       string
	extensions map[string][]string
}

// NewAnalyzer creates an analyzer rooted at the project directory. The root
// is used to locate manifests and to resolve absolute-style imports.
func NewAnalyzer(root string) *Analyzer {
	return &Analyzer{
		root: root,
		extensions: map[string][]string{
			"javascript": {".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"},
			"typescript": {".ts", ".tsx", ".js", ".jsx"},
			"python":     {".py"},
			"go":         {".go"},
			"rust":       {".rs"},
			"php":        {".php"},
		},
	}
}

// Analyze builds the graph and external inventory for a set of records.
// Every record becomes a node before any edge is added, so edge insertion
// never hits a missing endpoint for resolved targets.
func (a *Analyzer) Analyze(records map[string]*types.FileRecord) (*Report, error) {
	g := graph.New()
	for path, rec := range records {
		g.AddNode(path, rec.Language)
	}

	externals := make(map[string]*ExternalDependency)

	for path, rec := range records {
		for _, imp := range rec.Imports {
			if a.isInternal(imp.Specifier) {
				target, ok := a.resolve(path, rec.Language, imp.Specifier, records)
				if !ok {
					// Unresolvable target: drop the edge rather than invent a node.
					debug.LogGraph("dropping unresolved import %q in %s", imp.Specifier, path)
					continue
				}
				if err := g.AddEdge(path, target, "import", 1); err != nil {
					return nil, err
				}
				continue
			}

			name := packageName(imp.Specifier)
			if name == "" {
				continue
			}
			ext, ok := externals[name]
			if !ok {
				ext = &ExternalDependency{Name: name}
				externals[name] = ext
			}
			if !contains(ext.UsedBy, path) {
				ext.UsedBy = append(ext.UsedBy, path)
			}
		}
	}

	manifest := LoadManifests(a.root)

	report := &Report{Graph: g}
	report.Externals = enrich(externals, manifest)
	report.Findings = a.findings(g, report.Externals, manifest)
	report.Metrics = g.ComputeMetrics()
	report.Levels = g.NodeLevels()
	return report, nil
}

// isInternal reports whether a specifier points inside the project rather
// than at a package registry.
func (a *Analyzer) isInternal(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		strings.HasPrefix(specifier, "/") ||
		specifier == "." || specifier == ".."
}

// resolve maps an internal specifier to an analyzed file path. Candidates
// are tried in order: the literal path, the path with each known extension
// for the importing language, then the index-file convention.
func (a *Analyzer) resolve(importer, language, specifier string, records map[string]*types.FileRecord) (string, bool) {
	var base string
	if strings.HasPrefix(specifier, "/") {
		base = filepath.Join(a.root, specifier)
	} else {
		base = filepath.Join(filepath.Dir(importer), specifier)
	}
	base = filepath.Clean(base)

	exts := a.extensions[language]

	candidates := []string{base}
	for _, ext := range exts {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range exts {
		candidates = append(candidates, filepath.Join(base, "index"+ext))
	}

	for _, c := range candidates {
		if _, ok := records[c]; ok {
			return c, true
		}
	}
	// A target on disk but outside the analyzed set still gets no edge;
	// the graph only relates analyzed files.
	return "", false
}

// packageName extracts the registry package identity from a specifier:
// "lodash/merge" -> "lodash", "@scope/pkg/sub" -> "@scope/pkg",
// "github.com/org/repo/sub" -> "github.com/org/repo".
func packageName(specifier string) string {
	specifier = strings.TrimSpace(specifier)
	if specifier == "" {
		return ""
	}
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 {
			return specifier
		}
		return parts[0] + "/" + parts[1]
	}
	// Domain-prefixed module paths keep the org/repo segments.
	if strings.Contains(parts[0], ".") && len(parts) >= 3 {
		return strings.Join(parts[:3], "/")
	}
	return parts[0]
}

// enrich merges manifest metadata into the observed externals and returns
// the combined inventory sorted by name. Manifest entries never referenced
// by any file are included with an empty UsedBy set so the unused finding
// can report them.
func enrich(observed map[string]*ExternalDependency, manifest []ManifestEntry) []ExternalDependency {
	byName := make(map[string]*ExternalDependency, len(observed))
	for name, ext := range observed {
		sort.Strings(ext.UsedBy)
		byName[name] = ext
	}
	for _, entry := range manifest {
		ext, ok := byName[entry.Name]
		if !ok {
			ext = &ExternalDependency{Name: entry.Name, UsedBy: []string{}}
			byName[entry.Name] = ext
		}
		ext.Version = entry.Version
		ext.IsDev = entry.IsDev
	}

	out := make([]ExternalDependency, 0, len(byName))
	for _, ext := range byName {
		if ext.UsedBy == nil {
			ext.UsedBy = []string{}
		}
		out = append(out, *ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// findings derives circular, unused and duplicate dependency findings.
func (a *Analyzer) findings(g *graph.Graph, externals []ExternalDependency, manifest []ManifestEntry) []types.PatternFinding {
	var findings []types.PatternFinding

	for _, cycle := range g.DetectCycles() {
		locations := make([]types.Location, 0, len(cycle)-1)
		for _, node := range cycle[:len(cycle)-1] {
			locations = append(locations, types.Location{File: node, Line: 1})
		}
		findings = append(findings, types.PatternFinding{
			PatternID: "circular-dependency",
			Category:  types.PatternCategoryAntiPattern,
			Severity:  types.SeverityError,
			Message:   fmt.Sprintf("circular dependency: %s", strings.Join(cycle, " -> ")),
			Locations: locations,
			Recommendation: "Break the cycle by extracting the shared pieces into a module " +
				"neither side imports back from.",
		})
	}

	for _, ext := range externals {
		if ext.Version != "" && len(ext.UsedBy) == 0 {
			findings = append(findings, types.PatternFinding{
				PatternID:      "unused-dependency",
				Category:       types.PatternCategoryAntiPattern,
				Severity:       types.SeverityWarning,
				Message:        fmt.Sprintf("declared dependency %q is never imported", ext.Name),
				Recommendation: "Remove the entry from the manifest or add the missing import.",
			})
		}
	}

	// Duplicate detection looks at raw manifest entries so the same name
	// declared with different versions in different manifests is caught
	// even though the merged inventory keeps one entry per name.
	versions := make(map[string]map[string]bool)
	for _, entry := range manifest {
		if entry.Version == "" {
			continue
		}
		if versions[entry.Name] == nil {
			versions[entry.Name] = make(map[string]bool)
		}
		versions[entry.Name][entry.Version] = true
	}
	for name, set := range versions {
		if len(set) > 1 {
			findings = append(findings, types.PatternFinding{
				PatternID:      "duplicate-dependency",
				Category:       types.PatternCategoryAntiPattern,
				Severity:       types.SeverityWarning,
				Message:        fmt.Sprintf("dependency %q appears with %d distinct versions", name, len(set)),
				Recommendation: "Pin a single version across manifests.",
			})
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].PatternID != findings[j].PatternID {
			return findings[i].PatternID < findings[j].PatternID
		}
		return findings[i].Message < findings[j].Message
	})
	return findings
}

// RootExists is a small guard used by the orchestrator before analysis.
func RootExists(root string) bool {
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
