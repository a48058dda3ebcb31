package deps

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/codeatlas/internal/debug"
)

// ManifestEntry is one declared dependency from a project manifest.
type ManifestEntry struct {
	Name    string
	Version string
	IsDev   bool
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// LoadManifests reads the dependency manifests found at root. A missing or
// unreadable manifest is not an error; the analyzer just runs without
// declared-dependency enrichment.
func LoadManifests(root string) []ManifestEntry {
	var entries []ManifestEntry
	entries = append(entries, loadPackageJSON(filepath.Join(root, "package.json"))...)
	entries = append(entries, loadCargoTOML(filepath.Join(root, "Cargo.toml"))...)
	return entries
}

func loadPackageJSON(path string) []ManifestEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		debug.LogAnalysis("skipping malformed manifest %s: %v", path, err)
		return nil
	}

	var entries []ManifestEntry
	for name, version := range pkg.Dependencies {
		entries = append(entries, ManifestEntry{Name: name, Version: version})
	}
	for name, version := range pkg.DevDependencies {
		entries = append(entries, ManifestEntry{Name: name, Version: version, IsDev: true})
	}
	return entries
}

func loadCargoTOML(path string) []ManifestEntry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var manifest struct {
		Dependencies    map[string]interface{} `toml:"dependencies"`
		DevDependencies map[string]interface{} `toml:"dev-dependencies"`
	}
	if err := toml.Unmarshal(data, &manifest); err != nil {
		debug.LogAnalysis("skipping malformed manifest %s: %v", path, err)
		return nil
	}

	var entries []ManifestEntry
	for name, spec := range manifest.Dependencies {
		entries = append(entries, ManifestEntry{Name: name, Version: cargoVersion(spec)})
	}
	for name, spec := range manifest.DevDependencies {
		entries = append(entries, ManifestEntry{Name: name, Version: cargoVersion(spec), IsDev: true})
	}
	return entries
}

// cargoVersion handles both the shorthand `name = "1.0"` and the table form
// `name = { version = "1.0", features = [...] }`.
func cargoVersion(spec interface{}) string {
	switch v := spec.(type) {
	case string:
		return v
	case map[string]interface{}:
		if version, ok := v["version"].(string); ok {
			return version
		}
	}
	return ""
}
