package symbols

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	edlib "github.com/hbollon/go-edlib"

	"github.com/standardbeagle/codeatlas/internal/types"
)

// fuzzyThreshold is the minimum similarity for fuzzy name matches.
const fuzzyThreshold = 0.7

// Entry is one symbol table slot: the symbol plus its usage sites and
// bidirectional dependency edges. Dependencies and Dependents hold entry
// keys; the table keeps them mirror-consistent so removal can never leave
// a dangling back-reference.
type Entry struct {
	Symbol       types.Symbol     `json:"symbol"`
	References   []types.Location `json:"references"`
	Dependencies []string         `json:"dependencies"`
	Dependents   []string         `json:"dependents"`
}

// Table aggregates per-file symbols into a project-wide index. Symbol
// identity is (owning file path, name).
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	byFile  map[string][]string
}

// New creates an empty symbol table.
func New() *Table {
	return &Table{
		entries: make(map[string]*Entry),
		byFile:  make(map[string][]string),
	}
}

// Key derives the entry key for a (file, name) identity.
func Key(file, name string) string {
	return file + "::" + name
}

// AddSymbol upserts a symbol by (file, name). An existing entry keeps its
// references and edges; only the symbol data is replaced.
func (t *Table) AddSymbol(sym types.Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := Key(sym.File, sym.Name)
	if e, ok := t.entries[key]; ok {
		e.Symbol = sym
		return
	}

	t.entries[key] = &Entry{
		Symbol:       sym,
		References:   []types.Location{},
		Dependencies: []string{},
		Dependents:   []string{},
	}
	t.byFile[sym.File] = append(t.byFile[sym.File], key)
}

// AddReference records a usage site for a symbol. Unknown symbols are
// ignored.
func (t *Table) AddReference(file, name string, loc types.Location) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[Key(file, name)]
	if !ok {
		return false
	}
	e.References = append(e.References, loc)
	return true
}

// AddDependency records that (fromFile, fromName) depends on (toFile,
// toName), maintaining both directions. Either side missing is a no-op.
func (t *Table) AddDependency(fromFile, fromName, toFile, toName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fromKey := Key(fromFile, fromName)
	toKey := Key(toFile, toName)
	from, ok := t.entries[fromKey]
	if !ok {
		return false
	}
	to, ok := t.entries[toKey]
	if !ok {
		return false
	}

	if !contains(from.Dependencies, toKey) {
		from.Dependencies = append(from.Dependencies, toKey)
	}
	if !contains(to.Dependents, fromKey) {
		to.Dependents = append(to.Dependents, fromKey)
	}
	return true
}

// RemoveSymbol deletes an entry, first stripping it from every
// dependent's dependency list and every dependency's dependent list.
func (t *Table) RemoveSymbol(file, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(Key(file, name))
}

// RemoveFile deletes every entry owned by a file.
func (t *Table) RemoveFile(file string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := append([]string(nil), t.byFile[file]...)
	removed := 0
	for _, key := range keys {
		if t.removeLocked(key) {
			removed++
		}
	}
	return removed
}

func (t *Table) removeLocked(key string) bool {
	e, ok := t.entries[key]
	if !ok {
		return false
	}

	for _, depKey := range e.Dependencies {
		if dep, ok := t.entries[depKey]; ok {
			dep.Dependents = remove(dep.Dependents, key)
		}
	}
	for _, depKey := range e.Dependents {
		if dep, ok := t.entries[depKey]; ok {
			dep.Dependencies = remove(dep.Dependencies, key)
		}
	}

	delete(t.entries, key)
	t.byFile[e.Symbol.File] = remove(t.byFile[e.Symbol.File], key)
	if len(t.byFile[e.Symbol.File]) == 0 {
		delete(t.byFile, e.Symbol.File)
	}
	return true
}

// Get returns the entry for (file, name).
func (t *Table) Get(file, name string) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[Key(file, name)]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// GetByFile returns all symbols declared in a file.
func (t *Table) GetByFile(file string) []types.Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := t.byFile[file]
	out := make([]types.Symbol, 0, len(keys))
	for _, key := range keys {
		out = append(out, t.entries[key].Symbol)
	}
	return out
}

// GetByKind returns all symbols of one kind.
func (t *Table) GetByKind(kind types.SymbolKind) []types.Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []types.Symbol
	for _, e := range t.entries {
		if e.Symbol.Kind == kind {
			out = append(out, e.Symbol)
		}
	}
	sortSymbols(out)
	return out
}

// FindByName returns symbols whose names match the pattern: exact and
// substring matches first, then fuzzy matches above the similarity
// threshold when nothing else matched.
func (t *Table) FindByName(pattern string) []types.Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lower := strings.ToLower(pattern)
	var out []types.Symbol
	for _, e := range t.entries {
		if strings.Contains(strings.ToLower(e.Symbol.Name), lower) {
			out = append(out, e.Symbol)
		}
	}
	if len(out) > 0 {
		sortSymbols(out)
		return out
	}

	for _, e := range t.entries {
		sim, err := edlib.StringsSimilarity(strings.ToLower(e.Symbol.Name), lower, edlib.Levenshtein)
		if err == nil && sim >= fuzzyThreshold {
			out = append(out, e.Symbol)
		}
	}
	sortSymbols(out)
	return out
}

// MostReferenced returns the n entries with the most recorded references.
func (t *Table) MostReferenced(n int) []Entry {
	return t.topN(n, func(e *Entry) int { return len(e.References) })
}

// MostDependedOn returns the n entries with the most dependents.
func (t *Table) MostDependedOn(n int) []Entry {
	return t.topN(n, func(e *Entry) int { return len(e.Dependents) })
}

func (t *Table) topN(n int, score func(*Entry) int) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		si, sj := score(all[i]), score(all[j])
		if si != sj {
			return si > sj
		}
		return Key(all[i].Symbol.File, all[i].Symbol.Name) < Key(all[j].Symbol.File, all[j].Symbol.Name)
	})

	if n > len(all) {
		n = len(all)
	}
	out := make([]Entry, 0, n)
	for _, e := range all[:n] {
		out = append(out, *e)
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Statistics summarizes the table for the analysis result.
type Statistics struct {
	TotalSymbols      int                      `json:"total_symbols"`
	TotalFiles        int                      `json:"total_files"`
	TotalReferences   int                      `json:"total_references"`
	TotalDependencies int                      `json:"total_dependencies"`
	ByKind            map[types.SymbolKind]int `json:"by_kind"`
}

// GetStatistics computes table statistics.
func (t *Table) GetStatistics() Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Statistics{
		TotalSymbols: len(t.entries),
		TotalFiles:   len(t.byFile),
		ByKind:       make(map[types.SymbolKind]int),
	}
	for _, e := range t.entries {
		stats.ByKind[e.Symbol.Kind]++
		stats.TotalReferences += len(e.References)
		stats.TotalDependencies += len(e.Dependencies)
	}
	return stats
}

// export is the serialized table form.
type export struct {
	Entries map[string]*Entry `json:"entries"`
}

// ExportJSON serializes the table. ImportJSON on the result reproduces an
// identical table.
func (t *Table) ExportJSON() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return json.MarshalIndent(export{Entries: t.entries}, "", "  ")
}

// ImportJSON replaces the table's contents with a previously exported
// form.
func (t *Table) ImportJSON(data []byte) error {
	var ex export
	if err := json.Unmarshal(data, &ex); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[string]*Entry, len(ex.Entries))
	t.byFile = make(map[string][]string)
	for key, e := range ex.Entries {
		if e.References == nil {
			e.References = []types.Location{}
		}
		if e.Dependencies == nil {
			e.Dependencies = []string{}
		}
		if e.Dependents == nil {
			e.Dependents = []string{}
		}
		t.entries[key] = e
		t.byFile[e.Symbol.File] = append(t.byFile[e.Symbol.File], key)
	}
	return nil
}

func sortSymbols(syms []types.Symbol) {
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].File != syms[j].File {
			return syms[i].File < syms[j].File
		}
		return syms[i].Name < syms[j].Name
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
