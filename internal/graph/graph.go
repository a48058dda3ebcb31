package graph

import (
	"sort"
	"sync"

	caerrors "github.com/standardbeagle/codeatlas/internal/errors"
)

// Node is one file in the dependency graph.
type Node struct {
	ID       string `json:"id"`
	Language string `json:"language,omitempty"`
}

// Edge is a directed import relation between two files. Duplicate edges
// between the same pair collapse into one; Weight and Count accumulate.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Kind   string  `json:"kind,omitempty"`
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}

// Graph is a directed graph of file nodes joined by import edges.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	succ  map[string]map[string]*Edge
	pred  map[string]map[string]*Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		succ:  make(map[string]map[string]*Edge),
		pred:  make(map[string]map[string]*Edge),
	}
}

// AddNode inserts a node; adding an existing ID is a no-op.
func (g *Graph) AddNode(id, language string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &Node{ID: id, Language: language}
	g.succ[id] = make(map[string]*Edge)
	g.pred[id] = make(map[string]*Edge)
}

// AddEdge inserts a directed edge. Both endpoints must already exist;
// a missing endpoint is a constraint violation signaling an orchestration
// defect, and fails hard.
func (g *Graph) AddEdge(from, to, kind string, weight float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok {
		return caerrors.NewGraphConstraintError("add edge", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return caerrors.NewGraphConstraintError("add edge", to)
	}
	if weight <= 0 {
		weight = 1
	}

	if e, ok := g.succ[from][to]; ok {
		e.Weight += weight
		e.Count++
		return nil
	}
	e := &Edge{From: from, To: to, Kind: kind, Weight: weight, Count: 1}
	g.succ[from][to] = e
	g.pred[to][from] = e
	return nil
}

// HasNode reports whether id exists.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return false
	}
	for to := range g.succ[id] {
		delete(g.pred[to], id)
	}
	for from := range g.pred[id] {
		delete(g.succ[from], id)
	}
	delete(g.succ, id)
	delete(g.pred, id)
	delete(g.nodes, id)
	return true
}

// Nodes returns all node IDs, sorted for deterministic output.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedNodesLocked()
}

func (g *Graph) sortedNodesLocked() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Edges returns a snapshot of every edge.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Edge
	for _, targets := range g.succ {
		for _, e := range targets {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Successors returns the IDs a node imports, sorted.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.succ[id]))
	for to := range g.succ[id] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Predecessors returns the IDs importing a node, sorted.
func (g *Graph) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.pred[id]))
	for from := range g.pred[id] {
		out = append(out, from)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of collapsed edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, targets := range g.succ {
		count += len(targets)
	}
	return count
}
