package graph

import (
	"container/heap"
	"sort"

	caerrors "github.com/standardbeagle/codeatlas/internal/errors"
)

// DetectCycles enumerates elementary cycles found by DFS with an explicit
// recursion stack, started from every unvisited node. Each cycle is the
// node sequence along the back edge, first node repeated at the end.
func (g *Graph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	stack := make([]string, 0, len(g.nodes))
	var cycles [][]string
	seen := make(map[string]bool)

	var dfs func(id string)
	dfs = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, to := range sortedKeys(g.succ[id]) {
			if !visited[to] {
				dfs(to)
			} else if onStack[to] {
				// Back edge: slice the stack from the first occurrence of to.
				start := 0
				for i, n := range stack {
					if n == to {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, stack[start:]...), to)
				key := canonicalCycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for _, id := range g.sortedNodesLocked() {
		if !visited[id] {
			dfs(id)
		}
	}
	return cycles
}

// canonicalCycleKey rotates a cycle so the lexicographically smallest node
// comes first, making the same cycle found from different roots compare equal.
func canonicalCycleKey(cycle []string) string {
	body := cycle[:len(cycle)-1]
	min := 0
	for i, n := range body {
		if n < body[min] {
			min = i
		}
	}
	key := ""
	for i := range body {
		key += body[(min+i)%len(body)] + "\x00"
	}
	return key
}

// TopologicalSort orders nodes so every edge points forward, using Kahn's
// algorithm. Returns ok=false when the graph is cyclic; the order is never
// partial in that case.
func (g *Graph) TopologicalSort() ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.pred[id])
	}

	var queue []string
	for _, id := range g.sortedNodesLocked() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, to := range sortedKeys(g.succ[id]) {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, false
	}
	return order, true
}

type pathItem struct {
	id   string
	dist float64
}

type pathQueue []pathItem

func (q pathQueue) Len() int            { return len(q) }
func (q pathQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(pathItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// ShortestPath finds the minimum-weight path between two nodes with
// Dijkstra's algorithm. Returns the node sequence and total weight, or
// ErrNotFound when no path exists.
func (g *Graph) ShortestPath(from, to string) ([]string, float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[from]; !ok {
		return nil, 0, caerrors.NewGraphConstraintError("shortest path", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return nil, 0, caerrors.NewGraphConstraintError("shortest path", to)
	}

	dist := map[string]float64{from: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)

	pq := &pathQueue{{id: from, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pathItem)
		if done[item.id] {
			continue
		}
		done[item.id] = true
		if item.id == to {
			break
		}

		for next, e := range g.succ[item.id] {
			if done[next] {
				continue
			}
			d := item.dist + e.Weight
			if cur, ok := dist[next]; !ok || d < cur {
				dist[next] = d
				prev[next] = item.id
				heap.Push(pq, pathItem{id: next, dist: d})
			}
		}
	}

	if !done[to] {
		return nil, 0, caerrors.ErrNotFound
	}

	path := []string{to}
	for path[len(path)-1] != from {
		path = append(path, prev[path[len(path)-1]])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[to], nil
}

// AllPaths enumerates every simple path from one node to another up to
// maxDepth edges. Depth bounding keeps dense graphs tractable.
func (g *Graph) AllPaths(from, to string, maxDepth int) [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if maxDepth <= 0 {
		maxDepth = len(g.nodes)
	}

	var paths [][]string
	onPath := make(map[string]bool)
	path := []string{from}
	onPath[from] = true

	var dfs func(id string)
	dfs = func(id string) {
		if id == to {
			paths = append(paths, append([]string{}, path...))
			return
		}
		if len(path) > maxDepth {
			return
		}
		for _, next := range sortedKeys(g.succ[id]) {
			if onPath[next] {
				continue
			}
			onPath[next] = true
			path = append(path, next)
			dfs(next)
			path = path[:len(path)-1]
			onPath[next] = false
		}
	}

	if _, ok := g.nodes[from]; ok {
		dfs(from)
	}
	return paths
}

// StronglyConnectedComponents groups nodes into SCCs using Kosaraju's
// two-pass algorithm. Components are returned sorted by their smallest node.
func (g *Graph) StronglyConnectedComponents() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Pass 1: finish-time order on the forward graph.
	visited := make(map[string]bool)
	var order []string
	var fill func(id string)
	fill = func(id string) {
		visited[id] = true
		for to := range g.succ[id] {
			if !visited[to] {
				fill(to)
			}
		}
		order = append(order, id)
	}
	for _, id := range g.sortedNodesLocked() {
		if !visited[id] {
			fill(id)
		}
	}

	// Pass 2: collect components on the reverse graph in reverse finish order.
	assigned := make(map[string]bool)
	var components [][]string
	var collect func(id string, comp *[]string)
	collect = func(id string, comp *[]string) {
		assigned[id] = true
		*comp = append(*comp, id)
		for from := range g.pred[id] {
			if !assigned[from] {
				collect(from, comp)
			}
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		if !assigned[order[i]] {
			var comp []string
			collect(order[i], &comp)
			sort.Strings(comp)
			components = append(components, comp)
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}

// Metrics summarizes graph shape.
type Metrics struct {
	Nodes         int     `json:"nodes"`
	Edges         int     `json:"edges"`
	Density       float64 `json:"density"`
	AverageDegree float64 `json:"average_degree"`
	Components    int     `json:"components"`
	Connected     bool    `json:"connected"`
}

// ComputeMetrics calculates density, average out-degree and weak
// connectivity over the current graph.
func (g *Graph) ComputeMetrics() Metrics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := len(g.nodes)
	edges := 0
	for _, targets := range g.succ {
		edges += len(targets)
	}

	m := Metrics{Nodes: n, Edges: edges}
	if n > 1 {
		m.Density = float64(edges) / float64(n*(n-1))
	}
	if n > 0 {
		m.AverageDegree = float64(edges) / float64(n)
	}
	m.Components = g.weakComponentsLocked()
	m.Connected = n > 0 && m.Components == 1
	return m
}

func (g *Graph) weakComponentsLocked() int {
	visited := make(map[string]bool)
	count := 0
	var flood func(id string)
	flood = func(id string) {
		visited[id] = true
		for to := range g.succ[id] {
			if !visited[to] {
				flood(to)
			}
		}
		for from := range g.pred[id] {
			if !visited[from] {
				flood(from)
			}
		}
	}
	for id := range g.nodes {
		if !visited[id] {
			count++
			flood(id)
		}
	}
	return count
}

// NodeLevels assigns each node its height above the leaves: a node with
// no outgoing edges sits at level 0, and every other node sits one above
// its highest successor. Nodes on a cycle settle at the tentative level
// the traversal had reached when it closed over them instead of
// recursing forever.
func (g *Graph) NodeLevels() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	levels := make(map[string]int, len(g.nodes))
	inProgress := make(map[string]bool)

	var level func(id string) int
	level = func(id string) int {
		if inProgress[id] {
			return levels[id]
		}
		if l, ok := levels[id]; ok {
			return l
		}
		inProgress[id] = true
		levels[id] = 0
		max := 0
		for to := range g.succ[id] {
			if l := level(to) + 1; l > max {
				max = l
			}
		}
		delete(inProgress, id)
		levels[id] = max
		return max
	}

	for _, id := range g.sortedNodesLocked() {
		level(id)
	}
	return levels
}

func sortedKeys(m map[string]*Edge) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
