package types

// Position is a 1-based line/column source position.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SyntaxNode is one node of a parsed tree. Nodes live in the owning
// SyntaxTree's arena and reference children by index, so a tree holds no
// parent/child pointers that could form reference cycles.
type SyntaxNode struct {
	Kind      string
	Start     Position
	End       Position
	StartByte int
	EndByte   int
	Named     bool
	Children  []int
}

// SyntaxTree is an immutable, heterogeneous node structure produced by the
// pluggable parser. The root is always node 0; an empty Nodes slice means
// the parse produced nothing.
type SyntaxTree struct {
	Path     string
	Language string
	Nodes    []SyntaxNode
}

// Root returns the root node index, or -1 for an empty tree.
func (t *SyntaxTree) Root() int {
	if len(t.Nodes) == 0 {
		return -1
	}
	return 0
}

// Node returns the node at index i. Callers must not mutate the result.
func (t *SyntaxTree) Node(i int) *SyntaxNode {
	return &t.Nodes[i]
}

// Len returns the number of nodes in the arena.
func (t *SyntaxTree) Len() int {
	return len(t.Nodes)
}

// Text slices the node's source text out of content.
func (t *SyntaxTree) Text(i int, content []byte) string {
	n := &t.Nodes[i]
	if n.StartByte < 0 || n.EndByte > len(content) || n.StartByte > n.EndByte {
		return ""
	}
	return string(content[n.StartByte:n.EndByte])
}

// Walk visits node i and its descendants depth-first, pre-order. The visit
// function returns false to skip a node's children.
func (t *SyntaxTree) Walk(i int, visit func(idx int, node *SyntaxNode) bool) {
	if i < 0 || i >= len(t.Nodes) {
		return
	}
	n := &t.Nodes[i]
	if !visit(i, n) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, visit)
	}
}

// ChildOfKind returns the first direct child of node i with the given
// kind, or -1.
func (t *SyntaxTree) ChildOfKind(i int, kind string) int {
	for _, c := range t.Nodes[i].Children {
		if t.Nodes[c].Kind == kind {
			return c
		}
	}
	return -1
}

// DescendantsOfKind collects all descendants of node i (inclusive) with
// the given kind.
func (t *SyntaxTree) DescendantsOfKind(i int, kind string) []int {
	var out []int
	t.Walk(i, func(idx int, node *SyntaxNode) bool {
		if node.Kind == kind {
			out = append(out, idx)
		}
		return true
	})
	return out
}
