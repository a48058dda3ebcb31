package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	caerrors "github.com/standardbeagle/codeatlas/internal/errors"
	"github.com/standardbeagle/codeatlas/internal/types"
)

// DefaultMaxTreeDepth bounds the tree conversion recursion against
// pathological nesting.
const DefaultMaxTreeDepth = 512

// Parser is the pluggable capability that turns file text into a syntax
// tree. The engine consumes this interface; the tree-sitter implementation
// below is the default provider.
type Parser interface {
	Parse(path string, content []byte) (*types.SyntaxTree, error)
	SupportedExtensions() []string
}

// languagePool holds one lazily-built grammar and a pool of parsers bound
// to it. Pooling per language lets files of different (or the same)
// language parse in parallel; tree-sitter parser instances are not safe
// for concurrent use, so each Parse call checks one out.
type languagePool struct {
	name     string
	langFunc func() *tree_sitter.Language

	once     sync.Once
	language *tree_sitter.Language
	pool     sync.Pool
}

func (lp *languagePool) get() (*tree_sitter.Parser, error) {
	lp.once.Do(func() {
		lp.language = lp.langFunc()
		lp.pool.New = func() any {
			parser := tree_sitter.NewParser()
			if err := parser.SetLanguage(lp.language); err != nil {
				return nil
			}
			return parser
		}
	})

	v := lp.pool.Get()
	if v == nil {
		return nil, fmt.Errorf("grammar %q rejected by tree-sitter", lp.name)
	}
	return v.(*tree_sitter.Parser), nil
}

func (lp *languagePool) put(p *tree_sitter.Parser) {
	lp.pool.Put(p)
}

// TreeSitterParser parses source files with tree-sitter grammars. Grammars
// are initialized lazily per language so unused languages cost nothing,
// and parser instances are pooled per language so concurrent callers never
// serialize on a shared parser.
type TreeSitterParser struct {
	languages map[string]string        // extension -> language name
	pools     map[string]*languagePool // language name -> parser pool
	maxDepth  int
}

// NewTreeSitterParser creates a parser with all supported grammars
// registered for lazy initialization.
func NewTreeSitterParser() *TreeSitterParser {
	p := &TreeSitterParser{
		languages: make(map[string]string),
		pools:     make(map[string]*languagePool),
		maxDepth:  DefaultMaxTreeDepth,
	}
	p.registerLanguages()
	return p
}

// SetMaxDepth overrides the recursion guard for tree conversion. Call
// before the first Parse.
func (p *TreeSitterParser) SetMaxDepth(depth int) {
	if depth > 0 {
		p.maxDepth = depth
	}
}

// LanguageForExtension returns the language name for an extension, or ""
// when the extension is unsupported.
func (p *TreeSitterParser) LanguageForExtension(ext string) string {
	return p.languages[strings.ToLower(ext)]
}

// SupportedExtensions lists every extension a registered grammar covers.
func (p *TreeSitterParser) SupportedExtensions() []string {
	out := make([]string, 0, len(p.languages))
	for ext := range p.languages {
		out = append(out, ext)
	}
	return out
}

// Parse parses one file into an arena syntax tree. The returned tree owns
// all nodes by index; it holds no references into tree-sitter memory, so
// the underlying CGO tree is closed before returning.
func (p *TreeSitterParser) Parse(path string, content []byte) (*types.SyntaxTree, error) {
	ext := strings.ToLower(filepath.Ext(path))

	name, ok := p.languages[ext]
	if !ok {
		return nil, caerrors.NewParseError(path, 0, 0, fmt.Errorf("unsupported extension %q", ext))
	}

	lp := p.pools[name]
	parser, err := lp.get()
	if err != nil {
		return nil, caerrors.NewParseError(path, 0, 0, err)
	}
	defer lp.put(parser)

	tsTree := parser.Parse(content, nil)
	if tsTree == nil {
		return nil, caerrors.NewParseError(path, 0, 0, fmt.Errorf("tree-sitter returned no tree"))
	}
	defer tsTree.Close()

	tree := &types.SyntaxTree{
		Path:     path,
		Language: name,
	}
	root := tsTree.RootNode()
	if _, err := convertNode(tree, root, 0, p.maxDepth); err != nil {
		return nil, caerrors.NewParseError(path, 0, 0, err)
	}
	return tree, nil
}

// convertNode copies one tree-sitter node (and its subtree) into the arena
// and returns its index.
func convertNode(tree *types.SyntaxTree, node *tree_sitter.Node, depth, maxDepth int) (int, error) {
	if depth > maxDepth {
		return -1, fmt.Errorf("tree depth exceeds %d", maxDepth)
	}

	idx := len(tree.Nodes)
	start := node.StartPosition()
	end := node.EndPosition()
	tree.Nodes = append(tree.Nodes, types.SyntaxNode{
		Kind:      node.Kind(),
		Start:     types.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
		End:       types.Position{Line: int(end.Row) + 1, Column: int(end.Column) + 1},
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		Named:     node.IsNamed(),
	})

	childCount := node.ChildCount()
	if childCount == 0 {
		return idx, nil
	}

	children := make([]int, 0, childCount)
	for i := uint(0); i < childCount; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		childIdx, err := convertNode(tree, child, depth+1, maxDepth)
		if err != nil {
			return -1, err
		}
		children = append(children, childIdx)
	}
	tree.Nodes[idx].Children = children
	return idx, nil
}
