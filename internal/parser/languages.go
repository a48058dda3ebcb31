package parser

import (
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// registerLanguages wires every supported grammar for lazy initialization.
func (p *TreeSitterParser) registerLanguages() {
	p.register("javascript", []string{".js", ".jsx", ".mjs", ".cjs"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	})
	p.register("typescript", []string{".ts", ".tsx"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	})
	p.register("go", []string{".go"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_go.Language())
	})
	p.register("python", []string{".py"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_python.Language())
	})
	p.register("rust", []string{".rs"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_rust.Language())
	})
	p.register("java", []string{".java"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_java.Language())
	})
	p.register("csharp", []string{".cs"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_csharp.Language())
	})
	p.register("cpp", []string{".cpp", ".cc", ".cxx", ".hpp", ".h"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	})
	p.register("php", []string{".php"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	})
	p.register("zig", []string{".zig"}, func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_zig.Language())
	})
}

// register records a lazily-initialized parser pool for one grammar across
// its extensions.
func (p *TreeSitterParser) register(name string, extensions []string, langFunc func() *tree_sitter.Language) {
	p.pools[name] = &languagePool{name: name, langFunc: langFunc}
	for _, ext := range extensions {
		p.languages[ext] = name
	}
}
