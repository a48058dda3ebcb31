package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/standardbeagle/codeatlas/internal/types"
)

// extraction accumulates everything a single tree walk produces: declared
// symbols, import specifiers, exports, and the raw complexity counts.
type extraction struct {
	symbols []types.Symbol
	imports []types.Import
	exports []string

	branches      int
	shortCircuits int
	operators     map[string]int
	operands      map[string]int
	operatorTotal int
	operandTotal  int
}

// Declaration kinds mapped to symbol kinds, shared across grammars.
var declarationKinds = map[string]types.SymbolKind{
	"function_declaration":    types.SymbolKindFunction,
	"function_definition":     types.SymbolKindFunction,
	"function_item":           types.SymbolKindFunction,
	"generator_function_declaration": types.SymbolKindFunction,
	"method_definition":       types.SymbolKindMethod,
	"method_declaration":      types.SymbolKindMethod,
	"constructor_declaration": types.SymbolKindMethod,
	"class_declaration":       types.SymbolKindClass,
	"class_definition":        types.SymbolKindClass,
	"class_specifier":         types.SymbolKindClass,
	"interface_declaration":   types.SymbolKindInterface,
	"struct_specifier":        types.SymbolKindStruct,
	"struct_item":             types.SymbolKindStruct,
	"enum_declaration":        types.SymbolKindEnum,
	"enum_item":               types.SymbolKindEnum,
	"type_alias_declaration":  types.SymbolKindType,
	"trait_item":              types.SymbolKindInterface,
}

// Branching constructs counted for cyclomatic complexity.
var branchKinds = map[string]bool{
	"if_statement":           true,
	"if_expression":          true,
	"elif_clause":            true,
	"for_statement":          true,
	"for_in_statement":       true,
	"for_of_statement":       true,
	"for_expression":         true,
	"foreach_statement":      true,
	"while_statement":        true,
	"while_expression":       true,
	"do_statement":           true,
	"case_clause":            true,
	"switch_case":            true,
	"match_arm":              true,
	"expression_case":        true,
	"catch_clause":           true,
	"except_clause":          true,
	"ternary_expression":     true,
	"conditional_expression": true,
}

// Short-circuit operator tokens counted for cognitive complexity.
var shortCircuitOps = map[string]bool{
	"&&":  true,
	"||":  true,
	"??":  true,
	"and": true,
	"or":  true,
}

// Operand leaf kinds for the Halstead tokenization.
var operandKinds = map[string]bool{
	"identifier":                  true,
	"type_identifier":             true,
	"field_identifier":            true,
	"property_identifier":         true,
	"shorthand_property_identifier": true,
	"statement_identifier":        true,
	"package_identifier":          true,
	"number":                      true,
	"int_literal":                 true,
	"float_literal":               true,
	"integer":                     true,
	"float":                       true,
	"string":                      true,
	"string_literal":              true,
	"raw_string_literal":          true,
	"interpreted_string_literal":  true,
	"rune_literal":                true,
	"char_literal":                true,
	"true":                        true,
	"false":                       true,
	"nil":                         true,
	"null":                        true,
	"none":                        true,
	"undefined":                   true,
}

// walkContext tracks ancestry state so extraction needs no parent
// pointers.
type walkContext struct {
	inExport bool
	inClass  bool
	inConst  bool
}

// extract performs the single tree walk that yields symbols, imports,
// exports and complexity counts for one file.
func extract(tree *types.SyntaxTree, content []byte, path, language string) *extraction {
	ex := &extraction{
		operators: make(map[string]int),
		operands:  make(map[string]int),
	}
	if tree.Root() >= 0 {
		ex.visit(tree, tree.Root(), content, path, language, walkContext{})
	}
	return ex
}

func (ex *extraction) visit(tree *types.SyntaxTree, idx int, content []byte, path, language string, ctx walkContext) {
	node := tree.Node(idx)
	kind := node.Kind

	switch {
	case kind == "export_statement":
		ex.recordReexport(tree, idx, content)
		ctx.inExport = true
	case kind == "import_statement", kind == "import_from_statement",
		kind == "use_declaration", kind == "using_directive",
		kind == "preproc_include":
		ex.recordImport(tree, idx, content, language)
		return
	case kind == "import_declaration" && language != "go":
		ex.recordImport(tree, idx, content, language)
		return
	case kind == "import_spec":
		// go: one spec per imported package, grouped or not
		ex.recordImport(tree, idx, content, language)
		return
	}

	if symKind, ok := declarationKinds[kind]; ok {
		ex.recordSymbol(tree, idx, content, path, language, symKind, ctx)
		if symKind == types.SymbolKindClass || symKind == types.SymbolKindInterface || symKind == types.SymbolKindStruct {
			ctx.inClass = true
		}
	}

	switch kind {
	case "type_declaration": // go: kind refined per type_spec below
	case "type_spec":
		ex.recordGoTypeSpec(tree, idx, content, path, ctx)
	case "const_declaration", "const_spec", "const_item":
		ctx.inConst = true
	case "lexical_declaration":
		ctx.inConst = strings.HasPrefix(tree.Text(idx, content), "const")
	case "variable_declarator", "var_spec":
		ex.recordVariable(tree, idx, content, path, language, ctx)
	case "short_var_declaration":
		// Locals are not declarations worth indexing
	}

	if branchKinds[kind] {
		ex.branches++
	}

	if len(node.Children) == 0 {
		ex.recordToken(tree, idx, node, content)
		return
	}

	for _, c := range node.Children {
		ex.visit(tree, c, content, path, language, ctx)
	}
}

// recordToken feeds one leaf node into the Halstead tokenization and the
// short-circuit count.
func (ex *extraction) recordToken(tree *types.SyntaxTree, idx int, node *types.SyntaxNode, content []byte) {
	if operandKinds[node.Kind] {
		text := tree.Text(idx, content)
		if text != "" {
			ex.operands[text]++
			ex.operandTotal++
		}
		return
	}
	if node.Named {
		// Named leaves that are not operands (comments, escapes) are
		// ignored by the simplified tokenization
		return
	}
	// Unnamed leaves - punctuation, operators and keywords - all count as
	// operators under the simplified tokenization
	text := node.Kind
	if shortCircuitOps[text] {
		ex.shortCircuits++
	}
	ex.operators[text]++
	ex.operatorTotal++
}

// recordSymbol appends one declared symbol, resolving its name, position
// and exported flag.
func (ex *extraction) recordSymbol(tree *types.SyntaxTree, idx int, content []byte, path, language string, kind types.SymbolKind, ctx walkContext) {
	name := declaredName(tree, idx, content)
	if name == "" {
		return
	}
	node := tree.Node(idx)
	if ctx.inClass && kind == types.SymbolKindFunction && language == "python" {
		kind = types.SymbolKindMethod
	}

	sym := types.Symbol{
		Name:      name,
		Kind:      kind,
		File:      path,
		Line:      node.Start.Line,
		Column:    node.Start.Column,
		EndLine:   node.End.Line,
		Exported:  isExported(name, language, ctx),
		Signature: signature(tree, idx, content, name),
	}
	ex.symbols = append(ex.symbols, sym)
	if sym.Exported {
		ex.exports = append(ex.exports, name)
	}
}

// recordGoTypeSpec refines a Go type_spec into struct/interface/type.
func (ex *extraction) recordGoTypeSpec(tree *types.SyntaxTree, idx int, content []byte, path string, ctx walkContext) {
	name := declaredName(tree, idx, content)
	if name == "" {
		return
	}
	kind := types.SymbolKindType
	if tree.ChildOfKind(idx, "struct_type") >= 0 {
		kind = types.SymbolKindStruct
	} else if tree.ChildOfKind(idx, "interface_type") >= 0 {
		kind = types.SymbolKindInterface
	}

	node := tree.Node(idx)
	sym := types.Symbol{
		Name:     name,
		Kind:     kind,
		File:     path,
		Line:     node.Start.Line,
		Column:   node.Start.Column,
		EndLine:  node.End.Line,
		Exported: isExported(name, "go", ctx),
	}
	ex.symbols = append(ex.symbols, sym)
	if sym.Exported {
		ex.exports = append(ex.exports, name)
	}
}

// recordVariable appends a variable or constant declarator.
func (ex *extraction) recordVariable(tree *types.SyntaxTree, idx int, content []byte, path, language string, ctx walkContext) {
	name := declaredName(tree, idx, content)
	if name == "" {
		return
	}
	kind := types.SymbolKindVariable
	if ctx.inConst {
		kind = types.SymbolKindConstant
	}
	node := tree.Node(idx)
	sym := types.Symbol{
		Name:     name,
		Kind:     kind,
		File:     path,
		Line:     node.Start.Line,
		Column:   node.Start.Column,
		EndLine:  node.End.Line,
		Exported: isExported(name, language, ctx),
	}
	ex.symbols = append(ex.symbols, sym)
	if sym.Exported {
		ex.exports = append(ex.exports, name)
	}
}

// recordImport extracts the import specifier from an import-like node.
func (ex *extraction) recordImport(tree *types.SyntaxTree, idx int, content []byte, language string) {
	node := tree.Node(idx)

	spec := importSpecifier(tree, idx, content, language)
	if spec == "" {
		return
	}
	ex.imports = append(ex.imports, types.Import{
		Specifier: spec,
		Line:      node.Start.Line,
	})
}

// recordReexport notes `export ... from "x"` statements, which count both
// as imports and as re-exports.
func (ex *extraction) recordReexport(tree *types.SyntaxTree, idx int, content []byte) {
	for _, c := range tree.Node(idx).Children {
		if tree.Node(c).Kind == "string" {
			spec := trimQuotes(tree.Text(c, content))
			if spec != "" {
				ex.imports = append(ex.imports, types.Import{
					Specifier:  spec,
					Line:       tree.Node(idx).Start.Line,
					IsReexport: true,
				})
			}
		}
	}
}

// importSpecifier resolves the module specifier for one import node.
func importSpecifier(tree *types.SyntaxTree, idx int, content []byte, language string) string {
	switch language {
	case "go":
		if s := tree.ChildOfKind(idx, "interpreted_string_literal"); s >= 0 {
			return trimQuotes(tree.Text(s, content))
		}
		// import_declaration wraps import_spec_list; recurse via walk
		for _, c := range tree.Node(idx).Children {
			if spec := importSpecifier(tree, c, content, language); spec != "" {
				return spec
			}
		}
		return ""
	case "javascript", "typescript":
		if s := tree.ChildOfKind(idx, "string"); s >= 0 {
			return trimQuotes(tree.Text(s, content))
		}
		return ""
	case "python":
		if s := tree.ChildOfKind(idx, "dotted_name"); s >= 0 {
			return tree.Text(s, content)
		}
		if s := tree.ChildOfKind(idx, "relative_import"); s >= 0 {
			return tree.Text(s, content)
		}
		return ""
	default:
		// Best effort: first string-ish or path-ish child
		for _, c := range tree.Node(idx).Children {
			k := tree.Node(c).Kind
			if strings.Contains(k, "string") || k == "scoped_identifier" || k == "qualified_identifier" || k == "dotted_name" || k == "system_lib_string" {
				return trimQuotes(tree.Text(c, content))
			}
		}
		return ""
	}
}

// declaredName finds the name child of a declaration node.
func declaredName(tree *types.SyntaxTree, idx int, content []byte) string {
	for _, c := range tree.Node(idx).Children {
		switch tree.Node(c).Kind {
		case "identifier", "type_identifier", "property_identifier", "field_identifier", "name", "constant":
			return tree.Text(c, content)
		}
	}
	return ""
}

// signature renders a compact declaration signature: name plus the raw
// parameter list when present.
func signature(tree *types.SyntaxTree, idx int, content []byte, name string) string {
	for _, c := range tree.Node(idx).Children {
		kind := tree.Node(c).Kind
		if kind == "formal_parameters" || kind == "parameters" || kind == "parameter_list" {
			params := tree.Text(c, content)
			if len(params) > 120 {
				params = params[:117] + "..."
			}
			return name + params
		}
	}
	return ""
}

// isExported decides the exported flag per language convention.
func isExported(name, language string, ctx walkContext) bool {
	switch language {
	case "go":
		r, _ := utf8.DecodeRuneInString(name)
		return unicode.IsUpper(r)
	case "python":
		return !strings.HasPrefix(name, "_")
	default:
		return ctx.inExport
	}
}

func trimQuotes(s string) string {
	return strings.Trim(s, "\"'`")
}
