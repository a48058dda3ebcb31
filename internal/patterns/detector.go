package patterns

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/codeatlas/internal/types"
)

// Thresholds tune the detector's heuristics. They are injected rather than
// embedded so downstream tooling can adjust them per project.
type Thresholds struct {
	LargeClassMembers  int
	LongMethodLines    int
	LongParameterList  int
	DeepNestingLevels  int
	GodObjectFanOut    int
	FactoryMethodCount int
}

// DefaultThresholds returns the stock tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LargeClassMembers:  20,
		LongMethodLines:    60,
		LongParameterList:  5,
		DeepNestingLevels:  5,
		GodObjectFanOut:    30,
		FactoryMethodCount: 2,
	}
}

// Detector scans a file's tree for structural motifs: design patterns and
// anti-patterns. It is stateless; one instance serves concurrent callers.
type Detector struct {
	thresholds Thresholds
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(t Thresholds) *Detector {
	return &Detector{thresholds: t}
}

// Node kinds that declare a class-like container, across the supported
// grammars.
var classKinds = map[string]bool{
	"class_declaration": true, // js/ts/java/c#
	"class_definition":  true, // python
	"class_specifier":   true, // c++
	"struct_specifier":  true, // c++
	"struct_item":       true, // rust
}

// Node kinds that count as members of a class body.
var memberKinds = map[string]bool{
	"method_definition":       true,
	"method_declaration":      true,
	"field_definition":        true,
	"field_declaration":       true,
	"public_field_definition": true,
	"property_declaration":    true,
	"function_definition":     true, // python methods
	"constructor_declaration": true,
}

// Function-like node kinds, used for method-level heuristics.
var functionKinds = map[string]bool{
	"function_declaration":    true,
	"function_definition":     true,
	"method_definition":       true,
	"method_declaration":      true,
	"arrow_function":          true,
	"function_expression":     true,
	"function_item":           true, // rust
	"constructor_declaration": true,
}

// Parameter list node kinds.
var parameterKinds = map[string]bool{
	"formal_parameters": true,
	"parameters":        true,
	"parameter_list":    true,
}

// Nesting node kinds counted for the deep-nesting heuristic.
var nestingKinds = map[string]bool{
	"if_statement":      true,
	"for_statement":     true,
	"for_in_statement":  true,
	"while_statement":   true,
	"switch_statement":  true,
	"try_statement":     true,
	"with_statement":    true,
	"foreach_statement": true,
	"match_expression":  true,
}

// Detect runs all heuristics over one file's tree and returns the
// findings. The tree is the same one the analyzer extracted symbols from,
// so the parser runs once per file regardless of how many detectors
// inspect it.
func (d *Detector) Detect(tree *types.SyntaxTree, path string, content []byte) []types.PatternFinding {
	if tree == nil || tree.Root() < 0 {
		return nil
	}

	var findings []types.PatternFinding

	tree.Walk(tree.Root(), func(idx int, node *types.SyntaxNode) bool {
		if classKinds[node.Kind] {
			findings = append(findings, d.inspectClass(tree, idx, path, content)...)
		}
		if functionKinds[node.Kind] {
			findings = append(findings, d.inspectFunction(tree, idx, path, content)...)
		}
		return true
	})

	return findings
}

// inspectClass runs class-level heuristics on one class-like node.
func (d *Detector) inspectClass(tree *types.SyntaxTree, classIdx int, path string, content []byte) []types.PatternFinding {
	var findings []types.PatternFinding

	node := tree.Node(classIdx)
	name := className(tree, classIdx, content)
	loc := types.Location{File: path, Line: node.Start.Line, Column: node.Start.Column}

	members := classMembers(tree, classIdx)

	if len(members) > d.thresholds.LargeClassMembers {
		findings = append(findings, types.PatternFinding{
			PatternID: "large-class",
			Category:  types.PatternCategoryAntiPattern,
			Severity:  types.SeverityWarning,
			Message:   fmt.Sprintf("class %s has %d members (threshold %d)", name, len(members), d.thresholds.LargeClassMembers),
			Locations: []types.Location{loc},
			Recommendation: "Split responsibilities into smaller collaborating types.",
		})
	}

	if d.looksLikeSingleton(tree, classIdx, members, name, content) {
		findings = append(findings, types.PatternFinding{
			PatternID: "singleton",
			Category:  types.PatternCategoryCreational,
			Severity:  types.SeverityInfo,
			Message:   fmt.Sprintf("class %s has a private constructor and a lazily-initializing static accessor", name),
			Locations: []types.Location{loc},
		})
	}

	if n := d.countFactoryMethods(tree, members, content); n >= d.thresholds.FactoryMethodCount {
		findings = append(findings, types.PatternFinding{
			PatternID: "factory",
			Category:  types.PatternCategoryCreational,
			Severity:  types.SeverityInfo,
			Message:   fmt.Sprintf("class %s exposes %d creator methods", name, n),
			Locations: []types.Location{loc},
		})
	}

	if d.looksLikeObserver(tree, members, content) {
		findings = append(findings, types.PatternFinding{
			PatternID: "observer",
			Category:  types.PatternCategoryBehavioral,
			Severity:  types.SeverityInfo,
			Message:   fmt.Sprintf("class %s pairs subscription and notification members", name),
			Locations: []types.Location{loc},
		})
	}

	if fanOut := callFanOut(tree, classIdx); fanOut > d.thresholds.GodObjectFanOut {
		findings = append(findings, types.PatternFinding{
			PatternID: "god-object",
			Category:  types.PatternCategoryAntiPattern,
			Severity:  types.SeverityWarning,
			Message:   fmt.Sprintf("class %s fans out to %d call sites (threshold %d)", name, fanOut, d.thresholds.GodObjectFanOut),
			Locations: []types.Location{loc},
			Recommendation: "Extract cohesive groups of behavior into dedicated types.",
		})
	}

	return findings
}

// inspectFunction runs method-level heuristics on one function-like node.
func (d *Detector) inspectFunction(tree *types.SyntaxTree, fnIdx int, path string, content []byte) []types.PatternFinding {
	var findings []types.PatternFinding

	node := tree.Node(fnIdx)
	loc := types.Location{File: path, Line: node.Start.Line, Column: node.Start.Column}

	lines := node.End.Line - node.Start.Line + 1
	if lines > d.thresholds.LongMethodLines {
		findings = append(findings, types.PatternFinding{
			PatternID: "long-method",
			Category:  types.PatternCategoryAntiPattern,
			Severity:  types.SeverityWarning,
			Message:   fmt.Sprintf("function spans %d lines (threshold %d)", lines, d.thresholds.LongMethodLines),
			Locations: []types.Location{loc},
			Recommendation: "Break the function into smaller named steps.",
		})
	}

	if params := parameterCount(tree, fnIdx); params > d.thresholds.LongParameterList {
		findings = append(findings, types.PatternFinding{
			PatternID: "long-parameter-list",
			Category:  types.PatternCategoryAntiPattern,
			Severity:  types.SeverityWarning,
			Message:   fmt.Sprintf("function takes %d parameters (threshold %d)", params, d.thresholds.LongParameterList),
			Locations: []types.Location{loc},
			Recommendation: "Group related parameters into a struct or options object.",
		})
	}

	if depth := nestingDepth(tree, fnIdx, 0); depth > d.thresholds.DeepNestingLevels {
		findings = append(findings, types.PatternFinding{
			PatternID: "deep-nesting",
			Category:  types.PatternCategoryAntiPattern,
			Severity:  types.SeverityWarning,
			Message:   fmt.Sprintf("function nests %d levels deep (threshold %d)", depth, d.thresholds.DeepNestingLevels),
			Locations: []types.Location{loc},
			Recommendation: "Use early returns or extract the inner levels.",
		})
	}

	return findings
}

// looksLikeSingleton checks the private-constructor + lazily-initializing
// static accessor motif.
func (d *Detector) looksLikeSingleton(tree *types.SyntaxTree, classIdx int, members []int, name string, content []byte) bool {
	privateCtor := false
	lazyAccessor := false

	for _, m := range members {
		text := tree.Text(m, content)
		memberName := memberName(tree, m, content)

		isCtor := memberName == "constructor" || memberName == "__init__" || (name != "" && memberName == name)
		if isCtor && strings.Contains(text, "private") {
			privateCtor = true
			continue
		}

		if strings.Contains(text, "static") &&
			(strings.Contains(text, "instance") || strings.Contains(text, "Instance")) &&
			strings.Contains(text, "new "+name) {
			lazyAccessor = true
		}
	}

	return privateCtor && lazyAccessor
}

// countFactoryMethods counts members whose names follow creator naming.
func (d *Detector) countFactoryMethods(tree *types.SyntaxTree, members []int, content []byte) int {
	count := 0
	for _, m := range members {
		name := strings.ToLower(memberName(tree, m, content))
		if strings.HasPrefix(name, "create") || strings.HasPrefix(name, "make") || strings.HasPrefix(name, "build") {
			count++
		}
	}
	return count
}

// looksLikeObserver checks for a subscription member paired with a
// notification member.
func (d *Detector) looksLikeObserver(tree *types.SyntaxTree, members []int, content []byte) bool {
	subscribe := false
	notify := false
	for _, m := range members {
		name := strings.ToLower(memberName(tree, m, content))
		switch {
		case strings.Contains(name, "subscribe"), strings.Contains(name, "addlistener"), strings.Contains(name, "attach"):
			subscribe = true
		case strings.Contains(name, "notify"), strings.Contains(name, "emit"), strings.Contains(name, "publish"):
			notify = true
		}
	}
	return subscribe && notify
}

// className extracts the declared name of a class-like node.
func className(tree *types.SyntaxTree, classIdx int, content []byte) string {
	for _, c := range tree.Node(classIdx).Children {
		kind := tree.Node(c).Kind
		if kind == "identifier" || kind == "type_identifier" || kind == "constant" {
			return tree.Text(c, content)
		}
	}
	return ""
}

// memberName extracts the declared name of a class member.
func memberName(tree *types.SyntaxTree, memberIdx int, content []byte) string {
	for _, c := range tree.Node(memberIdx).Children {
		kind := tree.Node(c).Kind
		switch kind {
		case "property_identifier", "identifier", "field_identifier", "name":
			return tree.Text(c, content)
		}
	}
	return ""
}

// classMembers collects the direct members of a class body.
func classMembers(tree *types.SyntaxTree, classIdx int) []int {
	var body int = -1
	for _, c := range tree.Node(classIdx).Children {
		kind := tree.Node(c).Kind
		if strings.Contains(kind, "body") || kind == "declaration_list" || kind == "block" {
			body = c
			break
		}
	}
	if body < 0 {
		return nil
	}

	var members []int
	for _, c := range tree.Node(body).Children {
		if memberKinds[tree.Node(c).Kind] {
			members = append(members, c)
		}
	}
	return members
}

// parameterCount counts named parameter children of a function's list.
func parameterCount(tree *types.SyntaxTree, fnIdx int) int {
	for _, c := range tree.Node(fnIdx).Children {
		if parameterKinds[tree.Node(c).Kind] {
			count := 0
			for _, pc := range tree.Node(c).Children {
				if tree.Node(pc).Named {
					count++
				}
			}
			return count
		}
	}
	return 0
}

// nestingDepth computes the deepest chain of nesting constructs below a
// node.
func nestingDepth(tree *types.SyntaxTree, idx, current int) int {
	node := tree.Node(idx)
	level := current
	if nestingKinds[node.Kind] {
		level++
	}
	max := level
	for _, c := range node.Children {
		if d := nestingDepth(tree, c, level); d > max {
			max = d
		}
	}
	return max
}

// callFanOut counts call expressions anywhere inside a class.
func callFanOut(tree *types.SyntaxTree, classIdx int) int {
	count := 0
	tree.Walk(classIdx, func(idx int, node *types.SyntaxNode) bool {
		if node.Kind == "call_expression" || node.Kind == "call" || node.Kind == "method_invocation" {
			count++
		}
		return true
	})
	return count
}
