package patterns

import (
	"fmt"
	"strings"
	"testing"

	"github.com/standardbeagle/codeatlas/internal/parser"
	"github.com/standardbeagle/codeatlas/internal/types"
)

func parseJS(t *testing.T, source string) (*types.SyntaxTree, []byte) {
	t.Helper()
	p := parser.NewTreeSitterParser()
	content := []byte(source)
	tree, err := p.Parse("/tmp/fixture.js", content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return tree, content
}

func classWithMembers(n int) string {
	var b strings.Builder
	b.WriteString("class Subject {\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "  method%d() { return %d; }\n", i, i)
	}
	b.WriteString("}\n")
	return b.String()
}

func findPattern(findings []types.PatternFinding, id string) *types.PatternFinding {
	for i := range findings {
		if findings[i].PatternID == id {
			return &findings[i]
		}
	}
	return nil
}

func TestDetect_LargeClass(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	tree, content := parseJS(t, classWithMembers(25))
	findings := d.Detect(tree, "/tmp/fixture.js", content)

	finding := findPattern(findings, "large-class")
	if finding == nil {
		t.Fatal("expected large-class finding for 25 members")
	}
	if finding.Severity != types.SeverityWarning {
		t.Errorf("expected warning severity, got %s", finding.Severity)
	}
	if finding.Category != types.PatternCategoryAntiPattern {
		t.Errorf("expected anti-pattern category, got %s", finding.Category)
	}
}

func TestDetect_SmallClassNotFlagged(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	tree, content := parseJS(t, classWithMembers(10))
	findings := d.Detect(tree, "/tmp/fixture.js", content)

	if findPattern(findings, "large-class") != nil {
		t.Error("10-member class must not be flagged large")
	}
}

func TestDetect_ThresholdIsAdjustable(t *testing.T) {
	th := DefaultThresholds()
	th.LargeClassMembers = 5
	d := NewDetector(th)

	tree, content := parseJS(t, classWithMembers(10))
	findings := d.Detect(tree, "/tmp/fixture.js", content)

	if findPattern(findings, "large-class") == nil {
		t.Error("lowered threshold should flag a 10-member class")
	}
}

func TestDetect_Singleton(t *testing.T) {
	src := `class Config {
  private constructor() {}
  static getInstance() {
    if (!Config.instance) {
      Config.instance = new Config();
    }
    return Config.instance;
  }
}
`
	p := parser.NewTreeSitterParser()
	content := []byte(src)
	tree, err := p.Parse("/tmp/config.ts", content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	d := NewDetector(DefaultThresholds())
	findings := d.Detect(tree, "/tmp/config.ts", content)

	finding := findPattern(findings, "singleton")
	if finding == nil {
		t.Fatal("expected singleton finding")
	}
	if finding.Category != types.PatternCategoryCreational {
		t.Errorf("expected creational category, got %s", finding.Category)
	}
}

func TestDetect_Observer(t *testing.T) {
	src := `class EventBus {
  subscribe(fn) { this.listeners.push(fn); }
  notifyAll(evt) { this.listeners.forEach(l => l(evt)); }
}
`
	tree, content := parseJS(t, src)
	d := NewDetector(DefaultThresholds())
	findings := d.Detect(tree, "/tmp/fixture.js", content)

	if findPattern(findings, "observer") == nil {
		t.Error("expected observer finding for subscribe/notify pair")
	}
}

func TestDetect_LongParameterList(t *testing.T) {
	src := "function wide(a, b, c, d, e, f, g) { return a; }\n"
	tree, content := parseJS(t, src)

	d := NewDetector(DefaultThresholds())
	findings := d.Detect(tree, "/tmp/fixture.js", content)

	if findPattern(findings, "long-parameter-list") == nil {
		t.Error("expected long-parameter-list finding for 7 parameters")
	}
}

func TestDetect_EmptyTree(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	if got := d.Detect(&types.SyntaxTree{}, "/tmp/empty.js", nil); got != nil {
		t.Errorf("expected no findings for empty tree, got %d", len(got))
	}
}
