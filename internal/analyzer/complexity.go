package analyzer

import (
	"math"
	"strings"

	"github.com/standardbeagle/codeatlas/internal/types"
)

// computeMetrics turns the walk's raw counts into the file's complexity
// metrics.
//
// Cyclomatic complexity starts at 1 and adds 1 per branching construct.
// Cognitive complexity mirrors the branch count and adds 1 per
// short-circuit logical operator. Halstead metrics come from the
// simplified operator/operand tokenization. The maintainability index is
// clamp(0, 100, 171 - 5.2*ln(vocab+1) - 0.23*ln(cc+1) - 16.2*ln(loc+1)).
func computeMetrics(ex *extraction, content []byte) types.ComplexityMetrics {
	loc, total := countLines(content)

	cyclomatic := 1 + ex.branches
	cognitive := ex.branches + ex.shortCircuits

	halstead := computeHalstead(ex)

	vocab := float64(halstead.Vocabulary)
	mi := 171 - 5.2*math.Log(vocab+1) - 0.23*math.Log(float64(cyclomatic)+1) - 16.2*math.Log(float64(loc)+1)
	mi = math.Max(0, math.Min(100, mi))

	return types.ComplexityMetrics{
		LinesOfCode:     loc,
		LinesTotal:      total,
		Cyclomatic:      cyclomatic,
		Cognitive:       cognitive,
		Halstead:        halstead,
		Maintainability: mi,
	}
}

func computeHalstead(ex *extraction) types.HalsteadMetrics {
	n1 := len(ex.operators)
	n2 := len(ex.operands)
	bigN1 := ex.operatorTotal
	bigN2 := ex.operandTotal

	vocabulary := n1 + n2
	length := bigN1 + bigN2

	var volume, difficulty float64
	if vocabulary > 0 {
		volume = float64(length) * math.Log2(float64(vocabulary))
	}
	if n2 > 0 {
		difficulty = float64(n1) / 2 * float64(bigN2) / float64(n2)
	}
	effort := difficulty * volume
	bugs := volume / 3000

	return types.HalsteadMetrics{
		DistinctOperators: n1,
		DistinctOperands:  n2,
		TotalOperators:    bigN1,
		TotalOperands:     bigN2,
		Vocabulary:        vocabulary,
		Length:            length,
		Volume:            volume,
		Difficulty:        difficulty,
		Effort:            effort,
		Bugs:              bugs,
	}
}

// countLines returns (non-blank lines, total lines).
func countLines(content []byte) (loc, total int) {
	if len(content) == 0 {
		return 0, 0
	}
	lines := strings.Split(string(content), "\n")
	total = len(lines)
	if lines[total-1] == "" {
		total--
	}
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			loc++
		}
	}
	return loc, total
}
