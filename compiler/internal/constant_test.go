package internal

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
)

func TestEvalConstant(t *testing.T) {
	testData := []struct {
		content  string
		expected int32
	}{
		{content: "42", expected: 42},
		{content: "1 + 2 * 3", expected: 7},
		{content: "(1 + 2) * 3", expected: 9},
		{content: "10 - 4 - 3", expected: 3},
		{content: "100 / 7 / 2", expected: 7},
		{content: "0 - 7 / 2", expected: -3},
		{content: "2147483647 + 1", expected: math.MinInt32},
		{content: "0 - 2147483647 - 1", expected: math.MinInt32},
		{content: "(0 - 2147483647 - 1) / (0 - 1)", expected: math.MinInt32},
		{content: "65536 * 65536", expected: 0},
		{content: "1 < 2", expected: 1},
		{content: "2 <= 1", expected: 0},
		{content: "3 == 1 + 2", expected: 1},
		{content: "(1 > 2) + 5", expected: 5},
		{content: "4 >= 4", expected: 1},
	}
	for _, data := range testData {
		parser := newTestParser(t, data.content)
		expr, err := parser.parseExpression()
		require.Nil(t, err, data.content)
		value, err := EvalConstant(expr)
		assert.Nil(t, err, data.content)
		assert.Equal(t, data.expected, value, data.content)
	}
}

func TestEvalConstantErrors(t *testing.T) {
	testData := []struct {
		content string
		kind    ErrorKind
	}{
		{content: "x", kind: NonConstantInitializer},
		{content: "1 + x", kind: NonConstantInitializer},
		{content: "f(1)", kind: NonConstantInitializer},
		{content: "1 / 0", kind: ConstantDivisionByZero},
		{content: "1 / (2 - 2)", kind: ConstantDivisionByZero},
	}
	for _, data := range testData {
		parser := newTestParser(t, data.content)
		expr, err := parser.parseExpression()
		require.Nil(t, err, data.content)
		_, err = EvalConstant(expr)
		assert.True(t, IsKind(err, data.kind), "%s: %v", data.content, err)
	}
	_, err := EvalConstant(&BinaryNode{Op: AssignOp, Left: &IdentNode{Name: "x"}, Right: &ConstNode{Value: 1}})
	assert.True(t, IsKind(err, NonConstantInitializer))
}
