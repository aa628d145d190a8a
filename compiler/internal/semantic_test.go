package internal

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

// analyzeSource parses, resolves and analyzes a class whose body is members.
func analyzeSource(t *testing.T, members string) error {
	class := parseSource(t, "class S {\n"+members+"\n}")
	err := Resolve(class)
	require.Nil(t, err, members)
	return Analyze(class)
}

func TestAnalyze_Accepted(t *testing.T) {
	testData := []struct {
		members string
	}{
		{members: "public void f() { }"},
		{members: "public int f() { return 1; }"},
		{members: "int x; public void f() { x = x + 1; }"},
		{members: "final int K = 3; public int f() { return K * 2; }"},
		{members: "public int f(int a) { if (a < 1) { return 1; } else { return 2; } }"},
		{members: "public int f(int a) { while (a) { return 1; } }"},
		{members: "public int f(int a) { int y; if (a) { y = 1; } else { y = 2; } return y; }"},
		{members: "public int f(int a) { int y; y = a; while (y > 0) { y = y - 1; } return y; }"},
		{members: "public int f(int a) { return f(a - 1) + f(a / 2); } public void g() { f(1); }"},
		{members: "public void f(int a) { if (a == (a < 2)) { return; } a = 1; }"},
		{members: "public int f(int a) { if (a) { return 1; } return 0; }"},
	}
	for _, data := range testData {
		assert.Nil(t, analyzeSource(t, data.members), data.members)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	testData := []struct {
		members string
		kind    ErrorKind
	}{
		{members: "public void g() { } public void f() { int x; x = g(); }", kind: InvalidOperation},
		{members: "public void g() { } public int f() { return g() + 1; }", kind: InvalidOperation},
		{members: "public void g() { } public void f() { if (g()) { } }", kind: InvalidOperation},
		{members: "public void g() { } public void f() { while (1 < g()) { } }", kind: InvalidOperation},
		{members: "public void g() { } public void h(int a) { } public void f() { h(g()); }", kind: ArgumentMustYieldValue},
		{members: "final int K = 1; public void f() { K = 2; }", kind: AssignToFinal},
		{members: "public int f() { return; }", kind: MissingReturnValue},
		{members: "public void g() { } public int f() { return g(); }", kind: MissingReturnValue},
		{members: "public void f() { return 1; }", kind: UnexpectedReturnValue},
		{members: "int x; public int f() { return 1; x = 2; }", kind: UnreachableCode},
		{members: "public void f(int a) { while (a) { return; a = 1; } }", kind: UnreachableCode},
		{members: "public void f(int a) { if (a) { return; } else { return; } a = 1; }", kind: UnreachableCode},
		{members: "public int f(int a) { if (a) { return 1; } }", kind: MissingReturn},
		{members: "public int f(int a) { while (a) { a = a - 1; } }", kind: MissingReturn},
		{members: "public int f() { }", kind: MissingReturn},
		{members: "public int f() { int y; return y; }", kind: MaybeUninitialized},
		{members: "public int f(int a) { int y; if (a) { y = 1; } return y; }", kind: MaybeUninitialized},
		{members: "public int f(int a) { int y; if (a) { } else { y = 1; } return y; }", kind: MaybeUninitialized},
		{members: "public int f(int a) { int y; while (a) { y = 1; } return y; }", kind: MaybeUninitialized},
		{members: "public void f() { int y; y = y + 1; }", kind: MaybeUninitialized},
		{members: "public void f() { int y; while (y) { y = 1; } }", kind: MaybeUninitialized},
		{members: "public void g(int a) { } public void f() { int y; g(y); }", kind: MaybeUninitialized},
	}
	for _, data := range testData {
		err := analyzeSource(t, data.members)
		assert.True(t, IsKind(err, data.kind), "%s: %v", data.members, err)
	}
}

func TestAnalyze_ErrorOrder(t *testing.T) {
	// Expression errors come before flow errors, flow errors before definite assignment.
	testData := []struct {
		members string
		kind    ErrorKind
	}{
		{members: "final int K = 1; public int f() { int y; K = y; }", kind: AssignToFinal},
		{members: "public int f() { int y; return y; y = 1; }", kind: UnreachableCode},
		{members: "public int f(int a) { int y; if (a) { return y; } }", kind: MissingReturn},
	}
	for _, data := range testData {
		err := analyzeSource(t, data.members)
		assert.True(t, IsKind(err, data.kind), "%s: %v", data.members, err)
	}
}

func TestAnalyze_ErrorDetails(t *testing.T) {
	err := analyzeSource(t, "public int f(int a) {\n int count;\n if (a) { count = 1; }\n return count;\n}")
	require.NotNil(t, err)
	compileErr := err.(*CompileError)
	assert.Equal(t, MaybeUninitialized, compileErr.Kind)
	assert.Equal(t, "count", compileErr.Name)
	assert.Equal(t, Position{Line: 5, Column: 9}, compileErr.Pos)

	err = analyzeSource(t, "int x;\npublic int f() {\n return 1;\n x = 2;\n}")
	require.NotNil(t, err)
	assert.Equal(t, Position{Line: 5, Column: 2}, err.(*CompileError).Pos)
}

func TestControlFlow(t *testing.T) {
	testData := []struct {
		body        string
		terminating bool
		completes   bool
	}{
		{body: "", terminating: false, completes: true},
		{body: "a = 1;", terminating: false, completes: true},
		{body: "return;", terminating: true, completes: false},
		{body: "if (a) { return; }", terminating: false, completes: true},
		{body: "if (a) { return; } else { return; }", terminating: true, completes: false},
		{body: "if (a) { return; } else { a = 1; }", terminating: false, completes: true},
		{body: "while (a) { return; }", terminating: true, completes: true},
		{body: "while (a) { a = 1; }", terminating: false, completes: true},
		{body: "while (a) { } return;", terminating: true, completes: false},
	}
	for _, data := range testData {
		parser := newTestParser(t, "{ "+data.body+" }")
		leftBrace, _ := parser.getCurrentToken()
		parser.stepForward()
		seq, err := parser.parseStatements(leftBrace)
		require.Nil(t, err, data.body)
		assert.Equal(t, data.terminating, isTerminatingSeq(seq), data.body)
		assert.Equal(t, data.completes, canCompleteNormally(seq), data.body)
	}
}

func TestCheckReachability_BeforeResolve(t *testing.T) {
	class := parseSource(t, "class A { public int f() { return 1; undefined = 2; } }")
	err := CheckReachability(class)
	assert.True(t, IsKind(err, UnreachableCode), "%v", err)
	assert.True(t, strings.Contains(err.Error(), "unreachable"))
}
