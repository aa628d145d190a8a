package internal

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaobogaga/javasst/classfile"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var classHeader = []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x00, 0x00, 0x3B}

func writeSource(t *testing.T, dir, src string) string {
	path := filepath.Join(dir, "Source.javasst")
	require.Nil(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestCompile_EmptyClass(t *testing.T) {
	dir := t.TempDir()
	classPath, err := Compile(writeSource(t, dir, "class E {}"), Options{OutputDir: dir})
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(dir, "E.class"), classPath)

	data, err := os.ReadFile(classPath)
	require.Nil(t, err)
	assert.Equal(t, classHeader, data[:8])
	file, err := classfile.Parse(data)
	require.Nil(t, err)
	require.Len(t, file.Pool, 9)
	assert.Equal(t, classfile.Constant{Tag: classfile.TagUtf8, Utf8: "E"}, file.Pool[0])
	assert.Equal(t, classfile.Constant{Tag: classfile.TagClass, Index1: 1}, file.Pool[1])
	assert.Equal(t, classfile.Constant{Tag: classfile.TagUtf8, Utf8: "java/lang/Object"}, file.Pool[2])
	assert.Equal(t, classfile.AccPublic, file.AccessFlags)
	assert.Len(t, file.Fields, 0)
	require.Len(t, file.Methods, 1)
	name, descriptor, err := file.MemberName(file.Methods[0])
	require.Nil(t, err)
	assert.Equal(t, "<init>", name)
	assert.Equal(t, "()V", descriptor)
	code, err := file.MethodCode(file.Methods[0])
	require.Nil(t, err)
	assert.Equal(t, []classfile.Opcode{classfile.ALoad0, classfile.InvokeSpecial, classfile.Return}, opcodes(t, code))
	assert.Nil(t, classfile.Verify(file))
}

func TestCompile_ConstantField(t *testing.T) {
	_, file := buildClass(t, "class C { final int K = 3+4; public int f(){ return K; } }")
	require.Len(t, file.Fields, 1)
	field := file.Fields[0]
	assert.Equal(t, classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, field.AccessFlags)
	attr, ok := file.Attribute(field, classfile.ConstantValueAttr)
	require.True(t, ok)
	c, err := file.Constant(uint16(attr.Data[0])<<8 | uint16(attr.Data[1]))
	require.Nil(t, err)
	assert.Equal(t, int32(7), c.Int)

	method, ok := file.FindMethod("f", "()I")
	require.True(t, ok)
	assert.Equal(t, classfile.AccPublic|classfile.AccStatic, method.AccessFlags)
	assert.Equal(t, []classfile.Opcode{classfile.BiPush, classfile.IReturn}, opcodes(t, methodCode(t, file, "f", "()I")))
}

func TestCompile_Rejected(t *testing.T) {
	testData := []struct {
		src  string
		kind ErrorKind
		name string
		pos  Position
	}{
		{
			src:  "class C { public int m(){ int x; return x; } }",
			kind: MaybeUninitialized, name: "x", pos: Position{Line: 1, Column: 41},
		},
		{
			src:  "class C { public int m(){ return 1; x = 2; } }",
			kind: UnreachableCode, pos: Position{Line: 1, Column: 37},
		},
		{
			src:  "class C { public int m(){ return y; } }",
			kind: UndefinedName, name: "y", pos: Position{Line: 1, Column: 34},
		},
		{
			src:  "class C { public int m( { } }",
			kind: UnexpectedToken, pos: Position{Line: 1, Column: 25},
		},
	}
	for _, data := range testData {
		dir := t.TempDir()
		_, err := Compile(writeSource(t, dir, data.src), Options{OutputDir: dir})
		require.NotNil(t, err, data.src)
		compileErr, ok := err.(*CompileError)
		require.True(t, ok, data.src)
		assert.Equal(t, data.kind, compileErr.Kind, data.src)
		assert.Equal(t, data.name, compileErr.Name, data.src)
		assert.Equal(t, data.pos, compileErr.Pos, data.src)
		_, statErr := os.Stat(filepath.Join(dir, "C.class"))
		assert.True(t, os.IsNotExist(statErr), data.src)
	}
}

func TestCompile_DotAndLogger(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	opts := Options{OutputDir: dir, Dot: true, Logger: log.New(&buf, "", 0)}
	_, err := Compile(writeSource(t, dir, "class G { int x; public void f() { x = 1; } }"), opts)
	require.Nil(t, err)
	dot, err := os.ReadFile(filepath.Join(dir, "G.dot"))
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(dot), "digraph \"G\" {"))
	assert.Contains(t, buf.String(), "compiler: start name resolution")
	assert.Contains(t, buf.String(), "compiler: write class file to")
}

func TestCompile_MissingFile(t *testing.T) {
	_, err := Compile(filepath.Join(t.TempDir(), "missing.javasst"), Options{})
	require.NotNil(t, err)
	_, ok := KindOf(err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// programGenerator writes random programs that the compiler accepts. Every local is assigned
// before the first statement that may read it, and a statement that can not complete
// normally always ends its block.
type programGenerator struct {
	rnd    *rand.Rand
	consts []string
	vars   []string
	procs  []genProc
	// scope of the procedure being generated
	proc   genProc
	params []string
	locals []string
}

type genProc struct {
	name  string
	arity int
	isInt bool
}

var genLiterals = []string{"0", "1", "7", "127", "128", "255", "32767", "32768", "40000", "2147483647"}
var genOperators = []string{"+", "-", "*", "/", "<", "<=", ">", ">=", "=="}

func generateProgram(seed int64) string {
	g := &programGenerator{rnd: rand.New(rand.NewSource(seed))}
	return g.program()
}

func (g *programGenerator) pick(items []string) string {
	return items[g.rnd.Intn(len(items))]
}

func (g *programGenerator) program() string {
	for i := g.rnd.Intn(3); i > 0; i-- {
		g.consts = append(g.consts, fmt.Sprintf("K%d", len(g.consts)))
	}
	for i := g.rnd.Intn(3); i > 0; i-- {
		g.vars = append(g.vars, fmt.Sprintf("x%d", len(g.vars)))
	}
	for i := 1 + g.rnd.Intn(3); i > 0; i-- {
		g.procs = append(g.procs, genProc{
			name:  fmt.Sprintf("p%d", len(g.procs)),
			arity: g.rnd.Intn(3),
			isInt: g.rnd.Intn(2) == 0,
		})
	}
	var sb strings.Builder
	sb.WriteString("class Gen {\n")
	for _, name := range g.consts {
		fmt.Fprintf(&sb, "\tfinal int %s = %s;\n", name, g.constExpr(2))
	}
	for _, name := range g.vars {
		fmt.Fprintf(&sb, "\tint %s;\n", name)
	}
	for _, proc := range g.procs {
		sb.WriteString(g.procedure(proc))
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (g *programGenerator) constExpr(depth int) string {
	if depth == 0 || g.rnd.Intn(2) == 0 {
		return g.pick(genLiterals)
	}
	op := g.pick([]string{"+", "-", "*", "<", "=="})
	return "(" + g.constExpr(depth-1) + " " + op + " " + g.constExpr(depth-1) + ")"
}

func (g *programGenerator) procedure(proc genProc) string {
	g.proc, g.params, g.locals = proc, nil, nil
	var sb strings.Builder
	params := make([]string, proc.arity)
	for i := range params {
		g.params = append(g.params, fmt.Sprintf("a%d", i))
		params[i] = "int " + g.params[i]
	}
	returnType := "void"
	if proc.isInt {
		returnType = "int"
	}
	fmt.Fprintf(&sb, "\tpublic %s %s(%s) {\n", returnType, proc.name, strings.Join(params, ", "))
	nLocals := g.rnd.Intn(3)
	for i := 0; i < nLocals; i++ {
		fmt.Fprintf(&sb, "\t\tint v%d;\n", i)
	}
	for i := 0; i < nLocals; i++ {
		fmt.Fprintf(&sb, "\t\tv%d = %s;\n", i, g.expr(2))
		g.locals = append(g.locals, fmt.Sprintf("v%d", i))
	}
	body, terminating := g.statements(3)
	sb.WriteString(body)
	if !terminating && proc.isInt {
		sb.WriteString("return " + g.expr(2) + ";\n")
	}
	sb.WriteString("\t}\n")
	return sb.String()
}

func (g *programGenerator) statements(depth int) (string, bool) {
	var sb strings.Builder
	for i := g.rnd.Intn(4); i > 0; i-- {
		stmt, terminating := g.statement(depth)
		sb.WriteString(stmt)
		if terminating {
			return sb.String(), true
		}
	}
	if g.rnd.Intn(4) == 0 {
		sb.WriteString(g.returnStmt())
		return sb.String(), true
	}
	return sb.String(), false
}

func (g *programGenerator) statement(depth int) (string, bool) {
	targets := append(append(append([]string{}, g.params...), g.locals...), g.vars...)
	choice := g.rnd.Intn(4)
	if depth == 0 {
		choice = g.rnd.Intn(2)
	}
	switch {
	case choice == 0 && len(targets) > 0:
		return g.pick(targets) + " = " + g.expr(2) + ";\n", false
	case choice <= 1:
		proc := g.procs[g.rnd.Intn(len(g.procs))]
		return g.call(proc, 2) + ";\n", false
	case choice == 2:
		then, thenTerminating := g.statements(depth - 1)
		if g.rnd.Intn(3) == 0 {
			return "if (" + g.expr(2) + ") {\n" + then + "}\n", false
		}
		otherwise, elseTerminating := g.statements(depth - 1)
		return "if (" + g.expr(2) + ") {\n" + then + "} else {\n" + otherwise + "}\n", thenTerminating && elseTerminating
	}
	body, terminating := g.statements(depth - 1)
	return "while (" + g.expr(2) + ") {\n" + body + "}\n", terminating
}

func (g *programGenerator) returnStmt() string {
	if g.proc.isInt {
		return "return " + g.expr(2) + ";\n"
	}
	return "return;\n"
}

func (g *programGenerator) call(proc genProc, depth int) string {
	args := make([]string, proc.arity)
	for i := range args {
		args[i] = g.expr(depth - 1)
	}
	return proc.name + "(" + strings.Join(args, ", ") + ")"
}

func (g *programGenerator) expr(depth int) string {
	values := append(append(append(append([]string{}, g.consts...), g.vars...), g.params...), g.locals...)
	var intProcs []genProc
	for _, proc := range g.procs {
		if proc.isInt {
			intProcs = append(intProcs, proc)
		}
	}
	choice := g.rnd.Intn(4)
	if depth <= 0 {
		choice = g.rnd.Intn(2)
	}
	switch {
	case choice == 1 && len(values) > 0:
		return g.pick(values)
	case choice == 2 && len(intProcs) > 0:
		return g.call(intProcs[g.rnd.Intn(len(intProcs))], depth)
	case choice == 3:
		return "(" + g.expr(depth-1) + " " + g.pick(genOperators) + " " + g.expr(depth-1) + ")"
	}
	return g.pick(genLiterals)
}

// pathEnds follows every control flow path of a method from pc 0 and returns the
// instructions the paths end with. A path running off the end of the code is an error.
func pathEnds(code []byte) ([]classfile.Opcode, error) {
	instructions, err := classfile.Decode(code)
	if err != nil {
		return nil, err
	}
	byPC := map[int]classfile.Instruction{}
	for _, ins := range instructions {
		byPC[ins.PC] = ins
	}
	var ends []classfile.Opcode
	visited := map[int]bool{}
	work := []int{0}
	for len(work) > 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]
		if visited[pc] {
			continue
		}
		visited[pc] = true
		ins, ok := byPC[pc]
		if !ok {
			return nil, fmt.Errorf("pc %d is not an instruction", pc)
		}
		switch {
		case ins.Op == classfile.Return || ins.Op == classfile.IReturn:
			ends = append(ends, ins.Op)
			continue
		case ins.Op == classfile.Goto:
			work = append(work, ins.Target())
			continue
		case ins.Op.IsBranch():
			work = append(work, ins.Target())
		}
		next := pc + ins.Len
		if next >= len(code) {
			return nil, fmt.Errorf("%s at pc %d falls off the end of the code", ins.Op, pc)
		}
		work = append(work, next)
	}
	return ends, nil
}

func TestCompile_RandomPrograms(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		src := generateProgram(seed)
		_, file, err := Build(strings.NewReader(src), nil)
		require.Nil(t, err, src)

		data, err := file.Bytes()
		require.Nil(t, err, src)
		assert.Equal(t, classHeader, data[:8], src)
		parsed, err := classfile.Parse(data)
		require.Nil(t, err, src)
		encoded, err := parsed.Bytes()
		require.Nil(t, err)
		assert.Equal(t, data, encoded, src)
		assert.Nil(t, classfile.Verify(parsed), src)

		for _, method := range parsed.Methods {
			name, descriptor, err := parsed.MemberName(method)
			require.Nil(t, err)
			code, err := parsed.MethodCode(method)
			require.Nil(t, err)
			ends, err := pathEnds(code.Code)
			require.Nil(t, err, "%s%s\n%s", name, descriptor, src)
			expected := classfile.Return
			if strings.HasSuffix(descriptor, "I") {
				expected = classfile.IReturn
			}
			for _, op := range ends {
				assert.Equal(t, expected, op, "%s%s\n%s", name, descriptor, src)
			}
		}
	}
}
