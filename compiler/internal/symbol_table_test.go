package internal

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestClass_Declare(t *testing.T) {
	class := NewClass("A", Position{Line: 1, Column: 7})
	x, err := class.Declare(class.Global, Decl{Kind: VariableDecl, Name: "x", Type: IntType})
	require.Nil(t, err)
	assert.Equal(t, DeclID(1), x)
	assert.Equal(t, class.Global, class.Decl(x).Table)

	_, err = class.Declare(class.Global, Decl{Kind: ConstantDecl, Name: "x", Type: IntType})
	assert.True(t, IsKind(err, Redefinition))

	// A procedure and a value may share a name.
	f0, err := class.Declare(class.Global, Decl{Kind: ProcedureDecl, Name: "x", Type: VoidType})
	require.Nil(t, err)
	f1, err := class.Declare(class.Global, Decl{Kind: ProcedureDecl, Name: "x", Type: IntType, Params: make([]DeclID, 1)})
	require.Nil(t, err)
	_, err = class.Declare(class.Global, Decl{Kind: ProcedureDecl, Name: "x", Type: IntType})
	assert.True(t, IsKind(err, Redefinition))

	assert.Equal(t, []DeclID{x, f0, f1}, class.Members())
	assert.Equal(t, []DeclID{f0, f1}, class.Procedures())
	assert.Equal(t, 3, class.NumDecls())
}

func TestClass_Lookup(t *testing.T) {
	class := NewClass("A", Position{})
	k, _ := class.Declare(class.Global, Decl{Kind: ConstantDecl, Name: "k", Value: 3})
	v, _ := class.Declare(class.Global, Decl{Kind: VariableDecl, Name: "v"})
	f, _ := class.Declare(class.Global, Decl{Kind: ProcedureDecl, Name: "f", Params: make([]DeclID, 1)})
	locals := class.NewTable(class.Global, f)
	class.Decl(f).Locals = locals
	p, _ := class.Declare(locals, Decl{Kind: ParameterDecl, Name: "v"})
	class.Decl(f).Params[0] = p
	l, _ := class.Declare(locals, Decl{Kind: VariableDecl, Name: "l"})

	testData := []struct {
		table    TableID
		name     string
		expected DeclID
	}{
		{table: locals, name: "v", expected: p},
		{table: locals, name: "k", expected: k},
		{table: locals, name: "l", expected: l},
		{table: class.Global, name: "v", expected: v},
		{table: class.Global, name: "l", expected: NoDecl},
		{table: locals, name: "f", expected: NoDecl},
	}
	for _, data := range testData {
		assert.Equal(t, data.expected, class.LookupValue(data.table, data.name), data.name)
	}
	assert.Equal(t, f, class.LookupProcedure(locals, "f", 1))
	assert.Equal(t, NoDecl, class.LookupProcedure(locals, "f", 0))
	assert.Equal(t, NoDecl, class.LookupProcedure(locals, "k", 0))

	assert.Equal(t, []DeclID{l}, class.LocalVariables(f))
	assert.Equal(t, []DeclID{k}, class.Constants())
	assert.True(t, class.IsLocal(p))
	assert.True(t, class.IsLocal(l))
	assert.False(t, class.IsLocal(v))
	assert.False(t, class.IsLocal(k))
}

func TestDecl_Descriptor(t *testing.T) {
	testData := []struct {
		decl     Decl
		expected string
	}{
		{decl: Decl{Kind: ProcedureDecl, Type: VoidType}, expected: "()V"},
		{decl: Decl{Kind: ProcedureDecl, Type: IntType}, expected: "()I"},
		{decl: Decl{Kind: ProcedureDecl, Type: IntType, Params: make([]DeclID, 3)}, expected: "(III)I"},
		{decl: Decl{Kind: ProcedureDecl, Type: VoidType, Params: make([]DeclID, 1)}, expected: "(I)V"},
	}
	for _, data := range testData {
		assert.Equal(t, data.expected, data.decl.Descriptor())
	}
}
