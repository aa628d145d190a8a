package internal

import (
	"strings"
)

// In this file, we defined the ast of JavaSST. A source file holds exactly one class, the class
// holds constants, variables and procedures, and every procedure owns a statement tree.
// Declarations are stored once in the class and referred to by DeclID, so the tree never points
// back into the symbol tables directly.

// Type is the type of a value declaration or the return type of a procedure.
type Type int

const (
	VoidType Type = iota // only for procedure return types
	IntType
)

func (t Type) String() string {
	if t == IntType {
		return "int"
	}
	return "void"
}

// Descriptor returns the JVM field descriptor of t.
func (t Type) Descriptor() string {
	if t == IntType {
		return "I"
	}
	return "V"
}

// DeclID indexes the declaration arena of a Class. The zero value is not a declaration
// and marks an identifier or call that has not been resolved yet.
type DeclID int

const NoDecl DeclID = 0

// TableID indexes the symbol tables of a Class. The zero value means no table.
type TableID int

const NoTable TableID = 0

type DeclKind int

const (
	ConstantDecl  DeclKind = iota // final int K = 1;
	VariableDecl                  // int x;
	ParameterDecl                 // int p in a parameter list
	ProcedureDecl                 // public int f(int p) { ... }
)

func (k DeclKind) String() string {
	switch k {
	case ConstantDecl:
		return "constant"
	case VariableDecl:
		return "variable"
	case ParameterDecl:
		return "parameter"
	}
	return "procedure"
}

type Decl struct {
	Kind DeclKind
	Name string
	// Type is int for values, the return type for procedures.
	Type Type
	// Value is the evaluated initializer of a constant.
	Value int32
	// Params, Locals and Body are set for procedures only. Locals begins with
	// the parameters, in order, followed by the local variables.
	Params []DeclID
	Locals TableID
	Body   *SeqNode
	// Table is the symbol table the declaration was declared in.
	Table TableID
	Pos   Position
}

// IsValue reports whether an identifier may refer to d.
func (d *Decl) IsValue() bool {
	return d.Kind != ProcedureDecl
}

func (d *Decl) Arity() int {
	return len(d.Params)
}

// Descriptor returns the method descriptor of a procedure, like (II)I.
func (d *Decl) Descriptor() string {
	return "(" + strings.Repeat("I", len(d.Params)) + ")" + d.Type.Descriptor()
}

// Node is a statement or an expression. The variants are ConstNode, IdentNode, BinaryNode,
// UnaryNode, CallNode, IfNode, WhileNode and SeqNode.
type Node interface {
	Position() Position
	node()
}

type ConstNode struct {
	Value int32
	Pos   Position
}

type IdentNode struct {
	Name string
	Decl DeclID // set by the resolver
	Pos  Position
}

type BinaryOp int

const (
	AssignOp BinaryOp = iota // =
	EqOp                     // ==
	LtOp                     // <
	LeOp                     // <=
	GtOp                     // >
	GeOp                     // >=
	AddOp                    // +
	SubOp                    // -
	MulOp                    // *
	DivOp                    // /
)

var binaryOpNames = [...]string{"=", "==", "<", "<=", ">", ">=", "+", "-", "*", "/"}

func (op BinaryOp) String() string {
	return binaryOpNames[op]
}

func (op BinaryOp) IsComparison() bool {
	return op >= EqOp && op <= GeOp
}

func (op BinaryOp) IsArithmetic() bool {
	return op >= AddOp && op <= DivOp
}

type BinaryNode struct {
	Op    BinaryOp
	Left  Node
	Right Node
	Pos   Position
}

type UnaryOp int

const (
	ReturnOp UnaryOp = iota // return
)

// UnaryNode is a return statement. Operand is nil for a bare return.
type UnaryNode struct {
	Op      UnaryOp
	Operand Node
	Pos     Position
}

type CallNode struct {
	Name string
	Args []Node
	Proc DeclID // set by the resolver
	Pos  Position
}

type IfNode struct {
	Cond Node
	Then *SeqNode
	Else *SeqNode // empty, not nil, when there is no else branch
	Pos  Position
}

type WhileNode struct {
	Cond Node
	Body *SeqNode
	Pos  Position
}

type SeqNode struct {
	Stmts []Node
	Pos   Position
}

func (n *ConstNode) Position() Position  { return n.Pos }
func (n *IdentNode) Position() Position  { return n.Pos }
func (n *BinaryNode) Position() Position { return n.Pos }
func (n *UnaryNode) Position() Position  { return n.Pos }
func (n *CallNode) Position() Position   { return n.Pos }
func (n *IfNode) Position() Position     { return n.Pos }
func (n *WhileNode) Position() Position  { return n.Pos }

// Position of a sequence is the position of its first statement when there is one.
func (n *SeqNode) Position() Position {
	if len(n.Stmts) > 0 {
		return n.Stmts[0].Position()
	}
	return n.Pos
}

func (*ConstNode) node()  {}
func (*IdentNode) node()  {}
func (*BinaryNode) node() {}
func (*UnaryNode) node()  {}
func (*CallNode) node()   {}
func (*IfNode) node()     {}
func (*WhileNode) node()  {}
func (*SeqNode) node()    {}

// isReturn reports whether node is a return statement.
func isReturn(node Node) bool {
	unary, ok := node.(*UnaryNode)
	return ok && unary.Op == ReturnOp
}

// Inspect walks the tree rooted at node in depth first order. fn is called for every node;
// children are skipped when fn returns false.
func Inspect(node Node, fn func(Node) bool) {
	if seq, ok := node.(*SeqNode); node == nil || (ok && seq == nil) {
		return
	}
	if !fn(node) {
		return
	}
	switch n := node.(type) {
	case *BinaryNode:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	case *UnaryNode:
		Inspect(n.Operand, fn)
	case *CallNode:
		for _, arg := range n.Args {
			Inspect(arg, fn)
		}
	case *IfNode:
		Inspect(n.Cond, fn)
		Inspect(n.Then, fn)
		Inspect(n.Else, fn)
	case *WhileNode:
		Inspect(n.Cond, fn)
		Inspect(n.Body, fn)
	case *SeqNode:
		for _, stmt := range n.Stmts {
			Inspect(stmt, fn)
		}
	}
}
