package internal

import (
	"fmt"
	"math"
	"strings"
)

// Print renders a class back to source. Constants are written with their evaluated value and
// every binary operation nested in another one is parenthesized, so parsing the output
// yields the same declarations in the same order and the same tree shapes.
func Print(class *Class) string {
	p := &printer{class: class}
	p.printf("class %s {\n", class.Name)
	for _, id := range class.Members() {
		decl := class.Decl(id)
		switch decl.Kind {
		case ConstantDecl:
			p.printf("\tfinal int %s = %s;\n", decl.Name, literal(decl.Value, false))
		case VariableDecl:
			p.printf("\tint %s;\n", decl.Name)
		}
	}
	for _, id := range class.Procedures() {
		p.printProcedure(id)
	}
	p.printf("}\n")
	return p.buf.String()
}

type printer struct {
	class *Class
	buf   strings.Builder
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(&p.buf, format, args...)
}

func (p *printer) printProcedure(procID DeclID) {
	proc := p.class.Decl(procID)
	params := make([]string, 0, len(proc.Params))
	for _, id := range proc.Params {
		params = append(params, "int "+p.class.Decl(id).Name)
	}
	p.printf("\tpublic %s %s(%s) {\n", proc.Type, proc.Name, strings.Join(params, ", "))
	for _, id := range p.class.LocalVariables(procID) {
		p.printf("\t\tint %s;\n", p.class.Decl(id).Name)
	}
	p.printSeq(proc.Body, 2)
	p.printf("\t}\n")
}

func (p *printer) printSeq(seq *SeqNode, depth int) {
	if seq == nil {
		return
	}
	for _, stmt := range seq.Stmts {
		p.printStmt(stmt, depth)
	}
}

func (p *printer) printStmt(stmt Node, depth int) {
	indent := strings.Repeat("\t", depth)
	switch n := stmt.(type) {
	case *BinaryNode:
		p.printf("%s%s = %s;\n", indent, exprString(n.Left, false), exprString(n.Right, false))
	case *CallNode:
		p.printf("%s%s;\n", indent, exprString(n, false))
	case *UnaryNode:
		if n.Operand == nil {
			p.printf("%sreturn;\n", indent)
			return
		}
		p.printf("%sreturn %s;\n", indent, exprString(n.Operand, false))
	case *IfNode:
		p.printf("%sif (%s) {\n", indent, exprString(n.Cond, false))
		p.printSeq(n.Then, depth+1)
		p.printf("%s} else {\n", indent)
		p.printSeq(n.Else, depth+1)
		p.printf("%s}\n", indent)
	case *WhileNode:
		p.printf("%swhile (%s) {\n", indent, exprString(n.Cond, false))
		p.printSeq(n.Body, depth+1)
		p.printf("%s}\n", indent)
	case *SeqNode:
		p.printSeq(n, depth)
	}
}

func exprString(expr Node, nested bool) string {
	switch n := expr.(type) {
	case *ConstNode:
		return literal(n.Value, nested)
	case *IdentNode:
		return n.Name
	case *CallNode:
		args := make([]string, 0, len(n.Args))
		for _, arg := range n.Args {
			args = append(args, exprString(arg, false))
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	case *BinaryNode:
		s := exprString(n.Left, true) + " " + n.Op.String() + " " + exprString(n.Right, true)
		if nested {
			return "(" + s + ")"
		}
		return s
	}
	return ""
}

// literal writes v as source. There are no negative literals, so negative values are
// written as a subtraction from zero.
func literal(v int32, nested bool) string {
	var s string
	switch {
	case v >= 0:
		return fmt.Sprint(v)
	case v == math.MinInt32:
		s = fmt.Sprintf("0 - %d - 1", math.MaxInt32)
	default:
		s = fmt.Sprintf("0 - %d", -int64(v))
	}
	if nested {
		return "(" + s + ")"
	}
	return s
}
