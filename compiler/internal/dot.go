package internal

import (
	"fmt"
	"io"
	"strings"
)

// WriteDot writes a graphviz description of the class: the class table and every procedure
// table as clusters of declarations, each procedure tree, and dashed edges from identifiers
// and calls to the declarations they are linked to.
func WriteDot(w io.Writer, class *Class) error {
	g := &dotWriter{class: class}
	g.printf("digraph %q {\n", class.Name)
	g.printf("\tnode [shape=box, fontname=\"monospace\"];\n")
	g.printf("\tsubgraph cluster_class {\n\t\tlabel=%q;\n", "class "+class.Name)
	for _, id := range class.Members() {
		g.declNode(id, 2)
	}
	g.printf("\t}\n")
	for _, procID := range class.Procedures() {
		proc := class.Decl(procID)
		g.printf("\tsubgraph cluster_%d {\n\t\tlabel=%q;\n", procID, proc.Name+proc.Descriptor())
		for _, id := range class.Table(proc.Locals).Decls {
			g.declNode(id, 2)
		}
		g.printf("\t}\n")
		root := g.astNode(proc.Body)
		g.printf("\td%d -> %s [label=\"body\"];\n", procID, root)
	}
	g.printf("}\n")
	_, err := io.WriteString(w, g.buf.String())
	return err
}

type dotWriter struct {
	class *Class
	buf   strings.Builder
	nodes int
}

func (g *dotWriter) printf(format string, args ...interface{}) {
	fmt.Fprintf(&g.buf, format, args...)
}

func (g *dotWriter) declNode(id DeclID, depth int) {
	decl := g.class.Decl(id)
	label := fmt.Sprintf("%s %s", decl.Kind, decl.Name)
	switch decl.Kind {
	case ConstantDecl:
		label += fmt.Sprintf(" = %d", decl.Value)
	case ProcedureDecl:
		label += decl.Descriptor()
	}
	g.printf("%sd%d [label=%q, shape=ellipse];\n", strings.Repeat("\t", depth), id, label)
}

// astNode writes node and its subtree and returns the graphviz name of node.
func (g *dotWriter) astNode(node Node) string {
	g.nodes++
	name := fmt.Sprintf("n%d", g.nodes)
	switch n := node.(type) {
	case *ConstNode:
		g.printf("\t%s [label=\"%d\"];\n", name, n.Value)
	case *IdentNode:
		g.printf("\t%s [label=%q];\n", name, n.Name)
		g.link(name, n.Decl)
	case *BinaryNode:
		g.printf("\t%s [label=%q];\n", name, n.Op.String())
		g.child(name, n.Left, "")
		g.child(name, n.Right, "")
	case *UnaryNode:
		g.printf("\t%s [label=\"return\"];\n", name)
		if n.Operand != nil {
			g.child(name, n.Operand, "")
		}
	case *CallNode:
		g.printf("\t%s [label=%q];\n", name, n.Name+"()")
		for _, arg := range n.Args {
			g.child(name, arg, "")
		}
		g.link(name, n.Proc)
	case *IfNode:
		g.printf("\t%s [label=\"if\"];\n", name)
		g.child(name, n.Cond, "cond")
		g.child(name, n.Then, "then")
		g.child(name, n.Else, "else")
	case *WhileNode:
		g.printf("\t%s [label=\"while\"];\n", name)
		g.child(name, n.Cond, "cond")
		g.child(name, n.Body, "body")
	case *SeqNode:
		g.printf("\t%s [label=\"seq\", shape=point];\n", name)
		if n != nil {
			for _, stmt := range n.Stmts {
				g.child(name, stmt, "")
			}
		}
	}
	return name
}

func (g *dotWriter) child(parent string, node Node, label string) {
	name := g.astNode(node)
	if label == "" {
		g.printf("\t%s -> %s;\n", parent, name)
		return
	}
	g.printf("\t%s -> %s [label=%q];\n", parent, name, label)
}

func (g *dotWriter) link(name string, id DeclID) {
	if id != NoDecl {
		g.printf("\t%s -> d%d [style=dashed];\n", name, id)
	}
}
