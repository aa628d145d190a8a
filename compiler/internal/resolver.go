package internal

// Resolve links every identifier and call of every procedure to its declaration. Identifiers
// are looked up in the procedure's local table and then in the class table; calls match
// procedures by name and argument count.
func Resolve(class *Class) error {
	for _, procID := range class.Procedures() {
		proc := class.Decl(procID)
		r := &resolver{class: class, table: proc.Locals}
		err := r.resolve(proc.Body)
		if err != nil {
			return err
		}
	}
	return nil
}

type resolver struct {
	class *Class
	table TableID
}

func (r *resolver) resolve(node Node) error {
	switch n := node.(type) {
	case *ConstNode, nil:
		return nil
	case *IdentNode:
		n.Decl = r.class.LookupValue(r.table, n.Name)
		if n.Decl == NoDecl {
			return makeNamedError(UndefinedName, n.Pos, n.Name, "undefined variable: %s", n.Name)
		}
		return nil
	case *BinaryNode:
		err := r.resolve(n.Left)
		if err != nil {
			return err
		}
		return r.resolve(n.Right)
	case *UnaryNode:
		return r.resolve(n.Operand)
	case *CallNode:
		for _, arg := range n.Args {
			err := r.resolve(arg)
			if err != nil {
				return err
			}
		}
		n.Proc = r.class.LookupProcedure(r.table, n.Name, len(n.Args))
		if n.Proc == NoDecl {
			return makeNamedError(NoMatchingProcedure, n.Pos, n.Name, "no matching method found for: %s",
				callSignature(n.Name, len(n.Args)))
		}
		return nil
	case *IfNode:
		err := r.resolve(n.Cond)
		if err != nil {
			return err
		}
		err = r.resolveSeq(n.Then)
		if err != nil {
			return err
		}
		return r.resolveSeq(n.Else)
	case *WhileNode:
		err := r.resolve(n.Cond)
		if err != nil {
			return err
		}
		return r.resolveSeq(n.Body)
	case *SeqNode:
		return r.resolveSeq(n)
	}
	return nil
}

func (r *resolver) resolveSeq(seq *SeqNode) error {
	if seq == nil {
		return nil
	}
	for _, stmt := range seq.Stmts {
		err := r.resolve(stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

// callSignature renders a call shape like f(int,int).
func callSignature(name string, arity int) string {
	sig := name + "("
	for i := 0; i < arity; i++ {
		if i > 0 {
			sig += ","
		}
		sig += "int"
	}
	return sig + ")"
}
