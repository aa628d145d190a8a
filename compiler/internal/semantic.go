package internal

// Analyze validates a resolved class. Each procedure is checked for, in order: expression
// value-ness, call arguments, assignment targets and return shapes; unreachable code;
// returns on every path of non-void procedures; definite assignment of local variables.
func Analyze(class *Class) error {
	for _, procID := range class.Procedures() {
		a := &analyzer{class: class, proc: class.Decl(procID)}
		err := a.analyze()
		if err != nil {
			return err
		}
	}
	return nil
}

type analyzer struct {
	class *Class
	proc  *Decl
}

func (a *analyzer) analyze() error {
	err := a.checkSeq(a.proc.Body)
	if err != nil {
		return err
	}
	err = checkUnreachableSeq(a.proc.Body)
	if err != nil {
		return err
	}
	if a.proc.Type != VoidType && !isTerminatingSeq(a.proc.Body) {
		return makeNamedError(MissingReturn, a.proc.Pos, a.proc.Name, "method %s must return a value on every path",
			a.proc.Name)
	}
	return a.checkDefiniteAssignment()
}

// yieldsValue reports whether evaluating node leaves one int on the operand stack.
func (a *analyzer) yieldsValue(node Node) bool {
	switch n := node.(type) {
	case *ConstNode, *IdentNode:
		return true
	case *BinaryNode:
		return n.Op != AssignOp && a.yieldsValue(n.Left) && a.yieldsValue(n.Right)
	case *UnaryNode:
		return n.Operand != nil && a.yieldsValue(n.Operand)
	case *CallNode:
		return n.Proc != NoDecl && a.class.Decl(n.Proc).Type != VoidType
	}
	return false
}

func (a *analyzer) checkSeq(seq *SeqNode) error {
	if seq == nil {
		return nil
	}
	for _, stmt := range seq.Stmts {
		err := a.checkStmt(stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) checkStmt(stmt Node) error {
	switch n := stmt.(type) {
	case *BinaryNode:
		if n.Op == AssignOp {
			return a.checkAssign(n)
		}
		return a.checkExpr(n)
	case *UnaryNode:
		return a.checkReturn(n)
	case *IfNode:
		err := a.checkCondition(n.Cond)
		if err != nil {
			return err
		}
		err = a.checkSeq(n.Then)
		if err != nil {
			return err
		}
		return a.checkSeq(n.Else)
	case *WhileNode:
		err := a.checkCondition(n.Cond)
		if err != nil {
			return err
		}
		return a.checkSeq(n.Body)
	case *SeqNode:
		return a.checkSeq(n)
	}
	return a.checkExpr(stmt)
}

func (a *analyzer) checkAssign(n *BinaryNode) error {
	err := a.checkExpr(n.Right)
	if err != nil {
		return err
	}
	if !a.yieldsValue(n.Right) {
		return makeError(InvalidOperation, n.Right.Position(), "assigned expression does not yield a value")
	}
	target, ok := n.Left.(*IdentNode)
	if !ok || target.Decl == NoDecl {
		return makeError(InvalidOperation, n.Pos, "left side of assignment must be a variable")
	}
	if a.class.Decl(target.Decl).Kind == ConstantDecl {
		return makeNamedError(AssignToFinal, target.Pos, target.Name, "cannot assign a value to final variable %s",
			target.Name)
	}
	return nil
}

func (a *analyzer) checkReturn(n *UnaryNode) error {
	if n.Operand != nil {
		err := a.checkExpr(n.Operand)
		if err != nil {
			return err
		}
	}
	if a.proc.Type == VoidType {
		if n.Operand != nil {
			return makeError(UnexpectedReturnValue, n.Pos, "void method %s cannot return a value", a.proc.Name)
		}
		return nil
	}
	if n.Operand == nil || !a.yieldsValue(n.Operand) {
		return makeError(MissingReturnValue, n.Pos, "method %s must return an int value", a.proc.Name)
	}
	return nil
}

func (a *analyzer) checkCondition(cond Node) error {
	err := a.checkExpr(cond)
	if err != nil {
		return err
	}
	if !a.yieldsValue(cond) {
		return makeError(InvalidOperation, cond.Position(), "condition does not yield a value")
	}
	return nil
}

// checkExpr checks an expression bottom up: operands of operators must yield values and so
// must call arguments.
func (a *analyzer) checkExpr(expr Node) error {
	switch n := expr.(type) {
	case *BinaryNode:
		if n.Op == AssignOp {
			return makeError(InvalidOperation, n.Pos, "assignment is not an expression")
		}
		for _, operand := range []Node{n.Left, n.Right} {
			err := a.checkExpr(operand)
			if err != nil {
				return err
			}
			if !a.yieldsValue(operand) {
				return makeError(InvalidOperation, operand.Position(), "operand of %s does not yield a value", n.Op)
			}
		}
	case *CallNode:
		for _, arg := range n.Args {
			err := a.checkExpr(arg)
			if err != nil {
				return err
			}
			if !a.yieldsValue(arg) {
				return makeError(ArgumentMustYieldValue, arg.Position(), "argument of %s must yield a value", n.Name)
			}
		}
	case *UnaryNode:
		return makeError(InvalidOperation, n.Pos, "return is not an expression")
	}
	return nil
}
