package internal

// A statement is terminating when control never reaches the statement after it: a return,
// a while whose body is terminating, or an if whose branches are both terminating. A
// sequence is terminating when any of its statements is.

func isTerminatingStmt(stmt Node) bool {
	switch n := stmt.(type) {
	case *UnaryNode:
		return n.Op == ReturnOp
	case *WhileNode:
		return isTerminatingSeq(n.Body)
	case *IfNode:
		return isTerminatingSeq(n.Then) && isTerminatingSeq(n.Else)
	case *SeqNode:
		return isTerminatingSeq(n)
	}
	return false
}

func isTerminatingSeq(seq *SeqNode) bool {
	if seq == nil {
		return false
	}
	for _, stmt := range seq.Stmts {
		if isTerminatingStmt(stmt) {
			return true
		}
	}
	return false
}

// CheckReachability reports the first statement, in source order, that follows a
// terminating statement. It only looks at the shape of the trees, so it can run before
// names are resolved.
func CheckReachability(class *Class) error {
	for _, procID := range class.Procedures() {
		err := checkUnreachableSeq(class.Decl(procID).Body)
		if err != nil {
			return err
		}
	}
	return nil
}

func checkUnreachableSeq(seq *SeqNode) error {
	if seq == nil {
		return nil
	}
	for i, stmt := range seq.Stmts {
		var err error
		switch n := stmt.(type) {
		case *IfNode:
			err = checkUnreachableSeq(n.Then)
			if err == nil {
				err = checkUnreachableSeq(n.Else)
			}
		case *WhileNode:
			err = checkUnreachableSeq(n.Body)
		}
		if err != nil {
			return err
		}
		if isTerminatingStmt(stmt) && i+1 < len(seq.Stmts) {
			return makeError(UnreachableCode, seq.Stmts[i+1].Position(), "unreachable code")
		}
	}
	return nil
}

// canCompleteNormally reports whether execution can fall through stmt at run time. Unlike
// the terminating rule it treats every loop as possibly exiting, since its condition may be
// false.
func canCompleteNormally(stmt Node) bool {
	switch n := stmt.(type) {
	case *UnaryNode:
		return n.Op != ReturnOp
	case *IfNode:
		return canCompleteNormally(n.Then) || canCompleteNormally(n.Else)
	case *SeqNode:
		if n == nil {
			return true
		}
		for _, s := range n.Stmts {
			if !canCompleteNormally(s) {
				return false
			}
		}
	}
	return true
}

// assignedSet is the set of definitely assigned local declarations.
type assignedSet map[DeclID]bool

func (s assignedSet) copy() assignedSet {
	ret := make(assignedSet, len(s))
	for id := range s {
		ret[id] = true
	}
	return ret
}

// checkDefiniteAssignment requires every read of a local variable to be preceded by an
// assignment on every path. Parameters start assigned; class variables and constants are
// always initialized.
func (a *analyzer) checkDefiniteAssignment() error {
	assigned := assignedSet{}
	for _, param := range a.proc.Params {
		assigned[param] = true
	}
	return a.assignSeq(a.proc.Body, assigned)
}

func (a *analyzer) assignSeq(seq *SeqNode, assigned assignedSet) error {
	if seq == nil {
		return nil
	}
	for _, stmt := range seq.Stmts {
		err := a.assignStmt(stmt, assigned)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) assignStmt(stmt Node, assigned assignedSet) error {
	switch n := stmt.(type) {
	case *BinaryNode:
		err := a.checkReads(n.Right, assigned)
		if err != nil {
			return err
		}
		if target, ok := n.Left.(*IdentNode); ok && n.Op == AssignOp {
			assigned[target.Decl] = true
			return nil
		}
		return a.checkReads(n.Left, assigned)
	case *IfNode:
		err := a.checkReads(n.Cond, assigned)
		if err != nil {
			return err
		}
		thenAssigned := assigned.copy()
		err = a.assignSeq(n.Then, thenAssigned)
		if err != nil {
			return err
		}
		elseAssigned := assigned.copy()
		err = a.assignSeq(n.Else, elseAssigned)
		if err != nil {
			return err
		}
		for id := range thenAssigned {
			if elseAssigned[id] {
				assigned[id] = true
			}
		}
		return nil
	case *WhileNode:
		err := a.checkReads(n.Cond, assigned)
		if err != nil {
			return err
		}
		// The body may never run, what it assigns is dropped.
		return a.assignSeq(n.Body, assigned.copy())
	case *SeqNode:
		return a.assignSeq(n, assigned)
	}
	return a.checkReads(stmt, assigned)
}

func (a *analyzer) checkReads(expr Node, assigned assignedSet) error {
	var err error
	Inspect(expr, func(node Node) bool {
		if err != nil {
			return false
		}
		ident, ok := node.(*IdentNode)
		if !ok {
			return true
		}
		if a.isTrackedLocal(ident.Decl) && !assigned[ident.Decl] {
			err = makeNamedError(MaybeUninitialized, ident.Pos, ident.Name,
				"variable %s might not have been initialized", ident.Name)
		}
		return true
	})
	return err
}

func (a *analyzer) isTrackedLocal(id DeclID) bool {
	if id == NoDecl {
		return false
	}
	decl := a.class.Decl(id)
	return decl.Kind == VariableDecl && decl.Table != a.class.Global
}
