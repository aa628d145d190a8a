package internal

// EvalConstant evaluates the initializer of a final field. Only literals and arithmetic or
// comparison operators are allowed. Arithmetic wraps like the JVM int instructions and
// comparisons yield 0 or 1.
func EvalConstant(node Node) (int32, error) {
	switch n := node.(type) {
	case *ConstNode:
		return n.Value, nil
	case *BinaryNode:
		if n.Op == AssignOp {
			return 0, makeError(NonConstantInitializer, n.Pos, "assignment in constant initializer")
		}
		left, err := EvalConstant(n.Left)
		if err != nil {
			return 0, err
		}
		right, err := EvalConstant(n.Right)
		if err != nil {
			return 0, err
		}
		return evalBinary(n, left, right)
	case nil:
		return 0, makeError(NonConstantInitializer, Position{}, "missing constant initializer")
	}
	return 0, makeError(NonConstantInitializer, node.Position(), "constant initializer must only use numbers and operators")
}

func evalBinary(n *BinaryNode, left, right int32) (int32, error) {
	switch n.Op {
	case AddOp:
		return left + right, nil
	case SubOp:
		return left - right, nil
	case MulOp:
		return left * right, nil
	case DivOp:
		if right == 0 {
			return 0, makeError(ConstantDivisionByZero, n.Pos, "division by zero in constant initializer")
		}
		// MinInt32 / -1 wraps to MinInt32, the same as idiv.
		return left / right, nil
	case EqOp:
		return boolToInt(left == right), nil
	case LtOp:
		return boolToInt(left < right), nil
	case LeOp:
		return boolToInt(left <= right), nil
	case GtOp:
		return boolToInt(left > right), nil
	case GeOp:
		return boolToInt(left >= right), nil
	}
	return 0, makeError(NonConstantInitializer, n.Pos, "operator %s is not allowed in constant initializer", n.Op)
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
