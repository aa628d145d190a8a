package internal

// Operator priorities for precedence climbing. A higher priority binds tighter.
const (
	comparisonPriority = 1
	additivePriority   = 2
	multiplyPriority   = 3
)

type opToken struct {
	op       BinaryOp
	priority int
}

var binaryOpTokens = map[TokenType]opToken{
	EqualTP:        {op: EqOp, priority: comparisonPriority},
	LessTP:         {op: LtOp, priority: comparisonPriority},
	LessEqualTP:    {op: LeOp, priority: comparisonPriority},
	GreaterTP:      {op: GtOp, priority: comparisonPriority},
	GreaterEqualTP: {op: GeOp, priority: comparisonPriority},
	AddTP:          {op: AddOp, priority: additivePriority},
	MinusTP:        {op: SubOp, priority: additivePriority},
	MultiplyTP:     {op: MulOp, priority: multiplyPriority},
	DivideTP:       {op: DivOp, priority: multiplyPriority},
}

// buildExpressionsTree folds terms and the operators between them into a tree, all
// operators are left associative.
func buildExpressionsTree(ops []opToken, exprTerms []Node) Node {
	if len(ops) == 0 {
		return exprTerms[0]
	}
	terms := make([]Node, len(exprTerms))
	copy(terms, exprTerms)
	ret, _ := buildExpressionsTree0(ops, terms, 0, 0)
	return ret
}

func buildExpressionsTree0(ops []opToken, exprTerms []Node, loc int, minPriority int) (Node, int) {
	lhs := exprTerms[loc]
	i := loc
	for i < len(ops) && ops[i].priority >= minPriority {
		op := ops[i]
		rhs := exprTerms[i+1]
		j := i + 1
		for j < len(ops) && ops[j].priority > op.priority {
			rhs, j = buildExpressionsTree0(ops, exprTerms, j, ops[j].priority)
		}
		lhs = &BinaryNode{Op: op.op, Left: lhs, Right: rhs, Pos: lhs.Position()}
		exprTerms[j] = lhs
		i = j
	}
	return lhs, i
}

// expr = simple [ ("=="|"<"|"<="|">"|">=") simple ]
// simple = term {("+"|"-") term}
// term = factor {("*"|"/") factor}
func (parser *Parser) parseExpression() (Node, error) {
	leftExprTerm, err := parser.parseFactor()
	if err != nil {
		return nil, err
	}
	var ops []opToken
	exprTerms := []Node{leftExprTerm}
	comparisons := 0
	for parser.matchOp() {
		token, _ := parser.getCurrentToken()
		op := binaryOpTokens[token.tp]
		if op.priority == comparisonPriority {
			comparisons++
			// Only one comparison is allowed, a < b < c must be written with parentheses.
			if comparisons > 1 {
				return nil, makeError(UnexpectedToken, token.Pos(),
					"unexpected second comparison %s, use parentheses", token.content)
			}
		}
		parser.stepForward()
		exprTerm, err := parser.parseFactor()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		exprTerms = append(exprTerms, exprTerm)
	}
	return buildExpressionsTree(ops, exprTerms), nil
}

func (parser *Parser) matchOp() bool {
	if !parser.hasRemainTokens() {
		return false
	}
	_, ok := binaryOpTokens[parser.currentTokens[parser.currentTokenPos].tp]
	return ok
}

// factor = NUMBER | IDENT | IDENT "(" [expr {"," expr}] ")" | "(" expr ")"
func (parser *Parser) parseFactor() (Node, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case IntegerTP:
		parser.stepForward()
		return &ConstNode{Value: token.value, Pos: token.Pos()}, nil
	case IdentifierTP:
		_, isCall := parser.peekToken(1, LeftParentThesesTP)
		if isCall {
			return parser.parseCall()
		}
		parser.stepForward()
		return &IdentNode{Name: token.content, Pos: token.Pos()}, nil
	case LeftParentThesesTP:
		return parser.parseSubExpression()
	}
	return nil, parser.makeSyntaxError("an expression")
}

func (parser *Parser) parseSubExpression() (Node, error) {
	_, match := parser.expectToken(LeftParentThesesTP, true)
	if !match {
		return nil, parser.makeSyntaxError("(")
	}
	expr, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(RightParentThesesTP, true)
	if !match {
		return nil, parser.makeSyntaxError(")")
	}
	return expr, nil
}

// IDENT "(" [expr {"," expr}] ")"
func (parser *Parser) parseCall() (*CallNode, error) {
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeSyntaxError("a procedure name")
	}
	_, match = parser.expectToken(LeftParentThesesTP, true)
	if !match {
		return nil, parser.makeSyntaxError("(")
	}
	call := &CallNode{Name: nameToken.content, Pos: nameToken.Pos()}
	_, match = parser.expectToken(RightParentThesesTP, true)
	if match {
		return call, nil
	}
	for {
		arg, err := parser.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		_, match = parser.expectToken(CommaTP, true)
		if !match {
			break
		}
	}
	_, match = parser.expectToken(RightParentThesesTP, true)
	if !match {
		return nil, parser.makeSyntaxError(") or ,")
	}
	return call, nil
}
