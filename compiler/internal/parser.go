package internal

import (
	"fmt"
	"io"
	"os"
)

// Parser builds the class, its symbol tables and the procedure trees from tokens. It
// follows the grammar:
//
//	class  = "class" IDENT "{" decls "}"
//	decls  = {"final" "int" IDENT "=" expr ";"} {"int" IDENT ";"} {method}
//	method = "public" ("void"|"int") IDENT "(" [params] ")" "{" {"int" IDENT ";"} stmts "}"
//	params = "int" IDENT {"," "int" IDENT}
//	stmts  = {stmt}
//	stmt   = assign | call ";" | "if" "(" expr ")" "{" stmts "}" ["else" "{" stmts "}"]
//	       | "while" "(" expr ")" "{" stmts "}" | "return" [expr] ";"
//	assign = IDENT "=" expr ";"
//
// An empty statement list and a missing else branch are accepted.
type Parser struct {
	currentTokenPos int
	currentTokens   []*Token
	class           *Class
}

// Parse reads and parses the source file at path.
func (parser *Parser) Parse(path string) (*Class, error) {
	rd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parser: open %s: %w", path, err)
	}
	defer rd.Close()
	return parser.ParseReader(rd)
}

func (parser *Parser) ParseReader(rd io.Reader) (*Class, error) {
	parser.reset()
	tokenizer := &Tokenizer{}
	tokens, err := tokenizer.Tokenize(rd)
	if err != nil {
		return nil, err
	}
	parser.currentTokens = tokens
	return parser.ParseClassDeclaration()
}

func (parser *Parser) reset() {
	parser.currentTokenPos, parser.currentTokens, parser.class = 0, nil, nil
}

// class Identifier {
//
// }
func (parser *Parser) ParseClassDeclaration() (*Class, error) {
	_, match := parser.expectToken(ClassTP, true)
	if !match {
		return nil, parser.makeSyntaxError("class")
	}
	classNameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeSyntaxError("a class name")
	}
	parser.class = NewClass(classNameToken.content, classNameToken.Pos())
	_, match = parser.expectToken(LeftBraceTP, true)
	if !match {
		return nil, parser.makeSyntaxError("{")
	}
	err := parser.parseClassBody()
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(RightBraceTP, true)
	if !match {
		return nil, parser.makeSyntaxError("}")
	}
	if parser.hasRemainTokens() {
		return nil, parser.makeSyntaxError("end of file")
	}
	return parser.class, nil
}

func (parser *Parser) parseClassBody() error {
	for parser.matchToken(FinalTP) {
		err := parser.parseConstantDeclaration()
		if err != nil {
			return err
		}
	}
	for parser.matchToken(IntTP) {
		err := parser.parseVariableDeclaration(parser.class.Global)
		if err != nil {
			return err
		}
	}
	for parser.matchToken(PublicTP) {
		err := parser.parseMethodDeclaration()
		if err != nil {
			return err
		}
	}
	return nil
}

// final int Identifier = expr;
func (parser *Parser) parseConstantDeclaration() error {
	if !parser.expectTokens(FinalTP, IntTP) {
		return parser.makeSyntaxError("final int")
	}
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return parser.makeSyntaxError("a constant name")
	}
	_, match = parser.expectToken(AssignTP, true)
	if !match {
		return parser.makeSyntaxError("=")
	}
	expr, err := parser.parseExpression()
	if err != nil {
		return err
	}
	_, match = parser.expectToken(SemiColonTP, true)
	if !match {
		return parser.makeSyntaxError(";")
	}
	value, err := EvalConstant(expr)
	if err != nil {
		return err
	}
	_, err = parser.class.Declare(parser.class.Global, Decl{
		Kind:  ConstantDecl,
		Name:  nameToken.content,
		Type:  IntType,
		Value: value,
		Pos:   nameToken.Pos(),
	})
	return err
}

// int Identifier;
func (parser *Parser) parseVariableDeclaration(table TableID) error {
	_, match := parser.expectToken(IntTP, true)
	if !match {
		return parser.makeSyntaxError("int")
	}
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return parser.makeSyntaxError("a variable name")
	}
	_, match = parser.expectToken(SemiColonTP, true)
	if !match {
		return parser.makeSyntaxError(";")
	}
	_, err := parser.class.Declare(table, Decl{
		Kind: VariableDecl,
		Name: nameToken.content,
		Type: IntType,
		Pos:  nameToken.Pos(),
	})
	return err
}

// public int|void Identifier(int a, int b) {
//    int local;
//    statements
// }
func (parser *Parser) parseMethodDeclaration() error {
	_, match := parser.expectToken(PublicTP, true)
	if !match {
		return parser.makeSyntaxError("public")
	}
	returnType := IntType
	switch {
	case parser.matchToken(VoidTP):
		returnType = VoidType
	case parser.matchToken(IntTP):
	default:
		return parser.makeSyntaxError("int or void")
	}
	parser.stepForward()
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return parser.makeSyntaxError("a method name")
	}
	_, match = parser.expectToken(LeftParentThesesTP, true)
	if !match {
		return parser.makeSyntaxError("(")
	}
	paramTokens, err := parser.parseParamList()
	if err != nil {
		return err
	}
	_, match = parser.expectToken(RightParentThesesTP, true)
	if !match {
		return parser.makeSyntaxError(")")
	}
	class := parser.class
	procID, err := class.Declare(class.Global, Decl{
		Kind:   ProcedureDecl,
		Name:   nameToken.content,
		Type:   returnType,
		Params: make([]DeclID, len(paramTokens)),
		Pos:    nameToken.Pos(),
	})
	if err != nil {
		return err
	}
	locals := class.NewTable(class.Global, procID)
	class.Decl(procID).Locals = locals
	for i, paramToken := range paramTokens {
		paramID, err := class.Declare(locals, Decl{
			Kind: ParameterDecl,
			Name: paramToken.content,
			Type: IntType,
			Pos:  paramToken.Pos(),
		})
		if err != nil {
			return err
		}
		class.Decl(procID).Params[i] = paramID
	}
	leftBrace, match := parser.expectToken(LeftBraceTP, true)
	if !match {
		return parser.makeSyntaxError("{")
	}
	for parser.matchToken(IntTP) {
		err = parser.parseVariableDeclaration(locals)
		if err != nil {
			return err
		}
	}
	body, err := parser.parseStatements(leftBrace)
	if err != nil {
		return err
	}
	_, match = parser.expectToken(RightBraceTP, true)
	if !match {
		return parser.makeSyntaxError("}")
	}
	class.Decl(procID).Body = body
	return nil
}

// int a, int b
func (parser *Parser) parseParamList() (params []*Token, err error) {
	if !parser.matchToken(IntTP) {
		return nil, nil
	}
	for {
		_, match := parser.expectToken(IntTP, true)
		if !match {
			return nil, parser.makeSyntaxError("int")
		}
		nameToken, match := parser.expectToken(IdentifierTP, true)
		if !match {
			return nil, parser.makeSyntaxError("a parameter name")
		}
		params = append(params, nameToken)
		_, match = parser.expectToken(CommaTP, true)
		if !match {
			return params, nil
		}
	}
}

// parseStatements parses statements up to, not including, the closing brace.
func (parser *Parser) parseStatements(leftBrace *Token) (*SeqNode, error) {
	seq := &SeqNode{Pos: leftBrace.Pos()}
	for parser.hasRemainTokens() && !parser.matchToken(RightBraceTP) {
		stmt, err := parser.parseStatement()
		if err != nil {
			return nil, err
		}
		seq.Stmts = append(seq.Stmts, stmt)
	}
	return seq, nil
}

func (parser *Parser) parseStatement() (Node, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case IfTP:
		return parser.parseIfStatement()
	case WhileTP:
		return parser.parseWhileStatement()
	case ReturnTP:
		return parser.parseReturnStatement()
	case IdentifierTP:
		if _, isCall := parser.peekToken(1, LeftParentThesesTP); isCall {
			return parser.parseCallStatement()
		}
		return parser.parseAssignStatement()
	}
	return nil, parser.makeSyntaxError("a statement")
}

// Identifier = expr;
func (parser *Parser) parseAssignStatement() (Node, error) {
	nameToken, match := parser.expectToken(IdentifierTP, true)
	if !match {
		return nil, parser.makeSyntaxError("a variable name")
	}
	_, match = parser.expectToken(AssignTP, true)
	if !match {
		return nil, parser.makeSyntaxError("=")
	}
	value, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(SemiColonTP, true)
	if !match {
		return nil, parser.makeSyntaxError(";")
	}
	return &BinaryNode{
		Op:    AssignOp,
		Left:  &IdentNode{Name: nameToken.content, Pos: nameToken.Pos()},
		Right: value,
		Pos:   nameToken.Pos(),
	}, nil
}

// f(a, b);
func (parser *Parser) parseCallStatement() (Node, error) {
	call, err := parser.parseCall()
	if err != nil {
		return nil, err
	}
	_, match := parser.expectToken(SemiColonTP, true)
	if !match {
		return nil, parser.makeSyntaxError(";")
	}
	return call, nil
}

// if (expr) {
//    statements
// } else {
//    statements
// }
func (parser *Parser) parseIfStatement() (Node, error) {
	ifToken, match := parser.expectToken(IfTP, true)
	if !match {
		return nil, parser.makeSyntaxError("if")
	}
	cond, err := parser.parseCondition("if")
	if err != nil {
		return nil, err
	}
	then, err := parser.parseBlock()
	if err != nil {
		return nil, err
	}
	ifNode := &IfNode{Cond: cond, Then: then, Pos: ifToken.Pos()}
	elseToken, match := parser.expectToken(ElseTP, true)
	if !match {
		ifNode.Else = &SeqNode{Pos: ifToken.Pos()}
		return ifNode, nil
	}
	ifNode.Else, err = parser.parseBlock()
	if err != nil {
		return nil, err
	}
	if len(ifNode.Else.Stmts) == 0 {
		ifNode.Else.Pos = elseToken.Pos()
	}
	return ifNode, nil
}

// while (expr) {
//    statements
// }
func (parser *Parser) parseWhileStatement() (Node, error) {
	whileToken, match := parser.expectToken(WhileTP, true)
	if !match {
		return nil, parser.makeSyntaxError("while")
	}
	cond, err := parser.parseCondition("while")
	if err != nil {
		return nil, err
	}
	body, err := parser.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileNode{Cond: cond, Body: body, Pos: whileToken.Pos()}, nil
}

// parseCondition parses "(" expr ")". Syntax errors inside are reported as bad conditions.
func (parser *Parser) parseCondition(statement string) (Node, error) {
	start := parser.currentPosition()
	cond, err := parser.parseSubExpression()
	if err == nil {
		return cond, nil
	}
	if IsKind(err, UnexpectedToken) || IsKind(err, UnexpectedEOF) {
		return nil, makeError(BadCondition, start, "bad %s-condition: %s", statement, err.(*CompileError).Msg)
	}
	return nil, err
}

// { statements }
func (parser *Parser) parseBlock() (*SeqNode, error) {
	leftBrace, match := parser.expectToken(LeftBraceTP, true)
	if !match {
		return nil, parser.makeSyntaxError("{")
	}
	seq, err := parser.parseStatements(leftBrace)
	if err != nil {
		return nil, err
	}
	_, match = parser.expectToken(RightBraceTP, true)
	if !match {
		return nil, parser.makeSyntaxError("}")
	}
	return seq, nil
}

// return [expr];
func (parser *Parser) parseReturnStatement() (Node, error) {
	returnToken, match := parser.expectToken(ReturnTP, true)
	if !match {
		return nil, parser.makeSyntaxError("return")
	}
	ret := &UnaryNode{Op: ReturnOp, Pos: returnToken.Pos()}
	_, match = parser.expectToken(SemiColonTP, true)
	if match {
		return ret, nil
	}
	operand, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	ret.Operand = operand
	_, match = parser.expectToken(SemiColonTP, true)
	if !match {
		return nil, parser.makeSyntaxError(";")
	}
	return ret, nil
}

func (parser *Parser) getCurrentToken() (*Token, error) {
	if !parser.hasRemainTokens() {
		return nil, parser.makeSyntaxError("more tokens")
	}
	return parser.currentTokens[parser.currentTokenPos], nil
}

func (parser *Parser) stepForward() {
	parser.currentTokenPos++
}

func (parser *Parser) hasRemainTokens() bool {
	return parser.currentTokenPos < len(parser.currentTokens)
}

func (parser *Parser) matchToken(tp TokenType) bool {
	return parser.hasRemainTokens() && parser.currentTokens[parser.currentTokenPos].tp == tp
}

// peekToken checks the token `offset` tokens ahead without moving.
func (parser *Parser) peekToken(offset int, tp TokenType) (*Token, bool) {
	pos := parser.currentTokenPos + offset
	if pos >= len(parser.currentTokens) || parser.currentTokens[pos].tp != tp {
		return nil, false
	}
	return parser.currentTokens[pos], true
}

func (parser *Parser) expectTokens(expectedTokenTPs ...TokenType) bool {
	for _, tokenType := range expectedTokenTPs {
		_, ok := parser.expectToken(tokenType, true)
		if !ok {
			return false
		}
	}
	return true
}

func (parser *Parser) expectToken(expectedTokenTp TokenType, walk bool) (*Token, bool) {
	token, match := parser.peekToken(0, expectedTokenTp)
	if match && walk {
		parser.stepForward()
	}
	return token, match
}

// currentPosition is the position of the current token, or just after the last one at the end.
func (parser *Parser) currentPosition() Position {
	if parser.hasRemainTokens() {
		return parser.currentTokens[parser.currentTokenPos].Pos()
	}
	if len(parser.currentTokens) == 0 {
		return Position{Line: 1, Column: 1}
	}
	last := parser.currentTokens[len(parser.currentTokens)-1]
	return Position{Line: last.line, Column: last.endPos + 1}
}

func (parser *Parser) makeSyntaxError(expected string) error {
	if !parser.hasRemainTokens() {
		return makeError(UnexpectedEOF, parser.currentPosition(), "expect %s but the file ends", expected)
	}
	token := parser.currentTokens[parser.currentTokenPos]
	return makeError(UnexpectedToken, token.Pos(), "expect %s but found %s", expected, token.content)
}
