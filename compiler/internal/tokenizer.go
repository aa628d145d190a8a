package internal

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"unicode"

	"github.com/xiaobogaga/javasst/util"
)

// A simple Tokenizer for JavaSST.

// JavaSST has those elements:
// * KeyWord: class, final, int, void, public, if, else, while, return.
// * Symbol: {, }, (, ), ,, ;, =, ==, <, <=, >, >=, +, -, *, /.
// * Constant: decimal integer which must fit in 32 bits.
// * Identifier: letters, digits, underscore, not starting with a digit.
// * Comment: /**/, //.

type TokenType int

const (
	ClassTP             TokenType = iota // class
	FinalTP                              // final
	IntTP                                // int
	VoidTP                               // void
	PublicTP                             // public
	IfTP                                 // if
	ElseTP                               // else
	WhileTP                              // while
	ReturnTP                             // return
	LeftBraceTP                          // {
	RightBraceTP                         // }
	LeftParentThesesTP                   // (
	RightParentThesesTP                  // )
	CommaTP                              // ,
	SemiColonTP                          // ;
	AssignTP                             // =
	EqualTP                              // ==
	LessTP                               // <
	LessEqualTP                          // <=
	GreaterTP                            // >
	GreaterEqualTP                       // >=
	AddTP                                // +
	MinusTP                              // -
	MultiplyTP                           // *
	DivideTP                             // /
	IntegerTP                            // 1010
	IdentifierTP                         // varA
)

// keyWordTokenTPMap is the mapping from identifier to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"class":  ClassTP,
	"final":  FinalTP,
	"int":    IntTP,
	"void":   VoidTP,
	"public": PublicTP,
	"if":     IfTP,
	"else":   ElseTP,
	"while":  WhileTP,
	"return": ReturnTP,
}

// simpleSymbolTokenTPMap is the mapping from single character symbols to the corresponding TokenTP.
// =, < and > are not here since they might start a two character symbol.
var simpleSymbolTokenTPMap = map[byte]TokenType{
	'{': LeftBraceTP,
	'}': RightBraceTP,
	'(': LeftParentThesesTP,
	')': RightParentThesesTP,
	',': CommaTP,
	';': SemiColonTP,
	'+': AddTP,
	'-': MinusTP,
	'*': MultiplyTP,
}

var tokenTPNames = map[TokenType]string{
	LeftBraceTP:         "{",
	RightBraceTP:        "}",
	LeftParentThesesTP:  "(",
	RightParentThesesTP: ")",
	CommaTP:             ",",
	SemiColonTP:         ";",
	AssignTP:            "=",
	EqualTP:             "==",
	LessTP:              "<",
	LessEqualTP:         "<=",
	GreaterTP:           ">",
	GreaterEqualTP:      ">=",
	AddTP:               "+",
	MinusTP:             "-",
	MultiplyTP:          "*",
	DivideTP:            "/",
	IntegerTP:           "number",
	IdentifierTP:        "identifier",
}

func (tp TokenType) String() string {
	for keyword, keywordTP := range keyWordTokenTPMap {
		if keywordTP == tp {
			return keyword
		}
	}
	if name, ok := tokenTPNames[tp]; ok {
		return name
	}
	return "unknown"
}

type Token struct {
	content  string
	line     int
	startPos int
	endPos   int
	tp       TokenType
	value    int32 // only for IntegerTP
}

// Pos returns the 1-based position of the first character of the token.
func (t *Token) Pos() Position {
	return Position{Line: t.line, Column: t.startPos + 1}
}

type Tokenizer struct {
	currentPos  int
	currentLine int
	tokens      []*Token
	// inComment is set while we are inside a /* */ comment which may span lines.
	inComment  bool
	commentPos Position
}

// Tokenize accepts a source `rd` and tokenizes its content according to JavaSST rules.
// This method is the main method of this tokenizer.
func (tokenizer *Tokenizer) Tokenize(rd io.Reader) ([]*Token, error) {
	bfReader := bufio.NewReader(rd)
	for {
		line, err := bfReader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		tokenizer.currentLine++
		tokenizer.currentPos = 0
		lineErr := tokenizer.parseLine(line)
		if lineErr != nil {
			return nil, lineErr
		}
		if err == io.EOF {
			break
		}
	}
	if tokenizer.inComment {
		return nil, makeError(UnclosedComment, tokenizer.commentPos, "comment is never closed")
	}
	return tokenizer.tokens, nil
}

func (tokenizer *Tokenizer) parseLine(line []byte) error {
	for {
		if tokenizer.inComment && !tokenizer.lookForwardForMatchingMultipleLineComment(line) {
			return nil
		}
		tokenizer.trimSpace(line)
		if !tokenizer.hasRemainCharacters(line) {
			return nil
		}
		token, err := tokenizer.getNextToken(line)
		if err != nil {
			return err
		}
		// Comments produce no token.
		if token == nil {
			continue
		}
		tokenizer.tokens = append(tokenizer.tokens, token)
	}
}

// getNextToken returns the next token from line. A nil token without error means
// a comment was skipped.
func (tokenizer *Tokenizer) getNextToken(line []byte) (*Token, error) {
	b := line[tokenizer.currentPos]
	switch {
	case b == '/':
		return tokenizer.tokenCommentOrDivide(line)
	case b == '=' || b == '<' || b == '>':
		return tokenizer.tokenComparisonOrAssign(line)
	case util.IsSymbol(b):
		return tokenizer.tokenSimpleSymbol(line)
	case util.IsNumber(b):
		return tokenizer.tokenNumber(line)
	case util.IsLetterOrUnderscore(b):
		return tokenizer.toKeywordOrIdentifier(line)
	}
	return nil, makeError(UnknownCharacter, tokenizer.pos(), "unknown character %q", rune(b))
}

// trimSpace will step forward through line and skip all continuous space.
func (tokenizer *Tokenizer) trimSpace(line []byte) {
	for tokenizer.currentPos < len(line) && unicode.IsSpace(rune(line[tokenizer.currentPos])) {
		tokenizer.currentPos++
	}
}

func (tokenizer *Tokenizer) hasRemainCharacters(line []byte) bool {
	return tokenizer.currentPos < len(line)
}

func (tokenizer *Tokenizer) pos() Position {
	return Position{Line: tokenizer.currentLine, Column: tokenizer.currentPos + 1}
}

func (tokenizer *Tokenizer) makeToken(line []byte, startPos int, tp TokenType) *Token {
	return &Token{
		content:  string(line[startPos:tokenizer.currentPos]),
		line:     tokenizer.currentLine,
		startPos: startPos,
		endPos:   tokenizer.currentPos,
		tp:       tp,
	}
}

func (tokenizer *Tokenizer) tokenSimpleSymbol(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	return tokenizer.makeToken(line, startPos, simpleSymbolTokenTPMap[line[startPos]]), nil
}

func (tokenizer *Tokenizer) tokenComparisonOrAssign(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	followedByEqual := tokenizer.hasRemainCharacters(line) && line[tokenizer.currentPos] == '='
	if followedByEqual {
		tokenizer.currentPos++
	}
	var tp TokenType
	switch line[startPos] {
	case '=':
		tp = AssignTP
		if followedByEqual {
			tp = EqualTP
		}
	case '<':
		tp = LessTP
		if followedByEqual {
			tp = LessEqualTP
		}
	default:
		tp = GreaterTP
		if followedByEqual {
			tp = GreaterEqualTP
		}
	}
	return tokenizer.makeToken(line, startPos, tp), nil
}

func (tokenizer *Tokenizer) tokenCommentOrDivide(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	if !tokenizer.hasRemainCharacters(line) {
		return tokenizer.makeToken(line, startPos, DivideTP), nil
	}
	switch line[tokenizer.currentPos] {
	case '/':
		// The rest of the line is a comment.
		tokenizer.currentPos = len(line)
		return nil, nil
	case '*':
		tokenizer.currentPos++
		tokenizer.inComment = true
		tokenizer.commentPos = Position{Line: tokenizer.currentLine, Column: startPos + 1}
		return nil, nil
	}
	return tokenizer.makeToken(line, startPos, DivideTP), nil
}

// lookForwardForMatchingMultipleLineComment skips to the closing */ of the current comment.
// It returns false if the line ends first.
func (tokenizer *Tokenizer) lookForwardForMatchingMultipleLineComment(line []byte) bool {
	for tokenizer.currentPos < len(line)-1 {
		if line[tokenizer.currentPos] == '*' && line[tokenizer.currentPos+1] == '/' {
			tokenizer.currentPos += 2
			tokenizer.inComment = false
			return true
		}
		tokenizer.currentPos++
	}
	tokenizer.currentPos = len(line)
	return false
}

func (tokenizer *Tokenizer) tokenNumber(line []byte) (*Token, error) {
	// Look forward to find a continuous number
	startPos := tokenizer.currentPos
	for tokenizer.hasRemainCharacters(line) && util.IsNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	token := tokenizer.makeToken(line, startPos, IntegerTP)
	value, err := strconv.ParseInt(token.content, 10, 64)
	if err != nil || value > math.MaxInt32 {
		return nil, makeError(NumberOutOfRange, token.Pos(), "number %s does not fit in 32 bits", token.content)
	}
	token.value = int32(value)
	return token, nil
}

func (tokenizer *Tokenizer) toKeywordOrIdentifier(line []byte) (*Token, error) {
	// Look forward to find a continuous characters.
	startPos := tokenizer.currentPos
	for tokenizer.hasRemainCharacters(line) && util.IsLetterOrUnderscoreOrNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	token := tokenizer.makeToken(line, startPos, IdentifierTP)
	if keyWordTP, isKeyWord := keyWordTokenTPMap[token.content]; isKeyWord {
		token.tp = keyWordTP
	}
	return token, nil
}

func (tokenizer *Tokenizer) Reset() {
	tokenizer.currentPos, tokenizer.currentLine = 0, 0
	tokenizer.tokens = nil
	tokenizer.inComment, tokenizer.commentPos = false, Position{}
}
