package internal

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step an error was raised in.
type Stage int

const (
	ParseStage Stage = iota
	ResolveStage
	SemanticStage
	EmitStage
)

func (s Stage) String() string {
	switch s {
	case ParseStage:
		return "parser"
	case ResolveStage:
		return "resolver"
	case SemanticStage:
		return "semantic"
	case EmitStage:
		return "emitter"
	}
	return "unknown"
}

type ErrorKind int

const (
	UnknownCharacter       ErrorKind = iota // parse
	NumberOutOfRange                        // parse
	UnclosedComment                         // parse
	UnexpectedToken                         // parse
	UnexpectedEOF                           // parse
	BadCondition                            // parse
	Redefinition                            // parse
	NonConstantInitializer                  // parse
	ConstantDivisionByZero                  // parse
	UndefinedName                           // resolve
	NoMatchingProcedure                     // resolve
	InvalidOperation                        // semantic
	ArgumentMustYieldValue                  // semantic
	AssignToFinal                           // semantic
	MissingReturnValue                      // semantic
	UnexpectedReturnValue                   // semantic
	UnreachableCode                         // semantic
	MissingReturn                           // semantic
	MaybeUninitialized                      // semantic
	ConstantPoolOverflow                    // emit
	MethodTooLong                           // emit
	BranchOffsetOutOfRange                  // emit
)

var errorKindNames = [...]string{
	UnknownCharacter:       "UnknownCharacter",
	NumberOutOfRange:       "NumberOutOfRange",
	UnclosedComment:        "UnclosedComment",
	UnexpectedToken:        "UnexpectedToken",
	UnexpectedEOF:          "UnexpectedEOF",
	BadCondition:           "BadCondition",
	Redefinition:           "Redefinition",
	NonConstantInitializer: "NonConstantInitializer",
	ConstantDivisionByZero: "ConstantDivisionByZero",
	UndefinedName:          "UndefinedName",
	NoMatchingProcedure:    "NoMatchingProcedure",
	InvalidOperation:       "InvalidOperation",
	ArgumentMustYieldValue: "ArgumentMustYieldValue",
	AssignToFinal:          "AssignToFinal",
	MissingReturnValue:     "MissingReturnValue",
	UnexpectedReturnValue:  "UnexpectedReturnValue",
	UnreachableCode:        "UnreachableCode",
	MissingReturn:          "MissingReturn",
	MaybeUninitialized:     "MaybeUninitialized",
	ConstantPoolOverflow:   "ConstantPoolOverflow",
	MethodTooLong:          "MethodTooLong",
	BranchOffsetOutOfRange: "BranchOffsetOutOfRange",
}

func (k ErrorKind) String() string {
	if int(k) < 0 || int(k) >= len(errorKindNames) {
		return "Unknown"
	}
	return errorKindNames[k]
}

// Stage returns the pipeline step that raises errors of kind k.
func (k ErrorKind) Stage() Stage {
	switch {
	case k <= ConstantDivisionByZero:
		return ParseStage
	case k <= NoMatchingProcedure:
		return ResolveStage
	case k <= MaybeUninitialized:
		return SemanticStage
	}
	return EmitStage
}

// Position is a 1-based source location. The zero value means unknown.
type Position struct {
	Line   int
	Column int
}

func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// CompileError is the single error a compilation stops at.
type CompileError struct {
	Kind ErrorKind
	Msg  string
	// Name is the identifier the error is about, if any.
	Name string
	Pos  Position
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s error at line %d, column %d: %s", e.Kind, e.Kind.Stage(), e.Pos.Line,
			e.Pos.Column, e.Msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Kind, e.Kind.Stage(), e.Msg)
}

func makeError(kind ErrorKind, pos Position, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func makeNamedError(kind ErrorKind, pos Position, name string, format string, args ...interface{}) *CompileError {
	err := makeError(kind, pos, format, args...)
	err.Name = name
	return err
}

// KindOf returns the kind of a compile error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return compileErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a compile error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
