package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/xiaobogaga/javasst/classfile"
	"github.com/xiaobogaga/javasst/util"
)

const maxCodeLength = 0xFFFF

// codeGenerator translates the tree of one procedure into JVM bytecode. Every generate
// method returns the bytes of its node, so a branch can learn the length of the code it
// jumps over before writing its offset.
type codeGenerator struct {
	class *Class
	pool  *ConstantPool
	proc  *Decl
	// slots maps parameters and local variables to JVM local variable slots.
	slots map[DeclID]int
}

// generateProcedureCode lays out the locals of a procedure and generates its Code attribute.
// Methods are static so there is no this slot: parameters take slots 0..p-1 and local
// variables p..p+l-1, both in declaration order.
func generateProcedureCode(class *Class, pool *ConstantPool, procID DeclID) (*classfile.Code, error) {
	proc := class.Decl(procID)
	gen := &codeGenerator{class: class, pool: pool, proc: proc, slots: map[DeclID]int{}}
	for slot, id := range class.Table(proc.Locals).Decls {
		gen.slots[id] = slot
	}
	code, err := gen.generateSeq(proc.Body)
	if err != nil {
		return nil, err
	}
	maxStack := gen.seqStack(proc.Body)
	// The tail only goes in when control can reach the end of the body, otherwise it would
	// be dead code after the last return.
	if canCompleteNormally(proc.Body) {
		if proc.Type == VoidType {
			code = append(code, byte(classfile.Return))
		} else {
			code = append(code, byte(classfile.IConst0), byte(classfile.IReturn))
			maxStack = maxInt(maxStack, 1)
		}
	}
	if len(code) > maxCodeLength {
		return nil, makeNamedError(MethodTooLong, proc.Pos, proc.Name, "code of method %s is %d bytes long",
			proc.Name, len(code))
	}
	return &classfile.Code{
		MaxStack:  uint16(maxStack),
		MaxLocals: uint16(len(gen.slots)),
		Code:      code,
	}, nil
}

// generateConstructorCode builds the body of <init>()V:
//
//	aload_0
//	invokespecial java/lang/Object.<init>()V
//	push value; putstatic K    for every constant K
//	return
func generateConstructorCode(class *Class, pool *ConstantPool) (*classfile.Code, error) {
	gen := &codeGenerator{class: class, pool: pool}
	code := []byte{byte(classfile.ALoad0)}
	code = appendPoolOp(code, classfile.InvokeSpecial, pool.ObjectInit())
	for _, id := range class.Constants() {
		push, err := gen.generateConst(class.Decl(id).Value, class.Decl(id).Pos)
		if err != nil {
			return nil, err
		}
		ref, err := gen.ref(id)
		if err != nil {
			return nil, err
		}
		code = append(code, push...)
		code = appendPoolOp(code, classfile.PutStatic, ref)
	}
	code = append(code, byte(classfile.Return))
	if len(code) > maxCodeLength {
		return nil, makeError(MethodTooLong, class.Pos, "code of %s is %d bytes long", classfile.InitName, len(code))
	}
	return &classfile.Code{MaxStack: 1, MaxLocals: 1, Code: code}, nil
}

func (gen *codeGenerator) generateSeq(seq *SeqNode) ([]byte, error) {
	var code []byte
	if seq == nil {
		return code, nil
	}
	for _, stmt := range seq.Stmts {
		stmtCode, err := gen.generateStmt(stmt)
		if err != nil {
			return nil, err
		}
		code = append(code, stmtCode...)
		if len(code) > maxCodeLength {
			return nil, makeNamedError(MethodTooLong, stmt.Position(), gen.proc.Name,
				"code of method %s exceeds %d bytes", gen.proc.Name, maxCodeLength)
		}
	}
	return code, nil
}

func (gen *codeGenerator) generateStmt(stmt Node) ([]byte, error) {
	switch n := stmt.(type) {
	case *BinaryNode:
		if n.Op == AssignOp {
			return gen.generateAssign(n)
		}
	case *CallNode:
		code, err := gen.generateCall(n)
		if err != nil {
			return nil, err
		}
		// A call used as a statement must not leave its result on the stack.
		if gen.class.Decl(n.Proc).Type != VoidType {
			code = append(code, byte(classfile.Pop))
		}
		return code, nil
	case *UnaryNode:
		return gen.generateReturn(n)
	case *IfNode:
		return gen.generateIf(n)
	case *WhileNode:
		return gen.generateWhile(n)
	case *SeqNode:
		return gen.generateSeq(n)
	}
	return nil, fmt.Errorf("emitter: unexpected statement %T at %s", stmt, stmt.Position())
}

// For assignment: x = expression
// generate code for the expression first, then store the value to a local slot or a static field.
func (gen *codeGenerator) generateAssign(n *BinaryNode) ([]byte, error) {
	code, err := gen.generateExpr(n.Right)
	if err != nil {
		return nil, err
	}
	target := n.Left.(*IdentNode)
	if slot, isLocal := gen.slots[target.Decl]; isLocal {
		return appendLocalOp(code, classfile.IStore, slot), nil
	}
	ref, err := gen.ref(target.Decl)
	if err != nil {
		return nil, err
	}
	return appendPoolOp(code, classfile.PutStatic, ref), nil
}

func (gen *codeGenerator) generateReturn(n *UnaryNode) ([]byte, error) {
	if n.Operand == nil {
		return []byte{byte(classfile.Return)}, nil
	}
	code, err := gen.generateExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	return append(code, byte(classfile.IReturn)), nil
}

// If statement. The condition is compared against 1, a jump means the condition holds:
//
//	iconst_1
//	condition
//	if_icmpeq then          +(elseLen+6)
//	else branch
//	goto end                +(thenLen+3)
//	then: then branch
//	end:
//
// When the else branch can not complete normally the goto is never reached and is left out,
// the first jump then skips elseLen+3 bytes.
func (gen *codeGenerator) generateIf(n *IfNode) ([]byte, error) {
	cond, err := gen.generateExpr(n.Cond)
	if err != nil {
		return nil, err
	}
	thenCode, err := gen.generateSeq(n.Then)
	if err != nil {
		return nil, err
	}
	elseCode, err := gen.generateSeq(n.Else)
	if err != nil {
		return nil, err
	}
	needGoto := canCompleteNormally(n.Else)
	skipElse := len(elseCode) + 3
	if needGoto {
		skipElse += 3
	}
	code := append([]byte{byte(classfile.IConst1)}, cond...)
	code, err = appendBranch(code, classfile.IfICmpEq, skipElse, n.Pos)
	if err != nil {
		return nil, err
	}
	code = append(code, elseCode...)
	if needGoto {
		code, err = appendBranch(code, classfile.Goto, len(thenCode)+3, n.Pos)
		if err != nil {
			return nil, err
		}
	}
	return append(code, thenCode...), nil
}

// While statement. The condition is compared against 0, a jump means the loop is done:
//
//	start: iconst_0
//	condition
//	if_icmpeq end           +(bodyLen+6)
//	body
//	goto start              -(bodyLen+3+condLen+1)
//	end:
func (gen *codeGenerator) generateWhile(n *WhileNode) ([]byte, error) {
	cond, err := gen.generateExpr(n.Cond)
	if err != nil {
		return nil, err
	}
	body, err := gen.generateSeq(n.Body)
	if err != nil {
		return nil, err
	}
	code := append([]byte{byte(classfile.IConst0)}, cond...)
	code, err = appendBranch(code, classfile.IfICmpEq, len(body)+6, n.Pos)
	if err != nil {
		return nil, err
	}
	code = append(code, body...)
	return appendBranch(code, classfile.Goto, -(len(body) + 3 + len(cond) + 1), n.Pos)
}

var comparisonOpcodes = map[BinaryOp]classfile.Opcode{
	EqOp: classfile.IfICmpEq,
	LtOp: classfile.IfICmpLt,
	LeOp: classfile.IfICmpLe,
	GtOp: classfile.IfICmpGt,
	GeOp: classfile.IfICmpGe,
}

var arithmeticOpcodes = map[BinaryOp]classfile.Opcode{
	AddOp: classfile.IAdd,
	SubOp: classfile.ISub,
	MulOp: classfile.IMul,
	DivOp: classfile.IDiv,
}

func (gen *codeGenerator) generateExpr(expr Node) ([]byte, error) {
	switch n := expr.(type) {
	case *ConstNode:
		return gen.generateConst(n.Value, n.Pos)
	case *IdentNode:
		return gen.generateIdent(n)
	case *CallNode:
		return gen.generateCall(n)
	case *BinaryNode:
		return gen.generateBinary(n)
	}
	return nil, fmt.Errorf("emitter: unexpected expression %T at %s", expr, expr.Position())
}

// Comparison leaves 0 or 1 on the stack:
//
//	left
//	right
//	if_icmp<op> +7
//	iconst_0
//	goto +4
//	iconst_1
func (gen *codeGenerator) generateBinary(n *BinaryNode) ([]byte, error) {
	code, err := gen.generateExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := gen.generateExpr(n.Right)
	if err != nil {
		return nil, err
	}
	code = append(code, right...)
	if op, ok := arithmeticOpcodes[n.Op]; ok {
		return append(code, byte(op)), nil
	}
	op, ok := comparisonOpcodes[n.Op]
	if !ok {
		return nil, fmt.Errorf("emitter: unexpected operator %s at %s", n.Op, n.Pos)
	}
	code = appendU2Op(code, op, 7)
	code = append(code, byte(classfile.IConst0))
	code = appendU2Op(code, classfile.Goto, 4)
	return append(code, byte(classfile.IConst1)), nil
}

// generateIdent loads a local, reads a static field, or inlines the value of a constant.
func (gen *codeGenerator) generateIdent(n *IdentNode) ([]byte, error) {
	decl := gen.class.Decl(n.Decl)
	if decl.Kind == ConstantDecl {
		return gen.generateConst(decl.Value, n.Pos)
	}
	if slot, isLocal := gen.slots[n.Decl]; isLocal {
		return appendLocalOp(nil, classfile.ILoad, slot), nil
	}
	ref, err := gen.ref(n.Decl)
	if err != nil {
		return nil, err
	}
	return appendPoolOp(nil, classfile.GetStatic, ref), nil
}

func (gen *codeGenerator) generateCall(n *CallNode) ([]byte, error) {
	var code []byte
	for _, arg := range n.Args {
		argCode, err := gen.generateExpr(arg)
		if err != nil {
			return nil, err
		}
		code = append(code, argCode...)
	}
	ref, err := gen.ref(n.Proc)
	if err != nil {
		return nil, err
	}
	return appendPoolOp(code, classfile.InvokeStatic, ref), nil
}

// generateConst pushes an int: bipush for -128..127, sipush for -32767..32767 and ldc, or
// ldc_w for pool indices above 255, for everything else.
func (gen *codeGenerator) generateConst(v int32, pos Position) ([]byte, error) {
	switch {
	case util.FitsInt8(v):
		return []byte{byte(classfile.BiPush), byte(int8(v))}, nil
	case util.FitsSiPush(v):
		return appendU2Op(nil, classfile.SiPush, uint16(int16(v))), nil
	}
	index, ok := gen.pool.Integer(v)
	if !ok {
		return nil, fmt.Errorf("emitter: literal %d at %s has no constant pool entry", v, pos)
	}
	if index <= 0xFF {
		return []byte{byte(classfile.Ldc), byte(index)}, nil
	}
	return appendPoolOp(nil, classfile.LdcW, index), nil
}

func (gen *codeGenerator) ref(id DeclID) (uint16, error) {
	ref, ok := gen.pool.Ref(id)
	if !ok {
		return 0, fmt.Errorf("emitter: %s has no constant pool reference", gen.class.Decl(id).Name)
	}
	return ref, nil
}

// Stack depth. The numbers below are the highest operand stack depth reached while a node
// runs, starting from an empty stack.

func (gen *codeGenerator) seqStack(seq *SeqNode) int {
	depth := 0
	if seq == nil {
		return depth
	}
	for _, stmt := range seq.Stmts {
		depth = maxInt(depth, gen.stmtStack(stmt))
	}
	return depth
}

func (gen *codeGenerator) stmtStack(stmt Node) int {
	switch n := stmt.(type) {
	case *BinaryNode:
		return gen.exprStack(n.Right)
	case *CallNode:
		return gen.exprStack(n)
	case *UnaryNode:
		if n.Operand == nil {
			return 0
		}
		return gen.exprStack(n.Operand)
	case *IfNode:
		return maxInt(1+gen.exprStack(n.Cond), maxInt(gen.seqStack(n.Then), gen.seqStack(n.Else)))
	case *WhileNode:
		return maxInt(1+gen.exprStack(n.Cond), gen.seqStack(n.Body))
	case *SeqNode:
		return gen.seqStack(n)
	}
	return 0
}

func (gen *codeGenerator) exprStack(expr Node) int {
	switch n := expr.(type) {
	case *ConstNode, *IdentNode:
		return 1
	case *BinaryNode:
		// A comparison pushes its 0 or 1 after both operands are popped.
		return maxInt(gen.exprStack(n.Left), 1+gen.exprStack(n.Right))
	case *CallNode:
		depth := 0
		for i, arg := range n.Args {
			depth = maxInt(depth, i+gen.exprStack(arg))
		}
		if gen.class.Decl(n.Proc).Type != VoidType {
			depth = maxInt(depth, 1)
		}
		return depth
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Byte helpers. Multi byte operands are big endian.

func appendU2Op(code []byte, op classfile.Opcode, operand uint16) []byte {
	code = append(code, byte(op))
	return binary.BigEndian.AppendUint16(code, operand)
}

func appendPoolOp(code []byte, op classfile.Opcode, index uint16) []byte {
	return appendU2Op(code, op, index)
}

// appendBranch writes a branch whose offset is relative to the branch opcode itself.
func appendBranch(code []byte, op classfile.Opcode, offset int, pos Position) ([]byte, error) {
	if !util.FitsInt16(int64(offset)) {
		return nil, makeError(BranchOffsetOutOfRange, pos, "%s offset %d does not fit in 16 bits", op, offset)
	}
	return appendU2Op(code, op, uint16(int16(offset))), nil
}

var shortLoads = [...]classfile.Opcode{classfile.ILoad0, classfile.ILoad1, classfile.ILoad2, classfile.ILoad3}
var shortStores = [...]classfile.Opcode{classfile.IStore0, classfile.IStore1, classfile.IStore2, classfile.IStore3}

// appendLocalOp writes iload or istore, using the one byte forms for slots 0..3 and wide
// for slots above 255.
func appendLocalOp(code []byte, op classfile.Opcode, slot int) []byte {
	switch {
	case slot <= 3 && op == classfile.ILoad:
		return append(code, byte(shortLoads[slot]))
	case slot <= 3:
		return append(code, byte(shortStores[slot]))
	case slot <= 0xFF:
		return append(code, byte(op), byte(slot))
	}
	code = append(code, byte(classfile.Wide), byte(op))
	return binary.BigEndian.AppendUint16(code, uint16(slot))
}
