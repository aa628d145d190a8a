package classfile

// Header values of every class file we produce.
const (
	Magic        uint32 = 0xCAFEBABE
	MinorVersion uint16 = 0
	MajorVersion uint16 = 0x003B
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagUtf8        Tag = 1  // CONSTANT_Utf8
	TagInteger     Tag = 3  // CONSTANT_Integer
	TagClass       Tag = 7  // CONSTANT_Class
	TagFieldref    Tag = 9  // CONSTANT_Fieldref
	TagMethodref   Tag = 10 // CONSTANT_Methodref
	TagNameAndType Tag = 12 // CONSTANT_NameAndType
)

var tagNames = map[Tag]string{
	TagUtf8:        "Utf8",
	TagInteger:     "Integer",
	TagClass:       "Class",
	TagFieldref:    "Fieldref",
	TagMethodref:   "Methodref",
	TagNameAndType: "NameAndType",
}

func (t Tag) String() string {
	name, ok := tagNames[t]
	if !ok {
		return "Unknown"
	}
	return name
}

// Access flags used for classes, fields and methods.
const (
	AccPublic uint16 = 0x0001
	AccStatic uint16 = 0x0008
	AccFinal  uint16 = 0x0010
)

// Well known names.
const (
	ObjectClass       = "java/lang/Object"
	InitName          = "<init>"
	InitDescriptor    = "()V"
	CodeAttr          = "Code"
	ConstantValueAttr = "ConstantValue"
	IntDescriptor     = "I"
)

// Opcode is a single JVM instruction opcode. Only the instructions the
// compiler emits are listed.
type Opcode byte

const (
	IConst0       Opcode = 0x03 // iconst_0
	IConst1       Opcode = 0x04 // iconst_1
	BiPush        Opcode = 0x10 // bipush
	SiPush        Opcode = 0x11 // sipush
	Ldc           Opcode = 0x12 // ldc
	LdcW          Opcode = 0x13 // ldc_w
	ILoad         Opcode = 0x15 // iload
	ILoad0        Opcode = 0x1a // iload_0
	ILoad1        Opcode = 0x1b // iload_1
	ILoad2        Opcode = 0x1c // iload_2
	ILoad3        Opcode = 0x1d // iload_3
	ALoad0        Opcode = 0x2a // aload_0
	IStore        Opcode = 0x36 // istore
	IStore0       Opcode = 0x3b // istore_0
	IStore1       Opcode = 0x3c // istore_1
	IStore2       Opcode = 0x3d // istore_2
	IStore3       Opcode = 0x3e // istore_3
	Pop           Opcode = 0x57 // pop
	IAdd          Opcode = 0x60 // iadd
	ISub          Opcode = 0x64 // isub
	IMul          Opcode = 0x68 // imul
	IDiv          Opcode = 0x6c // idiv
	IfICmpEq      Opcode = 0x9f // if_icmpeq
	IfICmpNe      Opcode = 0xa0 // if_icmpne
	IfICmpLt      Opcode = 0xa1 // if_icmplt
	IfICmpGe      Opcode = 0xa2 // if_icmpge
	IfICmpGt      Opcode = 0xa3 // if_icmpgt
	IfICmpLe      Opcode = 0xa4 // if_icmple
	Goto          Opcode = 0xa7 // goto
	IReturn       Opcode = 0xac // ireturn
	Return        Opcode = 0xb1 // return
	GetStatic     Opcode = 0xb2 // getstatic
	PutStatic     Opcode = 0xb3 // putstatic
	InvokeSpecial Opcode = 0xb7 // invokespecial
	InvokeStatic  Opcode = 0xb8 // invokestatic
	Wide          Opcode = 0xc4 // wide
)

// OperandKind describes the immediate operand that follows an opcode.
type OperandKind int

const (
	NoOperand        OperandKind = iota
	ByteOperand                  // signed u1, bipush
	ShortOperand                 // signed u2, sipush
	LocalOperand                 // u1 local slot, u2 after wide
	PoolByteOperand              // u1 constant pool index
	PoolShortOperand             // u2 constant pool index
	BranchOperand                // signed u2 offset relative to the opcode
	WideOperand                  // modified opcode followed by a u2 local slot
)

// Size returns the number of operand bytes of the kind, not counting the opcode.
func (kind OperandKind) Size() int {
	switch kind {
	case ByteOperand, LocalOperand, PoolByteOperand:
		return 1
	case ShortOperand, PoolShortOperand, BranchOperand:
		return 2
	case WideOperand:
		return 3
	}
	return 0
}

type opcodeInfo struct {
	name string
	kind OperandKind
}

var opcodeInfos = map[Opcode]opcodeInfo{
	IConst0:       {"iconst_0", NoOperand},
	IConst1:       {"iconst_1", NoOperand},
	BiPush:        {"bipush", ByteOperand},
	SiPush:        {"sipush", ShortOperand},
	Ldc:           {"ldc", PoolByteOperand},
	LdcW:          {"ldc_w", PoolShortOperand},
	ILoad:         {"iload", LocalOperand},
	ILoad0:        {"iload_0", NoOperand},
	ILoad1:        {"iload_1", NoOperand},
	ILoad2:        {"iload_2", NoOperand},
	ILoad3:        {"iload_3", NoOperand},
	ALoad0:        {"aload_0", NoOperand},
	IStore:        {"istore", LocalOperand},
	IStore0:       {"istore_0", NoOperand},
	IStore1:       {"istore_1", NoOperand},
	IStore2:       {"istore_2", NoOperand},
	IStore3:       {"istore_3", NoOperand},
	Pop:           {"pop", NoOperand},
	IAdd:          {"iadd", NoOperand},
	ISub:          {"isub", NoOperand},
	IMul:          {"imul", NoOperand},
	IDiv:          {"idiv", NoOperand},
	IfICmpEq:      {"if_icmpeq", BranchOperand},
	IfICmpNe:      {"if_icmpne", BranchOperand},
	IfICmpLt:      {"if_icmplt", BranchOperand},
	IfICmpGe:      {"if_icmpge", BranchOperand},
	IfICmpGt:      {"if_icmpgt", BranchOperand},
	IfICmpLe:      {"if_icmple", BranchOperand},
	Goto:          {"goto", BranchOperand},
	IReturn:       {"ireturn", NoOperand},
	Return:        {"return", NoOperand},
	GetStatic:     {"getstatic", PoolShortOperand},
	PutStatic:     {"putstatic", PoolShortOperand},
	InvokeSpecial: {"invokespecial", PoolShortOperand},
	InvokeStatic:  {"invokestatic", PoolShortOperand},
	Wide:          {"wide", WideOperand},
}

func (op Opcode) String() string {
	info, ok := opcodeInfos[op]
	if !ok {
		return "unknown"
	}
	return info.name
}

var opcodesByName = func() map[string]Opcode {
	ret := make(map[string]Opcode, len(opcodeInfos))
	for op, info := range opcodeInfos {
		ret[info.name] = op
	}
	return ret
}()

// LookupOpcode returns the opcode with the given mnemonic, like "iload_0".
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// Known reports whether op is one of the opcodes listed above.
func (op Opcode) Known() bool {
	_, ok := opcodeInfos[op]
	return ok
}

func (op Opcode) Operand() OperandKind {
	return opcodeInfos[op].kind
}

// Len returns the encoded length of the instruction, opcode included.
func (op Opcode) Len() int {
	return 1 + op.Operand().Size()
}

// IsBranch reports whether op carries a relative branch offset.
func (op Opcode) IsBranch() bool {
	return op.Operand() == BranchOperand
}

// ExpectedTag returns the constant pool tag an instruction operand must refer to.
func (op Opcode) ExpectedTag() (Tag, bool) {
	switch op {
	case Ldc, LdcW:
		return TagInteger, true
	case GetStatic, PutStatic:
		return TagFieldref, true
	case InvokeStatic, InvokeSpecial:
		return TagMethodref, true
	}
	return 0, false
}
