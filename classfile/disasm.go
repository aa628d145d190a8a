package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Instruction is one decoded instruction. For wide instructions Op holds the
// modified opcode and Wide is set.
type Instruction struct {
	PC      int
	Op      Opcode
	Operand int
	Wide    bool
	Len     int
}

// Target returns the absolute branch target of a branch instruction.
func (ins Instruction) Target() int {
	return ins.PC + ins.Operand
}

func (ins Instruction) String() string {
	switch {
	case ins.Wide:
		return fmt.Sprintf("wide %s %d", ins.Op, ins.Operand)
	case ins.Op.IsBranch():
		return fmt.Sprintf("%s %d", ins.Op, ins.Target())
	case ins.Op.Operand() == PoolByteOperand || ins.Op.Operand() == PoolShortOperand:
		return fmt.Sprintf("%s #%d", ins.Op, ins.Operand)
	case ins.Op.Operand() == NoOperand:
		return ins.Op.String()
	}
	return fmt.Sprintf("%s %d", ins.Op, ins.Operand)
}

// Decode splits a code array into instructions.
func Decode(code []byte) ([]Instruction, error) {
	var instructions []Instruction
	for pc := 0; pc < len(code); {
		op := Opcode(code[pc])
		if !op.Known() {
			return nil, fmt.Errorf("classfile: unknown opcode 0x%02x at pc %d", byte(op), pc)
		}
		ins := Instruction{PC: pc, Op: op, Len: op.Len()}
		if pc+ins.Len > len(code) {
			return nil, fmt.Errorf("classfile: truncated %s at pc %d", op, pc)
		}
		operand := code[pc+1 : pc+ins.Len]
		switch op.Operand() {
		case ByteOperand:
			ins.Operand = int(int8(operand[0]))
		case LocalOperand, PoolByteOperand:
			ins.Operand = int(operand[0])
		case ShortOperand, BranchOperand:
			ins.Operand = int(int16(binary.BigEndian.Uint16(operand)))
		case PoolShortOperand:
			ins.Operand = int(binary.BigEndian.Uint16(operand))
		case WideOperand:
			modified := Opcode(operand[0])
			if modified != ILoad && modified != IStore {
				return nil, fmt.Errorf("classfile: wide cannot modify %s at pc %d", modified, pc)
			}
			ins.Op, ins.Wide = modified, true
			ins.Operand = int(binary.BigEndian.Uint16(operand[1:]))
		}
		instructions = append(instructions, ins)
		pc += ins.Len
	}
	return instructions, nil
}

// Verify performs the structural checks javap would trip over: every pool
// reference points to an entry of the expected tag, every branch lands on an
// instruction boundary inside its method and no method can run off the end
// of its code.
func Verify(f *File) error {
	if f.MajorVersion != MajorVersion || f.MinorVersion != MinorVersion {
		return fmt.Errorf("classfile: unexpected version %d.%d", f.MajorVersion, f.MinorVersion)
	}
	for i, c := range f.Pool {
		var err error
		switch c.Tag {
		case TagClass:
			err = f.expectTag(c.Index1, TagUtf8)
		case TagNameAndType:
			if err = f.expectTag(c.Index1, TagUtf8); err == nil {
				err = f.expectTag(c.Index2, TagUtf8)
			}
		case TagFieldref, TagMethodref:
			if err = f.expectTag(c.Index1, TagClass); err == nil {
				err = f.expectTag(c.Index2, TagNameAndType)
			}
		}
		if err != nil {
			return fmt.Errorf("classfile: constant #%d: %w", i+1, err)
		}
	}
	if err := f.expectTag(f.ThisClass, TagClass); err != nil {
		return err
	}
	if err := f.expectTag(f.SuperClass, TagClass); err != nil {
		return err
	}
	for _, field := range f.Fields {
		if err := f.verifyMember(field); err != nil {
			return err
		}
		if attr, ok := f.Attribute(field, ConstantValueAttr); ok {
			if len(attr.Data) != 2 {
				return fmt.Errorf("classfile: ConstantValue of length %d", len(attr.Data))
			}
			if err := f.expectTag(binary.BigEndian.Uint16(attr.Data), TagInteger); err != nil {
				return err
			}
		}
	}
	for _, method := range f.Methods {
		if err := f.verifyMember(method); err != nil {
			return err
		}
		code, err := f.MethodCode(method)
		if err != nil {
			return err
		}
		name, _, _ := f.MemberName(method)
		if err = f.verifyCode(code); err != nil {
			return fmt.Errorf("classfile: method %s: %w", name, err)
		}
	}
	return nil
}

func (f *File) expectTag(index uint16, tag Tag) error {
	c, err := f.Constant(index)
	if err != nil {
		return err
	}
	if c.Tag != tag {
		return fmt.Errorf("classfile: entry #%d is %s, expected %s", index, c.Tag, tag)
	}
	return nil
}

func (f *File) verifyMember(m Member) error {
	if err := f.expectTag(m.NameIndex, TagUtf8); err != nil {
		return err
	}
	if err := f.expectTag(m.DescriptorIndex, TagUtf8); err != nil {
		return err
	}
	for _, attr := range m.Attributes {
		if err := f.expectTag(attr.NameIndex, TagUtf8); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) verifyCode(code *Code) error {
	if len(code.Code) == 0 {
		return fmt.Errorf("empty code")
	}
	instructions, err := Decode(code.Code)
	if err != nil {
		return err
	}
	boundaries := map[int]bool{}
	for _, ins := range instructions {
		boundaries[ins.PC] = true
	}
	for _, ins := range instructions {
		if tag, ok := ins.Op.ExpectedTag(); ok {
			if err := f.expectTag(uint16(ins.Operand), tag); err != nil {
				return fmt.Errorf("pc %d: %w", ins.PC, err)
			}
		}
		if ins.Op.Operand() == LocalOperand && ins.Operand >= int(code.MaxLocals) {
			return fmt.Errorf("pc %d: local %d outside max_locals %d", ins.PC, ins.Operand, code.MaxLocals)
		}
		if ins.Op.IsBranch() && !boundaries[ins.Target()] {
			return fmt.Errorf("pc %d: branch target %d is not an instruction", ins.PC, ins.Target())
		}
	}
	switch instructions[len(instructions)-1].Op {
	case Return, IReturn, Goto:
	default:
		return fmt.Errorf("code can fall off its end")
	}
	return nil
}

// Dump prints a javap -v like listing of f.
func Dump(w io.Writer, f *File, withCode bool) error {
	className, err := f.ClassName(f.ThisClass)
	if err != nil {
		return err
	}
	superName, err := f.ClassName(f.SuperClass)
	if err != nil {
		return err
	}
	out := &strings.Builder{}
	fmt.Fprintf(out, "class %s extends %s\n", className, superName)
	fmt.Fprintf(out, "  minor version: %d\n  major version: %d\n", f.MinorVersion, f.MajorVersion)
	fmt.Fprintf(out, "  flags: 0x%04x\n", f.AccessFlags)
	out.WriteString("Constant pool:\n")
	for i, c := range f.Pool {
		fmt.Fprintf(out, "  %5s = %-12s%s\n", fmt.Sprintf("#%d", i+1), c.Tag, f.describeConstant(c))
	}
	out.WriteString("{\n")
	for _, field := range f.Fields {
		name, descriptor, err := f.MemberName(field)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s %s;\n    descriptor: %s\n    flags: 0x%04x\n", flagsString(field.AccessFlags), name,
			descriptor, field.AccessFlags)
		if attr, ok := f.Attribute(field, ConstantValueAttr); ok && len(attr.Data) == 2 {
			value, _ := f.Constant(binary.BigEndian.Uint16(attr.Data))
			fmt.Fprintf(out, "    ConstantValue: int %d\n", value.Int)
		}
		out.WriteString("\n")
	}
	for _, method := range f.Methods {
		name, descriptor, err := f.MemberName(method)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s %s;\n    descriptor: %s\n    flags: 0x%04x\n", flagsString(method.AccessFlags), name,
			descriptor, method.AccessFlags)
		if withCode {
			code, err := f.MethodCode(method)
			if err != nil {
				return err
			}
			instructions, err := Decode(code.Code)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "    Code:\n      stack=%d, locals=%d\n", code.MaxStack, code.MaxLocals)
			for _, ins := range instructions {
				fmt.Fprintf(out, "      %4d: %s\n", ins.PC, ins)
			}
		}
		out.WriteString("\n")
	}
	out.WriteString("}\n")
	_, err = io.WriteString(w, out.String())
	return err
}

func (f *File) describeConstant(c Constant) string {
	switch c.Tag {
	case TagUtf8:
		return c.Utf8
	case TagInteger:
		return fmt.Sprintf("%d", c.Int)
	case TagClass:
		name, _ := f.Utf8At(c.Index1)
		return fmt.Sprintf("#%d // %s", c.Index1, name)
	case TagNameAndType:
		name, _ := f.Utf8At(c.Index1)
		descriptor, _ := f.Utf8At(c.Index2)
		return fmt.Sprintf("#%d:#%d // %s:%s", c.Index1, c.Index2, name, descriptor)
	case TagFieldref, TagMethodref:
		return fmt.Sprintf("#%d.#%d", c.Index1, c.Index2)
	}
	return ""
}

func flagsString(flags uint16) string {
	var parts []string
	if flags&AccPublic != 0 {
		parts = append(parts, "public")
	}
	if flags&AccStatic != 0 {
		parts = append(parts, "static")
	}
	if flags&AccFinal != 0 {
		parts = append(parts, "final")
	}
	return strings.Join(parts, " ")
}
