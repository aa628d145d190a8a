package assembler

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xiaobogaga/javasst/classfile"
	"github.com/xiaobogaga/javasst/util"
)

// A small assembler for the JVM instructions the compiler emits. It reads a listing with one
// instruction per line and produces the code array of a Code attribute.
//
// A line is one of:
// * mnemonic [operand], like `bipush 7`, `iload 4`, `ldc #12` or `putstatic #8`. Pool operands
//   start with #.
// * `wide iload 300` or `wide istore 300` for local slots above 255.
// * a branch, `goto label` or `if_icmpeq 12`. The target is a label or the absolute pc of an
//   instruction, which is what Instruction.String prints. Labels can be used before they are
//   declared.
// * a label declaration, `label:`.
// Everything after // is a comment.

type Assembler struct {
	line             int
	currentPC        int
	labelLocationMap map[string]int
	targets          []branchTarget
	commands         []Command
}

// branchTarget is a branch whose offset is known only after every label is declared.
type branchTarget struct {
	label   string
	pc      int
	command int
	line    int
}

// Command is one parsed instruction. Operand holds the immediate value, the pool index, the
// local slot or, for branches, the offset relative to PC.
type Command struct {
	Op              classfile.Opcode
	Wide            bool
	Operand         int
	PC              int
	Line            int
	OriginalContent string
}

func (command Command) String() string {
	return fmt.Sprintf("Command: {Op: %s, Wide: %t, Operand: %d, PC: %d, Line: %d, OriginalContent: %s}",
		command.Op, command.Wide, command.Operand, command.PC, command.Line, command.OriginalContent)
}

func (command Command) Len() int {
	if command.Wide {
		return classfile.Wide.Len()
	}
	return command.Op.Len()
}

func CreateAssembler() *Assembler {
	return &Assembler{
		line:             1,
		labelLocationMap: map[string]int{},
	}
}

// Assemble parses the listing and encodes it.
func Assemble(rd io.Reader) ([]byte, error) {
	asm := CreateAssembler()
	commands, err := asm.Parse(rd)
	if err != nil {
		return nil, err
	}
	return Encode(commands), nil
}

// Disassemble writes code as a listing Assemble accepts, one instruction per line.
func Disassemble(code []byte) (string, error) {
	instructions, err := classfile.Decode(code)
	if err != nil {
		return "", err
	}
	bf := bytes.Buffer{}
	for _, ins := range instructions {
		bf.WriteString(ins.String())
		bf.WriteByte('\n')
	}
	return bf.String(), nil
}

// Parse reads the whole listing. Branch offsets are filled in once every label is known.
func (asm *Assembler) Parse(rd io.Reader) ([]Command, error) {
	bfReader := bufio.NewReader(rd)
	for {
		line, err := bfReader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		trimmed, hasRemainCharacter := asm.trimLine(line)
		if hasRemainCharacter {
			transformErr := asm.transformLine(trimmed)
			if transformErr != nil {
				return nil, transformErr
			}
		}
		if err == io.EOF {
			break
		}
		asm.line++
	}
	err := asm.updateBranchTargets()
	if err != nil {
		return nil, err
	}
	return asm.commands, nil
}

// updateBranchTargets turns branch targets into offsets. A target must be the start of an
// instruction.
func (asm *Assembler) updateBranchTargets() error {
	boundaries := map[int]bool{}
	for _, command := range asm.commands {
		boundaries[command.PC] = true
	}
	for _, target := range asm.targets {
		targetPC := target.pc
		if target.label != "" {
			pc, exist := asm.labelLocationMap[target.label]
			if !exist {
				return asm.makeSyntaxErrAtSpecificLine(target.line, fmt.Sprintf("undefined label %s", target.label))
			}
			targetPC = pc
		}
		if !boundaries[targetPC] {
			return asm.makeSyntaxErrAtSpecificLine(target.line, fmt.Sprintf("branch target %d is not an instruction", targetPC))
		}
		command := &asm.commands[target.command]
		offset := targetPC - command.PC
		if !util.FitsInt16(int64(offset)) {
			return asm.makeSyntaxErrAtSpecificLine(target.line, fmt.Sprintf("branch offset %d out of range", offset))
		}
		command.Operand = offset
	}
	return nil
}

// trimLine removes spaces and comments, then reports whether anything is left.
func (asm *Assembler) trimLine(line []byte) ([]byte, bool) {
	index := bytes.Index(line, []byte("//"))
	if index != -1 {
		line = line[:index]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	return line, true
}

func (asm *Assembler) transformLine(line []byte) error {
	if line[len(line)-1] == ':' {
		return asm.transformLabelCommand(line[:len(line)-1])
	}
	return asm.transformInstruction(string(line))
}

var labelFormat = regexp.MustCompile("^[a-zA-Z_.$][0-9a-zA-Z_.$]*$")

// transformLabelCommand remembers the pc of the next instruction under the label name.
func (asm *Assembler) transformLabelCommand(line []byte) error {
	label := string(line)
	if !labelFormat.MatchString(label) {
		return asm.makeSyntaxErr("wrong label format")
	}
	_, exist := asm.labelLocationMap[label]
	if exist {
		return asm.makeSyntaxErr("found duplicate label")
	}
	asm.labelLocationMap[label] = asm.currentPC
	return nil
}

func (asm *Assembler) transformInstruction(line string) error {
	fields := strings.Fields(line)
	command := Command{PC: asm.currentPC, Line: asm.line, OriginalContent: line}
	op, ok := classfile.LookupOpcode(fields[0])
	if !ok {
		return asm.makeSyntaxErr(fmt.Sprintf("unknown instruction %s", fields[0]))
	}
	if op == classfile.Wide {
		return asm.transformWideCommand(command, fields[1:])
	}
	command.Op = op
	operands := fields[1:]
	if op.Operand() == classfile.NoOperand {
		if len(operands) != 0 {
			return asm.makeSyntaxErr(fmt.Sprintf("%s takes no operand", op))
		}
		return asm.addCommand(command)
	}
	if len(operands) != 1 {
		return asm.makeSyntaxErr(fmt.Sprintf("%s takes exactly one operand", op))
	}
	operand := operands[0]
	var err error
	switch op.Operand() {
	case classfile.ByteOperand:
		command.Operand, err = asm.parseInteger(operand, -128, 127)
	case classfile.ShortOperand:
		command.Operand, err = asm.parseInteger(operand, -32768, 32767)
	case classfile.LocalOperand:
		command.Operand, err = asm.parseInteger(operand, 0, 0xFF)
	case classfile.PoolByteOperand:
		command.Operand, err = asm.parsePoolIndex(operand, 0xFF)
	case classfile.PoolShortOperand:
		command.Operand, err = asm.parsePoolIndex(operand, 0xFFFF)
	case classfile.BranchOperand:
		err = asm.addBranchTarget(operand)
	}
	if err != nil {
		return err
	}
	return asm.addCommand(command)
}

// wide iload|istore index
func (asm *Assembler) transformWideCommand(command Command, fields []string) error {
	if len(fields) != 2 {
		return asm.makeSyntaxErr("wide takes an instruction and a local index")
	}
	op, ok := classfile.LookupOpcode(fields[0])
	if !ok || (op != classfile.ILoad && op != classfile.IStore) {
		return asm.makeSyntaxErr(fmt.Sprintf("wide cannot modify %s", fields[0]))
	}
	index, err := asm.parseInteger(fields[1], 0, 0xFFFF)
	if err != nil {
		return err
	}
	command.Op, command.Wide, command.Operand = op, true, index
	return asm.addCommand(command)
}

func (asm *Assembler) addCommand(command Command) error {
	asm.commands = append(asm.commands, command)
	asm.currentPC += command.Len()
	return nil
}

// addBranchTarget records the target of the branch that is about to be added.
func (asm *Assembler) addBranchTarget(operand string) error {
	target := branchTarget{command: len(asm.commands), line: asm.line}
	if labelFormat.MatchString(operand) {
		target.label = operand
	} else {
		pc, err := asm.parseInteger(operand, 0, 0xFFFF)
		if err != nil {
			return err
		}
		target.pc = pc
	}
	asm.targets = append(asm.targets, target)
	return nil
}

func (asm *Assembler) parseInteger(s string, min, max int) (int, error) {
	value, err := strconv.Atoi(s)
	if err != nil {
		return 0, asm.makeSyntaxErr(fmt.Sprintf("wrong decimal value format %s", s))
	}
	if value < min || value > max {
		return 0, asm.makeSyntaxErr(fmt.Sprintf("value %d out of range %d..%d", value, min, max))
	}
	return value, nil
}

func (asm *Assembler) parsePoolIndex(s string, max int) (int, error) {
	if !strings.HasPrefix(s, "#") {
		return 0, asm.makeSyntaxErr(fmt.Sprintf("constant pool index must start with #, found %s", s))
	}
	return asm.parseInteger(s[1:], 1, max)
}

// Encode writes commands as a code array.
func Encode(commands []Command) []byte {
	var code []byte
	for _, command := range commands {
		if command.Wide {
			code = append(code, byte(classfile.Wide), byte(command.Op))
			code = binary.BigEndian.AppendUint16(code, uint16(command.Operand))
			continue
		}
		code = append(code, byte(command.Op))
		switch command.Op.Operand() {
		case classfile.ByteOperand, classfile.LocalOperand, classfile.PoolByteOperand:
			code = append(code, byte(command.Operand))
		case classfile.ShortOperand, classfile.PoolShortOperand, classfile.BranchOperand:
			code = binary.BigEndian.AppendUint16(code, uint16(command.Operand))
		}
	}
	return code
}

func (asm *Assembler) makeSyntaxErr(msg string) error {
	return errors.New(fmt.Sprintf("syntax err at line %d: %s", asm.line, msg))
}

func (asm *Assembler) makeSyntaxErrAtSpecificLine(line int, msg string) error {
	return errors.New(fmt.Sprintf("syntax err at line %d: %s", line, msg))
}

func (asm *Assembler) convertCommandsToString() string {
	bf := bytes.Buffer{}
	for _, command := range asm.commands {
		bf.WriteString(fmt.Sprintf("%s\n", command))
	}
	return bf.String()
}
