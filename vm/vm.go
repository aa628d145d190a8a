package vm

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"

	"github.com/xiaobogaga/javasst/classfile"
)

// A small stack machine that runs the classes the compiler produces. It understands the
// instructions listed in classfile and nothing else: static int fields, static int methods,
// the synthetic constructor and calls within the class.
//
// Every method invocation gets a frame with max_locals int slots and an operand stack that may
// not grow past max_stack. The constructor's `this` is a placeholder 0 since the machine has no
// objects.

var (
	ErrDivisionByZero = errors.New("vm: division by zero")
	ErrStepLimit      = errors.New("vm: step limit exceeded")
	ErrStackOverflow  = errors.New("vm: call depth exceeded")
	ErrNoSuchMethod   = errors.New("vm: no such method")
	ErrBadCode        = errors.New("vm: bad code")
)

const (
	DefaultMaxSteps = 10_000_000
	DefaultMaxDepth = 1000
)

type Options struct {
	// MaxSteps bounds the number of executed instructions over the lifetime of the machine.
	MaxSteps int
	MaxDepth int
	// Trace, when set, gets one line per executed instruction.
	Trace *log.Logger
}

type method struct {
	name         string
	descriptor   string
	params       int
	returnsInt   bool
	code         *classfile.Code
	instructions []classfile.Instruction
	pcIndex      map[int]int
}

type Machine struct {
	file      *classfile.File
	className string
	methods   map[string]*method
	statics   map[string]int32
	opts      Options
	steps     int
	depth     int
}

type frame struct {
	method *method
	locals []int32
	stack  []int32
}

// Load prepares f for execution. Static fields start at their ConstantValue or at 0.
func Load(f *classfile.File, opts Options) (*Machine, error) {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Trace == nil {
		opts.Trace = log.New(io.Discard, "", 0)
	}
	className, err := f.ClassName(f.ThisClass)
	if err != nil {
		return nil, err
	}
	m := &Machine{
		file:      f,
		className: className,
		methods:   map[string]*method{},
		statics:   map[string]int32{},
		opts:      opts,
	}
	for _, field := range f.Fields {
		name, _, err := f.MemberName(field)
		if err != nil {
			return nil, err
		}
		m.statics[name] = 0
		if attr, ok := f.Attribute(field, classfile.ConstantValueAttr); ok {
			value, err := m.constantValue(attr)
			if err != nil {
				return nil, fmt.Errorf("vm: field %s: %w", name, err)
			}
			m.statics[name] = value
		}
	}
	for _, member := range f.Methods {
		meth, err := m.loadMethod(member)
		if err != nil {
			return nil, err
		}
		m.methods[meth.name+meth.descriptor] = meth
	}
	return m, nil
}

func (m *Machine) constantValue(attr classfile.Attribute) (int32, error) {
	if len(attr.Data) != 2 {
		return 0, fmt.Errorf("%w: ConstantValue of length %d", ErrBadCode, len(attr.Data))
	}
	return m.integerAt(int(attr.Data[0])<<8 | int(attr.Data[1]))
}

func (m *Machine) loadMethod(member classfile.Member) (*method, error) {
	name, descriptor, err := m.file.MemberName(member)
	if err != nil {
		return nil, err
	}
	params, returnsInt, err := parseDescriptor(descriptor)
	if err != nil {
		return nil, fmt.Errorf("vm: method %s: %w", name, err)
	}
	code, err := m.file.MethodCode(member)
	if err != nil {
		return nil, fmt.Errorf("vm: method %s: %w", name, err)
	}
	instructions, err := classfile.Decode(code.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: method %s: %v", ErrBadCode, name, err)
	}
	meth := &method{
		name:         name,
		descriptor:   descriptor,
		params:       params,
		returnsInt:   returnsInt,
		code:         code,
		instructions: instructions,
		pcIndex:      make(map[int]int, len(instructions)),
	}
	for i, ins := range instructions {
		meth.pcIndex[ins.PC] = i
	}
	return meth, nil
}

// parseDescriptor accepts (I...)I and (I...)V.
func parseDescriptor(descriptor string) (int, bool, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return 0, false, fmt.Errorf("%w: descriptor %s", ErrBadCode, descriptor)
	}
	end := strings.IndexByte(descriptor, ')')
	if end < 0 {
		return 0, false, fmt.Errorf("%w: descriptor %s", ErrBadCode, descriptor)
	}
	params := descriptor[1:end]
	if strings.Trim(params, "I") != "" {
		return 0, false, fmt.Errorf("%w: descriptor %s", ErrBadCode, descriptor)
	}
	switch descriptor[end+1:] {
	case "I":
		return len(params), true, nil
	case "V":
		return len(params), false, nil
	}
	return 0, false, fmt.Errorf("%w: descriptor %s", ErrBadCode, descriptor)
}

func descriptorOf(params int, returnsInt bool) string {
	ret := "V"
	if returnsInt {
		ret = "I"
	}
	return "(" + strings.Repeat("I", params) + ")" + ret
}

// Invoke calls the static method name with the given arguments. A method returning int is
// preferred over a void one of the same arity; void methods yield 0.
func (m *Machine) Invoke(name string, args ...int32) (int32, error) {
	meth, ok := m.methods[name+descriptorOf(len(args), true)]
	if !ok {
		meth, ok = m.methods[name+descriptorOf(len(args), false)]
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s with %d argument(s)", ErrNoSuchMethod, name, len(args))
	}
	return m.call(meth, args)
}

// Construct runs the synthetic constructor, which stores every constant into its field.
func (m *Machine) Construct() error {
	meth, ok := m.methods[classfile.InitName+classfile.InitDescriptor]
	if !ok {
		return fmt.Errorf("%w: %s%s", ErrNoSuchMethod, classfile.InitName, classfile.InitDescriptor)
	}
	_, err := m.call(meth, []int32{0})
	return err
}

// Static returns the current value of a static field.
func (m *Machine) Static(name string) (int32, bool) {
	value, ok := m.statics[name]
	return value, ok
}

// SetStatic overwrites a static field.
func (m *Machine) SetStatic(name string, value int32) error {
	if _, ok := m.statics[name]; !ok {
		return fmt.Errorf("vm: no such field %s", name)
	}
	m.statics[name] = value
	return nil
}

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() int {
	return m.steps
}

func (m *Machine) call(meth *method, args []int32) (int32, error) {
	if m.depth >= m.opts.MaxDepth {
		return 0, fmt.Errorf("%w: %d frames", ErrStackOverflow, m.depth)
	}
	if len(args) > int(meth.code.MaxLocals) {
		return 0, fmt.Errorf("%w: %s needs %d locals, max_locals is %d", ErrBadCode, meth.name, len(args),
			meth.code.MaxLocals)
	}
	fr := &frame{
		method: meth,
		locals: make([]int32, meth.code.MaxLocals),
		stack:  make([]int32, 0, meth.code.MaxStack),
	}
	copy(fr.locals, args)
	m.depth++
	defer func() { m.depth-- }()
	return m.run(fr)
}

func (m *Machine) run(fr *frame) (int32, error) {
	meth := fr.method
	for i := 0; ; {
		if i >= len(meth.instructions) {
			return 0, fmt.Errorf("%w: %s falls off the end of its code", ErrBadCode, meth.name)
		}
		m.steps++
		if m.steps > m.opts.MaxSteps {
			return 0, fmt.Errorf("%w: %d", ErrStepLimit, m.opts.MaxSteps)
		}
		ins := meth.instructions[i]
		m.opts.Trace.Printf("vm: %s%s %4d: %-20s stack=%v", meth.name, meth.descriptor, ins.PC, ins, fr.stack)
		next := i + 1
		var err error
		switch ins.Op {
		case classfile.IConst0:
			err = fr.push(0)
		case classfile.IConst1:
			err = fr.push(1)
		case classfile.BiPush, classfile.SiPush:
			err = fr.push(int32(ins.Operand))
		case classfile.Ldc, classfile.LdcW:
			var value int32
			if value, err = m.integerAt(ins.Operand); err == nil {
				err = fr.push(value)
			}
		case classfile.ALoad0:
			err = fr.push(0)
		case classfile.ILoad, classfile.ILoad0, classfile.ILoad1, classfile.ILoad2, classfile.ILoad3:
			var value int32
			if value, err = fr.load(localIndex(ins)); err == nil {
				err = fr.push(value)
			}
		case classfile.IStore, classfile.IStore0, classfile.IStore1, classfile.IStore2, classfile.IStore3:
			var value int32
			if value, err = fr.pop(); err == nil {
				err = fr.store(localIndex(ins), value)
			}
		case classfile.Pop:
			_, err = fr.pop()
		case classfile.IAdd, classfile.ISub, classfile.IMul, classfile.IDiv:
			err = fr.arithmetic(ins.Op)
		case classfile.IfICmpEq, classfile.IfICmpNe, classfile.IfICmpLt, classfile.IfICmpGe, classfile.IfICmpGt,
			classfile.IfICmpLe:
			var taken bool
			if taken, err = fr.compare(ins.Op); err == nil && taken {
				next, err = meth.branch(ins)
			}
		case classfile.Goto:
			next, err = meth.branch(ins)
		case classfile.IReturn:
			if !meth.returnsInt {
				return 0, fmt.Errorf("%w: ireturn in void method %s", ErrBadCode, meth.name)
			}
			return fr.pop()
		case classfile.Return:
			if meth.returnsInt {
				return 0, fmt.Errorf("%w: return in int method %s", ErrBadCode, meth.name)
			}
			return 0, nil
		case classfile.GetStatic:
			var name string
			if name, err = m.fieldName(ins.Operand); err == nil {
				err = fr.push(m.statics[name])
			}
		case classfile.PutStatic:
			var name string
			var value int32
			if name, err = m.fieldName(ins.Operand); err == nil {
				if value, err = fr.pop(); err == nil {
					m.statics[name] = value
				}
			}
		case classfile.InvokeSpecial:
			err = m.invokeSpecial(fr, ins.Operand)
		case classfile.InvokeStatic:
			err = m.invokeStatic(fr, ins.Operand)
		default:
			err = fmt.Errorf("%w: unsupported instruction %s", ErrBadCode, ins.Op)
		}
		if err != nil {
			return 0, err
		}
		i = next
	}
}

func localIndex(ins classfile.Instruction) int {
	switch ins.Op {
	case classfile.ILoad0, classfile.IStore0:
		return 0
	case classfile.ILoad1, classfile.IStore1:
		return 1
	case classfile.ILoad2, classfile.IStore2:
		return 2
	case classfile.ILoad3, classfile.IStore3:
		return 3
	}
	return ins.Operand
}

// branch returns the instruction index of the branch target.
func (meth *method) branch(ins classfile.Instruction) (int, error) {
	index, ok := meth.pcIndex[ins.Target()]
	if !ok {
		return 0, fmt.Errorf("%w: %s pc %d branches to %d", ErrBadCode, meth.name, ins.PC, ins.Target())
	}
	return index, nil
}

func (fr *frame) push(value int32) error {
	if len(fr.stack) >= cap(fr.stack) {
		return fmt.Errorf("%w: %s exceeds max_stack %d", ErrBadCode, fr.method.name, cap(fr.stack))
	}
	fr.stack = append(fr.stack, value)
	return nil
}

func (fr *frame) pop() (int32, error) {
	if len(fr.stack) == 0 {
		return 0, fmt.Errorf("%w: %s pops an empty stack", ErrBadCode, fr.method.name)
	}
	value := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return value, nil
}

func (fr *frame) pop2() (int32, int32, error) {
	right, err := fr.pop()
	if err != nil {
		return 0, 0, err
	}
	left, err := fr.pop()
	return left, right, err
}

func (fr *frame) load(index int) (int32, error) {
	if index >= len(fr.locals) {
		return 0, fmt.Errorf("%w: %s reads local %d of %d", ErrBadCode, fr.method.name, index, len(fr.locals))
	}
	return fr.locals[index], nil
}

func (fr *frame) store(index int, value int32) error {
	if index >= len(fr.locals) {
		return fmt.Errorf("%w: %s writes local %d of %d", ErrBadCode, fr.method.name, index, len(fr.locals))
	}
	fr.locals[index] = value
	return nil
}

// arithmetic wraps on overflow. MinInt32 / -1 is MinInt32.
func (fr *frame) arithmetic(op classfile.Opcode) error {
	left, right, err := fr.pop2()
	if err != nil {
		return err
	}
	var result int32
	switch op {
	case classfile.IAdd:
		result = left + right
	case classfile.ISub:
		result = left - right
	case classfile.IMul:
		result = left * right
	case classfile.IDiv:
		if right == 0 {
			return ErrDivisionByZero
		}
		if left == math.MinInt32 && right == -1 {
			result = math.MinInt32
		} else {
			result = left / right
		}
	}
	return fr.push(result)
}

func (fr *frame) compare(op classfile.Opcode) (bool, error) {
	left, right, err := fr.pop2()
	if err != nil {
		return false, err
	}
	switch op {
	case classfile.IfICmpEq:
		return left == right, nil
	case classfile.IfICmpNe:
		return left != right, nil
	case classfile.IfICmpLt:
		return left < right, nil
	case classfile.IfICmpGe:
		return left >= right, nil
	case classfile.IfICmpGt:
		return left > right, nil
	}
	return left <= right, nil
}

// invokeSpecial only knows java/lang/Object.<init>, which consumes the receiver.
func (m *Machine) invokeSpecial(fr *frame, index int) error {
	class, name, descriptor, err := m.memberRef(index, classfile.TagMethodref)
	if err != nil {
		return err
	}
	if class != classfile.ObjectClass || name != classfile.InitName || descriptor != classfile.InitDescriptor {
		return fmt.Errorf("%w: invokespecial %s.%s%s", ErrNoSuchMethod, class, name, descriptor)
	}
	_, err = fr.pop()
	return err
}

func (m *Machine) invokeStatic(fr *frame, index int) error {
	class, name, descriptor, err := m.memberRef(index, classfile.TagMethodref)
	if err != nil {
		return err
	}
	meth, ok := m.methods[name+descriptor]
	if class != m.className || !ok {
		return fmt.Errorf("%w: %s.%s%s", ErrNoSuchMethod, class, name, descriptor)
	}
	if len(fr.stack) < meth.params {
		return fmt.Errorf("%w: %s calls %s with %d values on the stack", ErrBadCode, fr.method.name, name,
			len(fr.stack))
	}
	args := make([]int32, meth.params)
	copy(args, fr.stack[len(fr.stack)-meth.params:])
	fr.stack = fr.stack[:len(fr.stack)-meth.params]
	result, err := m.call(meth, args)
	if err != nil {
		return err
	}
	if meth.returnsInt {
		return fr.push(result)
	}
	return nil
}

func (m *Machine) fieldName(index int) (string, error) {
	class, name, _, err := m.memberRef(index, classfile.TagFieldref)
	if err != nil {
		return "", err
	}
	if _, ok := m.statics[name]; class != m.className || !ok {
		return "", fmt.Errorf("%w: no field %s.%s", ErrBadCode, class, name)
	}
	return name, nil
}

// memberRef resolves a Fieldref or Methodref into class name, member name and descriptor.
func (m *Machine) memberRef(index int, tag classfile.Tag) (string, string, string, error) {
	ref, err := m.constant(index, tag)
	if err != nil {
		return "", "", "", err
	}
	class, err := m.file.ClassName(ref.Index1)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrBadCode, err)
	}
	nat, err := m.constant(int(ref.Index2), classfile.TagNameAndType)
	if err != nil {
		return "", "", "", err
	}
	name, err := m.file.Utf8At(nat.Index1)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrBadCode, err)
	}
	descriptor, err := m.file.Utf8At(nat.Index2)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrBadCode, err)
	}
	return class, name, descriptor, nil
}

func (m *Machine) integerAt(index int) (int32, error) {
	c, err := m.constant(index, classfile.TagInteger)
	if err != nil {
		return 0, err
	}
	return c.Int, nil
}

func (m *Machine) constant(index int, tag classfile.Tag) (classfile.Constant, error) {
	if index <= 0 || index > 0xFFFF {
		return classfile.Constant{}, fmt.Errorf("%w: constant pool index %d", ErrBadCode, index)
	}
	c, err := m.file.Constant(uint16(index))
	if err != nil {
		return classfile.Constant{}, fmt.Errorf("%w: %v", ErrBadCode, err)
	}
	if c.Tag != tag {
		return classfile.Constant{}, fmt.Errorf("%w: entry #%d is %s, expected %s", ErrBadCode, index, c.Tag, tag)
	}
	return c, nil
}
