package internal

import (
	"errors"
	"fmt"

	"github.com/xiaobogaga/javasst/classfile"
	"github.com/xiaobogaga/javasst/util"
)

var errPoolFrozen = errors.New("constant pool: entry added after freeze")

// maxPoolEntries keeps constant_pool_count, which is entries + 1, inside a u16.
const maxPoolEntries = 0xFFFF - 1

// ConstantPool is the append only constant pool of the class being generated. Index 1 is
// the first entry. Utf8, Integer, Class and NameAndType entries are shared; field and method
// references are keyed on the declaration they refer to.
type ConstantPool struct {
	entries      []classfile.Constant
	utf8s        map[string]uint16
	integers     map[int32]uint16
	classes      map[string]uint16
	nameAndTypes map[[2]uint16]uint16
	refs         map[DeclID]uint16

	thisClass  uint16
	superClass uint16
	objectInit uint16
	frozen     bool
}

func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		utf8s:        map[string]uint16{},
		integers:     map[int32]uint16{},
		classes:      map[string]uint16{},
		nameAndTypes: map[[2]uint16]uint16{},
		refs:         map[DeclID]uint16{},
	}
}

func (pool *ConstantPool) add(c classfile.Constant) (uint16, error) {
	if pool.frozen {
		return 0, errPoolFrozen
	}
	if len(pool.entries) >= maxPoolEntries {
		return 0, makeError(ConstantPoolOverflow, Position{}, "constant pool exceeds %d entries", maxPoolEntries)
	}
	pool.entries = append(pool.entries, c)
	return uint16(len(pool.entries)), nil
}

func (pool *ConstantPool) AddUtf8(s string) (uint16, error) {
	if index, ok := pool.utf8s[s]; ok {
		return index, nil
	}
	index, err := pool.add(classfile.Constant{Tag: classfile.TagUtf8, Utf8: s})
	if err != nil {
		return 0, err
	}
	pool.utf8s[s] = index
	return index, nil
}

func (pool *ConstantPool) AddInteger(v int32) (uint16, error) {
	if index, ok := pool.integers[v]; ok {
		return index, nil
	}
	index, err := pool.add(classfile.Constant{Tag: classfile.TagInteger, Int: v})
	if err != nil {
		return 0, err
	}
	pool.integers[v] = index
	return index, nil
}

// AddClass adds the class name as Utf8 followed by the Class entry pointing at it.
func (pool *ConstantPool) AddClass(name string) (uint16, error) {
	if index, ok := pool.classes[name]; ok {
		return index, nil
	}
	nameIndex, err := pool.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	index, err := pool.add(classfile.Constant{Tag: classfile.TagClass, Index1: nameIndex})
	if err != nil {
		return 0, err
	}
	pool.classes[name] = index
	return index, nil
}

func (pool *ConstantPool) AddNameAndType(name, descriptor string) (uint16, error) {
	nameIndex, err := pool.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	descriptorIndex, err := pool.AddUtf8(descriptor)
	if err != nil {
		return 0, err
	}
	key := [2]uint16{nameIndex, descriptorIndex}
	if index, ok := pool.nameAndTypes[key]; ok {
		return index, nil
	}
	index, err := pool.add(classfile.Constant{Tag: classfile.TagNameAndType, Index1: nameIndex, Index2: descriptorIndex})
	if err != nil {
		return 0, err
	}
	pool.nameAndTypes[key] = index
	return index, nil
}

func (pool *ConstantPool) addRef(tag classfile.Tag, class uint16, name, descriptor string) (uint16, error) {
	natIndex, err := pool.AddNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return pool.add(classfile.Constant{Tag: tag, Index1: class, Index2: natIndex})
}

// Freeze forbids further additions. Code generation runs on a frozen pool so every index
// it writes is final.
func (pool *ConstantPool) Freeze() {
	pool.frozen = true
}

func (pool *ConstantPool) Len() int {
	return len(pool.entries)
}

func (pool *ConstantPool) Entries() []classfile.Constant {
	return pool.entries
}

// Ref returns the Fieldref or Methodref registered for a declaration.
func (pool *ConstantPool) Ref(decl DeclID) (uint16, bool) {
	index, ok := pool.refs[decl]
	return index, ok
}

func (pool *ConstantPool) Utf8(s string) (uint16, bool) {
	index, ok := pool.utf8s[s]
	return index, ok
}

func (pool *ConstantPool) Integer(v int32) (uint16, bool) {
	index, ok := pool.integers[v]
	return index, ok
}

func (pool *ConstantPool) ThisClass() uint16 {
	return pool.thisClass
}

func (pool *ConstantPool) SuperClass() uint16 {
	return pool.superClass
}

// ObjectInit returns the Methodref of java/lang/Object.<init>()V.
func (pool *ConstantPool) ObjectInit() uint16 {
	return pool.objectInit
}

// needsPoolEntry reports whether a literal is too large for sipush and must be loaded with ldc.
func needsPoolEntry(v int32) bool {
	return !util.FitsSiPush(v)
}

// BuildConstantPool fills the pool with every entry the class file needs, in this order:
// this class, java/lang/Object, one group per class member in declaration order,
// Object.<init>()V, Integer entries for literals too large for sipush, and the Code name.
// The returned pool is frozen.
func BuildConstantPool(class *Class) (*ConstantPool, error) {
	pool := NewConstantPool()
	var err error
	pool.thisClass, err = pool.AddClass(class.Name)
	if err != nil {
		return nil, err
	}
	pool.superClass, err = pool.AddClass(classfile.ObjectClass)
	if err != nil {
		return nil, err
	}
	for _, id := range class.Members() {
		err = pool.addMember(class, id)
		if err != nil {
			return nil, err
		}
	}
	pool.objectInit, err = pool.addRef(classfile.TagMethodref, pool.superClass, classfile.InitName,
		classfile.InitDescriptor)
	if err != nil {
		return nil, err
	}
	for _, procID := range class.Procedures() {
		err = pool.addLiterals(class.Decl(procID).Body)
		if err != nil {
			return nil, err
		}
	}
	_, err = pool.AddUtf8(classfile.CodeAttr)
	if err != nil {
		return nil, err
	}
	pool.Freeze()
	return pool, nil
}

func (pool *ConstantPool) addMember(class *Class, id DeclID) error {
	decl := class.Decl(id)
	var ref uint16
	var err error
	switch decl.Kind {
	case ConstantDecl:
		// name, descriptor, value and the ConstantValue attribute name come before the
		// field reference.
		if _, err = pool.AddUtf8(decl.Name); err != nil {
			return err
		}
		if _, err = pool.AddUtf8(classfile.IntDescriptor); err != nil {
			return err
		}
		if _, err = pool.AddInteger(decl.Value); err != nil {
			return err
		}
		if _, err = pool.AddUtf8(classfile.ConstantValueAttr); err != nil {
			return err
		}
		ref, err = pool.addRef(classfile.TagFieldref, pool.thisClass, decl.Name, classfile.IntDescriptor)
	case VariableDecl:
		ref, err = pool.addRef(classfile.TagFieldref, pool.thisClass, decl.Name, classfile.IntDescriptor)
	case ProcedureDecl:
		ref, err = pool.addRef(classfile.TagMethodref, pool.thisClass, decl.Name, decl.Descriptor())
	default:
		return fmt.Errorf("constant pool: unexpected %s %s in class table", decl.Kind, decl.Name)
	}
	if err != nil {
		return err
	}
	pool.refs[id] = ref
	return nil
}

func (pool *ConstantPool) addLiterals(body *SeqNode) error {
	var err error
	Inspect(body, func(node Node) bool {
		if err != nil {
			return false
		}
		if c, ok := node.(*ConstNode); ok && needsPoolEntry(c.Value) {
			_, err = pool.AddInteger(c.Value)
		}
		return true
	})
	return err
}
