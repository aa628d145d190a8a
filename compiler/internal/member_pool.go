package internal

import (
	"fmt"

	"github.com/xiaobogaga/javasst/classfile"
)

const (
	constantFieldAccess = classfile.AccPublic | classfile.AccStatic | classfile.AccFinal
	variableFieldAccess = classfile.AccPublic | classfile.AccStatic
	procedureAccess     = classfile.AccPublic | classfile.AccStatic
	constructorAccess   = classfile.AccPublic
)

// buildFields returns one field per constant and class variable, in declaration order.
// Constants carry a ConstantValue attribute pointing at their Integer entry.
func buildFields(class *Class, pool *ConstantPool) ([]classfile.Member, error) {
	var fields []classfile.Member
	for _, id := range class.Members() {
		decl := class.Decl(id)
		switch decl.Kind {
		case ConstantDecl:
			field, err := newMember(pool, constantFieldAccess, decl.Name, classfile.IntDescriptor)
			if err != nil {
				return nil, err
			}
			attrName, err := lookupUtf8(pool, classfile.ConstantValueAttr)
			if err != nil {
				return nil, err
			}
			value, ok := pool.Integer(decl.Value)
			if !ok {
				return nil, fmt.Errorf("member pool: no Integer entry for constant %s", decl.Name)
			}
			field.Attributes = []classfile.Attribute{{NameIndex: attrName, Data: classfile.ConstantValue(value)}}
			fields = append(fields, field)
		case VariableDecl:
			field, err := newMember(pool, variableFieldAccess, decl.Name, classfile.IntDescriptor)
			if err != nil {
				return nil, err
			}
			fields = append(fields, field)
		}
	}
	return fields, nil
}

// buildMethods returns one public static method per procedure, in declaration order,
// followed by the public <init>()V constructor.
func buildMethods(class *Class, pool *ConstantPool) ([]classfile.Member, error) {
	var methods []classfile.Member
	for _, procID := range class.Procedures() {
		proc := class.Decl(procID)
		code, err := generateProcedureCode(class, pool, procID)
		if err != nil {
			return nil, err
		}
		method, err := newMethod(pool, procedureAccess, proc.Name, proc.Descriptor(), code)
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	code, err := generateConstructorCode(class, pool)
	if err != nil {
		return nil, err
	}
	constructor, err := newMethod(pool, constructorAccess, classfile.InitName, classfile.InitDescriptor, code)
	if err != nil {
		return nil, err
	}
	return append(methods, constructor), nil
}

func newMethod(pool *ConstantPool, access uint16, name, descriptor string, code *classfile.Code) (classfile.Member, error) {
	method, err := newMember(pool, access, name, descriptor)
	if err != nil {
		return method, err
	}
	attrName, err := lookupUtf8(pool, classfile.CodeAttr)
	if err != nil {
		return method, err
	}
	method.Attributes = []classfile.Attribute{{NameIndex: attrName, Data: code.Encode()}}
	return method, nil
}

func newMember(pool *ConstantPool, access uint16, name, descriptor string) (classfile.Member, error) {
	nameIndex, err := lookupUtf8(pool, name)
	if err != nil {
		return classfile.Member{}, err
	}
	descriptorIndex, err := lookupUtf8(pool, descriptor)
	if err != nil {
		return classfile.Member{}, err
	}
	return classfile.Member{AccessFlags: access, NameIndex: nameIndex, DescriptorIndex: descriptorIndex}, nil
}

func lookupUtf8(pool *ConstantPool, s string) (uint16, error) {
	index, ok := pool.Utf8(s)
	if !ok {
		return 0, fmt.Errorf("member pool: %q is not in the constant pool", s)
	}
	return index, nil
}
