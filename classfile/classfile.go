package classfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Constant is one constant pool entry. The meaning of Index1 and Index2
// depends on Tag:
//
//	Class        Index1 = name (Utf8)
//	NameAndType  Index1 = name (Utf8), Index2 = descriptor (Utf8)
//	Fieldref     Index1 = class (Class), Index2 = name and type
//	Methodref    Index1 = class (Class), Index2 = name and type
type Constant struct {
	Tag    Tag
	Utf8   string
	Int    int32
	Index1 uint16
	Index2 uint16
}

type Attribute struct {
	NameIndex uint16
	Data      []byte
}

// Member is a field_info or a method_info, they share one layout.
type Member struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// File is an in memory class file. Pool[0] is the entry with index 1.
type File struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         []Constant
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Fields       []Member
	Methods      []Member
}

// Code is the decoded body of a Code attribute. Exception tables and nested
// attributes are always empty for our classes.
type Code struct {
	MaxStack  uint16
	MaxLocals uint16
	Code      []byte
}

var ErrBadIndex = errors.New("classfile: constant pool index out of range")

// Constant returns the pool entry with the 1-based index.
func (f *File) Constant(index uint16) (Constant, error) {
	if index == 0 || int(index) > len(f.Pool) {
		return Constant{}, fmt.Errorf("%w: %d", ErrBadIndex, index)
	}
	return f.Pool[index-1], nil
}

// Utf8At returns the string of the Utf8 entry at index.
func (f *File) Utf8At(index uint16) (string, error) {
	c, err := f.Constant(index)
	if err != nil {
		return "", err
	}
	if c.Tag != TagUtf8 {
		return "", fmt.Errorf("classfile: entry #%d is %s, not Utf8", index, c.Tag)
	}
	return c.Utf8, nil
}

// ClassName returns the name of the Class entry at index.
func (f *File) ClassName(index uint16) (string, error) {
	c, err := f.Constant(index)
	if err != nil {
		return "", err
	}
	if c.Tag != TagClass {
		return "", fmt.Errorf("classfile: entry #%d is %s, not Class", index, c.Tag)
	}
	return f.Utf8At(c.Index1)
}

// MemberName returns the name and descriptor of a field or method.
func (f *File) MemberName(m Member) (name string, descriptor string, err error) {
	name, err = f.Utf8At(m.NameIndex)
	if err != nil {
		return
	}
	descriptor, err = f.Utf8At(m.DescriptorIndex)
	return
}

// FindMethod looks a method up by name and descriptor.
func (f *File) FindMethod(name, descriptor string) (Member, bool) {
	for _, m := range f.Methods {
		n, d, err := f.MemberName(m)
		if err == nil && n == name && d == descriptor {
			return m, true
		}
	}
	return Member{}, false
}

// Attribute returns the first attribute of m with the given name.
func (f *File) Attribute(m Member, name string) (Attribute, bool) {
	for _, attr := range m.Attributes {
		n, err := f.Utf8At(attr.NameIndex)
		if err == nil && n == name {
			return attr, true
		}
	}
	return Attribute{}, false
}

// MethodCode decodes the Code attribute of method m.
func (f *File) MethodCode(m Member) (*Code, error) {
	attr, ok := f.Attribute(m, CodeAttr)
	if !ok {
		return nil, errors.New("classfile: method has no Code attribute")
	}
	return DecodeCode(attr.Data)
}

// ConstantValue builds the payload of a ConstantValue attribute.
func ConstantValue(index uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, index)
}

// Encode builds the payload of a Code attribute: max_stack, max_locals,
// code_length, code, an empty exception table and no attributes.
func (c *Code) Encode() []byte {
	buf := make([]byte, 0, 12+len(c.Code))
	buf = binary.BigEndian.AppendUint16(buf, c.MaxStack)
	buf = binary.BigEndian.AppendUint16(buf, c.MaxLocals)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)
	buf = binary.BigEndian.AppendUint16(buf, 0)
	buf = binary.BigEndian.AppendUint16(buf, 0)
	return buf
}

// WriteTo serializes the class file in big endian order.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	if len(f.Pool)+1 > 0xFFFF {
		return 0, fmt.Errorf("classfile: %d constant pool entries do not fit", len(f.Pool))
	}
	enc := &encoder{}
	enc.u4(Magic)
	enc.u2(f.MinorVersion)
	enc.u2(f.MajorVersion)
	enc.u2(uint16(len(f.Pool) + 1))
	for _, c := range f.Pool {
		if err := enc.constant(c); err != nil {
			return 0, err
		}
	}
	enc.u2(f.AccessFlags)
	enc.u2(f.ThisClass)
	enc.u2(f.SuperClass)
	enc.u2(0) // interfaces
	enc.members(f.Fields)
	enc.members(f.Methods)
	enc.u2(0) // attributes
	n, err := w.Write(enc.buf.Bytes())
	return int64(n), err
}

// Bytes returns the serialized class file.
func (f *File) Bytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	_, err := f.WriteTo(buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	buf bytes.Buffer
}

func (enc *encoder) u1(v uint8) {
	enc.buf.WriteByte(v)
}

func (enc *encoder) u2(v uint16) {
	enc.buf.Write(binary.BigEndian.AppendUint16(nil, v))
}

func (enc *encoder) u4(v uint32) {
	enc.buf.Write(binary.BigEndian.AppendUint32(nil, v))
}

func (enc *encoder) constant(c Constant) error {
	enc.u1(uint8(c.Tag))
	switch c.Tag {
	case TagUtf8:
		data := EncodeModifiedUTF8(c.Utf8)
		if len(data) > 0xFFFF {
			return fmt.Errorf("classfile: utf8 constant of %d bytes is too long", len(data))
		}
		enc.u2(uint16(len(data)))
		enc.buf.Write(data)
	case TagInteger:
		enc.u4(uint32(c.Int))
	case TagClass:
		enc.u2(c.Index1)
	case TagNameAndType, TagFieldref, TagMethodref:
		enc.u2(c.Index1)
		enc.u2(c.Index2)
	default:
		return fmt.Errorf("classfile: cannot encode constant with tag %d", c.Tag)
	}
	return nil
}

func (enc *encoder) members(members []Member) {
	enc.u2(uint16(len(members)))
	for _, m := range members {
		enc.u2(m.AccessFlags)
		enc.u2(m.NameIndex)
		enc.u2(m.DescriptorIndex)
		enc.u2(uint16(len(m.Attributes)))
		for _, attr := range m.Attributes {
			enc.u2(attr.NameIndex)
			enc.u4(uint32(len(attr.Data)))
			enc.buf.Write(attr.Data)
		}
	}
}
