package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrTruncated = errors.New("classfile: unexpected end of data")
	ErrBadMagic  = errors.New("classfile: bad magic number")
)

type decoder struct {
	data []byte
	pos  int
	err  error
}

func (dec *decoder) take(n int) []byte {
	if dec.err != nil {
		return nil
	}
	if dec.pos+n > len(dec.data) {
		dec.err = ErrTruncated
		return nil
	}
	b := dec.data[dec.pos : dec.pos+n]
	dec.pos += n
	return b
}

func (dec *decoder) u1() uint8 {
	b := dec.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (dec *decoder) u2() uint16 {
	b := dec.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (dec *decoder) u4() uint32 {
	b := dec.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// Read parses a class file from rd.
func Read(rd io.Reader) (*File, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a class file. Only the constant kinds listed in Tag are
// understood; interfaces and class attributes are skipped.
func Parse(data []byte) (*File, error) {
	dec := &decoder{data: data}
	if dec.u4() != Magic {
		if dec.err != nil {
			return nil, dec.err
		}
		return nil, ErrBadMagic
	}
	f := &File{}
	f.MinorVersion = dec.u2()
	f.MajorVersion = dec.u2()
	count := int(dec.u2())
	for i := 1; i < count && dec.err == nil; i++ {
		c, err := dec.constant()
		if err != nil {
			return nil, fmt.Errorf("classfile: constant #%d: %w", i, err)
		}
		f.Pool = append(f.Pool, c)
	}
	f.AccessFlags = dec.u2()
	f.ThisClass = dec.u2()
	f.SuperClass = dec.u2()
	interfaces := int(dec.u2())
	dec.take(2 * interfaces)
	f.Fields = dec.members()
	f.Methods = dec.members()
	attributes := int(dec.u2())
	for i := 0; i < attributes && dec.err == nil; i++ {
		dec.u2()
		dec.take(int(dec.u4()))
	}
	if dec.err != nil {
		return nil, dec.err
	}
	if dec.pos != len(data) {
		return nil, fmt.Errorf("classfile: %d trailing bytes", len(data)-dec.pos)
	}
	return f, nil
}

func (dec *decoder) constant() (Constant, error) {
	c := Constant{Tag: Tag(dec.u1())}
	switch c.Tag {
	case TagUtf8:
		raw := dec.take(int(dec.u2()))
		if dec.err != nil {
			return c, dec.err
		}
		s, err := DecodeModifiedUTF8(raw)
		if err != nil {
			return c, err
		}
		c.Utf8 = s
	case TagInteger:
		c.Int = int32(dec.u4())
	case TagClass:
		c.Index1 = dec.u2()
	case TagNameAndType, TagFieldref, TagMethodref:
		c.Index1 = dec.u2()
		c.Index2 = dec.u2()
	default:
		if dec.err != nil {
			return c, dec.err
		}
		return c, fmt.Errorf("unsupported tag %d", c.Tag)
	}
	return c, dec.err
}

func (dec *decoder) members() []Member {
	count := int(dec.u2())
	var members []Member
	for i := 0; i < count && dec.err == nil; i++ {
		m := Member{
			AccessFlags:     dec.u2(),
			NameIndex:       dec.u2(),
			DescriptorIndex: dec.u2(),
		}
		attributes := int(dec.u2())
		for j := 0; j < attributes && dec.err == nil; j++ {
			nameIndex := dec.u2()
			data := dec.take(int(dec.u4()))
			m.Attributes = append(m.Attributes, Attribute{NameIndex: nameIndex, Data: data})
		}
		members = append(members, m)
	}
	return members
}

// DecodeCode parses the payload of a Code attribute.
func DecodeCode(data []byte) (*Code, error) {
	dec := &decoder{data: data}
	c := &Code{MaxStack: dec.u2(), MaxLocals: dec.u2()}
	c.Code = dec.take(int(dec.u4()))
	exceptions := int(dec.u2())
	dec.take(8 * exceptions)
	attributes := int(dec.u2())
	for i := 0; i < attributes && dec.err == nil; i++ {
		dec.u2()
		dec.take(int(dec.u4()))
	}
	if dec.err != nil {
		return nil, dec.err
	}
	return c, nil
}
