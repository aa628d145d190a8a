package classfile

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

// sampleFile is a class C with one static int field x, a constant K = 70000
// and a method int get() { return x; }.
func sampleFile() *File {
	code := &Code{MaxStack: 1, MaxLocals: 0, Code: []byte{byte(GetStatic), 0, 9, byte(IReturn)}}
	return &File{
		MinorVersion: MinorVersion,
		MajorVersion: MajorVersion,
		Pool: []Constant{
			{Tag: TagUtf8, Utf8: "C"},                       // 1
			{Tag: TagClass, Index1: 1},                      // 2
			{Tag: TagUtf8, Utf8: ObjectClass},               // 3
			{Tag: TagClass, Index1: 3},                      // 4
			{Tag: TagUtf8, Utf8: "x"},                       // 5
			{Tag: TagUtf8, Utf8: IntDescriptor},             // 6
			{Tag: TagNameAndType, Index1: 5, Index2: 6},     // 7
			{Tag: TagInteger, Int: 70000},                   // 8
			{Tag: TagFieldref, Index1: 2, Index2: 7},        // 9
			{Tag: TagUtf8, Utf8: "get"},                     // 10
			{Tag: TagUtf8, Utf8: "()I"},                     // 11
			{Tag: TagUtf8, Utf8: CodeAttr},                  // 12
			{Tag: TagUtf8, Utf8: "K"},                       // 13
			{Tag: TagUtf8, Utf8: ConstantValueAttr},         // 14
		},
		AccessFlags: AccPublic,
		ThisClass:   2,
		SuperClass:  4,
		Fields: []Member{
			{AccessFlags: AccPublic | AccStatic, NameIndex: 5, DescriptorIndex: 6},
			{AccessFlags: AccPublic | AccStatic | AccFinal, NameIndex: 13, DescriptorIndex: 6,
				Attributes: []Attribute{{NameIndex: 14, Data: ConstantValue(8)}}},
		},
		Methods: []Member{
			{AccessFlags: AccPublic | AccStatic, NameIndex: 10, DescriptorIndex: 11,
				Attributes: []Attribute{{NameIndex: 12, Data: code.Encode()}}},
		},
	}
}

func TestFile_WriteTo(t *testing.T) {
	data, err := sampleFile().Bytes()
	require.Nil(t, err)
	assert.Equal(t, []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x00, 0x00, 0x3B}, data[:8])
	// constant_pool_count is the number of entries plus one.
	assert.Equal(t, []byte{0x00, 15}, data[8:10])
	// Utf8 "C".
	assert.Equal(t, []byte{1, 0, 1, 'C'}, data[10:14])
	// interfaces_count, then the class ends with attributes_count.
	assert.Equal(t, []byte{0, 0}, data[len(data)-2:])
}

func TestParse(t *testing.T) {
	original := sampleFile()
	data, err := original.Bytes()
	require.Nil(t, err)
	parsed, err := Parse(data)
	require.Nil(t, err)
	assert.Equal(t, original.Pool, parsed.Pool)
	assert.Equal(t, original.Fields, parsed.Fields)
	assert.Equal(t, original.Methods, parsed.Methods)
	assert.Equal(t, original.ThisClass, parsed.ThisClass)
	assert.Nil(t, Verify(parsed))

	name, err := parsed.ClassName(parsed.ThisClass)
	assert.Nil(t, err)
	assert.Equal(t, "C", name)
	method, ok := parsed.FindMethod("get", "()I")
	require.True(t, ok)
	code, err := parsed.MethodCode(method)
	require.Nil(t, err)
	assert.Equal(t, uint16(1), code.MaxStack)
	assert.Equal(t, []byte{byte(GetStatic), 0, 9, byte(IReturn)}, code.Code)
}

func TestParse_Errors(t *testing.T) {
	data, err := sampleFile().Bytes()
	require.Nil(t, err)
	testData := []struct {
		data []byte
	}{
		{data: nil},
		{data: []byte{0xCA, 0xFE, 0xBA, 0xBF}},
		{data: data[:len(data)-1]},
		{data: append(append([]byte{}, data...), 0)},
	}
	for _, d := range testData {
		_, err := Parse(d.data)
		assert.NotNil(t, err)
	}
	_, err = Parse([]byte{0xCA, 0xFE, 0xBA, 0xBF, 0, 0, 0, 0})
	assert.Equal(t, ErrBadMagic, err)
}

func TestVerify_WrongTag(t *testing.T) {
	f := sampleFile()
	// getstatic pointing at a Utf8 entry.
	code := &Code{MaxStack: 1, Code: []byte{byte(GetStatic), 0, 5, byte(IReturn)}}
	f.Methods[0].Attributes[0].Data = code.Encode()
	assert.NotNil(t, Verify(f))

	f = sampleFile()
	f.Fields[1].Attributes[0].Data = ConstantValue(5)
	assert.NotNil(t, Verify(f))

	f = sampleFile()
	f.Pool[8].Index1 = 1
	assert.NotNil(t, Verify(f))
}

func TestVerify_Branches(t *testing.T) {
	testData := []struct {
		code  []byte
		valid bool
	}{
		{code: []byte{byte(Goto), 0, 0}, valid: true},
		{code: []byte{byte(IConst0), byte(IConst1), byte(IfICmpEq), 0, 4, byte(Return), byte(Return)}, valid: true},
		{code: []byte{byte(IConst0), byte(IConst1), byte(IfICmpEq), 0, 2, byte(Return)}, valid: false},
		{code: []byte{byte(Goto), 0xFF, 0xFF}, valid: false},
		{code: []byte{byte(IConst0), byte(Pop)}, valid: false},
	}
	for _, d := range testData {
		f := sampleFile()
		code := &Code{MaxStack: 2, Code: d.code}
		f.Methods[0].Attributes[0].Data = code.Encode()
		err := Verify(f)
		assert.Equal(t, d.valid, err == nil, "%v: %v", d.code, err)
	}
}

func TestDecode(t *testing.T) {
	code := []byte{
		byte(BiPush), 0xFE,
		byte(SiPush), 0x80, 0x00,
		byte(Wide), byte(IStore), 0x01, 0x00,
		byte(Ldc), 7,
		byte(Goto), 0xFF, 0xF5,
	}
	instructions, err := Decode(code)
	require.Nil(t, err)
	require.Len(t, instructions, 5)
	assert.Equal(t, -2, instructions[0].Operand)
	assert.Equal(t, -32768, instructions[1].Operand)
	assert.Equal(t, Instruction{PC: 5, Op: IStore, Operand: 256, Wide: true, Len: 4}, instructions[2])
	assert.Equal(t, 7, instructions[3].Operand)
	assert.Equal(t, 0, instructions[4].Target())
	assert.Equal(t, "wide istore 256", instructions[2].String())
	assert.Equal(t, "goto 0", instructions[4].String())

	_, err = Decode([]byte{0xFF})
	assert.NotNil(t, err)
	_, err = Decode([]byte{byte(SiPush), 1})
	assert.NotNil(t, err)
}

func TestDump(t *testing.T) {
	buf := &bytes.Buffer{}
	err := Dump(buf, sampleFile(), true)
	require.Nil(t, err)
	out := buf.String()
	assert.Contains(t, out, "class C extends java/lang/Object")
	assert.Contains(t, out, "public static final K;")
	assert.Contains(t, out, "ConstantValue: int 70000")
	assert.Contains(t, out, "0: getstatic #9")
	assert.Contains(t, out, "3: ireturn")
}

func TestModifiedUTF8(t *testing.T) {
	testData := []struct {
		s       string
		encoded []byte
	}{
		{s: "abc", encoded: []byte("abc")},
		{s: "a\x00b", encoded: []byte{'a', 0xC0, 0x80, 'b'}},
		{s: "é", encoded: []byte{0xC3, 0xA9}},
		{s: "€", encoded: []byte{0xE2, 0x82, 0xAC}},
		{s: "😀", encoded: []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}},
	}
	for _, d := range testData {
		encoded := EncodeModifiedUTF8(d.s)
		assert.Equal(t, d.encoded, encoded, d.s)
		decoded, err := DecodeModifiedUTF8(encoded)
		assert.Nil(t, err)
		assert.Equal(t, d.s, decoded)
	}
	_, err := DecodeModifiedUTF8([]byte{0})
	assert.NotNil(t, err)
	_, err = DecodeModifiedUTF8([]byte{0xE2, 0x82})
	assert.NotNil(t, err)
}

func TestOpcode(t *testing.T) {
	assert.Equal(t, 3, IfICmpLt.Len())
	assert.Equal(t, 2, BiPush.Len())
	assert.Equal(t, 4, Wide.Len())
	assert.True(t, Goto.IsBranch())
	assert.False(t, InvokeStatic.IsBranch())
	tag, ok := LdcW.ExpectedTag()
	assert.True(t, ok)
	assert.Equal(t, TagInteger, tag)
	assert.Equal(t, "if_icmple", IfICmpLe.String())
}

func TestLookupOpcode(t *testing.T) {
	testData := []struct {
		name     string
		expected Opcode
		ok       bool
	}{
		{name: "iload_0", expected: ILoad0, ok: true},
		{name: "ldc_w", expected: LdcW, ok: true},
		{name: "invokespecial", expected: InvokeSpecial, ok: true},
		{name: "wide", expected: Wide, ok: true},
		{name: "iinc", ok: false},
	}
	for _, data := range testData {
		op, ok := LookupOpcode(data.name)
		assert.Equal(t, data.ok, ok, data.name)
		if ok {
			assert.Equal(t, data.expected, op, data.name)
		}
	}
}
