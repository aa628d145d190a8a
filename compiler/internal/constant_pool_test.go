package internal

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaobogaga/javasst/classfile"
	"testing"
)

func buildPool(t *testing.T, src string) (*Class, *ConstantPool) {
	class := parseSource(t, src)
	require.Nil(t, Resolve(class))
	pool, err := BuildConstantPool(class)
	require.Nil(t, err)
	return class, pool
}

func TestBuildConstantPool_EmptyClass(t *testing.T) {
	_, pool := buildPool(t, "class E {}")
	expected := []classfile.Constant{
		{Tag: classfile.TagUtf8, Utf8: "E"},
		{Tag: classfile.TagClass, Index1: 1},
		{Tag: classfile.TagUtf8, Utf8: "java/lang/Object"},
		{Tag: classfile.TagClass, Index1: 3},
		{Tag: classfile.TagUtf8, Utf8: "<init>"},
		{Tag: classfile.TagUtf8, Utf8: "()V"},
		{Tag: classfile.TagNameAndType, Index1: 5, Index2: 6},
		{Tag: classfile.TagMethodref, Index1: 4, Index2: 7},
		{Tag: classfile.TagUtf8, Utf8: "Code"},
	}
	assert.Equal(t, expected, pool.Entries())
	assert.Equal(t, uint16(2), pool.ThisClass())
	assert.Equal(t, uint16(4), pool.SuperClass())
	assert.Equal(t, uint16(8), pool.ObjectInit())
}

func TestBuildConstantPool_Members(t *testing.T) {
	src := `class P {
		final int K = 7;
		int v;
		public int f(int a) { return a + 40000 + 40000 + 5 + 0 - 32768 + 32767; }
	}`
	class, pool := buildPool(t, src)
	expected := []classfile.Constant{
		{Tag: classfile.TagUtf8, Utf8: "P"},
		{Tag: classfile.TagClass, Index1: 1},
		{Tag: classfile.TagUtf8, Utf8: "java/lang/Object"},
		{Tag: classfile.TagClass, Index1: 3},
		// K
		{Tag: classfile.TagUtf8, Utf8: "K"},
		{Tag: classfile.TagUtf8, Utf8: "I"},
		{Tag: classfile.TagInteger, Int: 7},
		{Tag: classfile.TagUtf8, Utf8: "ConstantValue"},
		{Tag: classfile.TagNameAndType, Index1: 5, Index2: 6},
		{Tag: classfile.TagFieldref, Index1: 2, Index2: 9},
		// v
		{Tag: classfile.TagUtf8, Utf8: "v"},
		{Tag: classfile.TagNameAndType, Index1: 11, Index2: 6},
		{Tag: classfile.TagFieldref, Index1: 2, Index2: 12},
		// f
		{Tag: classfile.TagUtf8, Utf8: "f"},
		{Tag: classfile.TagUtf8, Utf8: "(I)I"},
		{Tag: classfile.TagNameAndType, Index1: 14, Index2: 15},
		{Tag: classfile.TagMethodref, Index1: 2, Index2: 16},
		// Object.<init>
		{Tag: classfile.TagUtf8, Utf8: "<init>"},
		{Tag: classfile.TagUtf8, Utf8: "()V"},
		{Tag: classfile.TagNameAndType, Index1: 18, Index2: 19},
		{Tag: classfile.TagMethodref, Index1: 4, Index2: 20},
		// literals
		{Tag: classfile.TagInteger, Int: 40000},
		{Tag: classfile.TagInteger, Int: 32768},
		{Tag: classfile.TagUtf8, Utf8: "Code"},
	}
	assert.Equal(t, expected, pool.Entries())

	members := class.Members()
	testData := []struct {
		decl     DeclID
		expected uint16
	}{
		{decl: members[0], expected: 10},
		{decl: members[1], expected: 13},
		{decl: members[2], expected: 17},
	}
	for _, data := range testData {
		ref, ok := pool.Ref(data.decl)
		assert.True(t, ok)
		assert.Equal(t, data.expected, ref)
	}
	index, ok := pool.Integer(40000)
	assert.True(t, ok)
	assert.Equal(t, uint16(22), index)
	index, ok = pool.Integer(32768)
	assert.True(t, ok)
	assert.Equal(t, uint16(23), index)
	// Literals pushed with bipush or sipush stay out of the pool.
	for _, v := range []int32{5, 0, 32767} {
		_, ok = pool.Integer(v)
		assert.False(t, ok, v)
	}
}

func TestBuildConstantPool_SharedEntries(t *testing.T) {
	src := `class S {
		final int BIG = 100000;
		final int SAME = 50000 * 2;
		public int f() { return 100000; }
		public int I(int a) { return a; }
	}`
	_, pool := buildPool(t, src)
	count := map[classfile.Tag]int{}
	for _, c := range pool.Entries() {
		count[c.Tag]++
	}
	// Both constants and the literal share one Integer. Initializers are folded, so 50000
	// never reaches the pool.
	assert.Equal(t, 1, count[classfile.TagInteger])
	index, _ := pool.Integer(100000)
	assert.Equal(t, uint16(7), index)
	_, ok := pool.Integer(50000)
	assert.False(t, ok)
	// The method name I and the int descriptor I share one Utf8.
	descriptors := 0
	for _, c := range pool.Entries() {
		if c.Tag == classfile.TagUtf8 && c.Utf8 == "I" {
			descriptors++
		}
	}
	assert.Equal(t, 1, descriptors)
}

func TestConstantPool_Freeze(t *testing.T) {
	_, pool := buildPool(t, "class E {}")
	_, err := pool.AddUtf8("more")
	assert.Equal(t, errPoolFrozen, err)
	// Lookups of existing entries still succeed.
	index, err := pool.AddUtf8("Code")
	assert.Nil(t, err)
	assert.Equal(t, uint16(9), index)
}

func TestConstantPool_Overflow(t *testing.T) {
	pool := NewConstantPool()
	for i := 0; i < maxPoolEntries; i++ {
		_, err := pool.AddUtf8(fmt.Sprint(i))
		require.Nil(t, err)
	}
	assert.Equal(t, maxPoolEntries, pool.Len())
	_, err := pool.AddInteger(1)
	assert.True(t, IsKind(err, ConstantPoolOverflow), "%v", err)
	// An existing entry does not grow the pool.
	index, err := pool.AddUtf8("0")
	assert.Nil(t, err)
	assert.Equal(t, uint16(1), index)
}
