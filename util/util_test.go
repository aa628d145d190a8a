package util

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestIsLetterOrUnderscoreOrNumber(t *testing.T) {
	testData := []struct {
		b        byte
		expected bool
	}{
		{b: 'a', expected: true},
		{b: 'Z', expected: true},
		{b: '_', expected: true},
		{b: '7', expected: true},
		{b: '$', expected: false},
		{b: ' ', expected: false},
	}
	for _, data := range testData {
		assert.Equal(t, data.expected, IsLetterOrUnderscoreOrNumber(data.b), string(data.b))
	}
	assert.False(t, IsLetterOrUnderscore('1'))
	assert.True(t, IsNumber('0'))
}

func TestIsSymbol(t *testing.T) {
	for _, b := range []byte("{}(),;=<>+-*/") {
		assert.True(t, IsSymbol(b), string(b))
	}
	assert.False(t, IsSymbol('['))
	assert.False(t, IsSymbol('a'))
}

func TestFits(t *testing.T) {
	assert.True(t, FitsInt8(127))
	assert.True(t, FitsInt8(-128))
	assert.False(t, FitsInt8(128))
	assert.False(t, FitsInt8(-129))
	assert.True(t, FitsInt16(32767))
	assert.True(t, FitsInt16(-32768))
	assert.False(t, FitsInt16(32768))
	assert.False(t, FitsInt16(-32769))
	assert.True(t, FitsSiPush(32767))
	assert.True(t, FitsSiPush(-32767))
	assert.False(t, FitsSiPush(32768))
	assert.False(t, FitsSiPush(-32768))
}
