package util

func IsNumber(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsUnderScore(b byte) bool {
	return b == '_'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func IsLetterOrUnderscore(b byte) bool {
	return IsLetter(b) || IsUnderScore(b)
}

func IsLetterOrUnderscoreOrNumber(b byte) bool {
	return IsLetter(b) || IsUnderScore(b) || IsNumber(b)
}

// IsSymbol reports whether b starts one of the punctuation or operator tokens of the source language.
func IsSymbol(b byte) bool {
	switch b {
	case '{', '}', '(', ')', ',', ';', '=', '<', '>', '+', '-', '*', '/':
		return true
	}
	return false
}

// FitsInt8 reports whether v can be encoded as the signed operand of bipush.
func FitsInt8(v int32) bool {
	return v >= -128 && v <= 127
}

// FitsInt16 reports whether v can be encoded as a signed 16 bit branch offset.
func FitsInt16(v int64) bool {
	return v >= -32768 && v <= 32767
}

// FitsSiPush reports whether v is in -32767..32767, the literals pushed with sipush. Both
// 32768 and -32768 are loaded from the constant pool.
func FitsSiPush(v int32) bool {
	return v >= -32767 && v <= 32767
}
