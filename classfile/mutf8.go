package classfile

import (
	"errors"
	"unicode/utf8"
)

// EncodeModifiedUTF8 encodes s the way CONSTANT_Utf8 entries store strings:
// NUL becomes the two byte form 0xC0 0x80 and characters outside the BMP are
// written as a surrogate pair of three byte sequences.
func EncodeModifiedUTF8(s string) []byte {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r == 0:
			buf = append(buf, 0xC0, 0x80)
		case r < 0x80:
			buf = append(buf, byte(r))
		case r < 0x800:
			buf = append(buf, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			buf = appendThreeBytes(buf, uint16(r))
		default:
			r -= 0x10000
			buf = appendThreeBytes(buf, uint16(0xD800+(r>>10)))
			buf = appendThreeBytes(buf, uint16(0xDC00+(r&0x3FF)))
		}
	}
	return buf
}

func appendThreeBytes(buf []byte, c uint16) []byte {
	return append(buf, 0xE0|byte(c>>12), 0x80|byte((c>>6)&0x3F), 0x80|byte(c&0x3F))
}

var errBadModifiedUTF8 = errors.New("classfile: malformed modified utf8")

// DecodeModifiedUTF8 is the inverse of EncodeModifiedUTF8.
func DecodeModifiedUTF8(b []byte) (string, error) {
	var units []uint16
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c&0x80 == 0:
			if c == 0 {
				return "", errBadModifiedUTF8
			}
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errBadModifiedUTF8
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errBadModifiedUTF8
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", errBadModifiedUTF8
		}
	}
	buf := make([]byte, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		if u >= 0xD800 && u < 0xDC00 && i+1 < len(units) {
			if low := rune(units[i+1]); low >= 0xDC00 && low < 0xE000 {
				u = 0x10000 + (u-0xD800)<<10 + (low - 0xDC00)
				i++
			}
		}
		buf = utf8.AppendRune(buf, u)
	}
	return string(buf), nil
}
