package rangefile

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// BytesAt returns n bytes read from r at off. The range must be loaded.
func BytesAt(r MediaReader, off int64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidRange, n)
	}
	b := make([]byte, n)
	if f, ok := r.(*File); ok {
		if err := f.store.BytesAt(b, off); err != nil {
			return nil, err
		}
		return b, nil
	}

	for i := range b {
		c, err := r.ByteAt(off + int64(i))
		if err != nil {
			return nil, err
		}
		b[i] = c
	}
	return b, nil
}

// Uint16At decodes 2 bytes at off.
func Uint16At(r MediaReader, off int64, order binary.ByteOrder) (uint16, error) {
	b, err := BytesAt(r, off, 2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

// Uint24At decodes 3 bytes at off.
func Uint24At(r MediaReader, off int64, order binary.ByteOrder) (uint32, error) {
	b, err := BytesAt(r, off, 3)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 4)
	if isLittleEndian(order) {
		copy(buf, b)
	} else {
		copy(buf[1:], b)
	}
	return order.Uint32(buf), nil
}

// Uint32At decodes 4 bytes at off.
func Uint32At(r MediaReader, off int64, order binary.ByteOrder) (uint32, error) {
	b, err := BytesAt(r, off, 4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

// SyncsafeUint32At decodes a 28 bit integer stored as 4 bytes of 7 bits,
// as found in ID3v2 headers.
func SyncsafeUint32At(r MediaReader, off int64) (uint32, error) {
	b, err := BytesAt(r, off, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]&0x7f)<<21 | uint32(b[1]&0x7f)<<14 | uint32(b[2]&0x7f)<<7 | uint32(b[3]&0x7f), nil
}

// IsBitSetAt reports whether bit (0 = least significant) of the byte at off is set.
func IsBitSetAt(r MediaReader, off int64, bit uint) (bool, error) {
	c, err := r.ByteAt(off)
	if err != nil {
		return false, err
	}
	return c&(1<<bit) != 0, nil
}

// StringAt reads n bytes at off as ISO-8859-1 text.
func StringAt(r MediaReader, off int64, n int) (string, error) {
	b, err := BytesAt(r, off, n)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String(), nil
}

func isLittleEndian(order binary.ByteOrder) bool {
	return order.Uint16([]byte{1, 0}) == 1
}
