// Package padding implements PKCS#7 padding.
package padding

import (
	"bytes"
	"errors"
)

// ErrInvalidPadding is returned by Unpad when the trailing bytes are not valid PKCS#7 padding.
var ErrInvalidPadding = errors.New("invalid padding")

// Pad appends PKCS#7 padding to a copy of buf. A buffer that is already a multiple of
// blockSize gets a full block of padding.
func Pad(buf []byte, blockSize int) []byte {
	n := blockSize - len(buf)%blockSize
	out := make([]byte, len(buf), len(buf)+n)
	copy(out, buf)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad strips PKCS#7 padding. The returned slice aliases buf.
func Unpad(buf []byte, blockSize int) ([]byte, error) {
	if !Valid(buf, blockSize) {
		return nil, ErrInvalidPadding
	}
	return buf[:len(buf)-int(buf[len(buf)-1])], nil
}

// Valid reports whether buf ends in PKCS#7 padding of length 1..blockSize.
func Valid(buf []byte, blockSize int) bool {
	l := len(buf)
	if l == 0 {
		return false
	}
	n := int(buf[l-1])
	if n == 0 || n > blockSize || n > l {
		return false
	}
	for i := l - n; i < l-1; i++ {
		if buf[i] != byte(n) {
			return false
		}
	}
	return true
}
