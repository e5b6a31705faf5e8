package padding

import (
	"bytes"
	"errors"
	"testing"
)

func TestPad(t *testing.T) {
	cases := []struct {
		buf       []byte
		blockSize int
		want      []byte
	}{
		{[]byte{0}, 3, []byte{0, 2, 2}},
		{[]byte{0, 0}, 3, []byte{0, 0, 1}},
		{[]byte{0, 0, 0}, 3, []byte{0, 0, 0, 3, 3, 3}},
		{nil, 4, []byte{4, 4, 4, 4}},
	}
	for _, c := range cases {
		got := Pad(c.buf, c.blockSize)
		if !bytes.Equal(got, c.want) {
			t.Errorf("Pad(%v, %v) == %v, want %v", c.buf, c.blockSize, got, c.want)
		}
	}
}

func TestPadDoesNotModifyInput(t *testing.T) {
	buf := make([]byte, 2, 8)
	Pad(buf, 4)
	if got := buf[:4]; !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Errorf("Pad wrote into the input's spare capacity: %v", got)
	}
}

func TestUnpad(t *testing.T) {
	cases := []struct {
		buf       []byte
		blockSize int
		want      []byte
		err       error
	}{
		{[]byte{0, 2, 2}, 3, []byte{0}, nil},
		{[]byte{0, 0, 1}, 3, []byte{0, 0}, nil},
		{[]byte{0, 0, 0, 3, 3, 3}, 3, []byte{0, 0, 0}, nil},
		{[]byte{0, 0, 0}, 3, nil, ErrInvalidPadding},
		{[]byte{4, 4, 4, 4}, 3, nil, ErrInvalidPadding},
		{[]byte{}, 3, nil, ErrInvalidPadding},
	}
	for _, c := range cases {
		got, err := Unpad(c.buf, c.blockSize)
		if !errors.Is(err, c.err) {
			t.Errorf("Unpad(%v, %v) error == %v, want %v", c.buf, c.blockSize, err, c.err)
			continue
		}
		if !bytes.Equal(got, c.want) {
			t.Errorf("Unpad(%v, %v) == %v, want %v", c.buf, c.blockSize, got, c.want)
		}
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		buf       []byte
		blockSize int
		want      bool
	}{
		{[]byte("0123456789\x06\x06\x06\x06\x06\x06"), 16, true},
		{[]byte("0123456789\x06\x06\x00\x00\x00\x00"), 16, false},
		{[]byte("0123456789\x06\x06\x00\x00\x00\x02"), 16, false},
		{[]byte("0123456789\x06\x06\x00\x00\x02\x02"), 16, true},
		{[]byte{5, 5, 5, 5, 5, 5}, 6, true},
		{[]byte{4, 4, 4}, 3, false},
		{[]byte{1}, 1, true},
	}
	for _, c := range cases {
		if got := Valid(c.buf, c.blockSize); got != c.want {
			t.Errorf("Valid(%v, %v) == %v, want %v", c.buf, c.blockSize, got, c.want)
		}
	}
}
