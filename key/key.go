package key

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Key is secret key material for the simulated oracle's block cipher.
type Key interface {
	GetBytes() []byte
	Len() int
}

type key struct {
	material []byte
}

func (k *key) GetBytes() []byte {
	return k.material
}

func (k *key) Len() int {
	return len(k.material)
}

// Bit128 returns a random 16 byte key. It panics if the system random source fails.
func Bit128() Key {
	k, err := Random(16)
	if err != nil {
		panic("Could not generate random bytes")
	}
	return k
}

// Random returns a random key of n bytes.
func Random(n int) (Key, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid key length %d", n)
	}
	b, err := RandomBytes(n)
	if err != nil {
		return nil, err
	}
	return &key{material: b}, nil
}

// NewKey wraps a copy of material.
func NewKey(material []byte) Key {
	m := make([]byte, len(material))
	copy(m, material)
	return &key{material: m}
}

// ParseHex decodes a hex encoded key.
func ParseHex(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	if len(b) == 0 {
		return nil, errors.New("empty key")
	}
	return &key{material: b}, nil
}

// RandomBytes reads n bytes from crypto/rand. It is also used for IVs.
func RandomBytes(n int) ([]byte, error) {
	randBytes := make([]byte, n)

	i, err := rand.Read(randBytes)
	if err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	if i != n {
		return nil, fmt.Errorf("short random read: %d of %d bytes", i, n)
	}

	return randBytes, nil
}
