package oracle

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/blowfish"

	"github.com/mario-areias/cbc-oracle/key"
	"github.com/mario-areias/cbc-oracle/padding"
)

// CBC is an in-process padding oracle. It can be thought of as a server that decrypts
// a value, for example a cookie, and only tells its caller whether the padding was valid.
type CBC struct {
	block   cipher.Block
	queries atomic.Int64
}

// NewAES returns a simulated oracle backed by AES under k.
func NewAES(k key.Key) (*CBC, error) {
	b, err := aes.NewCipher(k.GetBytes())
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	return &CBC{block: b}, nil
}

// NewBlowfish returns a simulated oracle backed by Blowfish, which has 8 byte blocks.
func NewBlowfish(k key.Key) (*CBC, error) {
	b, err := blowfish.NewCipher(k.GetBytes())
	if err != nil {
		return nil, fmt.Errorf("creating Blowfish cipher: %w", err)
	}
	return &CBC{block: b}, nil
}

// NewCBC wraps an arbitrary block cipher.
func NewCBC(b cipher.Block) *CBC {
	return &CBC{block: b}
}

func (c *CBC) BlockSize() int {
	return c.block.BlockSize()
}

// Queries returns how many padding checks have been answered.
func (c *CBC) Queries() int64 {
	return c.queries.Load()
}

// Encrypt pads plaintext and encrypts it under a fresh random IV.
func (c *CBC) Encrypt(plaintext []byte) (iv, ciphertext []byte, err error) {
	iv, err = key.RandomBytes(c.BlockSize())
	if err != nil {
		return nil, nil, err
	}
	return iv, c.EncryptWithIV(plaintext, iv), nil
}

// EncryptWithIV pads plaintext and encrypts it under iv.
func (c *CBC) EncryptWithIV(plaintext, iv []byte) []byte {
	padded := padding.Pad(plaintext, c.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext
}

// Intermediate returns the raw block decryption of target, before the CBC XOR.
// A real oracle never exposes this; it is here to check recovered values.
func (c *CBC) Intermediate(target []byte) []byte {
	out := make([]byte, c.BlockSize())
	c.block.Decrypt(out, target)
	return out
}

// IsPaddingValid decrypts target chained to prev and checks its PKCS#7 padding.
func (c *CBC) IsPaddingValid(ctx context.Context, prev, target []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	bs := c.BlockSize()
	if len(prev) != bs || len(target) != bs {
		return false, fmt.Errorf("blocks must be %d bytes, got %d and %d", bs, len(prev), len(target))
	}
	c.queries.Add(1)

	// ignoring decrypted output because the caller shouldn't have access to it
	out := make([]byte, bs)
	cipher.NewCBCDecrypter(c.block, prev).CryptBlocks(out, target)
	return padding.Valid(out, bs), nil
}
