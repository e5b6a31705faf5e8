package attack

import "fmt"

// Block is one cipher block worth of bytes.
type Block []byte

func (b Block) clone() Block {
	c := make(Block, len(b))
	copy(c, b)
	return c
}

// Split validates the attack inputs and returns private copies of the IV and of every
// ciphertext block. PKCS#7 cannot express padding longer than 255 bytes, which bounds
// the block size.
func Split(blockSize int, iv, ciphertext []byte) (Block, []Block, error) {
	if blockSize < 1 || blockSize > 255 {
		return nil, nil, fmt.Errorf("%w: block size %d out of range 1..255", ErrInvalidInput, blockSize)
	}
	if len(iv) != blockSize {
		return nil, nil, fmt.Errorf("%w: IV is %d bytes, block size is %d", ErrInvalidInput, len(iv), blockSize)
	}
	if len(ciphertext) == 0 {
		return nil, nil, fmt.Errorf("%w: empty ciphertext", ErrInvalidInput)
	}
	if len(ciphertext)%blockSize != 0 {
		return nil, nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrInvalidInput, len(ciphertext), blockSize)
	}

	blocks := make([]Block, 0, len(ciphertext)/blockSize)
	for i := 0; i < len(ciphertext); i += blockSize {
		blocks = append(blocks, Block(ciphertext[i:i+blockSize]).clone())
	}
	return Block(iv).clone(), blocks, nil
}

func xorBlocks(a, b []byte) Block {
	x := make(Block, len(a))
	for i := range a {
		x[i] = a[i] ^ b[i]
	}
	return x
}
