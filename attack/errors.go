package attack

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any oracle query when the block size, IV or
	// ciphertext are malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInconsistency means no candidate byte produced valid padding. A correct,
	// deterministic oracle never causes it; a flaky oracle or a wrong block size does.
	ErrInconsistency = errors.New("oracle inconsistency")
)

// InconsistencyError reports where the search for a byte was exhausted.
type InconsistencyError struct {
	Block     int
	PadLength int

	// Intermediate is the block's partial intermediate value. Only the trailing
	// Resolved bytes are meaningful.
	Intermediate []byte
	Resolved     int
}

func (e *InconsistencyError) Error() string {
	known := e.Intermediate[len(e.Intermediate)-e.Resolved:]
	return fmt.Sprintf("oracle inconsistency: block %d: no candidate gave padding of length %d (resolved tail %x)",
		e.Block, e.PadLength, known)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrInconsistency
}
