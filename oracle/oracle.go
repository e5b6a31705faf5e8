// Package oracle defines the padding oracle capability consumed by the attack and the
// adapters that realize it: an in-process CBC simulation and an HTTP client.
package oracle

import (
	"context"
	"errors"
)

// ErrUnreachable marks a transport failure. The question was not answered, so the same
// query may be retried.
var ErrUnreachable = errors.New("oracle unreachable")

// An Oracle reports whether decrypting target with prev as the chaining block yields valid
// PKCS#7 padding. Implementations must be deterministic for a fixed key and safe for
// concurrent use.
type Oracle interface {
	IsPaddingValid(ctx context.Context, prev, target []byte) (bool, error)
}

// Func adapts a plain function to an Oracle.
type Func func(ctx context.Context, prev, target []byte) (bool, error)

func (f Func) IsPaddingValid(ctx context.Context, prev, target []byte) (bool, error) {
	return f(ctx, prev, target)
}
