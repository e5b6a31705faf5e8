package attack

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mario-areias/cbc-oracle/oracle"
	"github.com/mario-areias/cbc-oracle/padding"
)

// fixedOracle treats d as the decryption of any target block: padding is valid iff
// d XOR prev ends in PKCS#7 padding.
type fixedOracle struct {
	d []byte
}

func (f fixedOracle) IsPaddingValid(ctx context.Context, prev, target []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return padding.Valid(xorBlocks(f.d, prev), len(f.d)), nil
}

type query struct {
	prev  string
	valid bool
}

// recordingOracle logs every question and answer.
type recordingOracle struct {
	oracle.Oracle

	mu      sync.Mutex
	queries []query
}

func (r *recordingOracle) IsPaddingValid(ctx context.Context, prev, target []byte) (bool, error) {
	ok, err := r.Oracle.IsPaddingValid(ctx, prev, target)
	r.mu.Lock()
	r.queries = append(r.queries, query{prev: fmt.Sprintf("%x", prev), valid: ok})
	r.mu.Unlock()
	return ok, err
}

// flakyOracle fails the first failures calls with err.
type flakyOracle struct {
	oracle.Oracle

	failures int64
	err      error
	calls    atomic.Int64
}

func (f *flakyOracle) IsPaddingValid(ctx context.Context, prev, target []byte) (bool, error) {
	if f.calls.Add(1) <= f.failures {
		return false, f.err
	}
	return f.Oracle.IsPaddingValid(ctx, prev, target)
}
