package attack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/mario-areias/cbc-oracle/oracle"
)

// Attacker recovers a single ciphertext block. It owns its State exclusively; prev and
// target are private copies.
type Attacker struct {
	index  int
	prev   Block
	target Block
	oracle oracle.Oracle
	cfg    Config
	log    *log.Logger

	state   *State
	queries atomic.Int64
}

// NewAttacker prepares an attack on target, where prev is the real block that precedes
// it in the chain (the IV for the first block). index only labels errors and snapshots.
func NewAttacker(index int, prev, target []byte, o oracle.Oracle, cfg Config) (*Attacker, error) {
	p, blocks, err := Split(len(prev), prev, target)
	if err != nil {
		return nil, err
	}
	if len(blocks) != 1 {
		return nil, fmt.Errorf("%w: target must be exactly one block", ErrInvalidInput)
	}
	return newAttacker(index, p, blocks[0], o, cfg), nil
}

func newAttacker(index int, prev, target Block, o oracle.Oracle, cfg Config) *Attacker {
	return &Attacker{
		index:  index,
		prev:   prev,
		target: target,
		oracle: o,
		cfg:    cfg,
		log:    cfg.logger(),
		state:  newState(prev),
	}
}

// Step runs one round: it recovers the intermediate byte for the current padding length
// and prepares the working block for the next one. It is a no-op once Done.
func (a *Attacker) Step(ctx context.Context) error {
	if a.state.Phase == Done {
		return nil
	}

	g, err := a.recoverByte(ctx)
	if err != nil {
		return err
	}

	pos := len(a.state.Working) - a.state.PadLength
	a.state.resolve(g)
	if a.cfg.Verbose {
		a.log.Printf("block %d byte %d: intermediate 0x%02x, plaintext 0x%02x",
			a.index, pos, a.state.Intermediate[pos], a.state.Intermediate[pos]^a.prev[pos])
	}
	if a.cfg.Observer != nil {
		a.cfg.Observer(a.state.snapshot(a.index))
	}
	return nil
}

// Run steps until the block is recovered and returns its plaintext.
func (a *Attacker) Run(ctx context.Context) (Block, error) {
	for !a.Done() {
		if err := a.Step(ctx); err != nil {
			return nil, err
		}
	}
	return a.Plaintext()
}

func (a *Attacker) Done() bool {
	return a.state.Phase == Done
}

// Plaintext returns Intermediate XOR the real previous block. The working copy never
// takes part in it.
func (a *Attacker) Plaintext() (Block, error) {
	if !a.Done() {
		return nil, errors.New("block not fully recovered")
	}
	return xorBlocks(a.state.Intermediate, a.prev), nil
}

// Intermediate returns a copy of the intermediate value recovered so far.
func (a *Attacker) Intermediate() Block {
	return a.state.Intermediate.clone()
}

// State returns a copy of the attack state.
func (a *Attacker) State() State {
	return a.state.clone()
}

// Snapshot captures progress for persisting.
func (a *Attacker) Snapshot() Snapshot {
	return a.state.snapshot(a.index)
}

// Resume replaces the state with recorded progress.
func (a *Attacker) Resume(s Snapshot) error {
	st, err := restoreState(a.prev, s)
	if err != nil {
		return err
	}
	a.state = st
	return nil
}

// Queries returns the number of oracle calls made, retries included.
func (a *Attacker) Queries() int64 {
	return a.queries.Load()
}
