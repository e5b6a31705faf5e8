package attack

import (
	"context"
	"errors"
	"sync"

	"github.com/mario-areias/cbc-oracle/oracle"
)

// Result of a full attack.
type Result struct {
	// Plaintext still carries its PKCS#7 padding.
	Plaintext []byte
	// Intermediate holds the raw block decryption of every ciphertext block.
	Intermediate []Block
	Queries      int64
}

// Decrypt recovers the padded plaintext of ciphertext.
func Decrypt(ctx context.Context, o oracle.Oracle, iv, ciphertext []byte, cfg Config) ([]byte, error) {
	r, err := Run(ctx, o, iv, ciphertext, cfg)
	if err != nil {
		return nil, err
	}
	return r.Plaintext, nil
}

// Run attacks every block left to right. Block i is chained to the IV when i is 0 and to
// ciphertext block i-1 otherwise, so blocks never depend on each other's results and may
// run concurrently.
func Run(ctx context.Context, o oracle.Oracle, iv, ciphertext []byte, cfg Config) (*Result, error) {
	ivBlock, blocks, err := Split(cfg.BlockSize, iv, ciphertext)
	if err != nil {
		return nil, err
	}

	attackers := make([]*Attacker, len(blocks))
	for i, b := range blocks {
		prev := ivBlock
		if i > 0 {
			prev = blocks[i-1]
		}
		a := newAttacker(i, prev, b, o, cfg)
		if snap, ok := cfg.Resume[i]; ok {
			if err := a.Resume(snap); err != nil {
				return nil, err
			}
		}
		attackers[i] = a
	}

	if cfg.ParallelBlocks {
		err = runParallel(ctx, attackers, cfg)
	} else {
		err = runSequential(ctx, attackers, cfg)
	}
	if err != nil {
		return nil, err
	}

	r := &Result{
		Plaintext:    make([]byte, 0, len(ciphertext)),
		Intermediate: make([]Block, len(attackers)),
	}
	for i, a := range attackers {
		p, err := a.Plaintext()
		if err != nil {
			return nil, err
		}
		r.Plaintext = append(r.Plaintext, p...)
		r.Intermediate[i] = a.Intermediate()
		r.Queries += a.Queries()
	}
	return r, nil
}

func runSequential(ctx context.Context, attackers []*Attacker, cfg Config) error {
	l := cfg.logger()
	for i, a := range attackers {
		l.Printf("decrypting block %d of %d", i+1, len(attackers))
		if _, err := a.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

func runParallel(parent context.Context, attackers []*Attacker, cfg Config) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	limit := cfg.MaxBlocks
	if limit <= 0 || limit > len(attackers) {
		limit = len(attackers)
	}
	sem := make(chan struct{}, limit)
	l := cfg.logger()

	errs := make([]error, len(attackers))
	var wg sync.WaitGroup
	for i, a := range attackers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			l.Printf("decrypting block %d of %d", i+1, len(attackers))
			if _, err := a.Run(ctx); err != nil {
				errs[i] = err
				cancel()
			}
		}()
	}
	wg.Wait()

	if err := parent.Err(); err != nil {
		return err
	}
	// blocks cancelled because a sibling failed report context.Canceled; prefer the cause
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}
