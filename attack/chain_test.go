package attack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mario-areias/cbc-oracle/key"
	"github.com/mario-areias/cbc-oracle/oracle"
	"github.com/mario-areias/cbc-oracle/padding"
)

func newAES(t *testing.T) *oracle.CBC {
	t.Helper()
	o, err := oracle.NewAES(key.Bit128())
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func newBlowfish(t *testing.T) *oracle.CBC {
	t.Helper()
	k, err := key.Random(16)
	if err != nil {
		t.Fatal(err)
	}
	o, err := oracle.NewBlowfish(k)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

// checkRecovery verifies plaintext and intermediate values against the simulation.
func checkRecovery(t *testing.T, sim *oracle.CBC, plaintext, iv, ct []byte, r *Result) {
	t.Helper()
	bs := sim.BlockSize()

	want := padding.Pad(plaintext, bs)
	if !bytes.Equal(r.Plaintext, want) {
		t.Errorf("Got     : %x\nExpected: %x", r.Plaintext, want)
	}

	for i := range r.Intermediate {
		target := ct[i*bs : (i+1)*bs]
		if got, want := r.Intermediate[i], sim.Intermediate(target); !bytes.Equal(got, want) {
			t.Errorf("block %d intermediate. Got: %x, Expected: %x", i, got, want)
		}
	}

	unpadded, err := padding.Unpad(r.Plaintext, bs)
	if err != nil {
		t.Errorf("Error removing padding: %s", err)
	}
	if string(unpadded) != string(plaintext) {
		t.Errorf("Decrypted text does not match plaintext. Got: %q, Expected: %q", unpadded, plaintext)
	}
}

func TestRoundTripEveryPaddingLength(t *testing.T) {
	ciphers := []struct {
		name string
		sim  func(*testing.T) *oracle.CBC
	}{
		{name: "AES", sim: newAES},
		{name: "Blowfish", sim: newBlowfish},
	}

	for _, c := range ciphers {
		t.Run(c.name, func(t *testing.T) {
			sim := c.sim(t)
			bs := sim.BlockSize()

			// lengths 0..2*bs cover padding lengths bs..1 over one to three blocks
			for n := 0; n <= 2*bs; n++ {
				plaintext := []byte(strings.Repeat("Let's test if this attack works!", 2)[:n])
				iv, ct, err := sim.Encrypt(plaintext)
				if err != nil {
					t.Fatal(err)
				}

				cfg := DefaultConfig()
				cfg.BlockSize = bs
				r, err := Run(context.Background(), sim, iv, ct, cfg)
				if err != nil {
					t.Fatalf("length %d: %s", n, err)
				}
				checkRecovery(t, sim, plaintext, iv, ct, r)
			}
		})
	}
}

func TestFullBlockPadding(t *testing.T) {
	sim := newAES(t)
	plaintext := []byte("YELLOW SUBMARINE")
	iv, ct, err := sim.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	p, err := Decrypt(context.Background(), sim, iv, ct, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	if len(p) != 32 {
		t.Fatalf("Expected two blocks, got %d bytes", len(p))
	}
	if want := bytes.Repeat([]byte{0x10}, 16); !bytes.Equal(p[16:], want) {
		t.Errorf("Got: %x, Expected: %x", p[16:], want)
	}
	if string(p[:16]) != string(plaintext) {
		t.Errorf("Got: %q, Expected: %q", p[:16], plaintext)
	}
}

func TestMultiBlockChaining(t *testing.T) {
	sim := newAES(t)
	plaintext := []byte("three blocks of text chained with CBC")
	iv, ct, err := sim.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if len(ct) != 48 {
		t.Fatalf("Expected 3 blocks, got %d bytes", len(ct))
	}

	r, err := Run(context.Background(), sim, iv, ct, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	prev := iv
	for i := 0; i < 3; i++ {
		target := ct[i*16 : (i+1)*16]
		want := xorBlocks(sim.Intermediate(target), prev)
		if got := r.Plaintext[i*16 : (i+1)*16]; !bytes.Equal(got, want) {
			t.Errorf("block %d. Got: %x, Expected: %x", i, got, want)
		}
		if got := xorBlocks(r.Intermediate[i], prev); !bytes.Equal(got, want) {
			t.Errorf("block %d intermediate XOR previous. Got: %x, Expected: %x", i, got, want)
		}
		prev = target
	}
	checkRecovery(t, sim, plaintext, iv, ct, r)
}

func TestConcurrentMatchesSequential(t *testing.T) {
	sim := newAES(t)
	plaintext := []byte("Parallel probes and parallel blocks must agree.")
	iv, ct, err := sim.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name           string
		workers        int
		parallelBlocks bool
		maxBlocks      int
	}{
		{name: "sequential"},
		{name: "parallel probes", workers: 16},
		{name: "parallel blocks", parallelBlocks: true},
		{name: "both, two blocks at a time", workers: 8, parallelBlocks: true, maxBlocks: 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Workers = test.workers
			cfg.ParallelBlocks = test.parallelBlocks
			cfg.MaxBlocks = test.maxBlocks

			r, err := Run(context.Background(), sim, iv, ct, cfg)
			if err != nil {
				t.Fatal(err)
			}
			checkRecovery(t, sim, plaintext, iv, ct, r)
			if r.Queries < int64(len(ct)) {
				t.Errorf("Queries. Got: %d", r.Queries)
			}
		})
	}
}

func TestDeterministicQueries(t *testing.T) {
	sim := newAES(t)
	iv, ct, err := sim.Encrypt([]byte("same questions, same answers"))
	if err != nil {
		t.Fatal(err)
	}

	var runs [2][]query
	for i := range runs {
		rec := &recordingOracle{Oracle: sim}
		r, err := Run(context.Background(), rec, iv, ct, DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		if int64(len(rec.queries)) != r.Queries {
			t.Errorf("Result.Queries == %d, oracle saw %d", r.Queries, len(rec.queries))
		}
		runs[i] = rec.queries
	}

	if len(runs[0]) != len(runs[1]) {
		t.Fatalf("Query counts differ: %d and %d", len(runs[0]), len(runs[1]))
	}
	for i := range runs[0] {
		if runs[0][i] != runs[1][i] {
			t.Fatalf("Query %d differs: %+v and %+v", i, runs[0][i], runs[1][i])
		}
	}
}

func TestInvalidInput(t *testing.T) {
	var called bool
	o := oracle.Func(func(context.Context, []byte, []byte) (bool, error) {
		called = true
		return true, nil
	})

	tests := []struct {
		name      string
		blockSize int
		iv, ct    []byte
	}{
		{name: "zero block size", blockSize: 0, iv: nil, ct: make([]byte, 16)},
		{name: "block size too large", blockSize: 256, iv: make([]byte, 256), ct: make([]byte, 256)},
		{name: "IV too short", blockSize: 16, iv: make([]byte, 15), ct: make([]byte, 16)},
		{name: "empty ciphertext", blockSize: 16, iv: make([]byte, 16), ct: nil},
		{name: "partial block", blockSize: 16, iv: make([]byte, 16), ct: make([]byte, 20)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BlockSize = test.blockSize
			_, err := Decrypt(context.Background(), o, test.iv, test.ct, cfg)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if called {
		t.Errorf("oracle queried for invalid input")
	}
}

func TestResumeFromObservedProgress(t *testing.T) {
	sim := newAES(t)
	plaintext := []byte("pause me halfway and carry on")
	iv, ct, err := sim.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	// stop the run once block 1 has ten bytes
	var mu sync.Mutex
	progress := map[int]Snapshot{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := DefaultConfig()
	cfg.Observer = func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		progress[s.Block] = s
		if s.Block == 1 && s.Resolved == 10 {
			cancel()
		}
	}
	if _, err := Run(ctx, sim, iv, ct, cfg); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if progress[0].Resolved != 16 || progress[1].Resolved != 10 {
		t.Fatalf("Unexpected progress: %d and %d bytes", progress[0].Resolved, progress[1].Resolved)
	}

	before := sim.Queries()
	cfg = DefaultConfig()
	cfg.Resume = progress
	r, err := Run(context.Background(), sim, iv, ct, cfg)
	if err != nil {
		t.Fatal(err)
	}
	checkRecovery(t, sim, plaintext, iv, ct, r)

	if spent := sim.Queries() - before; spent != r.Queries {
		t.Errorf("Expected %d queries, oracle answered %d", r.Queries, spent)
	}
	// six bytes of one block can never need more than 6*256+256 queries
	if r.Queries > 6*256+256 {
		t.Errorf("resumed run redid finished work: %d queries", r.Queries)
	}
}

func TestCancelledContext(t *testing.T) {
	sim := newAES(t)
	iv, ct, err := sim.Encrypt([]byte("never decrypted"))
	if err != nil {
		t.Fatal(err)
	}

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			cfg := DefaultConfig()
			cfg.ParallelBlocks = parallel
			cfg.Workers = 4
			if _, err := Decrypt(ctx, sim, iv, ct, cfg); !errors.Is(err, context.Canceled) {
				t.Errorf("Expected context.Canceled, got %v", err)
			}
		})
	}
}

func TestParallelBlocksReportsRootCause(t *testing.T) {
	sim := newAES(t)
	iv, ct, err := sim.Encrypt([]byte("four blocks of ciphertext, one of them poisoned!"))
	if err != nil {
		t.Fatal(err)
	}
	poisoned := ct[32:48]

	o := oracle.Func(func(ctx context.Context, prev, target []byte) (bool, error) {
		if bytes.Equal(target, poisoned) {
			return false, nil
		}
		return sim.IsPaddingValid(ctx, prev, target)
	})

	cfg := DefaultConfig()
	cfg.ParallelBlocks = true
	_, err = Decrypt(context.Background(), o, iv, ct, cfg)

	var ie *InconsistencyError
	if !errors.As(err, &ie) {
		t.Fatalf("Expected *InconsistencyError, got %v", err)
	}
	if ie.Block != 2 {
		t.Errorf("Block. Got: %d, Expected: 2", ie.Block)
	}
}
