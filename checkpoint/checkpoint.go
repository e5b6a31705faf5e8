// Package checkpoint persists attack progress so an interrupted run can be resumed.
package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/mario-areias/cbc-oracle/attack"
)

// ErrMismatch is returned when a checkpoint was recorded for a different IV, ciphertext
// or block size.
var ErrMismatch = errors.New("checkpoint does not match the ciphertext")

// Progress is the on-disk record, keyed by block index.
type Progress struct {
	Fingerprint []byte
	BlockSize   int
	Blocks      map[int]attack.Snapshot
}

// Fingerprint identifies an attack target.
func Fingerprint(iv, ciphertext []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(iv)
	h.Write(ciphertext)
	return h.Sum(nil)
}

// New returns empty progress for the given target.
func New(blockSize int, iv, ciphertext []byte) *Progress {
	return &Progress{
		Fingerprint: Fingerprint(iv, ciphertext),
		BlockSize:   blockSize,
		Blocks:      map[int]attack.Snapshot{},
	}
}

// Marshal uses a CBOR blob to serialize the progress.
func (p *Progress) Marshal() ([]byte, error) {
	return cbor.Marshal(p)
}

// Unmarshal decodes progress written by Marshal.
func Unmarshal(b []byte) (*Progress, error) {
	p := &Progress{}
	if err := cbor.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %w", err)
	}
	if p.Blocks == nil {
		p.Blocks = map[int]attack.Snapshot{}
	}
	return p, nil
}

// Resume returns the recorded snapshots, ready for attack.Config.Resume, after checking
// they belong to this target.
func (p *Progress) Resume(blockSize int, iv, ciphertext []byte) (map[int]attack.Snapshot, error) {
	if p.BlockSize != blockSize || !bytes.Equal(p.Fingerprint, Fingerprint(iv, ciphertext)) {
		return nil, ErrMismatch
	}
	out := make(map[int]attack.Snapshot, len(p.Blocks))
	for i, s := range p.Blocks {
		out[i] = s
	}
	return out, nil
}

// Load reads progress from path.
func Load(path string) (*Progress, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

// Save writes progress to path atomically.
func Save(path string, p *Progress) error {
	b, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Recorder keeps progress up to date from attack.Config.Observer callbacks and saves it
// after every recovered byte. It is safe for concurrent use.
type Recorder struct {
	path string

	mu       sync.Mutex
	progress *Progress
	err      error
}

func NewRecorder(path string, p *Progress) *Recorder {
	return &Recorder{path: path, progress: p}
}

// Observe has the signature of attack.Config.Observer.
func (r *Recorder) Observe(s attack.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress.Blocks[s.Block] = s
	if err := Save(r.path, r.progress); err != nil && r.err == nil {
		r.err = err
	}
}

// Err returns the first save failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
