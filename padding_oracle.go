package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"time"

	"github.com/mario-areias/cbc-oracle/attack"
	"github.com/mario-areias/cbc-oracle/checkpoint"
	"github.com/mario-areias/cbc-oracle/key"
	"github.com/mario-areias/cbc-oracle/oracle"
	"github.com/mario-areias/cbc-oracle/padding"
)

type options struct {
	blockSize  int
	workers    int
	parallel   bool
	maxBlocks  int
	retries    int
	backoff    time.Duration
	checkpoint string
	verbose    bool
}

// newSimulated builds the in-process oracle for the demo and serve modes. An empty hex
// key means a random one.
func newSimulated(cipherName, hexKey string) (*oracle.CBC, error) {
	var (
		k   key.Key
		err error
	)
	if hexKey != "" {
		k, err = key.ParseHex(hexKey)
	} else {
		k, err = key.Random(16)
	}
	if err != nil {
		return nil, err
	}

	switch cipherName {
	case "aes":
		return oracle.NewAES(k)
	case "blowfish":
		return oracle.NewBlowfish(k)
	default:
		return nil, fmt.Errorf("unknown cipher %q", cipherName)
	}
}

// recoverPlaintext runs the attack with the command line options, loading and recording
// checkpoints when requested.
func recoverPlaintext(ctx context.Context, o oracle.Oracle, iv, ct []byte, opts options, logger *log.Logger) (*attack.Result, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	cfg := attack.DefaultConfig()
	cfg.BlockSize = opts.blockSize
	cfg.Workers = opts.workers
	cfg.ParallelBlocks = opts.parallel
	cfg.MaxBlocks = opts.maxBlocks
	cfg.Retry = attack.RetryPolicy{
		MaxAttempts: opts.retries + 1,
		Backoff:     attack.ExponentialBackoff(opts.backoff, 30*opts.backoff),
	}
	cfg.Logger = logger
	cfg.Verbose = opts.verbose

	var rec *checkpoint.Recorder
	if opts.checkpoint != "" {
		p, err := checkpoint.Load(opts.checkpoint)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			p = checkpoint.New(opts.blockSize, iv, ct)
		case err != nil:
			return nil, err
		default:
			if cfg.Resume, err = p.Resume(opts.blockSize, iv, ct); err != nil {
				return nil, fmt.Errorf("%s: %w", opts.checkpoint, err)
			}
			logger.Printf("resuming %d blocks from %s", len(cfg.Resume), opts.checkpoint)
		}
		rec = checkpoint.NewRecorder(opts.checkpoint, p)
		cfg.Observer = rec.Observe
	}

	r, err := attack.Run(ctx, o, iv, ct, cfg)
	if rec != nil {
		if cerr := rec.Err(); cerr != nil {
			logger.Printf("saving checkpoint: %v", cerr)
		}
	}
	return r, err
}

func printResult(w io.Writer, r *attack.Result, blockSize int) {
	fmt.Fprintf(w, "padded:     %s\n", hex.EncodeToString(r.Plaintext))
	if unpadded, err := padding.Unpad(r.Plaintext, blockSize); err == nil {
		fmt.Fprintf(w, "plaintext:  %q\n", unpadded)
	} else {
		fmt.Fprintf(w, "plaintext:  (padding not valid: %v)\n", err)
	}
	fmt.Fprintf(w, "queries:    %d\n", r.Queries)
}
