// Command cbc-oracle recovers CBC ciphertext through a padding oracle.
//
// Without -url it encrypts -message under a local key and attacks its own simulated
// oracle. With -url it attacks a remote oracle speaking the JSON protocol of
// oracle.Handler. "cbc-oracle serve" runs such an oracle.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/mario-areias/cbc-oracle/oracle"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Fatal(err)
		}
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "serve" {
		return serve(ctx, args[1:], stdout)
	}

	var opts options
	fs := flag.NewFlagSet("cbc-oracle", flag.ContinueOnError)
	fs.IntVar(&opts.blockSize, "block-size", 0, "Cipher block size in bytes (default: the simulated cipher's, or 16 with -url)")
	fs.IntVar(&opts.workers, "workers", 1, "Concurrent oracle queries per byte")
	fs.BoolVar(&opts.parallel, "parallel", false, "Attack all blocks concurrently")
	fs.IntVar(&opts.maxBlocks, "max-blocks", 0, "Limit on concurrently attacked blocks with -parallel (0: no limit)")
	fs.IntVar(&opts.retries, "retries", 3, "Retries for an unreachable oracle")
	fs.DurationVar(&opts.backoff, "backoff", 100*time.Millisecond, "Initial wait between retries")
	fs.StringVar(&opts.checkpoint, "checkpoint", "", "File to record progress in and resume from")
	fs.BoolVar(&opts.verbose, "v", false, "Log every recovered byte")
	url := fs.String("url", "", "Remote oracle URL")
	ivHex := fs.String("iv", "", "Hex IV (with -url)")
	ctHex := fs.String("ciphertext", "", "Hex ciphertext (with -url)")
	cipherName := fs.String("cipher", "aes", "Simulated cipher: aes or blowfish")
	hexKey := fs.String("key", "", "Hex key for the simulated cipher (default: random)")
	message := fs.String("message", "Let's test if this attack works!!", "Message to encrypt in demo mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := log.New(io.Discard, "", log.LstdFlags)
	if opts.verbose {
		logger.SetOutput(os.Stderr)
	}

	var (
		o      oracle.Oracle
		iv, ct []byte
		err    error
	)
	if *url != "" {
		if iv, err = hex.DecodeString(*ivHex); err != nil {
			return fmt.Errorf("decoding -iv: %w", err)
		}
		if ct, err = hex.DecodeString(*ctHex); err != nil {
			return fmt.Errorf("decoding -ciphertext: %w", err)
		}
		if opts.blockSize == 0 {
			opts.blockSize = 16
		}
		o = oracle.NewHTTP(*url)
	} else {
		sim, err := newSimulated(*cipherName, *hexKey)
		if err != nil {
			return err
		}
		if iv, ct, err = sim.Encrypt([]byte(*message)); err != nil {
			return err
		}
		if opts.blockSize == 0 {
			opts.blockSize = sim.BlockSize()
		}
		o = sim
	}

	fmt.Fprintf(stdout, "iv:         %s\n", hex.EncodeToString(iv))
	fmt.Fprintf(stdout, "ciphertext: %s\n", hex.EncodeToString(ct))

	r, err := recoverPlaintext(ctx, o, iv, ct, opts, logger)
	if err != nil {
		return err
	}
	printResult(stdout, r, opts.blockSize)
	return nil
}

// serve runs a simulated oracle over HTTP until ctx is done and prints a challenge
// ciphertext for it.
func serve(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8000", "Address to listen on")
	cipherName := fs.String("cipher", "aes", "Cipher: aes or blowfish")
	hexKey := fs.String("key", "", "Hex key (default: random)")
	message := fs.String("message", "Let's test if this attack works!!", "Message to encrypt as the challenge")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sim, err := newSimulated(*cipherName, *hexKey)
	if err != nil {
		return err
	}
	iv, ct, err := sim.Encrypt([]byte(*message))
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           oracle.Handler(sim, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Fprintf(stdout, "iv:         %s\n", hex.EncodeToString(iv))
	fmt.Fprintf(stdout, "ciphertext: %s\n", hex.EncodeToString(ct))
	logger.Printf("padding oracle listening on http://%s/", *addr)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		logger.Printf("served %d padding checks", sim.Queries())
		return nil
	}
}
