package attack

import (
	"io"
	"log"
	"time"
)

// RetryPolicy bounds how often a query that failed with oracle.ErrUnreachable is repeated.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries per query. Values below 1 mean 1.
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based). Nil means no wait.
	Backoff func(attempt int) time.Duration
}

// ConstantBackoff waits d between attempts.
func ConstantBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff doubles the wait after every attempt, starting at base and capped at limit.
func ExponentialBackoff(base, limit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt && d < limit; i++ {
			d *= 2
		}
		if d > limit {
			d = limit
		}
		return d
	}
}

// Config controls an attack run.
type Config struct {
	BlockSize int

	// Workers is the number of concurrent probes per byte. 0 or 1 probes candidates
	// one at a time in ascending order.
	Workers int

	// ParallelBlocks attacks all ciphertext blocks at once. MaxBlocks limits how many
	// run concurrently; 0 means no limit.
	ParallelBlocks bool
	MaxBlocks      int

	Retry RetryPolicy

	// Logger receives progress. Verbose adds a line per recovered byte.
	Logger  *log.Logger
	Verbose bool

	// Observer is called after every recovered byte. With ParallelBlocks it is called
	// from several goroutines.
	Observer func(Snapshot)

	// Resume seeds blocks, keyed by block index, with previously recorded progress.
	Resume map[int]Snapshot
}

// DefaultConfig returns a sequential configuration for 16 byte blocks.
func DefaultConfig() Config {
	return Config{
		BlockSize: 16,
		Workers:   1,
		Retry:     RetryPolicy{MaxAttempts: 1},
	}
}

func (c *Config) logger() *log.Logger {
	if c.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return c.Logger
}
