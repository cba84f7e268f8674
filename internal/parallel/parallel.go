// Package parallel provides the loop helpers and the shared worker pool used by
// kernels and the graph scheduler.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Sequential returns a config that runs everything on the calling goroutine.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch executes f(b, c) for every batch row b and channel c. Rows run in
// parallel, at most cfg.NumWorkers at a time; the channels of one row run in
// order on the same goroutine.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || batch < 2 || batch*channels < cfg.MinChunkSize {
		for b := 0; b < batch; b++ {
			for c := 0; c < channels; c++ {
				f(b, c)
			}
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for b := 0; b < batch; b++ {
		g.Go(func() error {
			for c := 0; c < channels; c++ {
				f(b, c)
			}
			return nil
		})
	}
	_ = g.Wait()
}
