// Package pool provides a bounded fan-out/fan-in executor. Results are
// reassembled by input index, so output order never depends on completion
// order.
package pool

import (
	"context"
	"sync"
)

// Config controls a pool run.
type Config struct {
	// Workers is the number of concurrent executions; values below 1 run
	// sequentially.
	Workers int

	// OnProgress, if set, is called after each completed item with the
	// number of finished items and the total. Calls are serialized.
	OnProgress func(done, total int)
}

// Outcome holds one item's result or failure, positioned at the item's
// input index.
type Outcome[O any] struct {
	Index int
	Value O
	Err   error
}

// Run executes fn for every item, at most cfg.Workers at a time, and
// returns one outcome per item aligned to input order. A failing item
// records its error and never aborts the batch. When ctx is cancelled,
// items not yet started carry ctx.Err().
func Run[I, O any](ctx context.Context, cfg Config, items []I, fn func(context.Context, I) (O, error)) []Outcome[O] {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	outcomes := make([]Outcome[O], len(items))
	jobs := make(chan int)

	var progressMu sync.Mutex
	done := 0
	report := func() {
		if cfg.OnProgress == nil {
			return
		}
		progressMu.Lock()
		done++
		cfg.OnProgress(done, len(items))
		progressMu.Unlock()
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					outcomes[idx] = Outcome[O]{Index: idx, Err: err}
					report()
					continue
				}
				val, err := fn(ctx, items[idx])
				outcomes[idx] = Outcome[O]{Index: idx, Value: val, Err: err}
				report()
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}
