package transfer

import (
	"context"
	"iter"
	"sync"

	"golang.org/x/sync/semaphore"

	"ferry/internal/services"
)

// Processor runs one item to a terminal outcome.
type Processor interface {
	Process(ctx context.Context, item WorkItem) Result
}

// RunSequential processes items one at a time in the order they are yielded,
// so completion order matches walk order. It stops pulling items once ctx is
// cancelled and returns ctx.Err().
func RunSequential(ctx context.Context, p Processor, items iter.Seq[WorkItem], onResult func(Result)) error {
	for item := range items {
		if ctx.Err() != nil {
			break
		}
		result := p.Process(ctx, item)
		if onResult != nil {
			onResult(result)
		}
	}
	return ctx.Err()
}

// RunConcurrent drains items with at most limit in flight. Each worker runs
// the full pipeline for its item; completion order is not guaranteed.
// onResult is called from worker goroutines but never concurrently. It
// returns ctx.Err() after every started item has finished.
func RunConcurrent(ctx context.Context, p Processor, items []WorkItem, limit int, onResult func(Result)) error {
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))
	slots := make(chan int, limit)
	for i := 1; i <= limit; i++ {
		slots <- i
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		worker := <-slots
		wg.Add(1)
		go func() {
			defer func() {
				slots <- worker
				sem.Release(1)
				wg.Done()
			}()
			result := p.Process(services.WithWorker(ctx, worker), item)
			if onResult != nil {
				mu.Lock()
				onResult(result)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}
