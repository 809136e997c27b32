// Package batch provides a bounded-concurrency item processor with per-item
// error isolation. One bad item never aborts the pool; callers inspect each
// Result and classify failures themselves.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result holds the outcome for a single processed item.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// Progress is emitted after each item resolves.
type Progress struct {
	Completed int
	Failed    int
	Total     int
}

// Run processes items with at most concurrency workers and returns one Result
// per item, in input order. fn errors are captured per item, never propagated
// to the pool. Context cancellation stops dispatching new items; already
// dispatched items run to completion.
func Run[T, R any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T) (R, error)) []Result[T, R] {
	return RunProgress(ctx, items, concurrency, fn, nil)
}

// RunProgress is Run with a progress channel. When events is non-nil, a
// Progress value is sent after every item resolves; the channel is closed when
// the batch completes. Sends never block the pool: the caller must drain.
func RunProgress[T, R any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T) (R, error), events chan<- Progress) []Result[T, R] {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]Result[T, R], len(items))
	done := make(chan int, len(items)) // indexes of resolved items

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		results[i].Item = item
		if ctx.Err() != nil {
			results[i].Err = ctx.Err()
			done <- i
			continue
		}
		g.Go(func() error {
			val, err := fn(gCtx, item)
			results[i].Value = val
			results[i].Err = err
			done <- i
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(done)
	}()

	completed, failed := 0, 0
	for i := range done {
		completed++
		if results[i].Err != nil {
			failed++
		}
		if events != nil {
			events <- Progress{Completed: completed, Failed: failed, Total: len(items)}
		}
	}
	if events != nil {
		close(events)
	}

	return results
}

// Chunk splits items into sub-batches of at most size. Stage code persists
// after each sub-batch so a stall loses at most one sub-batch of work.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
