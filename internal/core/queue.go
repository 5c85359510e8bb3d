package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// taskQueue runs indexed tasks in index order with at most limit in flight.
// The first failing task cancels the rest; tasks not yet started never run.
type taskQueue struct {
	limit int
}

func (q taskQueue) run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.limit)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		// Go blocks while the queue is full, so with limit 1 the next task is
		// only scheduled once the previous one has returned.
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx, i)
		})
	}
	return g.Wait()
}
