// Package fanout runs independent tasks concurrently and joins them with
// first-error-wins semantics.
package fanout

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Run calls fn(ctx, i) for every i in [0, n) on its own goroutine, with at
// most limit in flight (limit <= 0 means unbounded). It waits for every
// task and returns the first error reported. The first failure cancels the
// context handed to the remaining tasks; under a limit, tasks not yet
// started are skipped. A panicking task counts as a failure.
func Run(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	bounded := limit > 0 && limit < n
	if bounded {
		g.SetLimit(limit)
	}

	skipped := false
	for i := range n {
		if bounded && gctx.Err() != nil {
			skipped = true
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("fanout: task %d panicked: %v", i, r)
				}
			}()
			if bounded {
				if err := gctx.Err(); err != nil {
					return err
				}
			}
			return fn(gctx, i)
		})
	}
	err := g.Wait()
	if err == nil && skipped {
		// Only a cancelled parent stops scheduling without a task error.
		return ctx.Err()
	}
	return err
}
