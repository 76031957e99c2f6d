// Package workerpool runs a bounded set of goroutines over a slice of
// work items.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Process invokes fn for every item using at most workers goroutines.
// The first error cancels the remaining work and is returned.
func Process[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, item)
		})
	}

	return g.Wait()
}
