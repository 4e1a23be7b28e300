package pypx

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultFanoutWidth is the number of metadata loads kept in flight per operation.
const DefaultFanoutWidth = 4

// FanOut calls load for every item with at most width calls in flight and
// collects the successful results in completion order. A failed item is
// handed to drop and left out of the result; it never aborts the others.
//
// When ctx is cancelled no further loads are started and FanOut returns after
// the in-flight ones finish, together with the context error.
func FanOut[In, Out any](
	ctx context.Context,
	width int,
	items []In,
	load func(context.Context, In) (Out, error),
	drop func(In, error),
) ([]Out, error) {
	if width <= 0 {
		width = DefaultFanoutWidth
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(width)

	var (
		mu      sync.Mutex
		results = make([]Out, 0, len(items))
	)

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			out, err := load(gctx, item)
			if err != nil {
				drop(item, err)
				return nil
			}
			mu.Lock()
			results = append(results, out)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
