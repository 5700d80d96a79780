package librarian

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// outcome is the result of one batch item: a value, or a drop.
type outcome[T any] struct {
	value T
	ok    bool
}

// fanOut runs fn for every item with at most limit calls in flight and
// returns the kept values in input order. Items whose fn reports !ok are
// dropped; they never affect the other items. fanOut returns only after
// every item has finished, and reports ctx.Err() if the run was cancelled.
func fanOut[In, Out any](ctx context.Context, limit int, items []In, fn func(context.Context, In) (Out, bool)) ([]Out, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]outcome[Out], len(items))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range items {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			v, ok := fn(ctx, items[i])
			results[i] = outcome[Out]{value: v, ok: ok}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := make([]Out, 0, len(items))
	for _, r := range results {
		if r.ok {
			kept = append(kept, r.value)
		}
	}
	return kept, nil
}
