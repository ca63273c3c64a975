package pricing

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEach runs fn for every item on at most n goroutines and waits for all of
// them. Items not yet started when ctx is done are skipped. A plain Group is
// used so one item's failure never cancels the others.
func forEach(ctx context.Context, n int, items []string, fn func(ctx context.Context, item string)) {
	if n < 1 {
		n = 1
	}
	var g errgroup.Group
	g.SetLimit(n)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
}
