package panel

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/twintype/internal/types"
)

// fanOut calls fn for every tab concurrently. Results keep the order of tabs.
func fanOut(ctx context.Context, tabs []types.EligibleTab, fn func(context.Context, types.EligibleTab) types.Result) []types.Result {
	results := make([]types.Result, len(tabs))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tabs {
		g.Go(func() error {
			results[i] = fn(gctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
