package monitor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"vodwatch/internal/status"
)

// Checker answers whether a channel is live.
type Checker interface {
	Check(ctx context.Context, channel string) status.Result
}

// DefaultParallelism bounds concurrent probes when no limit is configured.
const DefaultParallelism = 4

// CheckOnce probes channels with at most parallelism probes in flight and
// returns the results in the order of channels.
func CheckOnce(ctx context.Context, checker Checker, channels []string, parallelism int) []status.Result {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	results := make([]status.Result, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, channel := range channels {
		g.Go(func() error {
			results[i] = checker.Check(gctx, channel)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// LiveChannels returns the channels whose probe answered live, in order.
func LiveChannels(results []status.Result) []string {
	var live []string
	for _, res := range results {
		if res.OK() && res.Live {
			live = append(live, res.Channel)
		}
	}
	return live
}
