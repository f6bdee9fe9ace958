package monitor

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/iafilius/netperfdash/src/types"
)

// Snapshot is the initial dashboard data: one historical window plus the current sample.
type Snapshot struct {
	Timeframe Timeframe
	History   []types.Sample
	Latest    *types.Sample
	// LatestErr is set when the current sample could not be fetched; History is still usable.
	LatestErr error
}

// LoadSnapshot fetches the history of tf and the latest sample concurrently. Only a history
// failure is an error.
func LoadSnapshot(ctx context.Context, c *Client, tf Timeframe) (Snapshot, error) {
	snap := Snapshot{Timeframe: tf}
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		h, err := c.Historical(ctx, tf)
		if err != nil {
			return err
		}
		snap.History = h
		return nil
	})
	p.Go(func(ctx context.Context) error {
		s, err := c.Latest(ctx)
		if err != nil {
			snap.LatestErr = err
			c.logger().Warnf("latest sample unavailable: %v", err)
			return nil
		}
		snap.Latest = &s
		return nil
	})
	if err := p.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load %s snapshot: %w", tf, err)
	}
	return snap, nil
}

// Series is History followed by Latest when Latest is newer than the last historical sample.
func (s Snapshot) Series() []types.Sample {
	out := append([]types.Sample(nil), s.History...)
	if s.Latest == nil {
		return out
	}
	if n := len(out); n == 0 || s.Latest.Timestamp.After(out[n-1].Timestamp) {
		out = append(out, *s.Latest)
	}
	return out
}
