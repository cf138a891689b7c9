package workqueue

import (
	"context"
	"time"

	"github.com/gottino/rmirror-cloud/cmn/nlog"
)

// RunLeaseSweeper loops SweepExpiredLeases on its own cadence, independent
// of any claiming worker, so expired leases are reclaimed even while every
// worker is busy (SPEC_FULL.md §C.2; spec §8 invariant 7).
func RunLeaseSweeper(ctx context.Context, q Queue, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.SweepExpiredLeases(ctx); err != nil {
				nlog.Errorf("workqueue: lease sweep: %v", err)
			}
		}
	}
}
