package worker

import (
	"context"
	"log"
	"time"
)

// Resetter is the store surface the rollover job needs.
type Resetter interface {
	ResetExpiredPeriods(ctx context.Context, now time.Time) (int64, error)
}

// Rollover periodically zeroes counters for users whose billing period has
// ended. The reset itself is a single atomic UPDATE in the store, so running
// the job on several instances at once is harmless: whichever fires first
// rolls the rows, the rest see nothing to do.
type Rollover struct {
	store    Resetter
	interval time.Duration
}

func NewRollover(store Resetter, interval time.Duration) *Rollover {
	return &Rollover{store: store, interval: interval}
}

// Run blocks until ctx is canceled.
func (r *Rollover) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.tick(ctx, now)
		}
	}
}

func (r *Rollover) tick(ctx context.Context, now time.Time) {
	n, err := r.store.ResetExpiredPeriods(ctx, now)
	if err != nil {
		log.Printf("[Rollover] reset failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Rollover] reset %d expired billing periods", n)
	}
}
