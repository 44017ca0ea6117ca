package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/quotaflow/metering/internal/policy"
)

// Engine performs the check and increment operations. It holds no counter
// state of its own; correctness under concurrency rests entirely on the
// store's atomic update primitive, so multiple engine instances are safe.
type Engine struct {
	store   Store
	policy  *policy.Table
	breaker *gobreaker.CircuitBreaker
	backoff time.Duration
}

func NewEngine(store Store, table *policy.Table) *Engine {
	settings := gobreaker.Settings{
		Name:        "usage-store",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Engine{
		store:   store,
		policy:  table,
		breaker: gobreaker.NewCircuitBreaker(settings),
		backoff: 100 * time.Millisecond,
	}
}

// Check returns the current snapshot for a user, creating a zeroed free-tier
// row on first reference. It never mutates counters.
func (e *Engine) Check(ctx context.Context, userID string) (*Snapshot, error) {
	rec, err := e.callStore(ctx, func() (*Record, error) {
		return e.store.Get(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return e.snapshot(rec), nil
}

// Increment atomically adds amount to the user's counter for metric and
// returns the post-increment snapshot. The write always proceeds even past
// the ceiling; the snapshot's OverLimit field is the advisory signal for
// callers to degrade on.
func (e *Engine) Increment(ctx context.Context, userID string, metric Metric, amount int64) (*Snapshot, error) {
	// Request validation rejects these before the engine; reaching here with
	// either is a programming error, not a caller error.
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNonPositiveAmount, amount)
	}
	if metric != MetricTokens && metric != MetricMeetingSeconds {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetric, metric)
	}

	rec, err := e.callStore(ctx, func() (*Record, error) {
		return e.store.Increment(ctx, userID, metric, amount)
	})
	if err != nil {
		return nil, err
	}
	return e.snapshot(rec), nil
}

// Limits returns the ceilings in effect for a user without reporting
// counters. Shares the lazy-create behavior of Check.
func (e *Engine) Limits(ctx context.Context, userID string) (policy.Tier, policy.Limits, error) {
	rec, err := e.callStore(ctx, func() (*Record, error) {
		return e.store.Get(ctx, userID)
	})
	if err != nil {
		return "", policy.Limits{}, err
	}
	tier := policy.EffectiveTier(rec.SubscriptionTier, rec.SubscriptionStatus)
	return tier, e.policy.LimitsFor(rec.SubscriptionTier, rec.SubscriptionStatus), nil
}

// callStore runs a store operation through the circuit breaker, retrying
// once after a short backoff on failure. Authorization and validation errors
// never reach this path, so every failure here is a storage fault.
func (e *Engine) callStore(ctx context.Context, op func() (*Record, error)) (*Record, error) {
	rec, err := e.execute(op)
	if err == nil {
		return rec, nil
	}

	select {
	case <-time.After(e.backoff):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrStorage, ctx.Err())
	}

	rec, err = e.execute(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return rec, nil
}

func (e *Engine) execute(op func() (*Record, error)) (*Record, error) {
	result, err := e.breaker.Execute(func() (interface{}, error) {
		return op()
	})
	if err != nil {
		return nil, err
	}
	return result.(*Record), nil
}

func (e *Engine) snapshot(rec *Record) *Snapshot {
	limits := e.policy.LimitsFor(rec.SubscriptionTier, rec.SubscriptionStatus)
	over := exceeds(rec.TokensUsed, limits.Tokens) ||
		exceeds(rec.MeetingSecondsUsed, limits.MeetingSeconds)

	return &Snapshot{
		UserID:                  rec.UserID,
		Tier:                    policy.EffectiveTier(rec.SubscriptionTier, rec.SubscriptionStatus),
		Status:                  rec.SubscriptionStatus,
		TokensUsed:              rec.TokensUsed,
		TokensLimit:             limits.Tokens,
		TokensRemaining:         remaining(rec.TokensUsed, limits.Tokens),
		MeetingSecondsUsed:      rec.MeetingSecondsUsed,
		MeetingSecondsLimit:     limits.MeetingSeconds,
		MeetingSecondsRemaining: remaining(rec.MeetingSecondsUsed, limits.MeetingSeconds),
		OverLimit:               over,
		PeriodStart:             rec.PeriodStart,
		PeriodEnd:               rec.PeriodEnd,
	}
}

func exceeds(used, limit int64) bool {
	return limit != policy.Unlimited && used > limit
}

func remaining(used, limit int64) int64 {
	if limit == policy.Unlimited {
		return policy.Unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}
