package usage

import (
	"context"
	"errors"
	"time"

	"github.com/quotaflow/metering/internal/policy"
)

// Metric is the kind of consumption being tracked.
type Metric string

const (
	MetricTokens         Metric = "tokens"
	MetricMeetingSeconds Metric = "meetingSeconds"
)

var (
	// ErrStorage reports that the backing store was unavailable after the
	// internal retry.
	ErrStorage = errors.New("usage store unavailable")

	// ErrInvalidMetric reports an unrecognized metric name.
	ErrInvalidMetric = errors.New("unknown metric")

	// ErrNonPositiveAmount reports an increment amount that should have been
	// rejected by request validation before reaching the engine.
	ErrNonPositiveAmount = errors.New("increment amount must be positive")
)

// Record is one user's consumption row for the current billing period.
// Tier and status are owned by the billing integration and treated as
// read-only here.
type Record struct {
	UserID             string
	TokensUsed         int64
	MeetingSecondsUsed int64
	SubscriptionStatus policy.Status
	SubscriptionTier   policy.Tier
	PeriodStart        time.Time
	PeriodEnd          time.Time
	CreatedAt          time.Time
}

// Snapshot is the point-in-time view of usage against ceilings returned by
// check and increment operations. Limits and remaining are -1 when unlimited.
type Snapshot struct {
	UserID                  string        `json:"userId"`
	Tier                    policy.Tier   `json:"tier"`
	Status                  policy.Status `json:"status"`
	TokensUsed              int64         `json:"tokensUsed"`
	TokensLimit             int64         `json:"tokensLimit"`
	TokensRemaining         int64         `json:"tokensRemaining"`
	MeetingSecondsUsed      int64         `json:"meetingSecondsUsed"`
	MeetingSecondsLimit     int64         `json:"meetingSecondsLimit"`
	MeetingSecondsRemaining int64         `json:"meetingSecondsRemaining"`
	OverLimit               bool          `json:"overLimit"`
	PeriodStart             time.Time     `json:"periodStart"`
	PeriodEnd               time.Time     `json:"periodEnd"`
}

// Store is the persistence contract for usage rows. Implementations must
// lazily create absent rows and must apply increments as a single atomic
// update so that concurrent increments for the same user never lose writes,
// even across multiple process instances.
type Store interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Increment(ctx context.Context, userID string, metric Metric, amount int64) (*Record, error)
}
