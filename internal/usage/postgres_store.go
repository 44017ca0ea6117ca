package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists one user_usage row per user. All increments run as a
// single INSERT ... ON CONFLICT DO UPDATE statement so that row creation and
// counter addition are one atomic round trip; Postgres row-level locking
// serializes concurrent increments for the same user.
type PostgresStore struct {
	db           DB
	periodLength time.Duration
}

func NewPostgresStore(db DB, periodLength time.Duration) *PostgresStore {
	return &PostgresStore{db: db, periodLength: periodLength}
}

const schema = `
	CREATE TABLE IF NOT EXISTS user_usage (
		user_id              TEXT PRIMARY KEY,
		tokens_used          BIGINT NOT NULL DEFAULT 0 CHECK (tokens_used >= 0),
		meeting_seconds_used BIGINT NOT NULL DEFAULT 0 CHECK (meeting_seconds_used >= 0),
		subscription_status  TEXT NOT NULL DEFAULT 'free',
		subscription_tier    TEXT NOT NULL DEFAULT 'free',
		period_start         TIMESTAMPTZ NOT NULL DEFAULT now(),
		period_end           TIMESTAMPTZ NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure user_usage schema: %w", err)
	}
	return nil
}

const recordColumns = `user_id, tokens_used, meeting_seconds_used, subscription_status, subscription_tier, period_start, period_end, created_at`

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Record, error) {
	now := time.Now().UTC()

	// Lazy creation: the insert is a no-op for existing users.
	insert := `
		INSERT INTO user_usage (user_id, period_start, period_end)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, insert, userID, now, now.Add(s.periodLength)); err != nil {
		return nil, fmt.Errorf("failed to create usage row: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM user_usage WHERE user_id = $1`
	rec, err := scanRecord(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get usage row: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Increment(ctx context.Context, userID string, metric Metric, amount int64) (*Record, error) {
	var tokens, seconds int64
	switch metric {
	case MetricTokens:
		tokens = amount
	case MetricMeetingSeconds:
		seconds = amount
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetric, metric)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO user_usage (user_id, tokens_used, meeting_seconds_used, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET tokens_used          = user_usage.tokens_used + EXCLUDED.tokens_used,
		    meeting_seconds_used = user_usage.meeting_seconds_used + EXCLUDED.meeting_seconds_used
		RETURNING ` + recordColumns

	rec, err := scanRecord(s.db.QueryRow(ctx, query,
		userID, tokens, seconds, now, now.Add(s.periodLength),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to increment usage: %w", err)
	}
	return rec, nil
}

// ResetExpiredPeriods zeroes counters and opens a fresh billing window for
// every row whose period has ended, preserving tier and status. Returns the
// number of rows rolled over.
func (s *PostgresStore) ResetExpiredPeriods(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE user_usage
		SET tokens_used = 0, meeting_seconds_used = 0, period_start = $1, period_end = $2
		WHERE period_end <= $1
	`
	tag, err := s.db.Exec(ctx, query, now.UTC(), now.UTC().Add(s.periodLength))
	if err != nil {
		return 0, fmt.Errorf("failed to reset expired periods: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.UserID, &rec.TokensUsed, &rec.MeetingSecondsUsed,
		&rec.SubscriptionStatus, &rec.SubscriptionTier,
		&rec.PeriodStart, &rec.PeriodEnd, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
