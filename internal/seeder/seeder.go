package seeder

import (
	"context"
	"log"

	"github.com/quotaflow/metering/internal/usage"
)

const DemoUserID = "00000000-0000-0000-0000-000000000001"

// SeedDemoUser creates a zeroed free-tier usage row for local testing,
// relying on the store's lazy creation.
func SeedDemoUser(ctx context.Context, store usage.Store) {
	rec, err := store.Get(ctx, DemoUserID)
	if err != nil {
		log.Printf("[Seeder] failed to seed demo user: %v", err)
		return
	}
	log.Printf("[Seeder] Demo usage row ready")
	log.Printf("[Seeder] UserID: %s", rec.UserID)
	log.Printf("[Seeder] Tier: %s, Status: %s", rec.SubscriptionTier, rec.SubscriptionStatus)
}
