package policy

import "testing"

func TestEffectiveTier_StatusOverride(t *testing.T) {
	cases := []struct {
		tier   Tier
		status Status
		want   Tier
	}{
		{TierPro, StatusActive, TierPro},
		{TierEnterprise, StatusActive, TierEnterprise},
		{TierPro, StatusPastDue, TierFree},
		{TierEnterprise, StatusCanceled, TierFree},
		{TierFree, StatusFree, TierFree},
	}

	for _, c := range cases {
		got := EffectiveTier(c.tier, c.status)
		if got != c.want {
			t.Errorf("EffectiveTier(%s, %s) = %s, want %s", c.tier, c.status, got, c.want)
		}
	}
}

func TestEffectiveTier_UnknownTierDefaultsToFree(t *testing.T) {
	if got := EffectiveTier("platinum", StatusActive); got != TierFree {
		t.Errorf("Expected free for unknown tier, got %s", got)
	}
	if got := EffectiveTier("", StatusActive); got != TierFree {
		t.Errorf("Expected free for empty tier, got %s", got)
	}
}

func TestLimitsFor_Defaults(t *testing.T) {
	table := Default()

	free := table.LimitsFor(TierFree, StatusFree)
	if free.Tokens != 50_000 || free.MeetingSeconds != 1_800 {
		t.Errorf("Unexpected free limits: %+v", free)
	}

	pro := table.LimitsFor(TierPro, StatusActive)
	if pro.Tokens != 2_000_000 || pro.MeetingSeconds != 36_000 {
		t.Errorf("Unexpected pro limits: %+v", pro)
	}

	ent := table.LimitsFor(TierEnterprise, StatusActive)
	if ent.Tokens != Unlimited || ent.MeetingSeconds != Unlimited {
		t.Errorf("Unexpected enterprise limits: %+v", ent)
	}
}

func TestLimitsFor_PastDueGetsFreeCeilings(t *testing.T) {
	table := Default()

	got := table.LimitsFor(TierPro, StatusPastDue)
	if got.Tokens != 50_000 {
		t.Errorf("Expected past_due pro to get free token ceiling, got %d", got.Tokens)
	}
}

func TestLimitsFor_CustomTable(t *testing.T) {
	table := NewTable(map[Tier]Limits{
		TierFree: {Tokens: 100, MeetingSeconds: 60},
		TierPro:  {Tokens: 1000, MeetingSeconds: 600},
	})

	if got := table.LimitsFor(TierPro, StatusActive); got.Tokens != 1000 {
		t.Errorf("Expected custom pro ceiling 1000, got %d", got.Tokens)
	}
	// Enterprise absent from the table falls back to free.
	if got := table.LimitsFor(TierEnterprise, StatusActive); got.Tokens != 100 {
		t.Errorf("Expected fallback to free ceiling, got %d", got.Tokens)
	}
}
