package domain

import "testing"

func TestPlanForTier(t *testing.T) {
	tests := []struct {
		name      string
		tier      Tier
		wantTier  Tier
		wantDaily int
	}{
		{name: "free", tier: TierFree, wantTier: TierFree, wantDaily: 5},
		{name: "premium", tier: TierPremium, wantTier: TierPremium, wantDaily: 50},
		{name: "developer", tier: TierDeveloper, wantTier: TierDeveloper, wantDaily: 200},
		{name: "uppercase premium", tier: Tier("PREMIUM"), wantTier: TierPremium, wantDaily: 50},
		{name: "unknown falls back to free", tier: Tier("enterprise"), wantTier: TierFree, wantDaily: 5},
		{name: "empty falls back to free", tier: Tier(""), wantTier: TierFree, wantDaily: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanForTier(tt.tier)
			if plan.Tier != tt.wantTier {
				t.Fatalf("PlanForTier(%q).Tier = %v, want %v", tt.tier, plan.Tier, tt.wantTier)
			}
			if plan.DailyResponses != tt.wantDaily {
				t.Fatalf("PlanForTier(%q).DailyResponses = %d, want %d", tt.tier, plan.DailyResponses, tt.wantDaily)
			}
		})
	}
}

func TestTierPersonaEligibility(t *testing.T) {
	free := PlanForTier(TierFree)
	if !free.AllowsPersona(PersonaPulse) {
		t.Fatalf("ожидали, что Pulse доступна на Free")
	}
	if free.AllowsPersona(PersonaSage) {
		t.Fatalf("не ожидали Sage на Free")
	}
	premium := PlanForTier(TierPremium)
	for _, p := range AllPersonas {
		if !premium.AllowsPersona(p.ID) {
			t.Fatalf("ожидали, что %s доступна на Premium", p.ID)
		}
	}
}
