package app

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRewardTiers(t *testing.T) {
	tests := []struct {
		name  string
		score int
		tier  string
	}{
		{name: "top score earns cashback", score: 900, tier: "cashback"},
		{name: "801 crosses cashback threshold", score: 801, tier: "cashback"},
		{name: "800 falls to coupons", score: 800, tier: "coupons"},
		{name: "701 crosses coupon threshold", score: 701, tier: "coupons"},
		{name: "650 earns free item", score: 650, tier: "free_item"},
		{name: "600 falls to tip", score: 600, tier: "tip"},
		{name: "floor score gets tip", score: 0, tier: "tip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reward := rewardForScore(tt.score)
			if reward.Tier != tt.tier {
				t.Fatalf("score %d: expected tier %q, got %q", tt.score, tt.tier, reward.Tier)
			}
			if reward.Score != tt.score {
				t.Fatalf("expected score %d echoed, got %d", tt.score, reward.Score)
			}
			if tt.tier == "tip" && !strings.HasPrefix(reward.Message, "Tip:") {
				t.Fatalf("expected a savings tip, got %q", reward.Message)
			}
		})
	}
}

func TestRewardsLooksUpUserScore(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	user := testUser(t, "alice", "alice@example.com", 500_00, now)
	user.Score = 850
	svc := newTestService(newFakeRepo(user))

	reward, err := svc.Rewards(context.Background(), "alice")
	if err != nil {
		t.Fatalf("rewards lookup failed: %v", err)
	}
	if reward.Tier != "cashback" {
		t.Fatalf("expected cashback tier for score 850, got %q", reward.Tier)
	}
}
