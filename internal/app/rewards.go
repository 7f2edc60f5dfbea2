/**
 * @description
 * This file maps a user's trust score onto a reward tier. Tiers are checked
 * highest first; users below every tier receive a random savings tip instead
 * of a reward.
 */

package app

import (
	"context"
	"math/rand"
)

// Reward is the outcome of a rewards lookup.
type Reward struct {
	Score   int    `json:"score"`
	Tier    string `json:"tier"`
	Message string `json:"message"`
}

var savingsTips = []string{
	"Tip: Pay on time to grow your trust score.",
	"Tip: Set category limits that match your real spending.",
	"Tip: Small regular transfers build a better history than rare large ones.",
	"Tip: Review your monthly statement to spot avoidable spending.",
}

// Rewards returns the reward tier for the user's current trust score.
func (s *Service) Rewards(ctx context.Context, username string) (*Reward, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return rewardForScore(user.Score), nil
}

func rewardForScore(score int) *Reward {
	switch {
	case score > 800:
		return &Reward{Score: score, Tier: "cashback", Message: "You earned 5% cashback on your next transfer!"}
	case score > 700:
		return &Reward{Score: score, Tier: "coupons", Message: "You unlocked partner discount coupons!"}
	case score > 600:
		return &Reward{Score: score, Tier: "free_item", Message: "You earned a free item on your next order!"}
	default:
		return &Reward{Score: score, Tier: "tip", Message: savingsTips[rand.Intn(len(savingsTips))]}
	}
}
