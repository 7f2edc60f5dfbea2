/**
 * @description
 * This file defines the core domain models for the SmartPay wallet: the user
 * record with its balance, trust score, monthly statistics and per-category
 * spending limits, plus the append-only ledger entries and notification rows
 * that hang off a user.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (paise), which
 *   avoids floating-point drift in repeated balance additions.
 * - Ledger entries are immutable once written; a transfer always inserts the
 *   mirrored "sent"/"received" pair in the same database transaction.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry directions. A transfer writes one of each.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Score bounds and adjustments applied by the transfer authorizer.
const (
	ScoreDefault      = 700
	ScoreMin          = 0
	ScoreMax          = 1000
	ScoreOnTimeBonus  = 20
	ScoreLatePenalty  = 30
)

// DefaultSpendingLimits seeds a new user's per-category ceilings, in paise.
// The per-user mapping is authoritative after signup; this five-category set
// is only the starting point.
func DefaultSpendingLimits() map[string]int64 {
	return map[string]int64{
		"Food":     2000_00,
		"Travel":   1000_00,
		"Shopping": 1500_00,
		"Bills":    1500_00,
		"Others":   1000_00,
	}
}

// MonthlyStats tracks cumulative added/spent amounts for the current calendar
// month. Both counters reset to zero the first time an operation observes a
// month different from LastReset's month.
type MonthlyStats struct {
	AddedPaise int64     `json:"added"`
	SpentPaise int64     `json:"spent"`
	LastReset  time.Time `json:"last_reset"`
}

// NeedsReset reports whether the stats belong to an earlier calendar month
// than the supplied time.
func (m MonthlyStats) NeedsReset(now time.Time) bool {
	return m.LastReset.Month() != now.Month() || m.LastReset.Year() != now.Year()
}

// User is the wallet account record. PasswordHash and PINHash are bcrypt
// digests; the plaintext credentials never reach the store.
type User struct {
	Username       string           `json:"username"`
	Email          string           `json:"email"`
	PasswordHash   string           `json:"-"`
	PINHash        string           `json:"-"`
	BalancePaise   int64            `json:"balance"`
	Score          int              `json:"score"`
	SpendingLimits map[string]int64 `json:"spending_limits"`
	MonthlyStats   MonthlyStats     `json:"monthly_stats"`
	CreatedAt      time.Time        `json:"created_at"`
}

// LedgerEntry is one side of a transfer as seen by its owner. Counterparty,
// time, location and category are denormalized copies captured at transfer
// time; the mirrored entry on the other side carries identical values.
type LedgerEntry struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"-"`
	Direction    string    `json:"type"`
	AmountPaise  int64     `json:"amount"`
	Counterparty string    `json:"counterparty"`
	OccurredAt   time.Time `json:"time"`
	Location     string    `json:"location"`
	Category     string    `json:"category"`
}

// Notification is a message delivered to a user's in-app inbox.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"-"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ClampScore bounds a prospective score to [ScoreMin, ScoreMax].
func ClampScore(score int) int {
	if score < ScoreMin {
		return ScoreMin
	}
	if score > ScoreMax {
		return ScoreMax
	}
	return score
}
