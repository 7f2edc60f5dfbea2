/**
 * @description
 * One-time-passcode record and its lifecycle constants. A record is keyed by
 * username and holds exactly one active code: reissue overwrites the code in
 * place rather than appending, so attempts and sent_count stay scoped to the
 * current code.
 */

package domain

import "time"

// OTP timer and counter policy.
const (
	OtpCodeLength   = 6
	OtpTTL          = 5 * time.Minute
	OtpLockDuration = 15 * time.Minute
	OtpMaxAttempts  = 3
	OtpMaxSends     = 5

	// OtpRetention bounds how long a record may linger in the store
	// regardless of use. Store-level housekeeping, independent of the
	// expiry and lock timers above.
	OtpRetention = time.Hour
)

// OtpRecord is the single mutable verification record for a username.
type OtpRecord struct {
	Username    string    `json:"username"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	SentCount   int       `json:"sent_count"`
	LockedUntil time.Time `json:"locked_until,omitempty"`
}

// Locked reports whether verification is currently refused regardless of
// code correctness.
func (r OtpRecord) Locked(now time.Time) bool {
	return !r.LockedUntil.IsZero() && now.Before(r.LockedUntil)
}

// Expired reports whether the active code is past its expiry.
func (r OtpRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
