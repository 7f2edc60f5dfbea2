/**
 * @description
 * Application-level error values surfaced by the wallet and OTP services.
 * Store-level conditions (unknown user, insufficient funds, limit breaches)
 * are reported through the sentinels in internal/store; the errors here cover
 * credential and OTP outcomes that only the services can decide.
 */

package app

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIncorrectPIN       = errors.New("incorrect pin")
	ErrOtpRateLimited     = errors.New("max otp limit reached")
	ErrOtpExpired         = errors.New("otp expired")

	// ErrOtpLockedOut marks the attempt that installed the lock: the third
	// wrong code in a row.
	ErrOtpLockedOut = errors.New("too many wrong attempts")
)

// OtpLockedError is returned while a previously installed lock is still in
// the future. The lock check runs before expiry and correctness, so a
// locked-but-expired record reports locked, not expired.
type OtpLockedError struct {
	Until time.Time
}

func (e *OtpLockedError) Error() string {
	return "otp verification locked"
}

// RemainingMinutes reports the lock time left, rounded up for display.
func (e *OtpLockedError) RemainingMinutes(now time.Time) int {
	remaining := e.Until.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// OtpInvalidError reports a wrong code together with the attempts the caller
// has left before lockout.
type OtpInvalidError struct {
	AttemptsRemaining int
}

func (e *OtpInvalidError) Error() string {
	return fmt.Sprintf("invalid otp, %d attempts remaining", e.AttemptsRemaining)
}
