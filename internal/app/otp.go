/**
 * @description
 * This file implements the login OTP state machine: issuing 6-digit codes
 * over email and verifying them with lockout and rate-limit rules.
 *
 * Key features:
 * - Verification order is lockout first, then expiry, then code match. A
 *   correct code while locked still fails with the lockout error.
 * - The third consecutive wrong code starts a 15-minute lock. Issuing a
 *   fresh code resets the attempt counter and clears any lock.
 * - At most five codes per stored record; the sixth request is refused.
 * - Per-username striped mutexes serialize concurrent read-modify-write on
 *   the same record so attempt counts never race.
 *
 * @dependencies
 * - crypto/rand: Uniform random code generation.
 * - internal/domain, internal/store: OTP record model and storage.
 * - pkg/mailer, pkg/rabbitmq: Code delivery and the issued event.
 */

package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"hash/fnv"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/SharathVaidya/Smartpay/internal/domain"
	"github.com/SharathVaidya/Smartpay/internal/store"
	"github.com/SharathVaidya/Smartpay/pkg/mailer"
	"github.com/SharathVaidya/Smartpay/pkg/rabbitmq"
)

const otpStripes = 64

// OtpService issues and verifies login OTP codes.
type OtpService struct {
	users  store.Repository
	otps   store.OtpStore
	mail   mailer.Sender
	events rabbitmq.Publisher
	now    func() time.Time

	locks [otpStripes]sync.Mutex
}

// NewOtpService creates a new OTP service instance.
func NewOtpService(users store.Repository, otps store.OtpStore, mail mailer.Sender, events rabbitmq.Publisher) *OtpService {
	return &OtpService{
		users:  users,
		otps:   otps,
		mail:   mail,
		events: events,
		now:    time.Now,
	}
}

func (s *OtpService) stripe(username string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(username))
	return &s.locks[h.Sum32()%otpStripes]
}

// CheckLock reports an active verification lock for the username as an
// OtpLockedError, or nil when no lock stands. Login refuses to issue a fresh
// code while the user is locked out; an Issue call itself still clears the
// lock, so callers that must honor it check first.
func (s *OtpService) CheckLock(ctx context.Context, username string) error {
	mu := s.stripe(username)
	mu.Lock()
	defer mu.Unlock()

	record, err := s.otps.Find(ctx, username)
	if err != nil {
		if err == store.ErrOtpNotFound {
			return nil
		}
		return err
	}
	if record.Locked(s.now()) {
		return &OtpLockedError{Until: record.LockedUntil}
	}
	return nil
}

// Issue generates and emails a fresh code for the user. A fresh code always
// supersedes any previous one: the attempt counter resets and any lock is
// cleared.
func (s *OtpService) Issue(ctx context.Context, username string) error {
	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		return err
	}

	mu := s.stripe(username)
	mu.Lock()
	defer mu.Unlock()

	sentCount := 0
	record, err := s.otps.Find(ctx, username)
	if err != nil && err != store.ErrOtpNotFound {
		return err
	}
	if record != nil {
		sentCount = record.SentCount
	}
	if sentCount >= domain.OtpMaxSends {
		return ErrOtpRateLimited
	}

	code, err := generateOtpCode()
	if err != nil {
		return fmt.Errorf("failed to generate otp code: %w", err)
	}

	now := s.now()
	fresh := &domain.OtpRecord{
		Username:  username,
		Code:      code,
		ExpiresAt: now.Add(domain.OtpTTL),
		Attempts:  0,
		SentCount: sentCount + 1,
	}
	if err := s.otps.Upsert(ctx, fresh); err != nil {
		return err
	}

	go func(email, code string) {
		body := fmt.Sprintf("Your OTP is %s (valid for 5 min)", code)
		if sendErr := s.mail.Send(email, "SmartPay OTP", body); sendErr != nil {
			log.Printf("level=warn component=otp msg=\"otp email failed\" user=%s err=%v", username, sendErr)
		}
	}(user.Email, code)

	if s.events != nil {
		event := domain.OtpIssuedEvent{
			Username:  username,
			SentCount: fresh.SentCount,
			ExpiresAt: fresh.ExpiresAt,
		}
		if pubErr := s.events.Publish(ctx, eventsExchange, "wallet.otp.issued", event); pubErr != nil {
			log.Printf("level=warn component=otp msg=\"otp event publish failed\" user=%s err=%v", username, pubErr)
		}
	}

	return nil
}

// Verify checks the submitted code. On success the record is consumed so the
// code cannot be replayed.
func (s *OtpService) Verify(ctx context.Context, username, code string) error {
	mu := s.stripe(username)
	mu.Lock()
	defer mu.Unlock()

	record, err := s.otps.Find(ctx, username)
	if err != nil {
		return err
	}

	now := s.now()
	if record.Locked(now) {
		return &OtpLockedError{Until: record.LockedUntil}
	}
	if record.Code == "" || record.Expired(now) {
		return ErrOtpExpired
	}
	if record.Code != code {
		record.Attempts++
		if record.Attempts >= domain.OtpMaxAttempts {
			record.LockedUntil = now.Add(domain.OtpLockDuration)
			if err := s.otps.Upsert(ctx, record); err != nil {
				return err
			}
			return ErrOtpLockedOut
		}
		if err := s.otps.Upsert(ctx, record); err != nil {
			return err
		}
		return &OtpInvalidError{AttemptsRemaining: domain.OtpMaxAttempts - record.Attempts}
	}

	// Consume the code but keep the record: the per-username send counter
	// must survive a successful login until the store expunges the record.
	record.Code = ""
	record.Attempts = 0
	record.ExpiresAt = now
	return s.otps.Upsert(ctx, record)
}

func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
