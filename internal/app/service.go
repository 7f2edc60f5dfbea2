/**
 * @description
 * This file contains the core business logic for the SmartPay wallet. The
 * `Service` struct owns signup/login credential checks and the transfer
 * authorizer: the ordered precondition pipeline plus the atomic ledger
 * mutation applied through the repository.
 *
 * Key features:
 * - Precondition order is fixed and significant: party resolution, PIN,
 *   funds, geolocation capture, monthly reset, monthly cap, category
 *   validity, category limit. The first failure aborts with zero mutation.
 * - Geolocation is the last external read before mutation; the repository
 *   re-validates every balance/limit check with the user rows locked.
 * - Email and event publication are best-effort and never change an outcome.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: Credential hashing and comparison.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/mailer, pkg/rabbitmq: Best-effort notification side effects.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/SharathVaidya/Smartpay/internal/domain"
	"github.com/SharathVaidya/Smartpay/internal/store"
	"github.com/SharathVaidya/Smartpay/pkg/mailer"
	"github.com/SharathVaidya/Smartpay/pkg/rabbitmq"
)

const (
	// InitialBalancePaise is credited to every new account.
	InitialBalancePaise = 500_00

	// DefaultMonthlyCapPaise bounds both monthly spending and monthly
	// add-money, unless overridden by configuration.
	DefaultMonthlyCapPaise = 7000_00

	eventsExchange = "smartpay.events"
)

// GeoResolver resolves a source IP to a human-readable location.
type GeoResolver interface {
	Resolve(ip string) (string, error)
}

// Service provides the core business logic for wallet operations.
type Service struct {
	repo            store.Repository
	mail            mailer.Sender
	geo             GeoResolver
	events          rabbitmq.Publisher
	monthlyCapPaise int64
	now             func() time.Time
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, mail mailer.Sender, geo GeoResolver, events rabbitmq.Publisher, monthlyCapPaise int64) *Service {
	if monthlyCapPaise <= 0 {
		monthlyCapPaise = DefaultMonthlyCapPaise
	}
	return &Service{
		repo:            repo,
		mail:            mail,
		geo:             geo,
		events:          events,
		monthlyCapPaise: monthlyCapPaise,
		now:             time.Now,
	}
}

// SignupInput carries the plaintext credentials for account creation.
type SignupInput struct {
	Username string
	Email    string
	Password string
	PIN      string
}

// Signup creates a user with the seeded balance, score and spending limits.
func (s *Service) Signup(ctx context.Context, input SignupInput) error {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	pinHash, err := bcrypt.GenerateFromPassword([]byte(input.PIN), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}

	user := &domain.User{
		Username:       input.Username,
		Email:          input.Email,
		PasswordHash:   string(passwordHash),
		PINHash:        string(pinHash),
		BalancePaise:   InitialBalancePaise,
		Score:          domain.ScoreDefault,
		SpendingLimits: domain.DefaultSpendingLimits(),
		MonthlyStats:   domain.MonthlyStats{LastReset: s.now()},
	}
	return s.repo.CreateUser(ctx, user)
}

// Authenticate verifies a username/password pair. It returns the user on
// success so the caller can continue with OTP issuance.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		if err == store.ErrUserNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// TransferInput carries one transfer request through the authorizer.
type TransferInput struct {
	Sender        string
	ReceiverEmail string
	AmountPaise   int64
	PIN           string
	Category      string
	LatePayment   bool
	SourceIP      string
}

// TransferReceipt summarizes a committed transfer.
type TransferReceipt struct {
	Receiver    string
	AmountPaise int64
	Location    string
	OccurredAt  time.Time
}

// Transfer runs the full authorization pipeline and, when every precondition
// passes, applies the ledger mutation as one unit.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (*TransferReceipt, error) {
	sender, err := s.repo.FindUserByUsername(ctx, input.Sender)
	if err != nil {
		return nil, err
	}
	receiver, err := s.repo.FindUserByEmail(ctx, input.ReceiverEmail)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(sender.PINHash), []byte(input.PIN)); err != nil {
		return nil, ErrIncorrectPIN
	}

	if input.AmountPaise > sender.BalancePaise {
		return nil, store.ErrInsufficientFunds
	}

	// Last external read before mutation: everything after this point is
	// re-validated by the store with the rows locked.
	location := s.resolveLocation(input.SourceIP)
	now := s.now()

	spentThisMonth := sender.MonthlyStats.SpentPaise
	if sender.MonthlyStats.NeedsReset(now) {
		spentThisMonth = 0
	}
	if spentThisMonth+input.AmountPaise > s.monthlyCapPaise {
		return nil, store.ErrMonthlyLimitExceeded
	}

	categoryLimit, ok := sender.SpendingLimits[input.Category]
	if input.Category == "" || !ok {
		return nil, store.ErrInvalidCategory
	}
	sentInCategory, err := s.repo.SumSentInCategory(ctx, sender.Username, input.Category)
	if err != nil {
		return nil, err
	}
	if sentInCategory+input.AmountPaise > categoryLimit {
		return nil, store.ErrCategoryLimitExceeded
	}

	notification := fmt.Sprintf("You received Rs %s from %s at %s",
		domain.FormatAmount(input.AmountPaise), sender.Username, now.Format("3:04:05 PM"))

	err = s.repo.ApplyTransfer(ctx, store.ApplyTransferParams{
		Sender:          sender.Username,
		Receiver:        receiver.Username,
		AmountPaise:     input.AmountPaise,
		Category:        input.Category,
		Location:        location,
		OccurredAt:      now,
		MonthlyCapPaise: s.monthlyCapPaise,
		LatePayment:     input.LatePayment,
		Notification:    notification,
	})
	if err != nil {
		return nil, err
	}

	go func(email, message string) {
		if sendErr := s.mail.Send(email, "SmartPay - Payment Received", message); sendErr != nil {
			log.Printf("level=warn component=wallet msg=\"receiver email failed\" receiver=%s err=%v", receiver.Username, sendErr)
		}
	}(receiver.Email, notification)

	if s.events != nil {
		event := domain.TransferCompletedEvent{
			Sender:      sender.Username,
			Receiver:    receiver.Username,
			AmountPaise: input.AmountPaise,
			Category:    input.Category,
			Location:    location,
			OccurredAt:  now,
		}
		if pubErr := s.events.Publish(ctx, eventsExchange, "wallet.transfer.completed", event); pubErr != nil {
			log.Printf("level=warn component=wallet msg=\"transfer event publish failed\" sender=%s err=%v", sender.Username, pubErr)
		}
	}

	return &TransferReceipt{
		Receiver:    receiver.Username,
		AmountPaise: input.AmountPaise,
		Location:    location,
		OccurredAt:  now,
	}, nil
}

func (s *Service) resolveLocation(ip string) string {
	if s.geo == nil || ip == "" {
		return "Unknown"
	}
	location, err := s.geo.Resolve(ip)
	if err != nil || location == "" {
		if err != nil {
			log.Printf("level=warn component=wallet msg=\"geolocation lookup failed\" err=%v", err)
		}
		return "Unknown"
	}
	return location
}

// AddMoney credits a user's balance, bounded by the monthly add-money cap.
func (s *Service) AddMoney(ctx context.Context, username string, amountPaise int64) error {
	return s.repo.AddMoney(ctx, username, amountPaise, s.monthlyCapPaise, s.now())
}

// UpdateSpendingLimits replaces the given category ceilings. Every value must
// be positive; zero or negative ceilings are rejected by the caller before
// conversion to paise.
func (s *Service) UpdateSpendingLimits(ctx context.Context, username string, limits map[string]int64) error {
	for category, limit := range limits {
		if limit <= 0 {
			return fmt.Errorf("%w: %s", store.ErrInvalidCategory, category)
		}
	}
	return s.repo.UpdateSpendingLimits(ctx, username, limits)
}

// Profile returns the stored user record.
func (s *Service) Profile(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.FindUserByUsername(ctx, username)
}

// History returns the user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, username string) ([]domain.LedgerEntry, error) {
	if _, err := s.repo.FindUserByUsername(ctx, username); err != nil {
		return nil, err
	}
	return s.repo.ListLedgerEntries(ctx, username)
}

// Notifications returns the user's notification inbox.
func (s *Service) Notifications(ctx context.Context, username string) ([]domain.Notification, error) {
	if _, err := s.repo.FindUserByUsername(ctx, username); err != nil {
		return nil, err
	}
	return s.repo.ListNotifications(ctx, username)
}

// ClearNotifications empties the user's notification inbox.
func (s *Service) ClearNotifications(ctx context.Context, username string) error {
	if _, err := s.repo.FindUserByUsername(ctx, username); err != nil {
		return err
	}
	return s.repo.ClearNotifications(ctx, username)
}
