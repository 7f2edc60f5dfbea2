/**
 * @description
 * This file defines the `Repository` and `OtpStore` interfaces, the contracts
 * for all persistence the wallet core depends on. Keeping the business logic
 * behind interfaces decouples it from PostgreSQL and Redis and lets tests
 * substitute in-memory fakes.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain: The wallet's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/SharathVaidya/Smartpay/internal/domain"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUsernameTaken         = errors.New("username already exists")
	ErrEmailTaken            = errors.New("email already exists")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrMonthlyLimitExceeded  = errors.New("monthly spending limit exceeded")
	ErrCategoryLimitExceeded = errors.New("category spending limit exceeded")
	ErrInvalidCategory       = errors.New("invalid or missing category")
	ErrAddMoneyLimitExceeded = errors.New("monthly add-money limit exceeded")
	ErrOtpNotFound           = errors.New("otp record not found")
)

// ApplyTransferParams carries everything the store needs to commit a transfer
// as one unit. The store re-validates balance and both limits with the user
// rows locked, so the caller's earlier snapshot can never be applied stale.
type ApplyTransferParams struct {
	Sender          string
	Receiver        string
	AmountPaise     int64
	Category        string
	Location        string
	OccurredAt      time.Time
	MonthlyCapPaise int64
	LatePayment     bool
	Notification    string
}

// Repository defines the set of methods for interacting with the user store.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// SumSentInCategory totals all-time "sent" ledger amounts for one user
	// and category. Used for the pre-lock category-limit snapshot.
	SumSentInCategory(ctx context.Context, username, category string) (int64, error)

	// ApplyTransfer performs the debit/credit, monthly-stat update, mirrored
	// ledger appends, receiver notification and sender score adjustment in a
	// single transaction. Returns ErrInsufficientFunds,
	// ErrMonthlyLimitExceeded, ErrCategoryLimitExceeded or ErrInvalidCategory
	// when the re-validation under lock fails; in every failure case neither
	// party's state changes.
	ApplyTransfer(ctx context.Context, params ApplyTransferParams) error

	// AddMoney credits a user's balance after applying the monthly reset and
	// enforcing the add-money cap, atomically.
	AddMoney(ctx context.Context, username string, amountPaise, capPaise int64, now time.Time) error

	UpdateSpendingLimits(ctx context.Context, username string, limits map[string]int64) error

	ListLedgerEntries(ctx context.Context, username string) ([]domain.LedgerEntry, error)
	ListNotifications(ctx context.Context, username string) ([]domain.Notification, error)
	ClearNotifications(ctx context.Context, username string) error

	// ListUsersWithHistory returns every user owning at least one ledger
	// entry. Used by the monthly statement job.
	ListUsersWithHistory(ctx context.Context) ([]domain.User, error)
}

// OtpStore holds the single active verification record per username.
// Implementations must expunge records after domain.OtpRetention regardless
// of use; the semantic expiry and lock timers belong to the OTP service.
type OtpStore interface {
	Find(ctx context.Context, username string) (*domain.OtpRecord, error)
	Upsert(ctx context.Context, record *domain.OtpRecord) error
	Delete(ctx context.Context, username string) error
}
