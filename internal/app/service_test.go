package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/SharathVaidya/Smartpay/internal/domain"
	"github.com/SharathVaidya/Smartpay/internal/store"
)

// fakeRepo is an in-memory Repository that mirrors the store's transfer
// mutation semantics so service-level outcomes can be asserted end to end.
type fakeRepo struct {
	store.Repository

	mu            sync.Mutex
	users         map[string]*domain.User
	ledger        []domain.LedgerEntry
	notifications []domain.Notification
}

func newFakeRepo(users ...*domain.User) *fakeRepo {
	r := &fakeRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.Username] = u
	}
	return r
}

func (r *fakeRepo) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *fakeRepo) SumSentInCategory(ctx context.Context, username, category string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, entry := range r.ledger {
		if entry.Username == username && entry.Direction == domain.DirectionSent && entry.Category == category {
			total += entry.AmountPaise
		}
	}
	return total, nil
}

func (r *fakeRepo) ApplyTransfer(ctx context.Context, params store.ApplyTransferParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender := r.users[params.Sender]
	receiver := r.users[params.Receiver]

	if params.AmountPaise > sender.BalancePaise {
		return store.ErrInsufficientFunds
	}
	if sender.MonthlyStats.NeedsReset(params.OccurredAt) {
		sender.MonthlyStats.SpentPaise = 0
		sender.MonthlyStats.AddedPaise = 0
		sender.MonthlyStats.LastReset = params.OccurredAt
	}
	if sender.MonthlyStats.SpentPaise+params.AmountPaise > params.MonthlyCapPaise {
		return store.ErrMonthlyLimitExceeded
	}

	sender.BalancePaise -= params.AmountPaise
	sender.MonthlyStats.SpentPaise += params.AmountPaise
	receiver.BalancePaise += params.AmountPaise

	if params.LatePayment {
		sender.Score = domain.ClampScore(sender.Score - domain.ScoreLatePenalty)
	} else {
		sender.Score = domain.ClampScore(sender.Score + domain.ScoreOnTimeBonus)
	}

	r.ledger = append(r.ledger,
		domain.LedgerEntry{
			Username:     params.Sender,
			Direction:    domain.DirectionSent,
			AmountPaise:  params.AmountPaise,
			Counterparty: params.Receiver,
			OccurredAt:   params.OccurredAt,
			Location:     params.Location,
			Category:     params.Category,
		},
		domain.LedgerEntry{
			Username:     params.Receiver,
			Direction:    domain.DirectionReceived,
			AmountPaise:  params.AmountPaise,
			Counterparty: params.Sender,
			OccurredAt:   params.OccurredAt,
			Location:     params.Location,
			Category:     params.Category,
		},
	)
	r.notifications = append(r.notifications, domain.Notification{
		Username:  params.Receiver,
		Message:   params.Notification,
		CreatedAt: params.OccurredAt,
	})
	return nil
}

func (r *fakeRepo) AddMoney(ctx context.Context, username string, amountPaise, capPaise int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return store.ErrUserNotFound
	}
	if user.MonthlyStats.NeedsReset(now) {
		user.MonthlyStats.SpentPaise = 0
		user.MonthlyStats.AddedPaise = 0
		user.MonthlyStats.LastReset = now
	}
	if user.MonthlyStats.AddedPaise+amountPaise > capPaise {
		return store.ErrAddMoneyLimitExceeded
	}
	user.BalancePaise += amountPaise
	user.MonthlyStats.AddedPaise += amountPaise
	return nil
}

func (r *fakeRepo) UpdateSpendingLimits(ctx context.Context, username string, limits map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return store.ErrUserNotFound
	}
	for category, limit := range limits {
		user.SpendingLimits[category] = limit
	}
	return nil
}

func (r *fakeRepo) ListLedgerEntries(ctx context.Context, username string) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LedgerEntry
	for i := len(r.ledger) - 1; i >= 0; i-- {
		if r.ledger[i].Username == username {
			out = append(out, r.ledger[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) ListNotifications(ctx context.Context, username string) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.notifications {
		if n.Username == username {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeRepo) ClearNotifications(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.notifications[:0]
	for _, n := range r.notifications {
		if n.Username != username {
			kept = append(kept, n)
		}
	}
	r.notifications = kept
	return nil
}

func (r *fakeRepo) ListUsersWithHistory(ctx context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var out []domain.User
	for _, entry := range r.ledger {
		if seen[entry.Username] {
			continue
		}
		seen[entry.Username] = true
		if user, ok := r.users[entry.Username]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (r *fakeRepo) snapshot(username string) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.users[username]
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return nil
}

func (m *recordingMailer) SendAttachment(to, subject, body, filename string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, filename)
	return nil
}

type stubGeo struct {
	location string
	err      error
}

func (g *stubGeo) Resolve(ip string) (string, error) {
	return g.location, g.err
}

func hashCredential(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash credential: %v", err)
	}
	return string(hash)
}

func testUser(t *testing.T, username, email string, balance int64, now time.Time) *domain.User {
	t.Helper()
	return &domain.User{
		Username:       username,
		Email:          email,
		PasswordHash:   hashCredential(t, "password123"),
		PINHash:        hashCredential(t, "1234"),
		BalancePaise:   balance,
		Score:          domain.ScoreDefault,
		SpendingLimits: domain.DefaultSpendingLimits(),
		MonthlyStats:   domain.MonthlyStats{LastReset: now},
	}
}

func newTestService(repo store.Repository) *Service {
	svc := NewService(repo, &recordingMailer{}, &stubGeo{location: "Pune, MH, IN"}, nil, DefaultMonthlyCapPaise)
	svc.now = func() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestTransferRejectsInsufficientBalance(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(
		testUser(t, "alice", "alice@example.com", 500_00, now),
		testUser(t, "bob", "bob@example.com", 200_00, now),
	)
	svc := newTestService(repo)

	_, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   600_00,
		PIN:           "1234",
		Category:      "Food",
	})
	if err != store.ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := repo.snapshot("alice").BalancePaise; got != 500_00 {
		t.Fatalf("sender balance changed on failed transfer: %d", got)
	}
	if got := repo.snapshot("bob").BalancePaise; got != 200_00 {
		t.Fatalf("receiver balance changed on failed transfer: %d", got)
	}
}

func TestTransferRejectsIncorrectPIN(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(
		testUser(t, "alice", "alice@example.com", 500_00, now),
		testUser(t, "bob", "bob@example.com", 0, now),
	)
	svc := newTestService(repo)

	_, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   100_00,
		PIN:           "9999",
		Category:      "Food",
	})
	if err != ErrIncorrectPIN {
		t.Fatalf("expected ErrIncorrectPIN, got %v", err)
	}
}

func TestTransferRejectsUnknownReceiver(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(testUser(t, "alice", "alice@example.com", 500_00, now))
	svc := newTestService(repo)

	_, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "nobody@example.com",
		AmountPaise:   100_00,
		PIN:           "1234",
		Category:      "Food",
	})
	if err != store.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTransferRejectsInvalidCategory(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(
		testUser(t, "alice", "alice@example.com", 500_00, now),
		testUser(t, "bob", "bob@example.com", 0, now),
	)
	svc := newTestService(repo)

	for _, category := range []string{"", "Gambling"} {
		_, err := svc.Transfer(context.Background(), TransferInput{
			Sender:        "alice",
			ReceiverEmail: "bob@example.com",
			AmountPaise:   100_00,
			PIN:           "1234",
			Category:      category,
		})
		if err != store.ErrInvalidCategory {
			t.Fatalf("category %q: expected ErrInvalidCategory, got %v", category, err)
		}
	}
}

func TestTransferRejectsCategoryLimitBreach(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(
		testUser(t, "alice", "alice@example.com", 5000_00, now),
		testUser(t, "bob", "bob@example.com", 0, now),
	)
	// Food limit is 2000; 1900 already sent in the category.
	repo.ledger = append(repo.ledger, domain.LedgerEntry{
		Username:    "alice",
		Direction:   domain.DirectionSent,
		AmountPaise: 1900_00,
		Category:    "Food",
	})
	svc := newTestService(repo)

	_, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   200_00,
		PIN:           "1234",
		Category:      "Food",
	})
	if err != store.ErrCategoryLimitExceeded {
		t.Fatalf("expected ErrCategoryLimitExceeded, got %v", err)
	}

	// Exactly reaching the limit is allowed.
	if _, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   100_00,
		PIN:           "1234",
		Category:      "Food",
	}); err != nil {
		t.Fatalf("transfer reaching the exact category limit failed: %v", err)
	}
}

func TestTransferRejectsMonthlyCapBreach(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	sender := testUser(t, "alice", "alice@example.com", 8000_00, now)
	sender.MonthlyStats.SpentPaise = 6950_00
	repo := newFakeRepo(sender, testUser(t, "bob", "bob@example.com", 0, now))
	svc := newTestService(repo)

	_, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   100_00,
		PIN:           "1234",
		Category:      "Food",
	})
	if err != store.ErrMonthlyLimitExceeded {
		t.Fatalf("expected ErrMonthlyLimitExceeded, got %v", err)
	}
}

func TestTransferMonthlyCounterResetsInNewMonth(t *testing.T) {
	lastMonth := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	sender := testUser(t, "alice", "alice@example.com", 8000_00, lastMonth)
	sender.MonthlyStats.SpentPaise = 6950_00
	repo := newFakeRepo(sender, testUser(t, "bob", "bob@example.com", 0, lastMonth))
	svc := newTestService(repo)

	if _, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   100_00,
		PIN:           "1234",
		Category:      "Food",
	}); err != nil {
		t.Fatalf("transfer after month rollover failed: %v", err)
	}

	if got := repo.snapshot("alice").MonthlyStats.SpentPaise; got != 100_00 {
		t.Fatalf("expected spent counter reset to 100_00, got %d", got)
	}
}

func TestTransferAppliesMutationAndScoreBonus(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(
		testUser(t, "alice", "alice@example.com", 500_00, now),
		testUser(t, "bob", "bob@example.com", 200_00, now),
	)
	svc := newTestService(repo)

	receipt, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   100_00,
		PIN:           "1234",
		Category:      "Food",
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	alice := repo.snapshot("alice")
	bob := repo.snapshot("bob")
	if alice.BalancePaise != 400_00 {
		t.Fatalf("expected sender balance 400_00, got %d", alice.BalancePaise)
	}
	if bob.BalancePaise != 300_00 {
		t.Fatalf("expected receiver balance 300_00, got %d", bob.BalancePaise)
	}
	if alice.Score != domain.ScoreDefault+domain.ScoreOnTimeBonus {
		t.Fatalf("expected score %d, got %d", domain.ScoreDefault+domain.ScoreOnTimeBonus, alice.Score)
	}
	if alice.MonthlyStats.SpentPaise != 100_00 {
		t.Fatalf("expected spent counter 100_00, got %d", alice.MonthlyStats.SpentPaise)
	}

	if len(repo.ledger) != 2 {
		t.Fatalf("expected mirrored ledger pair, got %d entries", len(repo.ledger))
	}
	if repo.ledger[0].Direction != domain.DirectionSent || repo.ledger[1].Direction != domain.DirectionReceived {
		t.Fatalf("unexpected ledger directions: %s / %s", repo.ledger[0].Direction, repo.ledger[1].Direction)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("expected one receiver notification, got %d", len(repo.notifications))
	}
	if !strings.Contains(repo.notifications[0].Message, "You received Rs 100 from alice") {
		t.Fatalf("unexpected notification message: %q", repo.notifications[0].Message)
	}
	if receipt.Receiver != "bob" || receipt.Location != "Pune, MH, IN" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestTransferLatePaymentPenaltyAndClamp(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	sender := testUser(t, "alice", "alice@example.com", 5000_00, now)
	sender.Score = 10
	repo := newFakeRepo(sender, testUser(t, "bob", "bob@example.com", 0, now))
	svc := newTestService(repo)

	if _, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   50_00,
		PIN:           "1234",
		Category:      "Food",
		LatePayment:   true,
	}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if got := repo.snapshot("alice").Score; got != domain.ScoreMin {
		t.Fatalf("expected score clamped to %d, got %d", domain.ScoreMin, got)
	}
}

func TestTransferLocationFallsBackToUnknown(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(
		testUser(t, "alice", "alice@example.com", 500_00, now),
		testUser(t, "bob", "bob@example.com", 0, now),
	)
	svc := newTestService(repo)
	svc.geo = &stubGeo{err: context.DeadlineExceeded}

	receipt, err := svc.Transfer(context.Background(), TransferInput{
		Sender:        "alice",
		ReceiverEmail: "bob@example.com",
		AmountPaise:   100_00,
		PIN:           "1234",
		Category:      "Food",
		SourceIP:      "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if receipt.Location != "Unknown" {
		t.Fatalf("expected Unknown location, got %q", receipt.Location)
	}
}

func TestAddMoneyEnforcesMonthlyCap(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	user := testUser(t, "alice", "alice@example.com", 500_00, now)
	user.MonthlyStats.AddedPaise = 6950_00
	repo := newFakeRepo(user)
	svc := newTestService(repo)

	if err := svc.AddMoney(context.Background(), "alice", 100_00); err != store.ErrAddMoneyLimitExceeded {
		t.Fatalf("expected ErrAddMoneyLimitExceeded, got %v", err)
	}
	if err := svc.AddMoney(context.Background(), "alice", 50_00); err != nil {
		t.Fatalf("add within cap failed: %v", err)
	}
	if got := repo.snapshot("alice").BalancePaise; got != 550_00 {
		t.Fatalf("expected balance 550_00, got %d", got)
	}
}

func TestAuthenticateRejectsBadPassword(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(testUser(t, "alice", "alice@example.com", 500_00, now))
	svc := newTestService(repo)

	if _, err := svc.Authenticate(context.Background(), "alice", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "ghost", "password123"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "alice", "password123"); err != nil {
		t.Fatalf("expected successful authentication, got %v", err)
	}
}

func TestUpdateSpendingLimitsRejectsNonPositive(t *testing.T) {
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := newFakeRepo(testUser(t, "alice", "alice@example.com", 500_00, now))
	svc := newTestService(repo)

	err := svc.UpdateSpendingLimits(context.Background(), "alice", map[string]int64{"Food": 0})
	if err == nil {
		t.Fatal("expected error for zero limit")
	}
}
