/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all SQL for the users, spending limits, ledger and
 * notification tables, including the row-locked transaction that commits a
 * transfer as a single unit.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SharathVaidya/Smartpay/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the wallet tables when they do not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			pin_hash TEXT NOT NULL,
			balance_paise BIGINT NOT NULL DEFAULT 0 CHECK (balance_paise >= 0),
			score INT NOT NULL DEFAULT 700 CHECK (score BETWEEN 0 AND 1000),
			monthly_added_paise BIGINT NOT NULL DEFAULT 0,
			monthly_spent_paise BIGINT NOT NULL DEFAULT 0,
			monthly_last_reset DATE NOT NULL DEFAULT CURRENT_DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS user_spending_limits (
			username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
			category TEXT NOT NULL,
			limit_paise BIGINT NOT NULL CHECK (limit_paise > 0),
			PRIMARY KEY (username, category)
		);`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
			direction TEXT NOT NULL CHECK (direction IN ('sent', 'received')),
			amount_paise BIGINT NOT NULL CHECK (amount_paise > 0),
			counterparty TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			location TEXT NOT NULL DEFAULT 'Unknown',
			category TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_owner ON ledger_entries (username, direction, category);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser inserts a new user row together with its seeded spending limits.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO users (username, email, password_hash, pin_hash, balance_paise, score, monthly_last_reset)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.PINHash,
		user.BalancePaise,
		user.Score,
		user.MonthlyStats.LastReset,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "users_email_key" {
				return ErrEmailTaken
			}
			return ErrUsernameTaken
		}
		return err
	}

	for category, limit := range user.SpendingLimits {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_spending_limits (username, category, limit_paise) VALUES ($1, $2, $3)`,
			user.Username, category, limit,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindUserByUsername retrieves a user and their spending limits.
func (r *PostgresRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT username, email, password_hash, pin_hash, balance_paise, score,
		       monthly_added_paise, monthly_spent_paise, monthly_last_reset, created_at
		FROM users
		WHERE username = $1
	`
	return r.scanUser(ctx, query, username)
}

// FindUserByEmail retrieves a user and their spending limits by email address.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT username, email, password_hash, pin_hash, balance_paise, score,
		       monthly_added_paise, monthly_spent_paise, monthly_last_reset, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`
	return r.scanUser(ctx, query, email)
}

func (r *PostgresRepository) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.PINHash,
		&user.BalancePaise,
		&user.Score,
		&user.MonthlyStats.AddedPaise,
		&user.MonthlyStats.SpentPaise,
		&user.MonthlyStats.LastReset,
		&user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	limits, err := r.loadSpendingLimits(ctx, r.db, user.Username)
	if err != nil {
		return nil, err
	}
	user.SpendingLimits = limits
	return &user, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PostgresRepository) loadSpendingLimits(ctx context.Context, q rowQuerier, username string) (map[string]int64, error) {
	rows, err := q.Query(ctx, `SELECT category, limit_paise FROM user_spending_limits WHERE username = $1`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	limits := make(map[string]int64)
	for rows.Next() {
		var category string
		var limit int64
		if err := rows.Scan(&category, &limit); err != nil {
			return nil, err
		}
		limits[category] = limit
	}
	return limits, rows.Err()
}

// SumSentInCategory totals all-time "sent" amounts for one user and category.
func (r *PostgresRepository) SumSentInCategory(ctx context.Context, username, category string) (int64, error) {
	var total int64
	query := `
		SELECT COALESCE(SUM(amount_paise), 0)
		FROM ledger_entries
		WHERE username = $1 AND direction = 'sent' AND category = $2
	`
	if err := r.db.QueryRow(ctx, query, username, category).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ApplyTransfer commits the full transfer mutation in one transaction. Both
// user rows are locked FOR UPDATE in username order and every business check
// re-runs under the lock before anything is written.
func (r *PostgresRepository) ApplyTransfer(ctx context.Context, params ApplyTransferParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	first, second := params.Sender, params.Receiver
	if second < first {
		first, second = second, first
	}
	lockQuery := `
		SELECT username, balance_paise, monthly_spent_paise, monthly_last_reset, score
		FROM users
		WHERE username = $1 OR username = $2
		ORDER BY username
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, lockQuery, first, second)
	if err != nil {
		return err
	}

	type lockedRow struct {
		balance      int64
		monthlySpent int64
		lastReset    time.Time
		score        int
	}
	locked := make(map[string]lockedRow, 2)
	for rows.Next() {
		var username string
		var row lockedRow
		if err := rows.Scan(&username, &row.balance, &row.monthlySpent, &row.lastReset, &row.score); err != nil {
			rows.Close()
			return err
		}
		locked[username] = row
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	sender, ok := locked[params.Sender]
	if !ok {
		return ErrUserNotFound
	}
	if _, ok := locked[params.Receiver]; !ok {
		return ErrUserNotFound
	}

	if sender.balance < params.AmountPaise {
		return ErrInsufficientFunds
	}

	monthlySpent := sender.monthlySpent
	resetStats := sender.lastReset.Month() != params.OccurredAt.Month() || sender.lastReset.Year() != params.OccurredAt.Year()
	if resetStats {
		monthlySpent = 0
	}
	if monthlySpent+params.AmountPaise > params.MonthlyCapPaise {
		return ErrMonthlyLimitExceeded
	}

	var categoryLimit int64
	err = tx.QueryRow(ctx,
		`SELECT limit_paise FROM user_spending_limits WHERE username = $1 AND category = $2`,
		params.Sender, params.Category,
	).Scan(&categoryLimit)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrInvalidCategory
		}
		return err
	}

	var sentInCategory int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_paise), 0) FROM ledger_entries WHERE username = $1 AND direction = 'sent' AND category = $2`,
		params.Sender, params.Category,
	).Scan(&sentInCategory)
	if err != nil {
		return err
	}
	if sentInCategory+params.AmountPaise > categoryLimit {
		return ErrCategoryLimitExceeded
	}

	newScore := domain.ClampScore(sender.score + domain.ScoreOnTimeBonus)
	if params.LatePayment {
		newScore = domain.ClampScore(sender.score - domain.ScoreLatePenalty)
	}

	senderUpdate := `
		UPDATE users
		SET balance_paise = balance_paise - $2,
		    monthly_spent_paise = $3,
		    monthly_added_paise = CASE WHEN $4 THEN 0 ELSE monthly_added_paise END,
		    monthly_last_reset = CASE WHEN $4 THEN $5::date ELSE monthly_last_reset END,
		    score = $6
		WHERE username = $1
	`
	if _, err := tx.Exec(ctx, senderUpdate,
		params.Sender,
		params.AmountPaise,
		monthlySpent+params.AmountPaise,
		resetStats,
		params.OccurredAt,
		newScore,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET balance_paise = balance_paise + $2 WHERE username = $1`,
		params.Receiver, params.AmountPaise,
	); err != nil {
		return err
	}

	entryQuery := `
		INSERT INTO ledger_entries (id, username, direction, amount_paise, counterparty, occurred_at, location, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, entryQuery,
		uuid.New(), params.Sender, domain.DirectionSent, params.AmountPaise,
		params.Receiver, params.OccurredAt, params.Location, params.Category,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, entryQuery,
		uuid.New(), params.Receiver, domain.DirectionReceived, params.AmountPaise,
		params.Sender, params.OccurredAt, params.Location, params.Category,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO notifications (id, username, message, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.New(), params.Receiver, params.Notification, params.OccurredAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AddMoney credits a balance under the monthly add-money cap. The user row is
// locked so the reset check and the cap check cannot interleave with a
// concurrent transfer.
func (r *PostgresRepository) AddMoney(ctx context.Context, username string, amountPaise, capPaise int64, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var monthlyAdded int64
	var lastReset time.Time
	err = tx.QueryRow(ctx,
		`SELECT monthly_added_paise, monthly_last_reset FROM users WHERE username = $1 FOR UPDATE`,
		username,
	).Scan(&monthlyAdded, &lastReset)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrUserNotFound
		}
		return err
	}

	resetStats := lastReset.Month() != now.Month() || lastReset.Year() != now.Year()
	if resetStats {
		monthlyAdded = 0
	}
	if monthlyAdded+amountPaise > capPaise {
		return ErrAddMoneyLimitExceeded
	}

	query := `
		UPDATE users
		SET balance_paise = balance_paise + $2,
		    monthly_added_paise = $3,
		    monthly_spent_paise = CASE WHEN $4 THEN 0 ELSE monthly_spent_paise END,
		    monthly_last_reset = CASE WHEN $4 THEN $5::date ELSE monthly_last_reset END
		WHERE username = $1
	`
	if _, err := tx.Exec(ctx, query, username, amountPaise, monthlyAdded+amountPaise, resetStats, now); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateSpendingLimits upserts the supplied category ceilings.
func (r *PostgresRepository) UpdateSpendingLimits(ctx context.Context, username string, limits map[string]int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	query := `
		INSERT INTO user_spending_limits (username, category, limit_paise)
		VALUES ($1, $2, $3)
		ON CONFLICT (username, category) DO UPDATE SET limit_paise = EXCLUDED.limit_paise
	`
	for category, limit := range limits {
		if _, err := tx.Exec(ctx, query, username, category, limit); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListLedgerEntries returns a user's history, newest first.
func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, username string) ([]domain.LedgerEntry, error) {
	query := `
		SELECT id, username, direction, amount_paise, counterparty, occurred_at, location, category
		FROM ledger_entries
		WHERE username = $1
		ORDER BY occurred_at DESC, id
	`
	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Direction, &e.AmountPaise, &e.Counterparty, &e.OccurredAt, &e.Location, &e.Category); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListNotifications returns a user's notifications, newest first.
func (r *PostgresRepository) ListNotifications(ctx context.Context, username string) ([]domain.Notification, error) {
	query := `
		SELECT id, username, message, created_at
		FROM notifications
		WHERE username = $1
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Username, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// ClearNotifications deletes every notification for a user.
func (r *PostgresRepository) ClearNotifications(ctx context.Context, username string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE username = $1`, username)
	return err
}

// ListUsersWithHistory returns users owning at least one ledger entry.
func (r *PostgresRepository) ListUsersWithHistory(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT DISTINCT u.username, u.email, u.password_hash, u.pin_hash, u.balance_paise, u.score,
		       u.monthly_added_paise, u.monthly_spent_paise, u.monthly_last_reset, u.created_at
		FROM users u
		JOIN ledger_entries le ON le.username = u.username
		ORDER BY u.username
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.Username, &user.Email, &user.PasswordHash, &user.PINHash,
			&user.BalancePaise, &user.Score,
			&user.MonthlyStats.AddedPaise, &user.MonthlyStats.SpentPaise,
			&user.MonthlyStats.LastReset, &user.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
