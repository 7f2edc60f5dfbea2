/**
 * @description
 * Monthly statement job: renders each active user's transaction history into
 * a PDF and emails it as an attachment. Users with an empty history are
 * skipped entirely.
 *
 * @dependencies
 * - github.com/go-pdf/fpdf: PDF rendering.
 * - pkg/mailer: Attachment delivery.
 */

package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/SharathVaidya/Smartpay/internal/domain"
	"github.com/SharathVaidya/Smartpay/internal/store"
	"github.com/SharathVaidya/Smartpay/pkg/mailer"
)

// StatementJobs contains the logic for the scheduled statement run.
type StatementJobs struct {
	repo   store.Repository
	mail   mailer.Sender
	logger *slog.Logger
	now    func() time.Time
}

// NewStatementJobs creates a new statement job runner.
func NewStatementJobs(repo store.Repository, mail mailer.Sender, logger *slog.Logger) *StatementJobs {
	return &StatementJobs{
		repo:   repo,
		mail:   mail,
		logger: logger,
		now:    time.Now,
	}
}

// SendMonthlyStatements renders and mails a statement for every user that has
// at least one ledger entry.
func (j *StatementJobs) SendMonthlyStatements() {
	j.logger.Info("starting monthly statement job")
	ctx := context.Background()

	users, err := j.repo.ListUsersWithHistory(ctx)
	if err != nil {
		j.logger.Error("failed to list users for statements", "error", err)
		return
	}

	if len(users) == 0 {
		j.logger.Info("no users with transaction history to process")
		return
	}

	sent := 0
	for _, user := range users {
		entries, err := j.repo.ListLedgerEntries(ctx, user.Username)
		if err != nil {
			j.logger.Error("failed to load ledger entries", "user", user.Username, "error", err)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		pdf, err := j.buildStatementPDF(user.Username, entries)
		if err != nil {
			j.logger.Error("failed to render statement", "user", user.Username, "error", err)
			continue
		}

		subject := fmt.Sprintf("SmartPay Statement - %s", j.now().Format("January 2006"))
		body := fmt.Sprintf("Hi %s, your monthly SmartPay transaction statement is attached.", user.Username)
		filename := fmt.Sprintf("smartpay-statement-%s.pdf", j.now().Format("2006-01"))
		if err := j.mail.SendAttachment(user.Email, subject, body, filename, pdf); err != nil {
			j.logger.Error("failed to email statement", "user", user.Username, "error", err)
			continue
		}
		sent++
	}

	j.logger.Info("monthly statement job finished", "sent", sent, "candidates", len(users))
}

// RenderStatement renders a user's ledger entries into PDF bytes. It is used
// both by the scheduled job and the on-demand statement download.
func (j *StatementJobs) RenderStatement(username string, entries []domain.LedgerEntry) ([]byte, error) {
	return j.buildStatementPDF(username, entries)
}

// buildStatementPDF renders the ledger entries into a one-table PDF. fpdf's
// core fonts are latin-1 only, so amounts are prefixed "Rs" rather than the
// rupee glyph.
func (j *StatementJobs) buildStatementPDF(username string, entries []domain.LedgerEntry) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "SmartPay Monthly Statement")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Account: %s", username))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", j.now().Format("02 Jan 2006")))
	pdf.Ln(10)

	headers := []string{"#", "Type", "Amount", "To/From", "Time", "Location", "Category"}
	widths := []float64{10, 22, 26, 32, 38, 36, 26}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for i, entry := range entries {
		row := []string{
			fmt.Sprintf("%d", i+1),
			entry.Direction,
			"Rs " + domain.FormatAmount(entry.AmountPaise),
			entry.Counterparty,
			entry.OccurredAt.Format("02 Jan 06 3:04 PM"),
			entry.Location,
			entry.Category,
		}
		for c, cell := range row {
			pdf.CellFormat(widths[c], 7, cell, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
