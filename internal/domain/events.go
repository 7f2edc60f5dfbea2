/**
 * @description
 * Payloads published to RabbitMQ after state-changing wallet operations.
 * Publication is best-effort: a failed publish is logged and never changes
 * the outcome of the operation that produced it.
 */

package domain

import "time"

// TransferCompletedEvent is published after a transfer commits.
type TransferCompletedEvent struct {
	Sender      string    `json:"sender"`
	Receiver    string    `json:"receiver"`
	AmountPaise int64     `json:"amount"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// OtpIssuedEvent is published when a verification code is issued or reissued.
// The code itself never leaves the service.
type OtpIssuedEvent struct {
	Username  string    `json:"username"`
	SentCount int       `json:"sent_count"`
	ExpiresAt time.Time `json:"expires_at"`
}
