package model

import (
	"errors"
	"time"
)

// =====================================================
// NOTIFICATION STATUS CONSTANTS
// =====================================================
const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"
)

const ChannelEmail = "EMAIL"

// maxSendAttempts bounds the retry job; beyond it a notification stays
// FAILED for operator review.
const MaxSendAttempts = 5

// =====================================================
// ENTITY: Notification
// =====================================================

// Notification is one outbound message, persisted before delivery so
// failures can be retried and audited.
type Notification struct {
	ID         string     `json:"id"`
	Event      string     `json:"event"`
	RefundID   string     `json:"refund_id"`
	MerchantID string     `json:"merchant_id"`
	Channel    string     `json:"channel"`
	Recipient  string     `json:"recipient"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CanRetry reports whether the retry job should pick this row up again.
func (n *Notification) CanRetry() bool {
	return n.Status == StatusFailed && n.Attempts < MaxSendAttempts
}

var ErrNotificationNotFound = errors.New("notification not found")
