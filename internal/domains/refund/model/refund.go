package model

import (
	"time"
)

// =====================================================
// REFUND STATUS CONSTANTS
// =====================================================
const (
	StatusDraft            = "DRAFT"
	StatusSubmitted        = "SUBMITTED"
	StatusValidationFailed = "VALIDATION_FAILED"
	StatusPendingApproval  = "PENDING_APPROVAL"
	StatusProcessing       = "PROCESSING"
	StatusGatewayPending   = "GATEWAY_PENDING"
	StatusGatewayError     = "GATEWAY_ERROR"
	StatusCompleted        = "COMPLETED"
	StatusFailed           = "FAILED"
	StatusRejected         = "REJECTED"
	StatusCanceled         = "CANCELED"
)

// =====================================================
// APPROVAL STATUS CONSTANTS
// =====================================================
const (
	ApprovalNone      = "NONE"
	ApprovalPending   = "PENDING"
	ApprovalApproved  = "APPROVED"
	ApprovalRejected  = "REJECTED"
	ApprovalEscalated = "ESCALATED"
)

// =====================================================
// REFUND METHOD CONSTANTS
// =====================================================
const (
	MethodOriginalPayment = "ORIGINAL_PAYMENT"
	MethodBalance         = "BALANCE"
	MethodOther           = "OTHER"
)

// =====================================================
// STATE MACHINE
// =====================================================

// allowedTransitions is the full refund lifecycle graph. Terminal
// states are absorbing: they have no outgoing edges, so a late poll or
// webhook can never regress a settled refund.
var allowedTransitions = map[string][]string{
	StatusDraft:           {StatusSubmitted, StatusCanceled},
	StatusSubmitted:       {StatusValidationFailed, StatusPendingApproval, StatusProcessing, StatusCanceled},
	StatusPendingApproval: {StatusProcessing, StatusRejected, StatusCanceled},
	StatusProcessing:      {StatusGatewayPending, StatusGatewayError, StatusCompleted, StatusFailed},
	StatusGatewayPending:  {StatusCompleted, StatusFailed, StatusGatewayError},
	StatusGatewayError:    {StatusProcessing, StatusFailed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether a status is absorbing.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusRejected, StatusCanceled, StatusValidationFailed:
		return true
	}
	return false
}

// =====================================================
// ENTITY: RefundRequest
// =====================================================
type RefundRequest struct {
	ID                      string                 `json:"id"`
	TransactionID           string                 `json:"transaction_id"`
	MerchantID              string                 `json:"merchant_id"`
	CustomerID              *string                `json:"customer_id,omitempty"`
	BankAccountID           *string                `json:"bank_account_id,omitempty"`
	Amount                  int64                  `json:"amount"` // minor units
	Currency                string                 `json:"currency"`
	RefundMethod            string                 `json:"refund_method"`
	Reason                  string                 `json:"reason"`
	ReasonCode              *string                `json:"reason_code,omitempty"`
	Status                  string                 `json:"status"`
	ApprovalStatus          string                 `json:"approval_status"`
	GatewayType             string                 `json:"gateway_type"`
	GatewayReference        *string                `json:"gateway_reference,omitempty"`
	RetryCount              int                    `json:"retry_count"`
	StatusHistory           []StatusHistoryEntry   `json:"status_history"`
	ProcessingErrors        []ProcessingError      `json:"processing_errors,omitempty"`
	Metadata                map[string]interface{} `json:"metadata,omitempty"`
	EstimatedCompletionDate *time.Time             `json:"estimated_completion_date,omitempty"`
	ProcessedAt             *time.Time             `json:"processed_at,omitempty"`
	CompletedAt             *time.Time             `json:"completed_at,omitempty"`
	CreatedAt               time.Time              `json:"created_at"`
	UpdatedAt               time.Time              `json:"updated_at"`
	Version                 int                    `json:"version"`
}

// StatusHistoryEntry is one append-only transition record.
type StatusHistoryEntry struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

// ProcessingError is one recorded gateway failure.
type ProcessingError struct {
	Attempt    int       `json:"attempt"`
	Category   string    `json:"category"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Transition applies a legal state change and appends the history
// entry. Illegal transitions mutate nothing.
func (r *RefundRequest) Transition(to, actor, reason string) error {
	if !CanTransition(r.Status, to) {
		return NewInvalidStateTransition(r.Status, to)
	}

	now := time.Now().UTC()
	// History timestamps are strictly increasing even within one clock tick.
	if n := len(r.StatusHistory); n > 0 && !now.After(r.StatusHistory[n-1].ChangedAt) {
		now = r.StatusHistory[n-1].ChangedAt.Add(time.Microsecond)
	}

	r.StatusHistory = append(r.StatusHistory, StatusHistoryEntry{
		FromStatus: r.Status,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
		ChangedAt:  now,
	})
	r.Status = to
	r.UpdatedAt = now

	switch to {
	case StatusProcessing:
		if r.ProcessedAt == nil {
			r.ProcessedAt = &now
		}
	case StatusCompleted:
		r.CompletedAt = &now
	}

	return nil
}

// RecordProcessingError appends one failure to the attempt log.
func (r *RefundRequest) RecordProcessingError(category, code, message string, retryable bool) {
	r.ProcessingErrors = append(r.ProcessingErrors, ProcessingError{
		Attempt:    r.RetryCount,
		Category:   category,
		Code:       code,
		Message:    message,
		Retryable:  retryable,
		OccurredAt: time.Now().UTC(),
	})
}

// IsTerminal checks if the refund reached an absorbing state
func (r *RefundRequest) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}

// CanBeUpdated checks if patches are still accepted
func (r *RefundRequest) CanBeUpdated() bool {
	switch r.Status {
	case StatusDraft, StatusSubmitted, StatusPendingApproval:
		return true
	}
	return false
}

// CanBeCanceled checks if a cancel request is honorable. A refund
// with a gateway reference already issued side effects and settles
// through the normal pipeline instead.
func (r *RefundRequest) CanBeCanceled() bool {
	if r.GatewayReference != nil {
		return false
	}
	return CanTransition(r.Status, StatusCanceled)
}

// RequiresGatewayDispatch checks if the refund still needs the gateway
func (r *RefundRequest) RequiresGatewayDispatch() bool {
	return r.Status == StatusSubmitted || r.Status == StatusProcessing
}
