package model

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// =====================================================
// REQUEST DTOs
// =====================================================

type CreateRefundRequest struct {
	TransactionID  string                 `json:"transaction_id"`
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	RefundMethod   string                 `json:"refund_method"`
	Reason         string                 `json:"reason"`
	ReasonCode     *string                `json:"reason_code,omitempty"`
	CustomerID     *string                `json:"customer_id,omitempty"`
	BankAccountID  *string                `json:"bank_account_id,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
}

func (r CreateRefundRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TransactionID, validation.Required),
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Currency, validation.Required, validation.Match(currencyPattern)),
		validation.Field(&r.RefundMethod, validation.Required, validation.In(
			MethodOriginalPayment, MethodBalance, MethodOther,
		)),
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.BankAccountID,
			validation.When(r.RefundMethod == MethodOther, validation.Required)),
	)
}

type UpdateRefundRequest struct {
	Amount        *int64                 `json:"amount,omitempty"`
	Reason        *string                `json:"reason,omitempty"`
	ReasonCode    *string                `json:"reason_code,omitempty"`
	BankAccountID *string                `json:"bank_account_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

func (r UpdateRefundRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Amount, validation.Min(int64(1))),
		validation.Field(&r.Reason, validation.Length(1, 512)),
	)
}

type CancelRefundRequest struct {
	Reason string `json:"reason"`
}

func (r CancelRefundRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 512)),
	)
}

type ListRefundsRequest struct {
	Status     string `form:"status"`
	MerchantID string `form:"merchantId"`
	StartDate  string `form:"startDate"` // RFC3339 or YYYY-MM-DD
	EndDate    string `form:"endDate"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}

// =====================================================
// STATISTICS
// =====================================================

type StatisticsRequest struct {
	MerchantID string `form:"merchantId"`
	StartDate  string `form:"startDate"`
	EndDate    string `form:"endDate"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Amount int64  `json:"amount"`
}

type Statistics struct {
	TotalCount      int64         `json:"total_count"`
	TotalAmount     int64         `json:"total_amount"`
	CompletedCount  int64         `json:"completed_count"`
	CompletedAmount int64         `json:"completed_amount"`
	ByStatus        []StatusCount `json:"by_status"`
	GeneratedAt     time.Time     `json:"generated_at"`
}
