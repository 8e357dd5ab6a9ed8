package model

import (
	"errors"
	"time"
)

// =====================================================
// TRANSACTION STATUS CONSTANTS
// =====================================================
const (
	TransactionStatusCaptured = "CAPTURED"
	TransactionStatusVoided   = "VOIDED"
	TransactionStatusDisputed = "DISPUTED"
)

// =====================================================
// ENTITY: Transaction
// =====================================================

// Transaction is the captured payment a refund reverses. The write
// side lives in the payments platform; this service reads it only.
type Transaction struct {
	ID                   string    `json:"id"`
	MerchantID           string    `json:"merchant_id"`
	Amount               int64     `json:"amount"` // minor units
	Currency             string    `json:"currency"`
	GatewayType          string    `json:"gateway_type"`
	GatewayTransactionID string    `json:"gateway_transaction_id"`
	CapturedAt           time.Time `json:"captured_at"`
	Status               string    `json:"status"`
}

// IsRefundable checks if the transaction accepts refunds at all
func (t *Transaction) IsRefundable() bool {
	return t.Status == TransactionStatusCaptured
}

// AgeDays returns full days elapsed since capture
func (t *Transaction) AgeDays(now time.Time) int {
	return int(now.Sub(t.CapturedAt).Hours() / 24)
}

// =====================================================
// ERRORS
// =====================================================
var (
	ErrTransactionNotFound = errors.New("transaction not found")
)
