package model

import (
	"errors"
	"time"
)

// =====================================================
// MERCHANT STATUS CONSTANTS
// =====================================================
const (
	MerchantStatusActive    = "ACTIVE"
	MerchantStatusSuspended = "SUSPENDED"
	MerchantStatusClosed    = "CLOSED"
)

// =====================================================
// ENTITY: Merchant
// =====================================================
type Merchant struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id"`
	BankID         string    `json:"bank_id"`
	Status         string    `json:"status"`
	Balance        int64     `json:"balance"` // minor units
	Currency       string    `json:"currency"`
	ContactEmail   string    `json:"contact_email"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsActive checks if the merchant can initiate refunds
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// HasBalanceFor checks if a balance-method refund is coverable
func (m *Merchant) HasBalanceFor(amount int64) bool {
	return m.Balance >= amount && amount > 0
}

// =====================================================
// HIERARCHY CHAIN
// =====================================================

// Hierarchy is the resolution chain for one merchant, most specific
// level first. Program is the implicit global root.
type Hierarchy struct {
	MerchantID     string `json:"merchant_id"`
	OrganizationID string `json:"organization_id"`
	BankID         string `json:"bank_id"`
}

// =====================================================
// ENTITY: BalanceEntry
// =====================================================

// BalanceEntry is one ledger line against the merchant balance.
// Reference is unique, which makes credits idempotent.
type BalanceEntry struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchant_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Reference  string    `json:"reference"`
	CreatedAt  time.Time `json:"created_at"`
}

// =====================================================
// ERRORS
// =====================================================
var (
	ErrMerchantNotFound  = errors.New("merchant not found")
	ErrMerchantInactive  = errors.New("merchant is not active")
	ErrInsufficientFunds = errors.New("merchant balance insufficient")
)
