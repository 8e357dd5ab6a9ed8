package model

import (
	"time"
)

// =====================================================
// ACCOUNT STATUS CONSTANTS
// =====================================================
const (
	AccountStatusActive = "ACTIVE"
	AccountStatusClosed = "CLOSED"
)

// =====================================================
// VERIFICATION STATUS CONSTANTS
// =====================================================
const (
	VerificationUnverified = "UNVERIFIED"
	VerificationPending    = "PENDING"
	VerificationVerified   = "VERIFIED"
	VerificationFailed     = "FAILED"
)

// =====================================================
// ACCOUNT TYPE CONSTANTS
// =====================================================
const (
	AccountTypeChecking = "CHECKING"
	AccountTypeSavings  = "SAVINGS"
)

// =====================================================
// ENTITY: BankAccount
// =====================================================

// BankAccount holds the merchant's payout destination for OTHER-method
// refunds. The full account number exists only inside
// EncryptedAccountNumber; reads expose last4.
type BankAccount struct {
	ID                     string     `json:"id"`
	MerchantID             string     `json:"merchant_id"`
	HolderName             string     `json:"holder_name"`
	AccountType            string     `json:"account_type"`
	RoutingNumber          string     `json:"routing_number"`
	AccountNumberLast4     string     `json:"account_number_last4"`
	EncryptedAccountNumber string     `json:"-"`
	Status                 string     `json:"status"`
	VerificationStatus     string     `json:"verification_status"`
	IsDefault              bool       `json:"is_default"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	VerifiedAt             *time.Time `json:"verified_at,omitempty"`
}

// IsVerified checks if the account can receive ACH payouts
func (b *BankAccount) IsVerified() bool {
	return b.VerificationStatus == VerificationVerified
}

// IsUsable checks if the account is open and verified
func (b *BankAccount) IsUsable() bool {
	return b.Status == AccountStatusActive && b.IsVerified()
}
