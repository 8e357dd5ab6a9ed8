package repository

import (
	"context"

	"refunds-backend/internal/domains/merchant/model"
)

type MerchantRepository interface {
	GetByID(ctx context.Context, merchantID string) (*model.Merchant, error)
	GetHierarchy(ctx context.Context, merchantID string) (*model.Hierarchy, error)

	// CreditBalance appends a ledger entry and bumps the balance in one
	// transaction. Idempotent on reference: a duplicate credit returns
	// the existing entry ID without touching the balance again.
	CreditBalance(ctx context.Context, merchantID string, amount int64, currency, reference string) (string, error)

	// DebitBalance reserves funds for a balance-method refund. Fails
	// when the remaining balance would go negative.
	DebitBalance(ctx context.Context, merchantID string, amount int64, currency, reference string) (string, error)
}
