package repository

import (
	"context"

	"refunds-backend/internal/domains/bankaccount/model"
)

type BankAccountRepository interface {
	Create(ctx context.Context, account *model.BankAccount) error
	GetByID(ctx context.Context, accountID string) (*model.BankAccount, error)
	GetByIDAndMerchant(ctx context.Context, accountID, merchantID string) (*model.BankAccount, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*model.BankAccount, error)
	UpdateVerification(ctx context.Context, accountID, status string) error

	// SetDefault marks one account default and clears the flag on the
	// merchant's other accounts in the same transaction.
	SetDefault(ctx context.Context, accountID, merchantID string) error
}
