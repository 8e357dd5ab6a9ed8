package service

import (
	"context"

	"refunds-backend/internal/domains/bankaccount/model"
)

type BankAccountService interface {
	Create(ctx context.Context, merchantID string, req *model.CreateBankAccountRequest) (*model.BankAccount, error)
	GetByID(ctx context.Context, merchantID, accountID string) (*model.BankAccount, error)
	List(ctx context.Context, merchantID string) ([]*model.BankAccount, error)
	UpdateVerification(ctx context.Context, accountID, status string) error
	SetDefault(ctx context.Context, merchantID, accountID string) error

	// DecryptAccountNumber opens the stored envelope. Only the ACH
	// origination path calls this.
	DecryptAccountNumber(account *model.BankAccount) (string, error)
}
