package repository

import (
	"context"

	"refunds-backend/internal/domains/transaction/model"
)

type TransactionRepository interface {
	GetByID(ctx context.Context, transactionID string) (*model.Transaction, error)
	GetByIDAndMerchant(ctx context.Context, transactionID, merchantID string) (*model.Transaction, error)

	// SumCompletedRefunds returns the total already refunded against a
	// transaction, counting only COMPLETED refunds.
	SumCompletedRefunds(ctx context.Context, transactionID string) (int64, error)
}
