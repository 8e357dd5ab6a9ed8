package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refunds-backend/internal/domains/transaction/model"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresTransactionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &postgresTransactionRepository{
		pool: pool,
	}
}

const transactionColumns = `
	id, merchant_id, amount, currency, gateway_type, gateway_transaction_id, captured_at, status
`

func (r *postgresTransactionRepository) GetByID(ctx context.Context, transactionID string) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, transactionID))
}

func (r *postgresTransactionRepository) GetByIDAndMerchant(ctx context.Context, transactionID, merchantID string) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND merchant_id = $2`
	return r.scanOne(r.pool.QueryRow(ctx, query, transactionID, merchantID))
}

func (r *postgresTransactionRepository) scanOne(row pgx.Row) (*model.Transaction, error) {
	var txn model.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.MerchantID,
		&txn.Amount,
		&txn.Currency,
		&txn.GatewayType,
		&txn.GatewayTransactionID,
		&txn.CapturedAt,
		&txn.Status,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &txn, nil
}

func (r *postgresTransactionRepository) SumCompletedRefunds(ctx context.Context, transactionID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM refund_requests
		WHERE transaction_id = $1 AND status = 'COMPLETED'
	`

	var total int64
	if err := r.pool.QueryRow(ctx, query, transactionID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum completed refunds: %w", err)
	}

	return total, nil
}
