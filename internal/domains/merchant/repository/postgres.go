package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refunds-backend/internal/domains/merchant/model"
	"refunds-backend/pkg/database"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresMerchantRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresMerchantRepository(pool *pgxpool.Pool) MerchantRepository {
	return &postgresMerchantRepository{
		pool: pool,
	}
}

// =====================================================
// GET MERCHANT
// =====================================================

func (r *postgresMerchantRepository) GetByID(ctx context.Context, merchantID string) (*model.Merchant, error) {
	query := `
		SELECT id, name, organization_id, bank_id, status, balance, currency, contact_email, created_at, updated_at
		FROM merchants
		WHERE id = $1
	`

	var merchant model.Merchant
	err := r.pool.QueryRow(ctx, query, merchantID).Scan(
		&merchant.ID,
		&merchant.Name,
		&merchant.OrganizationID,
		&merchant.BankID,
		&merchant.Status,
		&merchant.Balance,
		&merchant.Currency,
		&merchant.ContactEmail,
		&merchant.CreatedAt,
		&merchant.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("failed to get merchant by id: %w", err)
	}

	return &merchant, nil
}

func (r *postgresMerchantRepository) GetHierarchy(ctx context.Context, merchantID string) (*model.Hierarchy, error) {
	query := `
		SELECT id, organization_id, bank_id
		FROM merchants
		WHERE id = $1
	`

	var chain model.Hierarchy
	err := r.pool.QueryRow(ctx, query, merchantID).Scan(
		&chain.MerchantID,
		&chain.OrganizationID,
		&chain.BankID,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("failed to get merchant hierarchy: %w", err)
	}

	return &chain, nil
}

// =====================================================
// BALANCE LEDGER
// =====================================================

func (r *postgresMerchantRepository) CreditBalance(ctx context.Context, merchantID string, amount int64, currency, reference string) (string, error) {
	return r.applyBalanceEntry(ctx, merchantID, amount, currency, reference)
}

func (r *postgresMerchantRepository) DebitBalance(ctx context.Context, merchantID string, amount int64, currency, reference string) (string, error) {
	return r.applyBalanceEntry(ctx, merchantID, -amount, currency, reference)
}

// applyBalanceEntry appends one ledger line and moves the balance in
// the same transaction. The unique reference makes re-applies no-ops.
func (r *postgresMerchantRepository) applyBalanceEntry(ctx context.Context, merchantID string, amount int64, currency, reference string) (string, error) {
	return database.WithTransactionResult(ctx, r.pool, func(tx pgx.Tx) (string, error) {
		// Step 1: Check for a previously applied entry with this reference
		var existingID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM merchant_balance_entries WHERE reference = $1`,
			reference,
		).Scan(&existingID)
		if err == nil {
			return existingID, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("failed to check balance entry: %w", err)
		}

		// Step 2: Move the balance, guarding against overdraft on debits
		tag, err := tx.Exec(ctx, `
			UPDATE merchants
			SET balance = balance + $1, updated_at = NOW()
			WHERE id = $2 AND balance + $1 >= 0
		`, amount, merchantID)
		if err != nil {
			return "", fmt.Errorf("failed to update merchant balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			exists, err := r.merchantExists(ctx, tx, merchantID)
			if err != nil {
				return "", err
			}
			if !exists {
				return "", model.ErrMerchantNotFound
			}
			return "", model.ErrInsufficientFunds
		}

		// Step 3: Append the ledger entry
		entryID := uuid.NewString()
		_, err = tx.Exec(ctx, `
			INSERT INTO merchant_balance_entries (id, merchant_id, amount, currency, reference)
			VALUES ($1, $2, $3, $4, $5)
		`, entryID, merchantID, amount, currency, reference)
		if err != nil {
			return "", fmt.Errorf("failed to insert balance entry: %w", err)
		}

		return entryID, nil
	})
}

func (r *postgresMerchantRepository) merchantExists(ctx context.Context, tx pgx.Tx, merchantID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM merchants WHERE id = $1)`, merchantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check merchant existence: %w", err)
	}
	return exists, nil
}
