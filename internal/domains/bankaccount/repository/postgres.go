package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refunds-backend/internal/domains/bankaccount/model"
	"refunds-backend/pkg/database"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresBankAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresBankAccountRepository(pool *pgxpool.Pool) BankAccountRepository {
	return &postgresBankAccountRepository{
		pool: pool,
	}
}

const accountColumns = `
	id, merchant_id, holder_name, account_type, routing_number,
	account_number_last4, encrypted_account_number, status,
	verification_status, is_default, created_at, updated_at, verified_at
`

func (r *postgresBankAccountRepository) Create(ctx context.Context, account *model.BankAccount) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if account.IsDefault {
			// Only one default per merchant.
			_, err := tx.Exec(ctx,
				`UPDATE bank_accounts SET is_default = FALSE, updated_at = NOW() WHERE merchant_id = $1 AND is_default`,
				account.MerchantID,
			)
			if err != nil {
				return fmt.Errorf("failed to clear default accounts: %w", err)
			}
		}

		query := `
			INSERT INTO bank_accounts (
				id, merchant_id, holder_name, account_type, routing_number,
				account_number_last4, encrypted_account_number, status,
				verification_status, is_default
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			account.ID,
			account.MerchantID,
			account.HolderName,
			account.AccountType,
			account.RoutingNumber,
			account.AccountNumberLast4,
			account.EncryptedAccountNumber,
			account.Status,
			account.VerificationStatus,
			account.IsDefault,
		).Scan(&account.CreatedAt, &account.UpdatedAt)

		if err != nil {
			return fmt.Errorf("failed to create bank account: %w", err)
		}

		return nil
	})
}

func (r *postgresBankAccountRepository) GetByID(ctx context.Context, accountID string) (*model.BankAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM bank_accounts WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, accountID))
}

func (r *postgresBankAccountRepository) GetByIDAndMerchant(ctx context.Context, accountID, merchantID string) (*model.BankAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM bank_accounts WHERE id = $1 AND merchant_id = $2`
	return r.scanOne(r.pool.QueryRow(ctx, query, accountID, merchantID))
}

func (r *postgresBankAccountRepository) ListByMerchant(ctx context.Context, merchantID string) ([]*model.BankAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM bank_accounts
		WHERE merchant_id = $1
		ORDER BY is_default DESC, created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.BankAccount
	for rows.Next() {
		account, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func (r *postgresBankAccountRepository) UpdateVerification(ctx context.Context, accountID, status string) error {
	query := `
		UPDATE bank_accounts
		SET verification_status = $1,
		    verified_at = CASE WHEN $1 = 'VERIFIED' THEN NOW() ELSE verified_at END,
		    updated_at = NOW()
		WHERE id = $2
	`

	tag, err := r.pool.Exec(ctx, query, status, accountID)
	if err != nil {
		return fmt.Errorf("failed to update verification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}

	return nil
}

func (r *postgresBankAccountRepository) SetDefault(ctx context.Context, accountID, merchantID string) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE bank_accounts SET is_default = FALSE, updated_at = NOW() WHERE merchant_id = $1 AND is_default`,
			merchantID,
		)
		if err != nil {
			return fmt.Errorf("failed to clear default accounts: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE bank_accounts SET is_default = TRUE, updated_at = NOW() WHERE id = $1 AND merchant_id = $2`,
			accountID, merchantID,
		)
		if err != nil {
			return fmt.Errorf("failed to set default account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrAccountNotFound
		}

		return nil
	})
}

func (r *postgresBankAccountRepository) scanOne(row pgx.Row) (*model.BankAccount, error) {
	var account model.BankAccount
	err := row.Scan(
		&account.ID,
		&account.MerchantID,
		&account.HolderName,
		&account.AccountType,
		&account.RoutingNumber,
		&account.AccountNumberLast4,
		&account.EncryptedAccountNumber,
		&account.Status,
		&account.VerificationStatus,
		&account.IsDefault,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.VerifiedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get bank account: %w", err)
	}

	return &account, nil
}
