package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refunds-backend/internal/gateway/ach"
)

// =====================================================
// ACH ORIGINATOR (postgres-backed)
// =====================================================

// postgresACHOriginator records payout entries for the next origination
// file. Settlement state is written back by the bank file import, so a
// lookup reflects whatever the latest return file said.
type postgresACHOriginator struct {
	pool *pgxpool.Pool
}

func NewPostgresACHOriginator(pool *pgxpool.Pool) ach.Originator {
	return &postgresACHOriginator{
		pool: pool,
	}
}

// effectiveLag is the standard two banking day window for ACH credits.
const effectiveLag = 48 * time.Hour

func (o *postgresACHOriginator) SubmitPayout(ctx context.Context, bankAccountID string, amount int64, currency, reference string) (*ach.Payout, error) {
	// Idempotency on reference: a resubmitted task returns the payout
	// already queued for origination.
	if existing, err := o.byReference(ctx, reference); err == nil {
		return existing, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	payout := &ach.Payout{
		ID:            uuid.NewString(),
		Status:        "SUBMITTED",
		SubmittedAt:   time.Now().UTC(),
		EffectiveDate: time.Now().UTC().Add(effectiveLag),
	}

	_, err := o.pool.Exec(ctx, `
		INSERT INTO ach_payouts (id, bank_account_id, amount, currency, reference, status, submitted_at, effective_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, payout.ID, bankAccountID, amount, currency, reference, payout.Status, payout.SubmittedAt, payout.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("failed to submit payout: %w", err)
	}

	return payout, nil
}

func (o *postgresACHOriginator) LookupPayout(ctx context.Context, payoutID string) (*ach.Payout, error) {
	query := `
		SELECT id, status, COALESCE(return_code, ''), submitted_at, effective_date
		FROM ach_payouts
		WHERE id = $1
	`
	return o.scanPayout(o.pool.QueryRow(ctx, query, payoutID))
}

func (o *postgresACHOriginator) byReference(ctx context.Context, reference string) (*ach.Payout, error) {
	query := `
		SELECT id, status, COALESCE(return_code, ''), submitted_at, effective_date
		FROM ach_payouts
		WHERE reference = $1
	`
	return o.scanPayout(o.pool.QueryRow(ctx, query, reference))
}

func (o *postgresACHOriginator) scanPayout(row pgx.Row) (*ach.Payout, error) {
	var payout ach.Payout
	err := row.Scan(
		&payout.ID,
		&payout.Status,
		&payout.ReturnCode,
		&payout.SubmittedAt,
		&payout.EffectiveDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return &payout, nil
}
