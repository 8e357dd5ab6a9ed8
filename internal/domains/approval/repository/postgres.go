package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refunds-backend/internal/domains/approval/model"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresApprovalRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &postgresApprovalRepository{
		pool: pool,
	}
}

const approvalColumns = `
	id, refund_id, merchant_id, amount, currency,
	status, required_levels, current_level, escalations, decisions,
	escalation_deadline, created_at, updated_at, version
`

func (r *postgresApprovalRepository) Create(ctx context.Context, approval *model.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (
			id, refund_id, merchant_id, amount, currency,
			status, required_levels, current_level, escalations, decisions,
			escalation_deadline, version
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12
		)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		approval.ID,
		approval.RefundID,
		approval.MerchantID,
		approval.Amount,
		approval.Currency,
		approval.Status,
		approval.RequiredLevels,
		approval.CurrentLevel,
		approval.Escalations,
		approval.Decisions,
		approval.EscalationDeadline,
		approval.Version,
	).Scan(&approval.CreatedAt, &approval.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create approval request: %w", err)
	}
	return nil
}

func (r *postgresApprovalRepository) GetByID(ctx context.Context, approvalID string) (*model.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, approvalID))
}

func (r *postgresApprovalRepository) GetByRefundID(ctx context.Context, refundID string) (*model.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE refund_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, refundID))
}

func (r *postgresApprovalRepository) Update(ctx context.Context, approval *model.ApprovalRequest) error {
	query := `
		UPDATE approval_requests SET
			status = $1,
			current_level = $2,
			escalations = $3,
			decisions = $4,
			escalation_deadline = $5,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $6 AND version = $7
	`

	tag, err := r.pool.Exec(ctx, query,
		approval.Status,
		approval.CurrentLevel,
		approval.Escalations,
		approval.Decisions,
		approval.EscalationDeadline,
		approval.ID,
		approval.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update approval request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrVersionConflict
	}

	approval.Version++
	return nil
}

func (r *postgresApprovalRepository) ListEscalatable(ctx context.Context, now time.Time, limit int) ([]*model.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE status = $1 AND escalation_deadline < $2
		ORDER BY escalation_deadline ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, model.StatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalatable approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*model.ApprovalRequest
	for rows.Next() {
		approval, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, approval)
	}

	return approvals, rows.Err()
}

func (r *postgresApprovalRepository) scanOne(row pgx.Row) (*model.ApprovalRequest, error) {
	var approval model.ApprovalRequest
	err := row.Scan(
		&approval.ID,
		&approval.RefundID,
		&approval.MerchantID,
		&approval.Amount,
		&approval.Currency,
		&approval.Status,
		&approval.RequiredLevels,
		&approval.CurrentLevel,
		&approval.Escalations,
		&approval.Decisions,
		&approval.EscalationDeadline,
		&approval.CreatedAt,
		&approval.UpdatedAt,
		&approval.Version,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrApprovalNotFound
		}
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}

	return &approval, nil
}
