package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refunds-backend/internal/domains/refund/model"
	"refunds-backend/pkg/database"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresRefundRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRefundRepository(pool *pgxpool.Pool) RefundRepository {
	return &postgresRefundRepository{
		pool: pool,
	}
}

const refundColumns = `
	id, transaction_id, merchant_id, customer_id, bank_account_id,
	amount, currency, refund_method, reason, reason_code,
	status, approval_status, gateway_type, gateway_reference, retry_count,
	status_history, processing_errors, metadata,
	estimated_completion_date, processed_at, completed_at,
	created_at, updated_at, version
`

// =====================================================
// CREATE
// =====================================================

func (r *postgresRefundRepository) Create(ctx context.Context, refund *model.RefundRequest) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO refund_requests (
				id, transaction_id, merchant_id, customer_id, bank_account_id,
				amount, currency, refund_method, reason, reason_code,
				status, approval_status, gateway_type, gateway_reference, retry_count,
				status_history, processing_errors, metadata,
				estimated_completion_date, version
			) VALUES (
				$1, $2, $3, $4, $5,
				$6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15,
				$16, $17, $18,
				$19, $20
			)
			RETURNING created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			refund.ID,
			refund.TransactionID,
			refund.MerchantID,
			refund.CustomerID,
			refund.BankAccountID,
			refund.Amount,
			refund.Currency,
			refund.RefundMethod,
			refund.Reason,
			refund.ReasonCode,
			refund.Status,
			refund.ApprovalStatus,
			refund.GatewayType,
			refund.GatewayReference,
			refund.RetryCount,
			refund.StatusHistory,
			refund.ProcessingErrors,
			refund.Metadata,
			refund.EstimatedCompletionDate,
			refund.Version,
		).Scan(&refund.CreatedAt, &refund.UpdatedAt)

		if err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}

		return r.appendEvents(ctx, tx, refund.ID, refund.StatusHistory)
	})
}

// =====================================================
// READS
// =====================================================

func (r *postgresRefundRepository) GetByID(ctx context.Context, refundID string) (*model.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, refundID))
}

func (r *postgresRefundRepository) GetByIDAndMerchant(ctx context.Context, refundID, merchantID string) (*model.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1 AND merchant_id = $2`
	return r.scanOne(r.pool.QueryRow(ctx, query, refundID, merchantID))
}

func (r *postgresRefundRepository) GetByGatewayReference(ctx context.Context, gatewayType, reference string) (*model.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE gateway_type = $1 AND gateway_reference = $2`
	return r.scanOne(r.pool.QueryRow(ctx, query, gatewayType, reference))
}

// =====================================================
// OPTIMISTIC UPDATE
// =====================================================

// Update writes the refund back under its loaded version and appends
// the new transition events in the same transaction. A version miss
// means a concurrent writer won; the caller reloads and re-decides.
func (r *postgresRefundRepository) Update(ctx context.Context, refund *model.RefundRequest, newEvents []model.StatusHistoryEntry) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE refund_requests SET
				amount = $1,
				reason = $2,
				reason_code = $3,
				bank_account_id = $4,
				status = $5,
				approval_status = $6,
				gateway_reference = $7,
				retry_count = $8,
				status_history = $9,
				processing_errors = $10,
				metadata = $11,
				estimated_completion_date = $12,
				processed_at = $13,
				completed_at = $14,
				updated_at = NOW(),
				version = version + 1
			WHERE id = $15 AND version = $16
		`

		tag, err := tx.Exec(ctx, query,
			refund.Amount,
			refund.Reason,
			refund.ReasonCode,
			refund.BankAccountID,
			refund.Status,
			refund.ApprovalStatus,
			refund.GatewayReference,
			refund.RetryCount,
			refund.StatusHistory,
			refund.ProcessingErrors,
			refund.Metadata,
			refund.EstimatedCompletionDate,
			refund.ProcessedAt,
			refund.CompletedAt,
			refund.ID,
			refund.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update refund: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrVersionConflict
		}

		refund.Version++
		return r.appendEvents(ctx, tx, refund.ID, newEvents)
	})
}

// appendEvents writes transition records into the append-only log.
func (r *postgresRefundRepository) appendEvents(ctx context.Context, tx pgx.Tx, refundID string, events []model.StatusHistoryEntry) error {
	for _, event := range events {
		_, err := tx.Exec(ctx, `
			INSERT INTO refund_status_events (refund_id, from_status, to_status, actor, reason, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, refundID, event.FromStatus, event.ToStatus, event.Actor, event.Reason, event.ChangedAt)
		if err != nil {
			return fmt.Errorf("failed to append status event: %w", err)
		}
	}
	return nil
}

// =====================================================
// LIST & STATISTICS
// =====================================================

func (r *postgresRefundRepository) List(ctx context.Context, filter model.ListRefundsRequest) ([]*model.RefundRequest, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.MerchantID != "" {
		conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argPos))
		args = append(args, filter.MerchantID)
		argPos++
	}
	if start, ok := parseDate(filter.StartDate); ok {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, start)
		argPos++
	}
	if end, ok := parseDate(filter.EndDate); ok {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, end.AddDate(0, 0, 1))
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM refund_requests WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count refunds: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM refund_requests
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, refundColumns, where, argPos, argPos+1)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*model.RefundRequest
	for rows.Next() {
		refund, err := r.scanOne(rows)
		if err != nil {
			return nil, 0, err
		}
		refunds = append(refunds, refund)
	}

	return refunds, total, rows.Err()
}

func (r *postgresRefundRepository) ListDueForStatusCheck(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM refund_requests
		WHERE status IN ('GATEWAY_PENDING', 'GATEWAY_ERROR')
		ORDER BY updated_at ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds due for check: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan refund id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *postgresRefundRepository) Statistics(ctx context.Context, req model.StatisticsRequest) (*model.Statistics, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if req.MerchantID != "" {
		conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argPos))
		args = append(args, req.MerchantID)
		argPos++
	}
	if start, ok := parseDate(req.StartDate); ok {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, start)
		argPos++
	}
	if end, ok := parseDate(req.EndDate); ok {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, end.AddDate(0, 0, 1))
		argPos++
	}

	query := `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM refund_requests
		WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY status
		ORDER BY status
	`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate refunds: %w", err)
	}
	defer rows.Close()

	stats := &model.Statistics{GeneratedAt: time.Now().UTC()}
	for rows.Next() {
		var entry model.StatusCount
		if err := rows.Scan(&entry.Status, &entry.Count, &entry.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan statistics row: %w", err)
		}
		stats.ByStatus = append(stats.ByStatus, entry)
		stats.TotalCount += entry.Count
		stats.TotalAmount += entry.Amount
		if entry.Status == model.StatusCompleted {
			stats.CompletedCount = entry.Count
			stats.CompletedAmount = entry.Amount
		}
	}

	return stats, rows.Err()
}

func (r *postgresRefundRepository) scanOne(row pgx.Row) (*model.RefundRequest, error) {
	var refund model.RefundRequest
	err := row.Scan(
		&refund.ID,
		&refund.TransactionID,
		&refund.MerchantID,
		&refund.CustomerID,
		&refund.BankAccountID,
		&refund.Amount,
		&refund.Currency,
		&refund.RefundMethod,
		&refund.Reason,
		&refund.ReasonCode,
		&refund.Status,
		&refund.ApprovalStatus,
		&refund.GatewayType,
		&refund.GatewayReference,
		&refund.RetryCount,
		&refund.StatusHistory,
		&refund.ProcessingErrors,
		&refund.Metadata,
		&refund.EstimatedCompletionDate,
		&refund.ProcessedAt,
		&refund.CompletedAt,
		&refund.CreatedAt,
		&refund.UpdatedAt,
		&refund.Version,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}

	return &refund, nil
}

// parseDate accepts RFC3339 or bare YYYY-MM-DD.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
