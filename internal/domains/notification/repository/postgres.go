package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"refunds-backend/internal/domains/notification/model"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &postgresNotificationRepository{
		pool: pool,
	}
}

const notificationColumns = `
	id, event, refund_id, merchant_id, channel, recipient,
	subject, body, status, attempts, last_error, sent_at,
	created_at, updated_at
`

func (r *postgresNotificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, event, refund_id, merchant_id, channel, recipient,
			subject, body, status, attempts, last_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		notification.ID,
		notification.Event,
		notification.RefundID,
		notification.MerchantID,
		notification.Channel,
		notification.Recipient,
		notification.Subject,
		notification.Body,
		notification.Status,
		notification.Attempts,
		notification.LastError,
	).Scan(&notification.CreatedAt, &notification.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, notificationID string) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, notificationID))
}

func (r *postgresNotificationRepository) MarkSent(ctx context.Context, notificationID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1, sent_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`, model.StatusSent, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotificationNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkFailed(ctx context.Context, notificationID, lastError string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1, attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $3
	`, model.StatusFailed, lastError, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotificationNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) ListRetryable(ctx context.Context, limit int) ([]*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE status = $1 AND attempts < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, model.StatusFailed, model.MaxSendAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		notification, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}

	return notifications, rows.Err()
}

func (r *postgresNotificationRepository) scanOne(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	err := row.Scan(
		&n.ID,
		&n.Event,
		&n.RefundID,
		&n.MerchantID,
		&n.Channel,
		&n.Recipient,
		&n.Subject,
		&n.Body,
		&n.Status,
		&n.Attempts,
		&n.LastError,
		&n.SentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return &n, nil
}
