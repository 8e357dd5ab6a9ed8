package repository

import (
	"context"

	"refunds-backend/internal/domains/notification/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	GetByID(ctx context.Context, notificationID string) (*model.Notification, error)

	// MarkSent stamps a successful delivery.
	MarkSent(ctx context.Context, notificationID string) error

	// MarkFailed records a delivery failure and bumps the attempt count.
	MarkFailed(ctx context.Context, notificationID, lastError string) error

	// ListRetryable returns FAILED notifications still under the attempt
	// ceiling, oldest first.
	ListRetryable(ctx context.Context, limit int) ([]*model.Notification, error)
}
