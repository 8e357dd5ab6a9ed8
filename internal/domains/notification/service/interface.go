package service

import (
	"context"

	refundmodel "refunds-backend/internal/domains/refund/model"
)

// NotificationService renders and delivers refund lifecycle messages.
type NotificationService interface {
	// Dispatch persists and sends the notification for one event.
	Dispatch(ctx context.Context, payload refundmodel.NotifyPayload) error

	// RetryFailed re-sends failed notifications still under the attempt
	// ceiling. Returns how many were retried.
	RetryFailed(ctx context.Context, limit int) (int, error)
}
