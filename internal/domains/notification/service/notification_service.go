package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	merchantrepo "refunds-backend/internal/domains/merchant/repository"
	"refunds-backend/internal/domains/notification/model"
	"refunds-backend/internal/domains/notification/repository"
	refundmodel "refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/infrastructure/email"
	"refunds-backend/internal/shared"
	"refunds-backend/pkg/logger"
)

// =====================================================
// NOTIFICATION SERVICE
// =====================================================

type notificationService struct {
	repo      repository.NotificationRepository
	merchants merchantrepo.MerchantRepository
	email     email.Service
}

func NewNotificationService(
	repo repository.NotificationRepository,
	merchants merchantrepo.MerchantRepository,
	emailService email.Service,
) NotificationService {
	return &notificationService{
		repo:      repo,
		merchants: merchants,
		email:     emailService,
	}
}

func (s *notificationService) Dispatch(ctx context.Context, payload refundmodel.NotifyPayload) error {
	merchant, err := s.merchants.GetByID(ctx, payload.MerchantID)
	if err != nil {
		return fmt.Errorf("failed to load merchant for notification: %w", err)
	}
	if merchant.ContactEmail == "" {
		logger.Warn("merchant has no contact email, dropping notification", map[string]interface{}{
			"merchant_id": payload.MerchantID,
			"event":       payload.Event,
		})
		return nil
	}

	subject, body, err := renderMessage(shared.EventKind(payload.Event), templateData{
		RefundID:   payload.RefundID,
		MerchantID: payload.MerchantID,
		Data:       payload.Data,
	})
	if err != nil {
		// An unknown event is a programming error, not worth retrying.
		logger.Error("failed to render notification", err)
		return nil
	}

	notification := &model.Notification{
		ID:         uuid.NewString(),
		Event:      payload.Event,
		RefundID:   payload.RefundID,
		MerchantID: payload.MerchantID,
		Channel:    model.ChannelEmail,
		Recipient:  merchant.ContactEmail,
		Subject:    subject,
		Body:       body,
		Status:     model.StatusPending,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	return s.deliver(ctx, notification)
}

func (s *notificationService) RetryFailed(ctx context.Context, limit int) (int, error) {
	retryable, err := s.repo.ListRetryable(ctx, limit)
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, notification := range retryable {
		if err := s.deliver(ctx, notification); err != nil {
			logger.ErrorWithFields("notification retry failed", err, map[string]interface{}{
				"notification_id": notification.ID,
				"attempts":        notification.Attempts,
			})
			continue
		}
		retried++
	}
	return retried, nil
}

// deliver sends over the channel and records the outcome.
func (s *notificationService) deliver(ctx context.Context, notification *model.Notification) error {
	if err := s.email.Send(ctx, notification.Recipient, notification.Subject, notification.Body); err != nil {
		if markErr := s.repo.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
			logger.Error("failed to record notification failure", markErr)
		}
		return fmt.Errorf("failed to deliver notification %s: %w", notification.ID, err)
	}

	if err := s.repo.MarkSent(ctx, notification.ID); err != nil {
		return err
	}

	logger.Info("notification sent", map[string]interface{}{
		"notification_id": notification.ID,
		"event":           notification.Event,
		"refund_id":       notification.RefundID,
	})
	return nil
}
