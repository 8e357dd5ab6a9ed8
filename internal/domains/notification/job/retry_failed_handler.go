package job

import (
	"context"

	"github.com/hibiken/asynq"

	"refunds-backend/internal/domains/notification/service"
	"refunds-backend/internal/infrastructure/metrics"
	"refunds-backend/internal/shared"
	"refunds-backend/pkg/logger"
)

// retryBatchSize bounds one retry sweep.
const retryBatchSize = 100

// RetryFailedHandler re-sends notifications that failed delivery.
type RetryFailedHandler struct {
	notificationService service.NotificationService
}

func NewRetryFailedHandler(notificationService service.NotificationService) *RetryFailedHandler {
	return &RetryFailedHandler{
		notificationService: notificationService,
	}
}

func (h *RetryFailedHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	retried, err := h.notificationService.RetryFailed(ctx, retryBatchSize)
	if err != nil {
		metrics.TaskProcessed.WithLabelValues(shared.TypeNotifyRetry, "error").Inc()
		return err
	}

	if retried > 0 {
		logger.Info("failed notifications retried", map[string]interface{}{
			"count": retried,
		})
	}
	metrics.TaskProcessed.WithLabelValues(shared.TypeNotifyRetry, "ok").Inc()
	return nil
}
