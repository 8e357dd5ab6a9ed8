package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"refunds-backend/internal/domains/notification/service"
	refundmodel "refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/infrastructure/metrics"
	"refunds-backend/internal/infrastructure/queue"
	"refunds-backend/internal/shared"
	"refunds-backend/internal/shared/middleware"
)

// NotifyHandler delivers one refund lifecycle notification.
type NotifyHandler struct {
	notificationService service.NotificationService
}

func NewNotifyHandler(notificationService service.NotificationService) *NotifyHandler {
	return &NotifyHandler{
		notificationService: notificationService,
	}
}

func (h *NotifyHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	env, err := queue.DecodeEnvelope(task)
	if err != nil {
		return err
	}

	var payload refundmodel.NotifyPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal notify payload: %w", err)
	}

	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	if err := h.notificationService.Dispatch(ctx, payload); err != nil {
		metrics.TaskProcessed.WithLabelValues(shared.TypeNotify, "error").Inc()
		return err
	}

	metrics.TaskProcessed.WithLabelValues(shared.TypeNotify, "ok").Inc()
	return nil
}
