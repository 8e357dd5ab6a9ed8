package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/domains/refund/service"
	"refunds-backend/internal/infrastructure/metrics"
	"refunds-backend/internal/infrastructure/queue"
	"refunds-backend/internal/shared"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/pkg/logger"
)

// ProcessRefundHandler runs one gateway dispatch attempt for a refund.
type ProcessRefundHandler struct {
	refundService service.RefundService
}

func NewProcessRefundHandler(refundService service.RefundService) *ProcessRefundHandler {
	return &ProcessRefundHandler{
		refundService: refundService,
	}
}

func (h *ProcessRefundHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	env, err := queue.DecodeEnvelope(task)
	if err != nil {
		return err
	}

	var payload model.ProcessRefundPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal process refund payload: %w", err)
	}

	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	// The final allowed attempt moves an exhausted refund to FAILED and
	// lets the task fall through to the dead letter archive.
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	lastAttempt := retried >= maxRetry

	logger.Info("processing refund dispatch", map[string]interface{}{
		"refund_id": payload.RefundID,
		"attempt":   retried + 1,
	})

	if err := h.refundService.ExecuteProcessRefund(ctx, payload.RefundID, lastAttempt); err != nil {
		metrics.TaskProcessed.WithLabelValues(shared.TypeProcessRefund, "error").Inc()
		return err
	}

	metrics.TaskProcessed.WithLabelValues(shared.TypeProcessRefund, "ok").Inc()
	return nil
}
