package job

import (
	"context"

	"github.com/hibiken/asynq"

	"refunds-backend/internal/domains/refund/service"
	"refunds-backend/internal/infrastructure/metrics"
	"refunds-backend/internal/shared"
	"refunds-backend/pkg/logger"
)

// sweepBatchSize bounds one sweep so a backlog never monopolizes the queue.
const sweepBatchSize = 200

// GatewaySweepHandler fans out status checks for refunds stuck in
// GATEWAY_PENDING or GATEWAY_ERROR. Scheduled periodically; webhooks
// settle most refunds before the sweep ever sees them.
type GatewaySweepHandler struct {
	refundService service.RefundService
}

func NewGatewaySweepHandler(refundService service.RefundService) *GatewaySweepHandler {
	return &GatewaySweepHandler{
		refundService: refundService,
	}
}

func (h *GatewaySweepHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	enqueued, err := h.refundService.EnqueueStatusSweep(ctx, sweepBatchSize)
	if err != nil {
		metrics.TaskProcessed.WithLabelValues(shared.TypeGatewaySweep, "error").Inc()
		return err
	}

	if enqueued > 0 {
		logger.Info("gateway status sweep enqueued checks", map[string]interface{}{
			"count": enqueued,
		})
	}
	metrics.TaskProcessed.WithLabelValues(shared.TypeGatewaySweep, "ok").Inc()
	return nil
}
