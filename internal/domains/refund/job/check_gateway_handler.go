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
)

// CheckGatewayHandler polls the gateway for a refund waiting on settlement.
type CheckGatewayHandler struct {
	refundService service.RefundService
}

func NewCheckGatewayHandler(refundService service.RefundService) *CheckGatewayHandler {
	return &CheckGatewayHandler{
		refundService: refundService,
	}
}

func (h *CheckGatewayHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	env, err := queue.DecodeEnvelope(task)
	if err != nil {
		return err
	}

	var payload model.CheckGatewayPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal check gateway payload: %w", err)
	}

	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	if err := h.refundService.ExecuteStatusCheck(ctx, payload.RefundID); err != nil {
		metrics.TaskProcessed.WithLabelValues(shared.TypeCheckGateway, "error").Inc()
		return err
	}

	metrics.TaskProcessed.WithLabelValues(shared.TypeCheckGateway, "ok").Inc()
	return nil
}
