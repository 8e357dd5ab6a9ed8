package job

import (
	"context"

	"github.com/hibiken/asynq"

	"refunds-backend/internal/domains/approval/service"
	"refunds-backend/internal/infrastructure/metrics"
	"refunds-backend/internal/shared"
	"refunds-backend/pkg/logger"
)

// ApprovalTickHandler runs the periodic escalation sweep over open
// approval requests.
type ApprovalTickHandler struct {
	approvalService service.ApprovalService
}

func NewApprovalTickHandler(approvalService service.ApprovalService) *ApprovalTickHandler {
	return &ApprovalTickHandler{
		approvalService: approvalService,
	}
}

func (h *ApprovalTickHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	acted, err := h.approvalService.Tick(ctx)
	if err != nil {
		metrics.TaskProcessed.WithLabelValues(shared.TypeApprovalTick, "error").Inc()
		return err
	}

	if acted > 0 {
		logger.Info("approval escalation tick completed", map[string]interface{}{
			"acted": acted,
		})
	}
	metrics.TaskProcessed.WithLabelValues(shared.TypeApprovalTick, "ok").Inc()
	return nil
}
