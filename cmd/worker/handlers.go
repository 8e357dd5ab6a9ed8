package main

import (
	"github.com/hibiken/asynq"

	approvalJob "refunds-backend/internal/domains/approval/job"
	notificationJob "refunds-backend/internal/domains/notification/job"
	refundJob "refunds-backend/internal/domains/refund/job"
	"refunds-backend/internal/shared"
	"refunds-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	processRefund *refundJob.ProcessRefundHandler
	checkGateway  *refundJob.CheckGatewayHandler
	gatewaySweep  *refundJob.GatewaySweepHandler

	approvalTick *approvalJob.ApprovalTickHandler

	notify      *notificationJob.NotifyHandler
	notifyRetry *notificationJob.RetryFailedHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		processRefund: refundJob.NewProcessRefundHandler(c.RefundService),
		checkGateway:  refundJob.NewCheckGatewayHandler(c.RefundService),
		gatewaySweep:  refundJob.NewGatewaySweepHandler(c.RefundService),

		approvalTick: approvalJob.NewApprovalTickHandler(c.ApprovalService),

		notify:      notificationJob.NewNotifyHandler(c.NotificationService),
		notifyRetry: notificationJob.NewRetryFailedHandler(c.NotificationService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Gateway tasks
	mux.HandleFunc(shared.TypeProcessRefund, h.processRefund.ProcessTask)
	mux.HandleFunc(shared.TypeCheckGateway, h.checkGateway.ProcessTask)
	mux.HandleFunc(shared.TypeGatewaySweep, h.gatewaySweep.ProcessTask)

	// Approval tasks
	mux.HandleFunc(shared.TypeApprovalTick, h.approvalTick.ProcessTask)

	// Notification tasks
	mux.HandleFunc(shared.TypeNotify, h.notify.ProcessTask)
	mux.HandleFunc(shared.TypeNotifyRetry, h.notifyRetry.ProcessTask)
}
