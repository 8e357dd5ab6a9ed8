package service

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/gateway"
)

// RefundService is the refund lifecycle manager: intake, updates,
// cancellation, approval decisions, gateway dispatch and webhook
// settlement all run through it.
type RefundService interface {
	Create(ctx context.Context, merchantID string, req *model.CreateRefundRequest) (*model.RefundRequest, error)
	GetByID(ctx context.Context, merchantID, refundID string) (*model.RefundRequest, error)
	List(ctx context.Context, filter model.ListRefundsRequest) ([]*model.RefundRequest, int64, error)
	Update(ctx context.Context, merchantID, refundID string, req *model.UpdateRefundRequest) (*model.RefundRequest, error)
	Cancel(ctx context.Context, merchantID, refundID, actor string, req *model.CancelRefundRequest) (*model.RefundRequest, error)
	Statistics(ctx context.Context, req model.StatisticsRequest) (*model.Statistics, error)

	// RecordDecision applies an approval outcome: approved refunds move
	// to PROCESSING and are dispatched, rejected ones settle in REJECTED.
	RecordDecision(ctx context.Context, refundID string, approved bool, actor, reason string) error

	// RecordEscalation marks a refund still parked in PENDING_APPROVAL as
	// escalated so its approval status reflects the pending level.
	RecordEscalation(ctx context.Context, refundID, level string) error

	// ProcessWebhookEvent settles a refund from a verified gateway event.
	// Duplicate events and events for terminal refunds are acknowledged
	// without changing anything.
	ProcessWebhookEvent(ctx context.Context, gatewayType string, event gateway.NormalizedEvent) error

	// ExecuteProcessRefund runs one gateway dispatch attempt. A non-nil
	// return means the attempt is retryable and the task should requeue;
	// lastAttempt marks the final try before the dead letter queue.
	ExecuteProcessRefund(ctx context.Context, refundID string, lastAttempt bool) error

	// ExecuteStatusCheck polls the gateway for a refund waiting in
	// GATEWAY_PENDING or GATEWAY_ERROR.
	ExecuteStatusCheck(ctx context.Context, refundID string) error

	// EnqueueStatusSweep fans out status-check tasks for refunds stuck
	// waiting on the gateway. Returns how many were enqueued.
	EnqueueStatusSweep(ctx context.Context, limit int) (int, error)
}

// ApprovalGate is the slice of the approval domain the refund manager
// needs at intake time. The approval service implements it; keeping the
// dependency behind this interface avoids an import cycle, since the
// approval side calls back into RecordDecision.
type ApprovalGate interface {
	// RequiresApproval checks the merchant's approval threshold.
	RequiresApproval(ctx context.Context, merchantID string, amount int64) (bool, error)

	// OpenRequest creates the approval request for a refund parked in
	// PENDING_APPROVAL.
	OpenRequest(ctx context.Context, refund *model.RefundRequest) error
}

// TaskEnqueuer is the producer side of the task queue.
// *queue.Client satisfies it.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, taskType, queueName, groupKey, idempotencyKey string, payload interface{}, opts ...asynq.Option) error
	EnqueueIn(ctx context.Context, delay time.Duration, taskType, queueName, groupKey, idempotencyKey string, payload interface{}) error
}

// CredentialSource resolves decrypted per-merchant gateway secrets.
// *gateway.CredentialManager satisfies it.
type CredentialSource interface {
	Get(ctx context.Context, gatewayType, merchantID string) (gateway.Credentials, error)
}
