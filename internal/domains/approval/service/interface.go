package service

import (
	"context"

	"refunds-backend/internal/domains/approval/model"
	refundmodel "refunds-backend/internal/domains/refund/model"
)

// ApprovalService manages refund approval requests: threshold checks,
// approver decisions, and timed escalation.
type ApprovalService interface {
	// RequiresApproval checks the refund amount against the merchant's
	// approval threshold parameter.
	RequiresApproval(ctx context.Context, merchantID string, amount int64) (bool, error)

	// OpenRequest creates the approval request for a refund parked in
	// PENDING_APPROVAL and notifies the approver queue.
	OpenRequest(ctx context.Context, refund *refundmodel.RefundRequest) error

	GetByID(ctx context.Context, approvalID string) (*model.ApprovalRequest, error)
	GetByRefundID(ctx context.Context, refundID string) (*model.ApprovalRequest, error)

	// Decide applies an approver's verdict. The approver's authority
	// level must equal or outrank the request's current level.
	Decide(ctx context.Context, approvalID, approver, authorityLevel string, req *model.DecisionRequest) (*model.ApprovalRequest, error)

	// Tick escalates every open request past its deadline. Past the last
	// configured level the merchant's fallback settles the request.
	// Returns how many requests were escalated or settled.
	Tick(ctx context.Context) (int, error)

	// SetRecorder wires the refund-side decision callback after both
	// services exist.
	SetRecorder(recorder DecisionRecorder)
}

// DecisionRecorder is the refund side of an approval outcome. The
// refund service implements it; the indirection breaks the import cycle
// between the two domains.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, refundID string, approved bool, actor, reason string) error

	// RecordEscalation mirrors an escalation onto the refund's approval
	// status so the merchant-facing view shows the request moved up.
	RecordEscalation(ctx context.Context, refundID, level string) error
}
