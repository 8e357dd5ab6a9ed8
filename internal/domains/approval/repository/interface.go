package repository

import (
	"context"
	"time"

	"refunds-backend/internal/domains/approval/model"
)

type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.ApprovalRequest) error
	GetByID(ctx context.Context, approvalID string) (*model.ApprovalRequest, error)
	GetByRefundID(ctx context.Context, refundID string) (*model.ApprovalRequest, error)

	// Update persists the request guarded by its loaded version.
	// ErrVersionConflict when another writer got there first.
	Update(ctx context.Context, approval *model.ApprovalRequest) error

	// ListEscalatable returns open requests whose escalation deadline is
	// behind now, oldest deadline first.
	ListEscalatable(ctx context.Context, now time.Time, limit int) ([]*model.ApprovalRequest, error)
}
