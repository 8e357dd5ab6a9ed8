package repository

import (
	"context"

	"refunds-backend/internal/domains/refund/model"
)

type RefundRepository interface {
	Create(ctx context.Context, refund *model.RefundRequest) error
	GetByID(ctx context.Context, refundID string) (*model.RefundRequest, error)
	GetByIDAndMerchant(ctx context.Context, refundID, merchantID string) (*model.RefundRequest, error)
	GetByGatewayReference(ctx context.Context, gatewayType, reference string) (*model.RefundRequest, error)

	// Update persists the refund guarded by its loaded version and, in
	// the same transaction, appends newEvents to the status event log.
	// ErrVersionConflict when another writer got there first.
	Update(ctx context.Context, refund *model.RefundRequest, newEvents []model.StatusHistoryEntry) error

	List(ctx context.Context, filter model.ListRefundsRequest) ([]*model.RefundRequest, int64, error)

	// ListDueForStatusCheck returns refund IDs sitting in
	// GATEWAY_PENDING or GATEWAY_ERROR, oldest first, for the sweep.
	ListDueForStatusCheck(ctx context.Context, limit int) ([]string, error)

	Statistics(ctx context.Context, req model.StatisticsRequest) (*model.Statistics, error)
}
