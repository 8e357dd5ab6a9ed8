package service

import (
	"context"

	"refunds-backend/internal/domains/parameter/model"
)

// Resolver answers "what is the effective value of this parameter for
// this merchant". Compliance, approval and the refund manager all
// consult it.
type Resolver interface {
	Resolve(ctx context.Context, name, merchantID string) (*model.Resolved, error)
}

type ParameterService interface {
	Resolver

	Create(ctx context.Context, createdBy string, req *model.CreateParameterRequest) (*model.Parameter, error)
	List(ctx context.Context, req model.ListParametersRequest) ([]*model.Parameter, int64, error)
	Definitions() []*model.Definition
}
