package repository

import (
	"context"
	"time"

	"refunds-backend/internal/domains/parameter/model"
)

type ParameterRepository interface {
	// GetEffective returns the single record effective at the given
	// instant for (name, entityType, entityId), or ErrParameterNotFound.
	GetEffective(ctx context.Context, name, entityType, entityID string, at time.Time) (*model.Parameter, error)

	Create(ctx context.Context, param *model.Parameter) error
	List(ctx context.Context, filter model.ListParametersRequest) ([]*model.Parameter, int64, error)
}
