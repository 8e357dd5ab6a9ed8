package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	merchantrepo "refunds-backend/internal/domains/merchant/repository"
	"refunds-backend/internal/domains/parameter/model"
	"refunds-backend/internal/domains/parameter/repository"
	"refunds-backend/internal/shared/utils"
	"refunds-backend/pkg/cache"
	"refunds-backend/pkg/logger"
)

// =====================================================
// PARAMETER SERVICE IMPLEMENTATION
// =====================================================

type parameterService struct {
	repo         repository.ParameterRepository
	merchantRepo merchantrepo.MerchantRepository
	cache        cache.Cache
	cacheTTL     time.Duration
}

func NewParameterService(
	repo repository.ParameterRepository,
	merchantRepo merchantrepo.MerchantRepository,
	c cache.Cache,
	cacheTTL time.Duration,
) ParameterService {
	if cacheTTL <= 0 {
		cacheTTL = 300 * time.Second
	}
	return &parameterService{
		repo:         repo,
		merchantRepo: merchantRepo,
		cache:        c,
		cacheTTL:     cacheTTL,
	}
}

func cacheKey(name, merchantID string) string {
	return fmt.Sprintf("param:%s:%s", name, merchantID)
}

// =====================================================
// RESOLUTION
// =====================================================

// Resolve walks the hierarchy from the global root down to the
// merchant. The most specific effective record wins, unless an
// ancestor marks itself overridable=false, which freezes the value at
// that level. With no record anywhere, the definition default applies.
func (s *parameterService) Resolve(ctx context.Context, name, merchantID string) (*model.Resolved, error) {
	def, ok := model.GetDefinition(name)
	if !ok {
		return nil, model.NewUnknownParameterError(name)
	}

	key := cacheKey(name, merchantID)
	var cached model.Resolved
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return &cached, nil
	} else if err != nil {
		// Cache trouble degrades to a repository read.
		logger.Warn("parameter cache read failed", map[string]interface{}{
			"key": key, "error": err.Error(),
		})
	}

	resolved, err := s.resolveUncached(ctx, def, name, merchantID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, resolved, s.cacheTTL); err != nil {
		logger.Warn("parameter cache write failed", map[string]interface{}{
			"key": key, "error": err.Error(),
		})
	}

	return resolved, nil
}

func (s *parameterService) resolveUncached(ctx context.Context, def *model.Definition, name, merchantID string) (*model.Resolved, error) {
	chain, err := s.merchantRepo.GetHierarchy(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load hierarchy for merchant %s: %w", merchantID, err)
	}

	// General to specific. A non-overridable hit stops the descent.
	levels := []struct {
		entityType string
		entityID   string
		source     string
	}{
		{model.EntityTypeProgram, model.ProgramEntityID, model.SourceProgram},
		{model.EntityTypeBank, chain.BankID, model.SourceBank},
		{model.EntityTypeOrganization, chain.OrganizationID, model.SourceOrganization},
		{model.EntityTypeMerchant, chain.MerchantID, model.SourceMerchant},
	}

	now := time.Now().UTC()
	var winner *model.Parameter
	var source string

	for _, level := range levels {
		if level.entityID == "" {
			continue
		}

		record, err := s.repo.GetEffective(ctx, name, level.entityType, level.entityID, now)
		if err != nil {
			if errors.Is(err, model.ErrParameterNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to resolve %s at %s: %w", name, level.entityType, err)
		}

		winner = record
		source = level.source
		if !record.Overridable {
			break
		}
	}

	if winner != nil {
		return &model.Resolved{Name: name, Value: winner.Value, Source: source}, nil
	}

	if def.Default == nil {
		return nil, model.ErrParameterNotFound
	}
	return &model.Resolved{Name: name, Value: *def.Default, Source: model.SourceDefault}, nil
}

// =====================================================
// WRITES
// =====================================================

// Create validates the value against the definition, persists the
// record, then pattern-invalidates the cache for that name across all
// merchants. The cache is write-around: the next read repopulates it.
func (s *parameterService) Create(ctx context.Context, createdBy string, req *model.CreateParameterRequest) (*model.Parameter, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	def, ok := model.GetDefinition(req.Name)
	if !ok {
		return nil, model.NewUnknownParameterError(req.Name)
	}

	value, err := model.ParseValue(def.DataType, req.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter value: %w", err)
	}
	if err := def.Validate(value); err != nil {
		return nil, err
	}

	effective := time.Now().UTC()
	if req.EffectiveDate != nil {
		effective = req.EffectiveDate.UTC()
	}
	if req.ExpirationDate != nil && !req.ExpirationDate.After(effective) {
		return nil, fmt.Errorf("expiration date must be after effective date")
	}

	overridable := true
	if req.Overridable != nil {
		overridable = *req.Overridable
	}

	param := &model.Parameter{
		ID:             uuid.NewString(),
		Name:           req.Name,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		Value:          value,
		EffectiveDate:  effective,
		ExpirationDate: req.ExpirationDate,
		Overridable:    overridable,
		Version:        1,
		CreatedBy:      createdBy,
	}

	if err := s.repo.Create(ctx, param); err != nil {
		return nil, err
	}

	if err := s.cache.DeletePattern(ctx, "param:"+req.Name+":*"); err != nil {
		logger.Warn("parameter cache invalidation failed", map[string]interface{}{
			"name": req.Name, "error": err.Error(),
		})
	}

	logger.Info("parameter written", map[string]interface{}{
		"name":        req.Name,
		"entity_type": req.EntityType,
		"entity_id":   req.EntityID,
		"created_by":  createdBy,
	})

	return param, nil
}

func (s *parameterService) List(ctx context.Context, req model.ListParametersRequest) ([]*model.Parameter, int64, error) {
	req.Page, req.PageSize = utils.NormalizePagination(req.Page, req.PageSize)
	return s.repo.List(ctx, req)
}

func (s *parameterService) Definitions() []*model.Definition {
	return model.ListDefinitions()
}
