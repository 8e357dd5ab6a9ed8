package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"refunds-backend/internal/domains/approval/model"
	"refunds-backend/internal/domains/approval/repository"
	parammodel "refunds-backend/internal/domains/parameter/model"
	paramservice "refunds-backend/internal/domains/parameter/service"
	refundmodel "refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/shared"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/pkg/logger"
)

// =====================================================
// APPROVAL SERVICE
// =====================================================

// escalationBatchSize bounds one tick so a backlog never starves the queue.
const escalationBatchSize = 100

// TaskEnqueuer is the producer side of the task queue.
// *queue.Client satisfies it.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, taskType, queueName, groupKey, idempotencyKey string, payload interface{}, opts ...asynq.Option) error
}

type approvalService struct {
	repo     repository.ApprovalRepository
	params   paramservice.Resolver
	queue    TaskEnqueuer
	recorder DecisionRecorder
}

func NewApprovalService(
	repo repository.ApprovalRepository,
	params paramservice.Resolver,
	queueClient TaskEnqueuer,
) ApprovalService {
	return &approvalService{
		repo:   repo,
		params: params,
		queue:  queueClient,
	}
}

func (s *approvalService) SetRecorder(recorder DecisionRecorder) {
	s.recorder = recorder
}

// =====================================================
// THRESHOLD & INTAKE
// =====================================================

func (s *approvalService) RequiresApproval(ctx context.Context, merchantID string, amount int64) (bool, error) {
	resolved, err := s.params.Resolve(ctx, parammodel.ParamApprovalThreshold, merchantID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve approval threshold: %w", err)
	}

	threshold, err := resolved.Value.AsDecimal()
	if err != nil {
		return false, fmt.Errorf("malformed approval threshold: %w", err)
	}

	// Zero disables threshold approvals entirely.
	if threshold.IsZero() {
		return false, nil
	}
	return amount >= threshold.IntPart(), nil
}

func (s *approvalService) OpenRequest(ctx context.Context, refund *refundmodel.RefundRequest) error {
	levels, err := s.resolveLevels(ctx, refund.MerchantID)
	if err != nil {
		return err
	}
	window, err := s.resolveEscalationWindow(ctx, refund.MerchantID)
	if err != nil {
		return err
	}

	approval := &model.ApprovalRequest{
		ID:                 uuid.NewString(),
		RefundID:           refund.ID,
		MerchantID:         refund.MerchantID,
		Amount:             refund.Amount,
		Currency:           refund.Currency,
		Status:             model.StatusPending,
		RequiredLevels:     levels,
		CurrentLevel:       0,
		EscalationDeadline: time.Now().UTC().Add(window),
		Version:            1,
	}

	if err := s.repo.Create(ctx, approval); err != nil {
		return err
	}

	s.notify(ctx, shared.EventApprovalRequested, approval, map[string]interface{}{
		"required_level": approval.RequiredLevel(),
	})

	logger.Info("approval request opened", map[string]interface{}{
		"approval_id": approval.ID,
		"refund_id":   refund.ID,
		"level":       approval.RequiredLevel(),
		"deadline":    approval.EscalationDeadline,
	})
	return nil
}

// =====================================================
// READS
// =====================================================

func (s *approvalService) GetByID(ctx context.Context, approvalID string) (*model.ApprovalRequest, error) {
	return s.repo.GetByID(ctx, approvalID)
}

func (s *approvalService) GetByRefundID(ctx context.Context, refundID string) (*model.ApprovalRequest, error) {
	return s.repo.GetByRefundID(ctx, refundID)
}

// =====================================================
// DECISION
// =====================================================

func (s *approvalService) Decide(ctx context.Context, approvalID, approver, authorityLevel string, req *model.DecisionRequest) (*model.ApprovalRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	approval, err := s.repo.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if !approval.IsOpen() {
		return nil, model.ErrAlreadyDecided
	}
	if !approval.CanDecide(authorityLevel) {
		return nil, model.ErrInsufficientAuthority
	}

	approval.Resolve(req.Approve, authorityLevel, approver, req.Note)
	if err := s.repo.Update(ctx, approval); err != nil {
		return nil, err
	}

	if err := s.recorder.RecordDecision(ctx, approval.RefundID, req.Approve, approver, req.Note); err != nil {
		return nil, fmt.Errorf("failed to apply decision to refund: %w", err)
	}

	logger.Info("approval decided", map[string]interface{}{
		"approval_id": approval.ID,
		"refund_id":   approval.RefundID,
		"approved":    req.Approve,
		"approver":    approver,
	})
	return approval, nil
}

// =====================================================
// ESCALATION TICK
// =====================================================

func (s *approvalService) Tick(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	due, err := s.repo.ListEscalatable(ctx, now, escalationBatchSize)
	if err != nil {
		return 0, err
	}

	acted := 0
	for _, approval := range due {
		if err := s.escalateOne(ctx, approval, now); err != nil {
			logger.ErrorWithFields("failed to escalate approval", err, map[string]interface{}{
				"approval_id": approval.ID,
				"refund_id":   approval.RefundID,
			})
			continue
		}
		acted++
	}
	return acted, nil
}

func (s *approvalService) escalateOne(ctx context.Context, approval *model.ApprovalRequest, now time.Time) error {
	window, err := s.resolveEscalationWindow(ctx, approval.MerchantID)
	if err != nil {
		return err
	}

	if approval.Escalate(now, window) {
		if err := s.repo.Update(ctx, approval); err != nil {
			return err
		}
		if err := s.recorder.RecordEscalation(ctx, approval.RefundID, approval.RequiredLevel()); err != nil {
			logger.ErrorWithFields("failed to mark refund escalated", err, map[string]interface{}{
				"approval_id": approval.ID,
				"refund_id":   approval.RefundID,
			})
		}
		s.notify(ctx, shared.EventApprovalEscalated, approval, map[string]interface{}{
			"required_level": approval.RequiredLevel(),
			"escalations":    approval.Escalations,
		})
		logger.Info("approval escalated", map[string]interface{}{
			"approval_id": approval.ID,
			"level":       approval.RequiredLevel(),
		})
		return nil
	}

	// No level left; the merchant's fallback settles the request.
	fallback, err := s.resolveFallback(ctx, approval.MerchantID)
	if err != nil {
		return err
	}
	approved := fallback == parammodel.FallbackAutoApprove

	approval.Resolve(approved, approval.RequiredLevel(), "system:escalation", "escalation passed last level")
	if err := s.repo.Update(ctx, approval); err != nil {
		return err
	}

	if err := s.recorder.RecordDecision(ctx, approval.RefundID, approved, "system:escalation", "escalation fallback "+fallback); err != nil {
		return fmt.Errorf("failed to apply fallback decision: %w", err)
	}

	logger.Warn("approval settled by escalation fallback", map[string]interface{}{
		"approval_id": approval.ID,
		"refund_id":   approval.RefundID,
		"fallback":    fallback,
	})
	return nil
}

// =====================================================
// HELPERS
// =====================================================

func (s *approvalService) resolveLevels(ctx context.Context, merchantID string) ([]string, error) {
	resolved, err := s.params.Resolve(ctx, parammodel.ParamApprovalLevels, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approval levels: %w", err)
	}
	levels, err := resolved.Value.AsStringSlice()
	if err != nil {
		return nil, fmt.Errorf("malformed approval levels: %w", err)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("approval levels parameter resolved empty for merchant %s", merchantID)
	}
	return levels, nil
}

func (s *approvalService) resolveEscalationWindow(ctx context.Context, merchantID string) (time.Duration, error) {
	resolved, err := s.params.Resolve(ctx, parammodel.ParamApprovalEscalationHours, merchantID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve escalation hours: %w", err)
	}
	hours, err := resolved.Value.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("malformed escalation hours: %w", err)
	}
	return time.Duration(hours) * time.Hour, nil
}

func (s *approvalService) resolveFallback(ctx context.Context, merchantID string) (string, error) {
	resolved, err := s.params.Resolve(ctx, parammodel.ParamApprovalFallback, merchantID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve approval fallback: %w", err)
	}
	return resolved.Value.AsString(), nil
}

func (s *approvalService) notify(ctx context.Context, event shared.EventKind, approval *model.ApprovalRequest, data map[string]interface{}) {
	payload := refundmodel.NotifyPayload{
		Event:         string(event),
		RefundID:      approval.RefundID,
		MerchantID:    approval.MerchantID,
		Data:          data,
		CorrelationID: middleware.CorrelationID(ctx),
	}
	if err := s.queue.Enqueue(ctx, shared.TypeNotify, shared.QueueNotification, "", "", payload); err != nil {
		logger.ErrorWithFields("failed to enqueue approval notification", err, map[string]interface{}{
			"approval_id": approval.ID,
			"event":       string(event),
		})
	}
}
