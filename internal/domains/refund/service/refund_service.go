package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/domains/refund/repository"
	"refunds-backend/internal/gateway"
	"refunds-backend/internal/infrastructure/lock"
	"refunds-backend/internal/infrastructure/metrics"
	"refunds-backend/internal/shared"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/internal/shared/utils"
	"refunds-backend/pkg/logger"
)

// =====================================================
// REFUND SERVICE
// =====================================================

const (
	// createIdempotencyTTL keeps create records long enough for client
	// retries across restarts.
	createIdempotencyTTL = 24 * time.Hour

	// webhookDedupTTL bounds the replay-protection window.
	webhookDedupTTL = 7 * 24 * time.Hour

	// lockMaxWait bounds how long a mutation waits for the refund lock.
	lockMaxWait = 3 * time.Second

	// gatewayPollDelay is the first status check after an async dispatch.
	gatewayPollDelay = 60 * time.Second
)

// Options carries the worker tunables the service needs.
type Options struct {
	LockLease    time.Duration
	MaxAttempts  int
	RetryInitial time.Duration
	RetryFactor  float64
}

type refundService struct {
	repo        repository.RefundRepository
	compliance  *ComplianceChecker
	approvals   ApprovalGate
	queue       TaskEnqueuer
	locker      lock.Locker
	idempotency lock.IdempotencyStore
	gateways    *gateway.Registry
	credentials CredentialSource
	opts        Options
}

func NewRefundService(
	repo repository.RefundRepository,
	compliance *ComplianceChecker,
	approvals ApprovalGate,
	queueClient TaskEnqueuer,
	locker lock.Locker,
	idempotency lock.IdempotencyStore,
	gateways *gateway.Registry,
	credentials CredentialSource,
	opts Options,
) RefundService {
	return &refundService{
		repo:        repo,
		compliance:  compliance,
		approvals:   approvals,
		queue:       queueClient,
		locker:      locker,
		idempotency: idempotency,
		gateways:    gateways,
		credentials: credentials,
		opts:        opts,
	}
}

// createRecord is what the idempotency store remembers per create key.
type createRecord struct {
	RefundID    string `json:"refund_id"`
	PayloadHash string `json:"payload_hash"`
}

// =====================================================
// CREATE
// =====================================================

func (s *refundService) Create(ctx context.Context, merchantID string, req *model.CreateRefundRequest) (*model.RefundRequest, error) {
	idemKey := ""
	payloadHash := hashPayload(req)

	if req.IdempotencyKey != "" {
		idemKey = fmt.Sprintf("create:%s:%s:%s", merchantID, req.TransactionID, req.IdempotencyKey)

		var record createRecord
		found, err := s.idempotency.Get(ctx, idemKey, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if found {
			if record.PayloadHash != payloadHash {
				return nil, &model.IdempotencyConflictError{Key: req.IdempotencyKey}
			}
			return s.repo.GetByID(ctx, record.RefundID)
		}
	}

	txn, err := s.compliance.Check(ctx, merchantID, req)
	if err != nil {
		return nil, err
	}

	refund := &model.RefundRequest{
		ID:             uuid.NewString(),
		TransactionID:  req.TransactionID,
		MerchantID:     merchantID,
		CustomerID:     req.CustomerID,
		BankAccountID:  req.BankAccountID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		RefundMethod:   req.RefundMethod,
		Reason:         req.Reason,
		ReasonCode:     req.ReasonCode,
		Status:         model.StatusDraft,
		ApprovalStatus: model.ApprovalNone,
		GatewayType:    txn.GatewayType,
		Metadata:       req.Metadata,
		Version:        1,
	}

	if err := refund.Transition(model.StatusSubmitted, "merchant:"+merchantID, ""); err != nil {
		return nil, err
	}

	needsApproval, err := s.approvals.RequiresApproval(ctx, merchantID, refund.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate approval threshold: %w", err)
	}
	if needsApproval {
		if err := refund.Transition(model.StatusPendingApproval, "system", "amount over approval threshold"); err != nil {
			return nil, err
		}
		refund.ApprovalStatus = model.ApprovalPending
	}

	if err := s.repo.Create(ctx, refund); err != nil {
		return nil, err
	}

	if needsApproval {
		if err := s.approvals.OpenRequest(ctx, refund); err != nil {
			return nil, fmt.Errorf("failed to open approval request: %w", err)
		}
	} else {
		if err := s.enqueueDispatch(ctx, refund.ID); err != nil {
			return nil, err
		}
	}

	if idemKey != "" {
		record := createRecord{RefundID: refund.ID, PayloadHash: payloadHash}
		if err := s.idempotency.Put(ctx, idemKey, record, createIdempotencyTTL); err != nil {
			logger.ErrorWithFields("failed to store idempotency record", err, map[string]interface{}{
				"refund_id": refund.ID,
			})
		}
	}

	metrics.RefundsCreated.WithLabelValues(refund.RefundMethod).Inc()
	logger.Info("refund created", map[string]interface{}{
		"refund_id":   refund.ID,
		"merchant_id": merchantID,
		"amount":      refund.Amount,
		"status":      refund.Status,
	})

	return refund, nil
}

// =====================================================
// READS
// =====================================================

func (s *refundService) GetByID(ctx context.Context, merchantID, refundID string) (*model.RefundRequest, error) {
	if merchantID == "" {
		return s.repo.GetByID(ctx, refundID)
	}
	return s.repo.GetByIDAndMerchant(ctx, refundID, merchantID)
}

func (s *refundService) List(ctx context.Context, filter model.ListRefundsRequest) ([]*model.RefundRequest, int64, error) {
	filter.Page, filter.PageSize = utils.NormalizePagination(filter.Page, filter.PageSize)
	return s.repo.List(ctx, filter)
}

func (s *refundService) Statistics(ctx context.Context, req model.StatisticsRequest) (*model.Statistics, error) {
	return s.repo.Statistics(ctx, req)
}

// =====================================================
// UPDATE & CANCEL
// =====================================================

func (s *refundService) Update(ctx context.Context, merchantID, refundID string, req *model.UpdateRefundRequest) (*model.RefundRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, schemaToValidationError(err)
	}

	token, err := s.acquireRefundLock(ctx, refundID)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(token)

	refund, err := s.repo.GetByIDAndMerchant(ctx, refundID, merchantID)
	if err != nil {
		return nil, err
	}
	if !refund.CanBeUpdated() {
		return nil, model.ErrUpdateNotPermitted
	}

	patched := &model.CreateRefundRequest{
		TransactionID: refund.TransactionID,
		Amount:        refund.Amount,
		Currency:      refund.Currency,
		RefundMethod:  refund.RefundMethod,
		Reason:        refund.Reason,
		ReasonCode:    refund.ReasonCode,
		CustomerID:    refund.CustomerID,
		BankAccountID: refund.BankAccountID,
	}
	if req.Amount != nil {
		patched.Amount = *req.Amount
	}
	if req.Reason != nil {
		patched.Reason = *req.Reason
	}
	if req.ReasonCode != nil {
		patched.ReasonCode = req.ReasonCode
	}
	if req.BankAccountID != nil {
		patched.BankAccountID = req.BankAccountID
	}

	// The patched request must clear compliance as a whole, not just the
	// changed fields.
	if _, err := s.compliance.Check(ctx, merchantID, patched); err != nil {
		return nil, err
	}

	refund.Amount = patched.Amount
	refund.Reason = patched.Reason
	refund.ReasonCode = patched.ReasonCode
	refund.BankAccountID = patched.BankAccountID
	if req.Metadata != nil {
		refund.Metadata = req.Metadata
	}

	if err := s.repo.Update(ctx, refund, nil); err != nil {
		return nil, err
	}

	logger.Info("refund updated", map[string]interface{}{
		"refund_id": refund.ID,
		"version":   refund.Version,
	})
	return refund, nil
}

func (s *refundService) Cancel(ctx context.Context, merchantID, refundID, actor string, req *model.CancelRefundRequest) (*model.RefundRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, schemaToValidationError(err)
	}

	token, err := s.acquireRefundLock(ctx, refundID)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(token)

	refund, err := s.repo.GetByIDAndMerchant(ctx, refundID, merchantID)
	if err != nil {
		return nil, err
	}
	if !refund.CanBeCanceled() {
		return nil, model.ErrCancelNotPermitted
	}

	mark := len(refund.StatusHistory)
	if err := refund.Transition(model.StatusCanceled, actor, req.Reason); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
		return nil, err
	}

	s.notify(ctx, shared.EventRefundCanceled, refund, map[string]interface{}{
		"reason": req.Reason,
	})
	logger.Info("refund canceled", map[string]interface{}{
		"refund_id": refund.ID,
		"actor":     actor,
	})
	return refund, nil
}

// =====================================================
// APPROVAL DECISION
// =====================================================

func (s *refundService) RecordDecision(ctx context.Context, refundID string, approved bool, actor, reason string) error {
	token, err := s.acquireRefundLock(ctx, refundID)
	if err != nil {
		return err
	}
	defer s.releaseLock(token)

	refund, err := s.repo.GetByID(ctx, refundID)
	if err != nil {
		return err
	}

	if refund.Status != model.StatusPendingApproval {
		// A redelivered decision for an already-moved refund is a no-op.
		if refund.IsTerminal() || refund.Status == model.StatusProcessing {
			return nil
		}
		return model.NewInvalidStateTransition(refund.Status, model.StatusProcessing)
	}

	mark := len(refund.StatusHistory)
	if approved {
		refund.ApprovalStatus = model.ApprovalApproved
		if err := refund.Transition(model.StatusProcessing, actor, reason); err != nil {
			return err
		}
	} else {
		refund.ApprovalStatus = model.ApprovalRejected
		if err := refund.Transition(model.StatusRejected, actor, reason); err != nil {
			return err
		}
	}

	if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
		return err
	}

	if approved {
		if err := s.enqueueDispatch(ctx, refund.ID); err != nil {
			return err
		}
	} else {
		metrics.RefundsFailed.WithLabelValues("rejected").Inc()
		s.notify(ctx, shared.EventRefundRejected, refund, map[string]interface{}{
			"reason": reason,
			"actor":  actor,
		})
	}

	logger.Info("approval decision recorded", map[string]interface{}{
		"refund_id": refund.ID,
		"approved":  approved,
		"actor":     actor,
	})
	return nil
}

func (s *refundService) RecordEscalation(ctx context.Context, refundID, level string) error {
	token, err := s.acquireRefundLock(ctx, refundID)
	if err != nil {
		return err
	}
	defer s.releaseLock(token)

	refund, err := s.repo.GetByID(ctx, refundID)
	if err != nil {
		return err
	}

	// Only a refund still waiting on approval carries the escalation;
	// anything already decided or moved on keeps its settled status.
	if refund.Status != model.StatusPendingApproval {
		return nil
	}
	if refund.ApprovalStatus == model.ApprovalEscalated {
		return nil
	}

	refund.ApprovalStatus = model.ApprovalEscalated
	if err := s.repo.Update(ctx, refund, nil); err != nil {
		return err
	}

	logger.Info("refund approval escalated", map[string]interface{}{
		"refund_id": refund.ID,
		"level":     level,
	})
	return nil
}

// =====================================================
// GATEWAY DISPATCH
// =====================================================

func (s *refundService) ExecuteProcessRefund(ctx context.Context, refundID string, lastAttempt bool) error {
	token, err := s.acquireRefundLock(ctx, refundID)
	if err != nil {
		return err
	}
	defer s.releaseLock(token)

	refund, err := s.repo.GetByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, model.ErrRefundNotFound) {
			logger.Warn("dispatch task for unknown refund", map[string]interface{}{"refund_id": refundID})
			return nil
		}
		return err
	}

	// Terminal refunds and refunds already waiting on the gateway have
	// nothing left to dispatch; the task is acknowledged as done.
	if refund.IsTerminal() || refund.Status == model.StatusGatewayPending ||
		refund.Status == model.StatusPendingApproval {
		return nil
	}

	mark := len(refund.StatusHistory)
	switch refund.Status {
	case model.StatusSubmitted:
		if err := refund.Transition(model.StatusProcessing, "worker", ""); err != nil {
			return err
		}
	case model.StatusGatewayError:
		refund.RetryCount++
		if err := refund.Transition(model.StatusProcessing, "worker", "retry"); err != nil {
			return err
		}
	case model.StatusProcessing:
		// Crash recovery: the previous attempt died between persisting
		// PROCESSING and recording the outcome. A side-effect marker plus
		// a gateway reference means the call reached the gateway; poll
		// for its outcome instead of issuing the refund again.
		effect, err := s.idempotency.SideEffect(ctx, "dispatch:"+refund.ID)
		if err != nil {
			return fmt.Errorf("failed to read gateway side-effect marker: %w", err)
		}
		if effect != "" && refund.GatewayReference != nil {
			if err := refund.Transition(model.StatusGatewayPending, "worker", "recovered in-flight dispatch"); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
				return err
			}
			return s.enqueueStatusCheck(ctx, refund.ID, 0)
		}
		// No reference was recorded, so the outcome is unknowable from
		// here; re-dispatch and let the gateway-side idempotency key
		// absorb a duplicate issue.
	default:
		return model.NewInvalidStateTransition(refund.Status, model.StatusProcessing)
	}

	// Persist PROCESSING before the external call so a crash mid-call is
	// visible and the recorded side-effect marker can reconcile it.
	if len(refund.StatusHistory) > mark {
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
	}

	adapter, err := s.adapterFor(refund)
	if err != nil {
		return s.settleFailure(ctx, refund, "GATEWAY_NOT_SUPPORTED", err.Error(), "unsupported")
	}

	creds, err := s.credentialsFor(ctx, adapter, refund)
	if err != nil {
		// Secret store trouble is infrastructure, not a refund outcome.
		return fmt.Errorf("failed to load gateway credentials: %w", err)
	}

	effectKey := "dispatch:" + refund.ID
	if err := s.idempotency.MarkSideEffect(ctx, effectKey, adapter.Type(), createIdempotencyTTL); err != nil {
		return fmt.Errorf("failed to mark gateway side effect: %w", err)
	}

	// The gateway round trip can run close to the lease length; renew
	// before the call and verify ownership after it, before any outcome
	// is committed.
	if err := s.extendRefundLock(ctx, token); err != nil {
		return err
	}

	result, callErr := adapter.ProcessRefund(ctx, gateway.RefundRequest{
		RefundID:             refund.ID,
		MerchantID:           refund.MerchantID,
		GatewayTransactionID: refund.TransactionID,
		Amount:               refund.Amount,
		Currency:             refund.Currency,
		Reason:               refund.Reason,
		IdempotencyKey:       refund.ID,
		BankAccountID:        derefOr(refund.BankAccountID, ""),
	}, creds)

	if err := s.extendRefundLock(ctx, token); err != nil {
		return err
	}

	if callErr != nil {
		return s.handleDispatchError(ctx, refund, callErr, lastAttempt)
	}
	return s.handleDispatchResult(ctx, refund, adapter.Type(), result)
}

func (s *refundService) handleDispatchResult(ctx context.Context, refund *model.RefundRequest, gatewayType string, result *gateway.RefundResult) error {
	mark := len(refund.StatusHistory)

	if result.GatewayRefundID != "" {
		ref := result.GatewayRefundID
		refund.GatewayReference = &ref
	}
	if result.EstimatedSettlementDate != nil {
		refund.EstimatedCompletionDate = result.EstimatedSettlementDate
	}

	switch result.Status {
	case gateway.StatusCompleted:
		if err := refund.Transition(model.StatusCompleted, "gateway:"+gatewayType, ""); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		metrics.RefundsCompleted.WithLabelValues(gatewayType).Inc()
		s.notify(ctx, shared.EventRefundCompleted, refund, nil)

	case gateway.StatusFailed:
		refund.RecordProcessingError(string(gateway.CategoryRejection), result.ErrorCode, result.ErrorMessage, false)
		if err := refund.Transition(model.StatusFailed, "gateway:"+gatewayType, result.ErrorMessage); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		metrics.RefundsFailed.WithLabelValues("gateway_declined").Inc()
		s.notify(ctx, shared.EventRefundFailed, refund, map[string]interface{}{
			"error_code": result.ErrorCode,
		})

	default:
		// PENDING, PROCESSING and UNKNOWN all wait for the gateway. The
		// reference is persisted before the task completes so a retry can
		// never double-issue the refund.
		reason := ""
		if result.Status == gateway.StatusUnknown {
			reason = "gateway returned unrecognized status"
		}
		if err := refund.Transition(model.StatusGatewayPending, "gateway:"+gatewayType, reason); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		if err := s.enqueueStatusCheck(ctx, refund.ID, gatewayPollDelay); err != nil {
			logger.ErrorWithFields("failed to schedule status check", err, map[string]interface{}{
				"refund_id": refund.ID,
			})
		}
	}

	return nil
}

func (s *refundService) handleDispatchError(ctx context.Context, refund *model.RefundRequest, callErr error, lastAttempt bool) error {
	category, code := classifyForRecord(callErr)
	retryable := gateway.IsRetryable(callErr)

	mark := len(refund.StatusHistory)
	refund.RecordProcessingError(category, code, callErr.Error(), retryable)

	if !retryable {
		if err := refund.Transition(model.StatusFailed, "worker", callErr.Error()); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		metrics.RefundsFailed.WithLabelValues("gateway_terminal").Inc()
		s.notify(ctx, shared.EventRefundFailed, refund, map[string]interface{}{
			"error_code": code,
		})
		return nil
	}

	if err := refund.Transition(model.StatusGatewayError, "worker", callErr.Error()); err != nil {
		return err
	}

	if lastAttempt {
		if err := refund.Transition(model.StatusFailed, "worker", "retry attempts exhausted"); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		metrics.RefundsFailed.WithLabelValues("retries_exhausted").Inc()
		s.notify(ctx, shared.EventRefundFailed, refund, map[string]interface{}{
			"error_code": model.ErrCodeRetriesExhausted,
		})
		// The error still propagates so the exhausted task lands in the
		// dead letter archive for operator review.
		return fmt.Errorf("retry attempts exhausted for refund %s: %w", refund.ID, callErr)
	}

	if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
		return err
	}

	logger.Warn("gateway dispatch failed, will retry", map[string]interface{}{
		"refund_id": refund.ID,
		"attempt":   refund.RetryCount,
		"category":  category,
	})
	return fmt.Errorf("gateway dispatch failed for refund %s: %w", refund.ID, callErr)
}

// settleFailure moves a dispatchable refund straight to FAILED.
func (s *refundService) settleFailure(ctx context.Context, refund *model.RefundRequest, code, message, cause string) error {
	mark := len(refund.StatusHistory)
	refund.RecordProcessingError(string(gateway.CategoryValidation), code, message, false)
	if err := refund.Transition(model.StatusFailed, "worker", message); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
		return err
	}
	metrics.RefundsFailed.WithLabelValues(cause).Inc()
	s.notify(ctx, shared.EventRefundFailed, refund, map[string]interface{}{"error_code": code})
	return nil
}

// =====================================================
// STATUS CHECK
// =====================================================

func (s *refundService) ExecuteStatusCheck(ctx context.Context, refundID string) error {
	token, err := s.acquireRefundLock(ctx, refundID)
	if err != nil {
		return err
	}
	defer s.releaseLock(token)

	refund, err := s.repo.GetByID(ctx, refundID)
	if err != nil {
		if errors.Is(err, model.ErrRefundNotFound) {
			return nil
		}
		return err
	}

	if refund.Status != model.StatusGatewayPending && refund.Status != model.StatusGatewayError {
		return nil
	}
	if refund.GatewayReference == nil {
		// No reference means the dispatch never reached the gateway; the
		// dispatch task's own retry cycle owns recovery.
		return nil
	}

	adapter, err := s.adapterFor(refund)
	if err != nil {
		return err
	}
	creds, err := s.credentialsFor(ctx, adapter, refund)
	if err != nil {
		return fmt.Errorf("failed to load gateway credentials: %w", err)
	}

	if err := s.extendRefundLock(ctx, token); err != nil {
		return err
	}

	result, err := adapter.CheckRefundStatus(ctx, *refund.GatewayReference, creds)
	if err != nil {
		if gateway.IsRetryable(err) {
			return fmt.Errorf("status check failed for refund %s: %w", refund.ID, err)
		}
		logger.ErrorWithFields("status check failed terminally", err, map[string]interface{}{
			"refund_id": refund.ID,
		})
		return nil
	}

	if err := s.extendRefundLock(ctx, token); err != nil {
		return err
	}

	mark := len(refund.StatusHistory)
	switch result.Status {
	case gateway.StatusCompleted:
		if refund.Status == model.StatusGatewayError {
			if err := refund.Transition(model.StatusProcessing, "worker", "status check"); err != nil {
				return err
			}
		}
		if err := refund.Transition(model.StatusCompleted, "gateway:"+adapter.Type(), "status check"); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		metrics.RefundsCompleted.WithLabelValues(adapter.Type()).Inc()
		s.notify(ctx, shared.EventRefundCompleted, refund, nil)

	case gateway.StatusFailed:
		if err := refund.Transition(model.StatusFailed, "gateway:"+adapter.Type(), result.ErrorMessage); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		metrics.RefundsFailed.WithLabelValues("gateway_declined").Inc()
		s.notify(ctx, shared.EventRefundFailed, refund, map[string]interface{}{
			"error_code": result.ErrorCode,
		})

	default:
		// Still in flight; the sweep will look again.
	}

	return nil
}

func (s *refundService) EnqueueStatusSweep(ctx context.Context, limit int) (int, error) {
	ids, err := s.repo.ListDueForStatusCheck(ctx, limit)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		if err := s.enqueueStatusCheck(ctx, id, 0); err != nil {
			logger.ErrorWithFields("failed to enqueue status check", err, map[string]interface{}{
				"refund_id": id,
			})
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// =====================================================
// WEBHOOK SETTLEMENT
// =====================================================

func (s *refundService) ProcessWebhookEvent(ctx context.Context, gatewayType string, event gateway.NormalizedEvent) error {
	dedupKey := fmt.Sprintf("webhook:%s:%s", gatewayType, event.EventID)
	var seen bool
	found, err := s.idempotency.Get(ctx, dedupKey, &seen)
	if err != nil {
		return fmt.Errorf("failed to check webhook dedup: %w", err)
	}
	if found {
		logger.Debug("duplicate webhook event acknowledged")
		return nil
	}

	located, err := s.repo.GetByGatewayReference(ctx, gatewayType, event.GatewayRefundID)
	if err != nil {
		if errors.Is(err, model.ErrRefundNotFound) {
			logger.Warn("webhook event matches no refund", map[string]interface{}{
				"gateway":           gatewayType,
				"gateway_refund_id": event.GatewayRefundID,
				"event_id":          event.EventID,
			})
			return s.markWebhookProcessed(ctx, dedupKey)
		}
		return err
	}

	token, err := s.acquireRefundLock(ctx, located.ID)
	if err != nil {
		return err
	}
	defer s.releaseLock(token)

	refund, err := s.repo.GetByID(ctx, located.ID)
	if err != nil {
		return err
	}

	// Terminal states absorb late events; the webhook is acknowledged
	// without touching the refund.
	if refund.IsTerminal() {
		return s.markWebhookProcessed(ctx, dedupKey)
	}

	mark := len(refund.StatusHistory)
	actor := "webhook:" + gatewayType

	switch event.Status {
	case gateway.StatusCompleted:
		if refund.Status == model.StatusGatewayError {
			if err := refund.Transition(model.StatusProcessing, actor, "webhook"); err != nil {
				return err
			}
		}
		if err := refund.Transition(model.StatusCompleted, actor, "webhook"); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		metrics.RefundsCompleted.WithLabelValues(gatewayType).Inc()
		s.notify(ctx, shared.EventRefundCompleted, refund, nil)

	case gateway.StatusFailed:
		if err := refund.Transition(model.StatusFailed, actor, "webhook"); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, refund, refund.StatusHistory[mark:]); err != nil {
			return err
		}
		metrics.RefundsFailed.WithLabelValues("gateway_declined").Inc()
		s.notify(ctx, shared.EventRefundFailed, refund, nil)

	default:
		// An in-flight or unrecognized event confirms nothing; keep
		// waiting and let the next poll decide.
	}

	return s.markWebhookProcessed(ctx, dedupKey)
}

func (s *refundService) markWebhookProcessed(ctx context.Context, dedupKey string) error {
	if err := s.idempotency.Put(ctx, dedupKey, true, webhookDedupTTL); err != nil {
		return fmt.Errorf("failed to record webhook dedup: %w", err)
	}
	return nil
}

// =====================================================
// HELPERS
// =====================================================

func (s *refundService) acquireRefundLock(ctx context.Context, refundID string) (*lock.Token, error) {
	token, err := s.locker.Acquire(ctx, "refund:"+refundID, s.opts.LockLease, lockMaxWait)
	if err != nil {
		return nil, fmt.Errorf("failed to lock refund %s: %w", refundID, err)
	}
	return token, nil
}

// extendRefundLock renews the lease on a held refund lock. ErrLockLost
// means another worker owns the refund now; the caller must not commit
// anything from this attempt.
func (s *refundService) extendRefundLock(ctx context.Context, token *lock.Token) error {
	if err := s.locker.Extend(ctx, token, s.opts.LockLease); err != nil {
		return fmt.Errorf("failed to extend refund lock %s: %w", token.Key, err)
	}
	return nil
}

func (s *refundService) releaseLock(token *lock.Token) {
	if err := s.locker.Release(context.Background(), token); err != nil {
		logger.Error("failed to release refund lock", err)
	}
}

func (s *refundService) adapterFor(refund *model.RefundRequest) (gateway.Adapter, error) {
	switch refund.RefundMethod {
	case model.MethodBalance:
		return s.gateways.Get(gateway.TypeBalance)
	case model.MethodOther:
		return s.gateways.Get(gateway.TypeACH)
	default:
		return s.gateways.Get(refund.GatewayType)
	}
}

// credentialsFor loads merchant secrets for external gateways. Internal
// adapters (balance, ACH) carry no credentials.
func (s *refundService) credentialsFor(ctx context.Context, adapter gateway.Adapter, refund *model.RefundRequest) (gateway.Credentials, error) {
	switch adapter.Type() {
	case gateway.TypeBalance, gateway.TypeACH:
		return gateway.Credentials{}, nil
	}
	return s.credentials.Get(ctx, adapter.Type(), refund.MerchantID)
}

func (s *refundService) enqueueDispatch(ctx context.Context, refundID string) error {
	payload := model.ProcessRefundPayload{
		RefundID:      refundID,
		CorrelationID: middleware.CorrelationID(ctx),
	}
	if err := s.queue.Enqueue(ctx, shared.TypeProcessRefund, shared.QueueGateway,
		refundID, "process:"+refundID, payload); err != nil {
		return fmt.Errorf("failed to enqueue refund dispatch: %w", err)
	}
	return nil
}

func (s *refundService) enqueueStatusCheck(ctx context.Context, refundID string, delay time.Duration) error {
	payload := model.CheckGatewayPayload{
		RefundID:      refundID,
		CorrelationID: middleware.CorrelationID(ctx),
	}
	if delay > 0 {
		return s.queue.EnqueueIn(ctx, delay, shared.TypeCheckGateway, shared.QueueGateway,
			refundID, "check:"+refundID, payload)
	}
	return s.queue.Enqueue(ctx, shared.TypeCheckGateway, shared.QueueGateway,
		refundID, "check:"+refundID, payload)
}

func (s *refundService) notify(ctx context.Context, event shared.EventKind, refund *model.RefundRequest, data map[string]interface{}) {
	payload := model.NotifyPayload{
		Event:         string(event),
		RefundID:      refund.ID,
		MerchantID:    refund.MerchantID,
		Data:          data,
		CorrelationID: middleware.CorrelationID(ctx),
	}
	if err := s.queue.Enqueue(ctx, shared.TypeNotify, shared.QueueNotification, "", "", payload); err != nil {
		logger.ErrorWithFields("failed to enqueue notification", err, map[string]interface{}{
			"refund_id": refund.ID,
			"event":     string(event),
		})
	}
}

func classifyForRecord(err error) (category, code string) {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return string(gwErr.Category), gwErr.Code
	}
	return string(gateway.CategoryUnknown), "UNKNOWN"
}

func hashPayload(req *model.CreateRefundRequest) string {
	clone := *req
	clone.IdempotencyKey = ""
	raw, _ := json.Marshal(clone)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
