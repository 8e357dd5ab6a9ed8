package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bankmodel "refunds-backend/internal/domains/bankaccount/model"
	merchantmodel "refunds-backend/internal/domains/merchant/model"
	parammodel "refunds-backend/internal/domains/parameter/model"
	"refunds-backend/internal/domains/refund/model"
	txnmodel "refunds-backend/internal/domains/transaction/model"
	"refunds-backend/internal/gateway"
	"refunds-backend/internal/gateway/gatewaytest"
	"refunds-backend/internal/infrastructure/lock"
	"refunds-backend/internal/shared"
)

// =====================================================
// IN-MEMORY FAKES
// =====================================================

type fakeRefundRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.RefundRequest
	creates int
}

func newFakeRefundRepo() *fakeRefundRepo {
	return &fakeRefundRepo{byID: map[string]*model.RefundRequest{}}
}

func cloneRefund(r *model.RefundRequest) *model.RefundRequest {
	clone := *r
	clone.StatusHistory = append([]model.StatusHistoryEntry(nil), r.StatusHistory...)
	clone.ProcessingErrors = append([]model.ProcessingError(nil), r.ProcessingErrors...)
	return &clone
}

func (f *fakeRefundRepo) Create(_ context.Context, refund *model.RefundRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.byID[refund.ID] = cloneRefund(refund)
	return nil
}

func (f *fakeRefundRepo) GetByID(_ context.Context, refundID string) (*model.RefundRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[refundID]
	if !ok {
		return nil, model.ErrRefundNotFound
	}
	return cloneRefund(stored), nil
}

func (f *fakeRefundRepo) GetByIDAndMerchant(ctx context.Context, refundID, merchantID string) (*model.RefundRequest, error) {
	refund, err := f.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund.MerchantID != merchantID {
		return nil, model.ErrRefundNotFound
	}
	return refund, nil
}

func (f *fakeRefundRepo) GetByGatewayReference(_ context.Context, gatewayType, reference string) (*model.RefundRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.GatewayType == gatewayType && r.GatewayReference != nil && *r.GatewayReference == reference {
			return cloneRefund(r), nil
		}
	}
	return nil, model.ErrRefundNotFound
}

func (f *fakeRefundRepo) Update(_ context.Context, refund *model.RefundRequest, _ []model.StatusHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[refund.ID]
	if !ok {
		return model.ErrRefundNotFound
	}
	if stored.Version != refund.Version {
		return model.ErrVersionConflict
	}
	refund.Version++
	f.byID[refund.ID] = cloneRefund(refund)
	return nil
}

func (f *fakeRefundRepo) List(_ context.Context, _ model.ListRefundsRequest) ([]*model.RefundRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.RefundRequest, 0, len(f.byID))
	for _, r := range f.byID {
		out = append(out, cloneRefund(r))
	}
	return out, int64(len(out)), nil
}

func (f *fakeRefundRepo) ListDueForStatusCheck(_ context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, r := range f.byID {
		if r.Status == model.StatusGatewayPending || r.Status == model.StatusGatewayError {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (f *fakeRefundRepo) Statistics(_ context.Context, _ model.StatisticsRequest) (*model.Statistics, error) {
	return &model.Statistics{GeneratedAt: time.Now().UTC()}, nil
}

type enqueuedTask struct {
	TaskType string
	Queue    string
	GroupKey string
	IdemKey  string
	Payload  interface{}
	Delay    time.Duration
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []enqueuedTask
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, taskType, queueName, groupKey, idempotencyKey string, payload interface{}, _ ...asynq.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, enqueuedTask{taskType, queueName, groupKey, idempotencyKey, payload, 0})
	return nil
}

func (f *fakeEnqueuer) EnqueueIn(_ context.Context, delay time.Duration, taskType, queueName, groupKey, idempotencyKey string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, enqueuedTask{taskType, queueName, groupKey, idempotencyKey, payload, delay})
	return nil
}

func (f *fakeEnqueuer) byType(taskType string) []enqueuedTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []enqueuedTask
	for _, task := range f.tasks {
		if task.TaskType == taskType {
			out = append(out, task)
		}
	}
	return out
}

// stubResolver serves parameter defaults; tests override per name.
type stubResolver struct {
	values map[string]parammodel.Value
}

func newStubResolver() *stubResolver {
	return &stubResolver{values: map[string]parammodel.Value{
		parammodel.ParamMaxRefundAgeDays:   parammodel.NewNumberValue(180),
		parammodel.ParamMaxRefundAmount:    parammodel.NewNumberValue(0),
		parammodel.ParamReasonCodeRequired: parammodel.NewBoolValue(false),
		parammodel.ParamAllowedRefundMethods: parammodel.NewArrayValue([]interface{}{
			model.MethodOriginalPayment, model.MethodBalance, model.MethodOther,
		}),
	}}
}

func (s *stubResolver) Resolve(_ context.Context, name, _ string) (*parammodel.Resolved, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, parammodel.NewUnknownParameterError(name)
	}
	return &parammodel.Resolved{Name: name, Value: value, Source: parammodel.SourceDefault}, nil
}

type fakeTxnRepo struct {
	txns     map[string]*txnmodel.Transaction
	refunded map[string]int64
}

func (f *fakeTxnRepo) GetByID(_ context.Context, id string) (*txnmodel.Transaction, error) {
	txn, ok := f.txns[id]
	if !ok {
		return nil, txnmodel.ErrTransactionNotFound
	}
	return txn, nil
}

func (f *fakeTxnRepo) GetByIDAndMerchant(_ context.Context, id, merchantID string) (*txnmodel.Transaction, error) {
	txn, ok := f.txns[id]
	if !ok || txn.MerchantID != merchantID {
		return nil, txnmodel.ErrTransactionNotFound
	}
	return txn, nil
}

func (f *fakeTxnRepo) SumCompletedRefunds(_ context.Context, id string) (int64, error) {
	return f.refunded[id], nil
}

type fakeMerchantRepo struct {
	balance int64
}

func (f *fakeMerchantRepo) GetByID(_ context.Context, merchantID string) (*merchantmodel.Merchant, error) {
	return &merchantmodel.Merchant{
		ID:           merchantID,
		Status:       merchantmodel.MerchantStatusActive,
		Balance:      f.balance,
		Currency:     "USD",
		ContactEmail: "ops@merchant.example",
	}, nil
}

func (f *fakeMerchantRepo) GetHierarchy(_ context.Context, merchantID string) (*merchantmodel.Hierarchy, error) {
	return &merchantmodel.Hierarchy{MerchantID: merchantID}, nil
}

func (f *fakeMerchantRepo) CreditBalance(context.Context, string, int64, string, string) (string, error) {
	return "entry-1", nil
}

func (f *fakeMerchantRepo) DebitBalance(context.Context, string, int64, string, string) (string, error) {
	return "entry-2", nil
}

type fakeBankRepo struct {
	accounts map[string]*bankmodel.BankAccount
}

func (f *fakeBankRepo) Create(context.Context, *bankmodel.BankAccount) error { return nil }

func (f *fakeBankRepo) GetByID(_ context.Context, id string) (*bankmodel.BankAccount, error) {
	account, ok := f.accounts[id]
	if !ok {
		return nil, bankmodel.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeBankRepo) GetByIDAndMerchant(ctx context.Context, id, merchantID string) (*bankmodel.BankAccount, error) {
	account, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.MerchantID != merchantID {
		return nil, bankmodel.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeBankRepo) ListByMerchant(context.Context, string) ([]*bankmodel.BankAccount, error) {
	return nil, nil
}

func (f *fakeBankRepo) UpdateVerification(context.Context, string, string) error { return nil }

func (f *fakeBankRepo) SetDefault(context.Context, string, string) error { return nil }

type fakeApprovalGate struct {
	requires bool
	opened   []*model.RefundRequest
}

func (f *fakeApprovalGate) RequiresApproval(context.Context, string, int64) (bool, error) {
	return f.requires, nil
}

func (f *fakeApprovalGate) OpenRequest(_ context.Context, refund *model.RefundRequest) error {
	f.opened = append(f.opened, refund)
	return nil
}

type fakeCredentials struct{}

func (fakeCredentials) Get(context.Context, string, string) (gateway.Credentials, error) {
	return gateway.Credentials{APIKey: "sk_test"}, nil
}

// =====================================================
// FIXTURE
// =====================================================

type fixture struct {
	service     RefundService
	repo        *fakeRefundRepo
	enqueuer    *fakeEnqueuer
	gate        *fakeApprovalGate
	stripe      *gatewaytest.Adapter
	idempotency lock.IdempotencyStore
	resolver    *stubResolver
	txns        *fakeTxnRepo
	banks       *fakeBankRepo
	mr          *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	resolver := newStubResolver()
	txns := &fakeTxnRepo{
		txns: map[string]*txnmodel.Transaction{
			"t-1": {
				ID:          "t-1",
				MerchantID:  "M1",
				Amount:      10000,
				Currency:    "USD",
				GatewayType: gateway.TypeStripe,
				CapturedAt:  time.Now().UTC().Add(-24 * time.Hour),
				Status:      txnmodel.TransactionStatusCaptured,
			},
		},
		refunded: map[string]int64{},
	}
	banks := &fakeBankRepo{accounts: map[string]*bankmodel.BankAccount{}}

	registry := gateway.NewRegistry()
	stripe := gatewaytest.New(gateway.TypeStripe)
	require.NoError(t, registry.Register(stripe))
	require.NoError(t, registry.Register(gatewaytest.New(gateway.TypeACH)))
	require.NoError(t, registry.Register(gatewaytest.New(gateway.TypeBalance)))

	compliance := NewComplianceChecker(resolver, txns, &fakeMerchantRepo{balance: 50000}, banks, registry)

	repo := newFakeRefundRepo()
	enqueuer := &fakeEnqueuer{}
	gate := &fakeApprovalGate{}
	idempotency := lock.NewRedisIdempotencyStore(client)

	svc := NewRefundService(
		repo, compliance, gate, enqueuer,
		lock.NewRedisLocker(client), idempotency,
		registry, fakeCredentials{},
		Options{LockLease: 2 * time.Second, MaxAttempts: 5, RetryInitial: 100 * time.Millisecond, RetryFactor: 2},
	)

	return &fixture{
		service:     svc,
		repo:        repo,
		enqueuer:    enqueuer,
		gate:        gate,
		stripe:      stripe,
		idempotency: idempotency,
		resolver:    resolver,
		txns:        txns,
		banks:       banks,
		mr:          mr,
	}
}

func createReq() *model.CreateRefundRequest {
	return &model.CreateRefundRequest{
		TransactionID: "t-1",
		Amount:        2500,
		Currency:      "USD",
		RefundMethod:  model.MethodOriginalPayment,
		Reason:        "customer returned goods",
	}
}

func (f *fixture) seed(t *testing.T, refund *model.RefundRequest) {
	t.Helper()
	require.NoError(t, f.repo.Create(context.Background(), refund))
}

// =====================================================
// CREATE
// =====================================================

func TestCreateDispatchesImmediately(t *testing.T) {
	f := newFixture(t)

	refund, err := f.service.Create(context.Background(), "M1", createReq())
	require.NoError(t, err)

	assert.Equal(t, model.StatusSubmitted, refund.Status)
	assert.Equal(t, gateway.TypeStripe, refund.GatewayType)

	dispatches := f.enqueuer.byType(shared.TypeProcessRefund)
	require.Len(t, dispatches, 1)
	assert.Equal(t, shared.QueueGateway, dispatches[0].Queue)
	assert.Equal(t, refund.ID, dispatches[0].GroupKey)
}

func TestCreateIdempotentReplay(t *testing.T) {
	f := newFixture(t)

	req := createReq()
	req.IdempotencyKey = "key-1"

	first, err := f.service.Create(context.Background(), "M1", req)
	require.NoError(t, err)

	second, err := f.service.Create(context.Background(), "M1", req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.repo.creates, "replay must not create a second refund")
	assert.Len(t, f.enqueuer.byType(shared.TypeProcessRefund), 1)
}

func TestCreateIdempotencyKeyPayloadMismatch(t *testing.T) {
	f := newFixture(t)

	req := createReq()
	req.IdempotencyKey = "key-1"
	_, err := f.service.Create(context.Background(), "M1", req)
	require.NoError(t, err)

	changed := createReq()
	changed.IdempotencyKey = "key-1"
	changed.Amount = 9999

	_, err = f.service.Create(context.Background(), "M1", changed)
	var conflict *model.IdempotencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "key-1", conflict.Key)
}

func TestCreateOverThresholdParksForApproval(t *testing.T) {
	f := newFixture(t)
	f.gate.requires = true

	refund, err := f.service.Create(context.Background(), "M1", createReq())
	require.NoError(t, err)

	assert.Equal(t, model.StatusPendingApproval, refund.Status)
	assert.Equal(t, model.ApprovalPending, refund.ApprovalStatus)
	require.Len(t, f.gate.opened, 1)
	assert.Empty(t, f.enqueuer.byType(shared.TypeProcessRefund),
		"approval-gated refunds must not dispatch")
}

func TestCreateAmountOverRemainingFails(t *testing.T) {
	f := newFixture(t)
	f.txns.refunded["t-1"] = 9000 // 1000 remaining

	req := createReq()
	req.Amount = 2500

	_, err := f.service.Create(context.Background(), "M1", req)

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Fields, 1)
	assert.Equal(t, model.CodeMaxRefundAmountExceeded, validationErr.Fields[0].Code)
	assert.Equal(t, 0, f.repo.creates, "failed validation must not persist anything")
}

func TestCreateUnverifiedBankAccountFails(t *testing.T) {
	f := newFixture(t)
	f.banks.accounts["ba-1"] = &bankmodel.BankAccount{
		ID:                 "ba-1",
		MerchantID:         "M1",
		Status:             bankmodel.AccountStatusActive,
		VerificationStatus: bankmodel.VerificationPending,
	}

	req := createReq()
	req.RefundMethod = model.MethodOther
	accountID := "ba-1"
	req.BankAccountID = &accountID

	_, err := f.service.Create(context.Background(), "M1", req)

	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, model.CodeBankAccountNotVerified, validationErr.Fields[0].Code)
}

// =====================================================
// CANCEL
// =====================================================

func TestCancelSubmittedRefund(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	f.seed(t, refund)

	canceled, err := f.service.Cancel(context.Background(), "M1", "r-1", "merchant:M1",
		&model.CancelRefundRequest{Reason: "duplicate request"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCanceled, canceled.Status)
	notifies := f.enqueuer.byType(shared.TypeNotify)
	require.Len(t, notifies, 1)
	payload := notifies[0].Payload.(model.NotifyPayload)
	assert.Equal(t, string(shared.EventRefundCanceled), payload.Event)
}

func TestCancelRefusedOnceGatewayReferenceExists(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	ref := "re_9"
	refund.GatewayReference = &ref
	f.seed(t, refund)

	_, err := f.service.Cancel(context.Background(), "M1", "r-1", "merchant:M1",
		&model.CancelRefundRequest{Reason: "changed my mind"})
	assert.ErrorIs(t, err, model.ErrCancelNotPermitted)
}

// =====================================================
// APPROVAL DECISIONS
// =====================================================

func TestRecordDecisionApprovedDispatches(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	require.NoError(t, refund.Transition(model.StatusPendingApproval, "system", ""))
	refund.ApprovalStatus = model.ApprovalPending
	f.seed(t, refund)

	require.NoError(t, f.service.RecordDecision(context.Background(), "r-1", true, "approver@x", "looks fine"))

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusProcessing, stored.Status)
	assert.Equal(t, model.ApprovalApproved, stored.ApprovalStatus)
	assert.Len(t, f.enqueuer.byType(shared.TypeProcessRefund), 1)
}

func TestRecordDecisionRejected(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	require.NoError(t, refund.Transition(model.StatusPendingApproval, "system", ""))
	f.seed(t, refund)

	require.NoError(t, f.service.RecordDecision(context.Background(), "r-1", false, "approver@x", "suspicious"))

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusRejected, stored.Status)
	assert.Empty(t, f.enqueuer.byType(shared.TypeProcessRefund))
}

func TestRecordDecisionRedeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	require.NoError(t, refund.Transition(model.StatusProcessing, "worker", ""))
	f.seed(t, refund)

	assert.NoError(t, f.service.RecordDecision(context.Background(), "r-1", true, "approver@x", ""))
}

// =====================================================
// GATEWAY DISPATCH
// =====================================================

func submittedRefund(id string) *model.RefundRequest {
	refund := &model.RefundRequest{
		ID:             id,
		TransactionID:  "t-1",
		MerchantID:     "M1",
		Amount:         2500,
		Currency:       "USD",
		RefundMethod:   model.MethodOriginalPayment,
		Reason:         "customer returned goods",
		Status:         model.StatusDraft,
		ApprovalStatus: model.ApprovalNone,
		GatewayType:    gateway.TypeStripe,
		Version:        1,
	}
	_ = refund.Transition(model.StatusSubmitted, "merchant:M1", "")
	return refund
}

func TestDispatchCompletes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, submittedRefund("r-1"))
	f.stripe.ProcessResults = []gatewaytest.ScriptedResult{{
		Result: &gateway.RefundResult{Success: true, Status: gateway.StatusCompleted, GatewayRefundID: "re_9"},
	}}

	require.NoError(t, f.service.ExecuteProcessRefund(context.Background(), "r-1", false))

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, "re_9", *stored.GatewayReference)

	// The gateway idempotency key is the refund id, so re-issues dedupe
	// on the gateway side.
	require.Len(t, f.stripe.ProcessCalls, 1)
	assert.Equal(t, "r-1", f.stripe.ProcessCalls[0].IdempotencyKey)

	marker, err := f.idempotency.SideEffect(context.Background(), "dispatch:r-1")
	require.NoError(t, err)
	assert.Equal(t, gateway.TypeStripe, marker)

	notifies := f.enqueuer.byType(shared.TypeNotify)
	require.Len(t, notifies, 1)
	assert.Equal(t, string(shared.EventRefundCompleted), notifies[0].Payload.(model.NotifyPayload).Event)
}

func TestDispatchRetryableFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, submittedRefund("r-1"))
	f.stripe.ProcessResults = []gatewaytest.ScriptedResult{{
		Err: gateway.NewError(gateway.TypeStripe, gateway.CategoryServer, "HTTP_503", "service unavailable", nil),
	}}

	err := f.service.ExecuteProcessRefund(context.Background(), "r-1", false)
	require.Error(t, err, "retryable failure must requeue the task")

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusGatewayError, stored.Status)
	require.Len(t, stored.ProcessingErrors, 1)
	assert.True(t, stored.ProcessingErrors[0].Retryable)

	// Second attempt: GATEWAY_ERROR re-enters PROCESSING and counts the retry.
	err = f.service.ExecuteProcessRefund(context.Background(), "r-1", false)
	require.Error(t, err)

	stored, _ = f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusGatewayError, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Len(t, stored.ProcessingErrors, 2)
}

func TestDispatchExhaustedLandsInFailed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, submittedRefund("r-1"))
	f.stripe.ProcessResults = []gatewaytest.ScriptedResult{{
		Err: gateway.NewError(gateway.TypeStripe, gateway.CategoryTimeout, "TIMEOUT", "gateway call timed out", nil),
	}}

	err := f.service.ExecuteProcessRefund(context.Background(), "r-1", true)
	require.Error(t, err, "the exhausted task must reach the dead letter archive")

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusFailed, stored.Status)

	notifies := f.enqueuer.byType(shared.TypeNotify)
	require.Len(t, notifies, 1)
	assert.Equal(t, string(shared.EventRefundFailed), notifies[0].Payload.(model.NotifyPayload).Event)
}

func TestDispatchNonRetryableFailsImmediately(t *testing.T) {
	f := newFixture(t)
	f.seed(t, submittedRefund("r-1"))
	f.stripe.ProcessResults = []gatewaytest.ScriptedResult{{
		Err: gateway.NewError(gateway.TypeStripe, gateway.CategoryValidation, "HTTP_422", "charge already refunded", nil),
	}}

	require.NoError(t, f.service.ExecuteProcessRefund(context.Background(), "r-1", false),
		"terminal gateway errors settle the refund, the task is done")

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusFailed, stored.Status)
	require.Len(t, stored.ProcessingErrors, 1)
	assert.False(t, stored.ProcessingErrors[0].Retryable)
}

func TestDispatchPendingSchedulesStatusCheck(t *testing.T) {
	f := newFixture(t)
	f.seed(t, submittedRefund("r-1"))
	f.stripe.ProcessResults = []gatewaytest.ScriptedResult{{
		Result: &gateway.RefundResult{Success: true, Status: gateway.StatusPending, GatewayRefundID: "re_9"},
	}}

	require.NoError(t, f.service.ExecuteProcessRefund(context.Background(), "r-1", false))

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusGatewayPending, stored.Status)
	assert.Equal(t, "re_9", *stored.GatewayReference)

	checks := f.enqueuer.byType(shared.TypeCheckGateway)
	require.Len(t, checks, 1)
	assert.Equal(t, 60*time.Second, checks[0].Delay)
}

func TestDispatchSkipsTerminalRefund(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	require.NoError(t, refund.Transition(model.StatusCanceled, "merchant:M1", ""))
	f.seed(t, refund)

	require.NoError(t, f.service.ExecuteProcessRefund(context.Background(), "r-1", false))
	assert.Empty(t, f.stripe.ProcessCalls)
}

func TestDispatchAbortsWhenLockLost(t *testing.T) {
	f := newFixture(t)
	f.seed(t, submittedRefund("r-1"))
	f.stripe.ProcessResults = []gatewaytest.ScriptedResult{{
		Result: &gateway.RefundResult{Success: true, Status: gateway.StatusCompleted, GatewayRefundID: "re_9"},
	}}
	// Another worker takes over the lock while the gateway call runs;
	// the outcome must not be committed by the stale holder.
	f.stripe.ProcessHook = func() {
		require.NoError(t, f.mr.Set("lock:refund:r-1", "another-holder"))
	}

	err := f.service.ExecuteProcessRefund(context.Background(), "r-1", false)
	require.ErrorIs(t, err, lock.ErrLockLost)

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusProcessing, stored.Status, "only the pre-call state may be persisted")
	assert.Nil(t, stored.GatewayReference)
}

func TestDispatchRecoversInFlightAttempt(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	require.NoError(t, refund.Transition(model.StatusProcessing, "worker", ""))
	ref := "re_9"
	refund.GatewayReference = &ref
	f.seed(t, refund)
	require.NoError(t, f.idempotency.MarkSideEffect(context.Background(), "dispatch:r-1", gateway.TypeStripe, time.Minute))

	// The previous attempt died after the gateway call; this one must
	// poll for the outcome instead of issuing the refund again.
	require.NoError(t, f.service.ExecuteProcessRefund(context.Background(), "r-1", false))

	assert.Empty(t, f.stripe.ProcessCalls, "a recorded side effect with a reference must not re-issue")
	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusGatewayPending, stored.Status)

	checks := f.enqueuer.byType(shared.TypeCheckGateway)
	require.Len(t, checks, 1)
	assert.Equal(t, time.Duration(0), checks[0].Delay)
}

func TestDispatchReissuesWhenNoReferenceRecorded(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	require.NoError(t, refund.Transition(model.StatusProcessing, "worker", ""))
	f.seed(t, refund)
	require.NoError(t, f.idempotency.MarkSideEffect(context.Background(), "dispatch:r-1", gateway.TypeStripe, time.Minute))

	require.NoError(t, f.service.ExecuteProcessRefund(context.Background(), "r-1", false))

	// Without a reference the outcome is unknowable; the gateway-side
	// idempotency key absorbs the duplicate issue.
	require.Len(t, f.stripe.ProcessCalls, 1)
	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusCompleted, stored.Status)
}

// =====================================================
// ESCALATION
// =====================================================

func TestRecordEscalationMarksRefund(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	require.NoError(t, refund.Transition(model.StatusPendingApproval, "system", ""))
	refund.ApprovalStatus = model.ApprovalPending
	f.seed(t, refund)

	require.NoError(t, f.service.RecordEscalation(context.Background(), "r-1", "MANAGER"))

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.ApprovalEscalated, stored.ApprovalStatus)
	assert.Equal(t, model.StatusPendingApproval, stored.Status, "escalation does not move the refund")
}

func TestRecordEscalationIgnoresDecidedRefund(t *testing.T) {
	f := newFixture(t)
	refund := submittedRefund("r-1")
	require.NoError(t, refund.Transition(model.StatusProcessing, "worker", ""))
	refund.ApprovalStatus = model.ApprovalApproved
	f.seed(t, refund)

	require.NoError(t, f.service.RecordEscalation(context.Background(), "r-1", "MANAGER"))

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.ApprovalApproved, stored.ApprovalStatus, "a settled approval keeps its status")
}

// =====================================================
// STATUS CHECK
// =====================================================

func gatewayPendingRefund(id, reference string) *model.RefundRequest {
	refund := submittedRefund(id)
	_ = refund.Transition(model.StatusProcessing, "worker", "")
	_ = refund.Transition(model.StatusGatewayPending, "gateway:STRIPE", "")
	refund.GatewayReference = &reference
	return refund
}

func TestStatusCheckCompletes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, gatewayPendingRefund("r-1", "re_9"))
	f.stripe.CheckResults = []gatewaytest.ScriptedResult{{
		Result: &gateway.RefundResult{Success: true, Status: gateway.StatusCompleted},
	}}

	require.NoError(t, f.service.ExecuteStatusCheck(context.Background(), "r-1"))

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, []string{"re_9"}, f.stripe.CheckCalls)
}

func TestStatusCheckStillInFlight(t *testing.T) {
	f := newFixture(t)
	f.seed(t, gatewayPendingRefund("r-1", "re_9"))
	f.stripe.CheckResults = []gatewaytest.ScriptedResult{{
		Result: &gateway.RefundResult{Success: true, Status: gateway.StatusProcessing},
	}}

	require.NoError(t, f.service.ExecuteStatusCheck(context.Background(), "r-1"))

	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusGatewayPending, stored.Status)
}

func TestStatusSweepEnqueuesChecks(t *testing.T) {
	f := newFixture(t)
	f.seed(t, gatewayPendingRefund("r-1", "re_1"))
	f.seed(t, gatewayPendingRefund("r-2", "re_2"))

	count, err := f.service.EnqueueStatusSweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, f.enqueuer.byType(shared.TypeCheckGateway), 2)
}

// =====================================================
// WEBHOOKS
// =====================================================

func TestWebhookSettlesAndDedupes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, gatewayPendingRefund("r-1", "re_9"))

	event := gateway.NormalizedEvent{
		EventID:         "evt_1",
		GatewayRefundID: "re_9",
		Status:          gateway.StatusCompleted,
		OccurredAt:      time.Now().UTC(),
	}

	require.NoError(t, f.service.ProcessWebhookEvent(context.Background(), gateway.TypeStripe, event))
	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusCompleted, stored.Status)
	notified := len(f.enqueuer.byType(shared.TypeNotify))

	// Replay: acknowledged, nothing re-processed.
	require.NoError(t, f.service.ProcessWebhookEvent(context.Background(), gateway.TypeStripe, event))
	assert.Len(t, f.enqueuer.byType(shared.TypeNotify), notified)
}

func TestWebhookLateEventAbsorbedByTerminalState(t *testing.T) {
	f := newFixture(t)
	refund := gatewayPendingRefund("r-1", "re_9")
	require.NoError(t, refund.Transition(model.StatusCompleted, "gateway:STRIPE", ""))
	f.seed(t, refund)

	event := gateway.NormalizedEvent{
		EventID:         "evt_2",
		GatewayRefundID: "re_9",
		Status:          gateway.StatusFailed,
		OccurredAt:      time.Now().UTC(),
	}

	require.NoError(t, f.service.ProcessWebhookEvent(context.Background(), gateway.TypeStripe, event))
	stored, _ := f.repo.GetByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusCompleted, stored.Status, "terminal states absorb late webhooks")
}

func TestWebhookUnknownReferenceAcknowledged(t *testing.T) {
	f := newFixture(t)

	event := gateway.NormalizedEvent{
		EventID:         "evt_3",
		GatewayRefundID: "re_unknown",
		Status:          gateway.StatusCompleted,
	}

	assert.NoError(t, f.service.ProcessWebhookEvent(context.Background(), gateway.TypeStripe, event))
}
