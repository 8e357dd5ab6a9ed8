package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merchantmodel "refunds-backend/internal/domains/merchant/model"
	"refunds-backend/internal/domains/notification/model"
	refundmodel "refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/shared"
)

// =====================================================
// FAKES
// =====================================================

type fakeNotificationRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{byID: map[string]*model.Notification{}}
}

func (f *fakeNotificationRepo) Create(_ context.Context, notification *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *notification
	f.byID[notification.ID] = &clone
	return nil
}

func (f *fakeNotificationRepo) GetByID(_ context.Context, notificationID string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[notificationID]
	if !ok {
		return nil, model.ErrNotificationNotFound
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeNotificationRepo) MarkSent(_ context.Context, notificationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[notificationID]
	if !ok {
		return model.ErrNotificationNotFound
	}
	now := time.Now().UTC()
	stored.Status = model.StatusSent
	stored.SentAt = &now
	return nil
}

func (f *fakeNotificationRepo) MarkFailed(_ context.Context, notificationID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[notificationID]
	if !ok {
		return model.ErrNotificationNotFound
	}
	stored.Status = model.StatusFailed
	stored.Attempts++
	stored.LastError = lastError
	return nil
}

func (f *fakeNotificationRepo) ListRetryable(_ context.Context, limit int) ([]*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Notification
	for _, notification := range f.byID {
		if notification.CanRetry() {
			clone := *notification
			out = append(out, &clone)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) all() []*model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Notification, 0, len(f.byID))
	for _, notification := range f.byID {
		clone := *notification
		out = append(out, &clone)
	}
	return out
}

type fakeMerchantRepo struct {
	contactEmail string
}

func (f *fakeMerchantRepo) GetByID(_ context.Context, merchantID string) (*merchantmodel.Merchant, error) {
	return &merchantmodel.Merchant{
		ID:           merchantID,
		Status:       merchantmodel.MerchantStatusActive,
		ContactEmail: f.contactEmail,
	}, nil
}

func (f *fakeMerchantRepo) GetHierarchy(_ context.Context, merchantID string) (*merchantmodel.Hierarchy, error) {
	return &merchantmodel.Hierarchy{MerchantID: merchantID}, nil
}

func (f *fakeMerchantRepo) CreditBalance(context.Context, string, int64, string, string) (string, error) {
	return "", nil
}

func (f *fakeMerchantRepo) DebitBalance(context.Context, string, int64, string, string) (string, error) {
	return "", nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeEmail struct {
	mu   sync.Mutex
	fail error
	sent []sentMail
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

// =====================================================
// DISPATCH
// =====================================================

func payload(event shared.EventKind) refundmodel.NotifyPayload {
	return refundmodel.NotifyPayload{
		Event:      string(event),
		RefundID:   "r-1",
		MerchantID: "M1",
	}
}

func TestDispatchSendsAndRecords(t *testing.T) {
	repo := newFakeNotificationRepo()
	mail := &fakeEmail{}
	svc := NewNotificationService(repo, &fakeMerchantRepo{contactEmail: "ops@merchant.example"}, mail)

	require.NoError(t, svc.Dispatch(context.Background(), payload(shared.EventRefundCompleted)))

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "ops@merchant.example", mail.sent[0].To)
	assert.Equal(t, "Refund completed", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].Body, "r-1")

	rows := repo.all()
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusSent, rows[0].Status)
	assert.NotNil(t, rows[0].SentAt)
}

func TestDispatchNoContactEmailDropsQuietly(t *testing.T) {
	repo := newFakeNotificationRepo()
	mail := &fakeEmail{}
	svc := NewNotificationService(repo, &fakeMerchantRepo{}, mail)

	require.NoError(t, svc.Dispatch(context.Background(), payload(shared.EventRefundCompleted)))
	assert.Empty(t, mail.sent)
	assert.Empty(t, repo.all())
}

func TestDispatchUnknownEventNotRetried(t *testing.T) {
	repo := newFakeNotificationRepo()
	mail := &fakeEmail{}
	svc := NewNotificationService(repo, &fakeMerchantRepo{contactEmail: "ops@merchant.example"}, mail)

	p := payload(shared.EventRefundCompleted)
	p.Event = "refund.exploded"

	assert.NoError(t, svc.Dispatch(context.Background(), p), "unknown events are dropped, not retried")
	assert.Empty(t, mail.sent)
}

func TestDispatchDeliveryFailureRecorded(t *testing.T) {
	repo := newFakeNotificationRepo()
	mail := &fakeEmail{fail: errors.New("relay refused connection")}
	svc := NewNotificationService(repo, &fakeMerchantRepo{contactEmail: "ops@merchant.example"}, mail)

	err := svc.Dispatch(context.Background(), payload(shared.EventRefundFailed))
	require.Error(t, err, "delivery failure propagates so the task retries")

	rows := repo.all()
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusFailed, rows[0].Status)
	assert.Equal(t, 1, rows[0].Attempts)
	assert.Equal(t, "relay refused connection", rows[0].LastError)
}

// =====================================================
// RETRY
// =====================================================

func TestRetryFailedRedelivers(t *testing.T) {
	repo := newFakeNotificationRepo()
	mail := &fakeEmail{fail: errors.New("relay down")}
	svc := NewNotificationService(repo, &fakeMerchantRepo{contactEmail: "ops@merchant.example"}, mail)

	_ = svc.Dispatch(context.Background(), payload(shared.EventRefundCompleted))

	mail.fail = nil
	retried, err := svc.RetryFailed(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, retried)

	rows := repo.all()
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusSent, rows[0].Status)
}

func TestRetrySkipsExhaustedNotifications(t *testing.T) {
	repo := newFakeNotificationRepo()
	exhausted := &model.Notification{
		ID:       "n-1",
		Status:   model.StatusFailed,
		Attempts: model.MaxSendAttempts,
	}
	require.NoError(t, repo.Create(context.Background(), exhausted))

	mail := &fakeEmail{}
	svc := NewNotificationService(repo, &fakeMerchantRepo{contactEmail: "ops@merchant.example"}, mail)

	retried, err := svc.RetryFailed(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, retried)
	assert.Empty(t, mail.sent)
}

// =====================================================
// TEMPLATES
// =====================================================

func TestRenderMessageInterpolatesData(t *testing.T) {
	subject, body, err := renderMessage(shared.EventRefundFailed, templateData{
		RefundID: "r-1",
		Data:     map[string]interface{}{"error_code": "HTTP_503"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Refund failed", subject)
	assert.Contains(t, body, "r-1")
	assert.Contains(t, body, "code HTTP_503")
}

func TestRenderMessageOmitsMissingData(t *testing.T) {
	_, body, err := renderMessage(shared.EventRefundCanceled, templateData{RefundID: "r-1"})
	require.NoError(t, err)
	assert.NotContains(t, body, ":")
}

func TestRenderMessageUnknownEvent(t *testing.T) {
	_, _, err := renderMessage(shared.EventKind("refund.exploded"), templateData{})
	assert.Error(t, err)
}

func TestEveryEventHasTemplate(t *testing.T) {
	for _, event := range []shared.EventKind{
		shared.EventRefundCompleted,
		shared.EventRefundFailed,
		shared.EventRefundRejected,
		shared.EventRefundCanceled,
		shared.EventApprovalRequested,
		shared.EventApprovalEscalated,
	} {
		_, _, err := renderMessage(event, templateData{RefundID: "r-1"})
		assert.NoError(t, err, string(event))
	}
}
