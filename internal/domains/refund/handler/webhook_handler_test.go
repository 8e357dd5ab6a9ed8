package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refunds-backend/internal/domains/refund/service"
	"refunds-backend/internal/gateway"
	"refunds-backend/internal/gateway/gatewaytest"
)

// stubRefundService records webhook events; everything else panics if
// the handler ever calls it.
type stubRefundService struct {
	service.RefundService

	events []gateway.NormalizedEvent
	fail   error
}

func (s *stubRefundService) ProcessWebhookEvent(_ context.Context, _ string, event gateway.NormalizedEvent) error {
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, event)
	return nil
}

func newWebhookRouter(t *testing.T, adapter *gatewaytest.Adapter, svc service.RefundService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := gateway.NewRegistry()
	require.NoError(t, registry.Register(adapter))

	handler := NewWebhookHandler(registry, svc, map[string]string{
		gateway.TypeStripe: "whsec_test",
	})

	router := gin.New()
	router.POST("/webhooks/:gateway", handler.HandleWebhook)
	return router
}

func postWebhook(router *gin.Engine, path string, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"id":"evt_1"}`))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookDeliversEvents(t *testing.T) {
	adapter := gatewaytest.New(gateway.TypeStripe)
	adapter.Events = []gateway.NormalizedEvent{
		{EventID: "evt_1", GatewayRefundID: "re_9", Status: gateway.StatusCompleted, OccurredAt: time.Now().UTC()},
		{EventID: "evt_2", GatewayRefundID: "re_10", Status: gateway.StatusFailed, OccurredAt: time.Now().UTC()},
	}
	svc := &stubRefundService{}

	rec := postWebhook(newWebhookRouter(t, adapter, svc), "/webhooks/stripe", "t=1,v1=sig")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 2)
	assert.Equal(t, "evt_1", svc.events[0].EventID)
	assert.Equal(t, "evt_2", svc.events[1].EventID)
}

func TestWebhookLowercaseGatewayParam(t *testing.T) {
	adapter := gatewaytest.New(gateway.TypeStripe)
	svc := &stubRefundService{}

	rec := postWebhook(newWebhookRouter(t, adapter, svc), "/webhooks/Stripe", "t=1,v1=sig")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	adapter := gatewaytest.New(gateway.TypeStripe)
	adapter.SignatureValid = false
	svc := &stubRefundService{}

	rec := postWebhook(newWebhookRouter(t, adapter, svc), "/webhooks/stripe", "t=1,v1=bad")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.events, "nothing may be processed on a bad signature")
}

func TestWebhookUnknownGateway(t *testing.T) {
	adapter := gatewaytest.New(gateway.TypeStripe)
	svc := &stubRefundService{}

	rec := postWebhook(newWebhookRouter(t, adapter, svc), "/webhooks/paypal", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookProcessingFailureReturns500(t *testing.T) {
	adapter := gatewaytest.New(gateway.TypeStripe)
	adapter.Events = []gateway.NormalizedEvent{
		{EventID: "evt_1", GatewayRefundID: "re_9", Status: gateway.StatusCompleted},
	}
	svc := &stubRefundService{fail: errors.New("redis unavailable")}

	rec := postWebhook(newWebhookRouter(t, adapter, svc), "/webhooks/stripe", "t=1,v1=sig")

	// 5xx makes the gateway redeliver; dedup absorbs whatever landed.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
