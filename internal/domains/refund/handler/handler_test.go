package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/domains/refund/service"
	"refunds-backend/internal/shared/middleware"
)

// stubCancelService captures cancel calls; everything else panics if the
// handler ever calls it.
type stubCancelService struct {
	service.RefundService

	merchantID string
	refundID   string
	actor      string
	reason     string
}

func (s *stubCancelService) Cancel(_ context.Context, merchantID, refundID, actor string, req *model.CancelRefundRequest) (*model.RefundRequest, error) {
	s.merchantID = merchantID
	s.refundID = refundID
	s.actor = actor
	s.reason = req.Reason
	return &model.RefundRequest{ID: refundID, MerchantID: merchantID, Status: model.StatusCanceled}, nil
}

// newRefundRouter mounts the refund routes the way the API does, with
// the merchant identity injected in place of the auth middleware.
func newRefundRouter(svc service.RefundService, merchantID string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := NewRefundHandler(svc)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if merchantID != "" {
			c.Set(middleware.ContextMerchantID, merchantID)
		}
	})
	router.PUT("/refunds/:id/cancel", handler.CancelRefund)
	return router
}

func TestCancelRefundIsMountedAsPut(t *testing.T) {
	svc := &stubCancelService{}
	router := newRefundRouter(svc, "m-1")

	body, err := json.Marshal(map[string]string{"reason": "customer changed their mind"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/refunds/r-1/cancel", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m-1", svc.merchantID)
	assert.Equal(t, "r-1", svc.refundID)
	assert.Equal(t, "merchant:m-1", svc.actor)
	assert.Equal(t, "customer changed their mind", svc.reason)

	// POST is not part of the cancel contract.
	req = httptest.NewRequest(http.MethodPost, "/refunds/r-1/cancel", bytes.NewBufferString(`{"reason":"x"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRefundRequiresMerchantContext(t *testing.T) {
	svc := &stubCancelService{}
	router := newRefundRouter(svc, "")

	req := httptest.NewRequest(http.MethodPut, "/refunds/r-1/cancel", bytes.NewBufferString(`{"reason":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.refundID, "service must not be reached without a merchant")
}
