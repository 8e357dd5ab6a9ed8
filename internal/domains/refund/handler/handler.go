package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"refunds-backend/internal/domains/refund/model"
	"refunds-backend/internal/domains/refund/service"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/internal/shared/response"
)

type RefundHandler struct {
	service service.RefundService
}

func NewRefundHandler(service service.RefundService) *RefundHandler {
	return &RefundHandler{
		service: service,
	}
}

// CreateRefund handles POST /refunds
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	if merchantID == "" {
		response.Unauthorized(c, "Merchant context required")
		return
	}

	var req model.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}
	// Header takes precedence over the body field.
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.service.Create(c.Request.Context(), merchantID, &req)
	if err != nil {
		writeRefundError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// GetRefund handles GET /refunds/:id
func (h *RefundHandler) GetRefund(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	result, err := h.service.GetByID(c.Request.Context(), merchantID, c.Param("id"))
	if err != nil {
		writeRefundError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListRefunds handles GET /refunds
func (h *RefundHandler) ListRefunds(c *gin.Context) {
	var filter model.ListRefundsRequest
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	// Merchants only see their own refunds; back-office roles may filter
	// across merchants.
	if merchantID := c.GetString(middleware.ContextMerchantID); merchantID != "" {
		filter.MerchantID = merchantID
	}

	results, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		writeRefundError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, results,
		response.NewMeta(int(total), filter.Page, filter.PageSize))
}

// UpdateRefund handles PUT /refunds/:id
func (h *RefundHandler) UpdateRefund(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	if merchantID == "" {
		response.Unauthorized(c, "Merchant context required")
		return
	}

	var req model.UpdateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}

	result, err := h.service.Update(c.Request.Context(), merchantID, c.Param("id"), &req)
	if err != nil {
		writeRefundError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// CancelRefund handles PUT /refunds/:id/cancel
func (h *RefundHandler) CancelRefund(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	if merchantID == "" {
		response.Unauthorized(c, "Merchant context required")
		return
	}

	var req model.CancelRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), merchantID, c.Param("id"), "merchant:"+merchantID, &req)
	if err != nil {
		writeRefundError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetStatistics handles GET /refunds/statistics
func (h *RefundHandler) GetStatistics(c *gin.Context) {
	var req model.StatisticsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	if merchantID := c.GetString(middleware.ContextMerchantID); merchantID != "" {
		req.MerchantID = merchantID
	}

	result, err := h.service.Statistics(c.Request.Context(), req)
	if err != nil {
		writeRefundError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// writeRefundError renders domain errors; validation failures carry the
// full per-field detail.
func writeRefundError(c *gin.Context, err error) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		response.UnprocessableEntity(c, model.ErrCodeValidationFailed,
			"Refund request failed validation", validationErr.Fields)
		return
	}

	statusCode, message, code := model.GetErrorResponse(err)
	response.ErrorResponse(c, statusCode, code, message)
}
