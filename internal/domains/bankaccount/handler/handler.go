package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"refunds-backend/internal/domains/bankaccount/model"
	"refunds-backend/internal/domains/bankaccount/service"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/internal/shared/response"
)

type BankAccountHandler struct {
	service service.BankAccountService
}

func NewBankAccountHandler(service service.BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{
		service: service,
	}
}

// CreateBankAccount handles POST /bank-accounts
func (h *BankAccountHandler) CreateBankAccount(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	if merchantID == "" {
		response.Unauthorized(c, "Merchant context required")
		return
	}

	var req model.CreateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}

	result, err := h.service.Create(c.Request.Context(), merchantID, &req)
	if err != nil {
		statusCode, message, code := model.GetErrorResponse(err)
		response.ErrorResponse(c, statusCode, code, message)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// ListBankAccounts handles GET /bank-accounts
func (h *BankAccountHandler) ListBankAccounts(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	if merchantID == "" {
		response.Unauthorized(c, "Merchant context required")
		return
	}

	results, err := h.service.List(c.Request.Context(), merchantID)
	if err != nil {
		statusCode, message, code := model.GetErrorResponse(err)
		response.ErrorResponse(c, statusCode, code, message)
		return
	}

	response.Success(c, http.StatusOK, results)
}

// GetBankAccount handles GET /bank-accounts/:id
func (h *BankAccountHandler) GetBankAccount(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	result, err := h.service.GetByID(c.Request.Context(), merchantID, c.Param("id"))
	if err != nil {
		statusCode, message, code := model.GetErrorResponse(err)
		response.ErrorResponse(c, statusCode, code, message)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// SetDefaultBankAccount handles PUT /bank-accounts/:id/default
func (h *BankAccountHandler) SetDefaultBankAccount(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	if err := h.service.SetDefault(c.Request.Context(), merchantID, c.Param("id")); err != nil {
		statusCode, message, code := model.GetErrorResponse(err)
		response.ErrorResponse(c, statusCode, code, message)
		return
	}

	response.Success(c, http.StatusOK, nil)
}

// UpdateVerification handles PUT /bank-accounts/:id/verification (admin)
func (h *BankAccountHandler) UpdateVerification(c *gin.Context) {
	var req model.UpdateVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.UpdateVerification(c.Request.Context(), c.Param("id"), req.VerificationStatus); err != nil {
		statusCode, message, code := model.GetErrorResponse(err)
		response.ErrorResponse(c, statusCode, code, message)
		return
	}

	response.Success(c, http.StatusOK, nil)
}
