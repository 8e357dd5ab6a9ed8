package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"refunds-backend/internal/domains/approval/model"
	"refunds-backend/internal/domains/approval/service"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/internal/shared/response"
	"refunds-backend/pkg/jwt"
)

type ApprovalHandler struct {
	service service.ApprovalService
}

func NewApprovalHandler(service service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{
		service: service,
	}
}

// GetApproval handles GET /approvals/:id
func (h *ApprovalHandler) GetApproval(c *gin.Context) {
	result, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		statusCode, message, code := model.GetErrorResponse(err)
		response.ErrorResponse(c, statusCode, code, message)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetApprovalForRefund handles GET /refunds/:id/approval
func (h *ApprovalHandler) GetApprovalForRefund(c *gin.Context) {
	result, err := h.service.GetByRefundID(c.Request.Context(), c.Param("id"))
	if err != nil {
		statusCode, message, code := model.GetErrorResponse(err)
		response.ErrorResponse(c, statusCode, code, message)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Decide handles POST /approvals/:id/decision
func (h *ApprovalHandler) Decide(c *gin.Context) {
	approver := ""
	if claims, ok := c.Get(middleware.ContextClaims); ok {
		approver = claims.(*jwt.Claims).Subject
	}
	authorityLevel := c.GetString(middleware.ContextAuthorityLevel)
	if authorityLevel == "" {
		response.Forbidden(c, "Approver authority required")
		return
	}

	var req model.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}

	result, err := h.service.Decide(c.Request.Context(), c.Param("id"), approver, authorityLevel, &req)
	if err != nil {
		statusCode, message, code := model.GetErrorResponse(err)
		response.ErrorResponse(c, statusCode, code, message)
		return
	}

	response.Success(c, http.StatusOK, result)
}
