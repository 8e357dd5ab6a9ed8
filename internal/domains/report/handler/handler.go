package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"refunds-backend/internal/domains/report/model"
	"refunds-backend/internal/domains/report/service"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/internal/shared/response"
)

type ReportHandler struct {
	service service.ReportService
}

func NewReportHandler(service service.ReportService) *ReportHandler {
	return &ReportHandler{
		service: service,
	}
}

// GenerateReport handles POST /reports
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	merchantID := c.GetString(middleware.ContextMerchantID)
	if merchantID == "" {
		response.Unauthorized(c, "Merchant context required")
		return
	}

	var req model.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}

	result, err := h.service.Generate(c.Request.Context(), merchantID, &req)
	if err != nil {
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalServerError(c, "Report generation failed")
		return
	}

	response.Success(c, http.StatusCreated, result)
}
