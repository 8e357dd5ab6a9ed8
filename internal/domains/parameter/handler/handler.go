package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"refunds-backend/internal/domains/parameter/model"
	"refunds-backend/internal/domains/parameter/service"
	"refunds-backend/internal/shared/middleware"
	"refunds-backend/internal/shared/response"
)

type ParameterHandler struct {
	service service.ParameterService
}

func NewParameterHandler(service service.ParameterService) *ParameterHandler {
	return &ParameterHandler{
		service: service,
	}
}

// authorityForEntityType maps hierarchy levels onto the minimum
// authority a caller needs to write at that level.
var authorityForEntityType = map[string]string{
	model.EntityTypeMerchant:     "MERCHANT_ADMIN",
	model.EntityTypeOrganization: "ORG_ADMIN",
	model.EntityTypeBank:         "BANK_ADMIN",
	model.EntityTypeProgram:      "PROGRAM_ADMIN",
}

var authorityRank = map[string]int{
	"MERCHANT_ADMIN": 1,
	"ORG_ADMIN":      2,
	"BANK_ADMIN":     3,
	"PROGRAM_ADMIN":  4,
}

// CreateParameter handles POST /parameters
func (h *ParameterHandler) CreateParameter(c *gin.Context) {
	var req model.CreateParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}

	authority := c.GetString(middleware.ContextAuthorityLevel)
	if !canWriteAt(authority, req.EntityType) {
		response.Forbidden(c, "Authority level cannot write at this hierarchy level")
		return
	}

	result, err := h.service.Create(c.Request.Context(), c.GetString(middleware.ContextMerchantID), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// ListParameters handles GET /parameters
func (h *ParameterHandler) ListParameters(c *gin.Context) {
	var req model.ListParametersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	results, total, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, results,
		response.NewMeta(int(total), req.Page, req.PageSize))
}

// ResolveParameter handles GET /parameters/resolve
func (h *ParameterHandler) ResolveParameter(c *gin.Context) {
	var req model.ResolveParameterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Resolve(c.Request.Context(), req.Name, req.MerchantID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListDefinitions handles GET /parameters/definitions
func (h *ParameterHandler) ListDefinitions(c *gin.Context) {
	response.Success(c, http.StatusOK, h.service.Definitions())
}

func (h *ParameterHandler) writeError(c *gin.Context, err error) {
	var unknownErr *model.UnknownParameterError
	var conflictErr *model.ConflictError

	switch {
	case errors.As(err, &unknownErr):
		response.ErrorResponse(c, http.StatusNotFound, model.ErrCodeParameterUnknown, unknownErr.Error())
	case errors.As(err, &conflictErr):
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeParameterConflict, conflictErr.Error())
	case errors.Is(err, model.ErrParameterNotFound):
		response.NotFound(c, "Parameter not found")
	default:
		response.UnprocessableEntity(c, model.ErrCodeParameterInvalid, err.Error(), nil)
	}
}

func canWriteAt(authority, entityType string) bool {
	required, ok := authorityForEntityType[entityType]
	if !ok {
		return false
	}
	return authorityRank[authority] >= authorityRank[required]
}
