package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"refunds-backend/internal/gateway"
	"refunds-backend/internal/shared/response"
	"refunds-backend/pkg/logger"
)

// UpsertCredentialsRequest carries a merchant's API credentials for one
// gateway. Values are write-only; nothing ever echoes them back.
type UpsertCredentialsRequest struct {
	APIKey          string `json:"api_key"`
	APISecret       string `json:"api_secret"`
	MerchantAccount string `json:"merchant_account"`
	WebhookSecret   string `json:"webhook_secret"`
}

func (r UpsertCredentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.APIKey, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.APISecret, validation.Length(0, 512)),
		validation.Field(&r.MerchantAccount, validation.Length(0, 256)),
		validation.Field(&r.WebhookSecret, validation.Length(0, 512)),
	)
}

// CredentialHandler provisions and rotates per-merchant gateway
// credentials through the envelope-encrypted secret store.
type CredentialHandler struct {
	credentials *gateway.CredentialManager
	registry    *gateway.Registry
}

func NewCredentialHandler(credentials *gateway.CredentialManager, registry *gateway.Registry) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		registry:    registry,
	}
}

// UpsertCredentials handles PUT /merchants/:id/gateways/:gateway/credentials
func (h *CredentialHandler) UpsertCredentials(c *gin.Context) {
	merchantID := c.Param("id")
	gatewayType := strings.ToUpper(c.Param("gateway"))

	if _, err := h.registry.Get(gatewayType); err != nil {
		response.NotFound(c, "Unknown gateway")
		return
	}

	var req UpsertCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request payload")
		return
	}
	if err := req.Validate(); err != nil {
		response.UnprocessableEntity(c, "VALIDATION_FAILED", "Invalid credentials payload", err)
		return
	}

	err := h.credentials.Put(c.Request.Context(), gatewayType, merchantID, gateway.Credentials{
		APIKey:          req.APIKey,
		APISecret:       req.APISecret,
		MerchantAccount: req.MerchantAccount,
		WebhookSecret:   req.WebhookSecret,
	})
	if err != nil {
		logger.ErrorWithFields("failed to store gateway credentials", err, map[string]interface{}{
			"merchant_id": merchantID,
			"gateway":     gatewayType,
		})
		response.InternalServerError(c, "Failed to store credentials")
		return
	}

	logger.Info("gateway credentials updated", map[string]interface{}{
		"merchant_id": merchantID,
		"gateway":     gatewayType,
	})
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
