package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"refunds-backend/internal/domains/refund/service"
	"refunds-backend/internal/gateway"
	"refunds-backend/internal/shared/response"
	"refunds-backend/pkg/logger"
)

// WebhookHandler terminates gateway callbacks. Signatures are verified
// over the raw body before anything is parsed; an invalid signature is
// a hard 401 so the gateway retries against a healthy node.
type WebhookHandler struct {
	registry      *gateway.Registry
	refundService service.RefundService
	// secrets maps gateway type to its platform webhook secret.
	secrets map[string]string
}

func NewWebhookHandler(registry *gateway.Registry, refundService service.RefundService, secrets map[string]string) *WebhookHandler {
	return &WebhookHandler{
		registry:      registry,
		refundService: refundService,
		secrets:       secrets,
	}
}

// signatureHeader returns the header carrying the signature for a
// gateway. Adyen embeds per-item signatures in the body instead.
func signatureHeader(gatewayType string) string {
	switch gatewayType {
	case gateway.TypeStripe:
		return "Stripe-Signature"
	case gateway.TypeBraintree:
		return "Bt-Signature"
	default:
		return ""
	}
}

// HandleWebhook handles POST /webhooks/:gateway
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	gatewayType := strings.ToUpper(c.Param("gateway"))

	adapter, err := h.registry.Get(gatewayType)
	if err != nil {
		response.NotFound(c, "Unknown gateway")
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "Unreadable request body")
		return
	}

	signature := ""
	if header := signatureHeader(gatewayType); header != "" {
		signature = c.GetHeader(header)
	}

	if !adapter.ValidateWebhookSignature(payload, signature, h.secrets[gatewayType]) {
		logger.Warn("webhook signature rejected", map[string]interface{}{
			"gateway": gatewayType,
		})
		response.Unauthorized(c, "Invalid webhook signature")
		return
	}

	events, err := adapter.ParseWebhookEvent(payload)
	if err != nil {
		response.BadRequest(c, "Malformed webhook payload")
		return
	}

	for _, event := range events {
		if err := h.refundService.ProcessWebhookEvent(c.Request.Context(), gatewayType, event); err != nil {
			logger.ErrorWithFields("webhook event processing failed", err, map[string]interface{}{
				"gateway":  gatewayType,
				"event_id": event.EventID,
			})
			// A 5xx makes the gateway redeliver; dedup absorbs the replay
			// of any events that did land.
			response.InternalServerError(c, "Event processing failed")
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{"received": true})
}
