package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"refunds-backend/internal/shared"
)

type correlationKey struct{}

// Correlation accepts X-Correlation-ID (or generates one), stores it on the
// gin context and the request context, and echoes it back in the response.
// Queue payloads copy it from here so a refund can be traced across the
// API, the workers, and gateway calls.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(shared.CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.Set(shared.CorrelationIDKey, correlationID)
		c.Writer.Header().Set(shared.CorrelationIDHeader, correlationID)

		ctx := WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// WithCorrelationID attaches a correlation id to a context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID reads the correlation id off a context, or "" if absent.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}
