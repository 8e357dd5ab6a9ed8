package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/hibiken/asynq"

	"refunds-backend/internal/shared"
	"refunds-backend/internal/shared/middleware"
)

// =====================================================
// QUEUE CLIENT
// =====================================================

// Envelope is the JSON message body shared by every task kind.
// GroupKey carries the refund id on gateway-facing tasks for log
// correlation; the refund lock serializes execution per refund.
type Envelope struct {
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotencyKey"`
	EnqueuedAt     time.Time       `json:"enqueuedAt"`
	GroupKey       string          `json:"groupKey,omitempty"`
	CorrelationID  string          `json:"correlationId,omitempty"`
}

// Client wraps the asynq producer so callers enqueue typed envelopes
// instead of raw tasks.
type Client struct {
	inner       *asynq.Client
	maxAttempts int
}

func NewClient(redisAddr, redisPassword string, redisDB, maxAttempts int) *Client {
	return &Client{
		inner: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}),
		maxAttempts: maxAttempts,
	}
}

// Enqueue wraps payload in an Envelope and submits it to queue.
// Options control delay and uniqueness per call site.
func (c *Client) Enqueue(ctx context.Context, taskType, queueName, groupKey, idempotencyKey string, payload interface{}, opts ...asynq.Option) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	env := Envelope{
		Type:           taskType,
		Payload:        raw,
		IdempotencyKey: idempotencyKey,
		EnqueuedAt:     time.Now().UTC(),
		GroupKey:       groupKey,
		CorrelationID:  middleware.CorrelationID(ctx),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", taskType, err)
	}

	options := append([]asynq.Option{
		asynq.Queue(queueName),
		asynq.MaxRetry(c.maxAttempts),
	}, opts...)

	task := asynq.NewTask(taskType, body)
	if _, err := c.inner.EnqueueContext(ctx, task, options...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	return nil
}

// EnqueueIn schedules a task after a delay (gateway status polls, retries).
func (c *Client) EnqueueIn(ctx context.Context, delay time.Duration, taskType, queueName, groupKey, idempotencyKey string, payload interface{}) error {
	return c.Enqueue(ctx, taskType, queueName, groupKey, idempotencyKey, payload, asynq.ProcessIn(delay))
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// DecodeEnvelope parses a task body back into the shared envelope.
func DecodeEnvelope(t *asynq.Task) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", t.Type(), err)
	}
	if env.Type == "" {
		env.Type = t.Type()
	}
	return &env, nil
}

// Backoff computes the retry delay for an attempt:
// initial * factor^attempt plus up to 20% jitter.
func Backoff(initial time.Duration, factor float64, attempt int) time.Duration {
	d := float64(initial)
	for i := 0; i < attempt; i++ {
		d *= factor
	}
	jitter := time.Duration(d * 0.2 * rand.Float64())
	return time.Duration(d) + jitter
}

// TaskQueueFor maps a task type to its queue.
func TaskQueueFor(taskType string) string {
	switch taskType {
	case shared.TypeProcessRefund, shared.TypeCheckGateway, shared.TypeGatewaySweep:
		return shared.QueueGateway
	case shared.TypeApprovalTick:
		return shared.QueueApproval
	default:
		return shared.QueueNotification
	}
}
