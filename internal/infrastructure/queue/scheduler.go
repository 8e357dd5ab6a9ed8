package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"refunds-backend/pkg/logger"
)

// =====================================================
// SCHEDULER
// =====================================================

// Scheduler owns the periodic tasks: gateway status sweeps, approval
// escalation ticks, and failed notification retries. Entries carry the
// same envelope shape as directly enqueued tasks so handlers decode
// them uniformly.
type Scheduler struct {
	inner *asynq.Scheduler
}

func NewScheduler(redisAddr, redisPassword string, redisDB int) *Scheduler {
	return &Scheduler{
		inner: asynq.NewScheduler(
			asynq.RedisClientOpt{
				Addr:     redisAddr,
				Password: redisPassword,
				DB:       redisDB,
			},
			&asynq.SchedulerOpts{
				Location: time.UTC,
			},
		),
	}
}

// Register adds a cron entry for taskType. Periodic tasks have no
// per-call payload; the task type alone tells the handler what to do.
func (s *Scheduler) Register(cronSpec, taskType string) error {
	env := Envelope{
		Type:           taskType,
		Payload:        json.RawMessage(`{}`),
		IdempotencyKey: taskType,
		EnqueuedAt:     time.Now().UTC(),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", taskType, err)
	}

	entryID, err := s.inner.Register(cronSpec, asynq.NewTask(taskType, body),
		asynq.Queue(TaskQueueFor(taskType)))
	if err != nil {
		return fmt.Errorf("register %s: %w", taskType, err)
	}

	logger.Info("scheduled periodic task", map[string]interface{}{
		"task_type": taskType,
		"cron":      cronSpec,
		"entry_id":  entryID,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.inner.Start()
}

func (s *Scheduler) Shutdown() {
	s.inner.Shutdown()
}
