package main

import (
	"log"

	"refunds-backend/internal/infrastructure/queue"
	"refunds-backend/internal/shared"
	"refunds-backend/pkg/container"
)

// notifyRetryEvery re-drives failed notification deliveries.
const notifyRetryEvery = "*/15 * * * *"

// asynqScheduler wraps queue.Scheduler with graceful shutdown
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler creates and configures the periodic task scheduler
func setupScheduler(c *container.Container) *asynqScheduler {
	cfg := c.Config
	scheduler := queue.NewScheduler(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)

	entries := []struct {
		cron     string
		taskType string
	}{
		{cfg.Worker.GatewaySweepEvery, shared.TypeGatewaySweep},
		{cfg.Worker.ApprovalTickEvery, shared.TypeApprovalTick},
		{notifyRetryEvery, shared.TypeNotifyRetry},
	}
	for _, entry := range entries {
		if err := scheduler.Register(entry.cron, entry.taskType); err != nil {
			log.Fatalf("[Scheduler] Failed to register %s: %v", entry.taskType, err)
		}
	}

	go func() {
		log.Println("[Scheduler] Starting...")
		if err := scheduler.Start(); err != nil {
			log.Fatalf("[Scheduler] Failed: %v", err)
		}
	}()

	return &asynqScheduler{Scheduler: scheduler}
}

// Shutdown gracefully shuts down the scheduler
func (s *asynqScheduler) Shutdown() {
	log.Println("[Scheduler] Shutting down...")
	s.Scheduler.Shutdown()
	log.Println("[Scheduler] Stopped")
}
