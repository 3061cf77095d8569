package service

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types routed through the asynq queue. Planning and pipeline runs
// are durable tasks rather than fire-and-forget goroutines so a crash
// between enqueue and completion is retried, not lost.
const (
	TaskTypePlan    = "production:plan"
	TaskTypeRun     = "production:run"
	TaskTypeRecover = "production:recover"
)

// QueuePipeline is the asynq queue all production tasks run on.
const QueuePipeline = "pipeline"

type productionTaskPayload struct {
	ProductionID string `json:"productionId"`
}

// NewPlanTask creates the planning task for a production.
func NewPlanTask(productionID string) (*asynq.Task, error) {
	data, err := json.Marshal(productionTaskPayload{ProductionID: productionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePlan, data), nil
}

// NewRunTask creates the orchestrator run task for a production.
func NewRunTask(productionID string) (*asynq.Task, error) {
	data, err := json.Marshal(productionTaskPayload{ProductionID: productionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRun, data), nil
}

// NewRecoverTask creates the periodic reconciliation task.
func NewRecoverTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRecover, nil)
}

// ProductionIDFromTask extracts the production id from a task payload.
func ProductionIDFromTask(t *asynq.Task) (string, error) {
	var payload productionTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if payload.ProductionID == "" {
		return "", fmt.Errorf("task payload missing production id")
	}
	return payload.ProductionID, nil
}
