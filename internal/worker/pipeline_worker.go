package worker

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/makeasinger/producer/internal/service"
)

// PipelineWorker dispatches the durable pipeline tasks to the services.
// Handlers return an error only for store failures worth an asynq retry;
// domain failures (a failed production, a skipped song) are persisted
// state, not task errors.
type PipelineWorker struct {
	planner      *service.Planner
	orchestrator *service.Orchestrator
	recovery     *service.Recovery
}

// NewPipelineWorker creates the task handler set for the pipeline queue.
func NewPipelineWorker(planner *service.Planner, orchestrator *service.Orchestrator, recovery *service.Recovery) *PipelineWorker {
	return &PipelineWorker{
		planner:      planner,
		orchestrator: orchestrator,
		recovery:     recovery,
	}
}

// ProcessPlanTask handles production planning tasks.
func (w *PipelineWorker) ProcessPlanTask(ctx context.Context, t *asynq.Task) error {
	productionID, err := service.ProductionIDFromTask(t)
	if err != nil {
		return err
	}
	log.Printf("Starting plan task: production %s", productionID)
	return w.planner.Plan(ctx, productionID)
}

// ProcessRunTask handles orchestrator run tasks.
func (w *PipelineWorker) ProcessRunTask(ctx context.Context, t *asynq.Task) error {
	productionID, err := service.ProductionIDFromTask(t)
	if err != nil {
		return err
	}
	log.Printf("Starting run task: production %s", productionID)
	return w.orchestrator.Run(ctx, productionID)
}

// ProcessRecoverTask handles the periodic reconciliation task.
func (w *PipelineWorker) ProcessRecoverTask(ctx context.Context, t *asynq.Task) error {
	return w.recovery.Run(ctx)
}
