// Package runs submits harmonisation runs and answers status queries.
// Execution itself belongs to the engine; this service owns run ids,
// persistence of the initial graph, and the surfaced status view.
package runs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/engine"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
)

type Service struct {
	runs   repo.RunRepository
	tasks  repo.TaskRepository
	engine *engine.Engine
	logger *slog.Logger
	now    func() time.Time
}

func New(runRepo repo.RunRepository, taskRepo repo.TaskRepository, eng *engine.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runs:   runRepo,
		tasks:  taskRepo,
		engine: eng,
		logger: logger,
		now:    time.Now,
	}
}

// RunStatus is the surfaced view of a run and its task graph. Pending
// tasks report as running while the run is live, so only the four
// terminal-adjacent statuses ever leave the service.
type RunStatus struct {
	Run   domain.Run
	Tasks []domain.TaskNode
}

// Submit validates the configuration, persists the run with its
// materialised task graph, and launches execution asynchronously.
func (s *Service) Submit(ctx context.Context, cfg domain.RunConfig) (domain.Run, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Run{}, err
	}
	run := domain.Run{
		ID:        uuid.NewString(),
		Config:    cfg,
		Status:    domain.RunStatusRunning,
		StartedAt: s.now().UTC(),
	}
	nodes, err := engine.BuildPlan(run)
	if err != nil {
		return domain.Run{}, err
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return domain.Run{}, fmt.Errorf("create run: %w", err)
	}
	if err := s.tasks.CreateTasks(ctx, nodes); err != nil {
		return domain.Run{}, fmt.Errorf("create tasks: %w", err)
	}

	go func() {
		// The run outlives the submitting request.
		if err := s.engine.Execute(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Error("run execution ended with failure",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()))
		}
	}()

	s.logger.InfoContext(ctx, "run submitted",
		slog.String("run_id", run.ID),
		slog.String("name", cfg.Name))
	return run, nil
}

// GetStatus returns the run and its task graph. While the run is still
// running, pending tasks are reported as running.
func (s *Service) GetStatus(ctx context.Context, runID string) (RunStatus, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return RunStatus{}, err
	}
	nodes, err := s.tasks.ListTasks(ctx, runID)
	if err != nil {
		return RunStatus{}, err
	}
	if run.Status == domain.RunStatusRunning {
		for i := range nodes {
			if nodes[i].Status == domain.TaskStatusPending {
				nodes[i].Status = domain.TaskStatusRunning
			}
		}
	}
	return RunStatus{Run: run, Tasks: nodes}, nil
}

// Rerun submits the stored configuration of an existing run as a new,
// independent run.
func (s *Service) Rerun(ctx context.Context, runID string) (domain.Run, error) {
	original, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return domain.Run{}, err
	}
	return s.Submit(ctx, original.Config)
}

// Cancel aborts an in-flight run. Unknown runs return NotFound;
// already-terminal runs are left untouched.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}
	if !s.engine.Cancel(runID) {
		// Not in flight in this process: sweep it terminal directly.
		return s.engine.Recover(ctx)
	}
	return nil
}

// List returns runs matching the filter, most recent first.
func (s *Service) List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	return s.runs.ListRuns(ctx, filter)
}
