package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/align"
	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/ingest"
	"github.com/harmonia-labs/harmonia-go/internal/ledger"
	"github.com/harmonia-labs/harmonia-go/internal/platform/env"
	"github.com/harmonia-labs/harmonia-go/internal/platform/objectstore"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
	"github.com/harmonia-labs/harmonia-go/internal/schemas"
)

// Config bounds the engine's in-process scheduling. Concurrency stays
// small because process tasks fan out into external resolver and
// context-extraction calls.
type Config struct {
	Concurrency int
	Retries     int
}

func ConfigFromEnv() (Config, error) {
	concurrency, err := env.Int("ENGINE_WORKER_CONCURRENCY", 2)
	if err != nil {
		return Config{}, err
	}
	retries, err := env.Int("ENGINE_TASK_RETRIES", 0)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{Concurrency: concurrency, Retries: retries}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: worker concurrency must be at least 1", domain.ErrInvalidConfig)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: task retries cannot be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// Engine executes run task graphs with a bounded worker pool.
type Engine struct {
	cfg      Config
	runs     repo.RunRepository
	tasks    repo.TaskRepository
	ledger   *ledger.Ledger
	registry *schemas.Registry
	aligner  *align.Aligner
	fetcher  *ingest.Fetcher
	store    objectstore.Store
	buckets  objectstore.Config
	logger   *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(cfg Config, runs repo.RunRepository, tasks repo.TaskRepository, led *ledger.Ledger, registry *schemas.Registry, aligner *align.Aligner, fetcher *ingest.Fetcher, store objectstore.Store, buckets objectstore.Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		runs:     runs,
		tasks:    tasks,
		ledger:   led,
		registry: registry,
		aligner:  aligner,
		fetcher:  fetcher,
		store:    store,
		buckets:  buckets,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}, nil
}

// Execute runs the graph to completion and commits the derived run
// status. It blocks until every node is terminal; callers launch it on
// its own goroutine.
func (e *Engine) Execute(ctx context.Context, run domain.Run) error {
	ctx, cancel := context.WithCancel(ctx)
	e.registerCancel(run.ID, cancel)
	defer e.unregisterCancel(run.ID)
	defer cancel()

	nodes, err := e.tasks.ListTasks(ctx, run.ID)
	if err != nil {
		return e.abortRun(run.ID, fmt.Errorf("load tasks: %w", err))
	}
	if _, err := TopoOrder(nodes); err != nil {
		return e.abortRun(run.ID, err)
	}

	e.logger.InfoContext(ctx, "run started",
		slog.String("run_id", run.ID),
		slog.Int("tasks", len(nodes)),
		slog.Int("concurrency", e.cfg.Concurrency))

	final := e.schedule(ctx, run, nodes)

	status := DeriveRunStatus(final)
	if status == domain.RunStatusRunning {
		// Cancellation can leave nodes mid-flight; anything not
		// terminal at this point counts as skipped.
		status = domain.RunStatusFailed
	}
	now := time.Now().UTC()
	if err := e.runs.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, status, &now); err != nil {
		return fmt.Errorf("commit run status: %w", err)
	}
	e.logger.InfoContext(ctx, "run finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(status)))
	if status == domain.RunStatusFailed {
		return fmt.Errorf("run %s failed", run.ID)
	}
	return nil
}

// Cancel aborts a run launched through Execute. It reports whether the
// run was in flight.
func (e *Engine) Cancel(runID string) bool {
	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Recover sweeps runs left in the running state by a previous process:
// their non-terminal tasks are marked skipped and the run failed, so
// status queries see a consistent terminal view. Execution does not
// resume.
func (e *Engine) Recover(ctx context.Context) error {
	stale, err := e.runs.ListRuns(ctx, repo.RunFilter{Status: domain.RunStatusRunning})
	if err != nil {
		return fmt.Errorf("list running runs: %w", err)
	}
	for _, run := range stale {
		if e.inFlight(run.ID) {
			continue
		}
		nodes, err := e.tasks.ListTasks(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("load tasks for %s: %w", run.ID, err)
		}
		for _, node := range nodes {
			if node.Status.Terminal() {
				continue
			}
			node.Status = domain.TaskStatusSkipped
			node.Logs = append(node.Logs, "skipped: interrupted by process restart")
			if err := e.tasks.UpdateTask(ctx, node); err != nil {
				return fmt.Errorf("skip task %s: %w", node.ID, err)
			}
		}
		now := time.Now().UTC()
		if err := e.runs.UpdateRunStatus(ctx, run.ID, domain.RunStatusFailed, &now); err != nil {
			return fmt.Errorf("fail run %s: %w", run.ID, err)
		}
		e.logger.InfoContext(ctx, "recovered interrupted run", slog.String("run_id", run.ID))
	}
	return nil
}

type taskResult struct {
	node domain.TaskNode
	err  error
}

// schedule drives the worker pool until every node is terminal or the
// context is cancelled. It returns the final node set.
func (e *Engine) schedule(ctx context.Context, run domain.Run, nodes []domain.TaskNode) []domain.TaskNode {
	byID := make(map[string]*domain.TaskNode, len(nodes))
	order := make([]string, 0, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
		order = append(order, nodes[i].ID)
	}

	st := newRunState()
	results := make(chan taskResult)
	inFlight := 0
	cancelled := false

	for {
		if !cancelled {
			select {
			case <-ctx.Done():
				cancelled = true
			default:
			}
		}

		progressed := true
		for progressed && !cancelled {
			progressed = false
			for _, id := range order {
				node := byID[id]
				if node.Status != domain.TaskStatusPending {
					continue
				}
				ready, blocked := upstreamState(node, byID)
				switch {
				case blocked:
					node.Status = domain.TaskStatusSkipped
					node.Logs = append(node.Logs, "skipped: upstream task did not succeed")
					e.persistTask(ctx, *node)
					progressed = true
				case ready && inFlight < e.cfg.Concurrency:
					node.Status = domain.TaskStatusRunning
					e.persistTask(ctx, *node)
					inFlight++
					go e.worker(ctx, run, *node, st, results)
					progressed = true
				}
			}
		}

		if inFlight == 0 {
			break
		}
		res := <-results
		inFlight--
		finished := byID[res.node.ID]
		*finished = res.node
		e.persistTask(ctx, *finished)
	}

	if cancelled {
		for _, id := range order {
			node := byID[id]
			if node.Status.Terminal() {
				continue
			}
			node.Status = domain.TaskStatusSkipped
			node.Logs = append(node.Logs, "skipped: run cancelled")
			e.persistTask(ctx, *node)
		}
	}

	out := make([]domain.TaskNode, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// worker executes one node, retrying failures up to the configured
// retry count.
func (e *Engine) worker(ctx context.Context, run domain.Run, node domain.TaskNode, st *runState, results chan<- taskResult) {
	started := time.Now()
	var err error
	for attempt := 0; attempt <= e.cfg.Retries; attempt++ {
		if attempt > 0 {
			node.Logs = append(node.Logs, fmt.Sprintf("retrying after failure (attempt %d)", attempt+1))
		}
		err = e.runTask(ctx, run, &node, st)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	node.Duration = time.Since(started).Seconds()
	if err != nil {
		node.Status = domain.TaskStatusFailed
		node.Logs = append(node.Logs, "error: "+err.Error())
		e.logger.ErrorContext(ctx, "task failed",
			slog.String("run_id", run.ID),
			slog.String("task", node.Name),
			slog.String("error", err.Error()))
	} else {
		node.Status = domain.TaskStatusSuccess
	}
	results <- taskResult{node: node, err: err}
}

// upstreamState reports whether a node is ready to run (all upstream
// succeeded) or blocked (some upstream failed or was skipped).
func upstreamState(node *domain.TaskNode, byID map[string]*domain.TaskNode) (ready, blocked bool) {
	ready = true
	for _, up := range node.UpstreamIDs {
		upstream, ok := byID[up]
		if !ok {
			return false, true
		}
		switch upstream.Status {
		case domain.TaskStatusFailed, domain.TaskStatusSkipped:
			return false, true
		case domain.TaskStatusSuccess:
		default:
			ready = false
		}
	}
	return ready, false
}

func (e *Engine) persistTask(ctx context.Context, node domain.TaskNode) {
	if err := e.tasks.UpdateTask(context.WithoutCancel(ctx), node); err != nil {
		e.logger.ErrorContext(ctx, "persist task status",
			slog.String("task_id", node.ID),
			slog.String("error", err.Error()))
	}
}

func (e *Engine) abortRun(runID string, cause error) error {
	now := time.Now().UTC()
	if err := e.runs.UpdateRunStatus(context.Background(), runID, domain.RunStatusFailed, &now); err != nil {
		return fmt.Errorf("abort run %s: %w (after %w)", runID, err, cause)
	}
	return cause
}

func (e *Engine) registerCancel(runID string, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels[runID] = cancel
}

func (e *Engine) unregisterCancel(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cancels, runID)
}

func (e *Engine) inFlight(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.cancels[runID]
	return ok
}
