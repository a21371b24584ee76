// Package memory provides in-process repository implementations used by
// tests and the memory-backed demo mode. Postgres is the production
// store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
)

type Store struct {
	mu          sync.RWMutex
	runs        map[string]domain.Run
	runOrder    []string
	tasks       map[string][]domain.TaskNode
	decisions   map[string][]domain.Decision
	schemas     map[string]domain.Schema
	schemaOrder []string
	entities    []domain.Entity
	corrections []repo.CorrectionEvent
}

func NewStore() *Store {
	return &Store{
		runs:      map[string]domain.Run{},
		tasks:     map[string][]domain.TaskNode{},
		decisions: map[string][]domain.Decision{},
		schemas:   map[string]domain.Schema{},
	}
}

func (s *Store) CreateRun(ctx context.Context, run domain.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	s.runOrder = append(s.runOrder, run.ID)
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.Run{}, fmt.Errorf("%w: run %s", domain.ErrNotFound, id)
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Run, 0, len(s.runOrder))
	for _, id := range s.runOrder {
		run := s.runs[id]
		if filter.UserID != "" && run.Config.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UpdateRunStatus(ctx context.Context, id string, status domain.RunStatus, endedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: run %s", domain.ErrNotFound, id)
	}
	run.Status = status
	run.EndedAt = endedAt
	s.runs[id] = run
	return nil
}

func (s *Store) CreateTasks(ctx context.Context, tasks []domain.TaskNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			return err
		}
		s.tasks[task.RunID] = append(s.tasks[task.RunID], task)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, runID string) ([]domain.TaskNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := s.tasks[runID]
	out := make([]domain.TaskNode, len(tasks))
	copy(out, tasks)
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, task domain.TaskNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.tasks[task.RunID]
	for i := range tasks {
		if tasks[i].ID != task.ID {
			continue
		}
		// The task lifecycle is monotonic; reject backward writes.
		if from := tasks[i].Status; from != task.Status && !domain.CanTransitionTaskStatus(from, task.Status) {
			return fmt.Errorf("%w: task %s cannot move %s -> %s", domain.ErrInternalInconsistency, task.ID, from, task.Status)
		}
		tasks[i] = task
		return nil
	}
	return fmt.Errorf("%w: task %s in run %s", domain.ErrNotFound, task.ID, task.RunID)
}

func (s *Store) AppendDecision(ctx context.Context, decision domain.Decision) error {
	if err := decision.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[decision.RunID] = append(s.decisions[decision.RunID], decision)
	return nil
}

func (s *Store) UpdateDecision(ctx context.Context, decision domain.Decision) error {
	if err := decision.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.decisions[decision.RunID]
	for i := range list {
		if list[i].ID == decision.ID {
			list[i] = decision
			return nil
		}
	}
	return fmt.Errorf("%w: decision %s in run %s", domain.ErrNotFound, decision.ID, decision.RunID)
}

func (s *Store) ListDecisions(ctx context.Context, runID string) ([]domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.decisions[runID]
	out := make([]domain.Decision, len(list))
	copy(out, list)
	return out, nil
}

func (s *Store) CreateSchema(ctx context.Context, schema domain.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schemas[schema.Name]; exists {
		return fmt.Errorf("%w: schema %s", domain.ErrDuplicateName, schema.Name)
	}
	s.schemas[schema.Name] = schema
	s.schemaOrder = append(s.schemaOrder, schema.Name)
	return nil
}

func (s *Store) GetSchema(ctx context.Context, name string) (domain.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.schemas[name]
	if !ok {
		return domain.Schema{}, fmt.Errorf("%w: schema %s", domain.ErrNotFound, name)
	}
	return schema, nil
}

func (s *Store) ListSchemas(ctx context.Context) ([]domain.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Schema, 0, len(s.schemaOrder))
	for _, name := range s.schemaOrder {
		out = append(out, s.schemas[name])
	}
	return out, nil
}

func (s *Store) ListEntities(ctx context.Context) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entity, len(s.entities))
	copy(out, s.entities)
	return out, nil
}

func (s *Store) InsertEntities(ctx context.Context, entities []domain.Entity) error {
	for _, entity := range entities {
		if err := entity.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, entities...)
	return nil
}

func (s *Store) AppendCorrection(ctx context.Context, event repo.CorrectionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrections = append(s.corrections, event)
	return nil
}

// Corrections returns a copy of the appended correction audit trail.
func (s *Store) Corrections() []repo.CorrectionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repo.CorrectionEvent, len(s.corrections))
	copy(out, s.corrections)
	return out
}
