package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

type TaskStore struct {
	db DB
}

const (
	insertTaskQuery = `INSERT INTO run_tasks (
		task_id, run_id, name, task_type, status, upstream_ids, duration_seconds, logs, arguments, ordinal
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	listTasksQuery = `SELECT task_id, run_id, name, task_type, status, upstream_ids, duration_seconds, logs, arguments
	 FROM run_tasks
	 WHERE run_id = $1
	 ORDER BY ordinal ASC`

	taskStatusQuery = `SELECT status FROM run_tasks WHERE task_id = $1`

	updateTaskQuery = `UPDATE run_tasks
	 SET status = $2, duration_seconds = $3, logs = $4
	 WHERE task_id = $1 AND status = $5`
)

func NewTaskStore(db DB) *TaskStore {
	if db == nil {
		return nil
	}
	return &TaskStore{db: db}
}

// CreateTasks persists a run's task graph. Ordinal records plan order so
// listings come back in the deterministic topological order the plan
// builder produced.
func (s *TaskStore) CreateTasks(ctx context.Context, tasks []domain.TaskNode) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("task store not initialized")
	}
	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			return err
		}
		upstream, err := encodeStrings(task.UpstreamIDs)
		if err != nil {
			return fmt.Errorf("encode upstream ids: %w", err)
		}
		logs, err := encodeStrings(task.Logs)
		if err != nil {
			return fmt.Errorf("encode logs: %w", err)
		}
		arguments, err := encodeArguments(task.Arguments)
		if err != nil {
			return fmt.Errorf("encode arguments: %w", err)
		}
		_, err = s.db.ExecContext(
			ctx,
			insertTaskQuery,
			strings.TrimSpace(task.ID),
			strings.TrimSpace(task.RunID),
			task.Name,
			string(task.Type),
			string(task.Status),
			upstream,
			task.Duration,
			logs,
			arguments,
			i,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
	}
	return nil
}

func (s *TaskStore) ListTasks(ctx context.Context, runID string) ([]domain.TaskNode, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("task store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, listTasksQuery, strings.TrimSpace(runID))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.TaskNode
	for rows.Next() {
		var task domain.TaskNode
		var taskType, status string
		var upstream, logs, arguments []byte
		if err := rows.Scan(
			&task.ID,
			&task.RunID,
			&task.Name,
			&taskType,
			&status,
			&upstream,
			&task.Duration,
			&logs,
			&arguments,
		); err != nil {
			return nil, err
		}
		task.Type = domain.TaskType(taskType)
		task.Status = domain.TaskStatus(status)
		if task.UpstreamIDs, err = decodeStrings(upstream); err != nil {
			return nil, fmt.Errorf("decode upstream ids: %w", err)
		}
		if task.Logs, err = decodeStrings(logs); err != nil {
			return nil, fmt.Errorf("decode logs: %w", err)
		}
		if task.Arguments, err = decodeArguments(arguments); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// UpdateTask persists a status change. The task lifecycle is
// monotonic, so writes that would move a task backwards (or out of a
// terminal status) are rejected; the update is guarded on the status
// the transition was checked against.
func (s *TaskStore) UpdateTask(ctx context.Context, task domain.TaskNode) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("task store not initialized")
	}
	taskID := strings.TrimSpace(task.ID)
	var current string
	if err := s.db.QueryRowContext(ctx, taskStatusQuery, taskID).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: task %q", domain.ErrNotFound, task.ID)
		}
		return fmt.Errorf("read task status: %w", err)
	}
	from := domain.TaskStatus(current)
	if from != task.Status && !domain.CanTransitionTaskStatus(from, task.Status) {
		return fmt.Errorf("%w: task %q cannot move %s -> %s", domain.ErrInternalInconsistency, task.ID, from, task.Status)
	}

	logs, err := encodeStrings(task.Logs)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}
	result, err := s.db.ExecContext(
		ctx,
		updateTaskQuery,
		taskID,
		string(task.Status),
		task.Duration,
		logs,
		current,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: task %q changed status concurrently", domain.ErrInternalInconsistency, task.ID)
	}
	return nil
}

type argumentPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func encodeArguments(arguments []domain.TaskArgument) ([]byte, error) {
	payload := make([]argumentPayload, 0, len(arguments))
	for _, arg := range arguments {
		payload = append(payload, argumentPayload{Name: arg.Name, Value: arg.Value})
	}
	return json.Marshal(payload)
}

func decodeArguments(raw []byte) ([]domain.TaskArgument, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var payload []argumentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	out := make([]domain.TaskArgument, 0, len(payload))
	for _, arg := range payload {
		out = append(out, domain.TaskArgument{Name: arg.Name, Value: arg.Value})
	}
	return out, nil
}
