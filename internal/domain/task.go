package domain

import "strings"

// TaskType classifies a unit of work within a run.
type TaskType string

const (
	TaskTypeRetrieve TaskType = "retrieve"
	TaskTypeDownload TaskType = "download"
	TaskTypeExtract  TaskType = "extract"
	TaskTypeProcess  TaskType = "process"
	TaskTypePool     TaskType = "pool"
)

// TaskStatus is the execution status of a task node. Pending is internal
// bookkeeping for nodes that have not started; status queries report a
// pending node as running while the run itself is running, so exactly the
// four surfaced statuses remain once the run is terminal.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
	TaskStatusSkipped TaskStatus = "skipped"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusSkipped:
		return true
	}
	return false
}

// CanTransitionTaskStatus enforces the monotonic task lifecycle:
// pending -> running -> {success, failed}, and pending/running -> skipped.
// Terminal statuses never change.
func CanTransitionTaskStatus(current, next TaskStatus) bool {
	if current.Terminal() {
		return false
	}
	switch current {
	case TaskStatusPending:
		return next == TaskStatusRunning || next == TaskStatusSkipped
	case TaskStatusRunning:
		return next == TaskStatusSuccess || next == TaskStatusFailed || next == TaskStatusSkipped
	}
	return false
}

// TaskNode is one scheduled unit of work in a run's dependency graph.
type TaskNode struct {
	ID          string
	RunID       string
	Name        string
	Type        TaskType
	Status      TaskStatus
	UpstreamIDs []string
	Duration    float64
	Logs        []string
	Arguments   []TaskArgument
}

// TaskArgument is a displayable input recorded on a task node.
type TaskArgument struct {
	Name  string
	Value string
}

func (n TaskNode) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return ErrInvalidConfig
	}
	switch n.Type {
	case TaskTypeRetrieve, TaskTypeDownload, TaskTypeExtract, TaskTypeProcess, TaskTypePool:
	default:
		return ErrInternalInconsistency
	}
	return nil
}
