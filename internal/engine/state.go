package engine

import "github.com/harmonia-labs/harmonia-go/internal/domain"

// DeriveRunStatus computes the aggregate run status from its task
// nodes. Skips only ever originate from upstream failure or
// cancellation, so any skip counts against the run.
func DeriveRunStatus(tasks []domain.TaskNode) domain.RunStatus {
	if len(tasks) == 0 {
		return domain.RunStatusRunning
	}
	allTerminal := true
	for _, task := range tasks {
		switch task.Status {
		case domain.TaskStatusFailed, domain.TaskStatusSkipped:
			return domain.RunStatusFailed
		case domain.TaskStatusSuccess:
		default:
			allTerminal = false
		}
	}
	if allTerminal {
		return domain.RunStatusSuccess
	}
	return domain.RunStatusRunning
}
