// Package query carries the job-submission contract for ad-hoc queries
// over harmonised data. Execution happens in an external sandbox; this
// service only hands the job over.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

// Submitter hands a query for a run's harmonised output to the
// execution sandbox and returns the job id.
type Submitter interface {
	Submit(ctx context.Context, runID, query string) (string, error)
}

// LogSubmitter accepts jobs and records them without executing
// anything, for environments without a sandbox.
type LogSubmitter struct {
	Logger *slog.Logger
}

func (s LogSubmitter) Submit(ctx context.Context, runID, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}
	jobID := uuid.NewString()
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "query accepted", "run_id", runID, "job_id", jobID)
	}
	return jobID, nil
}
