package repo

import (
	"context"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

type RunFilter struct {
	UserID string
	Status domain.RunStatus
	Limit  int
}

// RunRepository manages run configuration and aggregate status.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.Run) error
	GetRun(ctx context.Context, id string) (domain.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status domain.RunStatus, endedAt *time.Time) error
}

// TaskRepository manages the task nodes of a run's graph.
type TaskRepository interface {
	CreateTasks(ctx context.Context, tasks []domain.TaskNode) error
	ListTasks(ctx context.Context, runID string) ([]domain.TaskNode, error)
	UpdateTask(ctx context.Context, task domain.TaskNode) error
}

// DecisionRepository persists the append-only decision ledger. Append
// never overwrites; UpdateDecision exists for the two sanctioned
// mutations: merging alignment operations into a column's decision and
// the explicit mapping correction path.
type DecisionRepository interface {
	AppendDecision(ctx context.Context, decision domain.Decision) error
	UpdateDecision(ctx context.Context, decision domain.Decision) error
	ListDecisions(ctx context.Context, runID string) ([]domain.Decision, error)
}

// SchemaRepository manages named schemas in insertion order.
type SchemaRepository interface {
	CreateSchema(ctx context.Context, schema domain.Schema) error
	GetSchema(ctx context.Context, name string) (domain.Schema, error)
	ListSchemas(ctx context.Context) ([]domain.Schema, error)
}

// EntityRepository reads the entity table the external ontology
// ingestion job populates. InsertEntities exists for seeding tooling and
// tests; the pipeline itself never writes entities.
type EntityRepository interface {
	ListEntities(ctx context.Context) ([]domain.Entity, error)
	InsertEntities(ctx context.Context, entities []domain.Entity) error
}

// CorrectionEvent is the audit record appended for every mapping
// correction.
type CorrectionEvent struct {
	RunID        string
	MappingID    string
	FromEntityID string
	ToEntityID   string
	ToEntityName string
	Actor        string
	OccurredAt   time.Time
}

// CorrectionAuditAppender ensures append-only correction audit writes.
type CorrectionAuditAppender interface {
	AppendCorrection(ctx context.Context, event CorrectionEvent) error
}
