// Package ledger is the append-only decision trail of a run: every
// transformation the pipeline applies is recorded here in emission
// order, per task, with column alignments addressable by column and
// mention mappings addressable by mapping id.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
)

// Ledger serializes writes per run while leaving reads concurrent.
// Sequence numbers are per (run, task) and monotonic in emission order;
// they are rehydrated from storage after a restart.
type Ledger struct {
	decisions repo.DecisionRepository
	audit     repo.CorrectionAuditAppender

	mu   sync.Mutex
	runs map[string]*runLedger
}

type runLedger struct {
	mu       sync.Mutex
	hydrated bool
	nextSeq  map[string]int64 // task id -> next sequence number
}

func New(decisions repo.DecisionRepository, audit repo.CorrectionAuditAppender) *Ledger {
	return &Ledger{
		decisions: decisions,
		audit:     audit,
		runs:      make(map[string]*runLedger),
	}
}

func (l *Ledger) forRun(runID string) *runLedger {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.runs[runID]
	if !ok {
		state = &runLedger{nextSeq: make(map[string]int64)}
		l.runs[runID] = state
	}
	return state
}

// hydrate loads the persisted tail of a run's ledger so sequence
// assignment continues where a previous process left off. Caller holds
// the run lock.
func (l *Ledger) hydrate(ctx context.Context, runID string, state *runLedger) error {
	if state.hydrated {
		return nil
	}
	existing, err := l.decisions.ListDecisions(ctx, runID)
	if err != nil {
		return err
	}
	for _, decision := range existing {
		if decision.Seq >= state.nextSeq[decision.TaskID] {
			state.nextSeq[decision.TaskID] = decision.Seq + 1
		}
	}
	state.hydrated = true
	return nil
}

// Record appends a free-text decision.
func (l *Ledger) Record(ctx context.Context, runID, taskID string, kind domain.DecisionKind, content string) (domain.Decision, error) {
	state := l.forRun(runID)
	state.mu.Lock()
	defer state.mu.Unlock()
	if err := l.hydrate(ctx, runID, state); err != nil {
		return domain.Decision{}, err
	}

	decision := domain.Decision{
		ID:      uuid.NewString(),
		RunID:   runID,
		TaskID:  taskID,
		Seq:     state.nextSeq[taskID],
		Kind:    kind,
		Content: content,
	}
	if err := l.decisions.AppendDecision(ctx, decision); err != nil {
		return domain.Decision{}, err
	}
	state.nextSeq[taskID]++
	return decision, nil
}

// RecordAlignment appends operations to a column's alignment decision.
// The first call for a column creates the decision; later calls for the
// same (run, task, column) merge into it, preserving operation emission
// order, so one decision per column holds the whole trail.
func (l *Ledger) RecordAlignment(ctx context.Context, runID, taskID, column string, ops []domain.Operation) (domain.Decision, error) {
	state := l.forRun(runID)
	state.mu.Lock()
	defer state.mu.Unlock()
	if err := l.hydrate(ctx, runID, state); err != nil {
		return domain.Decision{}, err
	}

	existing, err := l.decisions.ListDecisions(ctx, runID)
	if err != nil {
		return domain.Decision{}, err
	}
	for _, decision := range existing {
		if decision.Kind != domain.DecisionColumnAligned || decision.TaskID != taskID {
			continue
		}
		if decision.Alignment == nil || decision.Alignment.ColumnName != column {
			continue
		}
		merged := cloneAlignment(*decision.Alignment)
		merged.Operations = append(merged.Operations, ops...)
		decision.Alignment = &merged
		if err := l.decisions.UpdateDecision(ctx, decision); err != nil {
			return domain.Decision{}, err
		}
		return decision, nil
	}

	decision := domain.Decision{
		ID:     uuid.NewString(),
		RunID:  runID,
		TaskID: taskID,
		Seq:    state.nextSeq[taskID],
		Kind:   domain.DecisionColumnAligned,
		Alignment: &domain.ColumnAlignment{
			ColumnName: column,
			Operations: ops,
		},
	}
	if err := l.decisions.AppendDecision(ctx, decision); err != nil {
		return domain.Decision{}, err
	}
	state.nextSeq[taskID]++
	return decision, nil
}

// ListForRun returns the run's decisions in emission order per task.
func (l *Ledger) ListForRun(ctx context.Context, runID string) ([]domain.Decision, error) {
	return l.decisions.ListDecisions(ctx, runID)
}

// ColumnAlignment returns the most recently recorded alignment trail
// for a column. Multi-file runs record one column_aligned decision per
// process task, so the last one in emission order wins.
func (l *Ledger) ColumnAlignment(ctx context.Context, runID, column string) (domain.ColumnAlignment, error) {
	decisions, err := l.decisions.ListDecisions(ctx, runID)
	if err != nil {
		return domain.ColumnAlignment{}, err
	}
	var latest *domain.ColumnAlignment
	for _, decision := range decisions {
		if decision.Kind == domain.DecisionColumnAligned && decision.Alignment != nil && decision.Alignment.ColumnName == column {
			latest = decision.Alignment
		}
	}
	if latest == nil {
		return domain.ColumnAlignment{}, fmt.Errorf("%w: alignment for column %q", domain.ErrNotFound, column)
	}
	return *latest, nil
}

// Mappings returns every mention mapping recorded for a run, in
// decision order.
func (l *Ledger) Mappings(ctx context.Context, runID string) ([]domain.Mapping, error) {
	decisions, err := l.decisions.ListDecisions(ctx, runID)
	if err != nil {
		return nil, err
	}
	var out []domain.Mapping
	for _, decision := range decisions {
		if decision.Alignment == nil {
			continue
		}
		for _, op := range decision.Alignment.Operations {
			if op.Kind != domain.OpMapping {
				continue
			}
			out = append(out, op.Mapping.Mappings...)
		}
	}
	return out, nil
}

// CorrectMapping is the explicit mutation path: it rewrites one
// mapping's entity fields in place, forces the normalised score to 1.0,
// and appends a correction audit event. Mention and mapping id never
// change. Re-applying the same correction is a no-op apart from the
// audit trail, so the endpoint stays idempotent.
func (l *Ledger) CorrectMapping(ctx context.Context, runID, mappingID string, entity domain.Entity, actor string) (domain.Mapping, error) {
	state := l.forRun(runID)
	state.mu.Lock()
	defer state.mu.Unlock()

	decisions, err := l.decisions.ListDecisions(ctx, runID)
	if err != nil {
		return domain.Mapping{}, err
	}
	for _, decision := range decisions {
		if decision.Alignment == nil {
			continue
		}
		cloned := cloneAlignment(*decision.Alignment)
		for _, op := range cloned.Operations {
			if op.Kind != domain.OpMapping {
				continue
			}
			for i := range op.Mapping.Mappings {
				mapping := &op.Mapping.Mappings[i]
				if mapping.MappingID != mappingID {
					continue
				}
				event := repo.CorrectionEvent{
					RunID:        runID,
					MappingID:    mappingID,
					FromEntityID: mapping.EntityID,
					ToEntityID:   entity.ID,
					ToEntityName: entity.Name,
					Actor:        actor,
					OccurredAt:   time.Now().UTC(),
				}
				mapping.EntityID = entity.ID
				mapping.EntityName = entity.Name
				mapping.Types = []string{string(entity.Type)}
				mapping.Score = 1.0
				mapping.NormalisedScore = 1.0
				decision.Alignment = &cloned
				if err := l.decisions.UpdateDecision(ctx, decision); err != nil {
					return domain.Mapping{}, err
				}
				if l.audit != nil {
					if err := l.audit.AppendCorrection(ctx, event); err != nil {
						return domain.Mapping{}, err
					}
				}
				return *mapping, nil
			}
		}
	}
	return domain.Mapping{}, fmt.Errorf("%w: mapping %q", domain.ErrNotFound, mappingID)
}

// cloneAlignment deep-copies an alignment so in-place edits never leak
// into decisions already handed to concurrent readers.
func cloneAlignment(alignment domain.ColumnAlignment) domain.ColumnAlignment {
	out := domain.ColumnAlignment{
		ColumnName: alignment.ColumnName,
		Operations: make([]domain.Operation, 0, len(alignment.Operations)),
	}
	for _, op := range alignment.Operations {
		cloned := op
		switch op.Kind {
		case domain.OpRename:
			rename := *op.Rename
			cloned.Rename = &rename
		case domain.OpMapping:
			mappingOp := domain.MappingOp{
				Type:     op.Mapping.Type,
				Mappings: make([]domain.Mapping, len(op.Mapping.Mappings)),
			}
			copy(mappingOp.Mappings, op.Mapping.Mappings)
			cloned.Mapping = &mappingOp
		case domain.OpInference:
			inference := *op.Inference
			inference.References = append([]domain.Reference(nil), op.Inference.References...)
			cloned.Inference = &inference
		case domain.OpSetDefault:
			setDefault := *op.SetDefault
			cloned.SetDefault = &setDefault
		}
		out.Operations = append(out.Operations, cloned)
	}
	return out
}
