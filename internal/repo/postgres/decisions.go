package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/ledger"
)

type DecisionStore struct {
	db DB
}

const (
	insertDecisionQuery = `INSERT INTO run_decisions (
		decision_id, run_id, task_id, seq, kind, content, alignment
	) VALUES ($1,$2,$3,$4,$5,$6,$7)`

	updateDecisionQuery = `UPDATE run_decisions
	 SET content = $2, alignment = $3
	 WHERE decision_id = $1`

	listDecisionsQuery = `SELECT decision_id, run_id, task_id, seq, kind, content, alignment
	 FROM run_decisions
	 WHERE run_id = $1
	 ORDER BY ordinal ASC`
)

func NewDecisionStore(db DB) *DecisionStore {
	if db == nil {
		return nil
	}
	return &DecisionStore{db: db}
}

func (s *DecisionStore) AppendDecision(ctx context.Context, decision domain.Decision) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("decision store not initialized")
	}
	if err := decision.Validate(); err != nil {
		return err
	}
	alignment, err := ledger.EncodeAlignment(decision.Alignment)
	if err != nil {
		return fmt.Errorf("encode alignment: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		insertDecisionQuery,
		strings.TrimSpace(decision.ID),
		strings.TrimSpace(decision.RunID),
		strings.TrimSpace(decision.TaskID),
		decision.Seq,
		string(decision.Kind),
		nullIfEmpty(decision.Content),
		nullableBytes(alignment),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (s *DecisionStore) UpdateDecision(ctx context.Context, decision domain.Decision) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("decision store not initialized")
	}
	if err := decision.Validate(); err != nil {
		return err
	}
	alignment, err := ledger.EncodeAlignment(decision.Alignment)
	if err != nil {
		return fmt.Errorf("encode alignment: %w", err)
	}
	result, err := s.db.ExecContext(
		ctx,
		updateDecisionQuery,
		strings.TrimSpace(decision.ID),
		nullIfEmpty(decision.Content),
		nullableBytes(alignment),
	)
	if err != nil {
		return fmt.Errorf("update decision: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update decision: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: decision %q", domain.ErrNotFound, decision.ID)
	}
	return nil
}

func (s *DecisionStore) ListDecisions(ctx context.Context, runID string) ([]domain.Decision, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("decision store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, listDecisionsQuery, strings.TrimSpace(runID))
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.Decision
	for rows.Next() {
		var decision domain.Decision
		var kind string
		var content sql.NullString
		var alignment []byte
		if err := rows.Scan(
			&decision.ID,
			&decision.RunID,
			&decision.TaskID,
			&decision.Seq,
			&kind,
			&content,
			&alignment,
		); err != nil {
			return nil, err
		}
		decision.Kind = domain.DecisionKind(kind)
		decision.Content = content.String
		if decision.Alignment, err = ledger.DecodeAlignment(alignment); err != nil {
			return nil, err
		}
		out = append(out, decision)
	}
	return out, rows.Err()
}

func nullableBytes(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
