package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/harmonia-labs/harmonia-go/internal/repo"
)

type CorrectionStore struct {
	db DB
}

// Append-only: no update or delete statements exist for this table.
const insertCorrectionQuery = `INSERT INTO mapping_corrections (
	run_id, mapping_id, from_entity_id, to_entity_id, to_entity_name, actor, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)`

func NewCorrectionStore(db DB) *CorrectionStore {
	if db == nil {
		return nil
	}
	return &CorrectionStore{db: db}
}

func (s *CorrectionStore) AppendCorrection(ctx context.Context, event repo.CorrectionEvent) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("correction store not initialized")
	}
	_, err := s.db.ExecContext(
		ctx,
		insertCorrectionQuery,
		strings.TrimSpace(event.RunID),
		strings.TrimSpace(event.MappingID),
		nullIfEmpty(event.FromEntityID),
		strings.TrimSpace(event.ToEntityID),
		event.ToEntityName,
		nullIfEmpty(event.Actor),
		normalizeTime(event.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}
