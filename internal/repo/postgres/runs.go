package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
)

type RunStore struct {
	db DB
}

const (
	insertRunQuery = `INSERT INTO runs (
		run_id, name, description, source, user_id, status, started_at, ended_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	selectRunQuery = `SELECT run_id, name, description, source, user_id, status, started_at, ended_at
	 FROM runs
	 WHERE run_id = $1`

	listRunsQuery = `SELECT run_id, name, description, source, user_id, status, started_at, ended_at
	 FROM runs`

	updateRunStatusQuery = `UPDATE runs SET status = $2, ended_at = $3 WHERE run_id = $1`
)

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) CreateRun(ctx context.Context, run domain.Run) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Config.Validate(); err != nil {
		return err
	}
	var endedAt sql.NullTime
	if run.EndedAt != nil {
		endedAt = sql.NullTime{Time: run.EndedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(
		ctx,
		insertRunQuery,
		strings.TrimSpace(run.ID),
		strings.TrimSpace(run.Config.Name),
		nullIfEmpty(run.Config.Description),
		strings.TrimSpace(run.Config.Source),
		strings.TrimSpace(run.Config.UserID),
		string(run.Status),
		normalizeTime(run.StartedAt),
		endedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if s == nil || s.db == nil {
		return domain.Run{}, fmt.Errorf("run store not initialized")
	}
	row := s.db.QueryRowContext(ctx, selectRunQuery, strings.TrimSpace(id))
	return scanRun(row.Scan, id)
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	query := listRunsQuery
	var args []any
	var predicates []string
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		args = append(args, userID)
		predicates = append(predicates, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		predicates = append(predicates, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(predicates) > 0 {
		query += " WHERE " + strings.Join(predicates, " AND ")
	}
	query += " ORDER BY started_at DESC, run_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan, "")
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *RunStore) UpdateRunStatus(ctx context.Context, id string, status domain.RunStatus, endedAt *time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	var ended sql.NullTime
	if endedAt != nil {
		ended = sql.NullTime{Time: endedAt.UTC(), Valid: true}
	}
	result, err := s.db.ExecContext(ctx, updateRunStatusQuery, strings.TrimSpace(id), string(status), ended)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %q", domain.ErrNotFound, id)
	}
	return nil
}

func scanRun(scan func(dest ...any) error, id string) (domain.Run, error) {
	var run domain.Run
	var description sql.NullString
	var status string
	var endedAt sql.NullTime
	if err := scan(
		&run.ID,
		&run.Config.Name,
		&description,
		&run.Config.Source,
		&run.Config.UserID,
		&status,
		&run.StartedAt,
		&endedAt,
	); err != nil {
		return domain.Run{}, handleNotFound(err, "run", id)
	}
	run.Config.Description = description.String
	run.Status = domain.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	if endedAt.Valid {
		ended := endedAt.Time.UTC()
		run.EndedAt = &ended
	}
	return run, nil
}
