package postgres

import (
	"context"
	"fmt"
)

// Migrate applies the idempotent schema. The statements are ordered so
// each run is safe against a partially migrated database.
func Migrate(ctx context.Context, db DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			source TEXT NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS runs_user_idx ON runs (user_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS run_tasks (
			task_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs (run_id),
			name TEXT NOT NULL,
			task_type TEXT NOT NULL,
			status TEXT NOT NULL,
			upstream_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
			duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			logs JSONB NOT NULL DEFAULT '[]'::jsonb,
			arguments JSONB NOT NULL DEFAULT '[]'::jsonb,
			ordinal INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS run_tasks_run_idx ON run_tasks (run_id, ordinal)`,
		`CREATE TABLE IF NOT EXISTS run_decisions (
			decision_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs (run_id),
			task_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT,
			alignment JSONB,
			ordinal BIGSERIAL,
			UNIQUE (run_id, task_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS run_decisions_run_idx ON run_decisions (run_id, ordinal)`,
		`CREATE TABLE IF NOT EXISTS schemas (
			name TEXT PRIMARY KEY,
			spec JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			created_by TEXT,
			ordinal BIGSERIAL
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			entity_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			iri TEXT,
			entity_type TEXT NOT NULL,
			synonyms JSONB NOT NULL DEFAULT '[]'::jsonb,
			xrefs JSONB NOT NULL DEFAULT '[]'::jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS mapping_corrections (
			correction_id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			mapping_id TEXT NOT NULL,
			from_entity_id TEXT,
			to_entity_id TEXT NOT NULL,
			to_entity_name TEXT NOT NULL,
			actor TEXT,
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS mapping_corrections_run_idx ON mapping_corrections (run_id, mapping_id)`,
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
