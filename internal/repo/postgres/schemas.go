package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/schemas"
)

type SchemaStore struct {
	db DB
}

const (
	insertSchemaQuery = `INSERT INTO schemas (name, spec, created_at, created_by)
	 VALUES ($1,$2,$3,$4)
	 ON CONFLICT (name) DO NOTHING`

	selectSchemaQuery = `SELECT name, spec, created_at, created_by
	 FROM schemas
	 WHERE name = $1`

	listSchemasQuery = `SELECT name, spec, created_at, created_by
	 FROM schemas
	 ORDER BY ordinal ASC`
)

func NewSchemaStore(db DB) *SchemaStore {
	if db == nil {
		return nil
	}
	return &SchemaStore{db: db}
}

func (s *SchemaStore) CreateSchema(ctx context.Context, schema domain.Schema) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("schema store not initialized")
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	spec, err := json.Marshal(schemas.SpecFromDomain(schema))
	if err != nil {
		return fmt.Errorf("encode schema spec: %w", err)
	}
	result, err := s.db.ExecContext(
		ctx,
		insertSchemaQuery,
		strings.TrimSpace(schema.Name),
		spec,
		normalizeTime(schema.CreatedAt),
		nullIfEmpty(schema.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert schema: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert schema: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: schema %q", domain.ErrDuplicateName, schema.Name)
	}
	return nil
}

func (s *SchemaStore) GetSchema(ctx context.Context, name string) (domain.Schema, error) {
	if s == nil || s.db == nil {
		return domain.Schema{}, fmt.Errorf("schema store not initialized")
	}
	row := s.db.QueryRowContext(ctx, selectSchemaQuery, strings.TrimSpace(name))
	return scanSchema(row.Scan, name)
}

func (s *SchemaStore) ListSchemas(ctx context.Context) ([]domain.Schema, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("schema store not initialized")
	}
	rows, err := s.db.QueryContext(ctx, listSchemasQuery)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var out []domain.Schema
	for rows.Next() {
		schema, err := scanSchema(rows.Scan, "")
		if err != nil {
			return nil, err
		}
		out = append(out, schema)
	}
	return out, rows.Err()
}

func scanSchema(scan func(dest ...any) error, name string) (domain.Schema, error) {
	var storedName string
	var raw []byte
	var createdAt sql.NullTime
	var createdBy sql.NullString
	if err := scan(&storedName, &raw, &createdAt, &createdBy); err != nil {
		return domain.Schema{}, handleNotFound(err, "schema", name)
	}
	var spec schemas.Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return domain.Schema{}, fmt.Errorf("decode schema spec: %w", err)
	}
	schema, err := spec.ToDomain()
	if err != nil {
		return domain.Schema{}, fmt.Errorf("schema %q: %w", storedName, err)
	}
	schema.Name = storedName
	if createdAt.Valid {
		schema.CreatedAt = createdAt.Time.UTC()
	}
	schema.CreatedBy = createdBy.String
	return schema, nil
}
