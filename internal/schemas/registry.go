package schemas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
)

// Registry serves the built-in schemas alongside user-defined ones held
// in the schema repository. Built-ins shadow the repository on reads
// and their names are reserved on create.
type Registry struct {
	store    repo.SchemaRepository
	builtins []domain.Schema
}

func NewRegistry(store repo.SchemaRepository) *Registry {
	return &Registry{store: store, builtins: Builtins()}
}

// Create persists a user-defined schema. The name must not collide with
// a built-in or an existing schema, and every column must reference a
// catalogue data type with a well-formed parameter set.
func (r *Registry) Create(ctx context.Context, schema domain.Schema) (domain.Schema, error) {
	if err := schema.Validate(); err != nil {
		return domain.Schema{}, fmt.Errorf("%w: %v", domain.ErrInvalidColumn, err)
	}
	if err := validateColumns(schema.Columns); err != nil {
		return domain.Schema{}, err
	}
	for _, builtin := range r.builtins {
		if builtin.Name == schema.Name {
			return domain.Schema{}, fmt.Errorf("%w: schema %q is built in", domain.ErrDuplicateName, schema.Name)
		}
	}

	schema.BuiltIn = false
	if schema.CreatedAt.IsZero() {
		schema.CreatedAt = time.Now().UTC()
	}
	if err := r.store.CreateSchema(ctx, schema); err != nil {
		return domain.Schema{}, err
	}
	return schema, nil
}

// Get returns the schema with the given name, built-ins first.
func (r *Registry) Get(ctx context.Context, name string) (domain.Schema, error) {
	for _, builtin := range r.builtins {
		if builtin.Name == name {
			return builtin, nil
		}
	}
	return r.store.GetSchema(ctx, name)
}

// List returns the built-ins followed by user-defined schemas in
// insertion order.
func (r *Registry) List(ctx context.Context) ([]domain.Schema, error) {
	userDefined, err := r.store.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Schema, 0, len(r.builtins)+len(userDefined))
	out = append(out, r.builtins...)
	out = append(out, userDefined...)
	return out, nil
}

// Candidates returns the schemas eligible for target identification:
// every known schema, with the permissive fallback kept last.
func (r *Registry) Candidates(ctx context.Context) ([]domain.Schema, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	ordered := make([]domain.Schema, 0, len(all))
	var fallback []domain.Schema
	for _, schema := range all {
		if schema.BuiltIn && len(schema.Columns) == 0 {
			fallback = append(fallback, schema)
			continue
		}
		ordered = append(ordered, schema)
	}
	return append(ordered, fallback...), nil
}

func validateColumns(columns []domain.ColumnDefinition) error {
	for _, col := range columns {
		if !KnownDataType(col.DataType) {
			return fmt.Errorf("%w: column %q: unknown data type %q", domain.ErrInvalidColumn, col.Name, col.DataType)
		}
		if col.DataType == domain.DataTypeEntity {
			if len(col.EntityTypes) == 0 {
				return fmt.Errorf("%w: column %q: entity columns require entity types", domain.ErrInvalidColumn, col.Name)
			}
			for _, etype := range col.EntityTypes {
				if _, err := domain.ParseEntityType(string(etype)); err != nil {
					return fmt.Errorf("%w: column %q: %v", domain.ErrInvalidColumn, col.Name, err)
				}
			}
			switch col.MatchMode {
			case domain.MatchModeAuto, domain.MatchModeFreeText, domain.MatchModeXref:
			default:
				return fmt.Errorf("%w: column %q: unknown match mode %q", domain.ErrInvalidColumn, col.Name, col.MatchMode)
			}
		} else if len(col.EntityTypes) > 0 || strings.TrimSpace(col.MatchMode) != "" {
			return fmt.Errorf("%w: column %q: entity parameters on non-entity data type", domain.ErrInvalidColumn, col.Name)
		}
		for i, inf := range col.Inferences {
			if err := inf.Validate(); err != nil {
				return fmt.Errorf("%w: column %q: inferences[%d]: %v", domain.ErrInvalidColumn, col.Name, i, err)
			}
		}
	}
	return nil
}
