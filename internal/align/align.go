// Package align implements column alignment: renaming source columns
// onto a target schema, resolving controlled-vocabulary values to
// entities, inferring missing columns and applying defaults, with every
// step recorded in the decision ledger.
package align

import (
	"context"
	"errors"
	"fmt"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/extraction"
	"github.com/harmonia-labs/harmonia-go/internal/ingest"
	"github.com/harmonia-labs/harmonia-go/internal/ledger"
	"github.com/harmonia-labs/harmonia-go/internal/resolver"
	"github.com/harmonia-labs/harmonia-go/internal/schemas"
)

type Aligner struct {
	resolver  *resolver.Resolver
	ledger    *ledger.Ledger
	extractor extraction.ContextExtractor
}

func New(res *resolver.Resolver, led *ledger.Ledger, extractor extraction.ContextExtractor) *Aligner {
	if extractor == nil {
		extractor = extraction.Noop{}
	}
	return &Aligner{resolver: res, ledger: led, extractor: extractor}
}

// Align reshapes a table onto the target schema. Source columns match
// by exact name, alias, or snake-cased form; unmatched source columns
// are dropped; missing target columns are inferred in dependency order
// or defaulted. A required column with no fill path fails the call
// after an unable_to_process decision is recorded.
func (a *Aligner) Align(ctx context.Context, runID, taskID string, table ingest.Table, schema domain.Schema, filePath string) (ingest.Table, error) {
	if len(schema.Columns) == 0 {
		return a.passthrough(ctx, runID, taskID, table)
	}

	matched := make(map[string]int, len(schema.Columns)) // target name -> source column index
	var missing []domain.ColumnDefinition
	for _, col := range schema.Columns {
		src := matchColumn(table, col)
		if src < 0 {
			missing = append(missing, col)
			continue
		}
		matched[col.Name] = src
		if table.Columns[src] != col.Name {
			op := domain.NewRenameOp(table.Columns[src], col.Name)
			if _, err := a.ledger.RecordAlignment(ctx, runID, taskID, col.Name, []domain.Operation{op}); err != nil {
				return ingest.Table{}, err
			}
		}
	}

	// Rebuild in schema order; unmatched source columns drop out here.
	out := ingest.Table{Rows: make([][]string, len(table.Rows))}
	for i := range out.Rows {
		out.Rows[i] = make([]string, 0, len(schema.Columns))
	}
	present := make(map[string]bool, len(matched))
	for _, col := range schema.Columns {
		src, ok := matched[col.Name]
		if !ok {
			continue
		}
		out.Columns = append(out.Columns, col.Name)
		for i, row := range table.Rows {
			out.Rows[i] = append(out.Rows[i], row[src])
		}
		present[col.Name] = true
	}

	for _, col := range schema.Columns {
		if !present[col.Name] {
			continue
		}
		if col.DataType == domain.DataTypeEntity {
			if err := a.resolveColumn(ctx, runID, taskID, &out, col); err != nil {
				return ingest.Table{}, err
			}
		}
	}

	for _, col := range sortMissing(schema, missing, present) {
		filled, err := a.fillMissing(ctx, runID, taskID, &out, col, filePath)
		if err != nil {
			return ingest.Table{}, err
		}
		if !filled {
			if !col.HasDefault {
				if col.Required {
					content := fmt.Sprintf("column %q is required but could not be filled", col.Name)
					if _, err := a.ledger.Record(ctx, runID, taskID, domain.DecisionUnableToProcess, content); err != nil {
						return ingest.Table{}, err
					}
					return ingest.Table{}, errors.New(content)
				}
				// An optional column with no fill path stays absent
				// rather than materializing as empty cells.
				continue
			}
			op := domain.NewSetDefaultOp(col.Default)
			if _, err := a.ledger.RecordAlignment(ctx, runID, taskID, col.Name, []domain.Operation{op}); err != nil {
				return ingest.Table{}, err
			}
			appendConstantColumn(&out, col.Name, col.Default)
		}
		present[col.Name] = true
	}

	return reorder(out, schema), nil
}

// passthrough handles the permissive schema: headers are snake-cased
// and everything else is left alone.
func (a *Aligner) passthrough(ctx context.Context, runID, taskID string, table ingest.Table) (ingest.Table, error) {
	out := ingest.Table{Columns: make([]string, len(table.Columns)), Rows: table.Rows}
	for i, column := range table.Columns {
		renamed := schemas.ToSnakeCase(column)
		if renamed == "" {
			renamed = column
		}
		out.Columns[i] = renamed
		if renamed != column {
			op := domain.NewRenameOp(column, renamed)
			if _, err := a.ledger.RecordAlignment(ctx, runID, taskID, renamed, []domain.Operation{op}); err != nil {
				return ingest.Table{}, err
			}
		}
	}
	return out, nil
}

// resolveColumn routes a controlled-vocabulary column's distinct values
// through the resolver and rewrites resolved cells to entity ids.
func (a *Aligner) resolveColumn(ctx context.Context, runID, taskID string, table *ingest.Table, col domain.ColumnDefinition) error {
	idx := table.Column(col.Name)
	if idx < 0 {
		return nil
	}
	distinct := distinctValues(table, idx)
	if len(distinct) == 0 {
		return nil
	}
	mappingType, mappings, err := a.resolver.ResolveMentions(col.EntityTypes, distinct, col.MatchMode)
	if err != nil {
		return err
	}
	op := domain.NewMappingOp(mappingType, mappings)
	if _, err := a.ledger.RecordAlignment(ctx, runID, taskID, col.Name, []domain.Operation{op}); err != nil {
		return err
	}

	byMention := make(map[string]string, len(mappings))
	for _, mapping := range mappings {
		if mapping.EntityID != "" {
			byMention[mapping.Mention] = mapping.EntityID
		}
	}
	for i := range table.Rows {
		if id, ok := byMention[table.Rows[i][idx]]; ok {
			table.Rows[i][idx] = id
		}
	}
	return nil
}

func matchColumn(table ingest.Table, col domain.ColumnDefinition) int {
	if idx := table.Column(col.Name); idx >= 0 {
		return idx
	}
	accepted := make(map[string]struct{}, 2*(len(col.Aliases)+1))
	accepted[schemas.ToSnakeCase(col.Name)] = struct{}{}
	for _, alias := range col.Aliases {
		accepted[alias] = struct{}{}
		accepted[schemas.ToSnakeCase(alias)] = struct{}{}
	}
	for i, column := range table.Columns {
		if _, ok := accepted[column]; ok {
			return i
		}
		if _, ok := accepted[schemas.ToSnakeCase(column)]; ok {
			return i
		}
	}
	return -1
}

func distinctValues(table *ingest.Table, idx int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range table.Rows {
		value := row[idx]
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func appendConstantColumn(table *ingest.Table, name, value string) {
	table.Columns = append(table.Columns, name)
	for i := range table.Rows {
		table.Rows[i] = append(table.Rows[i], value)
	}
}

func reorder(table ingest.Table, schema domain.Schema) ingest.Table {
	out := ingest.Table{Rows: make([][]string, len(table.Rows))}
	var indices []int
	for _, col := range schema.Columns {
		if idx := table.Column(col.Name); idx >= 0 {
			out.Columns = append(out.Columns, col.Name)
			indices = append(indices, idx)
		}
	}
	for i, row := range table.Rows {
		ordered := make([]string, len(indices))
		for j, idx := range indices {
			ordered[j] = row[idx]
		}
		out.Rows[i] = ordered
	}
	return out
}
