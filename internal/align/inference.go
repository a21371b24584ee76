package align

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/extraction"
	"github.com/harmonia-labs/harmonia-go/internal/ingest"
)

// fillMissing tries each of the column's inference specs in declared
// order and applies the first one that can run against the current
// table. It reports whether the column was filled.
func (a *Aligner) fillMissing(ctx context.Context, runID, taskID string, table *ingest.Table, col domain.ColumnDefinition, filePath string) (bool, error) {
	for _, spec := range col.Inferences {
		switch spec.Op {
		case domain.InferExtract:
			answer, err := a.extractor.Extract(ctx, spec.Query)
			if errors.Is(err, extraction.ErrNoAnswer) {
				continue
			}
			if err != nil {
				return false, err
			}
			op := domain.NewExtractedOp(answer.Text, answer.References)
			if _, err := a.ledger.RecordAlignment(ctx, runID, taskID, col.Name, []domain.Operation{op}); err != nil {
				return false, err
			}
			appendConstantColumn(table, col.Name, answer.Text)
		default:
			if !derivable(table, spec) {
				continue
			}
			values, err := deriveValues(table, spec, filePath)
			if err != nil {
				return false, err
			}
			if _, err := a.ledger.RecordAlignment(ctx, runID, taskID, col.Name, []domain.Operation{domain.NewDerivedOp()}); err != nil {
				return false, err
			}
			appendColumn(table, col.Name, values)
		}

		if col.DataType == domain.DataTypeEntity {
			if err := a.resolveColumn(ctx, runID, taskID, table, col); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

func derivable(table *ingest.Table, spec domain.InferenceSpec) bool {
	for _, name := range spec.Requires {
		if table.Column(name) < 0 {
			return false
		}
	}
	return true
}

func deriveValues(table *ingest.Table, spec domain.InferenceSpec, filePath string) ([]string, error) {
	indices := make([]int, len(spec.Requires))
	for i, name := range spec.Requires {
		indices[i] = table.Column(name)
	}

	out := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		switch spec.Op {
		case domain.InferCopy:
			out[i] = row[indices[0]]
		case domain.InferConcat:
			parts := make([]string, len(indices))
			for j, idx := range indices {
				parts[j] = row[idx]
			}
			out[i] = strings.Join(parts, spec.Sep)
		case domain.InferFileStem:
			out[i] = ingest.FileStem(filePath)
		case domain.InferConstant:
			out[i] = spec.Value
		case domain.InferSum:
			total := 0.0
			ok := true
			for _, idx := range indices {
				v, parsed := parseNumber(row[idx])
				if !parsed {
					ok = false
					break
				}
				total += v
			}
			out[i] = formatNumber(total, ok)
		case domain.InferDiff:
			a, okA := parseNumber(row[indices[0]])
			b, okB := parseNumber(row[indices[1]])
			out[i] = formatNumber(a-b, okA && okB)
		case domain.InferLn:
			v, ok := parseNumber(row[indices[0]])
			out[i] = formatNumber(math.Log(v), ok && v > 0)
		case domain.InferExp:
			v, ok := parseNumber(row[indices[0]])
			out[i] = formatNumber(math.Exp(v), ok)
		case domain.InferNegLog10:
			v, ok := parseNumber(row[indices[0]])
			out[i] = formatNumber(-math.Log10(v), ok && v > 0)
		case domain.InferPow10Neg:
			v, ok := parseNumber(row[indices[0]])
			out[i] = formatNumber(math.Pow(10, -v), ok)
		default:
			return nil, errors.New("unknown inference op " + string(spec.Op))
		}
	}

	return out, nil
}

func parseNumber(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatNumber(value float64, ok bool) string {
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return ""
	}
	return strconv.FormatFloat(value, 'g', -1, 64)
}

func appendColumn(table *ingest.Table, name string, values []string) {
	table.Columns = append(table.Columns, name)
	for i := range table.Rows {
		table.Rows[i] = append(table.Rows[i], values[i])
	}
}

// sortMissing orders missing columns so derivations run after the
// columns they need. Each column's score is its distance to data that
// is already present: 1 when an inference can run directly, one more
// per missing dependency hop, unreachable columns last.
func sortMissing(schema domain.Schema, missing []domain.ColumnDefinition, present map[string]bool) []domain.ColumnDefinition {
	missingNames := make(map[string]bool, len(missing))
	for _, col := range missing {
		missingNames[col.Name] = true
	}

	const unreachable = math.MaxInt32
	memo := make(map[string]int)
	var score func(name string, path map[string]bool) int
	score = func(name string, path map[string]bool) int {
		if cached, ok := memo[name]; ok {
			return cached
		}
		if path[name] {
			return unreachable
		}
		path[name] = true
		defer delete(path, name)

		col, ok := schema.Column(name)
		if !ok {
			return unreachable
		}
		best := unreachable
		for _, spec := range col.Inferences {
			cost := 1
			for _, dep := range spec.Requires {
				if present[dep] || !missingNames[dep] {
					continue
				}
				depScore := score(dep, path)
				if depScore == unreachable {
					cost = unreachable
					break
				}
				if depScore+1 > cost {
					cost = depScore + 1
				}
			}
			if cost < best {
				best = cost
			}
		}
		memo[name] = best
		return best
	}

	type scored struct {
		col   domain.ColumnDefinition
		score int
		pos   int
	}
	ranked := make([]scored, 0, len(missing))
	for i, col := range missing {
		ranked = append(ranked, scored{col: col, score: score(col.Name, map[string]bool{}), pos: i})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].pos < ranked[j].pos
	})
	out := make([]domain.ColumnDefinition, 0, len(ranked))
	for _, entry := range ranked {
		out = append(out, entry.col)
	}
	return out
}
