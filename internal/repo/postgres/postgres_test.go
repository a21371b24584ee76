package postgres

import (
	"strings"
	"testing"
)

func TestDecisionQueriesPreserveEmissionOrder(t *testing.T) {
	// The append ordinal makes cross-task ordering match the in-memory
	// store's global emission order.
	if !strings.Contains(listDecisionsQuery, "ORDER BY ordinal ASC") {
		t.Fatalf("expected append-order listing in list query")
	}
	if !strings.Contains(insertDecisionQuery, "seq") {
		t.Fatalf("expected seq column in insert query")
	}
}

func TestTaskQueriesKeepPlanOrder(t *testing.T) {
	if !strings.Contains(listTasksQuery, "ORDER BY ordinal ASC") {
		t.Fatalf("expected ordinal ordering in list query")
	}
	if !strings.Contains(updateTaskQuery, "status = $2") {
		t.Fatalf("expected status update in task update query")
	}
	// Status writes are guarded on the status the transition was
	// validated against.
	if !strings.Contains(updateTaskQuery, "status = $5") {
		t.Fatalf("expected status guard in task update query")
	}
	if strings.Contains(updateTaskQuery, "upstream_ids") {
		t.Fatalf("task update must not rewrite graph edges")
	}
}

func TestSchemaInsertIsConflictSafe(t *testing.T) {
	if !strings.Contains(insertSchemaQuery, "ON CONFLICT (name) DO NOTHING") {
		t.Fatalf("expected conflict clause in schema insert")
	}
	if !strings.Contains(listSchemasQuery, "ORDER BY ordinal ASC") {
		t.Fatalf("expected insertion ordering in schema list")
	}
}

func TestCorrectionTableAppendOnly(t *testing.T) {
	if !strings.Contains(insertCorrectionQuery, "mapping_corrections") {
		t.Fatalf("unexpected correction insert target")
	}
	for _, verb := range []string{"UPDATE", "DELETE"} {
		if strings.Contains(insertCorrectionQuery, verb) {
			t.Fatalf("correction insert must not %s", verb)
		}
	}
}
