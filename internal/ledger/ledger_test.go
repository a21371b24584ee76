package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/repo/memory"
)

func TestRecordAssignsEmissionOrderPerTask(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	led := New(store, store)

	for _, taskID := range []string{"t1", "t1", "t2", "t1"} {
		if _, err := led.Record(ctx, "run-1", taskID, domain.DecisionURLRetrieved, "https://example.org/a.csv"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	decisions, err := led.ListForRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListForRun: %v", err)
	}
	seqs := map[string][]int64{}
	for _, decision := range decisions {
		seqs[decision.TaskID] = append(seqs[decision.TaskID], decision.Seq)
	}
	if got := seqs["t1"]; len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("t1 seqs = %v", got)
	}
	if got := seqs["t2"]; len(got) != 1 || got[0] != 0 {
		t.Fatalf("t2 seqs = %v", got)
	}
}

func TestRecordAlignmentMergesPerColumn(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	led := New(store, store)

	first := []domain.Operation{domain.NewRenameOp("gender", "sex")}
	if _, err := led.RecordAlignment(ctx, "run-1", "t1", "sex", first); err != nil {
		t.Fatalf("RecordAlignment: %v", err)
	}
	second := []domain.Operation{domain.NewSetDefaultOp("unknown")}
	if _, err := led.RecordAlignment(ctx, "run-1", "t1", "sex", second); err != nil {
		t.Fatalf("RecordAlignment: %v", err)
	}
	if _, err := led.RecordAlignment(ctx, "run-1", "t1", "age", []domain.Operation{domain.NewDerivedOp()}); err != nil {
		t.Fatalf("RecordAlignment: %v", err)
	}

	decisions, err := led.ListForRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListForRun: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("decisions = %d, want 2 (one per column)", len(decisions))
	}

	alignment, err := led.ColumnAlignment(ctx, "run-1", "sex")
	if err != nil {
		t.Fatalf("ColumnAlignment: %v", err)
	}
	if len(alignment.Operations) != 2 {
		t.Fatalf("sex operations = %d, want 2", len(alignment.Operations))
	}
	if alignment.Operations[0].Kind != domain.OpRename || alignment.Operations[1].Kind != domain.OpSetDefault {
		t.Fatalf("operation order = %v, %v", alignment.Operations[0].Kind, alignment.Operations[1].Kind)
	}

	if _, err := led.ColumnAlignment(ctx, "run-1", "height"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing column err = %v, want ErrNotFound", err)
	}
}

func TestColumnAlignmentReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	led := New(store, store)

	// Two process tasks of the same run each align a column named sex;
	// the reader must see the later task's trail.
	first := []domain.Operation{domain.NewRenameOp("gender", "sex")}
	if _, err := led.RecordAlignment(ctx, "run-1", "t1", "sex", first); err != nil {
		t.Fatalf("RecordAlignment: %v", err)
	}
	second := []domain.Operation{
		domain.NewRenameOp("Sex", "sex"),
		domain.NewSetDefaultOp("unknown"),
	}
	if _, err := led.RecordAlignment(ctx, "run-1", "t2", "sex", second); err != nil {
		t.Fatalf("RecordAlignment: %v", err)
	}

	alignment, err := led.ColumnAlignment(ctx, "run-1", "sex")
	if err != nil {
		t.Fatalf("ColumnAlignment: %v", err)
	}
	if len(alignment.Operations) != 2 {
		t.Fatalf("operations = %d, want the later task's 2", len(alignment.Operations))
	}
	if alignment.Operations[0].Rename == nil || alignment.Operations[0].Rename.OriginalName != "Sex" {
		t.Fatalf("operations[0] = %+v, want the later task's rename", alignment.Operations[0])
	}
}

func TestSequenceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	led := New(store, store)
	if _, err := led.Record(ctx, "run-1", "t1", domain.DecisionFileCopied, "a.csv"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// A fresh ledger over the same storage must continue, not restart,
	// the sequence.
	led = New(store, store)
	decision, err := led.Record(ctx, "run-1", "t1", domain.DecisionFileCopied, "b.csv")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if decision.Seq != 1 {
		t.Fatalf("seq after restart = %d, want 1", decision.Seq)
	}
}

func mappingFixture(t *testing.T, led *Ledger) domain.Mapping {
	t.Helper()
	mapping := domain.Mapping{
		MappingID:       "map-1",
		Mention:         "alzheimers",
		EntityID:        "MONDO:0004975",
		EntityName:      "Alzheimer disease",
		Types:           []string{"Disease"},
		Score:           0.82,
		NormalisedScore: 0.91,
	}
	op := domain.NewMappingOp(domain.MappingFreeText, []domain.Mapping{mapping})
	if _, err := led.RecordAlignment(context.Background(), "run-1", "t1", "trait_id", []domain.Operation{op}); err != nil {
		t.Fatalf("RecordAlignment: %v", err)
	}
	return mapping
}

func TestCorrectMapping(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	led := New(store, store)
	mappingFixture(t, led)

	entity := domain.Entity{
		ID:   "MONDO:0007088",
		Name: "Alzheimer disease type 1",
		Type: domain.EntityDisease,
	}
	corrected, err := led.CorrectMapping(ctx, "run-1", "map-1", entity, "curator@example.org")
	if err != nil {
		t.Fatalf("CorrectMapping: %v", err)
	}
	if corrected.EntityID != entity.ID || corrected.NormalisedScore != 1.0 {
		t.Fatalf("corrected = %+v", corrected)
	}
	if corrected.Mention != "alzheimers" || corrected.MappingID != "map-1" {
		t.Fatalf("mention/mapping id must be preserved, got %+v", corrected)
	}

	mappings, err := led.Mappings(ctx, "run-1")
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(mappings) != 1 || mappings[0].EntityID != entity.ID {
		t.Fatalf("mappings = %+v", mappings)
	}

	// Same correction again: same end state, audit trail grows.
	if _, err := led.CorrectMapping(ctx, "run-1", "map-1", entity, "curator@example.org"); err != nil {
		t.Fatalf("CorrectMapping repeat: %v", err)
	}
	events := store.Corrections()
	if len(events) != 2 {
		t.Fatalf("audit events = %d, want 2", len(events))
	}
	if events[0].FromEntityID != "MONDO:0004975" || events[0].ToEntityID != entity.ID {
		t.Fatalf("audit event = %+v", events[0])
	}

	if _, err := led.CorrectMapping(ctx, "run-1", "nope", entity, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown mapping err = %v, want ErrNotFound", err)
	}
}

func TestAlignmentCodecRoundTrip(t *testing.T) {
	alignment := domain.ColumnAlignment{
		ColumnName: "trait_id",
		Operations: []domain.Operation{
			domain.NewRenameOp("trait", "trait_id"),
			domain.NewMappingOp(domain.MappingXref, []domain.Mapping{{
				MappingID:       "map-9",
				Mention:         "MONDO:0004975",
				EntityID:        "MONDO:0004975",
				EntityName:      "Alzheimer disease",
				Types:           []string{"Disease"},
				Score:           1,
				NormalisedScore: 1,
			}}),
			domain.NewExtractedOp("GRCh38", []domain.Reference{{Text: "readme", URL: "https://example.org/readme"}}),
			domain.NewSetDefaultOp("unknown"),
		},
	}
	raw, err := EncodeAlignment(&alignment)
	if err != nil {
		t.Fatalf("EncodeAlignment: %v", err)
	}
	back, err := DecodeAlignment(raw)
	if err != nil {
		t.Fatalf("DecodeAlignment: %v", err)
	}
	if back.ColumnName != alignment.ColumnName || len(back.Operations) != len(alignment.Operations) {
		t.Fatalf("round trip shape = %+v", back)
	}
	for i, op := range back.Operations {
		if op.Kind != alignment.Operations[i].Kind {
			t.Fatalf("operations[%d].Kind = %v, want %v", i, op.Kind, alignment.Operations[i].Kind)
		}
	}
	if back.Operations[2].Inference.Answer != "GRCh38" {
		t.Fatalf("extracted answer = %q", back.Operations[2].Inference.Answer)
	}
}
