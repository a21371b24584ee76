package schemas

import (
	"context"
	"errors"
	"testing"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/repo/memory"
)

func TestToSnakeCase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"P-value", "p_value"},
		{"GenomeBuild", "genome_build"},
		{"#CHROM", "chrom"},
		{"hm_effect_allele_frequency", "hm_effect_allele_frequency"},
		{"LOG10P", "log_10_p"},
		{"A1FREQ", "a_1_freq"},
		{"  Sample Size  ", "sample_size"},
	}
	for _, tc := range cases {
		if got := ToSnakeCase(tc.in); got != tc.want {
			t.Errorf("ToSnakeCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseSpec(t *testing.T) {
	input := []byte(`
schema: harmonia.schema.v1
name: clinical
description: Clinical measurements.
columns:
  - name: subject_id
    data_type: string
    required: true
  - name: condition
    data_type: entity
    entity_types: [Disease]
    match_mode: free_text
  - name: visit
    data_type: int64
    default: "0"
    aliases: [VISIT, VisitNumber]
  - name: record_id
    data_type: string
    inferences:
      - op: concat
        requires: [subject_id, visit]
        sep: "-"
`)
	schema, err := ParseSpec(input)
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if schema.Name != "clinical" {
		t.Fatalf("name = %q", schema.Name)
	}
	if len(schema.Columns) != 4 {
		t.Fatalf("columns = %d, want 4", len(schema.Columns))
	}
	condition, ok := schema.Column("condition")
	if !ok {
		t.Fatal("condition column missing")
	}
	if condition.MatchMode != domain.MatchModeFreeText {
		t.Fatalf("match mode = %q", condition.MatchMode)
	}
	visit, _ := schema.Column("visit")
	if !visit.HasDefault || visit.Default != "0" {
		t.Fatalf("visit default = %+v", visit)
	}
	record, _ := schema.Column("record_id")
	if len(record.Inferences) != 1 || record.Inferences[0].Op != domain.InferConcat {
		t.Fatalf("record_id inferences = %+v", record.Inferences)
	}
}

func TestParseSpecRejectsDefects(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "wrong schema tag",
			input: "schema: harmonia.schema.v2\nname: x\ncolumns:\n  - {name: a, data_type: string}\n",
		},
		{
			name:  "unknown data type",
			input: "schema: harmonia.schema.v1\nname: x\ncolumns:\n  - {name: a, data_type: varchar}\n",
			want:  domain.ErrInvalidColumn,
		},
		{
			name:  "entity without types",
			input: "schema: harmonia.schema.v1\nname: x\ncolumns:\n  - {name: a, data_type: entity}\n",
			want:  domain.ErrInvalidColumn,
		},
		{
			name:  "entity params on string",
			input: "schema: harmonia.schema.v1\nname: x\ncolumns:\n  - {name: a, data_type: string, entity_types: [Disease]}\n",
			want:  domain.ErrInvalidColumn,
		},
		{
			name:  "duplicate column",
			input: "schema: harmonia.schema.v1\nname: x\ncolumns:\n  - {name: a, data_type: string}\n  - {name: a, data_type: string}\n",
			want:  domain.ErrInvalidColumn,
		},
		{
			name:  "malformed inference",
			input: "schema: harmonia.schema.v1\nname: x\ncolumns:\n  - name: a\n    data_type: string\n    inferences:\n      - {op: copy}\n",
			want:  domain.ErrInvalidColumn,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSpec([]byte(tc.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSpecRoundTrip(t *testing.T) {
	spec := SpecFromDomain(gwasSchema())
	back, err := spec.ToDomain()
	if err != nil {
		t.Fatalf("ToDomain: %v", err)
	}
	if len(back.Columns) != len(gwasSchema().Columns) {
		t.Fatalf("columns = %d, want %d", len(back.Columns), len(gwasSchema().Columns))
	}
}

func TestIdentifyTarget(t *testing.T) {
	candidates := Builtins()

	gwasHeaders := []string{"CHR", "BP", "A1", "A2", "BETA", "SE", "P", "EAF"}
	schema, score := IdentifyTarget(gwasHeaders, candidates)
	if schema.Name != "GWAS" {
		t.Fatalf("schema = %q, want GWAS", schema.Name)
	}
	if score == 0 {
		t.Fatal("expected a positive overlap score")
	}

	schema, score = IdentifyTarget([]string{"wavelength", "absorbance"}, candidates)
	if schema.Name != "Other" {
		t.Fatalf("fallback schema = %q, want Other", schema.Name)
	}
	if score != 0 {
		t.Fatalf("fallback score = %d, want 0", score)
	}
}

func TestRegistryCreate(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(memory.NewStore())

	schema := domain.Schema{
		Name: "clinical",
		Columns: []domain.ColumnDefinition{
			{Name: "subject_id", DataType: domain.DataTypeString, Required: true},
		},
	}
	created, err := registry.Create(ctx, schema)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	if _, err := registry.Create(ctx, schema); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateName", err)
	}
	if _, err := registry.Create(ctx, domain.Schema{Name: "GWAS"}); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("builtin collision err = %v, want ErrDuplicateName", err)
	}

	bad := domain.Schema{
		Name:    "bad",
		Columns: []domain.ColumnDefinition{{Name: "a", DataType: "varchar"}},
	}
	if _, err := registry.Create(ctx, bad); !errors.Is(err, domain.ErrInvalidColumn) {
		t.Fatalf("invalid column err = %v, want ErrInvalidColumn", err)
	}
}

func TestRegistryGetAndList(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(memory.NewStore())

	if _, err := registry.Get(ctx, "RNA-seq"); err != nil {
		t.Fatalf("Get builtin: %v", err)
	}
	if _, err := registry.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get unknown err = %v, want ErrNotFound", err)
	}

	if _, err := registry.Create(ctx, domain.Schema{
		Name:    "clinical",
		Columns: []domain.ColumnDefinition{{Name: "subject_id", DataType: domain.DataTypeString}},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	all, err := registry.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != len(Builtins())+1 {
		t.Fatalf("List len = %d, want %d", len(all), len(Builtins())+1)
	}
	if all[len(all)-1].Name != "clinical" {
		t.Fatalf("last schema = %q, want clinical", all[len(all)-1].Name)
	}

	candidates, err := registry.Candidates(ctx)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if last := candidates[len(candidates)-1]; last.Name != "Other" {
		t.Fatalf("last candidate = %q, want Other", last.Name)
	}
}

func TestDataTypeCatalogue(t *testing.T) {
	entity, err := GetDataType(domain.DataTypeEntity)
	if err != nil {
		t.Fatalf("GetDataType: %v", err)
	}
	if len(entity.Params) != 2 {
		t.Fatalf("entity params = %d, want 2", len(entity.Params))
	}
	var matchMode domain.DataTypeParam
	for _, param := range entity.Params {
		if param.Key == domain.ParamMatchMode {
			matchMode = param
		}
	}
	if matchMode.Default != domain.MatchModeAuto {
		t.Fatalf("match mode default = %q", matchMode.Default)
	}

	if _, err := GetDataType("varchar"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown data type err = %v, want ErrNotFound", err)
	}
}
