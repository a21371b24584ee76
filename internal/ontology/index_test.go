package ontology

import (
	"testing"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

func fixtureEntities() []domain.Entity {
	return []domain.Entity{
		{
			ID:       "MONDO:0004975",
			Name:     "Alzheimer disease",
			Type:     domain.EntityDisease,
			Synonyms: []string{"Alzheimer's disease", "AD"},
			Xrefs:    []string{"DOID:10652", "MESH:D000544"},
		},
		{
			ID:    "MONDO:0005148",
			Name:  "type 2 diabetes mellitus",
			Type:  domain.EntityDisease,
			Xrefs: []string{"DOID:9352"},
		},
		{
			ID:    "HGNC:613",
			Name:  "APOE",
			Type:  domain.EntityGene,
			Xrefs: []string{"ENSEMBL:ENSG00000130203", "NCBIGene:348"},
		},
		{
			ID:    "HGNC:620",
			Name:  "APP",
			Type:  domain.EntityGene,
			Xrefs: []string{"ENSEMBL:ENSG00000142192", "NCBIGene:351"},
		},
	}
}

func TestIsCURIE(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"MONDO:0004975", true},
		{"ENSEMBL:ENSG00000130203", true},
		{"alzheimer disease", false},
		{"ENSG00000130203", false},
		{"", false},
		{":missing-prefix", false},
	}
	for _, tc := range cases {
		if got := IsCURIE(tc.in); got != tc.want {
			t.Errorf("IsCURIE(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExactMatches(t *testing.T) {
	idx := Build(fixtureEntities())

	matches := idx.ExactMatches("alzheimer's disease", nil)
	if len(matches) != 1 || matches[0].ID != "MONDO:0004975" {
		t.Fatalf("synonym match = %+v", matches)
	}
	matches = idx.ExactMatches("  Alzheimer   Disease ", nil)
	if len(matches) != 1 {
		t.Fatalf("whitespace-insensitive match = %+v", matches)
	}
	if got := idx.ExactMatches("alzheimer disease", []domain.EntityType{domain.EntityGene}); len(got) != 0 {
		t.Fatalf("type filter should exclude, got %+v", got)
	}
}

func TestLookupXref(t *testing.T) {
	idx := Build(fixtureEntities())

	if got := idx.LookupXref("DOID:10652", nil); len(got) != 1 || got[0].ID != "MONDO:0004975" {
		t.Fatalf("xref lookup = %+v", got)
	}
	if got := idx.LookupXref("HGNC:613", nil); len(got) != 1 || got[0].Name != "APOE" {
		t.Fatalf("id-as-xref lookup = %+v", got)
	}
	if got := idx.LookupXref("DOID:0", nil); len(got) != 0 {
		t.Fatalf("unknown xref = %+v", got)
	}
}

func TestCandidatesRankedBySharedTrigrams(t *testing.T) {
	idx := Build(fixtureEntities())

	candidates := idx.Candidates("alzheimers", nil, 10)
	if len(candidates) == 0 || candidates[0].ID != "MONDO:0004975" {
		t.Fatalf("candidates = %+v", candidates)
	}

	candidates = idx.Candidates("diabetes type 2", []domain.EntityType{domain.EntityDisease}, 1)
	if len(candidates) != 1 || candidates[0].ID != "MONDO:0005148" {
		t.Fatalf("limited candidates = %+v", candidates)
	}
}

func TestInferPrefix(t *testing.T) {
	idx := Build(fixtureEntities())

	if got := idx.InferPrefix([]string{"ENSG00000130203", "ENSG00000142192"}); got != "ENSEMBL" {
		t.Fatalf("InferPrefix = %q, want ENSEMBL", got)
	}
	if got := idx.InferPrefix([]string{"348", "351"}); got != "NCBIGene" {
		t.Fatalf("InferPrefix = %q, want NCBIGene", got)
	}
	// Already CURIE-shaped values need no prefix.
	if got := idx.InferPrefix([]string{"MONDO:0004975"}); got != "" {
		t.Fatalf("InferPrefix = %q, want empty", got)
	}
	if got := idx.InferPrefix([]string{"not-an-id"}); got != "" {
		t.Fatalf("InferPrefix on unknowns = %q, want empty", got)
	}
}

func TestBuildSortsAndSizes(t *testing.T) {
	idx := Build(fixtureEntities())
	if idx.Size() != 4 {
		t.Fatalf("Size = %d", idx.Size())
	}
	if _, ok := idx.Get("HGNC:620"); !ok {
		t.Fatal("Get missed known entity")
	}
	if _, ok := idx.Get("HGNC:999"); ok {
		t.Fatal("Get returned unknown entity")
	}
}
