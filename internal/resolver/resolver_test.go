package resolver

import (
	"errors"
	"math"
	"testing"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/ontology"
)

func fixtureIndex() *ontology.Index {
	return ontology.Build([]domain.Entity{
		{
			ID:       "MONDO:0004975",
			Name:     "Alzheimer disease",
			Type:     domain.EntityDisease,
			Synonyms: []string{"Alzheimer's disease", "AD"},
			Xrefs:    []string{"DOID:10652"},
		},
		{
			ID:   "MONDO:0004976",
			Name: "amyotrophic lateral sclerosis",
			Type: domain.EntityDisease,
		},
		{
			ID:    "HGNC:613",
			Name:  "APOE",
			Type:  domain.EntityGene,
			Xrefs: []string{"ENSEMBL:ENSG00000130203"},
		},
		{
			ID:    "HGNC:620",
			Name:  "APP",
			Type:  domain.EntityGene,
			Xrefs: []string{"ENSEMBL:ENSG00000142192"},
		},
	})
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	r := New(fixtureIndex())
	if _, err := r.Search(nil, "   ", 5); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
	if _, err := r.Search([]domain.EntityType{"Nonsense"}, "apoe", 5); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("bad type err = %v, want ErrInvalidQuery", err)
	}
}

func TestSearchExactMatchScoresOne(t *testing.T) {
	r := New(fixtureIndex())
	matches, err := r.Search(nil, "alzheimer's disease", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) == 0 || matches[0].Entity.ID != "MONDO:0004975" {
		t.Fatalf("matches = %+v", matches)
	}
	if matches[0].Score != 1 || matches[0].NormalisedScore != 1 {
		t.Fatalf("exact match scores = %v/%v", matches[0].Score, matches[0].NormalisedScore)
	}
}

func TestSearchFuzzyRanksClosestFirst(t *testing.T) {
	r := New(fixtureIndex())
	matches, err := r.Search([]domain.EntityType{domain.EntityDisease}, "alzheimers desease", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) == 0 || matches[0].Entity.ID != "MONDO:0004975" {
		t.Fatalf("matches = %+v", matches)
	}
	if matches[0].Score >= 1 || matches[0].Score <= 0 {
		t.Fatalf("fuzzy score = %v, want within (0,1)", matches[0].Score)
	}
	if got := NormaliseScore(matches[0].Score); got != matches[0].NormalisedScore {
		t.Fatalf("normalised = %v, want %v", matches[0].NormalisedScore, got)
	}
}

func TestSearchIdentifierQuery(t *testing.T) {
	r := New(fixtureIndex())
	matches, err := r.Search(nil, "ENSEMBL:ENSG00000130203", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Entity.Name != "APOE" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestClassifyValues(t *testing.T) {
	if got := ClassifyValues([]string{"alzheimers", "parkinsons", "MONDO:0004975"}); got != domain.MappingFreeText {
		t.Fatalf("ClassifyValues = %v, want free_text", got)
	}
	if got := ClassifyValues([]string{"MONDO:0004975", "MONDO:0005148", "unknown"}); got != domain.MappingXref {
		t.Fatalf("ClassifyValues = %v, want xref", got)
	}
	if got := ClassifyValues(nil); got != domain.MappingFreeText {
		t.Fatalf("ClassifyValues(nil) = %v, want free_text", got)
	}
}

func TestResolveMentionsFreeText(t *testing.T) {
	r := New(fixtureIndex())
	mappingType, mappings, err := r.ResolveMentions([]domain.EntityType{domain.EntityDisease}, []string{"alzheimers", "no such disease"}, domain.MatchModeAuto)
	if err != nil {
		t.Fatalf("ResolveMentions: %v", err)
	}
	if mappingType != domain.MappingFreeText {
		t.Fatalf("mappingType = %v", mappingType)
	}
	if len(mappings) != 2 {
		t.Fatalf("mappings = %d, want 2", len(mappings))
	}
	if mappings[0].EntityID != "MONDO:0004975" {
		t.Fatalf("mappings[0] = %+v", mappings[0])
	}
	if mappings[0].MappingID == "" || mappings[1].MappingID == "" {
		t.Fatal("every mapping needs an id")
	}
}

func TestResolveMentionsInfersPrefix(t *testing.T) {
	r := New(fixtureIndex())
	mappingType, mappings, err := r.ResolveMentions(nil, []string{"ENSG00000130203", "ENSG00000142192"}, domain.MatchModeXref)
	if err != nil {
		t.Fatalf("ResolveMentions: %v", err)
	}
	if mappingType != domain.MappingXref {
		t.Fatalf("mappingType = %v", mappingType)
	}
	if mappings[0].EntityName != "APOE" || mappings[1].EntityName != "APP" {
		t.Fatalf("mappings = %+v", mappings)
	}
	if mappings[0].Score != 1 {
		t.Fatalf("xref score = %v, want 1", mappings[0].Score)
	}
}

func TestDisplayScoreBuckets(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0.91, 0.90},
		{0.93, 0.95},
		{1.0, 1.0},
		{0.0, 0.0},
	}
	for _, tc := range cases {
		if got := DisplayScore(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("DisplayScore(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
