// Package resolver maps free-text mentions and identifiers to canonical
// ontology entities with confidence scoring.
package resolver

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/ontology"
)

// candidateFactor widens the trigram candidate pool beyond the
// requested limit so rescoring has something to reorder.
const candidateFactor = 8

// DefaultLimit caps search results when the caller does not ask for a
// specific count.
const DefaultLimit = 10

// freeTextThreshold is the share of CURIE-shaped values below which a
// column is treated as free text.
const freeTextThreshold = 0.5

// Match is one scored search result. Score is the raw similarity in
// [0,1]; NormalisedScore rescales it the way mapping confidences are
// reported.
type Match struct {
	Entity          domain.Entity
	Score           float64
	NormalisedScore float64
}

// Resolver runs lookups against a shared read-only entity index.
type Resolver struct {
	index *ontology.Index
}

func New(index *ontology.Index) *Resolver {
	return &Resolver{index: index}
}

// Search returns up to limit entities matching the query, best first.
// Exact name or synonym matches score 1.0; identifier-shaped queries go
// through xref lookup; everything else is scored by combined trigram
// and edit-distance similarity. Ties break by entity id ascending.
func (r *Resolver) Search(types []domain.EntityType, query string, limit int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}
	for _, t := range types {
		if _, err := domain.ParseEntityType(string(t)); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
		}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	if ontology.IsCURIE(query) {
		matches := exactMatches(r.index.LookupXref(query, types))
		if len(matches) > limit {
			matches = matches[:limit]
		}
		return matches, nil
	}

	seen := make(map[string]struct{})
	matches := exactMatches(r.index.ExactMatches(query, types))
	for _, match := range matches {
		seen[match.Entity.ID] = struct{}{}
	}

	for _, candidate := range r.index.Candidates(query, types, limit*candidateFactor) {
		if _, dup := seen[candidate.ID]; dup {
			continue
		}
		score := Similarity(query, candidate)
		if score <= 0 {
			continue
		}
		matches = append(matches, newMatch(candidate, score))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Entity.ID < matches[j].Entity.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ClassifyValues picks the mapping route for a column: identifier
// lookup when at least half of the distinct values are CURIE-shaped,
// free-text resolution otherwise.
func ClassifyValues(values []string) domain.MappingType {
	total := 0
	curies := 0
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		total++
		if ontology.IsCURIE(value) {
			curies++
		}
	}
	if total == 0 {
		return domain.MappingFreeText
	}
	if float64(curies)/float64(total) >= freeTextThreshold {
		return domain.MappingXref
	}
	return domain.MappingFreeText
}

// ResolveMentions maps a column's distinct values to entities and
// returns the mapping operations' payload. Mode auto routes by value
// shape; bare identifiers get the inferred CURIE prefix before lookup.
// Values that resolve to nothing still yield a mapping with no entity,
// keeping the unmapped mentions visible in the ledger.
func (r *Resolver) ResolveMentions(types []domain.EntityType, values []string, mode string) (domain.MappingType, []domain.Mapping, error) {
	var mappingType domain.MappingType
	switch mode {
	case "", domain.MatchModeAuto:
		mappingType = ClassifyValues(values)
	case domain.MatchModeFreeText:
		mappingType = domain.MappingFreeText
	case domain.MatchModeXref:
		mappingType = domain.MappingXref
	default:
		return "", nil, fmt.Errorf("%w: unknown match mode %q", domain.ErrInvalidQuery, mode)
	}

	prefix := ""
	if mappingType == domain.MappingXref {
		prefix = r.index.InferPrefix(values)
	}

	mappings := make([]domain.Mapping, 0, len(values))
	for _, value := range values {
		mention := strings.TrimSpace(value)
		if mention == "" {
			continue
		}
		mapping := domain.Mapping{
			MappingID: uuid.NewString(),
			Mention:   mention,
		}
		var match *Match
		if mappingType == domain.MappingXref {
			identifier := mention
			if prefix != "" && !ontology.IsCURIE(identifier) {
				identifier = prefix + ":" + identifier
			}
			if found := exactMatches(r.index.LookupXref(identifier, types)); len(found) > 0 {
				match = &found[0]
			}
		} else {
			found, err := r.Search(types, mention, 1)
			if err != nil {
				return "", nil, err
			}
			if len(found) > 0 {
				match = &found[0]
			}
		}
		if match != nil {
			mapping.EntityID = match.Entity.ID
			mapping.EntityName = match.Entity.Name
			mapping.Types = []string{string(match.Entity.Type)}
			mapping.Score = match.Score
			mapping.NormalisedScore = match.NormalisedScore
		}
		mappings = append(mappings, mapping)
	}
	return mappingType, mappings, nil
}

// Similarity combines trigram Jaccard overlap with normalised edit
// distance against the entity's name and synonyms, keeping the best.
func Similarity(query string, entity domain.Entity) float64 {
	best := nameSimilarity(query, entity.Name)
	for _, synonym := range entity.Synonyms {
		if s := nameSimilarity(query, synonym); s > best {
			best = s
		}
	}
	return best
}

func nameSimilarity(query, name string) float64 {
	a := strings.ToLower(strings.Join(strings.Fields(query), " "))
	b := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return 0.5*trigramJaccard(a, b) + 0.5*editSimilarity(a, b)
}

func trigramJaccard(a, b string) float64 {
	gramsA := ontology.Trigrams(a)
	gramsB := ontology.Trigrams(b)
	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(gramsA))
	for _, gram := range gramsA {
		setA[gram] = struct{}{}
	}
	shared := 0
	for _, gram := range gramsB {
		if _, ok := setA[gram]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(gramsA)+len(gramsB)-shared)
}

func editSimilarity(a, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

// NormaliseScore rescales a raw similarity the way mapping confidences
// are reported.
func NormaliseScore(score float64) float64 {
	return (score + 1) / 2
}

// DisplayScore buckets a confidence to the nearest multiple of 0.05 for
// presentation; the continuous value stays on the mapping.
func DisplayScore(score float64) float64 {
	return math.Round(score/0.05) * 0.05
}

func newMatch(entity domain.Entity, score float64) Match {
	return Match{Entity: entity, Score: score, NormalisedScore: NormaliseScore(score)}
}

func exactMatches(entities []domain.Entity) []Match {
	out := make([]Match, 0, len(entities))
	for _, entity := range entities {
		out = append(out, newMatch(entity, 1))
	}
	return out
}
