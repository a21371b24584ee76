// Package ontology holds the in-memory entity index the resolver works
// against. The index is rebuilt from the entity table at startup and is
// read-only afterwards, so concurrent resolver calls share it without
// locks.
package ontology

import (
	"regexp"
	"sort"
	"strings"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

var curieRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*:\S+$`)

// IsCURIE reports whether a value has the prefix:reference identifier
// shape, e.g. MONDO:0004975 or ENSEMBL:ENSG00000274572.
func IsCURIE(value string) bool {
	return curieRe.MatchString(strings.TrimSpace(value))
}

// Index answers exact, identifier and fuzzy lookups over the loaded
// entities. Fuzzy candidates come from a trigram inverted index, so
// lookups stay sub-linear in the number of entities.
type Index struct {
	entities []domain.Entity
	byID     map[string]int
	byName   map[string][]int
	byXref   map[string][]int
	trigrams map[string][]int
	prefixes []string
}

// Build constructs the index. Entities are held sorted by id so every
// lookup path breaks ties the same way.
func Build(entities []domain.Entity) *Index {
	sorted := make([]domain.Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idx := &Index{
		entities: sorted,
		byID:     make(map[string]int, len(sorted)),
		byName:   make(map[string][]int),
		byXref:   make(map[string][]int),
		trigrams: make(map[string][]int),
	}
	prefixes := make(map[string]struct{})
	for i, entity := range sorted {
		idx.byID[entity.ID] = i
		idx.addName(entity.Name, i)
		for _, synonym := range entity.Synonyms {
			idx.addName(synonym, i)
		}
		idx.addXref(entity.ID, i, prefixes)
		for _, xref := range entity.Xrefs {
			idx.addXref(xref, i, prefixes)
		}
	}
	for prefix := range prefixes {
		idx.prefixes = append(idx.prefixes, prefix)
	}
	sort.Strings(idx.prefixes)
	return idx
}

func (idx *Index) addName(name string, i int) {
	key := normalise(name)
	if key == "" {
		return
	}
	idx.byName[key] = appendUnique(idx.byName[key], i)
	for _, gram := range Trigrams(key) {
		idx.trigrams[gram] = appendUnique(idx.trigrams[gram], i)
	}
}

func (idx *Index) addXref(xref string, i int, prefixes map[string]struct{}) {
	xref = strings.TrimSpace(xref)
	if xref == "" {
		return
	}
	idx.byXref[xref] = appendUnique(idx.byXref[xref], i)
	if cut := strings.IndexByte(xref, ':'); cut > 0 {
		prefixes[xref[:cut]] = struct{}{}
	}
}

// Size returns the number of indexed entities.
func (idx *Index) Size() int {
	return len(idx.entities)
}

// Get returns the entity with the given id.
func (idx *Index) Get(id string) (domain.Entity, bool) {
	i, ok := idx.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Entity{}, false
	}
	return idx.entities[i], true
}

// ExactMatches returns entities whose name or a synonym equals the
// mention, ignoring case, filtered by entity type.
func (idx *Index) ExactMatches(mention string, types []domain.EntityType) []domain.Entity {
	return idx.filter(idx.byName[normalise(mention)], types)
}

// LookupXref returns entities carrying the identifier as their id or
// a cross-reference, filtered by entity type.
func (idx *Index) LookupXref(identifier string, types []domain.EntityType) []domain.Entity {
	return idx.filter(idx.byXref[strings.TrimSpace(identifier)], types)
}

// Candidates returns up to limit entities sharing at least one trigram
// with the query, ordered by shared-trigram count descending and id
// ascending. The caller rescores them with a finer similarity.
func (idx *Index) Candidates(query string, types []domain.EntityType, limit int) []domain.Entity {
	grams := Trigrams(normalise(query))
	if len(grams) == 0 {
		return nil
	}
	counts := make(map[int]int)
	for _, gram := range grams {
		for _, i := range idx.trigrams[gram] {
			counts[i]++
		}
	}
	order := make([]int, 0, len(counts))
	for i := range counts {
		if typeAllowed(idx.entities[i].Type, types) {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		if counts[order[a]] != counts[order[b]] {
			return counts[order[a]] > counts[order[b]]
		}
		return idx.entities[order[a]].ID < idx.entities[order[b]].ID
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make([]domain.Entity, 0, len(order))
	for _, i := range order {
		out = append(out, idx.entities[i])
	}
	return out
}

// Prefixes returns the CURIE prefixes observed across entity ids and
// cross-references.
func (idx *Index) Prefixes() []string {
	return idx.prefixes
}

// InferPrefix picks the prefix to prepend to bare identifiers: the one
// that resolves the most of the sample values, ties broken
// alphabetically. It returns "" when the values already carry prefixes
// or no known prefix resolves any of them.
func (idx *Index) InferPrefix(values []string) string {
	var bare []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || IsCURIE(value) {
			continue
		}
		bare = append(bare, value)
	}
	if len(bare) == 0 {
		return ""
	}

	best := ""
	bestCount := 0
	for _, prefix := range idx.prefixes {
		count := 0
		for _, value := range bare {
			if len(idx.byXref[prefix+":"+value]) > 0 {
				count++
			}
		}
		if count > bestCount {
			best = prefix
			bestCount = count
		}
	}
	return best
}

func (idx *Index) filter(indices []int, types []domain.EntityType) []domain.Entity {
	out := make([]domain.Entity, 0, len(indices))
	for _, i := range indices {
		if typeAllowed(idx.entities[i].Type, types) {
			out = append(out, idx.entities[i])
		}
	}
	return out
}

func typeAllowed(entityType domain.EntityType, types []domain.EntityType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == entityType {
			return true
		}
	}
	return false
}

func normalise(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// Trigrams returns the padded character trigrams of a normalised
// string. Strings shorter than three runes yield a single gram so short
// symbols like gene names still index.
func Trigrams(value string) []string {
	runes := []rune(value)
	if len(runes) == 0 {
		return nil
	}
	padded := make([]rune, 0, len(runes)+3)
	padded = append(padded, ' ', ' ')
	padded = append(padded, runes...)
	padded = append(padded, ' ')
	seen := make(map[string]struct{})
	out := make([]string, 0, len(padded)-2)
	for i := 0; i+3 <= len(padded); i++ {
		gram := string(padded[i : i+3])
		if _, dup := seen[gram]; dup {
			continue
		}
		seen[gram] = struct{}{}
		out = append(out, gram)
	}
	return out
}

func appendUnique(indices []int, i int) []int {
	if len(indices) > 0 && indices[len(indices)-1] == i {
		return indices
	}
	return append(indices, i)
}
