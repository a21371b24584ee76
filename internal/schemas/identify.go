package schemas

import "github.com/harmonia-labs/harmonia-go/internal/domain"

// IdentifyTarget picks the candidate schema whose column names and
// aliases overlap the most source headers. Headers and aliases are
// compared in snake_case so cosmetic header variants still count. Ties
// keep the earlier candidate; when nothing overlaps the last candidate
// wins, which puts the permissive fallback at the end of the list.
func IdentifyTarget(headers []string, candidates []domain.Schema) (domain.Schema, int) {
	if len(candidates) == 0 {
		return domain.Schema{}, 0
	}

	normalised := make([]string, 0, len(headers))
	for _, header := range headers {
		normalised = append(normalised, ToSnakeCase(header))
	}

	best := len(candidates) - 1
	bestScore := 0
	for i, candidate := range candidates {
		score := overlapScore(normalised, candidate)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return candidates[best], bestScore
}

func overlapScore(headers []string, schema domain.Schema) int {
	known := make(map[string]struct{})
	for _, col := range schema.Columns {
		known[ToSnakeCase(col.Name)] = struct{}{}
		for _, alias := range col.Aliases {
			known[ToSnakeCase(alias)] = struct{}{}
		}
	}
	score := 0
	for _, header := range headers {
		if _, ok := known[header]; ok {
			score++
		}
	}
	return score
}
