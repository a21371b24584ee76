package schemas

import (
	"regexp"
	"strings"
)

var (
	nonWordRe    = regexp.MustCompile(`\W+`)
	digitAlphaRe = regexp.MustCompile(`(\d)([a-zA-Z])`)
	alphaDigitRe = regexp.MustCompile(`([a-zA-Z])(\d)`)
	camelRe      = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// ToSnakeCase canonicalises a source column header: non-word runs become
// underscores, digit/letter and CamelCase boundaries split, and the
// result is lowercased with edge underscores trimmed.
func ToSnakeCase(s string) string {
	s = nonWordRe.ReplaceAllString(s, "_")
	s = digitAlphaRe.ReplaceAllString(s, "${1}_${2}")
	s = alphaDigitRe.ReplaceAllString(s, "${1}_${2}")
	s = camelRe.ReplaceAllString(s, "${1}_${2}")
	s = strings.ToLower(s)
	return strings.Trim(s, "_")
}
