package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics and collapses whitespace so that
// "Paracétamol  " and "paracetamol" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// SearchText builds the value stored in a search_text column from the
// searchable fields of a record. Empty parts are skipped.
func SearchText(parts ...string) string {
	var folded []string
	for _, p := range parts {
		if f := Fold(p); f != "" {
			folded = append(folded, f)
		}
	}
	return strings.Join(folded, " ")
}
