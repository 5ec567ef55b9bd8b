package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases a label and strips diacritics so that "Fournitures de
// bureau" and "fournitures de BUREAU" or "Électroménager" and
// "electromenager" compare equal.
func Fold(label string) string {
	folded, _, err := transform.String(foldTransformer, label)
	if err != nil {
		folded = label
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
