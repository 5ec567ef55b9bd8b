package textutil

import "strings"

// fileNameReplacer strips characters that are invalid in Windows or Linux
// filenames. Accented letters are kept; object names stay French.
var fileNameReplacer = strings.NewReplacer(
	"<", "",
	">", "",
	":", "",
	"\"", "",
	"/", "",
	"\\", "",
	"|", "",
	"?", "",
	"*", "",
)

// SanitizeFileName removes filesystem-unsafe characters from an object name
// and trims surrounding whitespace. Returns fallback when nothing is left.
func SanitizeFileName(name, fallback string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	if name == "" {
		return fallback
	}
	return name
}
