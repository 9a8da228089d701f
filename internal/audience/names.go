package audience

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName capitalizes the first letter of a player name and lowercases
// the rest. It fails on empty names and names with spaces.
func NormalizeName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || !utf8.ValidString(name) || strings.ContainsAny(name, " \t") {
		return "", false
	}
	return cases.Title(language.Und).String(name), true
}
