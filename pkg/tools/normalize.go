package tools

import (
	"regexp"
	"strings"
)

// parentheticalPattern matches character-name parentheticals like (O.S.), (V.O.), (CONT'D).
var parentheticalPattern = regexp.MustCompile(`\s*\([^)]*\)\s*`)

// normalizeCharacterName strips parentheticals and normalizes case/whitespace
// so that user-supplied and stored character names compare equal.
func normalizeCharacterName(name string) string {
	name = parentheticalPattern.ReplaceAllString(name, " ")
	return strings.ToUpper(strings.TrimSpace(name))
}
