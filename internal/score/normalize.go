package score

import (
	"strings"

	"golang.org/x/text/width"
)

// Normalize strips everything except CJK unified ideographs (U+4E00 to
// U+9FA5), ASCII letters and ASCII digits. Full-width letters and digits are
// folded to ASCII first so that "１２３" and "123" compare equal.
func Normalize(text string) string {
	folded := width.Narrow.String(text)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func keep(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FA5:
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	}
	return false
}

// NormalizeWords applies Normalize to each whitespace-separated word and
// drops words that become empty, keeping word boundaries for WER.
func NormalizeWords(text string) string {
	fields := strings.Fields(text)
	words := fields[:0]
	for _, f := range fields {
		if w := Normalize(f); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}
