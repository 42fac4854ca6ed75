package schema

import (
	"regexp"
	"strings"
	"unicode"
)

var wordSeparators = regexp.MustCompile(`[_\-.\s]+`)

// Label turns a field name into a display label: separators become spaces,
// camelCase boundaries are split and every word is capitalised.
// "unitPrice" and "unit_price" both become "Unit Price".
func Label(name string) string {
	var words []string
	for _, part := range wordSeparators.Split(name, -1) {
		for _, w := range splitCamel(part) {
			if w == "" {
				continue
			}
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			words = append(words, string(r))
		}
	}
	return strings.Join(words, " ")
}

func splitCamel(s string) []string {
	var (
		words []string
		cur   []rune
	)
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && boundary(runes[i-1], r) {
			words = append(words, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words
}

func boundary(prev, r rune) bool {
	return (unicode.IsLower(prev) && unicode.IsUpper(r)) ||
		(unicode.IsLetter(prev) && unicode.IsDigit(r)) ||
		(unicode.IsDigit(prev) && unicode.IsLetter(r))
}
