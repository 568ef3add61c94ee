// Package wordlist provides word list helpers for practice drills.
package wordlist

import "strings"

// FilterFunc returns true when a word should be kept.
type FilterFunc func(string) bool

// TypableWord keeps plain ASCII words, allowing inner apostrophes and hyphens.
func TypableWord(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		ch := word[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case (ch == '\'' || ch == '-') && i > 0 && i < len(word)-1:
		default:
			return false
		}
	}
	return true
}

// FromText collects distinct lowercased words from text in first-seen order.
// Outer punctuation is stripped and single letters are skipped.
func FromText(text string, keep FilterFunc) []string {
	seen := map[string]struct{}{}
	var words []string
	for _, field := range strings.Fields(text) {
		word := strings.Trim(field, ".,;:!?\"()[]{}'-")
		if len(word) < 2 {
			continue
		}
		word = strings.ToLower(word)
		if keep != nil && !keep(word) {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words
}
