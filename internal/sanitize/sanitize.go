// Package sanitize normalizes paragraph text into characters a learner can type.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ParagraphMarker starts every non-empty segment.
const ParagraphMarker = "\t"

// Options toggles the optional sanitization steps.
type Options struct {
	CollapseNewlines bool
	NormalizeLetters bool
}

// Occurrence is one untypable character found in a text.
type Occurrence struct {
	Char  rune
	Index int // rune index
}

var punctuation = strings.NewReplacer(
	"\u2014", "--", // em dash
	"\u2015", "--", // horizontal bar
	"\u2013", "-", // en dash
	"\u2010", "-", // hyphen
	"\u2011", "-", // non-breaking hyphen
	"\u2018", "'", "\u2019", "'", "\u201A", "'", "\u201B", "'",
	"\u201C", `"`, "\u201D", `"`, "\u201E", `"`, "\u201F", `"`,
	"\u2026", "...",
	"\u00A0", " ", "\u202F", " ", "\u2002", " ", "\u2003", " ", "\u2004", " ",
	"\u2005", " ", "\u2006", " ", "\u2007", " ", "\u2008", " ", "\u2009", " ", "\u200A", " ",
	"\u200B", "", "\u200C", "", "\u200D", "", "\u2060", "", "\uFEFF", "",
	"\u00AD", "", // soft hyphen
	"\u00D7", "x",
	"\u00B7", "-", "\u2022", "-",
)

var ligatures = strings.NewReplacer(
	"\u00E6", "ae", "\u00C6", "Ae",
	"\u0153", "oe", "\u0152", "Oe",
	"\u00DF", "ss",
)

// Paragraph cleans one paragraph. Non-empty results carry the paragraph marker.
func Paragraph(text string, opts Options) string {
	if opts.CollapseNewlines {
		text = collapseLineBreaks(text)
	}
	text = collapseSpace(text)
	text = punctuation.Replace(text)
	if opts.NormalizeLetters {
		text = stripDiacritics(ligatures.Replace(text))
	}
	// Substitutions above can leave doubled or edge spaces behind.
	text = collapseSpace(text)
	if text == "" {
		return ""
	}
	if !strings.HasPrefix(text, ParagraphMarker) {
		text = ParagraphMarker + text
	}
	return text
}

// IsTypable reports whether r is printable ASCII, tab or newline.
func IsTypable(r rune) bool {
	return r == '\t' || r == '\n' || (r >= 0x20 && r <= 0x7E)
}

// Typable reports whether every character of s is typable.
func Typable(s string) bool {
	_, _, found := FirstUntypable(s)
	return !found
}

// FirstUntypable returns the first untypable character and its rune index.
func FirstUntypable(s string) (rune, int, bool) {
	i := 0
	for _, r := range s {
		if !IsTypable(r) {
			return r, i, true
		}
		i++
	}
	return 0, -1, false
}

// Untypable lists every untypable character in s in order.
func Untypable(s string) []Occurrence {
	var out []Occurrence
	i := 0
	for _, r := range s {
		if !IsTypable(r) {
			out = append(out, Occurrence{Char: r, Index: i})
		}
		i++
	}
	return out
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

func collapseLineBreaks(s string) string {
	var b strings.Builder
	inRun := false
	for _, r := range s {
		if isLineBreak(r) {
			if !inRun {
				b.WriteByte(' ')
			}
			inRun = true
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}

// collapseSpace turns every whitespace run into one space, or one newline when the
// run holds a line break, and trims the ends.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := rune(0)
	for _, r := range s {
		if unicode.IsSpace(r) {
			if isLineBreak(r) {
				pending = '\n'
			} else if pending == 0 {
				pending = ' '
			}
			continue
		}
		if pending != 0 && b.Len() > 0 {
			b.WriteRune(pending)
		}
		pending = 0
		b.WriteRune(r)
	}
	return b.String()
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
