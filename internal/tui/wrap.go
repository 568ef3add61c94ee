// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typebook/internal/engine"
)

const (
	tabGlyph     = '→'
	newlineGlyph = '↵'
	wrongSpace   = '•'
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
	newline bool
	cursor  bool
}

// buildStyledRunes renders text[from:to] using per-character statuses. cursor is
// the engine cursor; a cursor outside the range draws no underline.
func buildStyledRunes(text []rune, statuses []engine.CharStatus, from, to, cursor int) []styledRune {
	words := findWords(text, from, to)
	currentWord := wordForCursor(words, cursor)

	out := make([]styledRune, 0, to-from)
	for i := from; i < to; i++ {
		target := text[i]
		displayed := target
		switch target {
		case '\t':
			displayed = tabGlyph
		case '\n':
			displayed = newlineGlyph
		}
		style := pendingStyle
		switch statuses[i] {
		case engine.Perfect:
			style = correctStyle
		case engine.Fixed:
			style = fixedStyle
		case engine.Dirty:
			style = dirtyStyle
		case engine.Error:
			style = incorrectStyle
			if target == ' ' {
				displayed = wrongSpace
			}
		default:
			if currentWord != nil && i >= currentWord.start && i < currentWord.end {
				style = currentWordStyle
			}
		}
		if i == cursor {
			style = style.Underline(true)
		}
		out = append(out, styledRune{
			s:       style.Render(string(displayed)),
			width:   runewidth.RuneWidth(displayed),
			isSpace: target == ' ' || target == '\t',
			newline: target == '\n',
			cursor:  i == cursor,
		})
	}
	return out
}

type wordRange struct {
	start int
	end   int
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

func findWords(text []rune, from, to int) []wordRange {
	words := []wordRange{}
	start := -1
	for i := from; i < to; i++ {
		if isSeparator(text[i]) {
			if start != -1 {
				words = append(words, wordRange{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, wordRange{start: start, end: to})
	}
	return words
}

func wordForCursor(words []wordRange, cursorIndex int) *wordRange {
	if len(words) == 0 || cursorIndex < 0 {
		return nil
	}
	for i, w := range words {
		if cursorIndex < w.end {
			return &words[i]
		}
	}
	return nil
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapLines breaks runes into lines no wider than width, preferring to break after
// a space. A newline always ends its line. It returns the index of the line that
// holds the cursor, or 0 when no rune carries it.
func wrapLines(runes []styledRune, width int) ([]string, int) {
	var lines []string
	cursorLine := 0
	flush := func(part []styledRune) {
		for _, item := range part {
			if item.cursor {
				cursorLine = len(lines)
			}
		}
		lines = append(lines, renderStyledRunes(part))
	}

	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1
	for i := 0; i < len(runes); {
		item := runes[i]
		if width > 0 && lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				flush(line[:lastSpaceIdx+1])
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
			} else {
				flush(line)
				line = line[:0]
			}
			lineWidth = lineWidthOf(line)
			lastSpaceIdx = lastSpaceIndex(line)
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
		if item.newline {
			flush(line)
			line = line[:0]
			lineWidth = 0
			lastSpaceIdx = -1
		}
	}
	if len(line) > 0 {
		flush(line)
	}
	return lines, cursorLine
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
