// Package editor restructures staged chapters before they are stored.
package editor

import (
	"regexp"
	"strings"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/sanitize"
)

// HeadingRules tunes heading detection. The zero value disables every pattern.
type HeadingRules struct {
	MaxLen  int
	Keyword *regexp.Regexp
	Roman   *regexp.Regexp
	Numeric *regexp.Regexp
}

// DefaultHeadingRules returns the stock detection heuristics.
func DefaultHeadingRules() HeadingRules {
	return HeadingRules{
		MaxLen:  80,
		Keyword: regexp.MustCompile(`(?i)^(chapter|part|book|section|prologue|epilogue|preface|introduction|conclusion|appendix)\b`),
		Roman:   regexp.MustCompile(`^[IVXLCDM]+\s*[.:)\-]`),
		Numeric: regexp.MustCompile(`^\d{1,3}\s*[.:)\-]`),
	}
}

// IsHeading reports whether text looks like a chapter heading.
func (r HeadingRules) IsHeading(text string) bool {
	text = strings.TrimSpace(strings.TrimPrefix(text, sanitize.ParagraphMarker))
	if text == "" || len([]rune(text)) > r.MaxLen {
		return false
	}
	for _, re := range []*regexp.Regexp{r.Keyword, r.Roman, r.Numeric} {
		if re != nil && re.MatchString(text) {
			return true
		}
	}
	return false
}

// HeadingCandidates returns segment indices that could start a new chapter. The
// first segment is never a candidate.
func (r HeadingRules) HeadingCandidates(ch model.Chapter) []int {
	var out []int
	for i := 1; i < len(ch.Segments); i++ {
		if r.IsHeading(ch.Segments[i].Text) {
			out = append(out, i)
		}
	}
	return out
}

// AutoSplit splits every chapter at its heading candidates.
func (r HeadingRules) AutoSplit(chapters []model.Chapter) []model.Chapter {
	out := make([]model.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		points := r.HeadingCandidates(ch)
		if len(points) == 0 {
			out = append(out, ch)
			continue
		}
		parts, err := Split([]model.Chapter{ch}, 0, points)
		if err != nil {
			out = append(out, ch)
			continue
		}
		out = append(out, parts...)
	}
	Renumber(out)
	return out
}
