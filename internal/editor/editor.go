// Package editor restructures staged chapters before they are stored.
package editor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/sanitize"
)

// TitleLimit caps synthetic chapter titles, in grapheme clusters.
const TitleLimit = 60

var (
	// ErrIndex reports a chapter index outside the list.
	ErrIndex = errors.New("chapter index out of range")
	// ErrNoSplit reports a split with no usable split points.
	ErrNoSplit = errors.New("no valid split points")
	// ErrDuplicateID reports a manual id already pinned on another chapter.
	ErrDuplicateID = errors.New("chapter id already in use")
)

// Delete removes the chapter at index and renumbers the rest.
func Delete(chapters []model.Chapter, index int) ([]model.Chapter, error) {
	if index < 0 || index >= len(chapters) {
		return chapters, fmt.Errorf("failed to delete chapter %d: %w", index, ErrIndex)
	}
	out := make([]model.Chapter, 0, len(chapters)-1)
	out = append(out, chapters[:index]...)
	out = append(out, chapters[index+1:]...)
	Renumber(out)
	return out, nil
}

// Merge appends the segments of the chapter after index onto the chapter at index.
func Merge(chapters []model.Chapter, index int) ([]model.Chapter, error) {
	if index < 0 || index >= len(chapters)-1 {
		return chapters, fmt.Errorf("failed to merge chapter %d: %w", index, ErrIndex)
	}
	out := make([]model.Chapter, 0, len(chapters)-1)
	out = append(out, chapters[:index]...)
	merged := chapters[index]
	segments := make([]model.Segment, 0, len(merged.Segments)+len(chapters[index+1].Segments))
	segments = append(segments, merged.Segments...)
	segments = append(segments, chapters[index+1].Segments...)
	merged.Segments = segments
	out = append(out, merged)
	out = append(out, chapters[index+2:]...)
	Renumber(out)
	return out, nil
}

// Split cuts the chapter at index before each split point. Points outside
// (0, segmentCount) are discarded; duplicates collapse.
func Split(chapters []model.Chapter, index int, points []int) ([]model.Chapter, error) {
	if index < 0 || index >= len(chapters) {
		return chapters, fmt.Errorf("failed to split chapter %d: %w", index, ErrIndex)
	}
	src := chapters[index]
	cuts := normalizePoints(points, len(src.Segments))
	if len(cuts) == 0 {
		return chapters, ErrNoSplit
	}

	parts := make([]model.Chapter, 0, len(cuts)+1)
	prev := 0
	for _, cut := range append(cuts, len(src.Segments)) {
		part := model.Chapter{Segments: append([]model.Segment(nil), src.Segments[prev:cut]...)}
		if prev == 0 {
			part.Title = src.Title
			part.ID, part.ManualID = src.ID, src.ManualID
		} else {
			part.Title = SyntheticTitle(src.Segments[prev].Text)
		}
		parts = append(parts, part)
		prev = cut
	}

	out := make([]model.Chapter, 0, len(chapters)+len(cuts))
	out = append(out, chapters[:index]...)
	out = append(out, parts...)
	out = append(out, chapters[index+1:]...)
	Renumber(out)
	return out, nil
}

// Renumber assigns ids 1..N in order. Manually set ids are kept and skipped
// when numbering the other chapters.
func Renumber(chapters []model.Chapter) {
	pinned := map[int]bool{}
	for _, ch := range chapters {
		if ch.ManualID {
			pinned[ch.ID] = true
		}
	}
	next := 1
	for i := range chapters {
		if chapters[i].ManualID {
			continue
		}
		for pinned[next] {
			next++
		}
		chapters[i].ID = next
		next++
	}
}

// SetID pins a user-chosen id on the chapter at index and renumbers the rest
// around it. The id must be positive and not pinned on another chapter.
func SetID(chapters []model.Chapter, index, id int) ([]model.Chapter, error) {
	if index < 0 || index >= len(chapters) {
		return chapters, fmt.Errorf("failed to set id of chapter %d: %w", index, ErrIndex)
	}
	if id < 1 {
		return chapters, fmt.Errorf("invalid chapter id %d", id)
	}
	for i, ch := range chapters {
		if i != index && ch.ManualID && ch.ID == id {
			return chapters, fmt.Errorf("failed to set id %d on chapter %d: %w", id, index, ErrDuplicateID)
		}
	}
	out := append([]model.Chapter(nil), chapters...)
	out[index].ID, out[index].ManualID = id, true
	Renumber(out)
	return out, nil
}

// SyntheticTitle derives a chapter title from segment text.
func SyntheticTitle(text string) string {
	text = strings.TrimSpace(strings.TrimPrefix(text, sanitize.ParagraphMarker))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	return truncateGraphemes(text, TitleLimit)
}

func truncateGraphemes(s string, limit int) string {
	if uniseg.GraphemeClusterCount(s) <= limit {
		return s
	}
	var b strings.Builder
	state := -1
	rest := s
	for n := 0; n < limit && rest != ""; n++ {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		b.WriteString(cluster)
	}
	return strings.TrimSpace(b.String())
}

func normalizePoints(points []int, count int) []int {
	seen := make(map[int]bool, len(points))
	var out []int
	for _, p := range points {
		if p <= 0 || p >= count || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
