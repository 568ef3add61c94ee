// Package model defines shared data structures.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const chapterKeyPrefix = "chapter_"

// Segment is one paragraph of cleaned text, prefixed with a tab.
type Segment struct {
	Text string `json:"text" yaml:"text"`
}

// Chapter is an ordered run of segments with a title.
type Chapter struct {
	ID       int       `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title"`
	Segments []Segment `json:"segments" yaml:"segments"`
	// ManualID marks an id set by the user; renumbering leaves it alone.
	ManualID bool      `json:"-" yaml:"-"`
}

// SegmentRef addresses a segment inside a Staging arena.
type SegmentRef struct {
	Chapter int
	Segment int
}

// Staging owns the chapters of an import that has not been persisted yet.
// Other components refer to its segments through SegmentRef lookups.
type Staging struct {
	Title    string
	Author   string
	Genre    string
	Cover    *Cover
	Chapters []Chapter
}

// Valid reports whether ref points at an existing segment.
func (s *Staging) Valid(ref SegmentRef) bool {
	if ref.Chapter < 0 || ref.Chapter >= len(s.Chapters) {
		return false
	}
	return ref.Segment >= 0 && ref.Segment < len(s.Chapters[ref.Chapter].Segments)
}

// Text returns the text of the referenced segment, or "" for a stale ref.
func (s *Staging) Text(ref SegmentRef) string {
	if !s.Valid(ref) {
		return ""
	}
	return s.Chapters[ref.Chapter].Segments[ref.Segment].Text
}

// SetText replaces the text of the referenced segment.
func (s *Staging) SetText(ref SegmentRef, text string) {
	if !s.Valid(ref) {
		return
	}
	s.Chapters[ref.Chapter].Segments[ref.Segment].Text = text
}

// Refs lists every segment in reading order.
func (s *Staging) Refs() []SegmentRef {
	var refs []SegmentRef
	for ci, ch := range s.Chapters {
		for si := range ch.Segments {
			refs = append(refs, SegmentRef{Chapter: ci, Segment: si})
		}
	}
	return refs
}

// Clear drops all staged chapters.
func (s *Staging) Clear() {
	s.Chapters = nil
	s.Cover = nil
}

// Cover is a book cover image.
type Cover struct {
	Href      string
	MediaType string
	Data      []byte
}

// ImportError flags a segment that still holds a character the learner cannot type.
type ImportError struct {
	Ref          SegmentRef
	BadChar      rune
	// Pos is the rune index of BadChar inside the segment text.
	Pos          int
	FullText     string
	ChapTitle    string
	ContextStart int
	ContextEnd   int
}

// ChapterRef is a spine entry in a book document.
type ChapterRef struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// BookDoc is the persisted book document.
type BookDoc struct {
	ID            string       `json:"id" yaml:"id"`
	Title         string       `json:"title" yaml:"title"`
	Author        string       `json:"author,omitempty" yaml:"author,omitempty"`
	Genre         string       `json:"genre,omitempty" yaml:"genre,omitempty"`
	CoverURL      string       `json:"coverUrl,omitempty" yaml:"coverUrl,omitempty"`
	TotalChapters int          `json:"totalChapters" yaml:"totalChapters"`
	Chapters      []ChapterRef `json:"chapters" yaml:"chapters"`
}

// ChapterDoc is the persisted chapter document.
type ChapterDoc struct {
	Segments []Segment `json:"segments" yaml:"segments"`
}

// ChapterKey builds the document key for a chapter id.
func ChapterKey(id int) string {
	return chapterKeyPrefix + strconv.Itoa(id)
}

// ParseChapterKey extracts the chapter id from a chapter_<id> key.
func ParseChapterKey(key string) (int, error) {
	raw, ok := strings.CutPrefix(key, chapterKeyPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid chapter key %q", key)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid chapter key %q: %w", key, err)
	}
	return id, nil
}

// ChapterText joins segments into the text a typing session runs over.
func ChapterText(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.Text
	}
	return strings.Join(parts, "\n")
}

// Progress is a learner's position in one book.
type Progress struct {
	Chapter           int       `json:"chapter"`
	CharIndex         int       `json:"charIndex"`
	FurthestChapter   int       `json:"furthestChapter"`
	FurthestCharIndex int       `json:"furthestCharIndex"`
	CompletedChapters []int     `json:"completedChapters"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// Activity holds active typing counters.
type Activity struct {
	Seconds  float64 `json:"seconds"`
	Chars    int     `json:"chars"`
	Mistakes int     `json:"mistakes"`
}

// ActivityTotals holds per-day and per-week counters for a learner.
type ActivityTotals struct {
	Day      string   `json:"day"`
	Week     string   `json:"week"`
	Today    Activity `json:"today"`
	ThisWeek Activity `json:"thisWeek"`
}

// CharStats stores per-character outcomes for a sprint.
type CharStats struct {
	Char      string
	Correct   int
	Incorrect int
}

// SprintRecord captures one finished or paused sprint.
type SprintRecord struct {
	ID        string
	UserID    string
	BookID    string
	Chapter   int
	StartedAt time.Time
	EndedAt   time.Time
	Chars     int
	Mistakes  int
	ActiveMs  int64
	Completed bool
}

// CharAggregate aggregates character stats across sprints.
type CharAggregate struct {
	Char      string
	Correct   int
	Incorrect int
}

// SprintAggregate summarizes a sprint for reporting.
type SprintAggregate struct {
	SprintID string
	EndedAt  time.Time
	Chars    int
	Mistakes int
	ActiveMs int64
}

// StatsConfig defines filters for stats output.
type StatsConfig struct {
	UserID string
	BookID string
	Since  *time.Time
	Last   int
}
