// Package progress merges learner progress and activity counters.
package progress

import (
	"fmt"
	"slices"
	"time"

	"github.com/verte-zerg/typebook/internal/model"
)

// Less orders positions lexicographically by chapter, then char index.
func Less(aChapter, aIndex, bChapter, bIndex int) bool {
	if aChapter != bChapter {
		return aChapter < bChapter
	}
	return aIndex < bIndex
}

// Save records the current position. The furthest position never moves back.
func Save(p model.Progress, chapter, charIndex int, now time.Time) model.Progress {
	p.Chapter = chapter
	p.CharIndex = charIndex
	if Less(p.FurthestChapter, p.FurthestCharIndex, chapter, charIndex) {
		p.FurthestChapter = chapter
		p.FurthestCharIndex = charIndex
	}
	p.LastUpdated = now
	return p
}

// Merge combines a stored record with an incoming one. The incoming current
// position wins; furthest positions and completed chapters are unioned.
func Merge(stored, incoming model.Progress) model.Progress {
	out := Save(stored, incoming.Chapter, incoming.CharIndex, incoming.LastUpdated)
	if Less(out.FurthestChapter, out.FurthestCharIndex, incoming.FurthestChapter, incoming.FurthestCharIndex) {
		out.FurthestChapter = incoming.FurthestChapter
		out.FurthestCharIndex = incoming.FurthestCharIndex
	}
	for _, id := range incoming.CompletedChapters {
		out = Complete(out, id, out.LastUpdated)
	}
	if stored.LastUpdated.After(out.LastUpdated) {
		out.LastUpdated = stored.LastUpdated
	}
	return out
}

// Complete marks a chapter finished.
func Complete(p model.Progress, chapter int, now time.Time) model.Progress {
	if !slices.Contains(p.CompletedChapters, chapter) {
		completed := append(slices.Clone(p.CompletedChapters), chapter)
		slices.Sort(completed)
		p.CompletedChapters = completed
	}
	p.LastUpdated = now
	return p
}

// DayKey returns the calendar day bucket for t.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// WeekKey returns the ISO week bucket for t.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// Rollover zeroes counters whose bucket has passed.
func Rollover(totals model.ActivityTotals, now time.Time) model.ActivityTotals {
	day, week := DayKey(now), WeekKey(now)
	if totals.Day != day {
		totals.Day = day
		totals.Today = model.Activity{}
	}
	if totals.Week != week {
		totals.Week = week
		totals.ThisWeek = model.Activity{}
	}
	return totals
}

// AddActivity rolls totals over to now and adds delta to both buckets.
func AddActivity(totals model.ActivityTotals, delta model.Activity, now time.Time) model.ActivityTotals {
	totals = Rollover(totals, now)
	totals.Today = add(totals.Today, delta)
	totals.ThisWeek = add(totals.ThisWeek, delta)
	return totals
}

func add(a, b model.Activity) model.Activity {
	return model.Activity{
		Seconds:  a.Seconds + b.Seconds,
		Chars:    a.Chars + b.Chars,
		Mistakes: a.Mistakes + b.Mistakes,
	}
}
