package progress

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/verte-zerg/typebook/internal/model"
)

func TestSaveFurthestIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var p model.Progress
	for i := 0; i < 500; i++ {
		prevCh, prevIdx := p.FurthestChapter, p.FurthestCharIndex
		ch, idx := rng.Intn(6)+1, rng.Intn(400)
		p = Save(p, ch, idx, now)
		if Less(p.FurthestChapter, p.FurthestCharIndex, prevCh, prevIdx) {
			t.Fatalf("furthest moved back from (%d,%d) to (%d,%d)", prevCh, prevIdx, p.FurthestChapter, p.FurthestCharIndex)
		}
		if Less(p.FurthestChapter, p.FurthestCharIndex, ch, idx) {
			t.Fatalf("furthest (%d,%d) behind saved position (%d,%d)", p.FurthestChapter, p.FurthestCharIndex, ch, idx)
		}
		if p.Chapter != ch || p.CharIndex != idx {
			t.Fatalf("current position not recorded")
		}
	}
}

func TestSaveGoingBackKeepsFurthest(t *testing.T) {
	now := time.Now()
	p := Save(model.Progress{}, 3, 120, now)
	p = Save(p, 1, 900, now)
	if p.FurthestChapter != 3 || p.FurthestCharIndex != 120 {
		t.Fatalf("unexpected furthest: %d/%d", p.FurthestChapter, p.FurthestCharIndex)
	}
	if p.Chapter != 1 || p.CharIndex != 900 {
		t.Fatalf("unexpected current: %d/%d", p.Chapter, p.CharIndex)
	}
}

func TestMerge(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	stored := model.Progress{Chapter: 4, CharIndex: 10, FurthestChapter: 4, FurthestCharIndex: 10, CompletedChapters: []int{1, 2, 3}, LastUpdated: t0}
	incoming := model.Progress{Chapter: 2, CharIndex: 5, CompletedChapters: []int{5}, LastUpdated: t0.Add(time.Minute)}
	got := Merge(stored, incoming)
	if got.Chapter != 2 || got.CharIndex != 5 {
		t.Fatalf("incoming position must win: %+v", got)
	}
	if got.FurthestChapter != 4 || got.FurthestCharIndex != 10 {
		t.Fatalf("furthest regressed: %+v", got)
	}
	if !reflect.DeepEqual(got.CompletedChapters, []int{1, 2, 3, 5}) {
		t.Fatalf("unexpected completed: %v", got.CompletedChapters)
	}
	if !reflect.DeepEqual(stored.CompletedChapters, []int{1, 2, 3}) {
		t.Fatalf("merge must not alias the stored slice")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	now := time.Now()
	p := Complete(model.Progress{}, 2, now)
	p = Complete(p, 1, now)
	p = Complete(p, 2, now)
	if !reflect.DeepEqual(p.CompletedChapters, []int{1, 2}) {
		t.Fatalf("unexpected completed: %v", p.CompletedChapters)
	}
}

func TestActivityRollover(t *testing.T) {
	mon := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	tue := mon.Add(2 * time.Hour)
	nextMon := mon.AddDate(0, 0, 7)
	delta := model.Activity{Seconds: 30, Chars: 100, Mistakes: 2}

	totals := AddActivity(model.ActivityTotals{}, delta, mon)
	totals = AddActivity(totals, delta, mon)
	if totals.Today.Chars != 200 || totals.ThisWeek.Chars != 200 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	totals = AddActivity(totals, delta, tue)
	if totals.Today.Chars != 100 {
		t.Fatalf("expected daily reset, got %+v", totals.Today)
	}
	if totals.ThisWeek.Chars != 300 || totals.ThisWeek.Seconds != 90 {
		t.Fatalf("expected week to accumulate, got %+v", totals.ThisWeek)
	}

	totals = Rollover(totals, nextMon)
	if totals.Today != (model.Activity{}) || totals.ThisWeek != (model.Activity{}) {
		t.Fatalf("expected full reset, got %+v", totals)
	}
	if totals.Week != WeekKey(nextMon) {
		t.Fatalf("unexpected week key %q", totals.Week)
	}
}
