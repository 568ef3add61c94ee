package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/typebook/internal/model"
)

type fakeClock struct {
	t time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct {
	mu          sync.Mutex
	fail        bool
	checkpoints []int
	completed   []int
	activity    []model.Activity
	sprints     []model.SprintRecord
	chars       [][]model.CharStats
}

func (r *recorder) err() error {
	if r.fail {
		return errors.New("disk full")
	}
	return nil
}

func (r *recorder) SaveCheckpoint(_ context.Context, _ int, charIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints = append(r.checkpoints, charIndex)
	return r.err()
}

func (r *recorder) CompleteChapter(_ context.Context, chapter int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, chapter)
	return r.err()
}

func (r *recorder) RecordActivity(_ context.Context, delta model.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity = append(r.activity, delta)
	return r.err()
}

func (r *recorder) SaveSprint(_ context.Context, sprint model.SprintRecord, chars []model.CharStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sprints = append(r.sprints, sprint)
	r.chars = append(r.chars, chars)
	return r.err()
}

func newEngine(text string, clock *fakeClock, rec *recorder, mutate ...func(*Options)) *Engine {
	opts := Options{
		UserID:  "u1",
		BookID:  "b1",
		Chapter: 3,
		Text:    text,
		Now:     clock.now,
	}
	if rec != nil {
		opts.Recorder = rec
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return New(opts)
}

func typeText(e *Engine, clock *fakeClock, s string) []Event {
	var events []Event
	for _, r := range s {
		clock.advance(100 * time.Millisecond)
		events = append(events, e.Keystroke(r))
	}
	return events
}

func TestExactTypingCompletesOnce(t *testing.T) {
	texts := []string{"a", "\tHi. Go!\n\tOk", "\t\"Quoted.\" Then more?"}
	for _, text := range texts {
		clock := newClock()
		rec := &recorder{}
		e := newEngine(text, clock, rec)
		events := typeText(e, clock, text)
		events = append(events, typeText(e, clock, "xyz")...)
		completions := 0
		for _, ev := range events {
			if ev.Completed {
				completions++
			}
		}
		if completions != 1 {
			t.Fatalf("%q: expected one completion, got %d", text, completions)
		}
		snap := e.Snapshot()
		if snap.Cursor != len([]rune(text)) || snap.State != Finished {
			t.Fatalf("%q: unexpected snapshot %+v", text, snap)
		}
		e.Close()
		if !reflect.DeepEqual(rec.completed, []int{3}) {
			t.Fatalf("%q: unexpected completed chapters %v", text, rec.completed)
		}
		if len(rec.sprints) != 1 || !rec.sprints[0].Completed || rec.sprints[0].Chars != len([]rune(text)) {
			t.Fatalf("%q: unexpected sprints %+v", text, rec.sprints)
		}
		summary, ok := e.LastSummary()
		if !ok || summary.Accuracy != 1 {
			t.Fatalf("%q: unexpected summary %+v", text, summary)
		}
	}
}

func TestEnterMatchesNewline(t *testing.T) {
	clock := newClock()
	e := newEngine("a\nb", clock, nil)
	typeText(e, clock, "a\rb")
	if e.Snapshot().State != Finished {
		t.Fatalf("expected carriage return to match newline")
	}
}

func TestHardStopAtSpamThreshold(t *testing.T) {
	clock := newClock()
	e := newEngine("abc", clock, nil)
	for i := 1; i < SpamThreshold; i++ {
		ev := e.Keystroke('x')
		if !ev.Mistake || ev.HardStop {
			t.Fatalf("mistake %d: unexpected event %+v", i, ev)
		}
	}
	ev := e.Keystroke('x')
	if !ev.HardStop {
		t.Fatalf("expected hard stop at mistake %d", SpamThreshold)
	}
	snap := e.Snapshot()
	if snap.State != Paused || snap.Reason != PauseHardStop || snap.Cause != CauseMistakes {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if ev := e.Keystroke('z'); ev != (Event{}) {
		t.Fatalf("wrong key must be ignored during hard stop, got %+v", ev)
	}
	if ev := e.Backspace(); ev != (Event{}) || e.Snapshot().Mistakes != SpamThreshold {
		t.Fatalf("backspace must be ignored during hard stop")
	}
	ev = e.Keystroke('a')
	if !ev.Resumed || !ev.Accepted {
		t.Fatalf("expected resume with accept, got %+v", ev)
	}
	if e.Snapshot().State != Active {
		t.Fatalf("expected active after resume")
	}
	if got := e.Statuses()[0]; got != Dirty {
		t.Fatalf("expected dirty status, got %v", got)
	}
}

func TestBypassSkipsHardStop(t *testing.T) {
	clock := newClock()
	e := newEngine("abc", clock, nil, func(o *Options) { o.Bypass = true })
	for i := 0; i < 2*SpamThreshold; i++ {
		if ev := e.Keystroke('x'); ev.HardStop {
			t.Fatalf("bypass must not hard stop")
		}
	}
	if e.Snapshot().State != Active {
		t.Fatalf("expected active state")
	}
}

func TestErrorBlocksAdvance(t *testing.T) {
	clock := newClock()
	e := newEngine("ab", clock, nil)
	e.Keystroke('x')
	if ev := e.Keystroke('a'); ev.Accepted {
		t.Fatalf("matching key must not advance past an error")
	}
	e.Backspace()
	if got := e.Statuses()[0]; got != Fixed {
		t.Fatalf("backspace must clear the error to fixed, got %v", got)
	}
	if e.Snapshot().Cursor != 0 {
		t.Fatalf("clearing an error must not move the cursor")
	}
	if ev := e.Keystroke('a'); !ev.Accepted {
		t.Fatalf("expected accept after clearing")
	}
	if got := e.Statuses()[0]; got != Fixed {
		t.Fatalf("expected fixed after retype, got %v", got)
	}
}

func TestBackspaceStatuses(t *testing.T) {
	clock := newClock()
	e := newEngine("abcde", clock, nil)
	typeText(e, clock, "abc")
	e.Backspace()
	e.Backspace()
	if e.Snapshot().Cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", e.Snapshot().Cursor)
	}
	typeText(e, clock, "bcd")
	want := []CharStatus{Perfect, Fixed, Fixed, Perfect, Pending}
	if got := e.Statuses(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected statuses %v", got)
	}
}

func TestBackspaceStopsAtSprintStart(t *testing.T) {
	clock := newClock()
	e := newEngine("abcdef", clock, nil, func(o *Options) { o.Start = 3 })
	e.Start()
	e.Backspace()
	if snap := e.Snapshot(); snap.Cursor != 3 || snap.SprintStart != 3 {
		t.Fatalf("backspace must not cross the sprint start: %+v", snap)
	}
	if got := e.Statuses()[:3]; !reflect.DeepEqual(got, []CharStatus{Perfect, Perfect, Perfect}) {
		t.Fatalf("resumed text must show as typed, got %v", got)
	}
}

func TestResumePastEndRestarts(t *testing.T) {
	clock := newClock()
	e := newEngine("abc", clock, nil, func(o *Options) { o.Start = 3 })
	if e.Snapshot().Cursor != 0 {
		t.Fatalf("expected restart at 0")
	}
}

func TestCheckpoints(t *testing.T) {
	clock := newClock()
	rec := &recorder{}
	text := "A. \"B.\"C"
	e := newEngine(text, clock, rec)
	var at []int
	for i, ev := range typeText(e, clock, text) {
		if ev.Checkpoint {
			at = append(at, i)
		}
	}
	if !reflect.DeepEqual(at, []int{1, 5, 6}) {
		t.Fatalf("unexpected checkpoint positions %v", at)
	}
	e.Close()
	if !reflect.DeepEqual(rec.checkpoints, []int{2, 6, 7, 8}) {
		t.Fatalf("unexpected saved checkpoints %v", rec.checkpoints)
	}
}

func TestPracticeSkipsProgress(t *testing.T) {
	clock := newClock()
	rec := &recorder{}
	e := newEngine("Go. Now.", clock, rec, func(o *Options) { o.Practice = true })
	typeText(e, clock, "Go. Now.")
	e.Close()
	if len(rec.checkpoints) != 0 || len(rec.completed) != 0 {
		t.Fatalf("practice must not write progress: %v %v", rec.checkpoints, rec.completed)
	}
	if len(rec.sprints) != 1 {
		t.Fatalf("practice sprints are still recorded")
	}
}

func TestIdleAccrualAndInactivityStop(t *testing.T) {
	clock := newClock()
	e := newEngine("abc", clock, nil)
	e.Keystroke('a')
	var stopAt int
	for i := 1; i <= 60; i++ {
		clock.advance(TickInterval)
		if ev := e.Tick(); ev.HardStop {
			stopAt = i
			break
		}
	}
	if stopAt != 51 {
		t.Fatalf("expected inactivity stop on tick 51, got %d", stopAt)
	}
	snap := e.Snapshot()
	if snap.Cause != CauseInactivity || snap.Reason != PauseHardStop {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.SprintActive != 19*TickInterval {
		t.Fatalf("expected 1.9s active, got %v", snap.SprintActive)
	}
	clock.advance(time.Minute)
	e.Tick()
	ev := e.Keystroke('b')
	if !ev.Resumed {
		t.Fatalf("expected resume")
	}
	if got := e.Statuses()[1]; got != Perfect {
		t.Fatalf("inactivity resume should keep perfect status, got %v", got)
	}
	clock.advance(TickInterval)
	e.Tick()
	if got := e.Snapshot().SprintActive; got != 20*TickInterval {
		t.Fatalf("paused time must not accrue, got %v", got)
	}
}

func TestModalSuppressesInactivityStop(t *testing.T) {
	clock := newClock()
	e := newEngine("abc", clock, nil)
	e.Keystroke('a')
	e.SetModal(true)
	for i := 0; i < 100; i++ {
		clock.advance(TickInterval)
		if ev := e.Tick(); ev.HardStop {
			t.Fatalf("modal must suppress inactivity stop")
		}
	}
}

func TestManualPause(t *testing.T) {
	clock := newClock()
	e := newEngine("abc", clock, nil)
	e.Keystroke('a')
	e.Pause()
	if ev := e.Keystroke('b'); ev.Accepted {
		t.Fatalf("keys must be ignored while paused")
	}
	clock.advance(time.Hour)
	if ev := e.Tick(); ev.HardStop {
		t.Fatalf("paused sessions do not hard stop")
	}
	e.Start()
	if ev := e.Keystroke('b'); !ev.Accepted {
		t.Fatalf("expected accept after resume")
	}
}

func TestOvertimeSoftPause(t *testing.T) {
	clock := newClock()
	rec := &recorder{}
	text := strings.Repeat("Abc def. ", 60)
	e := newEngine(text, clock, rec, func(o *Options) { o.SprintLength = time.Second })
	runes := []rune(text)
	var overtimeAt, pauseAt = -1, -1
	for i := 0; i < len(runes); i++ {
		clock.advance(TickInterval)
		if ev := e.Tick(); ev.Overtime {
			overtimeAt = i
		}
		if ev := e.Keystroke(runes[i]); ev.SoftPause {
			pauseAt = i
			break
		}
	}
	if overtimeAt < 0 || pauseAt < overtimeAt {
		t.Fatalf("expected overtime before soft pause, got %d and %d", overtimeAt, pauseAt)
	}
	if runes[pauseAt] != '.' {
		t.Fatalf("soft pause must land on a sentence boundary, got %q", runes[pauseAt])
	}
	snap := e.Snapshot()
	if snap.State != Paused || snap.Reason != PauseSprintEnd {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	e.Start()
	snap = e.Snapshot()
	if snap.State != Active || snap.SprintStart != pauseAt+1 || snap.SprintChars != 0 {
		t.Fatalf("expected a fresh sprint, got %+v", snap)
	}
	e.Close()
	if len(rec.sprints) != 1 || rec.sprints[0].Completed {
		t.Fatalf("expected one incomplete sprint recorded, got %+v", rec.sprints)
	}
	if len(rec.activity) != 1 || rec.activity[0].Chars != pauseAt+1 {
		t.Fatalf("unexpected activity %+v", rec.activity)
	}
}

func TestOvertimeNearEndRunsToCompletion(t *testing.T) {
	clock := newClock()
	text := "Abc. Def. Ghi."
	e := newEngine(text, clock, nil, func(o *Options) { o.SprintLength = 100 * time.Millisecond })
	e.Start()
	clock.advance(TickInterval)
	if ev := e.Tick(); !ev.Overtime {
		t.Fatalf("expected overtime")
	}
	for _, ev := range typeText(e, clock, text) {
		if ev.SoftPause {
			t.Fatalf("no soft pause within the chapter tail")
		}
	}
	if e.Snapshot().State != Finished {
		t.Fatalf("expected finished")
	}
}

func TestRollingMetrics(t *testing.T) {
	clock := newClock()
	e := newEngine(strings.Repeat("a", 40), clock, nil)
	e.Keystroke('x')
	e.Backspace()
	for i := 0; i < 25; i++ {
		clock.advance(600 * time.Millisecond)
		e.Keystroke('a')
	}
	snap := e.Snapshot()
	if math.Abs(snap.WPM-20) > 1e-9 {
		t.Fatalf("expected 20 WPM, got %f", snap.WPM)
	}
	if math.Abs(snap.Accuracy-100*25.0/26.0) > 1e-9 {
		t.Fatalf("unexpected accuracy %f", snap.Accuracy)
	}
}

func TestMilestonesFireOncePerSession(t *testing.T) {
	clock := newClock()
	e := newEngine(strings.Repeat("a", 80), clock, nil)
	var fired []int
	collect := func(events []Event) {
		for _, ev := range events {
			if ev.Milestone > 0 {
				fired = append(fired, ev.Milestone)
			}
		}
	}
	collect(typeText(e, clock, strings.Repeat("a", 26)))
	e.Keystroke('x')
	e.Backspace()
	collect(typeText(e, clock, strings.Repeat("a", 52)))
	if !reflect.DeepEqual(fired, []int{25, 50}) {
		t.Fatalf("unexpected milestones %v", fired)
	}
	if e.Snapshot().BestStreak != 52 {
		t.Fatalf("unexpected best streak %d", e.Snapshot().BestStreak)
	}
}

func TestPersistenceFailureDoesNotBlock(t *testing.T) {
	clock := newClock()
	rec := &recorder{fail: true}
	text := "One. Two. Three."
	e := newEngine(text, clock, rec)
	typeText(e, clock, text)
	e.Close()
	if e.Snapshot().State != Finished {
		t.Fatalf("storage failures must not affect the session")
	}
	if len(rec.sprints) != 1 {
		t.Fatalf("expected the sprint write to be attempted")
	}
}

func TestCloseRecordsOpenSprint(t *testing.T) {
	clock := newClock()
	rec := &recorder{}
	e := newEngine("abcdef", clock, rec)
	typeText(e, clock, "abx")
	e.Close()
	e.Close()
	if len(rec.sprints) != 1 {
		t.Fatalf("expected one sprint, got %d", len(rec.sprints))
	}
	s := rec.sprints[0]
	if s.Chars != 2 || s.Mistakes != 1 || s.Completed || s.ID == "" {
		t.Fatalf("unexpected sprint %+v", s)
	}
	var missed model.CharStats
	for _, c := range rec.chars[0] {
		if c.Char == "c" {
			missed = c
		}
	}
	if missed.Incorrect != 1 {
		t.Fatalf("expected a miss recorded against the expected char, got %+v", rec.chars[0])
	}
}

func TestTypingAfterCloseKeepsWritesOff(t *testing.T) {
	clock := newClock()
	rec := &recorder{}
	e := newEngine("One. Two. Three.", clock, rec)
	typeText(e, clock, "One.")
	e.Close()
	typeText(e, clock, " Two. Three.")
	if e.Snapshot().State != Finished {
		t.Fatalf("expected the session to finish in memory, got %v", e.Snapshot().State)
	}
	e.Close()
	if len(rec.checkpoints) != 1 || rec.checkpoints[0] != 4 {
		t.Fatalf("expected only the checkpoint before close, got %v", rec.checkpoints)
	}
	if len(rec.sprints) != 1 || len(rec.completed) != 0 {
		t.Fatalf("expected no writes after close, got %d sprints and %v completed", len(rec.sprints), rec.completed)
	}
}

func TestMostMissed(t *testing.T) {
	clock := newClock()
	e := newEngine("abc", clock, nil, func(o *Options) { o.Bypass = true })
	e.Keystroke('x')
	e.Keystroke('x')
	e.Backspace()
	e.Keystroke('a')
	e.Keystroke('x')
	if got := e.MostMissed(8); !reflect.DeepEqual(got, []rune{'a', 'b'}) {
		t.Fatalf("unexpected most missed %q", got)
	}
}

func TestSprintMetrics(t *testing.T) {
	wpm, acc := SprintMetrics(50, 0, time.Minute)
	if wpm != 10 || acc != 1 {
		t.Fatalf("unexpected metrics %f %f", wpm, acc)
	}
	if _, acc := SprintMetrics(3, 1, 0); acc != 0.75 {
		t.Fatalf("unexpected accuracy %f", acc)
	}
}
