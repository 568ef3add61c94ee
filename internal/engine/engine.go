// Package engine implements the typing session state machine.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/typebook/internal/model"
)

// State is the session state.
type State int

const (
	NotStarted State = iota
	Active
	Paused
	Overtime
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Overtime:
		return "overtime"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// PauseReason qualifies the Paused state.
type PauseReason int

const (
	PauseNone PauseReason = iota
	PauseManual
	PauseHardStop
	PauseSprintEnd
)

// StopCause tells why a hard stop happened.
type StopCause int

const (
	CauseNone StopCause = iota
	CauseMistakes
	CauseInactivity
)

// CharStatus is the display status of one character.
type CharStatus int

const (
	Pending CharStatus = iota
	Perfect
	Fixed
	Dirty
	Error
)

const (
	// SpamThreshold is the number of consecutive mistakes that forces a hard stop.
	SpamThreshold = 5
	// IdleThreshold is the keystroke gap after which active time stops accruing.
	IdleThreshold = 2 * time.Second
	// AFKThreshold is the keystroke gap after which the session hard-stops.
	AFKThreshold = 5 * time.Second
	// TickInterval is how often the caller should invoke Tick.
	TickInterval = 100 * time.Millisecond
	// OvertimeTail is the minimum text left for an overtime sprint to soft-pause.
	OvertimeTail = 200
)

// Options configures a session over one chapter.
type Options struct {
	UserID  string
	BookID  string
	Chapter int
	Text    string
	// Start is the resume position. A position at or past the end restarts the chapter.
	Start int
	// SprintLength of zero means open-ended.
	SprintLength time.Duration
	Bypass       bool
	// Practice sessions never write checkpoints or chapter completion.
	Practice bool
	Recorder Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Event reports what a single input caused.
type Event struct {
	Accepted   bool
	Mistake    bool
	Checkpoint bool
	Milestone  int
	HardStop   bool
	Resumed    bool
	Overtime   bool
	SoftPause  bool
	Completed  bool
}

// Summary describes a closed sprint.
type Summary struct {
	Chars     int
	Mistakes  int
	Active    time.Duration
	WPM       float64
	Accuracy  float64
	Completed bool
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	State          State
	Reason         PauseReason
	Cause          StopCause
	Cursor         int
	Length         int
	SprintStart    int
	WPM            float64
	Accuracy       float64
	Streak         int
	BestStreak     int
	Mistakes       int
	SprintChars    int
	SprintMistakes int
	SprintActive   time.Duration
	SessionActive  time.Duration
	SprintLength   time.Duration
	Overtime       bool
}

type sprint struct {
	id        string
	startedAt time.Time
	chars     int
	mistakes  int
	active    time.Duration
	stats     map[rune]*model.CharStats
	open      bool
}

// Engine owns all state of one typing session. Methods are safe for concurrent use;
// keystrokes and ticks are serialized by a single lock.
type Engine struct {
	mu     sync.Mutex
	opts   Options
	now    func() time.Time
	logger *slog.Logger
	w      *writer

	text   []rune
	status []CharStatus

	state  State
	reason PauseReason
	cause  StopCause
	resume State

	cursor          int
	sprintStart     int
	backspaceOrigin int
	consecutive     int
	streak          int
	bestStreak      int
	fired           map[int]bool
	mistakes        int
	missed          map[rune]int
	rolling         rolling
	cur             sprint
	last            Summary
	hasLast         bool

	lastKey       time.Time
	lastTick      time.Time
	sessionActive time.Duration
	modal         bool
	completed     bool

	closed    bool
	closeOnce sync.Once
}

// New builds an engine in the NotStarted state.
func New(opts Options) *Engine {
	e := &Engine{
		opts:            opts,
		now:             opts.Now,
		logger:          opts.Logger,
		text:            []rune(opts.Text),
		backspaceOrigin: -1,
		fired:           map[int]bool{},
		missed:          map[rune]int{},
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	start := opts.Start
	if start < 0 || start >= len(e.text) {
		start = 0
	}
	e.cursor = start
	e.status = make([]CharStatus, len(e.text))
	for i := 0; i < start; i++ {
		e.status[i] = Perfect
	}
	if opts.Recorder != nil {
		e.w = newWriter(e.logger)
	}
	return e
}

// Start begins a new sprint from NotStarted or after a soft pause, and resumes a
// manual pause.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startLocked()
}

func (e *Engine) startLocked() {
	switch {
	case e.state == NotStarted, e.state == Paused && e.reason == PauseSprintEnd:
		now := e.now()
		e.cur = sprint{
			id:        uuid.NewString(),
			startedAt: now,
			stats:     map[rune]*model.CharStats{},
			open:      true,
		}
		e.sprintStart = e.cursor
		e.backspaceOrigin = -1
		e.consecutive = 0
		e.streak = 0
		e.rolling.reset()
		e.setRunning(Active, now)
	case e.state == Paused && e.reason == PauseManual:
		e.setRunning(e.resume, e.now())
	}
}

func (e *Engine) setRunning(s State, now time.Time) {
	e.state = s
	e.reason = PauseNone
	e.cause = CauseNone
	e.lastKey = now
	e.lastTick = now
}

// Pause suspends a running sprint.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running() {
		return
	}
	e.pauseLocked(PauseManual, CauseNone)
}

// Resume continues after a manual pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Paused && e.reason == PauseManual {
		e.setRunning(e.resume, e.now())
	}
}

// SetModal tells the engine whether another blocking dialog is open. An open
// modal suppresses the inactivity hard stop.
func (e *Engine) SetModal(open bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modal = open
}

func (e *Engine) running() bool {
	return e.state == Active || e.state == Overtime
}

func (e *Engine) pauseLocked(reason PauseReason, cause StopCause) {
	e.resume = e.state
	e.state = Paused
	e.reason = reason
	e.cause = cause
}

// Keystroke handles one typed rune. Tab and Enter are passed as '\t' and '\n'.
func (e *Engine) Keystroke(r rune) Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r == '\r' {
		r = '\n'
	}
	switch e.state {
	case NotStarted:
		e.startLocked()
	case Paused:
		if e.reason == PauseHardStop {
			return e.resumeHardStop(r)
		}
		return Event{}
	case Finished:
		return Event{}
	}
	if e.cursor >= len(e.text) {
		return Event{}
	}
	now := e.now()
	e.lastKey = now
	expected := e.text[e.cursor]
	if r != expected {
		return e.mistake(expected)
	}
	if e.status[e.cursor] == Error {
		// Errors block advancement until cleared with backspace.
		return Event{}
	}
	return e.accept(now)
}

func (e *Engine) resumeHardStop(r rune) Event {
	if e.cursor >= len(e.text) || r != e.text[e.cursor] {
		return Event{}
	}
	now := e.now()
	e.setRunning(e.resume, now)
	ev := e.accept(now)
	ev.Resumed = true
	return ev
}

func (e *Engine) accept(now time.Time) Event {
	idx := e.cursor
	c := e.text[idx]
	st := Perfect
	switch {
	case e.status[idx] == Error:
		st = Dirty
	case e.status[idx] == Fixed, e.backspaceOrigin >= 0 && idx < e.backspaceOrigin:
		st = Fixed
	}
	e.status[idx] = st
	e.cursor++
	if e.backspaceOrigin >= 0 && e.cursor >= e.backspaceOrigin {
		e.backspaceOrigin = -1
	}

	e.consecutive = 0
	e.rolling.accept(now)
	e.streak++
	if e.streak > e.bestStreak {
		e.bestStreak = e.streak
	}
	e.cur.chars++
	e.charStat(c).Correct++

	ev := Event{Accepted: true}
	for _, m := range Milestones {
		if e.streak == m && !e.fired[m] {
			e.fired[m] = true
			ev.Milestone = m
		}
	}
	boundary := e.isBoundary(idx)
	if boundary {
		ev.Checkpoint = true
		e.saveCheckpoint(e.cursor)
	}
	switch {
	case e.cursor == len(e.text):
		e.complete(&ev)
	case e.state == Overtime && boundary && len(e.text)-e.cursor > OvertimeTail:
		e.pauseLocked(PauseSprintEnd, CauseNone)
		e.endSprint(false)
		ev.SoftPause = true
	}
	return ev
}

func (e *Engine) mistake(expected rune) Event {
	e.mistakes++
	e.cur.mistakes++
	e.consecutive++
	e.status[e.cursor] = Error
	e.streak = 0
	e.rolling.outcome(false)
	e.charStat(expected).Incorrect++
	e.missed[expected]++
	ev := Event{Mistake: true}
	if e.consecutive >= SpamThreshold && !e.opts.Bypass {
		e.pauseLocked(PauseHardStop, CauseMistakes)
		ev.HardStop = true
	}
	return ev
}

// Backspace clears an error flag at the cursor, or steps the cursor back within
// the current sprint.
func (e *Engine) Backspace() Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running() {
		return Event{}
	}
	e.lastKey = e.now()
	if e.cursor < len(e.text) && e.status[e.cursor] == Error {
		e.status[e.cursor] = Fixed
		return Event{}
	}
	if e.cursor <= e.sprintStart {
		return Event{}
	}
	if e.backspaceOrigin < 0 {
		e.backspaceOrigin = e.cursor
	}
	e.cursor--
	e.status[e.cursor] = Fixed
	return Event{}
}

// Tick advances timers. Callers invoke it every TickInterval.
func (e *Engine) Tick() Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	dt := now.Sub(e.lastTick)
	e.lastTick = now
	if !e.running() {
		return Event{}
	}
	gap := now.Sub(e.lastKey)
	if gap < IdleThreshold && dt > 0 {
		e.cur.active += dt
		e.sessionActive += dt
	}
	var ev Event
	switch {
	case gap > AFKThreshold && !e.modal && !e.opts.Bypass:
		e.pauseLocked(PauseHardStop, CauseInactivity)
		ev.HardStop = true
	case e.state == Active && e.opts.SprintLength > 0 && e.cur.active >= e.opts.SprintLength:
		e.state = Overtime
		ev.Overtime = true
	}
	return ev
}

func (e *Engine) complete(ev *Event) {
	e.state = Finished
	e.reason = PauseNone
	if e.completed {
		return
	}
	e.completed = true
	ev.Completed = true
	if !ev.Checkpoint {
		e.saveCheckpoint(e.cursor)
	}
	if e.w != nil && !e.opts.Practice {
		rec, chapter := e.opts.Recorder, e.opts.Chapter
		e.submit("complete chapter", func(ctx context.Context) error {
			return rec.CompleteChapter(ctx, chapter)
		})
	}
	e.endSprint(true)
}

// isBoundary reports whether the accepted character at idx ends a sentence. A
// quote right after a terminator also counts.
func (e *Engine) isBoundary(idx int) bool {
	switch e.text[idx] {
	case '.', '!', '?', '\n':
		return true
	case '"', '\'':
		return idx > 0 && isTerminator(e.text[idx-1])
	}
	return false
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func (e *Engine) saveCheckpoint(pos int) {
	if e.w == nil || e.opts.Practice {
		return
	}
	rec, chapter := e.opts.Recorder, e.opts.Chapter
	e.submit("checkpoint", func(ctx context.Context) error {
		return rec.SaveCheckpoint(ctx, chapter, pos)
	})
}

func (e *Engine) endSprint(completed bool) {
	if !e.cur.open {
		return
	}
	e.cur.open = false
	wpm, acc := SprintMetrics(e.cur.chars, e.cur.mistakes, e.cur.active)
	e.last = Summary{
		Chars:     e.cur.chars,
		Mistakes:  e.cur.mistakes,
		Active:    e.cur.active,
		WPM:       wpm,
		Accuracy:  acc,
		Completed: completed,
	}
	e.hasLast = true
	if e.w == nil {
		return
	}
	record := model.SprintRecord{
		ID:        e.cur.id,
		UserID:    e.opts.UserID,
		BookID:    e.opts.BookID,
		Chapter:   e.opts.Chapter,
		StartedAt: e.cur.startedAt,
		EndedAt:   e.now(),
		Chars:     e.cur.chars,
		Mistakes:  e.cur.mistakes,
		ActiveMs:  e.cur.active.Milliseconds(),
		Completed: completed,
	}
	chars := make([]model.CharStats, 0, len(e.cur.stats))
	for _, s := range e.cur.stats {
		chars = append(chars, *s)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i].Char < chars[j].Char })
	delta := model.Activity{
		Seconds:  e.cur.active.Seconds(),
		Chars:    e.cur.chars,
		Mistakes: e.cur.mistakes,
	}
	rec := e.opts.Recorder
	e.submit("save sprint", func(ctx context.Context) error {
		return rec.SaveSprint(ctx, record, chars)
	})
	e.submit("record activity", func(ctx context.Context) error {
		return rec.RecordActivity(ctx, delta)
	})
}

func (e *Engine) charStat(r rune) *model.CharStats {
	s, ok := e.cur.stats[r]
	if !ok {
		s = &model.CharStats{Char: string(r)}
		if e.cur.stats == nil {
			e.cur.stats = map[rune]*model.CharStats{}
		}
		e.cur.stats[r] = s
	}
	return s
}

// submit queues a persistence job unless the engine has been closed. Callers
// hold e.mu.
func (e *Engine) submit(op string, run func(ctx context.Context) error) {
	if e.w == nil || e.closed {
		return
	}
	e.w.submit(op, run)
}

// Close records an unfinished sprint and waits for pending writes. Later state
// changes are kept in memory only.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		if e.cur.open && (e.cur.chars > 0 || e.cur.mistakes > 0) {
			e.endSprint(false)
		}
		e.cur.open = false
		e.closed = true
		e.mu.Unlock()
		if e.w != nil {
			e.w.close()
		}
	})
}

// Snapshot returns the current session view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:          e.state,
		Reason:         e.reason,
		Cause:          e.cause,
		Cursor:         e.cursor,
		Length:         len(e.text),
		SprintStart:    e.sprintStart,
		WPM:            e.rolling.wpm(),
		Accuracy:       e.rolling.accuracy(),
		Streak:         e.streak,
		BestStreak:     e.bestStreak,
		Mistakes:       e.mistakes,
		SprintChars:    e.cur.chars,
		SprintMistakes: e.cur.mistakes,
		SprintActive:   e.cur.active,
		SessionActive:  e.sessionActive,
		SprintLength:   e.opts.SprintLength,
		Overtime:       e.state == Overtime || e.state == Paused && e.resume == Overtime,
	}
}

// Text returns the session text.
func (e *Engine) Text() []rune {
	out := make([]rune, len(e.text))
	copy(out, e.text)
	return out
}

// Statuses returns a copy of the per-character statuses.
func (e *Engine) Statuses() []CharStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CharStatus, len(e.status))
	copy(out, e.status)
	return out
}

// Expected returns the character at the cursor.
func (e *Engine) Expected() (rune, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursor >= len(e.text) {
		return 0, false
	}
	return e.text[e.cursor], true
}

// LastSummary returns the most recently closed sprint.
func (e *Engine) LastSummary() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.hasLast
}

// MostMissed returns up to n expected characters ordered by miss count.
func (e *Engine) MostMissed(n int) []rune {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]rune, 0, len(e.missed))
	for r := range e.missed {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if e.missed[out[i]] != e.missed[out[j]] {
			return e.missed[out[i]] > e.missed[out[j]]
		}
		return out[i] < out[j]
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
