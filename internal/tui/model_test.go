package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/typebook/internal/engine"
)

func newTestModel(text string, next NextFunc) *Model {
	eng := engine.New(engine.Options{Text: text})
	return NewModel(Session{Engine: eng, Title: "Chapter One"}, next)
}

func typeString(m *Model, s string) {
	for _, r := range s {
		switch r {
		case ' ':
			m.Update(tea.KeyMsg{Type: tea.KeySpace})
		case '\n':
			m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		default:
			m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		}
	}
}

func TestRenderFooterFormats(t *testing.T) {
	m := newTestModel("abcd", nil)
	typeString(m, "ab")
	out := m.renderFooter(m.session.Engine.Snapshot())
	if !containsAll(out, []string{"Chapter One", "Progress 50%", "WPM", "Streak 2", "0:00"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func TestHardStopNamesExpectedKey(t *testing.T) {
	m := newTestModel("\tab", nil)
	typeString(m, "xxxxx")
	snap := m.session.Engine.Snapshot()
	if snap.State != engine.Paused || snap.Reason != engine.PauseHardStop {
		t.Fatalf("expected hard stop, got %v", snap.State)
	}
	if out := m.renderStatus(snap); !strings.Contains(out, "Type Tab to continue.") {
		t.Fatalf("status does not name the expected key: %s", out)
	}
}

func TestEscTogglesPause(t *testing.T) {
	m := newTestModel("abcd", nil)
	typeString(m, "a")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	snap := m.session.Engine.Snapshot()
	if snap.State != engine.Paused || snap.Reason != engine.PauseManual {
		t.Fatalf("expected manual pause, got %v", snap.State)
	}
	if !strings.Contains(m.renderStatus(snap), "Paused") {
		t.Fatalf("expected paused status")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.session.Engine.Snapshot().State != engine.Active {
		t.Fatalf("expected active after second esc")
	}
}

func TestEnterLoadsNextChapter(t *testing.T) {
	calls := 0
	next := func() (Session, bool, error) {
		calls++
		if calls > 1 {
			return Session{}, false, nil
		}
		return Session{Engine: engine.New(engine.Options{Text: "xy"}), Title: "Chapter Two"}, true, nil
	}
	m := newTestModel("ab", next)
	typeString(m, "ab")
	if m.session.Engine.Snapshot().State != engine.Finished {
		t.Fatalf("expected finished chapter")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.session.Title != "Chapter Two" {
		t.Fatalf("expected next chapter, got %q", m.session.Title)
	}
	typeString(m, "xy")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected quit after the last chapter")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestEnterIsNewlineWhileTyping(t *testing.T) {
	m := newTestModel("a\nb", nil)
	typeString(m, "a\n")
	if got := m.session.Engine.Snapshot().Cursor; got != 2 {
		t.Fatalf("expected cursor 2, got %d", got)
	}
}

func TestViewFitsWindow(t *testing.T) {
	m := newTestModel(strings.Repeat("word ", 400), nil)
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	out := m.View()
	if got := strings.Count(out, "\n"); got != 9 {
		t.Fatalf("expected 10 lines, got %d", got+1)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
