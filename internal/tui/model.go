// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typebook/internal/engine"
)

const (
	// windowBefore and windowAfter bound how much text around the cursor is laid out.
	windowBefore = 800
	windowAfter  = 2000
	bannerTTL    = 2 * time.Second
)

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	fixedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#E6C07B"))
	dirtyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF9F43"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle      = pendingStyle.Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
)

// Session is one chapter loaded into an engine.
type Session struct {
	Engine *engine.Engine
	Title  string
}

// NextFunc loads the session after the finished one. ok is false when there is
// nothing left to type.
type NextFunc func() (next Session, ok bool, err error)

type tickMsg time.Time

// Model implements the Bubble Tea typing UI.
type Model struct {
	session Session
	next    NextFunc
	now     func() time.Time

	width  int
	height int

	banner      string
	bannerUntil time.Time
	errMsg      string
	err         error
}

// NewModel constructs a typing TUI model. next may be nil when there is no
// follow-up session.
func NewModel(session Session, next NextFunc) *Model {
	return &Model{session: session, next: next, now: time.Now}
}

// Err returns the error that ended the program, if any.
func (m *Model) Err() error {
	return m.err
}

// Close records the open sprint of the current session and waits for its writes.
func (m *Model) Close() {
	if m.session.Engine != nil {
		m.session.Engine.Close()
	}
}

func tick() tea.Cmd {
	return tea.Tick(engine.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.handleEvent(m.session.Engine.Tick())
		return m, tick()
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	eng := m.session.Engine
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		snap := eng.Snapshot()
		if snap.State == engine.Paused && snap.Reason == engine.PauseManual {
			eng.Resume()
		} else {
			eng.Pause()
		}
		return m, nil
	case tea.KeyEnter:
		snap := eng.Snapshot()
		switch {
		case snap.State == engine.Finished:
			return m.advance()
		case snap.State == engine.Paused && snap.Reason == engine.PauseSprintEnd:
			eng.Start()
			return m, nil
		}
		m.handleEvent(eng.Keystroke('\n'))
		return m, nil
	case tea.KeyTab:
		m.handleEvent(eng.Keystroke('\t'))
		return m, nil
	case tea.KeyBackspace, tea.KeyDelete:
		m.handleEvent(eng.Backspace())
		return m, nil
	case tea.KeySpace:
		m.handleEvent(eng.Keystroke(' '))
		return m, nil
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.handleEvent(eng.Keystroke(r))
		}
		return m, nil
	default:
		return m, nil
	}
}

// advance closes the finished session and loads the next one.
func (m *Model) advance() (tea.Model, tea.Cmd) {
	if m.next == nil {
		return m, tea.Quit
	}
	m.session.Engine.Close()
	next, ok, err := m.next()
	if err != nil {
		m.err = err
		return m, tea.Quit
	}
	if !ok {
		return m, tea.Quit
	}
	m.session = next
	m.banner = ""
	m.errMsg = ""
	return m, nil
}

func (m *Model) handleEvent(ev engine.Event) {
	switch {
	case ev.Milestone > 0:
		m.showBanner(fmt.Sprintf("Streak %d!", ev.Milestone))
	case ev.Overtime:
		m.showBanner("Sprint time is up. Finish the sentence.")
	case ev.Resumed:
		m.showBanner("Back on track.")
	}
}

func (m *Model) showBanner(text string) {
	m.banner = text
	m.bannerUntil = m.now().Add(bannerTTL)
}

// View implements tea.Model.
func (m *Model) View() string {
	eng := m.session.Engine
	text := eng.Text()
	if len(text) == 0 {
		return ""
	}
	snap := eng.Snapshot()
	from, to := layoutWindow(text, snap.Cursor)
	styled := buildStyledRunes(text, eng.Statuses(), from, to, snap.Cursor)
	footer := m.renderFooter(snap)
	status := m.renderStatus(snap)
	if m.width == 0 || m.height == 0 {
		return renderStyledRunes(styled) + "\n" + status + "\n" + footer
	}
	contentWidth := int(float64(m.width) * 0.70)
	if contentWidth < 1 {
		contentWidth = 1
	}
	bodyHeight := m.height - 2
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	lines, cursorLine := wrapLines(styled, contentWidth)
	lines = visibleLines(lines, cursorLine, bodyHeight)
	content := lipgloss.NewStyle().Width(contentWidth).Render(strings.Join(lines, "\n"))
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	statusLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, status)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + statusLine + "\n" + footerLine
}

// layoutWindow picks the slice of text drawn around the cursor, starting at a line
// start when one is near.
func layoutWindow(text []rune, cursor int) (int, int) {
	from := max(0, cursor-windowBefore)
	if from > 0 {
		for i := from; i < cursor; i++ {
			if text[i] == '\n' {
				from = i + 1
				break
			}
		}
	}
	to := min(len(text), cursor+windowAfter)
	return from, to
}

// visibleLines keeps the cursor line in the upper third of the body.
func visibleLines(lines []string, cursorLine, height int) []string {
	if len(lines) <= height {
		return lines
	}
	start := max(0, cursorLine-height/3)
	end := min(len(lines), start+height)
	start = max(0, end-height)
	return lines[start:end]
}

func (m *Model) renderStatus(snap engine.Snapshot) string {
	if m.errMsg != "" {
		return incorrectStyle.Render(m.errMsg)
	}
	switch snap.State {
	case engine.NotStarted:
		return footerStyle.Render("Start typing to begin. Esc pauses, Ctrl+C quits.")
	case engine.Finished:
		msg := "Chapter complete."
		if sum, ok := m.session.Engine.LastSummary(); ok {
			msg = fmt.Sprintf("Chapter complete: %.1f WPM, %.1f%% accuracy.", sum.WPM, sum.Accuracy*100)
		}
		if m.next != nil {
			msg += " Enter for the next chapter."
		}
		return noticeStyle.Render(msg)
	case engine.Paused:
		switch snap.Reason {
		case engine.PauseHardStop:
			hint := "Type the underlined character to continue."
			if r, ok := m.session.Engine.Expected(); ok {
				hint = fmt.Sprintf("Type %s to continue.", keyLabel(r))
			}
			if snap.Cause == engine.CauseInactivity {
				return noticeStyle.Render("Stopped for inactivity. " + hint)
			}
			return incorrectStyle.Render("Too many mistakes in a row. " + hint)
		case engine.PauseSprintEnd:
			msg := "Sprint over."
			if sum, ok := m.session.Engine.LastSummary(); ok {
				msg = fmt.Sprintf("Sprint over: %.1f WPM, %.1f%% accuracy.", sum.WPM, sum.Accuracy*100)
			}
			return noticeStyle.Render(msg + " Enter starts the next sprint.")
		default:
			return noticeStyle.Render("Paused. Esc to resume.")
		}
	}
	if m.banner != "" && m.now().Before(m.bannerUntil) {
		return noticeStyle.Render(m.banner)
	}
	return ""
}

func (m *Model) renderFooter(snap engine.Snapshot) string {
	progress := 0
	if snap.Length > 0 {
		progress = int(float64(snap.Cursor) / float64(snap.Length) * 100)
	}
	segments := []string{}
	if m.session.Title != "" {
		segments = append(segments, m.session.Title)
	}
	segments = append(segments,
		fmt.Sprintf("Progress %d%%", progress),
		fmt.Sprintf("%.1f WPM · %.1f%%", snap.WPM, snap.Accuracy),
		fmt.Sprintf("Streak %d", snap.Streak),
	)
	timer := formatDuration(snap.SprintActive)
	if snap.SprintLength > 0 {
		timer += "/" + formatDuration(snap.SprintLength)
	}
	if snap.Overtime {
		timer += " overtime"
	}
	segments = append(segments, timer)
	return footerStyle.Render(strings.Join(segments, "  "))
}

func keyLabel(r rune) string {
	switch r {
	case '\t':
		return "Tab"
	case '\n':
		return "Enter"
	case ' ':
		return "Space"
	}
	return fmt.Sprintf("%q", r)
}

func formatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
