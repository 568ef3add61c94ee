// Package importui provides the Bubble Tea wizard that resolves untypable
// characters during an import.
package importui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/resolver"
)

type action int

const (
	actionNone action = iota
	actionEdit
	actionReplaceAll
	actionReplaceWord
	actionConfirmCancel
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true).Underline(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB069"))
	contextStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A")).
			Padding(0, 1)
)

// Model implements the import wizard.
type Model struct {
	res    *resolver.Resolver
	prompt resolver.Prompt
	action action
	input  textinput.Model

	notice string
	errMsg string
	width  int
	fixed  int
}

// NewModel builds a wizard over res.
func NewModel(res *resolver.Resolver) *Model {
	input := textinput.New()
	input.CharLimit = 0
	m := &Model{res: res, input: input}
	m.prompt, _ = res.Current()
	return m
}

// Cancelled reports whether the user abandoned the import.
func (m *Model) Cancelled() bool {
	return m.res.Cancelled()
}

// Fixed returns how many replacements the user applied.
func (m *Model) Fixed() int {
	return m.fixed
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.res.Done() {
		return tea.Quit
	}
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-20)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.res.Cancel()
			return m, tea.Quit
		}
		switch m.action {
		case actionNone:
			return m.updateChoose(msg)
		case actionConfirmCancel:
			return m.updateConfirm(msg)
		default:
			return m.updateInput(msg)
		}
	}
	return m, nil
}

func (m *Model) updateChoose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.errMsg = ""
	switch msg.String() {
	case "i", "n":
		m.res.Ignore()
		m.notice = ""
		return m.refresh()
	case "a":
		return m.startInput(actionReplaceAll, m.prompt.Suggestion)
	case "w":
		if m.prompt.Word == "" {
			m.errMsg = "no word around this character"
			return m, nil
		}
		word := m.prompt.Word
		if m.prompt.HasSuggestion {
			word = strings.ReplaceAll(word, string(m.prompt.Error.BadChar), m.prompt.Suggestion)
		}
		return m.startInput(actionReplaceWord, word)
	case "e":
		return m.startInput(actionEdit, escapeControls(m.prompt.Context))
	case "enter":
		if !m.prompt.HasSuggestion {
			m.errMsg = "no suggestion for this character"
			return m, nil
		}
		return m.apply(actionReplaceAll, m.prompt.Suggestion)
	case "c", "esc", "q":
		m.action = actionConfirmCancel
		return m, nil
	}
	return m, nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		m.res.Cancel()
		return m, tea.Quit
	default:
		m.action = actionNone
		return m, nil
	}
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.action = actionNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		return m.apply(m.action, m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) startInput(a action, value string) (tea.Model, tea.Cmd) {
	m.action = a
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m *Model) apply(a action, value string) (tea.Model, tea.Cmd) {
	var (
		n   int
		err error
	)
	switch a {
	case actionEdit:
		err = m.res.Save(unescapeControls(value))
		n = 1
	case actionReplaceAll:
		n, err = m.res.ReplaceAll(value)
	case actionReplaceWord:
		n, err = m.res.ReplaceWord(value)
	}
	if err != nil {
		var verr *model.ValidationError
		switch {
		case errors.As(err, &verr):
			m.errMsg = fmt.Sprintf("%q cannot be typed; try again", verr.Char)
		default:
			m.errMsg = err.Error()
		}
		return m, nil
	}
	m.fixed += n
	m.notice = fmt.Sprintf("%d replacement(s) applied", n)
	m.action = actionNone
	m.input.Blur()
	return m.refresh()
}

func (m *Model) refresh() (tea.Model, tea.Cmd) {
	p, ok := m.res.Current()
	if !ok {
		return m, tea.Quit
	}
	m.prompt = p
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.res.Done() {
		return ""
	}
	p := m.prompt
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Untypable character %d of %d", p.Index+1, p.Total)),
		mutedStyle.Render(fmt.Sprintf("Chapter: %s", p.Error.ChapTitle)),
		"",
		fmt.Sprintf("Character %s (U+%04X) appears %d time(s) in the book.", badStyle.Render(string(p.Error.BadChar)), p.Error.BadChar, p.Occurrences),
	}
	if p.Word != "" {
		lines = append(lines, fmt.Sprintf("Word %q appears %d time(s).", p.Word, p.WordOccurrences))
	}
	if p.HasSuggestion {
		lines = append(lines, fmt.Sprintf("Suggested replacement: %q", p.Suggestion))
	}
	width := 0
	if m.width > 4 {
		width = m.width - 4
	}
	lines = append(lines, contextStyle.Width(width).Render(highlight(p.Context, p.Error.BadChar)), "")

	switch m.action {
	case actionNone:
		help := "[i] ignore  [a] replace all  [w] replace word  [e] edit context  [c] cancel import"
		if p.HasSuggestion {
			help = "[enter] apply suggestion  " + help
		}
		lines = append(lines, mutedStyle.Render(help))
	case actionConfirmCancel:
		lines = append(lines, errorStyle.Render("Abandon this import? [y] yes  [any key] no"))
	default:
		lines = append(lines, mutedStyle.Render(inputLabel(m.action)), m.input.View(), mutedStyle.Render("[enter] apply  [esc] back"))
	}
	if m.notice != "" {
		lines = append(lines, infoStyle.Render(m.notice))
	}
	if m.errMsg != "" {
		lines = append(lines, errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

var controlEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`)

// escapeControls spells tabs and newlines as \t and \n so a single-line input can
// carry them.
func escapeControls(s string) string {
	return controlEscaper.Replace(s)
}

func unescapeControls(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '\\' || i+1 == len(runes) {
			b.WriteRune(runes[i])
			continue
		}
		switch runes[i+1] {
		case 't':
			b.WriteRune('\t')
		case 'n':
			b.WriteRune('\n')
		case '\\':
			b.WriteRune('\\')
		default:
			b.WriteRune(runes[i])
			continue
		}
		i++
	}
	return b.String()
}

func inputLabel(a action) string {
	switch a {
	case actionEdit:
		return "Edit the highlighted passage (\\t marks a paragraph, \\n a line break):"
	case actionReplaceWord:
		return "Replace the word everywhere with:"
	default:
		return "Replace the character everywhere with:"
	}
}

func highlight(text string, bad rune) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == bad:
			b.WriteString(badStyle.Render(string(r)))
		case r == '\t':
			b.WriteString("  ")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
