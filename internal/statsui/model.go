// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/stats"
)

const (
	tabOverview = iota
	tabChars
)

var trendWindows = []int{1, 3, 5, 10, 20}

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// Loader fetches a report for the given filters.
type Loader func(cfg model.StatsConfig) (stats.Report, error)

// Model implements the Bubble Tea stats UI.
type Model struct {
	load   Loader
	cfg    model.StatsConfig
	window int

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model
	charTable table.Model

	width  int
	height int
}

// NewModel constructs a stats UI model and loads the first report.
func NewModel(load Loader, cfg model.StatsConfig) *Model {
	m := &Model{
		load:     load,
		cfg:      cfg,
		window:   trendWindows[2],
		tabs:     []string{"Overview", "Characters"},
		overview: viewport.New(0, 0),
	}
	m.charTable = buildCharTable(nil, 0, 1)
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h", "right", "l", "tab":
			m.activeTab = (m.activeTab + 1) % len(m.tabs)
			if m.activeTab == tabChars {
				m.charTable.Focus()
			} else {
				m.charTable.Blur()
			}
			return m, nil
		case "=":
			m.window = stepWindow(m.window, 1)
			m.renderOverview()
			return m, nil
		case "-":
			m.window = stepWindow(m.window, -1)
			m.renderOverview()
			return m, nil
		case "r":
			m.refreshReport()
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabChars {
			m.charTable, cmd = m.charTable.Update(msg)
		} else {
			m.overview, cmd = m.overview.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	var body string
	if m.activeTab == tabChars {
		body = m.charTable.View()
	} else {
		body = m.overview.View()
	}
	return strings.Join([]string{m.renderTabs(), m.renderFilterSummary(), body, m.renderFooter()}, "\n")
}

func (m *Model) refreshReport() {
	report, err := m.load(m.cfg)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to load stats: %v", err)
		return
	}
	m.errMsg = ""
	m.report = report
	m.renderOverview()
	m.charTable.SetRows(charRows(report.CharAggs))
}

func (m *Model) renderOverview() {
	var buf bytes.Buffer
	if err := stats.RenderActivity(&buf, m.report.Activity); err != nil {
		m.errMsg = err.Error()
	}
	if err := stats.RenderSummary(&buf, m.report.Sprints); err != nil {
		m.errMsg = err.Error()
	}
	width := max(10, m.width-20)
	if err := stats.RenderTrend(&buf, m.report.Sprints, m.window, width); err != nil {
		m.errMsg = err.Error()
	}
	m.overview.SetContent(buf.String())
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight int) {
	headerHeight = lipgloss.Height(activeNavStyle.Render("X")) + 1
	bodyHeight = m.height - headerHeight - 1
	if m.errMsg != "" {
		bodyHeight--
	}
	return headerHeight, max(1, bodyHeight)
}

func (m *Model) updateLayout() {
	_, bodyHeight := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.charTable.SetWidth(m.width)
	m.charTable.SetHeight(bodyHeight)
	m.renderOverview()
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderFilterSummary() string {
	book := m.cfg.BookID
	if book == "" {
		book = "all"
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = humanize.Comma(int64(m.cfg.Last))
	}
	return headerStyle.Render(fmt.Sprintf("User: %s  book=%s  last=%s  window=%d", m.cfg.UserID, book, last, m.window))
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Tabs: left/right  Scroll: up/down  Window: -/=  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func stepWindow(current, delta int) int {
	idx := 0
	for i, w := range trendWindows {
		if w == current {
			idx = i
		}
	}
	idx = min(len(trendWindows)-1, max(0, idx+delta))
	return trendWindows[idx]
}

func buildCharTable(aggs []model.CharAggregate, width, height int) table.Model {
	columns := []table.Column{
		{Title: "Char", Width: 8},
		{Title: "Missed", Width: 8},
		{Title: "Correct", Width: 10},
		{Title: "Accuracy", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(charRows(aggs)),
		table.WithHeight(max(1, height)),
		table.WithWidth(width),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		BorderBottom(true).
		Bold(false)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#F0F0F0")).
		Background(lipgloss.Color("#3A3A3A")).
		Bold(false)
	t.SetStyles(styles)
	return t
}

func charRows(aggs []model.CharAggregate) []table.Row {
	ranked := stats.RankMissed(aggs)
	rows := make([]table.Row, 0, len(ranked))
	for _, agg := range ranked {
		acc := 0.0
		if total := agg.Correct + agg.Incorrect; total > 0 {
			acc = float64(agg.Correct) / float64(total) * 100
		}
		rows = append(rows, table.Row{
			stats.CharLabel(agg.Char),
			humanize.Comma(int64(agg.Incorrect)),
			humanize.Comma(int64(agg.Correct)),
			fmt.Sprintf("%.1f%%", acc),
		})
	}
	return rows
}
