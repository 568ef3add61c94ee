// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/verte-zerg/typebook/internal/model"
)

const (
	sparkChars          = " .:-=+*#%@"
	terminalWidthBackup = 80
	sparkMargin         = 12
)

// SprintMetrics computes WPM, CPM, and accuracy for a sprint.
func SprintMetrics(chars, mistakes int, activeMs int64) (wpm, cpm, accuracy float64) {
	den := float64(chars + mistakes)
	if den > 0 {
		accuracy = float64(chars) / den
	}
	if activeMs <= 0 {
		return 0, 0, accuracy
	}
	minutes := float64(activeMs) / 60000.0
	wpm = (float64(chars) / 5.0) / minutes
	cpm = float64(chars) / minutes
	return wpm, cpm, accuracy
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Tail keeps the last n values.
func Tail(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// SparkWidth is the sparkline width that fits the terminal on stdout.
func SparkWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = terminalWidthBackup
	}
	return max(10, width-sparkMargin)
}

// RenderActivity prints today's and this week's active typing.
func RenderActivity(w io.Writer, totals model.ActivityTotals) error {
	if _, err := fmt.Fprintln(w, "Activity"); err != nil {
		return err
	}
	rows := [][]string{
		activityRow("Today", totals.Today),
		activityRow("This week", totals.ThisWeek),
	}
	headers := []string{"Period", "Active", "Chars", "Mistakes"}
	for _, line := range formatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func activityRow(label string, a model.Activity) []string {
	active := time.Duration(a.Seconds * float64(time.Second)).Round(time.Second)
	return []string{label, active.String(), humanize.Comma(int64(a.Chars)), humanize.Comma(int64(a.Mistakes))}
}

// RenderSummary prints a summary for sprints.
func RenderSummary(w io.Writer, sprints []model.SprintAggregate) error {
	if len(sprints) == 0 {
		_, err := fmt.Fprintln(w, "No sprints found.")
		return err
	}
	var totalWPM, totalAcc float64
	var totalChars int
	bestWPM := 0.0
	for _, s := range sprints {
		wpm, _, acc := SprintMetrics(s.Chars, s.Mistakes, s.ActiveMs)
		totalWPM += wpm
		totalAcc += acc
		totalChars += s.Chars
		bestWPM = math.Max(bestWPM, wpm)
	}
	count := float64(len(sprints))
	last := sprints[len(sprints)-1]
	lines := []string{
		"Summary",
		fmt.Sprintf("Sprints: %d (last %s)", len(sprints), humanize.Time(last.EndedAt)),
		fmt.Sprintf("Chars typed: %s", humanize.Comma(int64(totalChars))),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %.2f", bestWPM),
		fmt.Sprintf("Avg Accuracy: %.2f%%", (totalAcc/count)*100),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTrend prints WPM and accuracy sparklines over the sprints.
func RenderTrend(w io.Writer, sprints []model.SprintAggregate, window, width int) error {
	if len(sprints) < 2 {
		return nil
	}
	wpms := make([]float64, len(sprints))
	accs := make([]float64, len(sprints))
	for i, s := range sprints {
		wpm, _, acc := SprintMetrics(s.Chars, s.Mistakes, s.ActiveMs)
		wpms[i] = wpm
		accs[i] = acc * 100
	}
	wpms = Tail(MovingAverage(wpms, window), width)
	accs = Tail(MovingAverage(accs, window), width)
	lines := []string{
		"Trend",
		fmt.Sprintf("WPM      %s  %.1f", Sparkline(wpms), wpms[len(wpms)-1]),
		fmt.Sprintf("Accuracy %s  %.1f%%", Sparkline(accs), accs[len(accs)-1]),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCharTable prints per-character aggregates, most missed first.
func RenderCharTable(w io.Writer, aggs []model.CharAggregate, limit int) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No character stats found.")
		return err
	}
	ranked := RankMissed(aggs)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if _, err := fmt.Fprintln(w, "Most Missed"); err != nil {
		return err
	}
	headers := []string{"Char", "Missed", "Accuracy", "Correct"}
	tableRows := make([][]string, 0, len(ranked))
	for _, agg := range ranked {
		tableRows = append(tableRows, []string{
			CharLabel(agg.Char),
			humanize.Comma(int64(agg.Incorrect)),
			fmt.Sprintf("%.2f%%", accuracy(agg)*100),
			humanize.Comma(int64(agg.Correct)),
		})
	}
	for _, line := range formatTable(headers, tableRows, map[int]bool{1: true, 2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// CharLabel makes whitespace characters readable.
func CharLabel(ch string) string {
	switch ch {
	case " ":
		return "<space>"
	case "\t":
		return "<tab>"
	case "\n":
		return "<enter>"
	}
	return ch
}
