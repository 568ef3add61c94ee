// Package main provides the CLI entrypoint for typebook.
package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/stats"
	"github.com/verte-zerg/typebook/internal/statsui"
)

const (
	defaultTrendWindow = 5
	defaultCharRows    = 10
)

var (
	statsUser  string
	statsBook  string
	statsSince string
	statsLast  int
	statsTUI   bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show typing stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsUser, "user", defaultUser, "learner identity")
	cmd.Flags().StringVar(&statsBook, "book", "", "book filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sprints")
	cmd.Flags().BoolVar(&statsTUI, "tui", false, "browse stats interactively")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	cfg := model.StatsConfig{
		UserID: resolveUser(cmd, statsUser),
		BookID: statsBook,
		Since:  sinceTime,
		Last:   statsLast,
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	load := func(cfg model.StatsConfig) (stats.Report, error) {
		return stats.BuildReport(context.Background(), st, cfg, time.Now())
	}
	if statsTUI && interactive() {
		m := statsui.NewModel(load, cfg)
		return withLogFile(func() error {
			if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("failed to run stats TUI: %w", err)
			}
			return nil
		})
	}

	report, err := load(cfg)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderActivity(out, report.Activity); err != nil {
		return err
	}
	if err := stats.RenderSummary(out, report.Sprints); err != nil {
		return err
	}
	if err := stats.RenderTrend(out, report.Sprints, defaultTrendWindow, stats.SparkWidth()); err != nil {
		return err
	}
	return stats.RenderCharTable(out, report.CharAggs, defaultCharRows)
}
