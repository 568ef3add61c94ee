// Package main provides the CLI entrypoint for typebook.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typebook/internal/engine"
	"github.com/verte-zerg/typebook/internal/library"
	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/store"
	"github.com/verte-zerg/typebook/internal/tui"
)

const defaultSprintLength = "5m"

var (
	playChapter int
	playLength  string
	playBypass  bool
	playUser    string
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [BOOK]",
		Short: "Type a book chapter by chapter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPlayCmd,
	}
	cmd.Flags().IntVar(&playChapter, "chapter", 0, "chapter to type (default: where you left off)")
	cmd.Flags().StringVar(&playLength, "length", defaultSprintLength, "sprint length, 0 for open-ended")
	cmd.Flags().BoolVar(&playBypass, "bypass", false, "never hard-stop on mistakes or inactivity")
	cmd.Flags().StringVar(&playUser, "user", defaultUser, "learner identity")
	return cmd
}

func runPlayCmd(cmd *cobra.Command, args []string) error {
	applyStringConfig(cmd, "length", &playLength, fileCfg.Play.Length)
	applyBoolConfig(cmd, "bypass", &playBypass, fileCfg.Play.Bypass)
	user := resolveUser(cmd, playUser)
	length, err := parseSprintLength(playLength)
	if err != nil {
		return err
	}
	if playChapter < 0 {
		return fmt.Errorf("--chapter must be >= 1")
	}
	bookID := ""
	if len(args) > 0 {
		bookID = args[0]
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	sel, err := selectChapter(ctx, st, user, bookID, playChapter)
	if err != nil {
		return err
	}

	newSession := func(sel library.Selection) tui.Session {
		eng := engine.New(engine.Options{
			UserID:       user,
			BookID:       sel.Book.ID,
			Chapter:      sel.Chapter,
			Text:         sel.Text,
			Start:        sel.Start,
			SprintLength: length,
			Bypass:       playBypass,
			Recorder:     st.ForLearner(user, sel.Book.ID),
			Logger:       slog.Default(),
		})
		return tui.Session{Engine: eng, Title: sel.Book.Title + " · " + sel.Title}
	}

	current := sel
	next := func() (tui.Session, bool, error) {
		chapter, ok := library.NextChapter(current.Book, current.Chapter)
		if !ok {
			return tui.Session{}, false, nil
		}
		loaded, err := library.Select(ctx, st, user, current.Book.ID, chapter)
		if err != nil {
			return tui.Session{}, false, err
		}
		current = loaded
		return newSession(loaded), true, nil
	}

	var m *tui.Model
	err = withLogFile(func() error {
		m = tui.NewModel(newSession(sel), next)
		defer m.Close()
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return m.Err()
}

// selectChapter resolves the reading position and reports any fallbacks.
func selectChapter(ctx context.Context, st *store.Store, user, bookID string, chapter int) (library.Selection, error) {
	sel, err := library.Select(ctx, st, user, bookID, chapter)
	if errors.Is(err, model.ErrNotFound) && bookID == "" {
		return sel, fmt.Errorf("no books imported yet; run: typebook import FILE.epub: %w", err)
	}
	if err != nil {
		return sel, err
	}
	for _, msg := range sel.Fallbacks {
		logErrln(msg)
	}
	return sel, nil
}

func parseSprintLength(value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --length value: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("--length must not be negative")
	}
	return d, nil
}
