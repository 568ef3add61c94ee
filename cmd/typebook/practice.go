// Package main provides the CLI entrypoint for typebook.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typebook/internal/engine"
	"github.com/verte-zerg/typebook/internal/generator"
	"github.com/verte-zerg/typebook/internal/library"
	"github.com/verte-zerg/typebook/internal/model"
	"github.com/verte-zerg/typebook/internal/stats"
	"github.com/verte-zerg/typebook/internal/textgen"
	"github.com/verte-zerg/typebook/internal/tui"
	"github.com/verte-zerg/typebook/internal/wordlist"
)

const defaultMissedWindow = 20

var (
	practiceUser       string
	practiceWords      int
	practiceFactor     float64
	practiceTop        int
	practiceWindow     int
	practiceWordList   string
	practiceTextgenURL string
	practiceOffline    bool
	practiceLength     string
)

func newPracticeCmd() *cobra.Command {
	defaults := generator.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "practice [BOOK]",
		Short: "Drill the characters you miss most",
		Long: `Drill the characters you miss most.

With a text generation endpoint configured (--textgen-url or TYPEBOOK_TEXTGEN_URL)
the drill is written remotely from the current chapter, limited to 5 generations
per day. Otherwise an offline drill is built from the chapter's own words.
Practice never moves your reading position.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPracticeCmd,
	}
	cmd.Flags().StringVar(&practiceUser, "user", defaultUser, "learner identity")
	cmd.Flags().IntVar(&practiceWords, "words", defaults.Words, "words per offline drill")
	cmd.Flags().Float64Var(&practiceFactor, "factor", defaults.Factor, "extra weight per missed character in a word")
	cmd.Flags().IntVar(&practiceTop, "top", textgen.MaxProblemChars, "number of missed characters to focus on")
	cmd.Flags().IntVar(&practiceWindow, "window", defaultMissedWindow, "recent sprints used to find missed characters")
	cmd.Flags().StringVar(&practiceWordList, "wordlist", "", "word list file for offline drills (default: chapter words)")
	cmd.Flags().StringVar(&practiceTextgenURL, "textgen-url", "", "text generation endpoint")
	cmd.Flags().BoolVar(&practiceOffline, "offline", false, "skip the text generation endpoint")
	cmd.Flags().StringVar(&practiceLength, "length", "0", "sprint length, 0 for open-ended")
	return cmd
}

func runPracticeCmd(cmd *cobra.Command, args []string) error {
	applyIntConfig(cmd, "words", &practiceWords, fileCfg.Practice.Words)
	applyFloatConfig(cmd, "factor", &practiceFactor, fileCfg.Practice.Factor)
	applyIntConfig(cmd, "top", &practiceTop, fileCfg.Practice.Top)
	applyIntConfig(cmd, "window", &practiceWindow, fileCfg.Practice.Window)
	applyStringConfig(cmd, "wordlist", &practiceWordList, fileCfg.Practice.WordList)
	applyStringConfig(cmd, "textgen-url", &practiceTextgenURL, fileCfg.Practice.TextgenURL)
	applyEnv(cmd, "textgen-url", &practiceTextgenURL, envCfg.TextgenURL)
	if err := validatePractice(); err != nil {
		return err
	}
	length, err := parseSprintLength(practiceLength)
	if err != nil {
		return err
	}
	user := resolveUser(cmd, practiceUser)
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
	sel, err := selectChapter(ctx, st, user, bookID, 0)
	if err != nil {
		return err
	}
	aggs, err := st.GetMissedChars(ctx, user, practiceWindow)
	if err != nil {
		return fmt.Errorf("failed to load missed characters: %w", err)
	}
	missed := stats.MostMissed(aggs, min(practiceTop, textgen.MaxProblemChars))
	if len(missed) == 0 {
		logErrln("no missed characters recorded yet; drilling the chapter vocabulary")
	}

	text := ""
	if practiceTextgenURL != "" && !practiceOffline {
		text, err = remoteDrill(ctx, st, user, sel, missed)
		if errors.Is(err, model.ErrRateLimited) {
			return fmt.Errorf("daily practice generation limit reached (%d per day): %w", textgen.DailyQuota, err)
		}
		if err != nil {
			logErrf("remote practice text failed (%v); using offline drill\n", err)
		}
	}
	if text == "" {
		text, err = offlineDrill(sel, missed)
		if err != nil {
			return err
		}
	}

	opts := engine.Options{
		UserID:       user,
		BookID:       sel.Book.ID,
		Chapter:      sel.Chapter,
		Text:         text,
		SprintLength: length,
		Practice:     true,
		Recorder:     st.ForLearner(user, sel.Book.ID),
	}
	var m *tui.Model
	err = withLogFile(func() error {
		opts.Logger = slog.Default()
		m = tui.NewModel(tui.Session{Engine: engine.New(opts), Title: "Practice · " + sel.Title}, nil)
		defer m.Close()
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return m.Err()
}

func remoteDrill(ctx context.Context, quota textgen.Quota, user string, sel library.Selection, missed []string) (string, error) {
	svc := textgen.NewService(textgen.NewClient(practiceTextgenURL, envCfg.TextgenToken), quota, slog.Default())
	resp, err := svc.Generate(ctx, user, textgen.Request{
		ProblemChars: missed,
		BookTitle:    sel.Book.Title,
		ChapterTitle: sel.Title,
		TextSnippet:  library.Snippet(sel.Text, sel.Start, textgen.MaxSnippet),
	})
	if err != nil {
		return "", err
	}
	logErrf("%d practice generations left today\n", resp.Remaining)
	return resp.Text, nil
}

func offlineDrill(sel library.Selection, missed []string) (string, error) {
	var words []string
	if practiceWordList != "" {
		loaded, err := wordlist.LoadWords(practiceWordList, wordlist.TypableWord)
		if err != nil {
			return "", err
		}
		words = loaded
	} else {
		words = wordlist.FromText(sel.Text, wordlist.TypableWord)
	}
	if len(words) == 0 {
		return "", fmt.Errorf("no typable words available for a drill")
	}
	opts := generator.DefaultOptions()
	opts.Words = practiceWords
	opts.Factor = practiceFactor
	return generator.New().Drill(words, stats.MissedSet(missed), opts), nil
}

func validatePractice() error {
	if practiceWords <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	if practiceFactor < 0 {
		return fmt.Errorf("--factor must be >= 0")
	}
	if practiceTop < 0 {
		return fmt.Errorf("--top must be >= 0")
	}
	if practiceWindow < 0 {
		return fmt.Errorf("--window must be >= 0")
	}
	return nil
}
