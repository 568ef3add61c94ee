// Package main provides the CLI entrypoint for typebook.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/typebook/internal/config"
	"github.com/verte-zerg/typebook/internal/sanitize"
	"github.com/verte-zerg/typebook/internal/store"
)

const defaultUser = "default"

var (
	rootConfigPath string
	rootDBPath     string
	rootLogLevel   string
	rootLogFormat  string

	// Loaded once per invocation by the root pre-run hook.
	fileCfg config.FileConfig
	envCfg  config.Env
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "typebook",
		Short:             "Learn to type by typing whole books",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&rootDBPath, "db", "", "database path (default: $XDG_DATA_HOME/typebook/typebook.db)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootLogFormat, "log-format", "text", "log format (text or json)")

	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newBooksCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// setup loads the config file and .env overlay, then installs the default logger.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	fileCfg, err = config.LoadConfig(rootConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	envCfg = config.LoadEnv(config.DefaultEnvPath(), ".env")

	applyStringConfig(cmd, "log-level", &rootLogLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-format", &rootLogFormat, fileCfg.Log.Format)
	level, err := config.ParseLevel(rootLogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(config.NewLogger(os.Stderr, level, rootLogFormat))
	return nil
}

// withLogFile sends slog output to the log file while a full-screen program runs.
func withLogFile(run func() error) error {
	prev := slog.Default()
	level, err := config.ParseLevel(rootLogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	var w io.Writer = io.Discard
	f, err := config.OpenLogFile(config.DefaultLogPath())
	if err != nil {
		logErrf("failed to open log file: %v\n", err)
	} else {
		w = f
		defer func() {
			if cerr := f.Close(); cerr != nil {
				// Best-effort close for the log file.
				_ = cerr
			}
		}()
	}
	slog.SetDefault(config.NewLogger(w, level, rootLogFormat))
	defer slog.SetDefault(prev)
	return run()
}

func dbPath() string {
	return config.Pick(rootDBPath, envCfg.DB, config.Deref(fileCfg.DB), config.DefaultDBPath())
}

func openStore() (*store.Store, error) {
	path := dbPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

// resolveUser picks the learner identity: flag, then environment, then config file.
func resolveUser(cmd *cobra.Command, flagValue string) string {
	if cmd.Flags().Changed("user") {
		return flagValue
	}
	return config.Pick(envCfg.User, config.Deref(fileCfg.Play.User), defaultUser)
}

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// slugify turns a title into a book id.
func slugify(title string) string {
	folded := strings.TrimPrefix(sanitize.Paragraph(title, sanitize.Options{CollapseNewlines: true, NormalizeLetters: true}), sanitize.ParagraphMarker)
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := rootConfigPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

// applyEnv overrides target with a non-empty environment value unless the flag was set.
func applyEnv(cmd *cobra.Command, name string, target *string, value string) {
	if value == "" || cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
