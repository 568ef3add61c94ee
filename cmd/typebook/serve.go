// Package main provides the CLI entrypoint for typebook.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/typebook/internal/server"
	"github.com/verte-zerg/typebook/internal/textgen"
)

const (
	defaultAddr     = ":8080"
	shutdownTimeout = 10 * time.Second
)

var (
	serveAddr       string
	serveTextgenURL string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve books, progress and practice text over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&serveTextgenURL, "textgen-url", "", "text generation endpoint")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Server.Addr)
	applyStringConfig(cmd, "textgen-url", &serveTextgenURL, fileCfg.Practice.TextgenURL)
	applyEnv(cmd, "textgen-url", &serveTextgenURL, envCfg.TextgenURL)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	logger := slog.Default()
	deps := &server.Deps{Store: st, Logger: logger}
	if serveTextgenURL != "" {
		deps.Practice = textgen.NewService(textgen.NewClient(serveTextgenURL, envCfg.TextgenToken), st, logger)
	} else {
		logger.Info("text generation endpoint not configured; POST /api/practice is disabled")
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", serveAddr, "db", dbPath())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
