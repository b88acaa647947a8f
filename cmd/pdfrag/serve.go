package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/answer"
	"github.com/hyperjump/pdfrag/internal/config"
	"github.com/hyperjump/pdfrag/internal/pipeline"
	"github.com/hyperjump/pdfrag/internal/server"
	"github.com/hyperjump/pdfrag/internal/watcher"
	"github.com/hyperjump/pdfrag/pkg/utils"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (and the inbox watcher when configured)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var inbox *watcher.Inbox
	if cfg.Watch.Directory != "" {
		inbox = watcher.NewInbox(cfg.Watch.Directory, svc.Pipeline, watcher.WithLogger(utils.Named(logger, "inbox")))
		if err := inbox.Start(ctx); err != nil {
			return fmt.Errorf("failed to start inbox watcher: %w", err)
		}
		defer inbox.Stop()
		go inbox.SyncExisting()
	}

	srv := server.NewServer(svc.Pipeline, newAnswerer(cfg, logger), cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// newAnswerer returns the chat answerer, or nil when no API key is configured.
func newAnswerer(cfg *config.Config, logger *zap.Logger) server.Answerer {
	key := cfg.Embedding.APIKey()
	if key == "" {
		logger.Warn("chat disabled: no API key", zap.String("env", cfg.Embedding.APIKeyEnv))
		return nil
	}
	gen, err := answer.NewGenerator(key, cfg.Embedding.BaseURL, cfg.LLM, answer.WithLogger(utils.Named(logger, "answer")))
	if err != nil {
		logger.Warn("chat disabled", zap.Error(err))
		return nil
	}
	return gen
}
