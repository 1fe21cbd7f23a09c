// Package main implements the sentimenttracker CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SentimentTracker/internal/app"
	"SentimentTracker/internal/config"
	"SentimentTracker/internal/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sentimenttracker",
	Short: "Deduplicate security news and validate trading recommendations",
	Long: `sentimenttracker ingests news per security, exposes fresh and recent
article sets for analysis, records recommendations and scores them once
their time horizon has elapsed.

Configuration is read from the YAML file named by SENTIMENT_TRACKER_CONFIG
and overridden by environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(
		ingestCmd,
		articlesCmd,
		statsCmd,
		recordCmd,
		validateCmd,
		aggregateCmd,
		metricsCmd,
		runCmd,
	)
}

// withApp loads configuration, builds the application and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, application *app.Application) error) error {
	cfg := config.Load()
	logger := logging.NewWithFormat(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	return fn(cmd.Context(), application)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
