package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"SentimentTracker/internal/app"
	"SentimentTracker/internal/domain"
)

var (
	ingestDays   int
	focusOnly    bool
	recordFile   string
	validateID   int64
	metricsDate  string
	metricsStock string
)

func init() {
	ingestCmd.Flags().IntVar(&ingestDays, "days", 0, "look back this many days (defaults to usage.lookbackDays)")
	articlesCmd.Flags().BoolVar(&focusOnly, "focus", false, "list only articles not yet used by a recommendation")
	recordCmd.Flags().StringVarP(&recordFile, "file", "f", "-", "recommendation event JSON file, - for stdin")
	validateCmd.Flags().Int64Var(&validateID, "id", 0, "validate a single recommendation now, ignoring its window")
	metricsCmd.Flags().StringVar(&metricsDate, "date", "", "metric date (YYYY-MM-DD), defaults to the latest row")
	metricsCmd.Flags().StringVar(&metricsStock, "security", "", "summarise validated recommendations for one security")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest SECURITY",
	Short: "Fetch news for a security and store the unique articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			lookback := application.Config().Usage.Lookback()
			if ingestDays > 0 {
				lookback = time.Duration(ingestDays) * 24 * time.Hour
			}
			to := time.Now()
			stored, err := application.Pipeline.Collect(ctx, args[0], to.Add(-lookback), to)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"security": domain.NormalizeSecurity(args[0]), "stored": len(stored)})
		})
	},
}

var articlesCmd = &cobra.Command{
	Use:   "articles SECURITY",
	Short: "List the context set, or the focus set with --focus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			list := application.Usage.ContextSet
			if focusOnly {
				list = application.Usage.FocusSet
			}
			articles, err := list(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), articles)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats SECURITY",
	Short: "Show article usage statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			stats, err := application.Usage.Stats(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		})
	},
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a recommendation and mark its focus articles used",
	Long: `Record a recommendation produced from a focus set.

Example event:
  {"security":"AAPL","recommendation":"BUY","confidence":"HIGH",
   "sentiment_score":0.6,"risk_level":"MEDIUM","price_at_analysis":"189.20",
   "time_horizon":"MEDIUM_TERM","focus_article_ids":[12,13]}

Set "forced":true when the articles were reused after a forced refresh;
articles already used by earlier recommendations are then accepted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		event, err := readEvent(cmd.InOrStdin(), recordFile)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			rec, err := application.Usage.RecordRecommendation(ctx, event)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate due recommendations, or one recommendation with --id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			if validateID > 0 {
				rec, err := application.Validation.ValidateByID(ctx, validateID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			}

			report, err := application.Validation.RunOnce(ctx)
			if printErr := printJSON(cmd.OutOrStdout(), report); printErr != nil {
				return printErr
			}
			return err
		})
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Write today's validation metric",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			metric, err := application.Aggregator.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), metric)
		})
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show a stored validation metric or a per-security summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			if metricsStock != "" {
				summary, err := application.Aggregator.SecuritySummary(ctx, metricsStock)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			}

			var (
				metric domain.ValidationMetric
				err    error
			)
			if metricsDate != "" {
				metric, err = application.Aggregator.ForDate(ctx, metricsDate)
			} else {
				metric, err = application.Aggregator.Latest(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), metric)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled ingestion, validation and aggregation until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, application *app.Application) error {
			return application.Run(ctx)
		})
	},
}

func readEvent(stdin io.Reader, path string) (domain.NewRecommendation, error) {
	var event domain.NewRecommendation

	var (
		raw []byte
		err error
	)
	if path == "" || path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return event, fmt.Errorf("read event: %w", err)
	}

	if err := json.Unmarshal(raw, &event); err != nil {
		return event, fmt.Errorf("decode event: %w", err)
	}
	event.Action, err = domain.ParseAction(string(event.Action))
	if err != nil {
		return event, err
	}
	return event, nil
}
