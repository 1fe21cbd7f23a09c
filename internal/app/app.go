package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"SentimentTracker/internal/config"
	"SentimentTracker/internal/dedup"
	"SentimentTracker/internal/infrastructure/market"
	"SentimentTracker/internal/infrastructure/parser"
	"SentimentTracker/internal/infrastructure/scheduler"
	"SentimentTracker/internal/infrastructure/storage"
	"SentimentTracker/internal/infrastructure/telegram"
	"SentimentTracker/internal/logging"
	"SentimentTracker/internal/ports"
	"SentimentTracker/internal/scanner"
	"SentimentTracker/internal/telemetry"
	"SentimentTracker/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.Store

	Pipeline   *usecase.Pipeline
	Usage      *usecase.UsageTracker
	Validation *usecase.ValidationEngine
	Aggregator *usecase.Aggregator
	Scheduler  *usecase.Scheduler
}

// New opens storage and builds every use case from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, dialect, cfg.Database.DSN, storage.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	metrics := telemetry.NewMetrics()
	validate := validator.New()

	finnhub := market.NewClient(cfg.Market.APIKey,
		market.WithBaseURL(cfg.Market.BaseURL),
		market.WithRateLimit(cfg.Validation.RequestsPerSecond),
	)

	registry := scanner.NewRegistry()
	registry.Register(parser.NewFinnhubScanner(finnhub))
	registry.Register(parser.NewHTMLScanner(nil, baseLogger.With("component", "scanner.html")))
	source := parser.NewStrategySource(registry, cfg.Sources, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		tg := cfg.Notifications.Telegram
		notifier = telegram.NewNotifier(tg.BaseURL, tg.BotToken, tg.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:        source,
		Articles:      store,
		Fingerprinter: dedup.NewFingerprinter(cfg.Dedup.BodySample),
		Matcher:       dedup.NewMatcher(cfg.Dedup.SimilarityThreshold),
		TitleWindow:   uint64(cfg.Dedup.TitleWindow),
		Validate:      validate,
		Metrics:       metrics,
		Logger:        baseLogger.With("component", "pipeline"),
	})

	usage := usecase.NewUsageTracker(usecase.UsageDeps{
		Articles:        store,
		Recommendations: store,
		Lookback:        cfg.Usage.Lookback(),
		MaxArticles:     uint64(cfg.Usage.MaxArticles),
		Validate:        validate,
		Metrics:         metrics,
		Logger:          baseLogger.With("component", "usage"),
	})

	validation := usecase.NewValidationEngine(usecase.ValidationDeps{
		Recommendations: store,
		Prices:          finnhub,
		PriceTimeout:    cfg.Validation.PriceTimeout,
		Metrics:         metrics,
		Logger:          baseLogger.With("component", "validation"),
	})

	aggregator := usecase.NewAggregator(usecase.AggregatorDeps{
		Recommendations: store,
		Metrics:         store,
		Notifier:        notifier,
		Location:        cfg.Scheduler.Location(),
		Telemetry:       metrics,
		Logger:          baseLogger.With("component", "aggregator"),
	})

	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:         scheduler.NewCronScheduler(cfg.Scheduler.Location(), baseLogger.With("component", "cron")),
		Pipeline:       pipeline,
		Validation:     validation,
		Aggregator:     aggregator,
		Securities:     cfg.Securities,
		IngestSpec:     cfg.Scheduler.IngestCron,
		ValidationSpec: cfg.Scheduler.ValidationCron,
		Lookback:       cfg.Usage.Lookback(),
		Logger:         baseLogger.With("component", "scheduler"),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		Pipeline:   pipeline,
		Usage:      usage,
		Validation: validation,
		Aggregator: aggregator,
		Scheduler:  sched,
	}, nil
}

// Config returns the configuration the application was built from.
func (a *Application) Config() config.Config {
	return a.cfg
}

// Close releases storage.
func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Run starts the scheduler and, when configured, the /metrics listener, and
// blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	var srv *http.Server
	if addr := a.cfg.Telemetry.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics listener stopped", "error", err)
			}
		}()
		a.logger.Info("metrics listener started", "addr", addr)
	}

	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler running",
		"securities", len(a.cfg.Securities),
		"ingest_cron", a.cfg.Scheduler.IngestCron,
		"validation_cron", a.cfg.Scheduler.ValidationCron)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics listener: %w", err))
		}
	}
	return errors.Join(errs...)
}
