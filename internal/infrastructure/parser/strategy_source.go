package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SentimentTracker/internal/config"
	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
	"SentimentTracker/internal/scanner"
)

// StrategySource implements NewsSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.NewsSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// Fetch runs every configured source in order and concatenates their
// results. A failing source is logged and skipped; Fetch fails only when
// every source failed.
func (s *StrategySource) Fetch(ctx context.Context, security string, from, to time.Time) ([]domain.RawArticle, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("no news sources configured")
	}

	security = domain.NormalizeSecurity(security)
	s.debug("fetch news", "security", security, "sources", len(s.sources))

	var (
		aggregated []domain.RawArticle
		failures   []error
	)
	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Scanner)
		if err != nil {
			failures = append(failures, fmt.Errorf("source %s: %w", src.Name, err))
			s.warn("source skipped", "source", src.Name, "error", err)
			continue
		}

		req := scanner.Request{
			Security:   security,
			From:       from,
			To:         to,
			SourceName: src.Name,
			Options:    src.Options,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			failures = append(failures, fmt.Errorf("scan source %s: %w", src.Name, err))
			s.warn("source skipped", "source", src.Name, "security", security, "error", err)
			continue
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = src.Name
			}
			if results[i].Security == "" {
				results[i].Security = security
			}
		}
		s.debug("source produced articles", "source", src.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	if len(failures) == len(s.sources) {
		return nil, errors.Join(failures...)
	}

	s.debug("strategy source done", "security", security, "total_articles", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
