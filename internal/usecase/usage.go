package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
	"SentimentTracker/internal/telemetry"
)

const (
	DefaultLookback    = 7 * 24 * time.Hour
	DefaultMaxArticles = 30
)

// UsageDeps wires the usage tracker.
type UsageDeps struct {
	Articles        ports.ArticleRepository
	Recommendations ports.RecommendationRepository
	Lookback        time.Duration
	MaxArticles     uint64
	Validate        *validator.Validate
	Metrics         *telemetry.Metrics
	Logger          *slog.Logger
	Now             func() time.Time
}

// UsageTracker partitions recent news into context and focus sets and
// consumes the focus set when a recommendation is recorded.
type UsageTracker struct {
	articles        ports.ArticleRepository
	recommendations ports.RecommendationRepository
	lookback        time.Duration
	maxArticles     uint64
	validate        *validator.Validate
	metrics         *telemetry.Metrics
	logger          *slog.Logger
	now             func() time.Time
}

func NewUsageTracker(deps UsageDeps) *UsageTracker {
	u := &UsageTracker{
		articles:        deps.Articles,
		recommendations: deps.Recommendations,
		lookback:        deps.Lookback,
		maxArticles:     deps.MaxArticles,
		validate:        deps.Validate,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		now:             deps.Now,
	}
	if u.lookback <= 0 {
		u.lookback = DefaultLookback
	}
	if u.maxArticles == 0 {
		u.maxArticles = DefaultMaxArticles
	}
	if u.validate == nil {
		u.validate = validator.New()
	}
	if u.logger == nil {
		u.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u
}

// ContextSet returns recent articles regardless of freshness, newest first.
func (u *UsageTracker) ContextSet(ctx context.Context, security string) ([]domain.Article, error) {
	return u.list(ctx, security, false)
}

// FocusSet returns recent articles not yet consumed, newest first.
func (u *UsageTracker) FocusSet(ctx context.Context, security string) ([]domain.Article, error) {
	return u.list(ctx, security, true)
}

func (u *UsageTracker) list(ctx context.Context, security string, unusedOnly bool) ([]domain.Article, error) {
	security = domain.NormalizeSecurity(security)
	since := u.now().Add(-u.lookback)
	articles, err := u.articles.ListArticles(ctx, security, since, unusedOnly, u.maxArticles)
	if err != nil {
		return nil, fmt.Errorf("list articles for %s: %w", security, err)
	}
	return articles, nil
}

// Prepare assembles the input for an analysis run. An empty focus set yields
// domain.ErrNoFreshArticles unless force is set, in which case the context
// set stands in as the focus.
func (u *UsageTracker) Prepare(ctx context.Context, security string, force bool) (domain.AnalysisInput, error) {
	security = domain.NormalizeSecurity(security)
	input := domain.AnalysisInput{Security: security}

	contextSet, err := u.ContextSet(ctx, security)
	if err != nil {
		return input, err
	}
	focus, err := u.FocusSet(ctx, security)
	if err != nil {
		return input, err
	}
	input.Context = contextSet
	input.Focus = focus

	if len(focus) > 0 {
		return input, nil
	}
	if force && len(contextSet) > 0 {
		u.logger.Info("no fresh articles, reusing context set", "security", security, "articles", len(contextSet))
		input.Focus = contextSet
		input.Reused = true
		return input, nil
	}
	return input, fmt.Errorf("%w for %s", domain.ErrNoFreshArticles, security)
}

// RecordRecommendation stores a PENDING recommendation stamped with the
// current time and marks its focus articles used in the same transaction.
// A forced event may reference articles used by earlier recommendations.
func (u *UsageTracker) RecordRecommendation(ctx context.Context, event domain.NewRecommendation) (domain.Recommendation, error) {
	event.Security = domain.NormalizeSecurity(event.Security)
	if err := u.validate.Struct(event); err != nil {
		return domain.Recommendation{}, fmt.Errorf("invalid recommendation: %w", err)
	}
	if !event.PriceAtAnalysis.IsPositive() {
		return domain.Recommendation{}, fmt.Errorf("%w: %s", domain.ErrMissingAnalysisPrice, event.PriceAtAnalysis)
	}
	if len(event.FocusArticleIDs) == 0 {
		return domain.Recommendation{}, fmt.Errorf("%w: empty focus set for %s", domain.ErrNoFreshArticles, event.Security)
	}

	rec := domain.Recommendation{
		Security:          event.Security,
		Action:            event.Action,
		Confidence:        event.Confidence,
		SentimentScore:    event.SentimentScore,
		Risk:              event.Risk,
		PriceAtAnalysis:   event.PriceAtAnalysis,
		Horizon:           event.Horizon,
		AnalysisTimestamp: u.now().UTC(),
	}

	create := u.recommendations.CreateRecommendation
	if event.Forced {
		create = u.recommendations.CreateForcedRecommendation
	}
	created, err := create(ctx, rec, event.FocusArticleIDs)
	if err != nil {
		if errors.Is(err, domain.ErrArticleAlreadyUsed) || errors.Is(err, domain.ErrArticleNotFound) {
			u.logger.Error("recommendation rejected", "security", event.Security, "reason", err)
		}
		return domain.Recommendation{}, fmt.Errorf("record recommendation: %w", err)
	}

	if u.metrics != nil {
		u.metrics.RecommendationsTotal.WithLabelValues(string(created.Action)).Inc()
	}
	u.logger.Info("recommendation recorded",
		"security", created.Security,
		"recommendation_id", created.ID,
		"action", created.Action,
		"forced", event.Forced,
		"focus_articles", len(created.ArticleIDs))
	return created, nil
}

// Stats reports article usage. ReadyForAnalysis reflects the focus set, so
// unused articles older than the lookback do not count.
func (u *UsageTracker) Stats(ctx context.Context, security string) (domain.UsageStats, error) {
	security = domain.NormalizeSecurity(security)
	stats, err := u.articles.UsageStats(ctx, security)
	if err != nil {
		return stats, fmt.Errorf("usage stats for %s: %w", security, err)
	}

	focus, err := u.FocusSet(ctx, security)
	if err != nil {
		return stats, err
	}
	stats.ReadyForAnalysis = len(focus) > 0
	return stats, nil
}
