package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"SentimentTracker/internal/domain"
)

// NewsSource pulls raw articles about one security from upstream providers.
type NewsSource interface {
	Fetch(ctx context.Context, security string, from, to time.Time) ([]domain.RawArticle, error)
}

// PriceProvider returns the current price of a security.
type PriceProvider interface {
	CurrentPrice(ctx context.Context, security string) (decimal.Decimal, error)
}

// ArticleRepository stores deduplicated articles and their freshness.
type ArticleRepository interface {
	// ExistingFingerprints returns the subset of fingerprints already stored.
	ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error)
	// ExistingURLs returns the subset of URLs already stored.
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)
	// RecentTitles returns up to limit titles for the security, newest first.
	RecentTitles(ctx context.Context, security string, limit uint64) ([]string, error)
	// InsertArticles persists the batch in one transaction. Rows rejected by a
	// uniqueness constraint are dropped; the returned slice holds the rows stored.
	InsertArticles(ctx context.Context, articles []domain.Article) ([]domain.Article, error)
	// ListArticles returns articles published at or after since, newest first.
	ListArticles(ctx context.Context, security string, since time.Time, unusedOnly bool, limit uint64) ([]domain.Article, error)
	UsageStats(ctx context.Context, security string) (domain.UsageStats, error)
}

// RecommendationRepository stores recommendations and their validation state.
type RecommendationRepository interface {
	// CreateRecommendation inserts a PENDING recommendation and marks the
	// given articles used by it, atomically.
	CreateRecommendation(ctx context.Context, rec domain.Recommendation, focusIDs []int64) (domain.Recommendation, error)
	// CreateForcedRecommendation accepts already-used articles and marks only
	// the unused ones.
	CreateForcedRecommendation(ctx context.Context, rec domain.Recommendation, articleIDs []int64) (domain.Recommendation, error)
	GetRecommendation(ctx context.Context, id int64) (domain.Recommendation, error)
	ListRecommendations(ctx context.Context, filter domain.RecommendationFilter) ([]domain.Recommendation, error)
	// PendingAnalyzedBefore lists PENDING recommendations analyzed at or before cutoff.
	PendingAnalyzedBefore(ctx context.Context, cutoff time.Time) ([]domain.Recommendation, error)
	// CompleteValidation writes a terminal outcome only if the row is still
	// PENDING; otherwise it returns domain.ErrAlreadyValidated.
	CompleteValidation(ctx context.Context, id int64, outcome domain.ValidationOutcome) error
	ValidatedRecommendations(ctx context.Context, security string) ([]domain.Recommendation, error)
}

// MetricRepository stores daily validation roll-ups.
type MetricRepository interface {
	UpsertValidationMetric(ctx context.Context, metric domain.ValidationMetric) error
	GetValidationMetric(ctx context.Context, date string) (domain.ValidationMetric, error)
	LatestValidationMetric(ctx context.Context) (domain.ValidationMetric, error)
}

// Notifier delivers the daily validation metric to a chat or other channel.
type Notifier interface {
	PublishMetric(ctx context.Context, metric domain.ValidationMetric) error
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Add(spec string, job func(context.Context)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
