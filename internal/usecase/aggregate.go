package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
	"SentimentTracker/internal/telemetry"
)

const metricDateLayout = "2006-01-02"

// AggregatorDeps wires the metrics aggregator.
type AggregatorDeps struct {
	Recommendations ports.RecommendationRepository
	Metrics         ports.MetricRepository
	Notifier        ports.Notifier
	Location        *time.Location
	Telemetry       *telemetry.Metrics
	Logger          *slog.Logger
	Now             func() time.Time
}

// Aggregator rolls validated recommendations into one row per calendar date.
type Aggregator struct {
	recommendations ports.RecommendationRepository
	metrics         ports.MetricRepository
	notifier        ports.Notifier
	location        *time.Location
	telemetry       *telemetry.Metrics
	logger          *slog.Logger
	now             func() time.Time
}

func NewAggregator(deps AggregatorDeps) *Aggregator {
	a := &Aggregator{
		recommendations: deps.Recommendations,
		metrics:         deps.Metrics,
		notifier:        deps.Notifier,
		location:        deps.Location,
		telemetry:       deps.Telemetry,
		logger:          deps.Logger,
		now:             deps.Now,
	}
	if a.location == nil {
		a.location = time.UTC
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Run computes today's metric from every validated recommendation and
// overwrites the row for today. A notifier failure is logged only; the
// metric is already stored.
func (a *Aggregator) Run(ctx context.Context) (domain.ValidationMetric, error) {
	validated, err := a.recommendations.ValidatedRecommendations(ctx, "")
	if err != nil {
		return domain.ValidationMetric{}, fmt.Errorf("%w: load validated recommendations: %v", domain.ErrRetryLater, err)
	}

	metric := Summarize(a.now().In(a.location).Format(metricDateLayout), validated)
	if err := a.metrics.UpsertValidationMetric(ctx, metric); err != nil {
		return domain.ValidationMetric{}, fmt.Errorf("%w: store metric: %v", domain.ErrRetryLater, err)
	}

	if a.telemetry != nil {
		a.telemetry.AggregationsTotal.Inc()
		a.telemetry.LastMeanAccuracy.Set(metric.MeanAccuracy)
	}
	a.logger.Info("validation metric stored",
		"date", metric.Date, "total", metric.Total, "mean_accuracy", metric.MeanAccuracy)

	if a.notifier != nil {
		if err := a.notifier.PublishMetric(ctx, metric); err != nil {
			a.logger.Warn("metric digest not delivered", "date", metric.Date, "reason", err)
		}
	}
	return metric, nil
}

// Latest returns the most recent stored metric.
func (a *Aggregator) Latest(ctx context.Context) (domain.ValidationMetric, error) {
	return a.metrics.LatestValidationMetric(ctx)
}

// ForDate returns the stored metric for a YYYY-MM-DD date.
func (a *Aggregator) ForDate(ctx context.Context, date string) (domain.ValidationMetric, error) {
	if _, err := time.Parse(metricDateLayout, date); err != nil {
		return domain.ValidationMetric{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return a.metrics.GetValidationMetric(ctx, date)
}

// SecuritySummary reports validated performance for one security.
func (a *Aggregator) SecuritySummary(ctx context.Context, security string) (domain.SecuritySummary, error) {
	security = domain.NormalizeSecurity(security)
	validated, err := a.recommendations.ValidatedRecommendations(ctx, security)
	if err != nil {
		return domain.SecuritySummary{}, fmt.Errorf("load validated recommendations for %s: %w", security, err)
	}

	summary := domain.SecuritySummary{Security: security}
	var sum float64
	for i := range validated {
		rec := validated[i]
		score := accuracyOf(rec)
		summary.Total++
		sum += score
		if summary.Best == nil || score > accuracyOf(*summary.Best) {
			summary.Best = &rec
		}
		if summary.Worst == nil || score < accuracyOf(*summary.Worst) {
			summary.Worst = &rec
		}
	}
	if summary.Total > 0 {
		summary.MeanAccuracy = sum / float64(summary.Total)
	}
	return summary, nil
}

// Summarize builds the metric row for date from validated recommendations.
// PENDING entries are ignored.
func Summarize(date string, recs []domain.Recommendation) domain.ValidationMetric {
	metric := domain.ValidationMetric{
		Date:         date,
		ByConfidence: map[domain.Confidence]domain.TierSummary{},
	}

	var total float64
	tierSums := map[domain.Confidence]float64{}
	for _, rec := range recs {
		if !rec.Status.Terminal() {
			continue
		}

		score := accuracyOf(rec)
		metric.Total++
		total += score

		switch rec.Status {
		case domain.StatusAccurate:
			metric.Accurate++
		case domain.StatusPartiallyAccurate:
			metric.PartiallyAccurate++
		case domain.StatusInaccurate:
			metric.Inaccurate++
		}

		tier := metric.ByConfidence[rec.Confidence]
		tier.Count++
		metric.ByConfidence[rec.Confidence] = tier
		tierSums[rec.Confidence] += score
	}

	if metric.Total > 0 {
		metric.MeanAccuracy = total / float64(metric.Total)
	}
	for confidence, tier := range metric.ByConfidence {
		tier.MeanAccuracy = tierSums[confidence] / float64(tier.Count)
		metric.ByConfidence[confidence] = tier
	}
	return metric
}

func accuracyOf(rec domain.Recommendation) float64 {
	if rec.AccuracyScore == nil {
		return 0
	}
	return *rec.AccuracyScore
}
