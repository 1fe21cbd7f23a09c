package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
)

var _ ports.MetricRepository = (*Store)(nil)

var metricColumns = []string{
	"date", "total_recommendations", "accurate_count", "partially_accurate_count",
	"inaccurate_count", "avg_accuracy_score", "recommendations_by_confidence",
}

// UpsertValidationMetric writes or overwrites the row for metric.Date.
func (s *Store) UpsertValidationMetric(ctx context.Context, metric domain.ValidationMetric) error {
	byConfidence := metric.ByConfidence
	if byConfidence == nil {
		byConfidence = map[domain.Confidence]domain.TierSummary{}
	}
	encoded, err := json.Marshal(byConfidence)
	if err != nil {
		return fmt.Errorf("encode confidence breakdown: %w", err)
	}

	query, args, err := s.builder().
		Insert("validation_metrics").
		Columns(metricColumns...).
		Values(
			metric.Date,
			metric.Total,
			metric.Accurate,
			metric.PartiallyAccurate,
			metric.Inaccurate,
			metric.MeanAccuracy,
			string(encoded),
		).
		Suffix(`ON CONFLICT (date) DO UPDATE SET
			total_recommendations = EXCLUDED.total_recommendations,
			accurate_count = EXCLUDED.accurate_count,
			partially_accurate_count = EXCLUDED.partially_accurate_count,
			inaccurate_count = EXCLUDED.inaccurate_count,
			avg_accuracy_score = EXCLUDED.avg_accuracy_score,
			recommendations_by_confidence = EXCLUDED.recommendations_by_confidence`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert metric: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert metric %s: %w", metric.Date, err)
	}
	return nil
}

// GetValidationMetric loads the row for a YYYY-MM-DD date.
func (s *Store) GetValidationMetric(ctx context.Context, date string) (domain.ValidationMetric, error) {
	return s.queryMetric(ctx, s.builder().
		Select(metricColumns...).
		From("validation_metrics").
		Where(sq.Eq{"date": date}))
}

// LatestValidationMetric loads the most recent row.
func (s *Store) LatestValidationMetric(ctx context.Context) (domain.ValidationMetric, error) {
	return s.queryMetric(ctx, s.builder().
		Select(metricColumns...).
		From("validation_metrics").
		OrderBy("date DESC").
		Limit(1))
}

func (s *Store) queryMetric(ctx context.Context, q sq.SelectBuilder) (domain.ValidationMetric, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return domain.ValidationMetric{}, fmt.Errorf("build metric query: %w", err)
	}

	var (
		metric  domain.ValidationMetric
		encoded string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&metric.Date,
		&metric.Total,
		&metric.Accurate,
		&metric.PartiallyAccurate,
		&metric.Inaccurate,
		&metric.MeanAccuracy,
		&encoded,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ValidationMetric{}, domain.ErrMetricNotFound
	}
	if err != nil {
		return domain.ValidationMetric{}, fmt.Errorf("scan metric: %w", err)
	}

	metric.ByConfidence = map[domain.Confidence]domain.TierSummary{}
	if err := json.Unmarshal([]byte(encoded), &metric.ByConfidence); err != nil {
		return domain.ValidationMetric{}, fmt.Errorf("decode confidence breakdown: %w", err)
	}
	return metric, nil
}
