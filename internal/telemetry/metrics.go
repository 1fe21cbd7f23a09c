// Package telemetry exposes Prometheus counters for intake, validation and
// aggregation runs.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Intake outcomes.
const (
	OutcomeStored         = "stored"
	OutcomeInvalid        = "invalid"
	OutcomeDupFingerprint = "duplicate_fingerprint"
	OutcomeDupURL         = "duplicate_url"
	OutcomeDupSimilar     = "duplicate_similar"
	OutcomeDupConflict    = "duplicate_conflict"
)

// Validation outcomes besides the terminal statuses.
const (
	OutcomeRetry    = "retry"
	OutcomeRejected = "rejected"
)

// Metrics holds the collectors shared by the use cases.
type Metrics struct {
	ArticlesTotal        *prometheus.CounterVec
	ValidationsTotal     *prometheus.CounterVec
	RecommendationsTotal *prometheus.CounterVec
	AggregationsTotal    prometheus.Counter
	LastMeanAccuracy     prometheus.Gauge
}

// NewMetrics registers the collectors once per process.
//
// Metrics:
//   - sentiment_tracker_articles_total{outcome}
//   - sentiment_tracker_validations_total{outcome}
//   - sentiment_tracker_recommendations_total{action}
//   - sentiment_tracker_aggregations_total
//   - sentiment_tracker_mean_accuracy
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ArticlesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "sentiment_tracker",
					Name:      "articles_total",
					Help:      "Candidate articles processed by intake, by outcome",
				},
				[]string{"outcome"},
			),
			ValidationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "sentiment_tracker",
					Name:      "validations_total",
					Help:      "Recommendations visited by validation runs, by outcome",
				},
				[]string{"outcome"},
			),
			RecommendationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "sentiment_tracker",
					Name:      "recommendations_total",
					Help:      "Recommendations recorded, by action",
				},
				[]string{"action"},
			),
			AggregationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "sentiment_tracker",
				Name:      "aggregations_total",
				Help:      "Daily metric rows written",
			}),
			LastMeanAccuracy: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "sentiment_tracker",
				Name:      "mean_accuracy",
				Help:      "Mean accuracy score of the last aggregation",
			}),
		}
	})
	return globalMetrics
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
