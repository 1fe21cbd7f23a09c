package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
	"SentimentTracker/internal/scoring"
	"SentimentTracker/internal/telemetry"
)

const (
	DefaultPriceTimeout = 10 * time.Second

	// shortestWindow prefilters the PENDING scan; each row is then checked
	// against its own horizon.
	shortestWindow = 3 * 24 * time.Hour
)

var hundred = decimal.NewFromInt(100)

// ValidationDeps wires the validation engine.
type ValidationDeps struct {
	Recommendations ports.RecommendationRepository
	Prices          ports.PriceProvider
	PriceTimeout    time.Duration
	Metrics         *telemetry.Metrics
	Logger          *slog.Logger
	Now             func() time.Time
}

// ValidationEngine moves due recommendations from PENDING to a terminal status.
// It keeps no state between runs; overlapping runs are safe because the store
// only transitions rows that are still PENDING.
type ValidationEngine struct {
	recommendations ports.RecommendationRepository
	prices          ports.PriceProvider
	priceTimeout    time.Duration
	metrics         *telemetry.Metrics
	logger          *slog.Logger
	now             func() time.Time
}

// Report summarises one validation pass.
type Report struct {
	RunID     string
	Due       int
	Validated int
	Retry     int
	Rejected  int
}

func NewValidationEngine(deps ValidationDeps) *ValidationEngine {
	e := &ValidationEngine{
		recommendations: deps.Recommendations,
		prices:          deps.Prices,
		priceTimeout:    deps.PriceTimeout,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		now:             deps.Now,
	}
	if e.priceTimeout <= 0 {
		e.priceTimeout = DefaultPriceTimeout
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// RunOnce validates every recommendation whose window has elapsed. When any
// of them had to be left PENDING because a collaborator failed, the report
// is returned together with an error wrapping domain.ErrRetryLater.
func (e *ValidationEngine) RunOnce(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	now := e.now().UTC()
	log := e.logger.With("run_id", report.RunID)

	candidates, err := e.recommendations.PendingAnalyzedBefore(ctx, now.Add(-shortestWindow))
	if err != nil {
		return report, fmt.Errorf("%w: load pending recommendations: %v", domain.ErrRetryLater, err)
	}

	prices := map[string]decimal.Decimal{}
	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%w: %v", domain.ErrRetryLater, err)
		}

		dueAt, err := rec.DueAt()
		if err != nil {
			log.Error("skip recommendation", "recommendation_id", rec.ID, "reason", err)
			report.Rejected++
			e.count(telemetry.OutcomeRejected)
			continue
		}
		if now.Before(dueAt) {
			continue
		}
		report.Due++

		price, ok := prices[rec.Security]
		if !ok {
			price, err = e.currentPrice(ctx, rec.Security)
			if err != nil {
				log.Warn("price unavailable, leaving pending",
					"recommendation_id", rec.ID, "security", rec.Security, "reason", err)
				report.Retry++
				e.count(telemetry.OutcomeRetry)
				continue
			}
			prices[rec.Security] = price
		}

		status, err := e.complete(ctx, rec, price, now)
		switch {
		case err == nil:
			report.Validated++
			e.count(string(status))
			log.Info("recommendation validated",
				"recommendation_id", rec.ID, "security", rec.Security, "status", status)
		case isInvariantViolation(err):
			report.Rejected++
			e.count(telemetry.OutcomeRejected)
			log.Error("recommendation rejected", "recommendation_id", rec.ID, "reason", err)
		default:
			report.Retry++
			e.count(telemetry.OutcomeRetry)
			log.Warn("validation write failed, leaving pending", "recommendation_id", rec.ID, "reason", err)
		}
	}

	log.Info("validation run finished",
		"due", report.Due, "validated", report.Validated, "retry", report.Retry, "rejected", report.Rejected)

	if report.Retry > 0 {
		return report, fmt.Errorf("%w: %d recommendation(s) left pending", domain.ErrRetryLater, report.Retry)
	}
	return report, nil
}

// ValidateByID validates a single recommendation immediately, without
// waiting for its window.
func (e *ValidationEngine) ValidateByID(ctx context.Context, id int64) (domain.Recommendation, error) {
	rec, err := e.recommendations.GetRecommendation(ctx, id)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if rec.Status.Terminal() {
		return rec, fmt.Errorf("%w: id %d is %s", domain.ErrAlreadyValidated, id, rec.Status)
	}

	price, err := e.currentPrice(ctx, rec.Security)
	if err != nil {
		e.count(telemetry.OutcomeRetry)
		return rec, fmt.Errorf("%w: price for %s: %v", domain.ErrRetryLater, rec.Security, err)
	}

	status, err := e.complete(ctx, rec, price, e.now().UTC())
	if err != nil {
		return rec, err
	}
	e.count(string(status))
	return e.recommendations.GetRecommendation(ctx, id)
}

func (e *ValidationEngine) currentPrice(ctx context.Context, security string) (decimal.Decimal, error) {
	if e.prices == nil {
		return decimal.Zero, errors.New("price provider is not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.priceTimeout)
	defer cancel()

	price, err := e.prices.CurrentPrice(callCtx, security)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", price)
	}
	return price, nil
}

func (e *ValidationEngine) complete(ctx context.Context, rec domain.Recommendation, price decimal.Decimal, now time.Time) (domain.ValidationStatus, error) {
	outcome, err := Evaluate(rec, price, now)
	if err != nil {
		return "", err
	}
	if err := e.recommendations.CompleteValidation(ctx, rec.ID, outcome); err != nil {
		return "", err
	}
	return outcome.Status, nil
}

// Evaluate computes the terminal outcome of rec at the given price.
func Evaluate(rec domain.Recommendation, price decimal.Decimal, now time.Time) (domain.ValidationOutcome, error) {
	if !rec.PriceAtAnalysis.IsPositive() {
		return domain.ValidationOutcome{}, fmt.Errorf("%w: id %d", domain.ErrMissingAnalysisPrice, rec.ID)
	}

	change := price.Sub(rec.PriceAtAnalysis).Div(rec.PriceAtAnalysis).Mul(hundred)
	changePct := change.Round(4).InexactFloat64()

	score, err := scoring.ScoreAction(rec.Action, changePct)
	if err != nil {
		return domain.ValidationOutcome{}, fmt.Errorf("score recommendation %d: %w", rec.ID, err)
	}
	status := scoring.Status(score)

	return domain.ValidationOutcome{
		ValidatedAt:       now,
		PriceAtValidation: price,
		PriceChangePct:    changePct,
		AccuracyScore:     score,
		Status:            status,
		Outcome:           describeOutcome(rec, price, change, score, status),
	}, nil
}

func describeOutcome(rec domain.Recommendation, price, change decimal.Decimal, score float64, status domain.ValidationStatus) string {
	return fmt.Sprintf("%s %s at %s moved %s%% to %s over %s; score %.2f, %s",
		rec.Action,
		rec.Security,
		rec.PriceAtAnalysis.StringFixed(2),
		change.StringFixed(2),
		price.StringFixed(2),
		rec.Horizon,
		score,
		status)
}

// isInvariantViolation separates errors that retrying cannot fix.
func isInvariantViolation(err error) bool {
	return errors.Is(err, domain.ErrAlreadyValidated) ||
		errors.Is(err, domain.ErrMissingAnalysisPrice) ||
		errors.Is(err, domain.ErrUnknownCategory) ||
		errors.Is(err, domain.ErrRecommendationNotFound)
}

func (e *ValidationEngine) count(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.ValidationsTotal.WithLabelValues(outcome).Inc()
}
