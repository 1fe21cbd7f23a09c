package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/infrastructure/storage"
	"SentimentTracker/internal/usecase"
)

type validationFixture struct {
	store   *storage.Store
	clock   *clock
	tracker *usecase.UsageTracker
	prices  *staticPrices
	engine  *usecase.ValidationEngine
	ingest  *usecase.Pipeline
}

func newValidationFixture(t *testing.T) *validationFixture {
	t.Helper()

	st := openStore(t)
	c := newClock(day0)
	prices := &staticPrices{prices: map[string]decimal.Decimal{}}
	return &validationFixture{
		store:   st,
		clock:   c,
		prices:  prices,
		ingest:  newPipeline(st, c),
		tracker: usecase.NewUsageTracker(usecase.UsageDeps{Articles: st, Recommendations: st, Now: c.Now}),
		engine: usecase.NewValidationEngine(usecase.ValidationDeps{
			Recommendations: st, Prices: prices, Now: c.Now,
		}),
	}
}

func (f *validationFixture) record(t *testing.T, ev domain.NewRecommendation) domain.Recommendation {
	t.Helper()

	stored := seed(t, f.ingest, ev.Security, f.clock.Now().Add(-time.Hour))
	ev.FocusArticleIDs = []int64{stored[0].ID}
	rec, err := f.tracker.RecordRecommendation(context.Background(), ev)
	require.NoError(t, err)
	return rec
}

func TestMediumTermBuyValidatesAccurate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newValidationFixture(t)
	rec := f.record(t, event("X", domain.ActionBuy, domain.HorizonMedium, "100.0"))

	f.prices.prices["X"] = decimal.RequireFromString("106.0")
	f.clock.Advance(7 * 24 * time.Hour)

	report, err := f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 1, report.Validated)

	got, err := f.store.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccurate, got.Status)
	require.NotNil(t, got.AccuracyScore)
	assert.Equal(t, 1.0, *got.AccuracyScore)
	require.NotNil(t, got.PriceChangePct)
	assert.InDelta(t, 6.0, *got.PriceChangePct, 1e-9)
	assert.True(t, got.PriceAtValidation.Decimal.Equal(decimal.NewFromInt(106)))
	require.NotNil(t, got.ValidatedAt)
	assert.True(t, f.clock.Now().Equal(*got.ValidatedAt))
	assert.Contains(t, got.Outcome, "6.00%")
}

func TestRunOnceWaitsForEachHorizon(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newValidationFixture(t)
	short := f.record(t, event("AAA", domain.ActionSell, domain.HorizonShort, "50"))
	medium := f.record(t, event("BBB", domain.ActionHold, domain.HorizonMedium, "20"))
	long := f.record(t, event("CCC", domain.ActionBuy, domain.HorizonLong, "10"))

	f.prices.prices["AAA"] = decimal.RequireFromString("45")
	f.prices.prices["BBB"] = decimal.RequireFromString("20.5")
	f.prices.prices["CCC"] = decimal.RequireFromString("10")

	f.clock.Advance(3*24*time.Hour - time.Second)
	report, err := f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Due)

	f.clock.Advance(time.Second)
	report, err = f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Validated)

	got, err := f.store.GetRecommendation(ctx, short.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccurate, got.Status)
	assert.Equal(t, 1.0, *got.AccuracyScore)

	f.clock.Advance(4 * 24 * time.Hour)
	report, err = f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Validated)

	got, err = f.store.GetRecommendation(ctx, medium.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccurate, got.Status)

	got, err = f.store.GetRecommendation(ctx, long.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestRunOnceLeavesPendingOnPriceFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newValidationFixture(t)
	rec := f.record(t, event("X", domain.ActionBuy, domain.HorizonShort, "100"))

	f.prices.err = errors.New("quote service down")
	f.clock.Advance(4 * 24 * time.Hour)

	report, err := f.engine.RunOnce(ctx)
	require.ErrorIs(t, err, domain.ErrRetryLater)
	assert.Equal(t, 1, report.Retry)
	assert.Zero(t, report.Validated)

	got, err := f.store.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.ValidatedAt)
	assert.Nil(t, got.AccuracyScore)

	f.prices.err = nil
	f.prices.prices["X"] = decimal.RequireFromString("97")
	report, err = f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Validated)

	got, err = f.store.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInaccurate, got.Status)
	assert.Equal(t, 0.2, *got.AccuracyScore)
}

func TestRunOnceBoundsPriceLookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newValidationFixture(t)
	f.record(t, event("X", domain.ActionBuy, domain.HorizonShort, "100"))
	f.clock.Advance(4 * 24 * time.Hour)

	engine := usecase.NewValidationEngine(usecase.ValidationDeps{
		Recommendations: f.store,
		Prices:          blockingPrices{},
		PriceTimeout:    20 * time.Millisecond,
		Now:             f.clock.Now,
	})

	report, err := engine.RunOnce(ctx)
	require.ErrorIs(t, err, domain.ErrRetryLater)
	assert.Equal(t, 1, report.Retry)
}

func TestRunOnceNeverRevalidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newValidationFixture(t)
	rec := f.record(t, event("X", domain.ActionBuy, domain.HorizonShort, "100"))
	f.prices.prices["X"] = decimal.RequireFromString("110")
	f.clock.Advance(4 * 24 * time.Hour)

	_, err := f.engine.RunOnce(ctx)
	require.NoError(t, err)

	f.prices.prices["X"] = decimal.RequireFromString("50")
	report, err := f.engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Due)

	got, err := f.store.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccurate, got.Status)

	_, err = f.engine.ValidateByID(ctx, rec.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyValidated)
}

func TestValidateByIDIgnoresWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newValidationFixture(t)
	rec := f.record(t, event("X", domain.ActionShort, domain.HorizonLong, "100"))
	f.prices.prices["X"] = decimal.RequireFromString("101")

	got, err := f.engine.ValidateByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallyAccurate, got.Status)
	assert.Equal(t, 0.4, *got.AccuracyScore)

	_, err = f.engine.ValidateByID(ctx, 12345)
	require.ErrorIs(t, err, domain.ErrRecommendationNotFound)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	rec := domain.Recommendation{
		ID:              7,
		Security:        "X",
		Action:          domain.ActionHold,
		PriceAtAnalysis: decimal.RequireFromString("200"),
		Horizon:         domain.HorizonMedium,
	}

	outcome, err := usecase.Evaluate(rec, decimal.RequireFromString("224"), day0)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, outcome.PriceChangePct, 1e-9)
	assert.Equal(t, 0.3, outcome.AccuracyScore)
	assert.Equal(t, domain.StatusInaccurate, outcome.Status)
	assert.True(t, day0.Equal(outcome.ValidatedAt))

	rec.PriceAtAnalysis = decimal.Zero
	_, err = usecase.Evaluate(rec, decimal.RequireFromString("224"), day0)
	require.ErrorIs(t, err, domain.ErrMissingAnalysisPrice)

	rec.PriceAtAnalysis = decimal.RequireFromString("200")
	rec.Action = "MAYBE"
	_, err = usecase.Evaluate(rec, decimal.RequireFromString("224"), day0)
	require.ErrorIs(t, err, domain.ErrUnknownCategory)
}
