package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/infrastructure/storage"
)

var day0 = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()

	st, err := storage.Open(context.Background(), storage.DialectSQLite, ":memory:", storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type staticPrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (p *staticPrices) CurrentPrice(ctx context.Context, security string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return decimal.Zero, p.err
	}
	return p.prices[security], nil
}

type blockingPrices struct{}

func (blockingPrices) CurrentPrice(ctx context.Context, _ string) (decimal.Decimal, error) {
	<-ctx.Done()
	return decimal.Zero, ctx.Err()
}

type recordingNotifier struct {
	metrics []domain.ValidationMetric
	err     error
}

func (n *recordingNotifier) PublishMetric(_ context.Context, metric domain.ValidationMetric) error {
	n.metrics = append(n.metrics, metric)
	return n.err
}

func raw(security, title, body, url string, published time.Time) domain.RawArticle {
	return domain.RawArticle{
		Title:       title,
		Body:        body,
		URL:         url,
		Source:      "wire",
		PublishedAt: published,
		Security:    security,
	}
}

func event(security string, action domain.Action, horizon domain.Horizon, price string, ids ...int64) domain.NewRecommendation {
	return domain.NewRecommendation{
		Security:        security,
		Action:          action,
		Confidence:      domain.ConfidenceHigh,
		SentimentScore:  0.5,
		Risk:            domain.RiskMedium,
		PriceAtAnalysis: decimal.RequireFromString(price),
		Horizon:         horizon,
		FocusArticleIDs: ids,
	}
}
