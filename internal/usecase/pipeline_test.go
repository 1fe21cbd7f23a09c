package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
	"SentimentTracker/internal/usecase"
)

func newPipeline(articles ports.ArticleRepository, c *clock) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.PipelineDeps{Articles: articles, Now: c.Now})
}

func TestIngestDropsFingerprintAndURLDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := openStore(t)
	p := newPipeline(st, newClock(day0))

	_, err := p.Ingest(ctx, "X", []domain.RawArticle{
		raw("X", "Quarterly guidance raised", "Management lifted the outlook.", "https://news/existing", day0.Add(-time.Hour)),
	})
	require.NoError(t, err)

	stored, err := p.Ingest(ctx, "X", []domain.RawArticle{
		raw("X", "Regulator opens probe into supplier", "The agency said on Monday...", "https://news/a", day0),
		raw("X", "Regulator opens probe into supplier", "The agency said on Monday...", "https://news/b", day0),
		raw("X", "Chip plant output doubles", "Factory numbers released today.", "https://news/existing", day0),
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "https://news/a", stored[0].URL)
	assert.Equal(t, domain.Unused, stored[0].Freshness)
	assert.Len(t, stored[0].Fingerprint, 64)
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := openStore(t)
	p := newPipeline(st, newClock(day0))

	batch := []domain.RawArticle{
		raw("AAPL", "Apple unveils new headset", "Launch event recap.", "https://news/1", day0),
		raw("AAPL", "Services revenue hits record", "Subscription growth continued.", "", day0),
		raw("AAPL", "Supplier warns on component shortage", "Lead times are stretching.", "https://news/3", day0),
	}

	first, err := p.Ingest(ctx, "AAPL", batch)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := p.Ingest(ctx, "AAPL", batch)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestIngestSimilarTitlesScopedPerSecurity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := openStore(t)
	p := newPipeline(st, newClock(day0))

	_, err := p.Ingest(ctx, "MSFT", []domain.RawArticle{
		raw("MSFT", "Shares jump after earnings beat", "msft body", "", day0),
	})
	require.NoError(t, err)

	stored, err := p.Ingest(ctx, "MSFT", []domain.RawArticle{
		raw("MSFT", "Shares jump after earnings beat!", "rewritten body", "", day0),
	})
	require.NoError(t, err)
	assert.Empty(t, stored)

	stored, err = p.Ingest(ctx, "GOOG", []domain.RawArticle{
		raw("GOOG", "Shares jump after earnings beat", "goog body", "", day0),
	})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIngestSimilarTitlesWithinBatch(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	p := newPipeline(st, newClock(day0))

	stored, err := p.Ingest(context.Background(), "TSLA", []domain.RawArticle{
		raw("TSLA", "Deliveries beat analyst forecasts", "first wire", "", day0),
		raw("TSLA", "Deliveries beat analyst forecast", "second wire", "", day0),
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "first wire", stored[0].Body)
}

func TestIngestRejectedArticleDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := openStore(t)
	p := newPipeline(st, newClock(day0))

	_, err := p.Ingest(ctx, "X", []domain.RawArticle{
		raw("X", "Quarterly guidance raised", "Management lifted the outlook.", "https://news/u0", day0.Add(-time.Hour)),
	})
	require.NoError(t, err)

	t.Run("fingerprint of url duplicate", func(t *testing.T) {
		stored, err := p.Ingest(ctx, "X", []domain.RawArticle{
			raw("X", "Regulator opens probe into supplier", "The agency said on Monday...", "https://news/u0", day0),
			raw("X", "Regulator opens probe into supplier", "The agency said on Monday...", "https://news/u1", day0),
		})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "https://news/u1", stored[0].URL)
	})

	t.Run("url of similar title", func(t *testing.T) {
		stored, err := p.Ingest(ctx, "X", []domain.RawArticle{
			raw("X", "Quarterly guidance raised!", "A rewrite of the outlook story.", "https://news/u2", day0),
			raw("X", "Chip plant output doubles", "Factory numbers released today.", "https://news/u2", day0),
		})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "Chip plant output doubles", stored[0].Title)
	})
}

func TestIngestSkipsMalformedArticles(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	c := newClock(day0)
	p := newPipeline(st, c)

	stored, err := p.Ingest(context.Background(), " nvda ", []domain.RawArticle{
		raw("NVDA", "   ", "no title", "", day0),
		raw("", "No security", "body", "", day0),
		raw("AMD", "Wrong security", "body", "", day0),
		raw("nvda", "  Valid headline  ", "  body  ", " https://news/nvda ", time.Time{}),
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)

	a := stored[0]
	assert.Equal(t, "NVDA", a.Security)
	assert.Equal(t, "Valid headline", a.Title)
	assert.Equal(t, "body", a.Body)
	assert.Equal(t, "https://news/nvda", a.URL)
	assert.True(t, c.Now().Equal(a.PublishedAt))
	assert.True(t, c.Now().Equal(a.CollectedAt))
}

func TestIngestEmptyBatch(t *testing.T) {
	t.Parallel()

	p := newPipeline(openStore(t), newClock(day0))
	stored, err := p.Ingest(context.Background(), "X", nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

type failingInsert struct {
	ports.ArticleRepository
}

func (failingInsert) InsertArticles(context.Context, []domain.Article) ([]domain.Article, error) {
	return nil, errors.New("disk full")
}

func TestIngestPersistenceFailureIsRetryable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := openStore(t)
	p := newPipeline(failingInsert{ArticleRepository: st}, newClock(day0))

	_, err := p.Ingest(ctx, "X", []domain.RawArticle{raw("X", "Headline", "body", "", day0)})
	require.ErrorIs(t, err, domain.ErrRetryLater)

	stats, err := st.UsageStats(ctx, "X")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalArticles)
}

type fakeSource struct {
	articles []domain.RawArticle
	err      error
	from, to time.Time
}

func (s *fakeSource) Fetch(_ context.Context, _ string, from, to time.Time) ([]domain.RawArticle, error) {
	s.from, s.to = from, to
	return s.articles, s.err
}

func TestCollectFetchesAndIngests(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := &fakeSource{articles: []domain.RawArticle{raw("AAPL", "Headline", "body", "", day0)}}
	p := usecase.NewPipeline(usecase.PipelineDeps{Source: src, Articles: openStore(t), Now: newClock(day0).Now})

	stored, err := p.Collect(ctx, "AAPL", day0.Add(-24*time.Hour), day0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.True(t, src.to.Equal(day0))

	src.err = errors.New("upstream down")
	_, err = p.Collect(ctx, "AAPL", day0.Add(-24*time.Hour), day0)
	require.ErrorIs(t, err, domain.ErrRetryLater)
}
