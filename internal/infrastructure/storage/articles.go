package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
)

var _ ports.ArticleRepository = (*Store)(nil)

var articleColumns = []string{
	"id", "fingerprint", "url", "security", "title", "body", "source",
	"published_at", "collected_at", "used_flag", "last_used_at", "last_recommendation_id",
}

// ExistingFingerprints returns the fingerprints from the list that are already stored.
func (s *Store) ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	return s.existing(ctx, "fingerprint", fingerprints)
}

// ExistingURLs returns the URLs from the list that are already stored.
func (s *Store) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	return s.existing(ctx, "url", urls)
}

func (s *Store) existing(ctx context.Context, column string, values []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(values) == 0 {
		return result, nil
	}

	query, args, err := s.builder().
		Select(column).
		From("articles").
		Where(sq.Eq{column: values}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s lookup: %w", column, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", column, err)
	}

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan %s: %w", column, err))
		}
		result[v] = true
	}

	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// RecentTitles returns up to limit titles for the security, newest publication first.
func (s *Store) RecentTitles(ctx context.Context, security string, limit uint64) ([]string, error) {
	query, args, err := s.builder().
		Select("title").
		From("articles").
		Where(sq.Eq{"security": security}).
		OrderBy("published_at DESC", "id DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent titles: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent titles: %w", err)
	}

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan title: %w", err))
		}
		titles = append(titles, title)
	}

	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return titles, nil
}

// InsertArticles stores the batch in one transaction. Rows that hit the
// fingerprint or URL unique constraint are skipped; any other failure rolls
// back the whole batch.
func (s *Store) InsertArticles(ctx context.Context, articles []domain.Article) ([]domain.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	stored := make([]domain.Article, 0, len(articles))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, article := range articles {
			query, args, err := s.builder().
				Insert("articles").
				Columns("fingerprint", "url", "security", "title", "body", "source",
					"published_at", "collected_at", "used_flag").
				Values(
					article.Fingerprint,
					nullString(article.URL),
					article.Security,
					article.Title,
					article.Body,
					article.Source,
					article.PublishedAt.UTC(),
					article.CollectedAt.UTC(),
					int(domain.Unused),
				).
				Suffix("ON CONFLICT DO NOTHING RETURNING id").
				ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}

			var id int64
			err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("insert article %s: %w", article.Fingerprint, err)
			}

			article.ID = id
			article.Freshness = domain.Unused
			article.LastUsedAt = nil
			article.LastRecommendationID = nil
			stored = append(stored, article)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListArticles returns articles published at or after since, newest first.
func (s *Store) ListArticles(ctx context.Context, security string, since time.Time, unusedOnly bool, limit uint64) ([]domain.Article, error) {
	q := s.builder().
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"security": security})
	if !since.IsZero() {
		q = q.Where(sq.GtOrEq{"published_at": since.UTC()})
	}
	if unusedOnly {
		q = q.Where(sq.Eq{"used_flag": int(domain.Unused)})
	}
	q = q.OrderBy("published_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list articles: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, closeRows(rows, err)
		}
		articles = append(articles, article)
	}

	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return articles, nil
}

// UsageStats counts used and unused articles for the security.
func (s *Store) UsageStats(ctx context.Context, security string) (domain.UsageStats, error) {
	stats := domain.UsageStats{Security: security}

	query, args, err := s.builder().
		Select("COUNT(*)", "COALESCE(SUM(used_flag), 0)").
		From("articles").
		Where(sq.Eq{"security": security}).
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build usage stats: %w", err)
	}

	var total, used int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total, &used); err != nil {
		return stats, fmt.Errorf("query usage stats: %w", err)
	}
	stats.TotalArticles = int(total)
	stats.UsedArticles = int(used)
	stats.UnusedArticles = int(total - used)
	stats.ReadyForAnalysis = stats.UnusedArticles > 0

	lastUsed, err := s.latestTime(ctx, "last_used_at", security, domain.Used)
	if err != nil {
		return stats, err
	}
	stats.LastUsedAt = lastUsed

	newestUnused, err := s.latestTime(ctx, "published_at", security, domain.Unused)
	if err != nil {
		return stats, err
	}
	stats.NewestUnusedPublished = newestUnused

	return stats, nil
}

func (s *Store) latestTime(ctx context.Context, column, security string, freshness domain.Freshness) (*time.Time, error) {
	query, args, err := s.builder().
		Select(column).
		From("articles").
		Where(sq.Eq{"security": security, "used_flag": int(freshness)}).
		Where(sq.NotEq{column: nil}).
		OrderBy(column + " DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest %s: %w", column, err)
	}

	var v sql.NullTime
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest %s: %w", column, err)
	}
	return nullTimePtr(v), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		article   domain.Article
		url       sql.NullString
		freshness int
		lastUsed  sql.NullTime
		lastRecID sql.NullInt64
	)

	err := row.Scan(
		&article.ID,
		&article.Fingerprint,
		&url,
		&article.Security,
		&article.Title,
		&article.Body,
		&article.Source,
		&article.PublishedAt,
		&article.CollectedAt,
		&freshness,
		&lastUsed,
		&lastRecID,
	)
	if err != nil {
		return domain.Article{}, fmt.Errorf("scan article: %w", err)
	}

	article.URL = url.String
	article.PublishedAt = article.PublishedAt.UTC()
	article.CollectedAt = article.CollectedAt.UTC()
	article.Freshness = domain.Freshness(freshness)
	article.LastUsedAt = nullTimePtr(lastUsed)
	article.LastRecommendationID = nullInt64Ptr(lastRecID)
	return article, nil
}
