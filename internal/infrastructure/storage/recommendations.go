package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
)

var _ ports.RecommendationRepository = (*Store)(nil)

const defaultRecommendationLimit = 50

var recommendationColumns = []string{
	"id", "security", "action", "confidence", "sentiment_score", "risk",
	"price_at_analysis", "time_horizon", "analysis_timestamp", "article_ids",
	"validation_status", "validated_at", "price_at_validation", "price_change_pct",
	"accuracy_score", "outcome",
}

// CreateRecommendation inserts a PENDING recommendation and flips every focus
// article to used in the same transaction. Any focus article that is missing,
// belongs to another security or is already used aborts the whole write.
func (s *Store) CreateRecommendation(ctx context.Context, rec domain.Recommendation, focusIDs []int64) (domain.Recommendation, error) {
	return s.createRecommendation(ctx, rec, focusIDs, false)
}

// CreateForcedRecommendation records a recommendation built from articles that
// may already be used. Used articles keep the link to the recommendation that
// consumed them; only still-unused articles are marked used by this one.
func (s *Store) CreateForcedRecommendation(ctx context.Context, rec domain.Recommendation, articleIDs []int64) (domain.Recommendation, error) {
	return s.createRecommendation(ctx, rec, articleIDs, true)
}

func (s *Store) createRecommendation(ctx context.Context, rec domain.Recommendation, focusIDs []int64, reuse bool) (domain.Recommendation, error) {
	ids := uniqueIDs(focusIDs)
	articleIDs, err := json.Marshal(ids)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("encode article ids: %w", err)
	}

	rec.Status = domain.StatusPending
	rec.ArticleIDs = ids
	rec.AnalysisTimestamp = rec.AnalysisTimestamp.UTC()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkFocusArticles(ctx, tx, rec.Security, ids, reuse); err != nil {
			return err
		}

		query, args, err := s.builder().
			Insert("recommendations").
			Columns("security", "action", "confidence", "sentiment_score", "risk",
				"price_at_analysis", "time_horizon", "analysis_timestamp", "article_ids",
				"validation_status").
			Values(
				rec.Security,
				string(rec.Action),
				string(rec.Confidence),
				rec.SentimentScore,
				string(rec.Risk),
				rec.PriceAtAnalysis,
				string(rec.Horizon),
				rec.AnalysisTimestamp,
				string(articleIDs),
				string(domain.StatusPending),
			).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert recommendation: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&rec.ID); err != nil {
			return fmt.Errorf("insert recommendation: %w", err)
		}

		if len(ids) == 0 {
			return nil
		}

		query, args, err = s.builder().
			Update("articles").
			Set("used_flag", int(domain.Used)).
			Set("last_used_at", rec.AnalysisTimestamp).
			Set("last_recommendation_id", rec.ID).
			Where(sq.Eq{"id": ids, "used_flag": int(domain.Unused)}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build mark used: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("mark articles used: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark articles used: %w", err)
		}
		if !reuse && affected != int64(len(ids)) {
			return fmt.Errorf("%w: %d of %d focus articles were taken concurrently",
				domain.ErrArticleAlreadyUsed, int64(len(ids))-affected, len(ids))
		}
		return nil
	})
	if err != nil {
		return domain.Recommendation{}, err
	}
	return rec, nil
}

func (s *Store) checkFocusArticles(ctx context.Context, tx *sql.Tx, security string, ids []int64, allowUsed bool) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := s.builder().
		Select("id", "used_flag").
		From("articles").
		Where(sq.Eq{"id": ids, "security": security}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build focus lookup: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query focus articles: %w", err)
	}

	found := make(map[int64]domain.Freshness, len(ids))
	for rows.Next() {
		var (
			id        int64
			freshness int
		)
		if err := rows.Scan(&id, &freshness); err != nil {
			return closeRows(rows, fmt.Errorf("scan focus article: %w", err))
		}
		found[id] = domain.Freshness(freshness)
	}
	if err := closeRows(rows, nil); err != nil {
		return err
	}

	for _, id := range ids {
		freshness, ok := found[id]
		if !ok {
			return fmt.Errorf("%w: id %d for %s", domain.ErrArticleNotFound, id, security)
		}
		if freshness == domain.Used && !allowUsed {
			return fmt.Errorf("%w: id %d", domain.ErrArticleAlreadyUsed, id)
		}
	}
	return nil
}

// GetRecommendation loads one recommendation by id.
func (s *Store) GetRecommendation(ctx context.Context, id int64) (domain.Recommendation, error) {
	query, args, err := s.builder().
		Select(recommendationColumns...).
		From("recommendations").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("build get recommendation: %w", err)
	}

	rec, err := scanRecommendation(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recommendation{}, fmt.Errorf("%w: id %d", domain.ErrRecommendationNotFound, id)
	}
	return rec, err
}

// ListRecommendations returns recommendations newest first.
func (s *Store) ListRecommendations(ctx context.Context, filter domain.RecommendationFilter) ([]domain.Recommendation, error) {
	q := s.builder().
		Select(recommendationColumns...).
		From("recommendations")
	if filter.Security != "" {
		q = q.Where(sq.Eq{"security": filter.Security})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"validation_status": string(filter.Status)})
	}
	limit := filter.Limit
	if limit == 0 {
		limit = defaultRecommendationLimit
	}
	q = q.OrderBy("analysis_timestamp DESC", "id DESC").Limit(limit)

	return s.queryRecommendations(ctx, q)
}

// PendingAnalyzedBefore lists PENDING recommendations analyzed at or before cutoff, oldest first.
func (s *Store) PendingAnalyzedBefore(ctx context.Context, cutoff time.Time) ([]domain.Recommendation, error) {
	q := s.builder().
		Select(recommendationColumns...).
		From("recommendations").
		Where(sq.Eq{"validation_status": string(domain.StatusPending)}).
		Where(sq.LtOrEq{"analysis_timestamp": cutoff.UTC()}).
		OrderBy("analysis_timestamp ASC", "id ASC")

	return s.queryRecommendations(ctx, q)
}

// ValidatedRecommendations returns every non-PENDING recommendation, optionally for one security.
func (s *Store) ValidatedRecommendations(ctx context.Context, security string) ([]domain.Recommendation, error) {
	q := s.builder().
		Select(recommendationColumns...).
		From("recommendations").
		Where(sq.NotEq{"validation_status": string(domain.StatusPending)})
	if security != "" {
		q = q.Where(sq.Eq{"security": security})
	}
	q = q.OrderBy("id ASC")

	return s.queryRecommendations(ctx, q)
}

// CompleteValidation writes the terminal outcome guarded by the PENDING status.
func (s *Store) CompleteValidation(ctx context.Context, id int64, outcome domain.ValidationOutcome) error {
	if !outcome.Status.Terminal() {
		return fmt.Errorf("complete validation %d: status %q is not terminal", id, outcome.Status)
	}

	query, args, err := s.builder().
		Update("recommendations").
		Set("validation_status", string(outcome.Status)).
		Set("validated_at", outcome.ValidatedAt.UTC()).
		Set("price_at_validation", outcome.PriceAtValidation).
		Set("price_change_pct", outcome.PriceChangePct).
		Set("accuracy_score", outcome.AccuracyScore).
		Set("outcome", outcome.Outcome).
		Where(sq.Eq{"id": id, "validation_status": string(domain.StatusPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete validation: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("complete validation %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete validation %d: %w", id, err)
	}
	if affected == 1 {
		return nil
	}

	current, err := s.GetRecommendation(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: id %d is %s", domain.ErrAlreadyValidated, id, current.Status)
}

func (s *Store) queryRecommendations(ctx context.Context, q sq.SelectBuilder) ([]domain.Recommendation, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recommendations query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}

	var recs []domain.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, closeRows(rows, err)
		}
		recs = append(recs, rec)
	}

	if err := closeRows(rows, nil); err != nil {
		return nil, err
	}
	return recs, nil
}

func scanRecommendation(row rowScanner) (domain.Recommendation, error) {
	var (
		rec        domain.Recommendation
		action     string
		confidence string
		risk       string
		horizon    string
		status     string
		articleIDs string
		validated  sql.NullTime
		priceAtVal decimal.NullDecimal
		changePct  sql.NullFloat64
		score      sql.NullFloat64
	)

	err := row.Scan(
		&rec.ID,
		&rec.Security,
		&action,
		&confidence,
		&rec.SentimentScore,
		&risk,
		&rec.PriceAtAnalysis,
		&horizon,
		&rec.AnalysisTimestamp,
		&articleIDs,
		&status,
		&validated,
		&priceAtVal,
		&changePct,
		&score,
		&rec.Outcome,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recommendation{}, err
	}
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("scan recommendation: %w", err)
	}

	if articleIDs != "" {
		if err := json.Unmarshal([]byte(articleIDs), &rec.ArticleIDs); err != nil {
			return domain.Recommendation{}, fmt.Errorf("decode article ids of %d: %w", rec.ID, err)
		}
	}

	rec.Action = domain.Action(action)
	rec.Confidence = domain.Confidence(confidence)
	rec.Risk = domain.Risk(risk)
	rec.Horizon = domain.Horizon(horizon)
	rec.Status = domain.ValidationStatus(status)
	rec.AnalysisTimestamp = rec.AnalysisTimestamp.UTC()
	rec.ValidatedAt = nullTimePtr(validated)
	rec.PriceAtValidation = priceAtVal
	rec.PriceChangePct = nullFloatPtr(changePct)
	rec.AccuracyScore = nullFloatPtr(score)
	return rec, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
