package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"SentimentTracker/internal/dedup"
	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
	"SentimentTracker/internal/telemetry"
)

// PipelineDeps wires the collaborators of the intake pipeline.
type PipelineDeps struct {
	Source        ports.NewsSource
	Articles      ports.ArticleRepository
	Fingerprinter dedup.Fingerprinter
	Matcher       dedup.Matcher
	TitleWindow   uint64
	Validate      *validator.Validate
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
	Now           func() time.Time
}

// Pipeline deduplicates candidate batches and persists the unique articles.
type Pipeline struct {
	source        ports.NewsSource
	articles      ports.ArticleRepository
	fingerprinter dedup.Fingerprinter
	matcher       dedup.Matcher
	titleWindow   uint64
	validate      *validator.Validate
	metrics       *telemetry.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

// NewPipeline constructs the intake component. Zero-valued knobs take defaults.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:        deps.Source,
		articles:      deps.Articles,
		fingerprinter: deps.Fingerprinter,
		matcher:       deps.Matcher,
		titleWindow:   deps.TitleWindow,
		validate:      deps.Validate,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	if p.fingerprinter == (dedup.Fingerprinter{}) {
		p.fingerprinter = dedup.NewFingerprinter(dedup.DefaultBodySample)
	}
	if p.matcher == (dedup.Matcher{}) {
		p.matcher = dedup.NewMatcher(dedup.DefaultSimilarityThreshold)
	}
	if p.titleWindow == 0 {
		p.titleWindow = dedup.DefaultTitleWindow
	}
	if p.validate == nil {
		p.validate = validator.New()
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Collect pulls news for the security from the configured source and ingests it.
func (p *Pipeline) Collect(ctx context.Context, security string, from, to time.Time) ([]domain.Article, error) {
	if p.source == nil {
		return nil, errors.New("news source is not configured")
	}

	raw, err := p.source.Fetch(ctx, security, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch news for %s: %v", domain.ErrRetryLater, security, err)
	}
	return p.Ingest(ctx, security, raw)
}

// candidate is a raw article that passed validation, with its derived keys.
type candidate struct {
	article domain.Article
	raw     domain.RawArticle
}

// Ingest processes the batch strictly in input order and persists the
// survivors in one transaction. Duplicates and malformed records are dropped
// without failing the batch.
func (p *Pipeline) Ingest(ctx context.Context, security string, batch []domain.RawArticle) ([]domain.Article, error) {
	security = domain.NormalizeSecurity(security)
	if len(batch) == 0 {
		return nil, nil
	}
	if security == "" {
		return nil, fmt.Errorf("%w: security is required", domain.ErrInvalidArticle)
	}
	if p.articles == nil {
		return nil, errors.New("article repository is not configured")
	}

	collectedAt := p.now().UTC()
	log := p.logger.With("security", security)

	candidates := make([]candidate, 0, len(batch))
	for i, raw := range batch {
		article, err := p.prepare(security, raw, collectedAt)
		if err != nil {
			log.Debug("drop malformed article", "index", i, "reason", err)
			p.count(telemetry.OutcomeInvalid, 1)
			continue
		}
		candidates = append(candidates, candidate{article: article, raw: raw})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	fingerprints := make([]string, 0, len(candidates))
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		fingerprints = append(fingerprints, c.article.Fingerprint)
		if c.article.URL != "" {
			urls = append(urls, c.article.URL)
		}
	}

	storedFingerprints, err := p.articles.ExistingFingerprints(ctx, fingerprints)
	if err != nil {
		return nil, fmt.Errorf("%w: load fingerprints: %v", domain.ErrRetryLater, err)
	}
	storedURLs, err := p.articles.ExistingURLs(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("%w: load urls: %v", domain.ErrRetryLater, err)
	}
	recent, err := p.articles.RecentTitles(ctx, security, p.titleWindow)
	if err != nil {
		return nil, fmt.Errorf("%w: load recent titles: %v", domain.ErrRetryLater, err)
	}

	seenFingerprints := make(map[string]struct{}, len(candidates))
	seenURLs := make(map[string]struct{}, len(candidates))
	accepted := make([]domain.Article, 0, len(candidates))

	for _, c := range candidates {
		a := c.article

		if _, ok := seenFingerprints[a.Fingerprint]; ok || storedFingerprints[a.Fingerprint] {
			log.Debug("drop duplicate", "reason", "fingerprint", "fingerprint", a.Fingerprint)
			p.count(telemetry.OutcomeDupFingerprint, 1)
			continue
		}

		if a.URL != "" {
			if _, ok := seenURLs[a.URL]; ok || storedURLs[a.URL] {
				log.Debug("drop duplicate", "reason", "url", "url", a.URL)
				p.count(telemetry.OutcomeDupURL, 1)
				continue
			}
		}

		if match, ratio, ok := p.matcher.FindDuplicate(a.Title, recent); ok {
			log.Debug("drop duplicate", "reason", "similar_title", "title", a.Title, "matched", match, "ratio", ratio)
			p.count(telemetry.OutcomeDupSimilar, 1)
			continue
		}

		// Only accepted articles claim a fingerprint or URL within the batch.
		accepted = append(accepted, a)
		seenFingerprints[a.Fingerprint] = struct{}{}
		if a.URL != "" {
			seenURLs[a.URL] = struct{}{}
		}
		recent = p.pushTitle(recent, a.Title)
	}

	if len(accepted) == 0 {
		log.Debug("batch fully deduplicated", "candidates", len(batch))
		return nil, nil
	}

	stored, err := p.articles.InsertArticles(ctx, accepted)
	if err != nil {
		return nil, fmt.Errorf("%w: persist batch: %v", domain.ErrRetryLater, err)
	}

	p.count(telemetry.OutcomeStored, len(stored))
	if conflicts := len(accepted) - len(stored); conflicts > 0 {
		log.Debug("dropped on uniqueness conflict", "count", conflicts)
		p.count(telemetry.OutcomeDupConflict, conflicts)
	}

	log.Info("ingested batch", "candidates", len(batch), "stored", len(stored))
	return stored, nil
}

func (p *Pipeline) prepare(security string, raw domain.RawArticle, collectedAt time.Time) (domain.Article, error) {
	raw.Title = strings.TrimSpace(raw.Title)
	raw.Body = strings.TrimSpace(raw.Body)
	raw.URL = strings.TrimSpace(raw.URL)
	raw.Source = strings.TrimSpace(raw.Source)
	raw.Security = domain.NormalizeSecurity(raw.Security)

	if err := p.validate.Struct(raw); err != nil {
		return domain.Article{}, fmt.Errorf("%w: %v", domain.ErrInvalidArticle, err)
	}
	if raw.Security != security {
		return domain.Article{}, fmt.Errorf("%w: security %s in %s batch", domain.ErrInvalidArticle, raw.Security, security)
	}

	published := raw.PublishedAt
	if published.IsZero() {
		published = collectedAt
	}

	return domain.Article{
		Fingerprint: p.fingerprinter.Fingerprint(raw.Title, raw.Body),
		URL:         raw.URL,
		Security:    security,
		Title:       raw.Title,
		Body:        raw.Body,
		Source:      raw.Source,
		PublishedAt: published.UTC(),
		CollectedAt: collectedAt,
		Freshness:   domain.Unused,
	}, nil
}

// pushTitle keeps the comparison window bounded while letting accepted
// batch members shadow later near-duplicates.
func (p *Pipeline) pushTitle(window []string, title string) []string {
	window = append([]string{title}, window...)
	if uint64(len(window)) > p.titleWindow {
		window = window[:p.titleWindow]
	}
	return window
}

func (p *Pipeline) count(outcome string, n int) {
	if p.metrics == nil || n == 0 {
		return
	}
	p.metrics.ArticlesTotal.WithLabelValues(outcome).Add(float64(n))
}
