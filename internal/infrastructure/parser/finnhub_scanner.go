package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/infrastructure/market"
	"SentimentTracker/internal/scanner"
)

// NewsClient is the part of the Finnhub client the scanner needs.
type NewsClient interface {
	CompanyNews(ctx context.Context, security string, from, to time.Time) ([]market.NewsItem, error)
}

// FinnhubScanner turns company-news items into raw articles.
type FinnhubScanner struct {
	client NewsClient
}

func NewFinnhubScanner(client NewsClient) *FinnhubScanner {
	return &FinnhubScanner{client: client}
}

func (f *FinnhubScanner) Name() string {
	return "finnhub"
}

// Scan requests the window by date and trims items outside it by timestamp.
func (f *FinnhubScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	if f.client == nil {
		return nil, fmt.Errorf("finnhub client is not configured")
	}

	items, err := f.client.CompanyNews(ctx, req.Security, req.From, req.To)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RawArticle, 0, len(items))
	for _, item := range items {
		published := item.PublishedAt()
		if !published.IsZero() && !req.InWindow(published) {
			continue
		}

		source := item.Source
		if source == "" {
			source = req.SourceName
		}

		results = append(results, domain.RawArticle{
			Title:       strings.TrimSpace(item.Headline),
			Body:        stripHTML(item.Summary),
			URL:         strings.TrimSpace(item.URL),
			Source:      source,
			PublishedAt: published,
			Security:    req.Security,
		})
	}
	return results, nil
}

// stripHTML returns the text content of an HTML fragment.
func stripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return collapseSpace(doc.Text())
}
