package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/scanner"
)

// Option keys understood by HTMLScanner.
const (
	OptListURL    = "listUrl"
	OptItem       = "item"
	OptTitle      = "title"
	OptLink       = "link"
	OptSummary    = "summary"
	OptTime       = "time"
	OptTimeLayout = "timeLayout"

	securityPlaceholder = "{security}"
)

// HTMLScanner scrapes a news listing page using CSS selectors from the
// source options. The listing URL may carry a {security} placeholder.
type HTMLScanner struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTMLScanner wires an HTTP client.
func NewHTMLScanner(client *http.Client, logger *slog.Logger) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTMLScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan fetches the listing page and extracts every item inside the window.
// Items without a parsable time are kept.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	listURL := req.Options[OptListURL]
	if listURL == "" {
		return nil, fmt.Errorf("source %s: option %s is required", req.SourceName, OptListURL)
	}
	listURL = strings.ReplaceAll(listURL, securityPlaceholder, url.PathEscape(req.Security))

	base, err := url.Parse(listURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: invalid list url: %w", req.SourceName, err)
	}

	doc, err := h.fetchDocument(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.SourceName, err)
	}

	sel := selectorsFrom(req.Options)
	var results []domain.RawArticle
	doc.Find(sel.item).Each(func(_ int, item *goquery.Selection) {
		article, ok := parseItem(item, sel, base)
		if !ok {
			return
		}
		if !article.PublishedAt.IsZero() && !req.InWindow(article.PublishedAt) {
			return
		}
		article.Security = req.Security
		article.Source = req.SourceName
		results = append(results, article)
	})

	h.logger.Debug("html listing parsed", "source", req.SourceName, "security", req.Security, "count", len(results))
	return results, nil
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "SentimentTracker/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

type selectors struct {
	item, title, link, summary, time, timeLayout string
}

func selectorsFrom(opts map[string]string) selectors {
	sel := selectors{
		item:       "article",
		title:      "h2, h3",
		link:       "a[href]",
		summary:    "p",
		time:       "time",
		timeLayout: time.RFC3339,
	}
	if v := opts[OptItem]; v != "" {
		sel.item = v
	}
	if v := opts[OptTitle]; v != "" {
		sel.title = v
	}
	if v := opts[OptLink]; v != "" {
		sel.link = v
	}
	if v := opts[OptSummary]; v != "" {
		sel.summary = v
	}
	if v := opts[OptTime]; v != "" {
		sel.time = v
	}
	if v := opts[OptTimeLayout]; v != "" {
		sel.timeLayout = v
	}
	return sel
}

func parseItem(item *goquery.Selection, sel selectors, base *url.URL) (domain.RawArticle, bool) {
	title := collapseSpace(item.Find(sel.title).First().Text())
	if title == "" {
		return domain.RawArticle{}, false
	}

	var link string
	if href, ok := item.Find(sel.link).First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			link = base.ResolveReference(ref).String()
		}
	}

	summary := collapseSpace(item.Find(sel.summary).First().Text())

	var published time.Time
	stamp := item.Find(sel.time).First()
	raw, ok := stamp.Attr("datetime")
	if !ok {
		raw = stamp.Text()
	}
	if raw = strings.TrimSpace(raw); raw != "" {
		if parsed, err := time.Parse(sel.timeLayout, raw); err == nil {
			published = parsed.UTC()
		}
	}

	return domain.RawArticle{
		Title:       title,
		Body:        summary,
		URL:         link,
		PublishedAt: published,
	}, true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
