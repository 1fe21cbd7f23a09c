// Package market talks to the Finnhub REST API for quotes and company news.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"SentimentTracker/internal/ports"
)

const (
	DefaultBaseURL   = "https://finnhub.io/api/v1"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 1.0

	newsDateLayout = "2006-01-02"
)

// Client is a Finnhub API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ ports.PriceProvider = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRateLimit sets the sustained request rate.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// NewClient creates a new Finnhub client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewsItem is one entry of the company-news endpoint.
type NewsItem struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// PublishedAt converts the unix timestamp to UTC.
func (n NewsItem) PublishedAt() time.Time {
	if n.Datetime <= 0 {
		return time.Time{}
	}
	return time.Unix(n.Datetime, 0).UTC()
}

// CurrentPrice returns the last traded price. A zero quote, which Finnhub
// returns for unknown symbols, is reported as an error.
func (c *Client) CurrentPrice(ctx context.Context, security string) (decimal.Decimal, error) {
	var quote struct {
		Current json.Number `json:"c"`
	}

	params := url.Values{}
	params.Set("symbol", security)
	if err := c.get(ctx, "/quote", params, &quote); err != nil {
		return decimal.Zero, fmt.Errorf("quote %s: %w", security, err)
	}

	if quote.Current == "" {
		return decimal.Zero, fmt.Errorf("quote %s: empty price", security)
	}
	price, err := decimal.NewFromString(quote.Current.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote %s: parse price %q: %w", security, quote.Current, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("quote %s: no price available", security)
	}
	return price, nil
}

// CompanyNews lists news for the security published between from and to (dates inclusive).
func (c *Client) CompanyNews(ctx context.Context, security string, from, to time.Time) ([]NewsItem, error) {
	params := url.Values{}
	params.Set("symbol", security)
	params.Set("from", from.UTC().Format(newsDateLayout))
	params.Set("to", to.UTC().Format(newsDateLayout))

	var items []NewsItem
	if err := c.get(ctx, "/company-news", params, &items); err != nil {
		return nil, fmt.Errorf("company news %s: %w", security, err)
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("token", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
