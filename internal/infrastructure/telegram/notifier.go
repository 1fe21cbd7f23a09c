package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SentimentTracker/internal/domain"
	"SentimentTracker/internal/ports"
)

const defaultBaseURL = "https://api.telegram.org"

var confidenceOrder = []domain.Confidence{domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow}

// Notifier sends the daily validation digest to a Telegram chat via bot API.
type Notifier struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty baseURL
// targets the public bot API.
func NewNotifier(baseURL, botToken, chatID string) *Notifier {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Notifier{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishMetric renders the metric as a Markdown digest and posts it.
func (n *Notifier) PublishMetric(ctx context.Context, metric domain.ValidationMetric) error {
	return n.send(ctx, FormatDigest(metric))
}

// FormatDigest renders a validation metric for a chat message.
func FormatDigest(m domain.ValidationMetric) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Validation metrics %s*\n", m.Date)
	if m.Total == 0 {
		b.WriteString("No recommendations validated yet.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Validated: %d (accuracy rate %.1f%%)\n", m.Total, m.AccuracyRate())
	fmt.Fprintf(&b, "Accurate: %d, partial: %d, inaccurate: %d\n", m.Accurate, m.PartiallyAccurate, m.Inaccurate)
	fmt.Fprintf(&b, "Mean score: %.2f\n", m.MeanAccuracy)
	for _, confidence := range confidenceOrder {
		tier, ok := m.ByConfidence[confidence]
		if !ok || tier.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: %d, mean %.2f\n", confidence, tier.Count, tier.MeanAccuracy)
	}
	return b.String()
}

type sendResult struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	// The bot API explains failures in the body, even on non-200 codes.
	var result sendResult
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK || (decodeErr == nil && !result.OK) {
		if result.Description != "" {
			return fmt.Errorf("telegram error: %s: %s", resp.Status, result.Description)
		}
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode telegram response: %w", decodeErr)
	}
	return nil
}
