package domain

import (
	"strings"
	"time"
)

// RawArticle is a candidate news item as delivered by a news source.
type RawArticle struct {
	Title       string `validate:"required"`
	Body        string
	URL         string
	Source      string
	PublishedAt time.Time
	Security    string `validate:"required"`
}

// Freshness marks whether an article has already driven a recommendation.
type Freshness int

const (
	Unused Freshness = 0
	Used   Freshness = 1
)

func (f Freshness) String() string {
	if f == Used {
		return "used"
	}
	return "unused"
}

// Article is a deduplicated news item stored for one security.
type Article struct {
	ID                   int64      `json:"id"`
	Fingerprint          string     `json:"fingerprint"`
	URL                  string     `json:"url,omitempty"`
	Security             string     `json:"security"`
	Title                string     `json:"title"`
	Body                 string     `json:"body"`
	Source               string     `json:"source"`
	PublishedAt          time.Time  `json:"published_at"`
	CollectedAt          time.Time  `json:"collected_at"`
	Freshness            Freshness  `json:"used_flag"`
	LastUsedAt           *time.Time `json:"last_used_date,omitempty"`
	LastRecommendationID *int64     `json:"used_in_recommendation_id,omitempty"`
}

// IsUsed reports whether the article was consumed by a recommendation.
func (a Article) IsUsed() bool {
	return a.Freshness == Used
}

// UsageStats summarises how much unconsumed news exists for a security.
type UsageStats struct {
	Security              string     `json:"security"`
	TotalArticles         int        `json:"total_articles"`
	UsedArticles          int        `json:"used_articles"`
	UnusedArticles        int        `json:"unused_articles"`
	LastUsedAt            *time.Time `json:"last_used_date,omitempty"`
	NewestUnusedPublished *time.Time `json:"newest_unused_published,omitempty"`
	ReadyForAnalysis      bool       `json:"ready_for_analysis"`
}

// AnalysisInput is what prompt assembly receives for one security.
type AnalysisInput struct {
	Security string    `json:"security"`
	Context  []Article `json:"context"`
	Focus    []Article `json:"focus"`

	// Reused is set when the focus is the context set standing in for
	// missing fresh articles.
	Reused bool `json:"reused"`
}

// FocusIDs returns the ids of the focus articles in order.
func (in AnalysisInput) FocusIDs() []int64 {
	ids := make([]int64, 0, len(in.Focus))
	for _, a := range in.Focus {
		ids = append(ids, a.ID)
	}
	return ids
}

// NormalizeSecurity upper-cases and trims a security identifier.
func NormalizeSecurity(security string) string {
	return strings.ToUpper(strings.TrimSpace(security))
}
