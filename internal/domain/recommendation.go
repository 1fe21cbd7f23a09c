package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the trading call label as produced by the analysis step.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionShort Action = "SHORT"
	ActionHold  Action = "HOLD"
)

// Direction is the closed set of scoring families an Action maps to.
type Direction int

const (
	DirectionLong Direction = iota + 1
	DirectionShort
	DirectionNeutral
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	case DirectionNeutral:
		return "neutral"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseAction accepts any casing of a known label.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(raw)))
	if _, err := a.Direction(); err != nil {
		return "", err
	}
	return a, nil
}

// Direction maps the label onto its scoring family.
func (a Action) Direction() (Direction, error) {
	switch a {
	case ActionBuy:
		return DirectionLong, nil
	case ActionSell, ActionShort:
		return DirectionShort, nil
	case ActionHold:
		return DirectionNeutral, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, string(a))
}

// Confidence tiers.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Risk tiers.
type Risk string

const (
	RiskLow      Risk = "LOW"
	RiskMedium   Risk = "MEDIUM"
	RiskHigh     Risk = "HIGH"
	RiskVeryHigh Risk = "VERY_HIGH"
)

// Horizon selects the validation window of a recommendation.
type Horizon string

const (
	HorizonShort  Horizon = "SHORT_TERM"
	HorizonMedium Horizon = "MEDIUM_TERM"
	HorizonLong   Horizon = "LONG_TERM"
)

// Window returns how long to wait after analysis before validating.
func (h Horizon) Window() (time.Duration, error) {
	switch h {
	case HorizonShort:
		return 3 * 24 * time.Hour, nil
	case HorizonMedium:
		return 7 * 24 * time.Hour, nil
	case HorizonLong:
		return 30 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown time horizon %q", string(h))
}

// ValidationStatus is PENDING until a terminal verdict is assigned.
type ValidationStatus string

const (
	StatusPending           ValidationStatus = "PENDING"
	StatusAccurate          ValidationStatus = "ACCURATE"
	StatusPartiallyAccurate ValidationStatus = "PARTIALLY_ACCURATE"
	StatusInaccurate        ValidationStatus = "INACCURATE"
)

// Terminal reports whether the status can no longer change.
func (s ValidationStatus) Terminal() bool {
	switch s {
	case StatusAccurate, StatusPartiallyAccurate, StatusInaccurate:
		return true
	}
	return false
}

// TerminalStatuses lists verdicts in reporting order.
var TerminalStatuses = []ValidationStatus{StatusAccurate, StatusPartiallyAccurate, StatusInaccurate}

// Recommendation is a point-in-time trading call and its eventual verdict.
type Recommendation struct {
	ID                int64           `json:"id"`
	Security          string          `json:"security"`
	Action            Action          `json:"recommendation"`
	Confidence        Confidence      `json:"confidence"`
	SentimentScore    float64         `json:"sentiment_score"`
	Risk              Risk            `json:"risk_level,omitempty"`
	PriceAtAnalysis   decimal.Decimal `json:"price_at_analysis"`
	Horizon           Horizon         `json:"time_horizon"`
	AnalysisTimestamp time.Time       `json:"analysis_timestamp"`
	ArticleIDs        []int64         `json:"article_ids"`

	Status            ValidationStatus    `json:"validation_status"`
	ValidatedAt       *time.Time          `json:"validation_date,omitempty"`
	PriceAtValidation decimal.NullDecimal `json:"price_at_validation"`
	PriceChangePct    *float64            `json:"price_change_percent,omitempty"`
	AccuracyScore     *float64            `json:"accuracy_score,omitempty"`
	Outcome           string              `json:"actual_outcome,omitempty"`
}

// DueAt is the earliest moment the recommendation may be validated.
func (r Recommendation) DueAt() (time.Time, error) {
	window, err := r.Horizon.Window()
	if err != nil {
		return time.Time{}, err
	}
	return r.AnalysisTimestamp.Add(window), nil
}

// NewRecommendation is the creation event emitted once analysis succeeds.
type NewRecommendation struct {
	Security        string          `json:"security" validate:"required"`
	Action          Action          `json:"recommendation" validate:"required,oneof=BUY SELL SHORT HOLD"`
	Confidence      Confidence      `json:"confidence" validate:"required,oneof=HIGH MEDIUM LOW"`
	SentimentScore  float64         `json:"sentiment_score" validate:"gte=-1,lte=1"`
	Risk            Risk            `json:"risk_level" validate:"omitempty,oneof=LOW MEDIUM HIGH VERY_HIGH"`
	PriceAtAnalysis decimal.Decimal `json:"price_at_analysis"`
	Horizon         Horizon         `json:"time_horizon" validate:"required,oneof=SHORT_TERM MEDIUM_TERM LONG_TERM"`
	FocusArticleIDs []int64         `json:"focus_article_ids"`

	// Forced marks an analysis run on a reused context set (force refresh).
	Forced bool `json:"forced"`
}

// ValidationOutcome is the terminal write applied by the validation engine.
type ValidationOutcome struct {
	ValidatedAt       time.Time
	PriceAtValidation decimal.Decimal
	PriceChangePct    float64
	AccuracyScore     float64
	Status            ValidationStatus
	Outcome           string
}

// RecommendationFilter narrows recommendation listings.
type RecommendationFilter struct {
	Security string
	Status   ValidationStatus
	Limit    uint64
}
