package domain

import "errors"

var (
	ErrInvalidArticle         = errors.New("invalid article")
	ErrUnknownCategory        = errors.New("unknown recommendation category")
	ErrNoFreshArticles        = errors.New("no fresh articles")
	ErrArticleNotFound        = errors.New("article not found")
	ErrArticleAlreadyUsed     = errors.New("article already used by another recommendation")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrAlreadyValidated       = errors.New("recommendation already validated")
	ErrMissingAnalysisPrice   = errors.New("recommendation has no price at analysis")
	ErrMetricNotFound         = errors.New("validation metric not found")
	// ErrRetryLater marks work left undone because a collaborator was unavailable.
	ErrRetryLater = errors.New("not completed, retry later")
)
