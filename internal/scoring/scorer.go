// Package scoring grades a recommendation against the realized price move.
package scoring

import (
	"math"

	"SentimentTracker/internal/domain"
)

const (
	accurateFloor = 0.7
	partialFloor  = 0.4
)

// Score maps a direction and realized percent change to [0, 1]. Values past
// the outermost breakpoints clamp to the extreme bucket. NaN and directions
// outside the known set score 0.
func Score(direction domain.Direction, changePct float64) float64 {
	if math.IsNaN(changePct) {
		return 0
	}

	switch direction {
	case domain.DirectionLong:
		return directional(changePct)
	case domain.DirectionShort:
		return directional(-changePct)
	case domain.DirectionNeutral:
		return neutral(math.Abs(changePct))
	default:
		return 0
	}
}

// ScoreAction resolves the action's direction and scores it.
func ScoreAction(action domain.Action, changePct float64) (float64, error) {
	direction, err := action.Direction()
	if err != nil {
		return 0, err
	}
	return Score(direction, changePct), nil
}

// Status derives the terminal verdict from a score.
func Status(score float64) domain.ValidationStatus {
	switch {
	case score >= accurateFloor:
		return domain.StatusAccurate
	case score >= partialFloor:
		return domain.StatusPartiallyAccurate
	default:
		return domain.StatusInaccurate
	}
}

func directional(p float64) float64 {
	switch {
	case p >= 5:
		return 1.0
	case p >= 2:
		return 0.8
	case p >= 0:
		return 0.6
	case p >= -2:
		return 0.4
	case p >= -5:
		return 0.2
	default:
		return 0.0
	}
}

// neutral is flat at 1.0 up to 2%, flat at 0.7 up to 5%, then linear down to
// 0.3 at 10% and flat beyond.
func neutral(abs float64) float64 {
	switch {
	case abs <= 2:
		return 1.0
	case abs <= 5:
		return 0.7
	case abs > 10:
		return 0.3
	default:
		return 0.7 - (abs-5)*(0.4/5)
	}
}
