package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentimentTracker/internal/domain"
)

func TestScoreLong(t *testing.T) {
	t.Parallel()

	cases := map[float64]float64{
		6:    1.0,
		5:    1.0,
		3:    0.8,
		2:    0.8,
		1:    0.6,
		0:    0.6,
		-1:   0.4,
		-2:   0.4,
		-3:   0.2,
		-5:   0.2,
		-6:   0.0,
		1e9:  1.0,
		-1e9: 0.0,
	}
	for change, want := range cases {
		assert.Equal(t, want, Score(domain.DirectionLong, change), "change %v", change)
	}
}

func TestScoreShortMirrorsLong(t *testing.T) {
	t.Parallel()

	cases := map[float64]float64{
		-6: 1.0,
		-3: 0.8,
		-1: 0.6,
		1:  0.4,
		3:  0.2,
		6:  0.0,
	}
	for change, want := range cases {
		assert.Equal(t, want, Score(domain.DirectionShort, change), "change %v", change)
	}

	for _, action := range []domain.Action{domain.ActionSell, domain.ActionShort} {
		got, err := ScoreAction(action, -6)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got)
	}
}

func TestScoreNeutral(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, Score(domain.DirectionNeutral, 1.5))
	assert.Equal(t, 1.0, Score(domain.DirectionNeutral, -2))
	assert.Equal(t, 0.7, Score(domain.DirectionNeutral, 4))
	assert.Equal(t, 0.7, Score(domain.DirectionNeutral, -5))
	assert.InDelta(t, 0.5, Score(domain.DirectionNeutral, 7.5), 1e-9)
	assert.InDelta(t, 0.3, Score(domain.DirectionNeutral, 10), 1e-9)
	assert.Equal(t, 0.3, Score(domain.DirectionNeutral, 12))
	assert.Equal(t, 0.3, Score(domain.DirectionNeutral, math.Inf(-1)))
}

func TestScoreIsTotal(t *testing.T) {
	t.Parallel()

	inputs := []float64{math.Inf(1), math.Inf(-1), math.NaN(), math.MaxFloat64, -math.MaxFloat64, 0}
	for _, d := range []domain.Direction{domain.DirectionLong, domain.DirectionShort, domain.DirectionNeutral} {
		for _, in := range inputs {
			got := Score(d, in)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		}
	}
}

func TestScoreUnknownDirectionIsZero(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		assert.Equal(t, 0.0, Score(domain.Direction(0), 5))
		assert.Equal(t, 0.0, Score(domain.Direction(42), -5))
	})
}

func TestScoreActionRejectsUnknown(t *testing.T) {
	t.Parallel()

	_, err := ScoreAction(domain.Action("STRONG_BUY"), 3)
	require.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.StatusAccurate, Status(0.75))
	assert.Equal(t, domain.StatusAccurate, Status(0.7))
	assert.Equal(t, domain.StatusPartiallyAccurate, Status(0.5))
	assert.Equal(t, domain.StatusPartiallyAccurate, Status(0.4))
	assert.Equal(t, domain.StatusInaccurate, Status(0.1))
	assert.Equal(t, domain.StatusInaccurate, Status(0))
}
