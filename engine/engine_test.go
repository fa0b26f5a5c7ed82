package engine

import (
	"errors"
	"testing"

	"github.com/blueeye2015/new-okx/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func setupEngine(risk shared.RiskLevel, denied map[shared.StatsKey]struct{}) *Engine {
	cfg := &EngineConfig{
		RiskLevel:          risk,
		DeniedCombinations: denied,
		Logger:             log.Logger,
	}

	return NewEngine(cfg)
}

func TestDeclineReasonString(t *testing.T) {
	tests := []struct {
		name   string
		reason DeclineReason
		want   string
	}{
		{
			name:   "not declined",
			reason: NotDeclined,
			want:   "none",
		},
		{
			name:   "history too short",
			reason: HistoryTooShort,
			want:   "history too short",
		},
		{
			name:   "combination denied",
			reason: CombinationDenied,
			want:   "combination denied",
		},
		{
			name:   "no statistics",
			reason: NoStatistics,
			want:   "no statistics",
		},
		{
			name:   "win rate too low",
			reason: WinRateTooLow,
			want:   "win rate too low",
		},
		{
			name:   "unknown decline reason",
			reason: DeclineReason(999),
			want:   "unknown",
		},
	}

	for _, test := range tests {
		str := test.reason.String()
		if str != test.want {
			t.Errorf("%s: expected %s, got %s", test.name, test.want, str)
		}
	}
}

func TestEvaluateDeclines(t *testing.T) {
	risingPrices := []float64{100, 101, 102, 103}
	dippingPrices := []float64{105, 100, 103}

	stats := shared.StatsTable{
		{Day: shared.Sunday, Pattern: shared.ContinuousRise}: {
			WinRate:    0.65,
			ReturnRate: 0.008,
			SampleSize: 42,
		},
		{Day: shared.Monday, Pattern: shared.ContinuousRise}: {
			WinRate:    0.55,
			ReturnRate: 0.009,
			SampleSize: 51,
		},
	}

	tests := []struct {
		name   string
		day    shared.Weekday
		prices []float64
		want   DeclineReason
	}{
		{
			name:   "too few prices to classify",
			day:    shared.Monday,
			prices: []float64{100},
			want:   HistoryTooShort,
		},
		{
			name:   "rise formed on friday is denied",
			day:    shared.Saturday,
			prices: risingPrices,
			want:   CombinationDenied,
		},
		{
			name:   "dip recovery formed on saturday is denied",
			day:    shared.Sunday,
			prices: dippingPrices,
			want:   CombinationDenied,
		},
		{
			name:   "no statistics for the combination",
			day:    shared.Wednesday,
			prices: risingPrices,
			want:   NoStatistics,
		},
		{
			name:   "win rate at the threshold is not enough",
			day:    shared.Tuesday,
			prices: risingPrices,
			want:   WinRateTooLow,
		},
	}

	eng := setupEngine(shared.MediumRisk, nil)

	for _, test := range tests {
		decision, err := eng.Evaluate(test.day, test.prices, stats)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
		}
		if decision.Approved {
			t.Errorf("%s: expected a declined decision, got an approved one", test.name)
		}
		if decision.Reason != test.want {
			t.Errorf("%s: expected decline reason %s, got %s", test.name, test.want, decision.Reason)
		}
	}
}

func TestEvaluateApproval(t *testing.T) {
	eng := setupEngine(shared.MediumRisk, nil)

	stats := shared.StatsTable{
		{Day: shared.Sunday, Pattern: shared.ContinuousRise}: {
			WinRate:    0.65,
			ReturnRate: 0.008,
			Volatility: 0.021,
			SampleSize: 42,
		},
	}

	// Ensure a monday trade is judged by the pattern formed on sunday.
	decision, err := eng.Evaluate(shared.Monday, []float64{100, 101, 102, 103}, stats)
	assert.NoError(t, err)

	assert.True(t, decision.Approved)
	assert.Equal(t, decision.Reason, NotDeclined)
	assert.Equal(t, decision.Direction, shared.Long)
	assert.Equal(t, decision.Pattern, shared.ContinuousRise)
	assert.Equal(t, decision.StatsDay, shared.Sunday)
	assert.Equal(t, decision.Stat.SampleSize, 42)
	assert.GreaterThan(t, decision.SizeFraction, 0)
	assert.LessThanOrEqual(t, decision.SizeFraction, maxPositionFraction)
}

func TestEvaluateDeniedCombinationsOverride(t *testing.T) {
	stats := shared.StatsTable{
		{Day: shared.Friday, Pattern: shared.ContinuousRise}: {
			WinRate:    0.7,
			ReturnRate: 0.011,
			SampleSize: 33,
		},
	}

	// Ensure the default deny list vetoes the friday rise.
	eng := setupEngine(shared.MediumRisk, nil)
	decision, err := eng.Evaluate(shared.Saturday, []float64{100, 101, 102, 103}, stats)
	assert.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Equal(t, decision.Reason, CombinationDenied)

	// Ensure an explicit empty deny list clears the veto.
	eng = setupEngine(shared.MediumRisk, map[shared.StatsKey]struct{}{})
	decision, err = eng.Evaluate(shared.Saturday, []float64{100, 101, 102, 103}, stats)
	assert.NoError(t, err)
	assert.True(t, decision.Approved)
}

func TestEvaluateInvalidRiskLevel(t *testing.T) {
	eng := setupEngine(shared.RiskLevel(999), nil)

	stats := shared.StatsTable{
		{Day: shared.Sunday, Pattern: shared.ContinuousRise}: {
			WinRate:    0.65,
			ReturnRate: 0.008,
			SampleSize: 42,
		},
	}

	// Ensure an unknown risk level surfaces once sizing is reached.
	_, err := eng.Evaluate(shared.Monday, []float64{100, 101, 102, 103}, stats)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
}
