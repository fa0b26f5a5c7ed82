package database

import (
	"math"
	"testing"
	"time"

	"github.com/blueeye2015/new-okx/position"
	"github.com/blueeye2015/new-okx/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
)

// patternRow returns a well formed price_patterns row in the associative
// form returned by the database.
func patternRow() map[string]any {
	return map[string]any{
		"week_period":       "Monday",
		"pattern":           "continuous_rise",
		"cases":             float64(42),
		"avg_next_return":   0.8,
		"next_day_win_rate": 65.0,
		"avg_movement":      2.1,
	}
}

func TestStatFromRow(t *testing.T) {
	// Ensure a well formed row maps to a stats entry with percent columns
	// scaled back to fractions.
	key, stat, err := statFromRow(patternRow())
	assert.NoError(t, err)

	assert.Equal(t, key.Day, shared.Monday)
	assert.Equal(t, key.Pattern, shared.ContinuousRise)
	assert.Equal(t, stat.SampleSize, 42)

	const eps = 0.000001
	if math.Abs(stat.WinRate-0.65) > eps {
		t.Errorf("expected win rate 0.65, got %v", stat.WinRate)
	}
	if math.Abs(stat.ReturnRate-0.008) > eps {
		t.Errorf("expected return rate 0.008, got %v", stat.ReturnRate)
	}
	if math.Abs(stat.Volatility-0.021) > eps {
		t.Errorf("expected volatility 0.021, got %v", stat.Volatility)
	}

	tests := []struct {
		name   string
		mutate func(row map[string]any)
	}{
		{
			name: "missing week period",
			mutate: func(row map[string]any) {
				delete(row, "week_period")
			},
		},
		{
			name: "unknown week period",
			mutate: func(row map[string]any) {
				row["week_period"] = "Someday"
			},
		},
		{
			name: "missing pattern",
			mutate: func(row map[string]any) {
				delete(row, "pattern")
			},
		},
		{
			name: "unknown pattern",
			mutate: func(row map[string]any) {
				row["pattern"] = "sideways_chop"
			},
		},
	}

	for _, test := range tests {
		row := patternRow()
		test.mutate(row)

		_, _, err := statFromRow(row)
		if err == nil {
			t.Errorf("%s: expected a row mapping error", test.name)
		}
	}
}

// positionRow returns a well formed active_position row in the associative
// form returned by the database.
func positionRow() map[string]any {
	return map[string]any{
		"id":          "b3c8f3a2-7a3f-4c7b-9a6e-2f1d8c5e4b21",
		"direction":   "long",
		"entry_price": 43250.5,
		"size":        0.5,
		"stop_loss":   41693.48,
		"take_profit": 45586.03,
		"entry_time":  float64(1704099600),
		"pattern":     "continuous_rise",
		"day":         "Monday",
	}
}

func TestPositionFromRow(t *testing.T) {
	// Ensure a well formed row maps to a position keyed by the queried pair.
	pos, err := positionFromRow("BTC-USDT", positionRow())
	assert.NoError(t, err)

	want := &position.Position{
		ID:         "b3c8f3a2-7a3f-4c7b-9a6e-2f1d8c5e4b21",
		Pair:       "BTC-USDT",
		Direction:  shared.Long,
		EntryPrice: 43250.5,
		Size:       0.5,
		StopLoss:   41693.48,
		TakeProfit: 45586.03,
		EntryTime:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Pattern:    shared.ContinuousRise,
		Day:        shared.Monday,
	}

	if !cmp.Equal(want, pos) {
		t.Errorf("mismatching position, got %v", cmp.Diff(want, pos))
	}

	tests := []struct {
		name   string
		mutate func(row map[string]any)
	}{
		{
			name: "missing id",
			mutate: func(row map[string]any) {
				delete(row, "id")
			},
		},
		{
			name: "unknown direction",
			mutate: func(row map[string]any) {
				row["direction"] = "sideways"
			},
		},
		{
			name: "unknown pattern",
			mutate: func(row map[string]any) {
				row["pattern"] = "mystery"
			},
		},
		{
			name: "unknown day",
			mutate: func(row map[string]any) {
				row["day"] = "Someday"
			},
		},
	}

	for _, test := range tests {
		row := positionRow()
		test.mutate(row)

		_, err := positionFromRow("BTC-USDT", row)
		if err == nil {
			t.Errorf("%s: expected a row mapping error", test.name)
		}
	}
}

func TestFundingRateFromRow(t *testing.T) {
	row := map[string]any{
		"symbol":        "BTC-USDT-SWAP",
		"funding_time":  float64(1704067200),
		"funding_rate":  0.0001,
		"realized_rate": 0.00012,
		"method":        "current_period",
	}

	// Ensure a well formed row maps to a funding rate record.
	record, err := fundingRateFromRow(row)
	assert.NoError(t, err)

	assert.Equal(t, record.Instrument, "BTC-USDT-SWAP")
	assert.Equal(t, record.Rate, 0.0001)
	assert.Equal(t, record.RealizedRate, 0.00012)
	assert.Equal(t, record.Method, "current_period")
	assert.Equal(t, record.Time, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	// Ensure rows without a settlement time are rejected.
	delete(row, "funding_time")
	_, err = fundingRateFromRow(row)
	assert.Error(t, err)
}

func TestRowReaders(t *testing.T) {
	row := map[string]any{
		"price": 43250.5,
		"count": float64(7),
		"pair":  "BTC-USDT",
	}

	// Ensure numeric columns read regardless of the decoded numeric type.
	price, ok := rowFloat(row, "price")
	assert.True(t, ok)
	assert.Equal(t, price, 43250.5)

	count, ok := rowFloat(row, "count")
	assert.True(t, ok)
	assert.Equal(t, count, float64(7))

	// Ensure type mismatches and absent columns are flagged.
	_, ok = rowFloat(row, "pair")
	assert.False(t, ok)

	_, ok = rowFloat(row, "absent")
	assert.False(t, ok)

	pair, ok := rowString(row, "pair")
	assert.True(t, ok)
	assert.Equal(t, pair, "BTC-USDT")

	_, ok = rowString(row, "price")
	assert.False(t, ok)
}
