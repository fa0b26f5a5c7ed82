package shared

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestStatsTableLookup(t *testing.T) {
	stats := StatsTable{
		{Day: Sunday, Pattern: ContinuousRise}:   {WinRate: 0.65, ReturnRate: 0.008, SampleSize: 120},
		{Day: Friday, Pattern: RiseThenFall}:     {WinRate: 0.58, ReturnRate: 0.003, SampleSize: 90},
		{Day: Saturday, Pattern: ContinuousRise}: {WinRate: 0.44, ReturnRate: -0.006, SampleSize: 80},
	}

	// Ensure a trading day resolves to the statistics of the preceding
	// calendar day.
	stat, ok := stats.Lookup(Monday, ContinuousRise)
	assert.True(t, ok)
	assert.Equal(t, stat.WinRate, 0.65)
	assert.Equal(t, stat.SampleSize, 120)

	stat, ok = stats.Lookup(Saturday, RiseThenFall)
	assert.True(t, ok)
	assert.Equal(t, stat.WinRate, 0.58)

	// Ensure the lookup wraps across the start of the week.
	stat, ok = stats.Lookup(Sunday, ContinuousRise)
	assert.True(t, ok)
	assert.Equal(t, stat.WinRate, 0.44)

	// Ensure combinations without statistics report as missing rather than
	// returning zero valued statistics.
	_, ok = stats.Lookup(Wednesday, ContinuousFall)
	assert.False(t, ok)

	_, ok = stats.Lookup(Monday, FallThenRise)
	assert.False(t, ok)
}

func TestVolatilityTableValue(t *testing.T) {
	volatility := VolatilityTable{
		Monday:   0.0299,
		Saturday: 0.0152,
	}

	tests := []struct {
		name string
		day  Weekday
		want float64
	}{
		{
			name: "recorded day",
			day:  Monday,
			want: 0.0299,
		},
		{
			name: "low volatility day",
			day:  Saturday,
			want: 0.0152,
		},
		{
			name: "missing day falls back to the default",
			day:  Thursday,
			want: defaultDayVolatility,
		},
	}

	for _, test := range tests {
		vol := volatility.Value(test.day)
		if vol != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, vol)
		}
	}
}
