package shared

// defaultDayVolatility is the conservative volatility fraction assumed for
// days with no recorded volatility.
const defaultDayVolatility = 0.02

// PatternStat represents aggregated outcome statistics for a pattern observed
// on a given day of the week.
type PatternStat struct {
	// WinRate is the probability of a favorable move the following day.
	WinRate float64
	// ReturnRate is the average signed fractional return the following day.
	ReturnRate float64
	// Volatility is the average fractional price movement for the day.
	Volatility float64
	// SampleSize is the number of cases backing the statistic.
	SampleSize int
}

// StatsKey identifies pattern statistics by day and pattern.
type StatsKey struct {
	Day     Weekday
	Pattern Pattern
}

// StatsTable maps day and pattern keys to their statistics.
type StatsTable map[StatsKey]PatternStat

// Lookup fetches the statistics relevant to trading the provided pattern on
// the provided day. The statistics describe the move following a pattern, so
// a trading day is keyed by the pattern observed on the preceding calendar
// day. A missing entry means the combination has no statistical backing and
// must not be traded.
func (t StatsTable) Lookup(day Weekday, pattern Pattern) (PatternStat, bool) {
	stat, ok := t[StatsKey{Day: day.Previous(), Pattern: pattern}]
	return stat, ok
}

// VolatilityTable maps weekdays to their expected daily volatility fractions.
type VolatilityTable map[Weekday]float64

// Value returns the expected volatility fraction for the provided day,
// falling back to a conservative default when the day has no entry.
func (t VolatilityTable) Value(day Weekday) float64 {
	vol, ok := t[day]
	if !ok {
		return defaultDayVolatility
	}

	return vol
}
