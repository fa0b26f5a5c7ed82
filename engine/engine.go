package engine

import (
	"fmt"

	"github.com/blueeye2015/new-okx/shared"
	"github.com/rs/zerolog"
)

const (
	// minWinRate is the win rate a pattern statistic must strictly exceed
	// before a trade is approved.
	minWinRate = 0.55
)

// DeclineReason represents why an evaluation declined to open a position.
type DeclineReason int

const (
	NotDeclined DeclineReason = iota
	HistoryTooShort
	CombinationDenied
	NoStatistics
	WinRateTooLow
)

// String stringifies the provided decline reason.
func (r DeclineReason) String() string {
	switch r {
	case NotDeclined:
		return "none"
	case HistoryTooShort:
		return "history too short"
	case CombinationDenied:
		return "combination denied"
	case NoStatistics:
		return "no statistics"
	case WinRateTooLow:
		return "win rate too low"
	default:
		return "unknown"
	}
}

// Decision represents the outcome of evaluating a trading opportunity.
type Decision struct {
	// Approved indicates whether a position should be opened.
	Approved bool
	// Direction is the side to trade when approved.
	Direction shared.Direction
	// Pattern is the classified price pattern the decision rests on.
	Pattern shared.Pattern
	// StatsDay is the day keying the statistics used, the day the pattern
	// formed on.
	StatsDay shared.Weekday
	// Stat holds the pattern statistics backing the decision.
	Stat shared.PatternStat
	// SizeFraction is the fraction of capital to commit when approved.
	SizeFraction float64
	// Reason describes why the evaluation declined, if it did.
	Reason DeclineReason
}

// DefaultDeniedCombinations returns the day and pattern combinations barred
// from trading regardless of their statistics. Both combinations historically
// showed a reversed edge despite clearing the win rate gate.
func DefaultDeniedCombinations() map[shared.StatsKey]struct{} {
	return map[shared.StatsKey]struct{}{
		{Day: shared.Friday, Pattern: shared.ContinuousRise}: {},
		{Day: shared.Saturday, Pattern: shared.FallThenRise}: {},
	}
}

// EngineConfig represents the decision engine configuration.
type EngineConfig struct {
	// RiskLevel scales kelly position sizing.
	RiskLevel shared.RiskLevel
	// DeniedCombinations vetoes trading on the keyed day and pattern
	// combinations, keyed by the day the pattern formed on. A nil map
	// applies DefaultDeniedCombinations.
	DeniedCombinations map[shared.StatsKey]struct{}
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// Engine evaluates trading opportunities from day and pattern statistics.
type Engine struct {
	cfg    *EngineConfig
	denied map[shared.StatsKey]struct{}
}

// NewEngine initializes a new decision engine.
func NewEngine(cfg *EngineConfig) *Engine {
	denied := cfg.DeniedCombinations
	if denied == nil {
		denied = DefaultDeniedCombinations()
	}

	return &Engine{
		cfg:    cfg,
		denied: denied,
	}
}

// Evaluate decides whether to open a position on the provided day given the
// hourly price history and pattern statistics. The pattern classified from
// the prices is judged against the statistics keyed by the previous day,
// the day the pattern formed on.
func (e *Engine) Evaluate(day shared.Weekday, prices []float64, stats shared.StatsTable) (*Decision, error) {
	pattern := shared.ClassifyPattern(prices)
	if pattern == shared.InsufficientData {
		e.cfg.Logger.Info().Msgf("price history too short to classify a pattern: %d points", len(prices))
		return &Decision{Pattern: pattern, Reason: HistoryTooShort}, nil
	}

	statsDay := day.Previous()

	if _, ok := e.denied[shared.StatsKey{Day: statsDay, Pattern: pattern}]; ok {
		e.cfg.Logger.Info().Msgf("%s pattern formed on %s is barred from trading", pattern, statsDay)
		return &Decision{Pattern: pattern, StatsDay: statsDay, Reason: CombinationDenied}, nil
	}

	stat, ok := stats.Lookup(day, pattern)
	if !ok {
		e.cfg.Logger.Info().Msgf("no statistics for %s pattern formed on %s", pattern, statsDay)
		return &Decision{Pattern: pattern, StatsDay: statsDay, Reason: NoStatistics}, nil
	}

	if stat.WinRate <= minWinRate {
		e.cfg.Logger.Info().Msgf("win rate %.2f for %s pattern formed on %s below threshold %.2f",
			stat.WinRate, pattern, statsDay, minWinRate)
		return &Decision{Pattern: pattern, StatsDay: statsDay, Stat: stat, Reason: WinRateTooLow}, nil
	}

	fraction, err := SizeFraction(stat, e.cfg.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s pattern formed on %s: %w", pattern, statsDay, err)
	}

	return &Decision{
		Approved:     true,
		Direction:    shared.Long,
		Pattern:      pattern,
		StatsDay:     statsDay,
		Stat:         stat,
		SizeFraction: fraction,
	}, nil
}
