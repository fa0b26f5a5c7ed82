package engine

import (
	"fmt"
	"math"

	"github.com/blueeye2015/new-okx/shared"
)

const (
	// kellyReturnUnit normalizes fractional return rates into the per unit
	// odds convention of the kelly formula.
	kellyReturnUnit = 0.01
	// maxPositionFraction is the hard ceiling on the fraction of capital
	// committed to a single position.
	maxPositionFraction = 0.5
)

// SizeFraction converts the provided pattern statistics into the fraction of
// capital to commit, scaled by the provided risk level and capped at
// maxPositionFraction. Patterns with non positive expected returns size to
// zero regardless of their win rates.
func SizeFraction(stat shared.PatternStat, risk shared.RiskLevel) (float64, error) {
	multiplier, err := risk.Multiplier()
	if err != nil {
		return 0, fmt.Errorf("sizing position: %w", err)
	}

	if stat.ReturnRate <= 0 {
		return 0, nil
	}

	kelly := stat.WinRate - (1-stat.WinRate)/(stat.ReturnRate/kellyReturnUnit)
	kelly = math.Max(0, kelly)

	return math.Min(kelly*multiplier, maxPositionFraction), nil
}
