package shared

import "fmt"

// Pattern represents the coarse shape of a recent price sequence.
type Pattern int

const (
	ContinuousRise Pattern = iota
	ContinuousFall
	RiseThenFall
	FallThenRise
	InsufficientData
)

// String stringifies the provided pattern.
func (p Pattern) String() string {
	switch p {
	case ContinuousRise:
		return "continuous_rise"
	case ContinuousFall:
		return "continuous_fall"
	case RiseThenFall:
		return "rise_then_fall"
	case FallThenRise:
		return "fall_then_rise"
	case InsufficientData:
		return "insufficient_data"
	default:
		return "unknown"
	}
}

// ParsePattern parses a pattern from the provided string.
func ParsePattern(pattern string) (Pattern, error) {
	switch pattern {
	case "continuous_rise":
		return ContinuousRise, nil
	case "continuous_fall":
		return ContinuousFall, nil
	case "rise_then_fall":
		return RiseThenFall, nil
	case "fall_then_rise":
		return FallThenRise, nil
	case "insufficient_data":
		return InsufficientData, nil
	default:
		return 0, fmt.Errorf("%w: unknown pattern %q", ErrInvalidArgument, pattern)
	}
}

// trendPattern maps the trends of the two halves of a price sequence to a pattern.
func trendPattern(firstTrendUp bool, secondTrendUp bool) Pattern {
	switch {
	case firstTrendUp && secondTrendUp:
		return ContinuousRise
	case !firstTrendUp && !secondTrendUp:
		return ContinuousFall
	case firstTrendUp && !secondTrendUp:
		return RiseThenFall
	default:
		return FallThenRise
	}
}

// ClassifyPattern classifies the shape of the provided time-ascending price sequence.
//
// Sequences with fewer than two points classify as InsufficientData. Two-point
// sequences classify by their single change, with equal prices counting as a
// fall (there is no flat category). Three-point sequences classify by their two
// changes. Longer sequences are split into halves at the midpoint (the middle
// element of an odd-length sequence belongs to the second half) and classify by
// the trend of each half, where a half trends up only if its last price exceeds
// its first.
func ClassifyPattern(prices []float64) Pattern {
	switch {
	case len(prices) < 2:
		return InsufficientData
	case len(prices) == 2:
		if prices[1] > prices[0] {
			return ContinuousRise
		}
		return ContinuousFall
	case len(prices) == 3:
		return trendPattern(prices[1] > prices[0], prices[2] > prices[1])
	default:
		mid := len(prices) / 2
		firstHalf := prices[:mid]
		secondHalf := prices[mid:]

		firstTrendUp := firstHalf[len(firstHalf)-1] > firstHalf[0]
		secondTrendUp := secondHalf[len(secondHalf)-1] > secondHalf[0]

		return trendPattern(firstTrendUp, secondTrendUp)
	}
}
