package engine

import (
	"fmt"

	"github.com/blueeye2015/new-okx/shared"
)

const (
	// highVolatility marks the volatility reading above which the tight
	// stop multiplier applies.
	highVolatility = 0.025
	// lowVolatility marks the volatility reading below which the wide
	// stop multiplier applies.
	lowVolatility = 0.02

	tightStopMultiplier  = 1.5
	mediumStopMultiplier = 1.8
	wideStopMultiplier   = 2.0

	// fallbackStopPercent is the flat stop distance applied when no
	// volatility data exists at all.
	fallbackStopPercent = 0.02

	// rewardRiskRatio scales the stop distance into the take profit
	// distance.
	rewardRiskRatio = 1.5
)

// stopMultiplier maps the provided volatility reading to its stop distance
// multiplier.
//
// TODO: the band ordering tightens stops as volatility rises, confirm the
// bands against recent realized volatility before widening position sizes.
func stopMultiplier(volatility float64) float64 {
	switch {
	case volatility > highVolatility:
		return tightStopMultiplier
	case volatility < lowVolatility:
		return wideStopMultiplier
	default:
		return mediumStopMultiplier
	}
}

// StopLoss derives the stop loss price for an entry at the provided price
// given the day's volatility reading. The stop sits below the entry for longs
// and above it for shorts.
func StopLoss(price float64, direction shared.Direction, volatility float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: entry price must be positive, got %f", shared.ErrInvalidArgument, price)
	}

	distance := volatility * stopMultiplier(volatility)

	switch direction {
	case shared.Long:
		return price * (1 - distance), nil
	case shared.Short:
		return price * (1 + distance), nil
	default:
		return 0, fmt.Errorf("%w: unsupported direction %s", shared.ErrInvalidArgument, direction)
	}
}

// TakeProfit derives the take profit price from the entry and its stop, at
// rewardRiskRatio times the stop distance on the favourable side.
func TakeProfit(price float64, stopLoss float64, direction shared.Direction) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: entry price must be positive, got %f", shared.ErrInvalidArgument, price)
	}

	switch direction {
	case shared.Long:
		risk := (price - stopLoss) / price
		return price * (1 + risk*rewardRiskRatio), nil
	case shared.Short:
		risk := (stopLoss - price) / price
		return price * (1 - risk*rewardRiskRatio), nil
	default:
		return 0, fmt.Errorf("%w: unsupported direction %s", shared.ErrInvalidArgument, direction)
	}
}

// PlanStops derives the stop loss and take profit prices for an entry on the
// provided day. An entirely empty volatility table falls back to a flat
// fallbackStopPercent stop, a missing day reading falls back to the table's
// per day default.
func PlanStops(price float64, direction shared.Direction, day shared.Weekday, volatility shared.VolatilityTable) (stopLoss float64, takeProfit float64, err error) {
	if price <= 0 {
		return 0, 0, fmt.Errorf("%w: entry price must be positive, got %f", shared.ErrInvalidArgument, price)
	}

	if len(volatility) == 0 {
		switch direction {
		case shared.Long:
			stopLoss = price * (1 - fallbackStopPercent)
		case shared.Short:
			stopLoss = price * (1 + fallbackStopPercent)
		default:
			return 0, 0, fmt.Errorf("%w: unsupported direction %s", shared.ErrInvalidArgument, direction)
		}
	} else {
		stopLoss, err = StopLoss(price, direction, volatility.Value(day))
		if err != nil {
			return 0, 0, err
		}
	}

	takeProfit, err = TakeProfit(price, stopLoss, direction)
	if err != nil {
		return 0, 0, err
	}

	return stopLoss, takeProfit, nil
}
