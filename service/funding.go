package service

import (
	"time"

	"github.com/blueeye2015/new-okx/shared"
)

// fundingPeriodsPerDay is the number of funding settlements per day on the
// exchange.
const fundingPeriodsPerDay = 3

// FundingCost summarizes the cost of holding a perpetual position through
// the provided funding periods.
type FundingCost struct {
	// TotalCost is the summed funding cost over the window, in quote terms.
	TotalCost float64
	// AverageRate is the average fractional funding rate over the window.
	AverageRate float64
	// Periods is the number of funding periods in the window.
	Periods int
	// EstimatedDailyCost is the projected daily funding cost at the average
	// rate, in quote terms.
	EstimatedDailyCost float64
	// CostPercent is the total cost as a percentage of the position notional.
	CostPercent float64
	// LatestRate is the most recent fractional funding rate.
	LatestRate float64
	// LatestTime is the settlement time of the most recent funding period.
	LatestTime time.Time
}

// EstimateFundingCost estimates the funding cost of holding a position with
// the provided notional through the provided funding periods, expected
// newest first. A zero value is returned when there are no records.
func EstimateFundingCost(rates []shared.FundingRate, notional float64) FundingCost {
	if len(rates) == 0 {
		return FundingCost{}
	}

	var total, sum float64
	for idx := range rates {
		total += rates[idx].Rate * notional
		sum += rates[idx].Rate
	}

	average := sum / float64(len(rates))

	cost := FundingCost{
		TotalCost:          total,
		AverageRate:        average,
		Periods:            len(rates),
		EstimatedDailyCost: average * notional * fundingPeriodsPerDay,
		LatestRate:         rates[0].Rate,
		LatestTime:         rates[0].Time,
	}

	if notional > 0 {
		cost.CostPercent = total / notional * 100
	}

	return cost
}
