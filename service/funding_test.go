package service

import (
	"math"
	"testing"
	"time"

	"github.com/blueeye2015/new-okx/shared"
	"github.com/peterldowns/testy/assert"
)

func TestEstimateFundingCost(t *testing.T) {
	// Ensure no records estimate to a zero value.
	cost := EstimateFundingCost(nil, 1000)
	assert.Equal(t, cost, FundingCost{})

	latest := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	rates := []shared.FundingRate{
		{Instrument: "BTC-USDT-SWAP", Rate: 0.0001, Time: latest},
		{Instrument: "BTC-USDT-SWAP", Rate: 0.0002, Time: latest.Add(-time.Hour * 8)},
		{Instrument: "BTC-USDT-SWAP", Rate: 0.0003, Time: latest.Add(-time.Hour * 16)},
	}

	// Ensure the estimate aggregates the provided periods at the position
	// notional.
	cost = EstimateFundingCost(rates, 1000)
	assert.Equal(t, cost.Periods, 3)
	assert.Equal(t, cost.LatestRate, 0.0001)
	assert.Equal(t, cost.LatestTime, latest)

	const eps = 0.000001
	if math.Abs(cost.TotalCost-0.6) > eps {
		t.Errorf("expected total cost 0.6, got %v", cost.TotalCost)
	}
	if math.Abs(cost.AverageRate-0.0002) > eps {
		t.Errorf("expected average rate 0.0002, got %v", cost.AverageRate)
	}
	if math.Abs(cost.EstimatedDailyCost-0.6) > eps {
		t.Errorf("expected estimated daily cost 0.6, got %v", cost.EstimatedDailyCost)
	}
	if math.Abs(cost.CostPercent-0.06) > eps {
		t.Errorf("expected cost percent 0.06, got %v", cost.CostPercent)
	}

	// Ensure a zero notional reports rates without a cost percentage.
	cost = EstimateFundingCost(rates, 0)
	assert.Equal(t, cost.CostPercent, float64(0))
	assert.Equal(t, cost.Periods, 3)
}
