package shared

import (
	"context"
)

// ExchangeGateway defines the requirements for exchange connectivity.
type ExchangeGateway interface {
	// TickerPrice fetches the latest traded price for the provided instrument.
	TickerPrice(ctx context.Context, instrument string) (float64, error)
	// CandleCloses fetches recent hourly closing prices for the provided
	// instrument, ordered oldest first.
	CandleCloses(ctx context.Context, instrument string, hours int) ([]float64, error)
	// Balance fetches the available balance of the provided currency.
	Balance(ctx context.Context, currency string) (float64, error)
	// PlaceMarketOrder submits a market order for the provided instrument and
	// returns the exchange order id.
	PlaceMarketOrder(ctx context.Context, instrument string, side OrderSide, size float64) (string, error)
	// FundingRateHistory fetches recent funding rate records for the provided
	// instrument, ordered newest first.
	FundingRateHistory(ctx context.Context, instrument string, limit int) ([]FundingRate, error)
}
