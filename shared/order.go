package shared

import "time"

// OrderSide represents the side of an exchange order.
type OrderSide int

const (
	Buy OrderSide = iota
	Sell
)

// String stringifies the provided order side.
func (s OrderSide) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// FundingRate represents one funding period of a perpetual instrument.
type FundingRate struct {
	// Instrument is the instrument the rate applies to.
	Instrument string
	// Rate is the fractional funding rate for the period.
	Rate float64
	// RealizedRate is the fractional rate actually settled, when available.
	RealizedRate float64
	// Method is the exchange's settlement method for the period.
	Method string
	// Time is the settlement time of the period.
	Time time.Time
}

// PriceUpdate represents a ticker price update for an instrument.
type PriceUpdate struct {
	// Instrument is the instrument the update applies to.
	Instrument string
	// Price is the latest traded price.
	Price float64
	// Time is the exchange timestamp of the update.
	Time time.Time
}
