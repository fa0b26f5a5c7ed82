package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/blueeye2015/new-okx/shared"
	"github.com/google/uuid"
)

const (
	// maxHoldDuration bounds how long a position may stay open before it is
	// closed regardless of price.
	maxHoldDuration = time.Hour * 24

	// Profit fractions at which the trailing stop locks in gains.
	highProfitLock   = 0.03
	mediumProfitLock = 0.02
	lowProfitLock    = 0.01

	// Stop offsets from the entry price locked in at the corresponding
	// profit fractions.
	highLockOffset   = 0.01
	mediumLockOffset = 0.005
)

// ExitReason represents the condition that closed a position.
type ExitReason int

const (
	StoppedOut ExitReason = iota
	TargetHit
	TimedOut
)

// String stringifies the provided exit reason.
func (r ExitReason) String() string {
	switch r {
	case StoppedOut:
		return "stop_loss"
	case TargetHit:
		return "take_profit"
	case TimedOut:
		return "time_limit"
	default:
		return "unknown"
	}
}

// Entry represents the parameters opening a new position.
type Entry struct {
	// Pair is the traded instrument pair.
	Pair string
	// Direction is the side of the trade.
	Direction shared.Direction
	// Price is the entry price.
	Price float64
	// Size is the position size in the base currency.
	Size float64
	// StopLoss is the initial stop loss price.
	StopLoss float64
	// TakeProfit is the profit target price.
	TakeProfit float64
	// Time is the entry timestamp.
	Time time.Time
	// Pattern is the price pattern backing the entry.
	Pattern shared.Pattern
	// Day is the weekday the position opens on.
	Day shared.Weekday
}

// Validate asserts the entry has sane inputs.
func (e *Entry) Validate() error {
	var errs error

	if e.Pair == "" {
		errs = errors.Join(errs, fmt.Errorf("pair cannot be an empty string"))
	}
	if e.Direction != shared.Long && e.Direction != shared.Short {
		errs = errors.Join(errs, fmt.Errorf("direction must be long or short, got %s", e.Direction))
	}
	if e.Price <= 0 {
		errs = errors.Join(errs, fmt.Errorf("entry price must be positive, got %f", e.Price))
	}
	if e.Size <= 0 {
		errs = errors.Join(errs, fmt.Errorf("size must be positive, got %f", e.Size))
	}
	if e.Time.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("entry time cannot be zero"))
	}

	return errs
}

// Position represents an open market position.
type Position struct {
	ID         string
	Pair       string
	Direction  shared.Direction
	EntryPrice float64
	Size       float64
	StopLoss   float64
	TakeProfit float64
	EntryTime  time.Time
	Pattern    shared.Pattern
	Day        shared.Weekday
}

// NewPosition initializes a new position from the provided entry.
func NewPosition(entry *Entry) (*Position, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: entry cannot be nil", shared.ErrInvalidArgument)
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	pos := &Position{
		ID:         uuid.New().String(),
		Pair:       entry.Pair,
		Direction:  entry.Direction,
		EntryPrice: entry.Price,
		Size:       entry.Size,
		StopLoss:   entry.StopLoss,
		TakeProfit: entry.TakeProfit,
		EntryTime:  entry.Time,
		Pattern:    entry.Pattern,
		Day:        entry.Day,
	}

	return pos, nil
}

// ProfitPercent returns the fractional profit of the position at the provided
// price, signed for its direction.
func (p *Position) ProfitPercent(currentPrice float64) float64 {
	switch p.Direction {
	case shared.Long:
		return (currentPrice - p.EntryPrice) / p.EntryPrice
	case shared.Short:
		return (p.EntryPrice - currentPrice) / p.EntryPrice
	default:
		return 0
	}
}

// lockedStop returns the stop price locking in gains at the provided profit
// fraction, if any profit band applies.
func (p *Position) lockedStop(profitPercent float64) (float64, bool) {
	var offset float64

	switch {
	case profitPercent > highProfitLock:
		offset = highLockOffset
	case profitPercent > mediumProfitLock:
		offset = mediumLockOffset
	case profitPercent > lowProfitLock:
		offset = 0
	default:
		return 0, false
	}

	switch p.Direction {
	case shared.Long:
		return p.EntryPrice * (1 + offset), true
	case shared.Short:
		return p.EntryPrice * (1 - offset), true
	default:
		return 0, false
	}
}

// RatchetStop tightens the stop loss at the provided price if a profit band
// locks in a better stop. The stop only ever moves in the position's favour.
// It returns the previous stop, the current stop and whether the stop moved.
func (p *Position) RatchetStop(currentPrice float64) (float64, float64, bool) {
	previous := p.StopLoss

	candidate, ok := p.lockedStop(p.ProfitPercent(currentPrice))
	if !ok {
		return previous, previous, false
	}

	switch p.Direction {
	case shared.Long:
		if candidate <= p.StopLoss {
			return previous, previous, false
		}
	case shared.Short:
		if candidate >= p.StopLoss {
			return previous, previous, false
		}
	}

	p.StopLoss = candidate

	return previous, candidate, true
}

// CheckExit reports whether the position should close at the provided price
// and time. The stop loss is evaluated before the profit target, and the
// holding time limit last.
func (p *Position) CheckExit(currentPrice float64, now time.Time) (ExitReason, bool) {
	switch p.Direction {
	case shared.Long:
		switch {
		case currentPrice <= p.StopLoss:
			return StoppedOut, true
		case currentPrice >= p.TakeProfit:
			return TargetHit, true
		}
	case shared.Short:
		switch {
		case currentPrice >= p.StopLoss:
			return StoppedOut, true
		case currentPrice <= p.TakeProfit:
			return TargetHit, true
		}
	}

	if now.Sub(p.EntryTime) >= maxHoldDuration {
		return TimedOut, true
	}

	return 0, false
}

// TradeResult represents the outcome of a closed position.
type TradeResult struct {
	// Pair is the traded instrument pair.
	Pair string
	// Direction is the side the position was on.
	Direction shared.Direction
	// EntryPrice is the price the position opened at.
	EntryPrice float64
	// ExitPrice is the price the position closed at.
	ExitPrice float64
	// Size is the position size in the base currency.
	Size float64
	// ProfitPercent is the fractional profit of the trade, signed for its
	// direction.
	ProfitPercent float64
	// ProfitAmount is the realized profit in the quote currency.
	ProfitAmount float64
	// EntryTime is the time the position opened.
	EntryTime time.Time
	// ExitTime is the time the position closed.
	ExitTime time.Time
	// Pattern is the price pattern the position was opened on.
	Pattern shared.Pattern
	// Day is the weekday the position opened on.
	Day shared.Weekday
	// Reason is the condition that closed the position.
	Reason ExitReason
}

// Close closes the position at the provided price and time, producing the
// realized trade result.
func (p *Position) Close(exitPrice float64, reason ExitReason, now time.Time) *TradeResult {
	var profit float64
	switch p.Direction {
	case shared.Short:
		profit = p.EntryPrice - exitPrice
	default:
		profit = exitPrice - p.EntryPrice
	}

	return &TradeResult{
		Pair:          p.Pair,
		Direction:     p.Direction,
		EntryPrice:    p.EntryPrice,
		ExitPrice:     exitPrice,
		Size:          p.Size,
		ProfitPercent: profit / p.EntryPrice,
		ProfitAmount:  profit * p.Size,
		EntryTime:     p.EntryTime,
		ExitTime:      now,
		Pattern:       p.Pattern,
		Day:           p.Day,
		Reason:        reason,
	}
}
