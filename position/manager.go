package position

import (
	"sync"
	"time"

	"github.com/blueeye2015/new-okx/shared"
	"github.com/rs/zerolog"
)

// ManagerConfig represents the position manager configuration.
type ManagerConfig struct {
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// Manager manages a single position through its lifecycle. At most one
// position is open at a time, opens while a position exists are rejected.
type Manager struct {
	cfg         *ManagerConfig
	position    *Position
	positionMtx sync.Mutex
}

// NewManager initializes a new position manager.
func NewManager(cfg *ManagerConfig) *Manager {
	return &Manager{
		cfg: cfg,
	}
}

// Open opens a new position from the provided entry. It fails with
// ErrPositionOpen if a position is already open.
func (m *Manager) Open(entry *Entry) (Position, error) {
	m.positionMtx.Lock()
	defer m.positionMtx.Unlock()

	if m.position != nil {
		return Position{}, shared.ErrPositionOpen
	}

	pos, err := NewPosition(entry)
	if err != nil {
		return Position{}, err
	}

	m.position = pos
	m.cfg.Logger.Info().Msgf("opened %s position (%s) for %s @ %f with stop loss %f and target %f",
		pos.Direction, pos.ID, pos.Pair, pos.EntryPrice, pos.StopLoss, pos.TakeProfit)

	return *pos, nil
}

// Restore adopts the provided position, typically reloaded from storage on
// startup. It fails with ErrPositionOpen if a position is already open.
func (m *Manager) Restore(pos *Position) error {
	m.positionMtx.Lock()
	defer m.positionMtx.Unlock()

	if m.position != nil {
		return shared.ErrPositionOpen
	}

	m.position = pos
	m.cfg.Logger.Info().Msgf("restored %s position (%s) for %s @ %f with stop loss %f",
		pos.Direction, pos.ID, pos.Pair, pos.EntryPrice, pos.StopLoss)

	return nil
}

// Active returns a snapshot of the open position and whether one exists.
func (m *Manager) Active() (Position, bool) {
	m.positionMtx.Lock()
	defer m.positionMtx.Unlock()

	if m.position == nil {
		return Position{}, false
	}

	return *m.position, true
}

// StopUpdate reports a trailing stop adjustment.
type StopUpdate struct {
	// ID is the id of the adjusted position.
	ID string
	// PreviousStop is the stop loss before the adjustment.
	PreviousStop float64
	// NewStop is the stop loss after the adjustment.
	NewStop float64
	// Moved indicates whether the stop actually moved.
	Moved bool
}

// RatchetStop tightens the open position's stop loss at the provided price.
// Without an open position the update reports no movement.
func (m *Manager) RatchetStop(currentPrice float64) StopUpdate {
	m.positionMtx.Lock()
	defer m.positionMtx.Unlock()

	if m.position == nil {
		return StopUpdate{}
	}

	previous, current, moved := m.position.RatchetStop(currentPrice)
	if moved {
		m.cfg.Logger.Info().Msgf("moved stop loss for position (%s) from %f to %f",
			m.position.ID, previous, current)
	}

	return StopUpdate{
		ID:           m.position.ID,
		PreviousStop: previous,
		NewStop:      current,
		Moved:        moved,
	}
}

// CheckExit reports whether the open position should close at the provided
// price and time. Without an open position no exit fires.
func (m *Manager) CheckExit(currentPrice float64, now time.Time) (ExitReason, bool) {
	m.positionMtx.Lock()
	defer m.positionMtx.Unlock()

	if m.position == nil {
		return 0, false
	}

	return m.position.CheckExit(currentPrice, now)
}

// Close closes the open position at the provided price and time, returning
// the realized trade result. Without an open position it reports false.
func (m *Manager) Close(exitPrice float64, reason ExitReason, now time.Time) (*TradeResult, bool) {
	m.positionMtx.Lock()
	defer m.positionMtx.Unlock()

	if m.position == nil {
		return nil, false
	}

	result := m.position.Close(exitPrice, reason, now)
	m.cfg.Logger.Info().Msgf("closed %s position (%s) for %s @ %f (%s): profit %f (%.2f%%)",
		m.position.Direction, m.position.ID, m.position.Pair, result.ExitPrice, result.Reason,
		result.ProfitAmount, result.ProfitPercent*100)

	m.position = nil

	return result, true
}
