package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blueeye2015/new-okx/database"
	"github.com/blueeye2015/new-okx/engine"
	"github.com/blueeye2015/new-okx/position"
	"github.com/blueeye2015/new-okx/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64

	// pollInterval is the fallback price polling interval.
	pollInterval = time.Second * 10

	// maxPollFailures is the number of consecutive price fetch failures
	// tolerated before the trader shuts down.
	maxPollFailures = 10

	// candleHistoryHours is the span of hourly closes evaluated for a
	// pattern.
	candleHistoryHours = 4

	// modelRefreshHours is the interval between scheduled model refreshes.
	modelRefreshHours = 8

	// fundingHistoryLimit is the number of funding periods fetched per sync.
	fundingHistoryLimit = 30

	// fundingWindow is the stored funding history window used for cost
	// estimates.
	fundingWindow = time.Hour * 24
)

// TraderConfig represents the configuration struct for the trader service.
type TraderConfig struct {
	// Pair is the traded pair, of the form BASE-QUOTE.
	Pair string
	// RiskLevel scales position sizes.
	RiskLevel shared.RiskLevel
	// Exchange is the exchange gateway.
	Exchange shared.ExchangeGateway
	// Store is the trade store.
	Store database.TradeStorer
	// Notify relays trade notifications.
	Notify func(message string)
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *TraderConfig) Validate() error {
	var errs error

	if cfg.Pair == "" {
		errs = errors.Join(errs, fmt.Errorf("pair cannot be an empty string"))
	}
	if cfg.Pair != "" && !strings.Contains(cfg.Pair, "-") {
		errs = errors.Join(errs, fmt.Errorf("pair must be of the form BASE-QUOTE"))
	}
	if _, err := cfg.RiskLevel.Multiplier(); err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.Exchange == nil {
		errs = errors.Join(errs, fmt.Errorf("exchange gateway cannot be nil"))
	}
	if cfg.Store == nil {
		errs = errors.Join(errs, fmt.Errorf("trade store cannot be nil"))
	}
	if cfg.Notify == nil {
		errs = errors.Join(errs, fmt.Errorf("notify function cannot be nil"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// Trader represents a pattern trading service.
type Trader struct {
	cfg          *TraderConfig
	engine       *engine.Engine
	positions    *position.Manager
	scheduler    *gocron.Scheduler
	priceUpdates chan shared.PriceUpdate
	logger       zerolog.Logger

	statsMtx    sync.RWMutex
	stats       shared.StatsTable
	volatility  shared.VolatilityTable
	refreshMark time.Time
}

// NewTrader initializes a new trader service.
func NewTrader(ctx context.Context, cfg *TraderConfig) (*Trader, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	logger := log.With().Str("service", "trader").Logger()

	engineLogger := logger.With().Str("component", "engine").Logger()
	decisionEngine := engine.NewEngine(&engine.EngineConfig{
		RiskLevel: cfg.RiskLevel,
		Logger:    engineLogger,
	})

	positionLogger := logger.With().Str("component", "positionmanager").Logger()
	positions := position.NewManager(&position.ManagerConfig{
		Logger: positionLogger,
	})

	trader := &Trader{
		cfg:          cfg,
		engine:       decisionEngine,
		positions:    positions,
		scheduler:    gocron.NewScheduler(time.UTC),
		priceUpdates: make(chan shared.PriceUpdate, bufferSize),
		logger:       logger,
	}

	err = trader.reloadModel(ctx)
	if err != nil {
		return nil, err
	}

	if trader.statsLen() == 0 {
		// Seed the model from recorded trade history when starting cold.
		err := cfg.Store.RefreshModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("seeding model: %v", err)
		}

		err = trader.reloadModel(ctx)
		if err != nil {
			return nil, err
		}

		if trader.statsLen() == 0 {
			return nil, fmt.Errorf("no pattern statistics available for %s, "+
				"record trades before trading", cfg.Pair)
		}
	}

	pos, err := cfg.Store.ActivePosition(ctx, cfg.Pair)
	if err != nil {
		return nil, fmt.Errorf("restoring active position: %v", err)
	}
	if pos != nil {
		err = positions.Restore(pos)
		if err != nil {
			return nil, fmt.Errorf("restoring active position: %v", err)
		}

		logger.Info().Msgf("restored active %s position %s", pos.Pair, pos.ID)
	}

	_, err = trader.scheduler.Every(modelRefreshHours).Hours().Do(func() {
		trader.refreshModel(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling model refresh: %v", err)
	}

	_, err = trader.scheduler.Every(1).Hour().Do(func() {
		trader.syncFundingRates(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling funding rate sync: %v", err)
	}

	return trader, nil
}

// statsLen returns the number of loaded pattern statistics.
func (t *Trader) statsLen() int {
	t.statsMtx.RLock()
	defer t.statsMtx.RUnlock()
	return len(t.stats)
}

// reloadModel loads the pattern statistics and volatility snapshots.
func (t *Trader) reloadModel(ctx context.Context) error {
	stats, err := t.cfg.Store.PatternStats(ctx)
	if err != nil {
		return fmt.Errorf("loading pattern statistics: %v", err)
	}

	volatility, err := t.cfg.Store.Volatility(ctx)
	if err != nil {
		return fmt.Errorf("loading volatility: %v", err)
	}

	t.statsMtx.Lock()
	t.stats = stats
	t.volatility = volatility
	t.refreshMark = time.Now().UTC()
	t.statsMtx.Unlock()

	return nil
}

// refreshModel recomputes the pattern statistics from recent trades and
// reloads the model snapshots.
func (t *Trader) refreshModel(ctx context.Context) {
	err := t.cfg.Store.RefreshModel(ctx)
	if err != nil {
		t.logger.Error().Msgf("refreshing model: %v", err)
		return
	}

	err = t.reloadModel(ctx)
	if err != nil {
		t.logger.Error().Msgf("reloading model: %v", err)
		return
	}

	t.logger.Info().Msgf("model refreshed, %d pattern statistics loaded", t.statsLen())
}

// maybeRefreshModel refreshes the model if enough trades closed since the
// last refresh.
func (t *Trader) maybeRefreshModel(ctx context.Context) {
	t.statsMtx.RLock()
	mark := t.refreshMark
	t.statsMtx.RUnlock()

	refresh, err := t.cfg.Store.ShouldRefreshModel(ctx, mark)
	if err != nil {
		t.logger.Error().Msgf("checking model refresh: %v", err)
		return
	}

	if refresh {
		t.refreshModel(ctx)
	}
}

// syncFundingRates stores the latest funding rate history for the traded
// pair's perpetual instrument.
func (t *Trader) syncFundingRates(ctx context.Context) {
	rates, err := t.cfg.Exchange.FundingRateHistory(ctx, swapInstrument(t.cfg.Pair), fundingHistoryLimit)
	if err != nil {
		t.logger.Error().Msgf("fetching funding rate history: %v", err)
		return
	}

	err = t.cfg.Store.SaveFundingRates(ctx, rates)
	if err != nil {
		t.logger.Error().Msgf("saving funding rates: %v", err)
	}
}

// SendPriceUpdate relays the provided price update for processing.
func (t *Trader) SendPriceUpdate(update shared.PriceUpdate) {
	select {
	case t.priceUpdates <- update:
		// do nothing.
	default:
		t.logger.Error().Msgf("price updates channel at capacity: %d/%d",
			len(t.priceUpdates), bufferSize)
	}
}

// quoteCurrency extracts the quote currency of the provided pair.
func quoteCurrency(pair string) string {
	idx := strings.LastIndex(pair, "-")
	if idx < 0 {
		return pair
	}

	return pair[idx+1:]
}

// swapInstrument maps a spot pair to its perpetual swap instrument.
func swapInstrument(pair string) string {
	return fmt.Sprintf("%s-SWAP", pair)
}

// entrySide maps a trade direction to the order side opening it.
func entrySide(direction shared.Direction) shared.OrderSide {
	if direction == shared.Short {
		return shared.Sell
	}

	return shared.Buy
}

// exitSide maps a trade direction to the order side closing it.
func exitSide(direction shared.Direction) shared.OrderSide {
	if direction == shared.Short {
		return shared.Buy
	}

	return shared.Sell
}

// entryCycle evaluates the market for a new position at the provided price.
func (t *Trader) entryCycle(ctx context.Context, price float64, now time.Time) {
	day := shared.WeekdayFromTime(now)

	closes, err := t.cfg.Exchange.CandleCloses(ctx, t.cfg.Pair, candleHistoryHours)
	if err != nil {
		t.logger.Error().Msgf("fetching candle closes: %v", err)
		return
	}

	t.statsMtx.RLock()
	stats := t.stats
	volatility := t.volatility
	t.statsMtx.RUnlock()

	decision, err := t.engine.Evaluate(day, closes, stats)
	if err != nil {
		t.logger.Error().Msgf("evaluating entry: %v", err)
		return
	}

	if !decision.Approved {
		return
	}

	if decision.SizeFraction <= 0 {
		t.logger.Info().Msgf("sizing for %s yields no position, skipping entry", t.cfg.Pair)
		return
	}

	balance, err := t.cfg.Exchange.Balance(ctx, quoteCurrency(t.cfg.Pair))
	if err != nil {
		t.logger.Error().Msgf("fetching balance: %v", err)
		return
	}

	notional := balance * decision.SizeFraction
	size := notional / price
	if size <= 0 {
		t.logger.Info().Msgf("available balance %f sizes no %s position, skipping entry",
			balance, t.cfg.Pair)
		return
	}

	stopLoss, takeProfit, err := engine.PlanStops(price, decision.Direction, day, volatility)
	if err != nil {
		t.logger.Error().Msgf("planning stops: %v", err)
		return
	}

	rates, err := t.cfg.Store.FundingRates(ctx, swapInstrument(t.cfg.Pair), now.Add(-fundingWindow))
	if err != nil {
		t.logger.Error().Msgf("fetching stored funding rates: %v", err)
	}

	cost := EstimateFundingCost(rates, notional)
	if cost.Periods > 0 {
		t.logger.Info().Msgf("estimated daily funding cost for %.2f %s notional is %.4f "+
			"(average rate %.6f over %d periods)", notional, quoteCurrency(t.cfg.Pair),
			cost.EstimatedDailyCost, cost.AverageRate, cost.Periods)
	}

	orderID, err := t.cfg.Exchange.PlaceMarketOrder(ctx, t.cfg.Pair, entrySide(decision.Direction), size)
	if err != nil {
		t.logger.Error().Msgf("placing entry order: %v", err)
		return
	}

	entry := &position.Entry{
		Pair:       t.cfg.Pair,
		Direction:  decision.Direction,
		Price:      price,
		Size:       size,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Time:       now,
		Pattern:    decision.Pattern,
		Day:        day,
	}

	pos, err := t.positions.Open(entry)
	if err != nil {
		t.logger.Error().Msgf("tracking opened position: %v", err)
		return
	}

	err = t.cfg.Store.SavePosition(ctx, &pos)
	if err != nil {
		t.logger.Error().Msgf("persisting position %s: %v", pos.ID, err)
	}

	t.cfg.Notify(fmt.Sprintf("Opened %s %s position (order %s): size %.6f @ %.2f, "+
		"stop %.2f, target %.2f", pos.Direction, pos.Pair, orderID, pos.Size,
		pos.EntryPrice, pos.StopLoss, pos.TakeProfit))
}

// manageCycle manages the open position at the provided price.
func (t *Trader) manageCycle(ctx context.Context, price float64, now time.Time) {
	reason, done := t.positions.CheckExit(price, now)
	if done {
		t.closePosition(ctx, price, reason, now)
		return
	}

	update := t.positions.RatchetStop(price)
	if update.Moved {
		err := t.cfg.Store.UpdateStopLoss(ctx, t.cfg.Pair, update.NewStop)
		if err != nil {
			t.logger.Error().Msgf("persisting stop loss update: %v", err)
		}
	}
}

// closePosition closes the open position at the provided price.
func (t *Trader) closePosition(ctx context.Context, price float64, reason position.ExitReason, now time.Time) {
	pos, ok := t.positions.Active()
	if !ok {
		return
	}

	_, err := t.cfg.Exchange.PlaceMarketOrder(ctx, t.cfg.Pair, exitSide(pos.Direction), pos.Size)
	if err != nil {
		// Keep the position tracked until the closing order succeeds.
		t.logger.Error().Msgf("placing closing order: %v", err)
		return
	}

	result, ok := t.positions.Close(price, reason, now)
	if !ok {
		return
	}

	err = t.cfg.Store.RecordTrade(ctx, result)
	if err != nil {
		t.logger.Error().Msgf("recording trade: %v", err)
	}

	err = t.cfg.Store.DeletePosition(ctx, t.cfg.Pair)
	if err != nil {
		t.logger.Error().Msgf("deleting persisted position: %v", err)
	}

	t.cfg.Notify(fmt.Sprintf("Closed %s %s position (%s): P&L %.4f (%.2f%%)",
		result.Direction, result.Pair, result.Reason, result.ProfitAmount,
		result.ProfitPercent*100))

	t.maybeRefreshModel(ctx)
}

// process runs a trading cycle at the provided price.
func (t *Trader) process(ctx context.Context, price float64, now time.Time) {
	if _, ok := t.positions.Active(); ok {
		t.manageCycle(ctx, price, now)
		return
	}

	t.entryCycle(ctx, price, now)
}

// Run handles the lifecycle processes of the trader.
func (t *Trader) Run(ctx context.Context) {
	t.scheduler.StartAsync()
	defer t.scheduler.Stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var pollFailures int
	for {
		select {
		case update := <-t.priceUpdates:
			if update.Instrument != t.cfg.Pair {
				continue
			}

			pollFailures = 0
			t.process(ctx, update.Price, time.Now().UTC())
		case <-ticker.C:
			price, err := t.cfg.Exchange.TickerPrice(ctx, t.cfg.Pair)
			if err != nil {
				pollFailures++
				t.logger.Error().Msgf("fetching ticker price: %v", err)

				if pollFailures >= maxPollFailures {
					t.logger.Error().Msgf("%d consecutive price fetch failures, shutting down",
						pollFailures)
					t.cfg.Cancel()
					return
				}

				continue
			}

			pollFailures = 0
			t.process(ctx, price, time.Now().UTC())
		case <-ctx.Done():
			t.logger.Info().Msg("shutting down trader")
			return
		}
	}
}
