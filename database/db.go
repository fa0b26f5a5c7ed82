package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/blueeye2015/new-okx/position"
	"github.com/blueeye2015/new-okx/shared"
	"github.com/davecgh/go-spew/spew"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// defaultMinSampleSize is the minimum number of recorded cases a pattern
	// statistic needs before it is trusted for trading decisions.
	defaultMinSampleSize = 30

	// modelWindowDays is the trade history window the model refresh
	// aggregates over.
	modelWindowDays = 90

	// modelRefreshTradeCount is the number of newly recorded trades that
	// triggers a model refresh.
	modelRefreshTradeCount = 10
)

const (
	// SQL statements.
	createPatternStatsTableSQL = `CREATE TABLE IF NOT EXISTS price_patterns (
		week_period TEXT NOT NULL,
		pattern TEXT NOT NULL,
		cases INTEGER NOT NULL DEFAULT 0,
		avg_next_return REAL,
		next_day_win_rate REAL,
		avg_current_return REAL,
		avg_movement REAL,
		updated_at INTEGER,
		PRIMARY KEY (week_period, pattern))`
	createActivePositionTableSQL = `CREATE TABLE IF NOT EXISTS active_position (
		pair TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		size REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		entry_time INTEGER NOT NULL,
		pattern TEXT NOT NULL,
		day TEXT NOT NULL)`
	createTradeHistoryTableSQL = `CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY,
		pair TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		size REAL NOT NULL,
		profit_pct REAL NOT NULL,
		profit_amount REAL NOT NULL,
		entry_time INTEGER NOT NULL,
		exit_time INTEGER NOT NULL,
		pattern TEXT NOT NULL,
		day_of_week TEXT NOT NULL,
		exit_reason TEXT NOT NULL)`
	createFundingRateTableSQL = `CREATE TABLE IF NOT EXISTS funding_rate (
		symbol TEXT NOT NULL,
		funding_time INTEGER NOT NULL,
		funding_rate REAL,
		realized_rate REAL,
		method TEXT,
		PRIMARY KEY (symbol, funding_time))`

	selectPatternStatsSQL = "SELECT week_period, pattern, cases, avg_next_return, next_day_win_rate, avg_movement FROM price_patterns WHERE cases >= ?"
	selectVolatilitySQL   = "SELECT week_period, AVG(avg_movement) AS avg_movement FROM price_patterns GROUP BY week_period"

	savePositionSQL         = "INSERT OR REPLACE INTO active_position(pair, id, direction, entry_price, size, stop_loss, take_profit, entry_time, pattern, day) VALUES(?,?,?,?,?,?,?,?,?,?)"
	selectActivePositionSQL = "SELECT id, direction, entry_price, size, stop_loss, take_profit, entry_time, pattern, day FROM active_position WHERE pair = ?"
	updateStopLossSQL       = "UPDATE active_position SET stop_loss = ? WHERE pair = ?"
	deletePositionSQL       = "DELETE FROM active_position WHERE pair = ?"

	recordTradeSQL      = "INSERT INTO trade_history(pair, direction, entry_price, exit_price, size, profit_pct, profit_amount, entry_time, exit_time, pattern, day_of_week, exit_reason) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)"
	tradeCountSinceSQL  = "SELECT COUNT(*) AS count FROM trade_history WHERE exit_time > ?"
	refreshModelDataSQL = `INSERT INTO price_patterns (week_period, pattern, cases, avg_next_return, next_day_win_rate, avg_current_return, avg_movement, updated_at)
		SELECT day_of_week, pattern, COUNT(*),
			AVG(profit_pct) * 100,
			SUM(CASE WHEN profit_pct > 0 THEN 1 ELSE 0 END) * 100.0 / COUNT(*),
			AVG(profit_pct) * 100,
			AVG(ABS(exit_price - entry_price) / entry_price) * 100,
			?
		FROM trade_history
		WHERE exit_time > ?
		GROUP BY day_of_week, pattern
		ON CONFLICT(week_period, pattern) DO UPDATE SET
			cases = excluded.cases,
			avg_next_return = excluded.avg_next_return,
			next_day_win_rate = excluded.next_day_win_rate,
			avg_current_return = excluded.avg_current_return,
			avg_movement = excluded.avg_movement,
			updated_at = excluded.updated_at`

	saveFundingRateSQL    = "INSERT OR REPLACE INTO funding_rate(symbol, funding_time, funding_rate, realized_rate, method) VALUES(?,?,?,?,?)"
	selectFundingRatesSQL = "SELECT symbol, funding_time, funding_rate, realized_rate, method FROM funding_rate WHERE symbol = ? AND funding_time > ? ORDER BY funding_time DESC"
)

// TradeStorer defines the requirements for persisting trading activity.
type TradeStorer interface {
	// PatternStats fetches the trusted pattern statistics.
	PatternStats(ctx context.Context) (shared.StatsTable, error)
	// Volatility fetches the expected daily volatility per weekday.
	Volatility(ctx context.Context) (shared.VolatilityTable, error)
	// SavePosition stores the provided open position.
	SavePosition(ctx context.Context, pos *position.Position) error
	// ActivePosition fetches the open position of the provided pair, nil
	// when there is none.
	ActivePosition(ctx context.Context, pair string) (*position.Position, error)
	// UpdateStopLoss stores a stop loss update for the provided pair.
	UpdateStopLoss(ctx context.Context, pair string, stopLoss float64) error
	// DeletePosition removes the open position of the provided pair.
	DeletePosition(ctx context.Context, pair string) error
	// RecordTrade stores the provided closed trade result.
	RecordTrade(ctx context.Context, result *position.TradeResult) error
	// ShouldRefreshModel reports whether enough trades closed since the
	// provided time to warrant a model refresh.
	ShouldRefreshModel(ctx context.Context, since time.Time) (bool, error)
	// RefreshModel recomputes the pattern statistics from recent trades.
	RefreshModel(ctx context.Context) error
	// SaveFundingRates stores the provided funding rate records.
	SaveFundingRates(ctx context.Context, rates []shared.FundingRate) error
	// FundingRates fetches funding rate records for the provided symbol
	// newer than the provided time, newest first.
	FundingRates(ctx context.Context, symbol string, since time.Time) ([]shared.FundingRate, error)
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// MinSampleSize is the minimum recorded cases a pattern statistic needs
	// to be trusted. Defaults to defaultMinSampleSize when unset.
	MinSampleSize int
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the TradeStorer interface.
var _ TradeStorer = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	client.SetBasicAuth(cfg.User, cfg.Pass)

	if cfg.MinSampleSize == 0 {
		cfg.MinSampleSize = defaultMinSampleSize
	}

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createPatternStatsTableSQL},
		{SQL: createActivePositionTableSQL},
		{SQL: createTradeHistoryTableSQL},
		{SQL: createFundingRateTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("creating tables: %d -> %s", idx, errStr)
	}

	return nil
}

// rowFloat reads a numeric column from the provided row.
func rowFloat(row map[string]any, column string) (float64, bool) {
	switch v := row[column].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// rowString reads a text column from the provided row.
func rowString(row map[string]any, column string) (string, bool) {
	v, ok := row[column].(string)
	return v, ok
}

// statFromRow maps a price_patterns row to its stats key and entry. Percent
// valued columns are scaled back to fractions.
func statFromRow(row map[string]any) (shared.StatsKey, shared.PatternStat, error) {
	dayStr, ok := rowString(row, "week_period")
	if !ok {
		return shared.StatsKey{}, shared.PatternStat{}, fmt.Errorf("missing week_period column")
	}

	day, err := shared.ParseWeekday(dayStr)
	if err != nil {
		return shared.StatsKey{}, shared.PatternStat{}, err
	}

	patternStr, ok := rowString(row, "pattern")
	if !ok {
		return shared.StatsKey{}, shared.PatternStat{}, fmt.Errorf("missing pattern column")
	}

	pattern, err := shared.ParsePattern(patternStr)
	if err != nil {
		return shared.StatsKey{}, shared.PatternStat{}, err
	}

	cases, _ := rowFloat(row, "cases")
	winRate, _ := rowFloat(row, "next_day_win_rate")
	returnRate, _ := rowFloat(row, "avg_next_return")
	movement, _ := rowFloat(row, "avg_movement")

	key := shared.StatsKey{Day: day, Pattern: pattern}
	stat := shared.PatternStat{
		WinRate:    winRate / 100,
		ReturnRate: returnRate / 100,
		Volatility: movement / 100,
		SampleSize: int(cases),
	}

	return key, stat, nil
}

// PatternStats fetches the pattern statistics with enough recorded cases to
// be trusted for trading decisions.
func (db *Database) PatternStats(ctx context.Context) (shared.StatsTable, error) {
	resp, err := db.client.QuerySingle(ctx, selectPatternStatsSQL, db.cfg.MinSampleSize)
	if err != nil {
		return nil, fmt.Errorf("fetching pattern statistics: %w", err)
	}

	stats := make(shared.StatsTable)

	results := resp.GetQueryResultsAssoc()
	for idx := range results {
		for _, row := range results[idx].Rows {
			key, stat, err := statFromRow(row)
			if err != nil {
				db.cfg.Logger.Error().Msgf("skipping malformed pattern statistics row: %v: %s",
					err, spew.Sdump(row))
				continue
			}

			stats[key] = stat
		}
	}

	return stats, nil
}

// Volatility fetches the expected daily volatility per weekday, averaged
// across patterns.
func (db *Database) Volatility(ctx context.Context) (shared.VolatilityTable, error) {
	resp, err := db.client.QuerySingle(ctx, selectVolatilitySQL)
	if err != nil {
		return nil, fmt.Errorf("fetching volatility: %w", err)
	}

	volatility := make(shared.VolatilityTable)

	results := resp.GetQueryResultsAssoc()
	for idx := range results {
		for _, row := range results[idx].Rows {
			dayStr, ok := rowString(row, "week_period")
			if !ok {
				db.cfg.Logger.Error().Msgf("skipping malformed volatility row: %s", spew.Sdump(row))
				continue
			}

			day, err := shared.ParseWeekday(dayStr)
			if err != nil {
				db.cfg.Logger.Error().Msgf("skipping volatility row: %v", err)
				continue
			}

			movement, _ := rowFloat(row, "avg_movement")
			volatility[day] = movement / 100
		}
	}

	return volatility, nil
}

// SavePosition stores the provided open position.
func (db *Database) SavePosition(ctx context.Context, pos *position.Position) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: savePositionSQL,
			PositionalParams: []any{pos.Pair, pos.ID, pos.Direction.String(), pos.EntryPrice,
				pos.Size, pos.StopLoss, pos.TakeProfit, pos.EntryTime.Unix(),
				pos.Pattern.String(), pos.Day.String()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("saving position %s: %w", pos.ID, err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("saving position %s: %d -> %s", pos.ID, idx, errStr)
	}

	return nil
}

// positionFromRow maps an active_position row to a position.
func positionFromRow(pair string, row map[string]any) (*position.Position, error) {
	id, ok := rowString(row, "id")
	if !ok {
		return nil, fmt.Errorf("missing id column")
	}

	directionStr, ok := rowString(row, "direction")
	if !ok {
		return nil, fmt.Errorf("missing direction column")
	}

	direction, err := shared.ParseDirection(directionStr)
	if err != nil {
		return nil, err
	}

	patternStr, ok := rowString(row, "pattern")
	if !ok {
		return nil, fmt.Errorf("missing pattern column")
	}

	pattern, err := shared.ParsePattern(patternStr)
	if err != nil {
		return nil, err
	}

	dayStr, ok := rowString(row, "day")
	if !ok {
		return nil, fmt.Errorf("missing day column")
	}

	day, err := shared.ParseWeekday(dayStr)
	if err != nil {
		return nil, err
	}

	entryPrice, _ := rowFloat(row, "entry_price")
	size, _ := rowFloat(row, "size")
	stopLoss, _ := rowFloat(row, "stop_loss")
	takeProfit, _ := rowFloat(row, "take_profit")
	entryTime, _ := rowFloat(row, "entry_time")

	pos := &position.Position{
		ID:         id,
		Pair:       pair,
		Direction:  direction,
		EntryPrice: entryPrice,
		Size:       size,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		EntryTime:  time.Unix(int64(entryTime), 0).UTC(),
		Pattern:    pattern,
		Day:        day,
	}

	return pos, nil
}

// ActivePosition fetches the open position of the provided pair, nil when
// there is none.
func (db *Database) ActivePosition(ctx context.Context, pair string) (*position.Position, error) {
	resp, err := db.client.QuerySingle(ctx, selectActivePositionSQL, pair)
	if err != nil {
		return nil, fmt.Errorf("fetching active position for %s: %w", pair, err)
	}

	results := resp.GetQueryResultsAssoc()
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return nil, nil
	}

	pos, err := positionFromRow(pair, results[0].Rows[0])
	if err != nil {
		db.cfg.Logger.Error().Msgf("malformed active position row: %s", spew.Sdump(results[0].Rows[0]))
		return nil, fmt.Errorf("parsing active position for %s: %w", pair, err)
	}

	return pos, nil
}

// UpdateStopLoss stores a stop loss update for the provided pair.
func (db *Database) UpdateStopLoss(ctx context.Context, pair string, stopLoss float64) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              updateStopLossSQL,
			PositionalParams: []any{stopLoss, pair},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("updating stop loss for %s: %w", pair, err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("updating stop loss for %s: %d -> %s", pair, idx, errStr)
	}

	return nil
}

// DeletePosition removes the open position of the provided pair.
func (db *Database) DeletePosition(ctx context.Context, pair string) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              deletePositionSQL,
			PositionalParams: []any{pair},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("deleting position for %s: %w", pair, err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("deleting position for %s: %d -> %s", pair, idx, errStr)
	}

	return nil
}

// RecordTrade stores the provided closed trade result.
func (db *Database) RecordTrade(ctx context.Context, result *position.TradeResult) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: recordTradeSQL,
			PositionalParams: []any{result.Pair, result.Direction.String(), result.EntryPrice,
				result.ExitPrice, result.Size, result.ProfitPercent, result.ProfitAmount,
				result.EntryTime.Unix(), result.ExitTime.Unix(), result.Pattern.String(),
				result.Day.String(), result.Reason.String()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("recording trade for %s: %w", result.Pair, err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("recording trade for %s: %d -> %s", result.Pair, idx, errStr)
	}

	return nil
}

// TradeCountSince counts the trades recorded after the provided time.
func (db *Database) TradeCountSince(ctx context.Context, since time.Time) (int, error) {
	resp, err := db.client.QuerySingle(ctx, tradeCountSinceSQL, since.Unix())
	if err != nil {
		return 0, fmt.Errorf("counting trades: %w", err)
	}

	results := resp.GetQueryResultsAssoc()
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return 0, nil
	}

	count, ok := rowFloat(results[0].Rows[0], "count")
	if !ok {
		return 0, fmt.Errorf("unexpected trade count row: %s", spew.Sdump(results[0].Rows[0]))
	}

	return int(count), nil
}

// ShouldRefreshModel reports whether enough trades closed since the provided
// time to warrant a model refresh.
func (db *Database) ShouldRefreshModel(ctx context.Context, since time.Time) (bool, error) {
	count, err := db.TradeCountSince(ctx, since)
	if err != nil {
		return false, err
	}

	return count >= modelRefreshTradeCount, nil
}

// RefreshModel recomputes the pattern statistics from the recent trade
// history window.
func (db *Database) RefreshModel(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -modelWindowDays)

	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              refreshModelDataSQL,
			PositionalParams: []any{now.Unix(), cutoff.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("refreshing model data: %w", err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("refreshing model data: %d -> %s", idx, errStr)
	}

	return nil
}

// SaveFundingRates stores the provided funding rate records.
func (db *Database) SaveFundingRates(ctx context.Context, rates []shared.FundingRate) error {
	if len(rates) == 0 {
		return nil
	}

	statements := make(rqlitehttp.SQLStatements, len(rates))
	for idx := range rates {
		statements[idx].SQL = saveFundingRateSQL
		statements[idx].PositionalParams = []any{rates[idx].Instrument,
			rates[idx].Time.Unix(), rates[idx].Rate, rates[idx].RealizedRate,
			rates[idx].Method}
	}

	resp, err := db.client.Execute(ctx, statements,
		&rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("saving funding rates: %w", err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("saving funding rates: %d -> %s", idx, errStr)
	}

	return nil
}

// fundingRateFromRow maps a funding_rate row to a funding rate record.
func fundingRateFromRow(row map[string]any) (shared.FundingRate, error) {
	symbol, ok := rowString(row, "symbol")
	if !ok {
		return shared.FundingRate{}, fmt.Errorf("missing symbol column")
	}

	fundingTime, ok := rowFloat(row, "funding_time")
	if !ok {
		return shared.FundingRate{}, fmt.Errorf("missing funding_time column")
	}

	rate, _ := rowFloat(row, "funding_rate")
	realized, _ := rowFloat(row, "realized_rate")
	method, _ := rowString(row, "method")

	record := shared.FundingRate{
		Instrument:   symbol,
		Rate:         rate,
		RealizedRate: realized,
		Method:       method,
		Time:         time.Unix(int64(fundingTime), 0).UTC(),
	}

	return record, nil
}

// FundingRates fetches funding rate records for the provided symbol newer
// than the provided time, newest first.
func (db *Database) FundingRates(ctx context.Context, symbol string, since time.Time) ([]shared.FundingRate, error) {
	resp, err := db.client.QuerySingle(ctx, selectFundingRatesSQL, symbol, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("fetching funding rates for %s: %w", symbol, err)
	}

	rates := []shared.FundingRate{}

	results := resp.GetQueryResultsAssoc()
	for idx := range results {
		for _, row := range results[idx].Rows {
			record, err := fundingRateFromRow(row)
			if err != nil {
				db.cfg.Logger.Error().Msgf("skipping malformed funding rate row: %v: %s",
					err, spew.Sdump(row))
				continue
			}

			rates = append(rates, record)
		}
	}

	return rates, nil
}
