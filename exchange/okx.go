package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blueeye2015/new-okx/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// defaultBaseURL is the OKX REST API base url.
	defaultBaseURL = "https://www.okx.com"

	// timestampLayout is the iso timestamp format OKX signs requests with.
	timestampLayout = "2006-01-02T15:04:05.000Z"

	// tickerAttempts is the number of attempts made fetching a ticker price.
	tickerAttempts = 3
	// tickerRetryDelay is the initial delay between ticker price attempts,
	// doubled on every retry.
	tickerRetryDelay = time.Second * 2

	// candleBar is the candle granularity used for pattern analysis.
	candleBar = "1H"

	// tdModeCross places orders with cross margin.
	tdModeCross = "cross"
	// ordTypeMarket places orders at the prevailing market price.
	ordTypeMarket = "market"
)

// OKXConfig represents the configuration for the OKX client.
type OKXConfig struct {
	// BaseURL is the OKX REST API base url.
	BaseURL string
	// APIKey is the OKX API key.
	APIKey string
	// SecretKey is the OKX API secret used to sign private requests.
	SecretKey string
	// Passphrase is the OKX API passphrase.
	Passphrase string
	// SimulatedTrading routes requests to the demo trading environment.
	SimulatedTrading bool
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// OKXClient represents the OKX exchange API client.
type OKXClient struct {
	cfg   *OKXConfig
	httpc http.Client
}

// Ensure the OKXClient implements the ExchangeGateway interface.
var _ shared.ExchangeGateway = (*OKXClient)(nil)

// NewOKXClient instantiates a new OKX client.
func NewOKXClient(cfg *OKXConfig) *OKXClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	return &OKXClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 10},
	}
}

// sign generates the base64 encoded hmac sha256 signature OKX expects over
// the concatenated timestamp, method, path and body of a request.
func (c *OKXClient) sign(timestamp string, method string, path string, body string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(timestamp + method + path + body))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// do executes a request against the OKX api and returns the data payload of
// the response. Private requests carry the signed access headers.
func (c *OKXClient) do(ctx context.Context, method string, path string, body string, private bool) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, strings.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating %s %s request: %w", method, path, err)
	}

	req.Header.Set("Content-Type", "application/json")

	if private {
		timestamp := time.Now().UTC().Format(timestampLayout)
		req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
		req.Header.Set("OK-ACCESS-SIGN", c.sign(timestamp, method, path, body))
		req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)
	}
	if c.cfg.SimulatedTrading {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("executing %s %s: %w", method, path, err)
	}

	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading response body: %w", err)
	}

	result := gjson.ParseBytes(payload)
	if code := result.Get("code").String(); code != "0" {
		return gjson.Result{}, fmt.Errorf("%s %s failed with code %s: %s",
			method, path, code, result.Get("msg").String())
	}

	return result.Get("data"), nil
}

// TickerPrice fetches the latest traded price for the provided instrument,
// retrying transient failures with exponential backoff.
func (c *OKXClient) TickerPrice(ctx context.Context, instrument string) (float64, error) {
	path := fmt.Sprintf("/api/v5/market/ticker?instId=%s", instrument)

	var lastErr error
	delay := tickerRetryDelay

	for attempt := 0; attempt < tickerAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		data, err := c.do(ctx, http.MethodGet, path, "", false)
		if err != nil {
			lastErr = err
			c.cfg.Logger.Error().Msgf("fetching ticker price for %s: %v", instrument, err)
			continue
		}

		price := data.Get("0.last").Float()
		if price <= 0 {
			lastErr = fmt.Errorf("no last price for %s", instrument)
			continue
		}

		return price, nil
	}

	return 0, fmt.Errorf("fetching ticker price for %s after %d attempts: %w",
		instrument, tickerAttempts, lastErr)
}

// ParseCandleCloses parses closing prices from the provided candle rows. The
// api returns candles newest first, the closes are reversed into ascending
// time order.
func (c *OKXClient) ParseCandleCloses(rows []gjson.Result) ([]float64, error) {
	closes := make([]float64, 0, len(rows))

	for idx := len(rows) - 1; idx >= 0; idx-- {
		row := rows[idx].Array()
		if len(row) < 5 {
			return nil, fmt.Errorf("malformed candle row: %s", rows[idx].Raw)
		}

		closes = append(closes, row[4].Float())
	}

	return closes, nil
}

// CandleCloses fetches hourly closing prices covering the provided number of
// hours for the provided instrument, ordered oldest first.
func (c *OKXClient) CandleCloses(ctx context.Context, instrument string, hours int) ([]float64, error) {
	path := fmt.Sprintf("/api/v5/market/candles?instId=%s&bar=%s&limit=%d", instrument, candleBar, hours)

	data, err := c.do(ctx, http.MethodGet, path, "", false)
	if err != nil {
		return nil, fmt.Errorf("fetching candles for %s: %w", instrument, err)
	}

	closes, err := c.ParseCandleCloses(data.Array())
	if err != nil {
		return nil, fmt.Errorf("parsing candles for %s: %w", instrument, err)
	}

	return closes, nil
}

// Balance fetches the available balance of the provided currency.
func (c *OKXClient) Balance(ctx context.Context, currency string) (float64, error) {
	path := fmt.Sprintf("/api/v5/account/balance?ccy=%s", currency)

	data, err := c.do(ctx, http.MethodGet, path, "", true)
	if err != nil {
		return 0, fmt.Errorf("fetching %s balance: %w", currency, err)
	}

	details := data.Get("0.details").Array()
	for idx := range details {
		if details[idx].Get("ccy").String() == currency {
			return details[idx].Get("availBal").Float(), nil
		}
	}

	return 0, nil
}

// marketOrder represents the payload of a market order request.
type marketOrder struct {
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	Side    string `json:"side"`
	OrdType string `json:"ordType"`
	Size    string `json:"sz"`
}

// PlaceMarketOrder submits a market order for the provided instrument and
// returns the exchange order id.
func (c *OKXClient) PlaceMarketOrder(ctx context.Context, instrument string, side shared.OrderSide, size float64) (string, error) {
	order := marketOrder{
		InstID:  instrument,
		TdMode:  tdModeCross,
		Side:    side.String(),
		OrdType: ordTypeMarket,
		Size:    strconv.FormatFloat(size, 'f', -1, 64),
	}

	body, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("marshalling %s order for %s: %w", side, instrument, err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v5/trade/order", string(body), true)
	if err != nil {
		return "", fmt.Errorf("placing %s order for %s: %w", side, instrument, err)
	}

	// Order level failures ride in the data rows with their own codes.
	if sCode := data.Get("0.sCode").String(); sCode != "" && sCode != "0" {
		return "", fmt.Errorf("placing %s order for %s failed with code %s: %s",
			side, instrument, sCode, data.Get("0.sMsg").String())
	}

	return data.Get("0.ordId").String(), nil
}

// ParseFundingRates parses funding rate records from the provided rows.
func (c *OKXClient) ParseFundingRates(rows []gjson.Result) []shared.FundingRate {
	rates := make([]shared.FundingRate, 0, len(rows))

	for idx := range rows {
		rates = append(rates, shared.FundingRate{
			Instrument:   rows[idx].Get("instId").String(),
			Rate:         rows[idx].Get("fundingRate").Float(),
			RealizedRate: rows[idx].Get("realizedRate").Float(),
			Method:       rows[idx].Get("method").String(),
			Time:         time.UnixMilli(rows[idx].Get("fundingTime").Int()).UTC(),
		})
	}

	return rates
}

// FundingRateHistory fetches recent funding rate records for the provided
// instrument, ordered newest first.
func (c *OKXClient) FundingRateHistory(ctx context.Context, instrument string, limit int) ([]shared.FundingRate, error) {
	path := fmt.Sprintf("/api/v5/public/funding-rate-history?instId=%s&limit=%d", instrument, limit)

	data, err := c.do(ctx, http.MethodGet, path, "", false)
	if err != nil {
		return nil, fmt.Errorf("fetching funding rate history for %s: %w", instrument, err)
	}

	return c.ParseFundingRates(data.Array()), nil
}
