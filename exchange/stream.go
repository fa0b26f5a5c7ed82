package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/blueeye2015/new-okx/shared"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// defaultStreamURL is the OKX public websocket endpoint.
	defaultStreamURL = "wss://ws.okx.com:8443/ws/v5/public"

	// tickersChannel is the websocket channel streaming ticker updates.
	tickersChannel = "tickers"

	// readTimeout bounds how long the stream waits for a message before the
	// connection is considered dead.
	readTimeout = time.Second * 60
	// writeTimeout bounds every websocket write.
	writeTimeout = time.Second * 10
	// pingInterval is the keepalive cadence, OKX drops connections idle for
	// thirty seconds.
	pingInterval = time.Second * 20

	// reconnectDelay is the initial delay before redialing a dropped stream,
	// doubled per attempt up to maxReconnectDelay.
	reconnectDelay    = time.Second * 2
	maxReconnectDelay = time.Minute
)

// StreamConfig represents the ticker stream configuration.
type StreamConfig struct {
	// URL is the websocket endpoint to stream from.
	URL string
	// Instrument is the instrument pair to stream tickers for.
	Instrument string
	// SendPriceUpdate relays the provided price update for processing.
	SendPriceUpdate func(update shared.PriceUpdate)
	// Logger represents the application logger.
	Logger zerolog.Logger
}

// TickerStream streams live ticker prices over a websocket connection.
type TickerStream struct {
	cfg *StreamConfig
}

// NewTickerStream initializes a new ticker stream.
func NewTickerStream(cfg *StreamConfig) *TickerStream {
	if cfg.URL == "" {
		cfg.URL = defaultStreamURL
	}

	return &TickerStream{
		cfg: cfg,
	}
}

// subscribeArg identifies a websocket channel subscription.
type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// subscribeRequest represents a websocket subscription request.
type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

// subscribe subscribes the connection to the ticker channel of the
// configured instrument.
func (s *TickerStream) subscribe(conn *websocket.Conn) error {
	req := subscribeRequest{
		Op: "subscribe",
		Args: []subscribeArg{
			{Channel: tickersChannel, InstID: s.cfg.Instrument},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribing to %s tickers: %w", s.cfg.Instrument, err)
	}

	return nil
}

// keepalive pings the connection on an interval to keep it open.
func (s *TickerStream) keepalive(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// handleMessage processes the provided websocket message, relaying any
// ticker updates it carries.
func (s *TickerStream) handleMessage(payload []byte) {
	if string(payload) == "pong" {
		return
	}

	msg := gjson.ParseBytes(payload)

	if event := msg.Get("event").String(); event != "" {
		if event == "error" {
			s.cfg.Logger.Error().Msgf("ticker stream error: %s", msg.Get("msg").String())
		}
		return
	}

	if msg.Get("arg.channel").String() != tickersChannel {
		return
	}

	instrument := msg.Get("arg.instId").String()
	data := msg.Get("data").Array()

	for idx := range data {
		last := data[idx].Get("last").Float()
		if last <= 0 {
			continue
		}

		update := shared.PriceUpdate{
			Instrument: instrument,
			Price:      last,
			Time:       time.UnixMilli(data[idx].Get("ts").Int()).UTC(),
		}

		s.cfg.SendPriceUpdate(update)
	}
}

// stream dials the websocket endpoint and relays ticker updates until the
// connection drops or the context is cancelled.
func (s *TickerStream) stream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.cfg.URL, err)
	}

	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		return err
	}

	s.cfg.Logger.Info().Msgf("streaming %s tickers from %s", s.cfg.Instrument, s.cfg.URL)

	done := make(chan struct{})
	defer close(done)

	// Force the blocked read below to return once the context is done.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go s.keepalive(ctx, conn, done)

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading ticker message: %w", err)
		}

		s.handleMessage(payload)
	}
}

// Run manages the lifecycle of the ticker stream, redialing dropped
// connections with capped backoff until the context is cancelled.
func (s *TickerStream) Run(ctx context.Context) {
	delay := reconnectDelay

	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		err := s.stream(ctx)
		if err != nil && ctx.Err() == nil {
			s.cfg.Logger.Error().Msgf("ticker stream disconnected: %v", err)
		}

		// A connection that held for a while resets the backoff.
		if time.Since(start) > maxReconnectDelay {
			delay = reconnectDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
		}
	}
}
