package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/blueeye2015/new-okx/database"
	"github.com/blueeye2015/new-okx/exchange"
	"github.com/blueeye2015/new-okx/service"
	"github.com/blueeye2015/new-okx/shared"
	"github.com/rs/zerolog/log"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Msgf("loading config: %v", err)
		return
	}

	risk, err := shared.ParseRiskLevel(cfg.RiskLevel)
	if err != nil {
		log.Error().Msgf("parsing risk level: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	okxLogger := log.With().Str("component", "okx").Logger()
	okx := exchange.NewOKXClient(&exchange.OKXConfig{
		APIKey:           cfg.OKXAPIKey,
		SecretKey:        cfg.OKXSecretKey,
		Passphrase:       cfg.OKXPassphrase,
		SimulatedTrading: cfg.SimulatedTrading,
		Logger:           okxLogger,
	})

	dbLogger := log.With().Str("component", "database").Logger()
	db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DatabaseEndpoint,
		User:     cfg.DatabaseUser,
		Pass:     cfg.DatabasePass,
		Logger:   &dbLogger,
	})
	if err != nil {
		log.Error().Msgf("creating database: %v", err)
		return
	}

	notifyLogger := log.With().Str("component", "notifications").Logger()
	trader, err := service.NewTrader(ctx, &service.TraderConfig{
		Pair:      cfg.Pair,
		RiskLevel: risk,
		Exchange:  okx,
		Store:     db,
		Notify: func(message string) {
			notifyLogger.Info().Msg(message)
		},
		Cancel: cancel,
	})
	if err != nil {
		log.Error().Msgf("creating trader service: %v", err)
		return
	}

	streamLogger := log.With().Str("component", "tickerstream").Logger()
	stream := exchange.NewTickerStream(&exchange.StreamConfig{
		Instrument:      cfg.Pair,
		SendPriceUpdate: trader.SendPriceUpdate,
		Logger:          streamLogger,
	})

	go handleTermination(ctx, cancel)
	go stream.Run(ctx)
	trader.Run(ctx)
}
