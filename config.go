package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/blueeye2015/new-okx/shared"
	"github.com/joho/godotenv"
)

const (
	// defaultPair is the traded pair used when none is configured.
	defaultPair = "BTC-USDT"

	// defaultRiskLevel is the risk level used when none is configured.
	defaultRiskLevel = "medium"

	// defaultDatabaseEndpoint is the database endpoint used when none is
	// configured.
	defaultDatabaseEndpoint = "http://localhost:4001"
)

// Config is the configuration struct for the service.
type Config struct {
	// Pair is the traded pair, of the form BASE-QUOTE.
	Pair string
	// RiskLevel is the trading risk level (low, medium or high).
	RiskLevel string
	// DatabaseEndpoint is the rqlite database endpoint.
	DatabaseEndpoint string
	// DatabaseUser is the rqlite database user.
	DatabaseUser string
	// DatabasePass is the rqlite database pass.
	DatabasePass string
	// OKXAPIKey is the OKX API key.
	OKXAPIKey string
	// OKXSecretKey is the OKX API secret key.
	OKXSecretKey string
	// OKXPassphrase is the OKX API passphrase.
	OKXPassphrase string
	// SimulatedTrading is the simulated trading flag.
	SimulatedTrading bool

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.Pair == "" {
		errs = errors.Join(errs, fmt.Errorf("pair cannot be an empty string"))
	}
	if _, err := shared.ParseRiskLevel(cfg.RiskLevel); err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.DatabaseEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.OKXAPIKey == "" {
		errs = errors.Join(errs, fmt.Errorf("okx api key cannot be an empty string"))
	}
	if cfg.OKXSecretKey == "" {
		errs = errors.Join(errs, fmt.Errorf("okx secret key cannot be an empty string"))
	}
	if cfg.OKXPassphrase == "" {
		errs = errors.Join(errs, fmt.Errorf("okx passphrase cannot be an empty string"))
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	err = cfg.registerFlag("pair", &cfg.Pair, "the traded pair")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("risklevel", &cfg.RiskLevel, "the trading risk level")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbendpoint", &cfg.DatabaseEndpoint, "the rqlite database endpoint")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbuser", &cfg.DatabaseUser, "the rqlite database user")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbpass", &cfg.DatabasePass, "the rqlite database pass")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("okxapikey", &cfg.OKXAPIKey, "the OKX api key")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("okxsecretkey", &cfg.OKXSecretKey, "the OKX api secret key")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("okxpassphrase", &cfg.OKXPassphrase, "the OKX api passphrase")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("simulatedtrading", &cfg.SimulatedTrading, "the simulated trading flag")
	if err != nil {
		return err
	}

	// Parse command-line flags.
	flag.Parse()

	if cfg.Pair == "" {
		cfg.Pair = defaultPair
	}
	if cfg.RiskLevel == "" {
		cfg.RiskLevel = defaultRiskLevel
	}
	if cfg.DatabaseEndpoint == "" {
		cfg.DatabaseEndpoint = defaultDatabaseEndpoint
	}

	return cfg.Validate()
}
