package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/smacross/sim"
	"github.com/rustyeddy/smacross/strategies"
)

// Config represents the complete backtest configuration
type Config struct {
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Account  AccountConfig  `json:"account" yaml:"account"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// StrategyConfig contains the crossover and exit parameters
type StrategyConfig struct {
	Name          string  `json:"name" yaml:"name" validate:"required,oneof=sma-cross noop" jsonschema:"title=Name,enum=sma-cross,enum=noop,default=sma-cross"`
	ShortWindow   int     `json:"short_window" yaml:"short_window" validate:"gt=0,ltfield=LongWindow" jsonschema:"title=Short Window,description=Candles in the fast SMA,minimum=1,default=7"`
	LongWindow    int     `json:"long_window" yaml:"long_window" validate:"gt=0" jsonschema:"title=Long Window,description=Candles in the slow SMA,minimum=2,default=25"`
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct" validate:"gt=0,lt=1" jsonschema:"title=Stop Loss,description=Fraction of entry price (0.003 = 0.3%),exclusiveMinimum=0,exclusiveMaximum=1,default=0.003"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct" validate:"gt=0,lt=1" jsonschema:"title=Take Profit,description=Fraction of entry price (0.005 = 0.5%),exclusiveMinimum=0,exclusiveMaximum=1,default=0.005"`
}

// AccountConfig contains the starting balances and sizing
type AccountConfig struct {
	Quote             string  `json:"quote,omitempty" yaml:"quote,omitempty" jsonschema:"title=Quote Currency,default=USDT"`
	InitialBalance    float64 `json:"initial_balance" yaml:"initial_balance" validate:"gte=0" jsonschema:"title=Initial Balance,description=Starting quote balance,minimum=0,default=10000"`
	InitialBase       float64 `json:"initial_base,omitempty" yaml:"initial_base,omitempty" validate:"gte=0" jsonschema:"title=Initial Base,description=Starting base inventory; shorts sell from it,minimum=0"`
	PositionSizingPct float64 `json:"position_sizing_pct" yaml:"position_sizing_pct" validate:"gt=0,lte=1" jsonschema:"title=Position Size,description=Fraction of the balance committed per entry,exclusiveMinimum=0,maximum=1,default=0.01"`
}

// DataConfig describes where candles come from
type DataConfig struct {
	Symbol    string `json:"symbol" yaml:"symbol" validate:"required" jsonschema:"title=Symbol,default=BTC/USDT"`
	Timeframe string `json:"timeframe" yaml:"timeframe" validate:"required,oneof=1s 1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d 3d 1w" jsonschema:"title=Timeframe,default=1m"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty" jsonschema:"title=Candle File,description=CSV (optionally .xz) with timestamp/open/high/low/close/volume"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty" validate:"omitempty,oneof=vision api" jsonschema:"title=Download Source,enum=vision,enum=api,default=vision"`
	CacheDir  string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty" jsonschema:"title=Archive Cache Directory"`
	Workers   int    `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0" jsonschema:"title=Download Workers,minimum=0,default=4"`
	Delay     string `json:"delay,omitempty" yaml:"delay,omitempty" jsonschema:"title=Request Delay,description=Polite delay between requests e.g. 500ms,default=500ms"`
}

// ParseDelay converts the delay string to time.Duration
func (d DataConfig) ParseDelay() (time.Duration, error) {
	if d.Delay == "" {
		return 0, nil
	}
	return time.ParseDuration(d.Delay)
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type" validate:"oneof=none csv sqlite" jsonschema:"title=Journal Type,enum=none,enum=csv,enum=sqlite,default=sqlite"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty" jsonschema:"title=SQLite Path"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty" jsonschema:"title=Trades CSV"`
	RunsFile   string `json:"runs_file,omitempty" yaml:"runs_file,omitempty" jsonschema:"title=Runs CSV"`
	OrgDir     string `json:"org_dir,omitempty" yaml:"org_dir,omitempty" jsonschema:"title=Org Report Directory"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Missing keys keep their defaults.
	cfg := Default()

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration as YAML (.yaml/.yml) or JSON
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// YAML returns the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

var validate = validator.New()

// Validate checks struct tags, then the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Data.ParseDelay(); err != nil {
		return fmt.Errorf("data.delay: %w", err)
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.RunsFile == "" {
			return fmt.Errorf("journal trades_file and runs_file required for CSV type")
		}
	}
	return nil
}

// Default returns a configuration with the classic 7/25 crossover on
// BTC/USDT one minute candles.
func Default() *Config {
	return &Config{
		Strategy: StrategyConfig{
			Name:          "sma-cross",
			ShortWindow:   7,
			LongWindow:    25,
			StopLossPct:   0.003,
			TakeProfitPct: 0.005,
		},
		Account: AccountConfig{
			Quote:             "USDT",
			InitialBalance:    10000,
			PositionSizingPct: 0.01,
		},
		Data: DataConfig{
			Symbol:    "BTC/USDT",
			Timeframe: "1m",
			Source:    "vision",
			CacheDir:  "./data/cache",
			Workers:   4,
			Delay:     "500ms",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./smacross.db",
		},
	}
}

// Engine returns the simulation settings.
func (c *Config) Engine() sim.Config {
	return sim.Config{
		InitialBalance:    c.Account.InitialBalance,
		InitialBase:       c.Account.InitialBase,
		PositionSizingPct: c.Account.PositionSizingPct,
		StopLossPct:       c.Strategy.StopLossPct,
		TakeProfitPct:     c.Strategy.TakeProfitPct,
	}
}

// Params returns the strategy parameters.
func (c *Config) Params() strategies.Params {
	return strategies.Params{
		ShortWindow: c.Strategy.ShortWindow,
		LongWindow:  c.Strategy.LongWindow,
	}
}

// Schema returns the JSON schema of the configuration file.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(&Config{})
	s.Title = "smacross-config"
	s.Description = "Configuration for the smacross backtester"
	return s
}
