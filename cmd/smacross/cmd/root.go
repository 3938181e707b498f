package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/smacross/config"
	"github.com/rustyeddy/smacross/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "smacross",
	Short: "Backtest a simple moving average crossover on crypto candles",
	Long: `smacross replays historical OHLCV candles through a fast/slow SMA
crossover strategy with fixed stop-loss and take-profit exits.

It provides tools for:
  - Downloading Binance klines (data.binance.vision archives or the REST API)
  - Running deterministic backtests against a candle CSV
  - Journaling trades and run summaries to SQLite or CSV
  - Rendering Org-mode run reports

Complete documentation is available at https://github.com/rustyeddy/smacross`,
	SilenceUsage: true,
}

var (
	cfgFile    string
	logLevel   string
	logConsole bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "human readable log lines instead of JSON")
}

// loadConfig returns the file named by --config, or the defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	log, err := logger.New(logLevel, logConsole)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}
