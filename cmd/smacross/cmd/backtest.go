package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/smacross/backtest"
	"github.com/rustyeddy/smacross/config"
	"github.com/rustyeddy/smacross/internal/id"
	"github.com/rustyeddy/smacross/journal"
	"github.com/rustyeddy/smacross/market/data"
	"github.com/rustyeddy/smacross/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the SMA crossover over a candle file",
	Long: `Backtest replays a candle CSV (timestamp,open,high,low,close,volume,
optionally .xz compressed) through the strategy and prints a summary.

Flags override the config file only when given.

Supported strategies:
  - sma-cross: fast/slow SMA crossover with fixed SL/TP exits
  - noop: never trades (baseline)

Example:
  smacross backtest --data historical_data_BTCUSDT_1m_20250101_to_20250107.csv --short 7 --long 25`,
	RunE: runBacktest,
}

var (
	btDataPath  string
	btSymbol    string
	btTimeframe string
	btStrategy  string
	btShort     int
	btLong      int
	btSL        float64
	btTP        float64
	btBalance   float64
	btBase      float64
	btSize      float64
	btJournal   string
	btDBPath    string
	btOrgPath   string
	btTradesOut string
	btEquityOut string
	btNotes     []string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringVarP(&btDataPath, "data", "d", "", "candle CSV path (default data.path from config)")
	f.StringVar(&btSymbol, "symbol", "BTC/USDT", "symbol label for the report")
	f.StringVar(&btTimeframe, "tf", "1m", "timeframe label for the report")
	f.StringVarP(&btStrategy, "strategy", "s", "sma-cross", "strategy name (sma-cross, noop)")
	f.IntVar(&btShort, "short", 7, "fast SMA window")
	f.IntVar(&btLong, "long", 25, "slow SMA window")
	f.Float64Var(&btSL, "sl", 0.003, "stop loss as a fraction of entry (0.003 = 0.3%)")
	f.Float64Var(&btTP, "tp", 0.005, "take profit as a fraction of entry (0.005 = 0.5%)")
	f.Float64VarP(&btBalance, "balance", "b", 10_000, "starting quote balance")
	f.Float64Var(&btBase, "base", 0, "starting base inventory (lets shorts open)")
	f.Float64Var(&btSize, "size", 0.01, "position sizing fraction of the balance")
	f.StringVarP(&btJournal, "journal", "j", "sqlite", "journal type (sqlite, csv, none)")
	f.StringVar(&btDBPath, "db", "./smacross.db", "path to SQLite journal DB")
	f.StringVar(&btOrgPath, "org", "", "write an Org-mode run report to this path")
	f.StringVar(&btTradesOut, "trades-out", "", "write the trade ledger as CSV to this path")
	f.StringVar(&btEquityOut, "equity-out", "", "write the equity curve as CSV to this path")
	f.StringArrayVar(&btNotes, "note", nil, "observation to attach to the run report (repeatable)")
}

// applyBacktestFlags copies explicitly set flags over the loaded config.
func applyBacktestFlags(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed

	if set("data") {
		cfg.Data.Path = btDataPath
	}
	if set("symbol") {
		cfg.Data.Symbol = btSymbol
	}
	if set("tf") {
		cfg.Data.Timeframe = btTimeframe
	}
	if set("strategy") {
		cfg.Strategy.Name = btStrategy
	}
	if set("short") {
		cfg.Strategy.ShortWindow = btShort
	}
	if set("long") {
		cfg.Strategy.LongWindow = btLong
	}
	if set("sl") {
		cfg.Strategy.StopLossPct = btSL
	}
	if set("tp") {
		cfg.Strategy.TakeProfitPct = btTP
	}
	if set("balance") {
		cfg.Account.InitialBalance = btBalance
	}
	if set("base") {
		cfg.Account.InitialBase = btBase
	}
	if set("size") {
		cfg.Account.PositionSizingPct = btSize
	}
	if set("journal") {
		cfg.Journal.Type = btJournal
	}
	if set("db") {
		cfg.Journal.DBPath = btDBPath
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Data.Path == "" {
		return fmt.Errorf("no candle file: pass --data or set data.path")
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	strat, err := strategies.ByName(cfg.Strategy.Name, cfg.Params())
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	cs, err := data.LoadCSV(cfg.Data.Path, cfg.Data.Symbol, cfg.Data.Timeframe)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	log.Info("candles loaded",
		zap.String("path", cfg.Data.Path),
		zap.Int("count", cs.Len()),
		zap.Time("start", cs.Start()),
		zap.Time("end", cs.End()),
	)

	runner := backtest.Runner{
		Strategy: strat,
		Config:   cfg.Engine(),
		Log:      log,
	}
	res, err := runner.RunCandleSet(cs)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	out := cmd.OutOrStdout()
	backtest.PrintSummary(out, res)

	runID := id.New()
	cfgYAML, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	run := backtest.JournalRun(runID, time.Now().UTC(), res, cfg.Params(), cfgYAML)
	run.Notes = btNotes

	run.OrgPath = btOrgPath
	if run.OrgPath == "" && cfg.Journal.OrgDir != "" {
		run.OrgPath = filepath.Join(cfg.Journal.OrgDir, runID+".org")
	}
	if run.OrgPath != "" {
		if err := os.MkdirAll(filepath.Dir(run.OrgPath), 0o755); err != nil {
			return err
		}
		if err := run.WriteBacktestOrg(); err != nil {
			return fmt.Errorf("org report: %w", err)
		}
		fmt.Fprintf(out, "Org report:    %s\n", run.OrgPath)
	}

	if btTradesOut != "" {
		if err := writeResultFile(btTradesOut, res, backtest.WriteTradesCSV); err != nil {
			return fmt.Errorf("trades csv: %w", err)
		}
		fmt.Fprintf(out, "Trades CSV:    %s\n", btTradesOut)
	}
	if btEquityOut != "" {
		if err := writeResultFile(btEquityOut, res, backtest.WriteEquityCSV); err != nil {
			return fmt.Errorf("equity csv: %w", err)
		}
		fmt.Fprintf(out, "Equity CSV:    %s\n", btEquityOut)
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	if err := journal.Record(j, run, backtest.JournalTrades(runID, res)); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if cfg.Journal.Type != "none" {
		fmt.Fprintf(out, "Run ID:        %s (%s journal)\n", runID, cfg.Journal.Type)
	}
	return nil
}

func writeResultFile(path string, res backtest.Result, write func(io.Writer, backtest.Result) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.RunsFile)
	case "none", "":
		return journal.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}
