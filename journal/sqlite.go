package journal

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Journal backed by a sqlite3 file.
type SQLite struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

var tradeColumns = []string{
	"trade_id", "run_id", "symbol", "side", "amount",
	"entry_price", "exit_price", "stop_loss", "take_profit",
	"open_time", "close_time", "realized_pl", "reason",
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.sb.Insert("trades").
		Columns(tradeColumns...).
		Values(
			t.TradeID, t.RunID, t.Symbol, t.Side, t.Amount,
			t.EntryPrice, t.ExitPrice, t.StopLoss, t.TakeProfit,
			t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPL, t.Reason,
		).
		RunWith(j.db).
		Exec()
	return err
}

var runColumns = []string{
	"run_id", "created", "strategy", "symbol", "timeframe", "dataset", "config",
	"short_window", "long_window", "stop_loss_pct", "take_profit_pct", "position_sizing_pct",
	"start_time", "end_time", "candles",
	"trades", "wins", "losses", "breakeven", "skipped",
	"start_balance", "end_equity", "net_pl", "return_pct", "win_rate",
	"avg_win", "avg_loss", "risk_reward", "profit_factor", "max_dd_pct",
	"org_path", "notes",
}

// ratioValue stores +Inf as NULL.
func ratioValue(x float64) sql.NullFloat64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}

func ratioFrom(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.Inf(1)
	}
	return n.Float64
}

func (j *SQLite) RecordRun(r BacktestRun) error {
	_, err := j.sb.Insert("backtest_runs").
		Columns(runColumns...).
		Values(
			r.RunID, r.Created.UTC(), r.Strategy, r.Symbol, r.Timeframe, r.Dataset, string(r.Config),
			r.ShortWindow, r.LongWindow, r.StopLossPct, r.TakeProfitPct, r.PositionSizingPct,
			r.Start.UTC(), r.End.UTC(), r.Candles,
			r.Trades, r.Wins, r.Losses, r.Breakeven, r.Skipped,
			r.StartBalance, r.EndEquity, r.NetPL, r.ReturnPct, r.WinRate,
			r.AvgWin, r.AvgLoss, ratioValue(r.RiskReward), ratioValue(r.ProfitFactor), r.MaxDDPct,
			r.OrgPath, strings.Join(r.Notes, "\n"),
		).
		RunWith(j.db).
		Exec()
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
