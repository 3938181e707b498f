package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
)

// ErrNotFound is returned by the Get* lookups.
var ErrNotFound = errors.New("not found")

func scanTrade(s squirrel.RowScanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.RunID,
		&rec.Symbol,
		&rec.Side,
		&rec.Amount,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.StopLoss,
		&rec.TakeProfit,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPL,
		&rec.Reason,
	)
	return rec, err
}

func (j *SQLite) queryTrades(q squirrel.SelectBuilder) ([]TradeRecord, error) {
	rows, err := q.RunWith(j.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	rec, err := scanTrade(j.sb.Select(tradeColumns...).
		From("trades").
		Where(squirrel.Eq{"trade_id": tradeID}).
		RunWith(j.db).
		QueryRow())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesByRunID returns a run's trades in close order.
func (j *SQLite) ListTradesByRunID(runID string) ([]TradeRecord, error) {
	return j.queryTrades(j.sb.Select(tradeColumns...).
		From("trades").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("close_time ASC", "trade_id ASC"))
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(j.sb.Select(tradeColumns...).
		From("trades").
		Where(squirrel.GtOrEq{"close_time": start.UTC()}).
		Where(squirrel.Lt{"close_time": end.UTC()}).
		OrderBy("close_time ASC", "trade_id ASC"))
}

func scanRun(s squirrel.RowScanner) (BacktestRun, error) {
	var (
		r      BacktestRun
		config string
		notes  string
		rr, pf sql.NullFloat64
	)
	err := s.Scan(
		&r.RunID, &r.Created, &r.Strategy, &r.Symbol, &r.Timeframe, &r.Dataset, &config,
		&r.ShortWindow, &r.LongWindow, &r.StopLossPct, &r.TakeProfitPct, &r.PositionSizingPct,
		&r.Start, &r.End, &r.Candles,
		&r.Trades, &r.Wins, &r.Losses, &r.Breakeven, &r.Skipped,
		&r.StartBalance, &r.EndEquity, &r.NetPL, &r.ReturnPct, &r.WinRate,
		&r.AvgWin, &r.AvgLoss, &rr, &pf, &r.MaxDDPct,
		&r.OrgPath, &notes,
	)
	if err != nil {
		return BacktestRun{}, err
	}
	if config != "" {
		r.Config = []byte(config)
	}
	if notes != "" {
		r.Notes = strings.Split(notes, "\n")
	}
	r.RiskReward = ratioFrom(rr)
	r.ProfitFactor = ratioFrom(pf)
	return r, nil
}

// GetRun returns a single backtest run by ID.
func (j *SQLite) GetRun(runID string) (BacktestRun, error) {
	r, err := scanRun(j.sb.Select(runColumns...).
		From("backtest_runs").
		Where(squirrel.Eq{"run_id": runID}).
		RunWith(j.db).
		QueryRow())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BacktestRun{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return BacktestRun{}, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (j *SQLite) ListRuns(limit int) ([]BacktestRun, error) {
	q := j.sb.Select(runColumns...).
		From("backtest_runs").
		OrderBy("created DESC", "run_id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(j.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
