package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal appends trades and runs to two CSV files.
type CSVJournal struct {
	trades *csv.Writer
	runs   *csv.Writer
	tf, rf *os.File
}

var csvTradeHeader = []string{
	"trade_id", "run_id", "symbol", "side", "amount", "entry_price", "exit_price",
	"stop_loss", "take_profit", "open_time", "close_time", "realized_pl", "reason",
}

var csvRunHeader = []string{
	"run_id", "created", "strategy", "symbol", "timeframe", "dataset",
	"short_window", "long_window", "stop_loss_pct", "take_profit_pct", "position_sizing_pct",
	"start", "end", "candles", "trades", "wins", "losses", "breakeven", "skipped",
	"start_balance", "end_equity", "net_pl", "return_pct", "win_rate",
	"avg_win", "avg_loss", "risk_reward", "profit_factor", "max_dd_pct",
}

// NewCSV opens both files for appending, creating them as needed. Headers
// are written only to empty files.
func NewCSV(tradesPath, runsPath string) (*CSVJournal, error) {
	tf, tNew, err := openAppend(tradesPath)
	if err != nil {
		return nil, err
	}
	rf, rNew, err := openAppend(runsPath)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	j := &CSVJournal{trades: csv.NewWriter(tf), runs: csv.NewWriter(rf), tf: tf, rf: rf}
	if tNew {
		if err := j.write(j.trades, csvTradeHeader); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	if rNew {
		if err := j.write(j.runs, csvRunHeader); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	return j, nil
}

// openAppend reports whether the file was empty when opened.
func openAppend(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, false, err
	}
	return f, st.Size() == 0, nil
}

func (j *CSVJournal) write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.write(j.trades, []string{
		t.TradeID,
		t.RunID,
		t.Symbol,
		t.Side,
		f(t.Amount),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.StopLoss),
		f(t.TakeProfit),
		t.OpenTime.UTC().Format(time.RFC3339),
		t.CloseTime.UTC().Format(time.RFC3339),
		f(t.RealizedPL),
		t.Reason,
	})
}

func (j *CSVJournal) RecordRun(r BacktestRun) error {
	return j.write(j.runs, []string{
		r.RunID,
		r.Created.UTC().Format(time.RFC3339),
		r.Strategy,
		r.Symbol,
		r.Timeframe,
		r.Dataset,
		strconv.Itoa(r.ShortWindow),
		strconv.Itoa(r.LongWindow),
		f(r.StopLossPct),
		f(r.TakeProfitPct),
		f(r.PositionSizingPct),
		r.Start.UTC().Format(time.RFC3339),
		r.End.UTC().Format(time.RFC3339),
		strconv.Itoa(r.Candles),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		strconv.Itoa(r.Breakeven),
		strconv.Itoa(r.Skipped),
		f(r.StartBalance),
		f(r.EndEquity),
		f(r.NetPL),
		f(r.ReturnPct),
		f(r.WinRate),
		f(r.AvgWin),
		f(r.AvgLoss),
		fmtRatio(r.RiskReward),
		fmtRatio(r.ProfitFactor),
		f(r.MaxDDPct),
	})
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	j.runs.Flush()
	tErr := j.tf.Close()
	rErr := j.rf.Close()
	if err := j.trades.Error(); err != nil {
		return err
	}
	if err := j.runs.Error(); err != nil {
		return err
	}
	if tErr != nil {
		return tErr
	}
	return rErr
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
