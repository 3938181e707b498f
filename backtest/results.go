package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

func fmtRatio(x float64) string {
	if math.IsInf(x, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", x)
}

// PrintSummary writes a human readable report. The output depends only on
// the run's inputs, so two identical runs print identical bytes.
func PrintSummary(w io.Writer, r Result) {
	s := r.Stats

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	if r.Symbol != "" {
		fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	}
	if r.Timeframe != "" {
		fmt.Fprintf(w, "Timeframe:     %s\n", r.Timeframe)
	}
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", r.Dataset)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	if s.Candles > 0 {
		fmt.Fprintf(w, "Start:         %s\n", s.Start.UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", s.End.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Candles:       %d\n", s.Candles)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Position Size: %.2f%%\n", r.Config.PositionSizingPct*100)
	fmt.Fprintf(w, "Stop Loss:     %.2f%%\n", r.Config.StopLossPct*100)
	fmt.Fprintf(w, "Take Profit:   %.2f%%\n", r.Config.TakeProfitPct*100)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", s.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	if s.Breakeven > 0 {
		fmt.Fprintf(w, "Breakeven:     %d\n", s.Breakeven)
	}
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate)
	fmt.Fprintf(w, "Avg Win:       %.2f\n", s.AvgWin)
	fmt.Fprintf(w, "Avg Loss:      %.2f\n", s.AvgLoss)
	fmt.Fprintf(w, "Risk/Reward:   %s\n", fmtRatio(s.RiskReward))
	if s.SkippedSignals > 0 {
		fmt.Fprintf(w, "Skipped:       %d\n", s.SkippedSignals)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %.2f\n", s.InitialBalance)
	fmt.Fprintf(w, "Final Equity:  %.2f\n", s.FinalEquity)
	fmt.Fprintf(w, "Quote Balance: %.2f\n", s.Balances.Quote)
	fmt.Fprintf(w, "Base Balance:  %.8f\n", s.Balances.Base)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", s.NetProfit)
	fmt.Fprintf(w, "Return:        %.2f%%\n", s.ReturnPct)

	if s.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %s\n", fmtRatio(s.ProfitFactor))
	}
	if s.MaxDrawdownPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", s.MaxDrawdownPct)
	}

	fmt.Fprintln(w)
}

var tradeHeader = []string{
	"id", "side", "status", "entry_time", "entry_price", "amount",
	"stop_loss", "take_profit", "exit_time", "exit_price", "profit",
}

func ff(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }

// WriteTradesCSV writes the ledger as CSV, one row per closed position.
func WriteTradesCSV(w io.Writer, r Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, p := range r.Positions {
		row := []string{
			strconv.Itoa(p.ID),
			p.Side.String(),
			p.Status.String(),
			p.EntryTime.UTC().Format(time.RFC3339Nano),
			ff(p.EntryPrice),
			ff(p.Amount),
			ff(p.StopLoss),
			ff(p.TakeProfit),
			p.ExitTime.UTC().Format(time.RFC3339Nano),
			ff(p.ExitPrice),
			ff(p.Profit),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var equityHeader = []string{"time", "position_id", "quote", "base", "equity"}

// WriteEquityCSV writes the equity curve, one row per closed position.
func WriteEquityCSV(w io.Writer, r Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(equityHeader); err != nil {
		return err
	}
	for _, pt := range r.Equity {
		row := []string{
			pt.Time.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(pt.PosID),
			ff(pt.Balances.Quote),
			ff(pt.Balances.Base),
			ff(pt.Equity),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
