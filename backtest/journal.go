package backtest

import (
	"time"

	"github.com/rustyeddy/smacross/journal"
	"github.com/rustyeddy/smacross/strategies"
)

// JournalRun flattens a result into the journal's run row. config is the
// effective configuration, stored verbatim.
func JournalRun(runID string, created time.Time, r Result, p strategies.Params, config []byte) journal.BacktestRun {
	s := r.Stats
	return journal.BacktestRun{
		RunID:     runID,
		Created:   created,
		Strategy:  r.Strategy,
		Symbol:    r.Symbol,
		Timeframe: r.Timeframe,
		Dataset:   r.Dataset,
		Config:    config,

		ShortWindow:       p.ShortWindow,
		LongWindow:        p.LongWindow,
		StopLossPct:       r.Config.StopLossPct,
		TakeProfitPct:     r.Config.TakeProfitPct,
		PositionSizingPct: r.Config.PositionSizingPct,

		Start:   s.Start,
		End:     s.End,
		Candles: s.Candles,

		Trades:    s.Trades,
		Wins:      s.Wins,
		Losses:    s.Losses,
		Breakeven: s.Breakeven,
		Skipped:   s.SkippedSignals,

		StartBalance: s.InitialBalance,
		EndEquity:    s.FinalEquity,
		NetPL:        s.NetProfit,
		ReturnPct:    s.ReturnPct,
		WinRate:      s.WinRate,
		AvgWin:       s.AvgWin,
		AvgLoss:      s.AvgLoss,
		RiskReward:   s.RiskReward,
		ProfitFactor: s.ProfitFactor,
		MaxDDPct:     s.MaxDrawdownPct,
	}
}

// JournalTrades converts the ledger, in close order.
func JournalTrades(runID string, r Result) []journal.TradeRecord {
	out := make([]journal.TradeRecord, 0, len(r.Positions))
	for _, p := range r.Positions {
		out = append(out, journal.FromPosition(runID, r.Symbol, p))
	}
	return out
}
