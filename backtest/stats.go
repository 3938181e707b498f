package backtest

import (
	"math"
	"time"

	"github.com/rustyeddy/smacross/sim"
)

// TradeStats summarizes realized profits. A zero profit counts as neither a
// win nor a loss.
type TradeStats struct {
	Trades    int
	Wins      int
	Losses    int
	Breakeven int

	WinRate      float64 // percent
	AvgWin       float64
	AvgLoss      float64 // negative or zero
	RiskReward   float64 // |AvgWin/AvgLoss|, +Inf when there are wins and no losses
	GrossProfit  float64
	GrossLoss    float64 // negative or zero
	ProfitFactor float64 // GrossProfit/|GrossLoss|, +Inf when there are wins and no losses
}

// Stats is the full performance summary of a run.
type Stats struct {
	TradeStats

	InitialBalance float64
	FinalEquity    float64
	NetProfit      float64
	ReturnPct      float64
	MaxDrawdownPct float64

	Balances       sim.Balances
	SkippedSignals int
	Candles        int
	Start          time.Time
	End            time.Time
}

// ComputeTradeStats aggregates a list of realized profits.
func ComputeTradeStats(profits []float64) TradeStats {
	var ts TradeStats
	ts.Trades = len(profits)

	for _, p := range profits {
		switch {
		case p > 0:
			ts.Wins++
			ts.GrossProfit += p
		case p < 0:
			ts.Losses++
			ts.GrossLoss += p
		default:
			ts.Breakeven++
		}
	}

	if ts.Wins > 0 {
		ts.AvgWin = ts.GrossProfit / float64(ts.Wins)
	}
	if ts.Losses > 0 {
		ts.AvgLoss = ts.GrossLoss / float64(ts.Losses)
	}

	switch {
	case ts.Losses > 0:
		ts.WinRate = float64(ts.Wins) / float64(ts.Wins+ts.Losses) * 100
		ts.RiskReward = math.Abs(ts.AvgWin / ts.AvgLoss)
		ts.ProfitFactor = ts.GrossProfit / math.Abs(ts.GrossLoss)
	case ts.Wins > 0:
		ts.WinRate = 100
		ts.RiskReward = math.Inf(1)
		ts.ProfitFactor = math.Inf(1)
	}
	return ts
}

// ComputeStats builds the run summary. The ledger must already contain the
// force-closed position, if any; balances are marked at lastClose.
func ComputeStats(ledger []sim.Position, bal sim.Balances, initial, lastClose float64) Stats {
	profits := make([]float64, len(ledger))
	for i, p := range ledger {
		profits[i] = p.Profit
	}

	s := Stats{
		TradeStats:     ComputeTradeStats(profits),
		InitialBalance: initial,
		Balances:       bal,
		FinalEquity:    bal.Equity(lastClose),
	}
	s.NetProfit = s.FinalEquity - initial
	if initial != 0 {
		s.ReturnPct = s.NetProfit / initial * 100
	}
	return s
}

// FromEngine computes stats for a finished engine.
func FromEngine(e *sim.Engine) Stats {
	last, _ := e.LastCandle()
	first, _ := e.FirstCandle()

	s := ComputeStats(e.Ledger(), e.Balances(), e.InitialEquity(), last.Close)
	s.MaxDrawdownPct = e.MaxDrawdownPct()
	s.SkippedSignals = e.Skipped()
	s.Candles = e.Steps()
	s.Start = first.Time
	s.End = last.Time
	return s
}
