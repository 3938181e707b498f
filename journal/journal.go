package journal

import (
	"fmt"
	"time"

	"github.com/rustyeddy/smacross/sim"
)

// TradeRecord is one closed position as stored in a journal.
type TradeRecord struct {
	TradeID    string
	RunID      string
	Symbol     string
	Side       string
	Amount     float64
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string // closed_sl, closed_tp, closed_end_of_test
}

// Journal persists trades and run summaries.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordRun(BacktestRun) error
	Close() error
}

// TradeID is "<run>-<seq>", seq being the position's id within the run.
func TradeID(runID string, seq int) string {
	return fmt.Sprintf("%s-%04d", runID, seq)
}

// FromPosition converts a closed position.
func FromPosition(runID, symbol string, p sim.Position) TradeRecord {
	return TradeRecord{
		TradeID:    TradeID(runID, p.ID),
		RunID:      runID,
		Symbol:     symbol,
		Side:       p.Side.String(),
		Amount:     p.Amount,
		EntryPrice: p.EntryPrice,
		ExitPrice:  p.ExitPrice,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		OpenTime:   p.EntryTime.UTC(),
		CloseTime:  p.ExitTime.UTC(),
		RealizedPL: p.Profit,
		Reason:     p.Status.String(),
	}
}

// Validate checks that Side and Reason name a known side and a closed status.
func (t TradeRecord) Validate() error {
	if _, err := sim.ParseSide(t.Side); err != nil {
		return fmt.Errorf("trade %s: %w", t.TradeID, err)
	}
	st, err := sim.ParseStatus(t.Reason)
	if err != nil {
		return fmt.Errorf("trade %s: %w", t.TradeID, err)
	}
	if st == sim.StatusOpen {
		return fmt.Errorf("trade %s: position still open", t.TradeID)
	}
	return nil
}

// Record writes the run and then every trade. Trades are validated before
// anything is written.
func Record(j Journal, run BacktestRun, trades []TradeRecord) error {
	for _, t := range trades {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	if err := j.RecordRun(run); err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	for _, t := range trades {
		if err := j.RecordTrade(t); err != nil {
			return fmt.Errorf("record trade %s: %w", t.TradeID, err)
		}
	}
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) RecordRun(BacktestRun) error   { return nil }
func (Nop) Close() error                  { return nil }
