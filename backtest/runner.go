package backtest

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/smacross/market"
	"github.com/rustyeddy/smacross/sim"
	"github.com/rustyeddy/smacross/strategies"
)

// CandleFeed yields candles one at a time, in time order.
// Implementations return (ok=false, err=nil) at EOF.
type CandleFeed interface {
	Next() (c market.Candle, ok bool, err error)
}

// SliceFeed replays an in-memory candle series.
type SliceFeed struct {
	candles []market.Candle
	i       int
}

func NewSliceFeed(candles []market.Candle) *SliceFeed {
	return &SliceFeed{candles: candles}
}

func (f *SliceFeed) Next() (market.Candle, bool, error) {
	if f.i >= len(f.candles) {
		return market.Candle{}, false, nil
	}
	c := f.candles[f.i]
	f.i++
	return c, true, nil
}

// Result is everything a run produced.
type Result struct {
	Strategy  string
	Symbol    string
	Timeframe string
	Dataset   string
	Config    sim.Config

	Positions []sim.Position
	Equity    []sim.EquityPoint
	Stats     Stats
}

// Runner drives a strategy and a sim.Engine over a candle feed.
type Runner struct {
	Strategy strategies.Strategy
	Config   sim.Config
	Log      *zap.Logger
}

// Run executes the backtest loop:
//  1. read next candle
//  2. strategy.OnBar(candle) -> signal
//  3. engine.Step(candle, signal)
//
// The open position is force-closed once the feed is exhausted.
func (r *Runner) Run(feed CandleFeed) (Result, error) {
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: Strategy is required")
	}
	if feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	eng, err := sim.NewEngine(r.Config, log)
	if err != nil {
		return Result{}, err
	}
	r.Strategy.Reset()

	for {
		c, ok, err := feed.Next()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		sig := r.Strategy.OnBar(c)
		if err := eng.Step(c, sig); err != nil {
			return Result{}, err
		}
	}
	eng.Finish()

	stats := FromEngine(eng)
	log.Info("backtest finished",
		zap.String("strategy", r.Strategy.Name()),
		zap.Int("candles", stats.Candles),
		zap.Int("trades", stats.Trades),
		zap.Int("skipped", stats.SkippedSignals),
		zap.Float64("net_profit", stats.NetProfit),
	)

	return Result{
		Strategy:  r.Strategy.Name(),
		Config:    r.Config,
		Positions: eng.Ledger(),
		Equity:    eng.EquityCurve(),
		Stats:     stats,
	}, nil
}

// RunCandleSet runs over a validated in-memory series.
func (r *Runner) RunCandleSet(cs *market.CandleSet) (Result, error) {
	if cs == nil {
		return Result{}, fmt.Errorf("backtest: candle set is required")
	}
	res, err := r.Run(NewSliceFeed(cs.Candles))
	if err != nil {
		var de *market.DataError
		if errors.As(err, &de) && de.Source == "" {
			de.Source = cs.Source
		}
		return Result{}, err
	}
	res.Symbol = cs.Symbol
	res.Timeframe = cs.Timeframe
	res.Dataset = cs.Source
	return res, nil
}
