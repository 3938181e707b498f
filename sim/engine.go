package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/smacross/market"
	"github.com/rustyeddy/smacross/strategies"
)

// ErrInsufficientBalance is reported (never returned from Step) when a
// signal cannot be sized against the current balances. The signal is skipped.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Config holds the sizing and exit thresholds. Percentages are fractions:
// 0.003 means 0.3%.
type Config struct {
	InitialBalance    float64 // quote currency
	InitialBase       float64 // base inventory, lets a Sell open a short
	PositionSizingPct float64
	StopLossPct       float64
	TakeProfitPct     float64
}

func (c Config) validate() error {
	if math.IsNaN(c.InitialBalance) || math.IsInf(c.InitialBalance, 0) || c.InitialBalance < 0 {
		return fmt.Errorf("initial balance must be a non-negative number (got %v)", c.InitialBalance)
	}
	if math.IsNaN(c.InitialBase) || math.IsInf(c.InitialBase, 0) || c.InitialBase < 0 {
		return fmt.Errorf("initial base must be a non-negative number (got %v)", c.InitialBase)
	}
	if c.PositionSizingPct <= 0 || c.PositionSizingPct > 1 {
		return fmt.Errorf("position sizing must be in (0, 1] (got %v)", c.PositionSizingPct)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("stop loss must be in (0, 1) (got %v)", c.StopLossPct)
	}
	if c.TakeProfitPct <= 0 || c.TakeProfitPct >= 1 {
		return fmt.Errorf("take profit must be in (0, 1) (got %v)", c.TakeProfitPct)
	}
	return nil
}

// Engine is the single-slot position manager. It owns the balances, the open
// position (at most one) and the ledger of closed positions. It is not safe
// for concurrent use; one goroutine drives it candle by candle.
type Engine struct {
	// OnSkip, when set, is called for every signal that could not open a
	// position, after the warning is logged.
	OnSkip func(c market.Candle, sig strategies.Signal, err error)

	cfg Config
	log *zap.Logger

	bal    Balances
	open   *Position
	ledger Ledger
	equity []EquityPoint

	skipped  int
	steps    int
	first    market.Candle
	last     market.Candle
	finished bool

	peakEquity     float64
	maxDrawdownPct float64
}

// NewEngine returns an engine holding cfg.InitialBalance in quote currency
// and cfg.InitialBase in base. A nil logger disables logging.
func NewEngine(cfg Config, log *zap.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg: cfg,
		log: log,
		bal: Balances{Quote: cfg.InitialBalance, Base: cfg.InitialBase},
	}, nil
}

// Step processes one candle: exits first, then (if the slot is free) the
// entry for sig. The candle must not be older than the previous one.
func (e *Engine) Step(c market.Candle, sig strategies.Signal) error {
	if e.finished {
		return fmt.Errorf("sim: step after finish")
	}
	if err := c.Validate(); err != nil {
		return market.NewDataError("", e.steps+1, err)
	}
	if e.steps > 0 && c.Time.Before(e.last.Time) {
		return market.NewDataError("", e.steps+1, fmt.Errorf("timestamp %s is before previous %s",
			c.Time.Format(time.RFC3339), e.last.Time.Format(time.RFC3339)))
	}
	if e.steps == 0 {
		e.first = c
		e.peakEquity = e.bal.Equity(c.Close)
	}
	e.steps++
	e.last = c

	// 1) Exits on this candle.
	if e.open != nil {
		if status, hit := checkExit(e.open, c.Close); hit {
			e.closePosition(c.Time, c.Close, status)
		}
	}

	// 2) Entries, only with a free slot.
	if e.open == nil && sig != strategies.SignalNone {
		if err := e.openPosition(c, sig); err != nil {
			e.skipped++
			e.log.Warn("signal skipped",
				zap.Time("time", c.Time),
				zap.Stringer("signal", sig),
				zap.Float64("price", c.Close),
				zap.Float64("quote", e.bal.Quote),
				zap.Float64("base", e.bal.Base),
				zap.Error(err),
			)
			if e.OnSkip != nil {
				e.OnSkip(c, sig, err)
			}
		}
	}

	e.markToMarket(c.Close)
	return nil
}

// Finish force-closes any open position at the last close with
// StatusClosedEndOfTest. Further Steps are rejected.
func (e *Engine) Finish() {
	if e.finished {
		return
	}
	e.finished = true
	if e.open == nil || e.steps == 0 {
		return
	}
	e.log.Info("closing position at end of test", zap.Int("id", e.open.ID))
	e.closePosition(e.last.Time, e.last.Close, StatusClosedEndOfTest)
	e.markToMarket(e.last.Close)
}

func (e *Engine) openPosition(c market.Candle, sig strategies.Signal) error {
	price := c.Close
	if price <= 0 {
		return fmt.Errorf("%w: non-positive price %v", ErrInsufficientBalance, price)
	}

	var (
		side   Side
		amount float64
	)
	switch sig {
	case strategies.SignalBuy:
		side = Long
		// guard on the notional; amount*price may round above Quote
		notional := e.cfg.PositionSizingPct * e.bal.Quote
		if notional <= 0 || math.IsNaN(notional) || notional > e.bal.Quote {
			return fmt.Errorf("%w: quote %.8f for notional %.8f @ %.8f", ErrInsufficientBalance, e.bal.Quote, notional, price)
		}
		amount = notional / price
	case strategies.SignalSell:
		side = Short
		amount = e.cfg.PositionSizingPct * e.bal.Base
		if amount <= 0 || math.IsNaN(amount) || e.bal.Base < amount {
			return fmt.Errorf("%w: base %.8f for %.8f", ErrInsufficientBalance, e.bal.Base, amount)
		}
	default:
		return fmt.Errorf("sim: unknown signal %v", sig)
	}

	stop, take := exitLevels(side, price, e.cfg.StopLossPct, e.cfg.TakeProfitPct)

	e.open = &Position{
		ID:         e.ledger.Len() + 1,
		Side:       side,
		EntryTime:  c.Time,
		EntryPrice: price,
		Amount:     amount,
		StopLoss:   stop,
		TakeProfit: take,
		Status:     StatusOpen,
	}
	e.bal = e.bal.applyEntry(side, amount, price)

	e.log.Info("position opened",
		zap.Int("id", e.open.ID),
		zap.Time("time", c.Time),
		zap.Stringer("side", side),
		zap.Float64("amount", amount),
		zap.Float64("price", price),
		zap.Float64("stop_loss", stop),
		zap.Float64("take_profit", take),
		zap.Float64("quote", e.bal.Quote),
		zap.Float64("base", e.bal.Base),
	)
	return nil
}

func (e *Engine) closePosition(t time.Time, price float64, status Status) {
	p := *e.open
	e.open = nil

	p.Status = status
	p.ExitTime = t
	p.ExitPrice = price
	p.Profit = p.ProfitAt(price)

	e.bal = e.bal.applyExit(p.Side, p.Amount, price)
	e.ledger.append(p)
	e.equity = append(e.equity, EquityPoint{
		Time:     t,
		PosID:    p.ID,
		Balances: e.bal,
		Equity:   e.bal.Equity(price),
	})

	e.log.Info("position closed",
		zap.Int("id", p.ID),
		zap.Time("time", t),
		zap.Stringer("side", p.Side),
		zap.Stringer("status", status),
		zap.Float64("price", price),
		zap.Float64("profit", p.Profit),
		zap.Float64("quote", e.bal.Quote),
		zap.Float64("base", e.bal.Base),
	)
}

func (e *Engine) markToMarket(price float64) {
	eq := e.bal.Equity(price)
	if eq > e.peakEquity {
		e.peakEquity = eq
	}
	if e.peakEquity > 0 {
		dd := (e.peakEquity - eq) / e.peakEquity * 100
		if dd > e.maxDrawdownPct {
			e.maxDrawdownPct = dd
		}
	}
}

// Balances returns the current balances.
func (e *Engine) Balances() Balances { return e.bal }

// OpenPosition returns a copy of the open position, if any.
func (e *Engine) OpenPosition() (Position, bool) {
	if e.open == nil {
		return Position{}, false
	}
	return *e.open, true
}

// OpenPositions is 0 or 1.
func (e *Engine) OpenPositions() int {
	if e.open == nil {
		return 0
	}
	return 1
}

// Ledger returns the closed positions in close order.
func (e *Engine) Ledger() []Position { return e.ledger.Positions() }

// TotalProfit is the realized profit over the ledger.
func (e *Engine) TotalProfit() float64 { return e.ledger.TotalProfit() }

// EquityCurve returns the equity recorded after each close.
func (e *Engine) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, len(e.equity))
	copy(out, e.equity)
	return out
}

// Skipped is the number of signals ignored for lack of balance.
func (e *Engine) Skipped() int { return e.skipped }

// Steps is the number of candles processed.
func (e *Engine) Steps() int { return e.steps }

// LastCandle returns the last candle processed.
func (e *Engine) LastCandle() (market.Candle, bool) { return e.last, e.steps > 0 }

// FirstCandle returns the first candle processed.
func (e *Engine) FirstCandle() (market.Candle, bool) { return e.first, e.steps > 0 }

// InitialEquity is the starting account value marked at the first close.
// With no base inventory it equals cfg.InitialBalance.
func (e *Engine) InitialEquity() float64 {
	if e.cfg.InitialBase == 0 || e.steps == 0 {
		return e.cfg.InitialBalance
	}
	return e.cfg.InitialBalance + e.cfg.InitialBase*e.first.Close
}

// MaxDrawdownPct is the largest peak-to-trough drop of candle-close equity.
func (e *Engine) MaxDrawdownPct() float64 { return e.maxDrawdownPct }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }
