package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/smacross/market"
)

// Signal is the entry instruction a strategy emits for a candle.
type Signal int8

const (
	SignalNone Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "none"
	}
}

// Strategy is called once per candle, in order, by the backtest engine.
// Implementations must be deterministic: the same candles produce the same
// signals.
type Strategy interface {
	Name() string
	Reset()
	OnBar(c market.Candle) Signal
}

// Params are the knobs a strategy may read when built by name.
type Params struct {
	ShortWindow int
	LongWindow  int
}

// ByName builds a strategy from its registered name.
func ByName(name string, p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sma-cross", "smacross", "sma":
		return NewSMACross(p.ShortWindow, p.LongWindow)

	case "noop", "none":
		return NoopStrategy{}, nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: sma-cross, noop)", name)
	}
}
