package strategies

import "github.com/rustyeddy/smacross/market"

// NoopStrategy never signals. Useful as a baseline: balances stay untouched.
type NoopStrategy struct{}

func (NoopStrategy) Name() string { return "noop" }

func (NoopStrategy) Reset() {}

func (NoopStrategy) OnBar(c market.Candle) Signal {
	_ = c
	return SignalNone
}
