// Package indicators provides technical analysis indicators for trading
package indicators

import (
	"github.com/moznion/go-optional"

	"github.com/rustyeddy/smacross/market"
)

// Indicator computes a single streaming value from candles.
// It is deterministic and safe to use in live, replay, and backtests.
type Indicator interface {
	// Name returns a stable identifier like "SMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* candle and updates internal state.
	Update(c market.Candle)

	// Ready reports whether Value() is defined (warmup completed).
	Ready() bool

	// Value returns the current value, or None until the indicator is ready.
	Value() optional.Option[float64]
}
