package indicators

import (
	"fmt"

	"github.com/moznion/go-optional"

	"github.com/rustyeddy/smacross/market"
)

// Pair holds the short and long SMA for one candle. Either side may be
// undefined while the windows warm up.
type Pair struct {
	Short optional.Option[float64]
	Long  optional.Option[float64]
}

// Defined reports whether both values are present.
func (p Pair) Defined() bool {
	return p.Short.IsSome() && p.Long.IsSome()
}

func (p Pair) String() string {
	return fmt.Sprintf("short=%s long=%s", fmtOpt(p.Short), fmtOpt(p.Long))
}

func fmtOpt(o optional.Option[float64]) string {
	v, err := o.Take()
	if err != nil {
		return "n/a"
	}
	return fmt.Sprintf("%.8f", v)
}

// PairTracker feeds candles into a short and a long SMA and reports both.
// Neither value is reported until the long window is full, so the pair
// becomes defined on exactly one candle.
type PairTracker struct {
	short *SimpleMA
	long  *SimpleMA
	seen  int
}

// NewPairTracker returns a tracker for the given windows.
func NewPairTracker(shortWindow, longWindow int) (*PairTracker, error) {
	if shortWindow <= 0 || longWindow <= 0 {
		return nil, fmt.Errorf("windows must be positive (short=%d long=%d)", shortWindow, longWindow)
	}
	return &PairTracker{
		short: NewMA(shortWindow),
		long:  NewMA(longWindow),
	}, nil
}

func (t *PairTracker) Name() string {
	return fmt.Sprintf("%s/%s", t.short.Name(), t.long.Name())
}

// Warmup is the number of candles before the pair is defined.
func (t *PairTracker) Warmup() int {
	return max(t.short.Warmup(), t.long.Warmup())
}

func (t *PairTracker) Reset() {
	t.short.Reset()
	t.long.Reset()
	t.seen = 0
}

// Update consumes the next candle and returns the pair for it.
func (t *PairTracker) Update(c market.Candle) Pair {
	t.short.Update(c)
	t.long.Update(c)
	t.seen++
	return t.Current()
}

// Current returns the pair for the last candle seen.
func (t *PairTracker) Current() Pair {
	if t.seen < t.Warmup() {
		return Pair{Short: optional.None[float64](), Long: optional.None[float64]()}
	}
	return Pair{Short: t.short.Value(), Long: t.long.Value()}
}
