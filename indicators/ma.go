package indicators

import (
	"fmt"

	"github.com/moznion/go-optional"

	"github.com/rustyeddy/smacross/market"
)

// MA calculates the Simple Moving Average of the last period closes,
// inclusive of the final element.
func MA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", period, len(closes))
	}

	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period), nil
}

// TrailingMA returns the SMA series for closes: element i is None until
// i+1 >= period, then the mean of closes[i-period+1 : i+1].
func TrailingMA(closes []float64, period int) []optional.Option[float64] {
	out := make([]optional.Option[float64], len(closes))
	for i := range closes {
		v, err := MA(closes[:i+1], period)
		if err != nil {
			out[i] = optional.None[float64]()
			continue
		}
		out[i] = optional.Some(v)
	}
	return out
}

// SimpleMA is a streaming Simple Moving Average over candle closes.
//
// The window is kept in a ring buffer and the mean is summed over the window
// in insertion order on every read, so the value is bit-for-bit the same as
// MA over the same trailing closes.
type SimpleMA struct {
	period int
	buf    []float64
	next   int
	count  int
}

// NewMA creates a new Simple Moving Average indicator with the given period.
// A non-positive period is treated as 1.
func NewMA(period int) *SimpleMA {
	if period <= 0 {
		period = 1
	}
	return &SimpleMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (m *SimpleMA) Name() string {
	return fmt.Sprintf("SMA(%d)", m.period)
}

func (m *SimpleMA) Warmup() int {
	return m.period
}

func (m *SimpleMA) Reset() {
	for i := range m.buf {
		m.buf[i] = 0
	}
	m.next = 0
	m.count = 0
}

func (m *SimpleMA) Update(c market.Candle) {
	m.Push(c.Close)
}

// Push adds a raw close price.
func (m *SimpleMA) Push(v float64) {
	m.buf[m.next] = v
	m.next = (m.next + 1) % m.period
	if m.count < m.period {
		m.count++
	}
}

func (m *SimpleMA) Ready() bool {
	return m.count >= m.period
}

func (m *SimpleMA) Value() optional.Option[float64] {
	if !m.Ready() {
		return optional.None[float64]()
	}

	// Oldest element sits at m.next once the buffer is full.
	sum := 0.0
	for i := 0; i < m.period; i++ {
		sum += m.buf[(m.next+i)%m.period]
	}
	return optional.Some(sum / float64(m.period))
}
