package market

import (
	"fmt"
	"math"
	"time"
)

// Candle represents OHLCV data for a single bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks that every OHLCV field is finite and non-negative.
func (c Candle) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"open", c.Open},
		{"high", c.High},
		{"low", c.Low},
		{"close", c.Close},
		{"volume", c.Volume},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite (%v)", f.name, f.v)
		}
		if f.v < 0 {
			return fmt.Errorf("%s is negative (%v)", f.name, f.v)
		}
	}
	if c.Time.IsZero() {
		return fmt.Errorf("timestamp is zero")
	}
	return nil
}
