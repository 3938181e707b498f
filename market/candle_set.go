package market

import (
	"errors"
	"fmt"
	"time"
)

// CandleSet is a fully materialized, validated candle series for one symbol.
// It is built before a simulation starts and never mutated afterwards.
type CandleSet struct {
	Symbol    string
	Timeframe string
	Source    string
	Candles   []Candle
}

// NewCandleSet validates candles and wraps them. The slice is not copied.
func NewCandleSet(symbol, timeframe, source string, candles []Candle) (*CandleSet, error) {
	if err := ValidateSeries(candles); err != nil {
		var de *DataError
		if errors.As(err, &de) && de.Source == "" {
			de.Source = source
		}
		return nil, err
	}
	return &CandleSet{
		Symbol:    symbol,
		Timeframe: timeframe,
		Source:    source,
		Candles:   candles,
	}, nil
}

// ValidateSeries checks every candle and that timestamps never decrease.
func ValidateSeries(candles []Candle) error {
	var prev time.Time
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return NewDataError("", i+1, err)
		}
		if i > 0 && c.Time.Before(prev) {
			return NewDataError("", i+1, fmt.Errorf("timestamp %s is before previous %s",
				c.Time.Format(time.RFC3339), prev.Format(time.RFC3339)))
		}
		prev = c.Time
	}
	return nil
}

func (cs *CandleSet) Len() int { return len(cs.Candles) }

// Start returns the first candle time, zero for an empty set.
func (cs *CandleSet) Start() time.Time {
	if len(cs.Candles) == 0 {
		return time.Time{}
	}
	return cs.Candles[0].Time
}

// End returns the last candle time, zero for an empty set.
func (cs *CandleSet) End() time.Time {
	if len(cs.Candles) == 0 {
		return time.Time{}
	}
	return cs.Candles[len(cs.Candles)-1].Time
}

// Last returns the last candle and false when the set is empty.
func (cs *CandleSet) Last() (Candle, bool) {
	if len(cs.Candles) == 0 {
		return Candle{}, false
	}
	return cs.Candles[len(cs.Candles)-1], true
}

// Closes returns the close prices in order.
func (cs *CandleSet) Closes() []float64 {
	out := make([]float64, len(cs.Candles))
	for i, c := range cs.Candles {
		out[i] = c.Close
	}
	return out
}
