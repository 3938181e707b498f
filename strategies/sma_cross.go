package strategies

import (
	"fmt"

	"github.com/rustyeddy/smacross/indicators"
	"github.com/rustyeddy/smacross/market"
)

// DetectCross compares two consecutive SMA pairs.
//   - Buy: short goes from <= long to > long
//   - Sell: short goes from >= long to < long
//
// An undefined value on either side means no signal.
func DetectCross(prev, cur indicators.Pair) Signal {
	if !prev.Defined() || !cur.Defined() {
		return SignalNone
	}

	ps, pl := prev.Short.Unwrap(), prev.Long.Unwrap()
	cs, cl := cur.Short.Unwrap(), cur.Long.Unwrap()

	switch {
	case ps <= pl && cs > cl:
		return SignalBuy
	case ps >= pl && cs < cl:
		return SignalSell
	default:
		return SignalNone
	}
}

// SMACross trades a short/long simple moving average crossover.
type SMACross struct {
	ShortWindow int
	LongWindow  int

	tracker *indicators.PairTracker
	prev    indicators.Pair
}

// NewSMACross requires 0 < short < long.
func NewSMACross(short, long int) (*SMACross, error) {
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("sma-cross: require 0 < short < long (got %d/%d)", short, long)
	}
	tr, err := indicators.NewPairTracker(short, long)
	if err != nil {
		return nil, err
	}
	s := &SMACross{ShortWindow: short, LongWindow: long, tracker: tr}
	s.Reset()
	return s, nil
}

func (s *SMACross) Name() string {
	return fmt.Sprintf("sma-cross(%d/%d)", s.ShortWindow, s.LongWindow)
}

func (s *SMACross) Reset() {
	s.tracker.Reset()
	s.prev = s.tracker.Current()
}

// OnBar updates both averages with c and reports the crossover, if any,
// between the previous candle's pair and this one.
func (s *SMACross) OnBar(c market.Candle) Signal {
	cur := s.tracker.Update(c)
	sig := DetectCross(s.prev, cur)
	s.prev = cur
	return sig
}

// Pair returns the averages computed for the last candle.
func (s *SMACross) Pair() indicators.Pair {
	return s.prev
}
