package sim

import (
	"fmt"
	"time"
)

// Side: +1 long, -1 short
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("Side(%d)", int8(s))
	}
}

// Status is the lifecycle state of a Position.
type Status int8

const (
	StatusOpen Status = iota
	StatusClosedSL
	StatusClosedTP
	StatusClosedEndOfTest
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosedSL:
		return "closed_sl"
	case StatusClosedTP:
		return "closed_tp"
	case StatusClosedEndOfTest:
		return "closed_end_of_test"
	default:
		return fmt.Sprintf("Status(%d)", int8(s))
	}
}

// MarshalText keeps reports and journals on the string form.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusOpen, StatusClosedSL, StatusClosedTP, StatusClosedEndOfTest} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown position status %q", s)
}

// ParseSide is the inverse of Side.String.
func ParseSide(s string) (Side, error) {
	switch s {
	case "long":
		return Long, nil
	case "short":
		return Short, nil
	}
	return 0, fmt.Errorf("unknown position side %q", s)
}

// Position is a single simulated trade. It is created on entry, mutated once
// on exit, then handed to the Ledger and never touched again.
type Position struct {
	ID         int
	Side       Side
	EntryTime  time.Time
	EntryPrice float64
	Amount     float64 // base currency units
	StopLoss   float64
	TakeProfit float64
	Status     Status

	ExitTime  time.Time
	ExitPrice float64
	Profit    float64 // quote currency
}

func (p Position) IsOpen() bool { return p.Status == StatusOpen }

// ProfitAt is the profit the position would realize if closed at price.
//
//	long:  (price - entry) * amount
//	short: (entry - price) * amount
func (p Position) ProfitAt(price float64) float64 {
	if p.Side == Short {
		return (p.EntryPrice - price) * p.Amount
	}
	return (price - p.EntryPrice) * p.Amount
}
