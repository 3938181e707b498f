package sim

import "time"

// Balances are the two account currencies. Base may go negative: a short is
// simulated by selling base inventory, without any borrowing model.
type Balances struct {
	Quote float64
	Base  float64
}

// Equity marks the account to market in quote currency.
func (b Balances) Equity(price float64) float64 {
	return b.Quote + b.Base*price
}

// applyEntry returns the balances after opening side/amount at price.
//
//	long entry:  quote -= amount*price, base += amount
//	short entry: quote += amount*price, base -= amount
func (b Balances) applyEntry(side Side, amount, price float64) Balances {
	notional := amount * price
	if side == Long {
		return Balances{Quote: b.Quote - notional, Base: b.Base + amount}
	}
	return Balances{Quote: b.Quote + notional, Base: b.Base - amount}
}

// applyExit reverses an entry at the exit price.
func (b Balances) applyExit(side Side, amount, price float64) Balances {
	notional := amount * price
	if side == Long {
		return Balances{Quote: b.Quote + notional, Base: b.Base - amount}
	}
	return Balances{Quote: b.Quote - notional, Base: b.Base + amount}
}

// Ledger is the append-only list of closed positions, in close order.
type Ledger struct {
	positions []Position
}

func (l *Ledger) append(p Position) {
	l.positions = append(l.positions, p)
}

func (l *Ledger) Len() int { return len(l.positions) }

// Positions returns a copy of the closed positions.
func (l *Ledger) Positions() []Position {
	out := make([]Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// TotalProfit sums realized profit in close order.
func (l *Ledger) TotalProfit() float64 {
	sum := 0.0
	for _, p := range l.positions {
		sum += p.Profit
	}
	return sum
}

// EquityPoint is the mark-to-market equity right after a position closed.
type EquityPoint struct {
	Time     time.Time
	PosID    int
	Balances Balances
	Equity   float64
}
