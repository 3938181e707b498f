package sim

func hitStopLoss(p *Position, price float64) bool {
	if p.Side == Long {
		return price <= p.StopLoss
	}
	return price >= p.StopLoss
}

func hitTakeProfit(p *Position, price float64) bool {
	if p.Side == Long {
		return price >= p.TakeProfit
	}
	return price <= p.TakeProfit
}

// checkExit evaluates the stop and the take against a close price.
// If both are hit on the same candle the stop wins.
func checkExit(p *Position, price float64) (Status, bool) {
	if p == nil || !p.IsOpen() {
		return StatusOpen, false
	}
	if hitStopLoss(p, price) {
		return StatusClosedSL, true
	}
	if hitTakeProfit(p, price) {
		return StatusClosedTP, true
	}
	return StatusOpen, false
}

// exitLevels returns stop and take for an entry at price.
func exitLevels(side Side, price, stopPct, takePct float64) (stop, take float64) {
	if side == Long {
		return price * (1 - stopPct), price * (1 + takePct)
	}
	return price * (1 + stopPct), price * (1 - takePct)
}
