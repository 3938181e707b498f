package journal

import (
	"fmt"
	"strings"
	"time"
)

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// FormatTradeOrg renders one trade as an Org heading with a property drawer.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Symbol, t.Side, shortID(t.TradeID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	if t.RunID != "" {
		fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	}
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":AMOUNT: %.8f\n", t.Amount)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":STOP_LOSS: %.5f\n", t.StopLoss)
	fmt.Fprintf(&b, ":TAKE_PROFIT: %.5f\n", t.TakeProfit)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.OpenTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.CloseTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n\n")

	b.WriteString("*** Signal\n")
	fmt.Fprintf(&b, "- %s entry at %.5f, held %s\n", t.Side, t.EntryPrice, t.CloseTime.Sub(t.OpenTime))
	b.WriteString("*** Exit\n")
	fmt.Fprintf(&b, "- %s at %.5f\n", t.Reason, t.ExitPrice)
	b.WriteString("*** Review\n")
	b.WriteString("- \n")

	return b.String()
}

// FormatTradesOrg joins several trades, separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	parts := make([]string, 0, len(trades))
	for _, t := range trades {
		parts = append(parts, FormatTradeOrg(t))
	}
	return strings.Join(parts, "\n\n")
}
