package market

import (
	"fmt"
	"strings"
)

// InstrumentMeta describes a spot pair: Base is the traded asset, Quote the
// currency balances and profits are measured in.
type InstrumentMeta struct {
	Symbol string
	Base   string
	Quote  string
}

// quoteAssets are tried longest first so "BTCUSDT" splits as BTC/USDT, not BTCUSD/T.
var quoteAssets = []string{"FDUSD", "USDT", "USDC", "TUSD", "BUSD", "EUR", "TRY", "BTC", "ETH", "BNB", "USD"}

// NormalizeSymbol turns "btc/usdt" or "BTC-USDT" into the exchange form "BTCUSDT".
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
}

// ParseInstrument splits a symbol into base and quote assets.
func ParseInstrument(symbol string) (InstrumentMeta, error) {
	raw := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-", "_"} {
		if base, quote, ok := strings.Cut(raw, sep); ok {
			if base == "" || quote == "" {
				break
			}
			return InstrumentMeta{Symbol: base + quote, Base: base, Quote: quote}, nil
		}
	}

	sym := NormalizeSymbol(raw)
	for _, q := range quoteAssets {
		if strings.HasSuffix(sym, q) && len(sym) > len(q) {
			return InstrumentMeta{Symbol: sym, Base: strings.TrimSuffix(sym, q), Quote: q}, nil
		}
	}
	return InstrumentMeta{}, fmt.Errorf("unknown instrument %q", symbol)
}
