package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"github.com/rustyeddy/smacross/market"
)

// klinesPageLimit is the largest page the spot klines endpoint serves.
const klinesPageLimit = 1000

// BinanceAPI fetches klines from the public REST endpoint, no keys needed.
type BinanceAPI struct {
	client *binance.Client
	log    *zap.Logger
	delay  time.Duration
}

// NewBinanceAPI returns a keyless client. A non-empty baseURL overrides the
// exchange endpoint.
func NewBinanceAPI(baseURL string, delay time.Duration, log *zap.Logger) *BinanceAPI {
	if log == nil {
		log = zap.NewNop()
	}
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &BinanceAPI{client: client, log: log, delay: delay}
}

// Fetch pages through [start, end] (end day inclusive). Each page starts 1ms
// after the close time of the previous page's last kline.
func (b *BinanceAPI) Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.Candle, error) {
	sym := market.NormalizeSymbol(symbol)
	startMs := start.UTC().UnixMilli()
	endMs := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1).UnixMilli() - 1

	var out []market.Candle
	cur := startMs
	for cur <= endMs {
		klines, err := b.client.NewKlinesService().
			Symbol(sym).
			Interval(timeframe).
			StartTime(cur).
			EndTime(endMs).
			Limit(klinesPageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines from Binance: %w", err)
		}

		page, err := convertKlines(klines)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		b.log.Debug("klines page",
			zap.String("symbol", sym),
			zap.Int("rows", len(page)),
			zap.Int64("from", cur),
		)

		if len(klines) < klinesPageLimit {
			break
		}
		cur = klines[len(klines)-1].CloseTime + 1

		if err := sleepCtx(ctx, b.delay); err != nil {
			return nil, err
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no klines returned for %s %s", sym, timeframe)
	}
	return MergeCandles(out), nil
}

func convertKlines(klines []*binance.Kline) ([]market.Candle, error) {
	out := make([]market.Candle, 0, len(klines))
	for i, k := range klines {
		c := market.Candle{Time: time.UnixMilli(k.OpenTime).UTC()}
		fields := []struct {
			name string
			raw  string
			dst  *float64
		}{
			{"open", k.Open, &c.Open},
			{"high", k.High, &c.High},
			{"low", k.Low, &c.Low},
			{"close", k.Close, &c.Close},
			{"volume", k.Volume, &c.Volume},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, market.NewDataError("binance", i+1, fmt.Errorf("bad %s %q", f.name, f.raw))
			}
			*f.dst = v
		}
		if err := c.Validate(); err != nil {
			return nil, market.NewDataError("binance", i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}
