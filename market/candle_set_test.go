package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkCandle(t time.Time, close float64) Candle {
	return Candle{Time: t, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func TestCandleValidate(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		c       Candle
		wantErr string
	}{
		{"valid", mkCandle(t0, 100), ""},
		{"zero prices are allowed", Candle{Time: t0}, ""},
		{"negative close", Candle{Time: t0, Close: -1}, "close is negative"},
		{"negative volume", Candle{Time: t0, Close: 1, Volume: -3}, "volume is negative"},
		{"nan high", Candle{Time: t0, High: math.NaN()}, "high is not finite"},
		{"inf low", Candle{Time: t0, Low: math.Inf(1)}, "low is not finite"},
		{"zero time", Candle{Close: 1}, "timestamp is zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSeries(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("non-decreasing is fine", func(t *testing.T) {
		candles := []Candle{
			mkCandle(t0, 1),
			mkCandle(t0, 2), // equal timestamps allowed
			mkCandle(t0.Add(time.Minute), 3),
		}
		assert.NoError(t, ValidateSeries(candles))
	})

	t.Run("decreasing timestamp is a data error", func(t *testing.T) {
		candles := []Candle{
			mkCandle(t0.Add(time.Minute), 1),
			mkCandle(t0, 2),
		}
		err := ValidateSeries(candles)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrData)

		var de *DataError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 2, de.Row)
	})

	t.Run("bad candle reports its row", func(t *testing.T) {
		candles := []Candle{mkCandle(t0, 1), mkCandle(t0, 1), {Time: t0, Close: -5}}
		err := ValidateSeries(candles)
		var de *DataError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 3, de.Row)
	})

	t.Run("empty series", func(t *testing.T) {
		assert.NoError(t, ValidateSeries(nil))
	})
}

func TestNewCandleSet(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []Candle{mkCandle(t0, 10), mkCandle(t0.Add(time.Minute), 11), mkCandle(t0.Add(2*time.Minute), 12)}

	cs, err := NewCandleSet("BTCUSDT", "1m", "mem", candles)
	require.NoError(t, err)
	assert.Equal(t, 3, cs.Len())
	assert.Equal(t, t0, cs.Start())
	assert.Equal(t, t0.Add(2*time.Minute), cs.End())
	assert.Equal(t, []float64{10, 11, 12}, cs.Closes())

	last, ok := cs.Last()
	assert.True(t, ok)
	assert.Equal(t, 12.0, last.Close)

	_, err = NewCandleSet("BTCUSDT", "1m", "bad.csv", []Candle{mkCandle(t0, 1), {Time: t0, Open: -1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv row 2")
}

func TestEmptyCandleSet(t *testing.T) {
	cs, err := NewCandleSet("BTCUSDT", "1m", "", nil)
	require.NoError(t, err)
	assert.True(t, cs.Start().IsZero())
	assert.True(t, cs.End().IsZero())
	_, ok := cs.Last()
	assert.False(t, ok)
}

func TestParseInstrument(t *testing.T) {
	tests := []struct {
		in        string
		base      string
		quote     string
		wantError bool
	}{
		{"BTC/USDT", "BTC", "USDT", false},
		{"btcusdt", "BTC", "USDT", false},
		{"ETH-BTC", "ETH", "BTC", false},
		{"SOLFDUSD", "SOL", "FDUSD", false},
		{"EUR_USD", "EUR", "USD", false},
		{"USDT", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			meta, err := ParseInstrument(tt.in)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.base, meta.Base)
			assert.Equal(t, tt.quote, meta.Quote)
			assert.Equal(t, tt.base+tt.quote, meta.Symbol)
		})
	}

	assert.Equal(t, "BTCUSDT", NormalizeSymbol(" btc/usdt "))
}
