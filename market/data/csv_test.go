package data

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/smacross/market"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   string
		want time.Time
		err  bool
	}{
		{"rfc3339", "2025-01-02T03:04:00Z", want, false},
		{"pandas", "2025-01-02 03:04:00", want, false},
		{"epoch seconds", "1735787040", want, false},
		{"epoch millis", "1735787040000", want, false},
		{"epoch micros", "1735787040000000", want, false},
		{"padded", "  2025-01-02 03:04:00 ", want, false},
		{"empty", "", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestLoadCSVWithHeader(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "btc.csv", `timestamp,open,high,low,close,volume
2025-01-01 00:00:00,100,101,99,100.5,10

2025-01-01 00:01:00,100.5,102,100,101.5,12
`)

	cs, err := LoadCSV(p, "BTCUSDT", "1m")
	require.NoError(t, err)
	require.Equal(t, 2, cs.Len())
	assert.Equal(t, 101.5, cs.Candles[1].Close)
	assert.Equal(t, 12.0, cs.Candles[1].Volume)
	assert.Equal(t, "BTCUSDT", cs.Symbol)
	assert.Equal(t, p, cs.Source)
}

func TestLoadCSVReorderedHeader(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "btc.csv", `close,volume,time,open,high,low,extra
100.5,10,1735689600000,100,101,99,x
`)

	cs, err := LoadCSV(p, "BTCUSDT", "1m")
	require.NoError(t, err)
	c := cs.Candles[0]
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), c.Time)
	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 101.0, c.High)
	assert.Equal(t, 99.0, c.Low)
	assert.Equal(t, 100.5, c.Close)
}

func TestLoadCSVWithoutHeader(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "btc.csv", "2025-01-01T00:00:00Z,1,2,0.5,1.5,3\n2025-01-01T00:01:00Z,1.5,2,1,1.8,4\n")

	cs, err := LoadCSV(p, "X", "1m")
	require.NoError(t, err)
	assert.Equal(t, 2, cs.Len())
}

func TestLoadCSVDataErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		row     int
	}{
		{"bad number", "timestamp,open,high,low,close,volume\n2025-01-01 00:00:00,1,2,0.5,abc,3\n", 2},
		{"negative", "timestamp,open,high,low,close,volume\n2025-01-01 00:00:00,1,2,-0.5,1,3\n", 2},
		{"short row", "timestamp,open,high,low,close,volume\n2025-01-01 00:00:00,1,2,0.5\n", 2},
		{"out of order", "2025-01-01 00:01:00,1,2,0.5,1,3\n2025-01-01 00:00:00,1,2,0.5,1,3\n", 2},
		{"empty", "timestamp,open,high,low,close,volume\n", 0},
		{"missing column", "timestamp,open,high,low,close\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, "bad.csv", tt.content)
			_, err := LoadCSV(p, "X", "1m")
			require.Error(t, err)
			assert.True(t, errors.Is(err, market.ErrData))

			var de *market.DataError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.row, de.Row)
			assert.Equal(t, p, de.Source)
		})
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), "X", "1m")
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrData))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	candles := []market.Candle{
		{Time: t0, Open: 1, High: 2, Low: 0.5, Close: 1.25, Volume: 100},
		{Time: t0.Add(time.Minute), Open: 1.25, High: 1.5, Low: 1, Close: 1.125, Volume: 50},
	}

	for _, name := range []string{"out.csv", "out.csv.xz"} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, WriteCSV(p, candles))

			_, err := os.Stat(p + ".part")
			assert.True(t, os.IsNotExist(err))

			cs, err := LoadCSV(p, "X", "1m")
			require.NoError(t, err)
			assert.Equal(t, candles, cs.Candles)
		})
	}
}
