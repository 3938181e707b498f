package data

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/smacross/market"
)

func day(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

// klineZip builds an archive holding n one-minute klines starting at start.
// Timestamps are in microseconds, as in archives from 2025 on.
func klineZip(t *testing.T, name string, start time.Time, n int, price float64) []byte {
	t.Helper()
	var csvBuf strings.Builder
	for i := 0; i < n; i++ {
		ot := start.Add(time.Duration(i) * time.Minute)
		ct := ot.Add(time.Minute - time.Microsecond)
		p := price + float64(i)
		fmt.Fprintf(&csvBuf, "%d,%g,%g,%g,%g,10,%d,1000,5,4,400,0\n",
			ot.UnixMicro(), p, p+1, p-1, p+0.5, ct.UnixMicro())
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(csvBuf.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestDownloader(t *testing.T, base string) *VisionDownloader {
	t.Helper()
	d := NewVisionDownloader(t.TempDir(), nil)
	d.BaseURL = base
	d.Delay = 0
	d.Workers = 2
	d.retryWait = time.Millisecond
	return d
}

func TestVisionURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"https://data.binance.vision/data/spot/daily/klines/BTCUSDT/1m/BTCUSDT-1m-2025-01-01.zip",
		VisionURL(DefaultVisionBase, "BTC/USDT", "1m", "2025-01-01", false))
	assert.Equal(t,
		"https://data.binance.vision/data/spot/monthly/klines/ETHUSDT/1h/ETHUSDT-1h-2024-12.zip",
		VisionURL(DefaultVisionBase+"/", "eth-usdt", "1h", "2024-12", true))
}

func TestPeriods(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"2025-01-30", "2025-01-31", "2025-02-01"},
		periods(time.Date(2025, 1, 30, 12, 0, 0, 0, time.UTC), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), false))
	assert.Equal(t, []string{"2024-12", "2025-01"},
		periods(time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), day(3), true))
}

func TestVisionFetch(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch {
		case strings.HasSuffix(r.URL.Path, "/BTCUSDT-1m-2025-01-01.zip"):
			_, _ = w.Write(klineZip(t, "BTCUSDT-1m-2025-01-01.csv", day(1), 3, 100))
		case strings.HasSuffix(r.URL.Path, "/BTCUSDT-1m-2025-01-03.zip"):
			_, _ = w.Write(klineZip(t, "BTCUSDT-1m-2025-01-03.csv", day(3), 2, 200))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv.URL)
	candles, err := d.Fetch(context.Background(), "BTC/USDT", "1m", day(1), day(3))
	require.NoError(t, err)

	require.Len(t, candles, 5)
	assert.Equal(t, day(1), candles[0].Time)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, day(3).Add(time.Minute), candles[4].Time)
	assert.NoError(t, market.ValidateSeries(candles))

	assert.Equal(t, DownloadStats{OK: 2, Miss: 1}, d.Stats())

	// second run is served from the cache
	before := atomic.LoadInt32(&hits)
	again, err := d.Fetch(context.Background(), "BTCUSDT", "1m", day(1), day(3))
	require.NoError(t, err)
	assert.Equal(t, candles, again)
	assert.Equal(t, before+1, atomic.LoadInt32(&hits), "only the 404 day is requested again")
}

func TestVisionFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(klineZip(t, "ETHUSDT-1m-2025-01-02.csv", day(2), 4, 50))
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv.URL)
	candles, err := d.Fetch(context.Background(), "ETHUSDT", "1m", day(2), day(2))
	require.NoError(t, err)
	assert.Len(t, candles, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestVisionFetchDropsCorruptArchive(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte("not a zip archive"))
			return
		}
		_, _ = w.Write(klineZip(t, "BTCUSDT-1m-2025-01-02.csv", day(2), 4, 50))
	}))
	defer srv.Close()

	d := newTestDownloader(t, srv.URL)
	cached := filepath.Join(d.CacheDir, "BTCUSDT", "1m", "BTCUSDT-1m-2025-01-02.zip")

	_, err := d.Fetch(context.Background(), "BTCUSDT", "1m", day(2), day(2))
	require.Error(t, err)
	assert.Equal(t, DownloadStats{Fail: 1}, d.Stats())
	assert.NoFileExists(t, cached)

	candles, err := d.Fetch(context.Background(), "BTCUSDT", "1m", day(2), day(2))
	require.NoError(t, err)
	assert.Len(t, candles, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.FileExists(t, cached)
}

func TestVisionFetchNothingFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := newTestDownloader(t, srv.URL)
	_, err := d.Fetch(context.Background(), "BTCUSDT", "1m", day(1), day(2))
	require.Error(t, err)
	assert.Equal(t, DownloadStats{Miss: 2}, d.Stats())
}

func TestParseKlines(t *testing.T) {
	t.Parallel()

	in := "open_time,open,high,low,close,volume,close_time,quote_volume,count,taker_buy_volume,taker_buy_quote_volume,ignore\n" +
		"1704067200000,42000.1,42100,41900,42050.5,12.5,1704067259999,0,0,0,0,0\n"
	candles, err := ParseKlines(strings.NewReader(in), "k.csv")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), candles[0].Time)
	assert.Equal(t, 42050.5, candles[0].Close)

	_, err = ParseKlines(strings.NewReader("1704067200000,1,2\n"), "k.csv")
	assert.ErrorIs(t, err, market.ErrData)
}

func TestMergeCandles(t *testing.T) {
	t.Parallel()

	a := []market.Candle{{Time: day(2), Close: 2}, {Time: day(1), Close: 1}}
	b := []market.Candle{{Time: day(2), Close: 99}, {Time: day(3), Close: 3}}

	got := MergeCandles(a, b)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{got[0].Close, got[1].Close, got[2].Close})
}

type stubFetcher struct {
	calls   int
	candles []market.Candle
}

func (s *stubFetcher) Fetch(ctx context.Context, symbol, tf string, start, end time.Time) ([]market.Candle, error) {
	s.calls++
	return s.candles, nil
}

func TestFetchToCSVReusesExistingFile(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), DefaultOutputName("BTC/USDT", "1m", day(1), day(2)))
	assert.Equal(t, "historical_data_BTCUSDT_1m_20250101_to_20250102.csv", filepath.Base(out))

	f := &stubFetcher{candles: []market.Candle{{Time: day(1), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}}
	downloaded, err := FetchToCSV(context.Background(), f, out, "BTCUSDT", "1m", day(1), day(2))
	require.NoError(t, err)
	assert.True(t, downloaded)

	downloaded, err = FetchToCSV(context.Background(), f, out, "BTCUSDT", "1m", day(1), day(2))
	require.NoError(t, err)
	assert.False(t, downloaded)
	assert.Equal(t, 1, f.calls)

	_, err = os.Stat(out)
	assert.NoError(t, err)
}
