package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/xyproto/unzip"
	"go.uber.org/zap"

	"github.com/rustyeddy/smacross/market"
)

const DefaultVisionBase = "https://data.binance.vision/data/spot"

// Fetcher materializes a candle series for [start, end].
type Fetcher interface {
	Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.Candle, error)
}

// DownloadStats counts archive outcomes.
type DownloadStats struct {
	OK   int
	Miss int // 404
	Fail int
}

// VisionDownloader pulls daily (or monthly) kline archives from
// data.binance.vision, extracts them and merges the rows.
type VisionDownloader struct {
	BaseURL  string
	CacheDir string
	Client   *http.Client
	Workers  int
	Delay    time.Duration // polite delay per request
	Retries  uint64
	Monthly  bool
	Log      *zap.Logger
	Progress io.Writer // nil disables the progress bar

	retryWait time.Duration
	stats     DownloadStats
}

func NewVisionDownloader(cacheDir string, log *zap.Logger) *VisionDownloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &VisionDownloader{
		BaseURL:  DefaultVisionBase,
		CacheDir: cacheDir,
		Client:   &http.Client{Timeout: 45 * time.Second},
		Workers:  4,
		Delay:    500 * time.Millisecond,
		Retries:  3,
		Log:      log,
	}
}

// Stats returns the outcome counts of the last Fetch.
func (d *VisionDownloader) Stats() DownloadStats { return d.stats }

type archiveJob struct {
	period string // YYYY-MM-DD or YYYY-MM
	url    string
	zip    string
	dir    string
}

// VisionURL builds the archive URL for one period. symbol is normalized
// ("BTC/USDT" -> "BTCUSDT").
func VisionURL(base, symbol, timeframe, period string, monthly bool) string {
	sym := market.NormalizeSymbol(symbol)
	kind := "daily"
	if monthly {
		kind = "monthly"
	}
	return fmt.Sprintf("%s/%s/klines/%s/%s/%s-%s-%s.zip",
		strings.TrimRight(base, "/"), kind, sym, timeframe, sym, timeframe, period)
}

// periods lists the days (or months) covering [start, end], inclusive.
func periods(start, end time.Time, monthly bool) []string {
	start = start.UTC()
	end = end.UTC()
	var out []string
	if monthly {
		t := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		for !t.After(end) {
			out = append(out, t.Format("2006-01"))
			t = t.AddDate(0, 1, 0)
		}
		return out
	}
	t := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for !t.After(end) {
		out = append(out, t.Format("2006-01-02"))
		t = t.AddDate(0, 0, 1)
	}
	return out
}

// Fetch downloads every archive in range, using the cache when present,
// and returns the merged series. 404s are misses, not errors; other failures
// are retried with exponential backoff and then counted.
func (d *VisionDownloader) Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.Candle, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end %s is before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	sym := market.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, errors.New("symbol required")
	}

	var jobs []archiveJob
	for _, p := range periods(start, end, d.Monthly) {
		name := fmt.Sprintf("%s-%s-%s", sym, timeframe, p)
		dir := filepath.Join(d.CacheDir, sym, timeframe)
		jobs = append(jobs, archiveJob{
			period: p,
			url:    VisionURL(d.BaseURL, sym, timeframe, p, d.Monthly),
			zip:    filepath.Join(dir, name+".zip"),
			dir:    filepath.Join(dir, name),
		})
	}

	d.Log.Info("downloading klines",
		zap.String("symbol", sym),
		zap.String("timeframe", timeframe),
		zap.Int("archives", len(jobs)),
		zap.String("cache", d.CacheDir),
	)

	progress := d.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription(sym+" "+timeframe),
		progressbar.OptionShowCount(),
	)

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}

	jobCh := make(chan archiveJob)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		stats  DownloadStats
		chunks [][]market.Candle
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				candles, status, err := d.fetchArchive(ctx, j)

				mu.Lock()
				switch {
				case err != nil:
					stats.Fail++
					d.Log.Warn("archive failed", zap.String("url", j.url), zap.Error(err))
				case status == http.StatusNotFound:
					stats.Miss++
					d.Log.Warn("archive not found", zap.String("url", j.url))
				default:
					stats.OK++
					chunks = append(chunks, candles)
				}
				_ = bar.Add(1)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case jobCh <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobCh)
	wg.Wait()
	_ = bar.Finish()

	d.stats = stats
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.Log.Info("download done",
		zap.Int("ok", stats.OK),
		zap.Int("miss", stats.Miss),
		zap.Int("fail", stats.Fail),
	)

	merged := MergeCandles(chunks...)
	if len(merged) == 0 {
		return nil, fmt.Errorf("no klines downloaded for %s %s (ok=%d miss=%d fail=%d)",
			sym, timeframe, stats.OK, stats.Miss, stats.Fail)
	}

	// keep only the requested window; monthly archives overhang it
	lo := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	hi := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return clip(merged, lo, hi), nil
}

func (d *VisionDownloader) fetchArchive(ctx context.Context, j archiveJob) ([]market.Candle, int, error) {
	if err := sleepCtx(ctx, d.Delay); err != nil {
		return nil, 0, err
	}

	status := http.StatusOK
	op := func() error {
		var err error
		_, status, err = downloadIfMissing(ctx, d.client(), j.url, j.zip)
		if err != nil && status >= 400 && status < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	if d.retryWait > 0 {
		eb.InitialInterval = d.retryWait
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, d.Retries), ctx)); err != nil {
		return nil, status, err
	}
	if status == http.StatusNotFound {
		return nil, status, nil
	}

	csvPath, err := extractArchive(j.zip, j.dir)
	if err != nil {
		// drop the corrupt archive so the next Fetch downloads it again
		_ = os.Remove(j.zip)
		return nil, status, err
	}
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, status, err
	}
	defer f.Close()

	candles, err := ParseKlines(f, csvPath)
	return candles, status, err
}

func (d *VisionDownloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

// downloadIfMissing fetches url into dst via a .part file. A non-empty dst is
// reused. A 404 returns status 404 and no error.
func downloadIfMissing(ctx context.Context, client *http.Client, url, dst string) (downloaded bool, status int, err error) {
	if st, err := os.Stat(dst); err == nil && st.Size() > 0 {
		return false, http.StatusOK, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, 0, err
	}
	req.Header.Set("User-Agent", "smacross-downloader/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, http.StatusNotFound, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, resp.StatusCode, fmt.Errorf("http status %d", resp.StatusCode)
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return false, resp.StatusCode, err
	}
	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(tmp)
		return false, resp.StatusCode, copyErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return false, resp.StatusCode, closeErr
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return false, resp.StatusCode, err
	}
	return true, resp.StatusCode, nil
}

// extractArchive unpacks zipPath into dir (once) and returns the CSV inside.
func extractArchive(zipPath, dir string) (string, error) {
	if p, err := findCSV(dir); err == nil {
		return p, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := unzip.Extract(zipPath, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("unzip %s: %w", filepath.Base(zipPath), err)
	}
	return findCSV(dir)
}

func findCSV(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no csv in %s", dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ParseKlines reads Binance kline CSV rows (12 columns, open_time first).
// Only open_time and OHLCV are kept. A header row is skipped.
func ParseKlines(r io.Reader, source string) ([]market.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []market.Candle
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, market.NewDataError(source, row, err)
		}
		if row == 1 && len(rec) > 0 {
			if _, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64); err != nil {
				continue // header
			}
		}
		if len(rec) < 6 {
			return nil, market.NewDataError(source, row, fmt.Errorf("want at least 6 columns, got %d", len(rec)))
		}

		ms, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return nil, market.NewDataError(source, row, fmt.Errorf("bad open_time %q", rec[0]))
		}
		c := market.Candle{Time: epochTime(ms)}
		vals := [5]*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for k, dst := range vals {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[k+1]), 64)
			if err != nil {
				return nil, market.NewDataError(source, row, fmt.Errorf("bad %s %q", candleColumns[k+1], rec[k+1]))
			}
			*dst = v
		}
		if err := c.Validate(); err != nil {
			return nil, market.NewDataError(source, row, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// MergeCandles concatenates, sorts by time and drops duplicate timestamps
// (the first occurrence wins).
func MergeCandles(sets ...[]market.Candle) []market.Candle {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	all := make([]market.Candle, 0, n)
	for _, s := range sets {
		all = append(all, s...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })

	out := all[:0]
	for i, c := range all {
		if i > 0 && c.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func clip(candles []market.Candle, lo, hi time.Time) []market.Candle {
	out := candles[:0]
	for _, c := range candles {
		if c.Time.Before(lo) || !c.Time.Before(hi) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// DefaultOutputName is historical_data_{SYMBOL}_{TF}_{YYYYMMDD}_to_{YYYYMMDD}.csv.
func DefaultOutputName(symbol, timeframe string, start, end time.Time) string {
	return fmt.Sprintf("historical_data_%s_%s_%s_to_%s.csv",
		market.NormalizeSymbol(symbol), timeframe, start.Format("20060102"), end.Format("20060102"))
}

// FetchToCSV writes the series for [start, end] to out, unless out already
// exists, in which case it is reused. It returns whether a download happened.
func FetchToCSV(ctx context.Context, f Fetcher, out, symbol, timeframe string, start, end time.Time) (bool, error) {
	if st, err := os.Stat(out); err == nil && st.Size() > 0 {
		return false, nil
	}
	candles, err := f.Fetch(ctx, symbol, timeframe, start, end)
	if err != nil {
		return false, err
	}
	if err := WriteCSV(out, candles); err != nil {
		return false, err
	}
	return true, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
