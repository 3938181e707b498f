package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/rustyeddy/smacross/market"
)

// PandasLayout is the timestamp layout written by pandas' to_csv, and the one
// WriteCSV uses.
const PandasLayout = "2006-01-02 15:04:05"

var candleColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	PandasLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC3339, pandas style "YYYY-MM-DD HH:MM:SS" (UTC) and
// integer epochs. Integer epochs are read as seconds, milliseconds or
// microseconds depending on magnitude.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epochTime(n), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}

func epochTime(n int64) time.Time {
	switch {
	case n > 1e14: // microseconds (Binance archives from 2025 on)
		return time.UnixMicro(n).UTC()
	case n > 1e11:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}

// CSVCandleFeed reads candle CSV rows:
//
//	timestamp,open,high,low,close,volume
//
// A header row is optional; when present its column names select the fields,
// so extra columns are tolerated. Blank lines are skipped. Files ending in
// ".xz" are decompressed on the fly.
type CSVCandleFeed struct {
	path string
	f    *os.File
	r    *csv.Reader

	row      int
	sawFirst bool
	width    int
	idx      [6]int
}

func NewCSVCandleFeed(path string) (*CSVCandleFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, market.NewDataError(path, 0, err)
	}

	var src io.Reader = bufio.NewReader(f)
	if isXZ(path) {
		xr, err := xz.NewReader(src)
		if err != nil {
			_ = f.Close()
			return nil, market.NewDataError(path, 0, fmt.Errorf("xz: %w", err))
		}
		src = xr
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	return &CSVCandleFeed{path: path, f: f, r: r, idx: [6]int{0, 1, 2, 3, 4, 5}}, nil
}

func (f *CSVCandleFeed) Close() error {
	if f.f != nil {
		err := f.f.Close()
		f.f = nil
		return err
	}
	return nil
}

func (f *CSVCandleFeed) Next() (market.Candle, bool, error) {
	for {
		rec, err := f.r.Read()
		if err == io.EOF {
			return market.Candle{}, false, nil
		}
		f.row++
		if err != nil {
			return market.Candle{}, false, market.NewDataError(f.path, f.row, err)
		}
		if isBlank(rec) {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			f.width = len(rec)
			if isHeader(rec) {
				if err := f.mapHeader(rec); err != nil {
					return market.Candle{}, false, market.NewDataError(f.path, f.row, err)
				}
				continue
			}
			if f.width < len(candleColumns) {
				return market.Candle{}, false, market.NewDataError(f.path, f.row,
					fmt.Errorf("want %d columns, got %d", len(candleColumns), f.width))
			}
		}

		if len(rec) != f.width {
			return market.Candle{}, false, market.NewDataError(f.path, f.row,
				fmt.Errorf("want %d columns, got %d", f.width, len(rec)))
		}

		c, err := f.parseRow(rec)
		if err != nil {
			return market.Candle{}, false, market.NewDataError(f.path, f.row, err)
		}
		return c, true, nil
	}
}

func (f *CSVCandleFeed) mapHeader(rec []string) error {
	found := [6]bool{}
	for i, name := range rec {
		col := strings.ToLower(strings.TrimSpace(name))
		switch col {
		case "time", "date", "datetime", "open_time":
			col = "timestamp"
		case "vol":
			col = "volume"
		}
		for j, want := range candleColumns {
			if col == want && !found[j] {
				f.idx[j] = i
				found[j] = true
			}
		}
	}
	for j, ok := range found {
		if !ok {
			return fmt.Errorf("header is missing column %q", candleColumns[j])
		}
	}
	return nil
}

func (f *CSVCandleFeed) parseRow(rec []string) (market.Candle, error) {
	var c market.Candle

	t, err := ParseTime(rec[f.idx[0]])
	if err != nil {
		return c, err
	}
	c.Time = t

	vals := [5]*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for k, dst := range vals {
		raw := strings.TrimSpace(rec[f.idx[k+1]])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c, fmt.Errorf("bad %s %q", candleColumns[k+1], raw)
		}
		*dst = v
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// LoadCSV reads a whole candle file and validates it as a series.
func LoadCSV(path, symbol, timeframe string) (*market.CandleSet, error) {
	feed, err := NewCSVCandleFeed(path)
	if err != nil {
		return nil, err
	}
	defer feed.Close()

	var candles []market.Candle
	for {
		c, ok, err := feed.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil, market.NewDataError(path, 0, errors.New("no candles"))
	}
	return market.NewCandleSet(symbol, timeframe, path, candles)
}

// WriteCSV writes candles with a header, via a temp file renamed into place.
// A ".xz" suffix compresses the output.
func WriteCSV(path string, candles []market.Candle) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	writeErr := writeCandles(out, candles, isXZ(path))
	closeErr := out.Close()
	if writeErr != nil {
		_ = os.Remove(tmp)
		return writeErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}
	return os.Rename(tmp, path)
}

func writeCandles(out io.Writer, candles []market.Candle, compress bool) error {
	var (
		dst = out
		xw  *xz.Writer
		err error
	)
	if compress {
		xw, err = xz.NewWriter(out)
		if err != nil {
			return err
		}
		dst = xw
	}

	bw := bufio.NewWriter(dst)
	if err := EncodeCSV(bw, candles); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if xw != nil {
		return xw.Close()
	}
	return nil
}

// EncodeCSV writes the header and one row per candle to w.
func EncodeCSV(w io.Writer, candles []market.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(candleColumns); err != nil {
		return err
	}
	row := make([]string, len(candleColumns))
	for _, c := range candles {
		row[0] = c.Time.UTC().Format(PandasLayout)
		row[1] = strconv.FormatFloat(c.Open, 'f', -1, 64)
		row[2] = strconv.FormatFloat(c.High, 'f', -1, 64)
		row[3] = strconv.FormatFloat(c.Low, 'f', -1, 64)
		row[4] = strconv.FormatFloat(c.Close, 'f', -1, 64)
		row[5] = strconv.FormatFloat(c.Volume, 'f', -1, 64)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isXZ(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xz")
}

func isBlank(rec []string) bool {
	for _, s := range rec {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// isHeader reports whether the first field is not a timestamp.
func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := ParseTime(rec[0])
	return err != nil
}
