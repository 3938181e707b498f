package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/smacross/config"
	"github.com/rustyeddy/smacross/market"
	"github.com/rustyeddy/smacross/market/data"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download Binance klines to a candle CSV",
	Long: `Download fetches spot klines for [start, end] (whole UTC days) and writes
timestamp,open,high,low,close,volume rows. An existing output file is reused.

Sources:
  - vision: daily zip archives from data.binance.vision, cached on disk
  - api:    the public REST klines endpoint, paged 1000 rows at a time

Example:
  smacross download --symbol BTC/USDT --tf 1m --start 2025-01-01 --end 2025-01-07`,
	RunE: runDownload,
}

var (
	dlSymbol   string
	dlTF       string
	dlStart    string
	dlEnd      string
	dlSource   string
	dlOut      string
	dlCacheDir string
	dlWorkers  int
	dlDelay    time.Duration
	dlMonthly  bool
)

func init() {
	rootCmd.AddCommand(downloadCmd)

	f := downloadCmd.Flags()
	f.StringVar(&dlSymbol, "symbol", "BTC/USDT", "trading pair (BTC/USDT or BTCUSDT)")
	f.StringVar(&dlTF, "tf", "1m", "kline interval")
	f.StringVar(&dlStart, "start", "", "first day, YYYY-MM-DD (required)")
	f.StringVar(&dlEnd, "end", "", "last day, YYYY-MM-DD (required)")
	f.StringVar(&dlSource, "source", "vision", "data source (vision, api)")
	f.StringVarP(&dlOut, "out", "o", "", "output CSV (.xz compresses); default historical_data_{SYMBOL}_{TF}_{START}_to_{END}.csv")
	f.StringVar(&dlCacheDir, "cache", "./data/cache", "archive cache directory (vision)")
	f.IntVar(&dlWorkers, "workers", 4, "parallel archive downloads (vision)")
	f.DurationVar(&dlDelay, "delay", 500*time.Millisecond, "polite delay between requests")
	f.BoolVar(&dlMonthly, "monthly", false, "use monthly archives instead of daily (vision)")

	downloadCmd.MarkFlagRequired("start")
	downloadCmd.MarkFlagRequired("end")
}

func applyDownloadFlags(cmd *cobra.Command, dc *config.DataConfig) error {
	set := cmd.Flags().Changed
	if set("symbol") {
		dc.Symbol = dlSymbol
	}
	if set("tf") {
		dc.Timeframe = dlTF
	}
	if set("source") {
		dc.Source = dlSource
	}
	if set("cache") {
		dc.CacheDir = dlCacheDir
	}
	if set("workers") {
		dc.Workers = dlWorkers
	}
	if set("delay") {
		dc.Delay = dlDelay.String()
	}
	_, err := market.ParseInstrument(dc.Symbol)
	return err
}

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dc := cfg.Data
	if err := applyDownloadFlags(cmd, &dc); err != nil {
		return err
	}
	delay, err := dc.ParseDelay()
	if err != nil {
		return fmt.Errorf("delay: %w", err)
	}

	start, err := parseDay(dlStart)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseDay(dlEnd)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end %s is before start %s", dlEnd, dlStart)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var fetcher data.Fetcher
	var vision *data.VisionDownloader
	switch dc.Source {
	case "vision", "":
		vision = data.NewVisionDownloader(dc.CacheDir, log)
		if dc.Workers > 0 {
			vision.Workers = dc.Workers
		}
		vision.Delay = delay
		vision.Monthly = dlMonthly
		vision.Progress = cmd.ErrOrStderr()
		fetcher = vision
	case "api":
		fetcher = data.NewBinanceAPI("", delay, log)
	default:
		return fmt.Errorf("unknown source %q (supported: vision, api)", dc.Source)
	}

	out := dlOut
	if out == "" {
		out = data.DefaultOutputName(dc.Symbol, dc.Timeframe, start, end)
	}

	downloaded, err := data.FetchToCSV(cmd.Context(), fetcher, out, dc.Symbol, dc.Timeframe, start, end)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	w := cmd.OutOrStdout()
	if !downloaded {
		fmt.Fprintf(w, "Using existing file: %s\n", out)
		return nil
	}
	if vision != nil {
		st := vision.Stats()
		log.Info("archives",
			zap.Int("ok", st.OK),
			zap.Int("missing", st.Miss),
			zap.Int("failed", st.Fail),
		)
	}
	fmt.Fprintf(w, "✓ Wrote %s\n", out)
	return nil
}
