package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/smacross/market"
	"github.com/rustyeddy/smacross/strategies"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, close float64) market.Candle {
	return market.Candle{
		Time:   t0.Add(time.Duration(i) * time.Minute),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1,
	}
}

func testConfig() Config {
	return Config{
		InitialBalance:    10000,
		PositionSizingPct: 0.01,
		StopLossPct:       0.003,
		TakeProfitPct:     0.005,
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	return e
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mod  func(c *Config)
	}{
		{"negative balance", func(c *Config) { c.InitialBalance = -1 }},
		{"negative base", func(c *Config) { c.InitialBase = -1 }},
		{"zero sizing", func(c *Config) { c.PositionSizingPct = 0 }},
		{"sizing above one", func(c *Config) { c.PositionSizingPct = 1.5 }},
		{"zero stop", func(c *Config) { c.StopLossPct = 0 }},
		{"zero take", func(c *Config) { c.TakeProfitPct = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mod(&cfg)
			_, err := NewEngine(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestLongTakeProfit(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalBuy))
	p, ok := e.OpenPosition()
	require.True(t, ok)
	assert.Equal(t, 1, p.ID)
	assert.Equal(t, Long, p.Side)
	assert.InDelta(t, 1.0, p.Amount, 1e-12)
	assert.InDelta(t, 99.7, p.StopLoss, 1e-9)
	assert.InDelta(t, 100.5, p.TakeProfit, 1e-9)

	bal := e.Balances()
	assert.InDelta(t, 9900, bal.Quote, 1e-9)
	assert.InDelta(t, 1, bal.Base, 1e-12)

	// below take, above stop: still open
	require.NoError(t, e.Step(bar(1, 100.2), strategies.SignalNone))
	assert.Equal(t, 1, e.OpenPositions())

	require.NoError(t, e.Step(bar(2, 101), strategies.SignalNone))
	assert.Equal(t, 0, e.OpenPositions())

	ledger := e.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, StatusClosedTP, ledger[0].Status)
	assert.InDelta(t, 1.0, ledger[0].Profit, 1e-9)
	assert.Equal(t, bar(2, 101).Time, ledger[0].ExitTime)

	bal = e.Balances()
	assert.InDelta(t, 10001, bal.Quote, 1e-9)
	assert.InDelta(t, 0, bal.Base, 1e-12)
}

func TestLongStopLoss(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalBuy))
	require.NoError(t, e.Step(bar(1, 99.5), strategies.SignalNone))

	ledger := e.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, StatusClosedSL, ledger[0].Status)
	assert.InDelta(t, -0.5, ledger[0].Profit, 1e-9)
	assert.InDelta(t, 9999.5, e.Balances().Quote, 1e-9)
}

func TestStopLossWinsTie(t *testing.T) {
	t.Parallel()

	long := &Position{Side: Long, EntryPrice: 100, StopLoss: 105, TakeProfit: 95, Status: StatusOpen}
	status, hit := checkExit(long, 100)
	require.True(t, hit)
	assert.Equal(t, StatusClosedSL, status)

	short := &Position{Side: Short, EntryPrice: 100, StopLoss: 95, TakeProfit: 105, Status: StatusOpen}
	status, hit = checkExit(short, 100)
	require.True(t, hit)
	assert.Equal(t, StatusClosedSL, status)
}

func TestShortTakeProfit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.InitialBase = 10
	e := newTestEngine(t, cfg)

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalSell))
	p, ok := e.OpenPosition()
	require.True(t, ok)
	assert.Equal(t, Short, p.Side)
	assert.InDelta(t, 0.1, p.Amount, 1e-12)
	assert.InDelta(t, 100.3, p.StopLoss, 1e-9)
	assert.InDelta(t, 99.5, p.TakeProfit, 1e-9)

	bal := e.Balances()
	assert.InDelta(t, 10010, bal.Quote, 1e-9)
	assert.InDelta(t, 9.9, bal.Base, 1e-12)

	require.NoError(t, e.Step(bar(1, 99), strategies.SignalNone))
	ledger := e.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, StatusClosedTP, ledger[0].Status)
	assert.InDelta(t, 0.1, ledger[0].Profit, 1e-9)

	bal = e.Balances()
	assert.InDelta(t, 10000.1, bal.Quote, 1e-9)
	assert.InDelta(t, 10, bal.Base, 1e-12)
}

func TestShortWithoutBaseIsSkipped(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())
	var skipped []strategies.Signal
	e.OnSkip = func(_ market.Candle, sig strategies.Signal, err error) {
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		skipped = append(skipped, sig)
	}

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalSell))
	assert.Equal(t, 0, e.OpenPositions())
	assert.Equal(t, 1, e.Skipped())
	assert.Equal(t, []strategies.Signal{strategies.SignalSell}, skipped)
	assert.Equal(t, Balances{Quote: 10000}, e.Balances())
}

func TestFullSizingBuyAlwaysOpens(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.InitialBalance = 9999.99
	cfg.PositionSizingPct = 1

	for i := 0; i < 2000; i++ {
		price := 100 + 0.37*float64(i)
		e := newTestEngine(t, cfg)
		require.NoError(t, e.Step(bar(0, price), strategies.SignalBuy))
		require.Equal(t, 0, e.Skipped(), "price %v", price)

		p, ok := e.OpenPosition()
		require.True(t, ok, "price %v", price)
		assert.InDelta(t, cfg.InitialBalance/price, p.Amount, 1e-9)
		assert.InDelta(t, 0, e.Balances().Quote, 1e-6)
	}
}

func TestBuyWithoutQuoteIsSkipped(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.InitialBalance = 0
	e := newTestEngine(t, cfg)

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalBuy))
	assert.Equal(t, 0, e.OpenPositions())
	assert.Equal(t, 1, e.Skipped())
}

func TestSignalsIgnoredWhilePositionOpen(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())

	signals := []strategies.Signal{
		strategies.SignalBuy, strategies.SignalBuy, strategies.SignalSell, strategies.SignalBuy,
	}
	for i, sig := range signals {
		require.NoError(t, e.Step(bar(i, 100), sig))
		assert.LessOrEqual(t, e.OpenPositions(), 1)
	}
	assert.Equal(t, 1, e.OpenPositions())
	assert.Empty(t, e.Ledger())
	assert.Equal(t, 0, e.Skipped())
}

func TestExitThenEntryOnSameCandle(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalBuy))
	require.NoError(t, e.Step(bar(1, 99), strategies.SignalBuy))

	ledger := e.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, StatusClosedSL, ledger[0].Status)

	p, ok := e.OpenPosition()
	require.True(t, ok)
	assert.Equal(t, 2, p.ID)
	assert.Equal(t, 99.0, p.EntryPrice)
}

func TestFinishForceCloses(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalBuy))
	require.NoError(t, e.Step(bar(1, 100.1), strategies.SignalNone))
	e.Finish()

	assert.Equal(t, 0, e.OpenPositions())
	ledger := e.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, StatusClosedEndOfTest, ledger[0].Status)
	assert.Equal(t, 100.1, ledger[0].ExitPrice)
	assert.InDelta(t, 0.1, ledger[0].Profit, 1e-9)

	// reconciliation: equity change equals realized profit
	bal := e.Balances()
	assert.InDelta(t, e.TotalProfit(), bal.Equity(100.1)-10000, 1e-9)

	err := e.Step(bar(2, 100), strategies.SignalNone)
	assert.Error(t, err)
}

func TestFinishWithoutPosition(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())
	e.Finish()
	assert.Empty(t, e.Ledger())
	assert.Equal(t, 0, e.Steps())
}

func TestStepRejectsBadCandles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())

	require.NoError(t, e.Step(bar(5, 100), strategies.SignalNone))

	err := e.Step(bar(4, 100), strategies.SignalNone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrData))

	bad := bar(6, 100)
	bad.Close = -1
	err = e.Step(bad, strategies.SignalNone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrData))

	// equal timestamps are allowed
	require.NoError(t, e.Step(bar(5, 100), strategies.SignalNone))
	assert.Equal(t, 2, e.Steps())
}

func TestMaxDrawdown(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.PositionSizingPct = 1
	cfg.StopLossPct = 0.5
	cfg.TakeProfitPct = 0.5
	e := newTestEngine(t, cfg)

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalBuy))
	require.NoError(t, e.Step(bar(1, 110), strategies.SignalNone))
	require.NoError(t, e.Step(bar(2, 88), strategies.SignalNone))
	require.NoError(t, e.Step(bar(3, 120), strategies.SignalNone))

	// peak 11000, trough 8800
	assert.InDelta(t, 20.0, e.MaxDrawdownPct(), 1e-9)
}

func TestEquityCurveRecordsCloses(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, testConfig())

	require.NoError(t, e.Step(bar(0, 100), strategies.SignalBuy))
	require.NoError(t, e.Step(bar(1, 101), strategies.SignalNone))
	e.Finish()

	curve := e.EquityCurve()
	require.Len(t, curve, 1)
	assert.Equal(t, 1, curve[0].PosID)
	assert.InDelta(t, 10001, curve[0].Equity, 1e-9)
}
