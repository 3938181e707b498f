package journal

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"text/template"
	"time"
)

// BacktestRun mirrors the backtest_runs table.
type BacktestRun struct {
	RunID     string
	Created   time.Time
	Strategy  string
	Symbol    string
	Timeframe string
	Dataset   string
	Config    []byte // yaml of the effective config

	// Strategy and sizing
	ShortWindow       int
	LongWindow        int
	StopLossPct       float64 // 0.003 (0.3%)
	TakeProfitPct     float64
	PositionSizingPct float64

	Start   time.Time
	End     time.Time
	Candles int

	// Results
	Trades    int
	Wins      int
	Losses    int
	Breakeven int
	Skipped   int

	StartBalance float64
	EndEquity    float64

	// Derived / computed in Go
	NetPL        float64
	ReturnPct    float64
	WinRate      float64 // percent
	AvgWin       float64
	AvgLoss      float64
	RiskReward   float64 // +Inf when there are no losses
	ProfitFactor float64 // +Inf when there are no losses
	MaxDDPct     float64

	OrgPath string
	Notes   []string
}

func fmtRatio(x float64) string {
	if math.IsInf(x, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", x)
}

var backtestOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"ratio":  fmtRatio,
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// RenderOrg writes the run as an Org-mode entry.
func (v *BacktestRun) RenderOrg(w io.Writer) error {
	return backtestOrg.Execute(w, v)
}

// WriteBacktestOrg renders the run to v.OrgPath.
func (v *BacktestRun) WriteBacktestOrg() error {
	if v.OrgPath == "" {
		return fmt.Errorf("backtest run %s: no org path", v.RunID)
	}
	buf := new(bytes.Buffer)
	if err := v.RenderOrg(buf); err != nil {
		return err
	}
	return os.WriteFile(v.OrgPath, buf.Bytes(), 0o644)
}

const BacktestOrgTemplate = `
* BACKTEST: {{.Strategy}} {{.Symbol}} {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:TIMEFRAME:   {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:CANDLES:     {{.Candles}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_EQUITY:  {{printf "%.2f" .EndEquity}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:RISK_REWARD: {{ratio .RiskReward}}
:PROFIT_FAC:  {{ratio .ProfitFactor}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
| Parameter         | Value |
|-------------------+-------|
| Short window      | {{.ShortWindow}} |
| Long window       | {{.LongWindow}} |
| Stop loss %       | {{printf "%.2f" (mul100 .StopLossPct)}} |
| Take profit %     | {{printf "%.2f" (mul100 .TakeProfitPct)}} |
| Position size %   | {{printf "%.2f" (mul100 .PositionSizingPct)}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Avg Win / Loss:   *{{printf "%.2f" .AvgWin}} / {{printf "%.2f" .AvgLoss}}*
- Risk/Reward:      *{{ratio .RiskReward}}*
- Profit Factor:    *{{ratio .ProfitFactor}}*

** Trade Distribution
| Outcome   | Count |
|-----------+-------|
| Wins      | {{.Wins}} |
| Losses    | {{.Losses}} |
| Breakeven | {{.Breakeven}} |
| Total     | {{.Trades}} |
| Skipped   | {{.Skipped}} |

{{- if .Config }}

** Config
#+begin_src yaml
{{printf "%s" .Config}}#+end_src
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
