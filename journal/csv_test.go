package journal

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	runsPath := filepath.Join(dir, "runs.csv")

	j, err := NewCSV(tradesPath, runsPath)
	require.NoError(t, err)

	closeT := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	run := sampleRun("R1", closeT)
	run.RiskReward = math.Inf(1)
	require.NoError(t, Record(j, run, []TradeRecord{
		sampleTrade("R1", 1, closeT, 1.25),
		sampleTrade("R1", 2, closeT.Add(time.Minute), -0.5),
	}))
	require.NoError(t, j.Close())

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 3)
	assert.Equal(t, csvTradeHeader, trades[0])
	assert.Equal(t, "R1-0001", trades[1][0])
	assert.Equal(t, "2025-01-02T03:04:05Z", trades[1][10])
	assert.Equal(t, "1.250000", trades[1][11])
	assert.Equal(t, "-0.500000", trades[2][11])

	runs := readCSV(t, runsPath)
	require.Len(t, runs, 2)
	assert.Equal(t, csvRunHeader, runs[0])
	assert.Equal(t, "R1", runs[1][0])
	assert.Equal(t, "inf", runs[1][26])
}

func TestCSVJournalAppendsAcrossOpens(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	runsPath := filepath.Join(dir, "runs.csv")
	closeT := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, run := range []string{"R1", "R2"} {
		j, err := NewCSV(tradesPath, runsPath)
		require.NoError(t, err)
		require.NoError(t, Record(j, sampleRun(run, closeT), []TradeRecord{sampleTrade(run, 1, closeT, 1)}))
		require.NoError(t, j.Close())
	}

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 3)
	assert.Equal(t, csvTradeHeader, trades[0])
	assert.Equal(t, "R1-0001", trades[1][0])
	assert.Equal(t, "R2-0001", trades[2][0])

	runs := readCSV(t, runsPath)
	require.Len(t, runs, 3)
	assert.Equal(t, csvRunHeader, runs[0])
	assert.Equal(t, "R1", runs[1][0])
	assert.Equal(t, "R2", runs[2][0])
}

func TestCSVJournalBadPath(t *testing.T) {
	t.Parallel()
	_, err := NewCSV(filepath.Join(t.TempDir(), "missing", "t.csv"), "r.csv")
	assert.Error(t, err)
}
