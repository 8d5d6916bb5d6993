package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func nopLog() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestTradeLogHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	tl := NewTradeLog(path, nopLog())

	legacy, err := tl.Migrate()
	assert.NoError(t, err)
	assert.Empty(t, legacy)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)

	r := csv.NewReader(strings.NewReader(string(data)))
	header, err := r.Read()
	assert.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "action", "trade_id", "symbol", "quantity", "entry_price", "price", "profit"}, header)
}

func TestTradeLogAppend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	tl := NewTradeLog(path, nopLog())
	tl.now = func() time.Time { return time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC) }

	assert.NoError(t, tl.AppendBuy("T1", "AAPL", 1.5, 100.25))
	assert.NoError(t, tl.AppendSell("T1", "AAPL", 1.5, 104.25, 6.0))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	r := csv.NewReader(strings.NewReader(string(data)))
	recs, err := r.ReadAll()
	assert.NoError(t, err)
	assert.Len(t, recs, 3)

	buy := recs[1]
	assert.Equal(t, "2026-03-02T10:30:00Z", buy[0])
	assert.Equal(t, "buy", buy[1])
	assert.Equal(t, "T1", buy[2])
	assert.Equal(t, "AAPL", buy[3])
	assert.Equal(t, "1.500000", buy[4])
	assert.Equal(t, "100.250000", buy[5])
	assert.Equal(t, "100.250000", buy[6])
	assert.Equal(t, "", buy[7])

	sell := recs[2]
	assert.Equal(t, "sell", sell[1])
	assert.Equal(t, "", sell[5])
	assert.Equal(t, "104.250000", sell[6])
	assert.Equal(t, "6.000000", sell[7])
}

func TestTradeLogMigrateLegacy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")
	legacyContent := "timestamp,action,symbol,quantity,price\n2025-01-02T10:00:00Z,buy,AAPL,1,100\n"
	assert.NoError(t, os.WriteFile(path, []byte(legacyContent), 0o644))

	tl := NewTradeLog(path, nopLog())
	tl.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	legacy, err := tl.Migrate()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trades.legacy_20260302_090000.csv"), legacy)

	// Legacy content is preserved byte for byte.
	moved, err := os.ReadFile(legacy)
	assert.NoError(t, err)
	assert.Equal(t, legacyContent, string(moved))

	// The original path now holds a fresh log with the current header.
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "trade_id"))

	rows, err := tl.Rows()
	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTradeLogMigrateCurrentHeaderIsNoop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	tl := NewTradeLog(path, nopLog())
	assert.NoError(t, tl.AppendBuy("T1", "MSFT", 2, 300))

	legacy, err := tl.Migrate()
	assert.NoError(t, err)
	assert.Empty(t, legacy)

	rows, err := tl.Rows()
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "T1", rows[0].TradeID)
}

func TestTradeLogRowsSkipsMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	tl := NewTradeLog(path, nopLog())
	assert.NoError(t, tl.AppendBuy("T1", "AAPL", 1, 100))

	fl, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	assert.NoError(t, err)
	_, err = fl.WriteString("not-a-timestamp,buy,T2,MSFT,1.000000,300.000000,300.000000,\nshort,row\n")
	assert.NoError(t, err)
	assert.NoError(t, fl.Close())

	assert.NoError(t, tl.AppendSell("T1", "AAPL", 1, 106, 6))

	rows, err := tl.Rows()
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "buy", rows[0].Action)
	assert.Equal(t, "sell", rows[1].Action)
	assert.True(t, rows[1].HasProfit)
	assert.InDelta(t, 6.0, rows[1].Profit, 1e-9)
}

func TestTradeLogBuysOn(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	tl := NewTradeLog(path, nopLog())

	ny, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	// 2026-03-02 23:30 UTC is still 2026-03-02 in New York.
	tl.now = func() time.Time { return time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC) }
	assert.NoError(t, tl.AppendBuy("T1", "AAPL", 1, 100))
	assert.NoError(t, tl.AppendBuy("T2", "AAPL", 1, 101))

	// 2026-03-03 01:00 UTC is 2026-03-02 20:00 in New York.
	tl.now = func() time.Time { return time.Date(2026, 3, 3, 1, 0, 0, 0, time.UTC) }
	assert.NoError(t, tl.AppendBuy("T3", "MSFT", 1, 300))
	assert.NoError(t, tl.AppendSell("T1", "AAPL", 1, 106, 6))

	// 2026-03-03 15:00 UTC is 2026-03-03 in New York.
	tl.now = func() time.Time { return time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC) }
	assert.NoError(t, tl.AppendBuy("T4", "GOOG", 1, 150))

	syms, err := tl.BuysOn("2026-03-02", ny)
	assert.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, syms)

	syms, err = tl.BuysOn("2026-03-03", ny)
	assert.NoError(t, err)
	assert.Equal(t, []string{"GOOG"}, syms)
}
