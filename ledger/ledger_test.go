package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/marketsentinel/sentinel/broker"
)

func nopLog() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("T%d", n)
	}
}

func TestLedgerOpenClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "positions.json")
	l := Load(path, nopLog())
	l.newID = seqIDs()

	tradeID, err := l.Open("AAPL", 1.5, 100.25)
	assert.NoError(t, err)
	assert.Equal(t, "T1", tradeID)
	assert.True(t, l.HasOpen("AAPL"))
	assert.Equal(t, 1, l.Len())

	closedID, profit, err := l.Close("AAPL", 1.5, 104.25)
	assert.NoError(t, err)
	assert.Equal(t, "T1", closedID)
	assert.InDelta(t, 6.0, profit, 1e-9)
	assert.False(t, l.HasOpen("AAPL"))
	assert.Zero(t, l.Len())
}

func TestLedgerCloseNoMatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "positions.json")
	l := Load(path, nopLog())

	_, _, err := l.Close("AAPL", 1, 100)
	assert.ErrorIs(t, err, ErrNoMatchingPosition)
}

func TestLedgerPersistsAcrossLoads(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "positions.json")
	l := Load(path, nopLog())
	l.newID = seqIDs()

	tradeID, err := l.Open("MSFT", 2, 300)
	assert.NoError(t, err)

	reloaded := Load(path, nopLog())
	gotID, pos, ok := reloaded.Find("MSFT")
	assert.True(t, ok)
	assert.Equal(t, tradeID, gotID)
	assert.Equal(t, 2.0, pos.Quantity)
	assert.Equal(t, 300.0, pos.EntryPrice)
}

func TestLedgerLoadSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "positions.json")
	content := `{
		"GOOD": {"symbol": "AAPL", "quantity": 1, "entry_price": 100, "open_time": "2026-03-02T10:00:00Z"},
		"BADTIME": {"symbol": "MSFT", "quantity": 1, "entry_price": 300, "open_time": "yesterday"},
		"BADQTY": {"symbol": "GOOG", "quantity": -1, "entry_price": 150, "open_time": "2026-03-02T10:00:00Z"}
	}`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l := Load(path, nopLog())
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.HasOpen("AAPL"))
	assert.False(t, l.HasOpen("MSFT"))
	assert.False(t, l.HasOpen("GOOG"))
}

func TestLedgerBootstrap(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "positions.json")
	l := Load(path, nopLog())
	l.newID = seqIDs()
	l.now = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }

	_, err := l.Open("AAPL", 1, 100)
	assert.NoError(t, err)

	external := []broker.Position{
		{Symbol: "AAPL", Qty: 1, AvgEntryPrice: 100}, // already tracked
		{Symbol: "MSFT", Qty: 2, AvgEntryPrice: 300},
		{Symbol: "GOOG", Qty: 0, AvgEntryPrice: 150}, // nothing held
	}
	adopted, err := l.Bootstrap(external)
	assert.NoError(t, err)
	assert.Len(t, adopted, 1)
	assert.Equal(t, "MSFT", adopted[0].Position.Symbol)
	assert.Equal(t, 2.0, adopted[0].Position.Quantity)
	assert.Equal(t, 2, l.Len())

	// Running again adopts nothing new.
	adopted, err = l.Bootstrap(external)
	assert.NoError(t, err)
	assert.Empty(t, adopted)
	assert.Equal(t, 2, l.Len())
}
