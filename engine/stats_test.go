package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsWarmUpAndReady(t *testing.T) {
	t.Parallel()

	s := NewStats(2, 4, 3)

	snap := s.Update("AAPL", 100)
	assert.False(t, snap.SMAReady)
	assert.Equal(t, 1, snap.WindowLen)
	assert.Equal(t, 100.0, snap.EMAShort)

	s.Update("AAPL", 101)
	snap = s.Update("AAPL", 102)
	assert.True(t, snap.SMAReady)
	assert.InDelta(t, 101.0, snap.SMA, 1e-9)

	// Symbols warm up independently.
	snap = s.Update("MSFT", 300)
	assert.False(t, snap.SMAReady)
}

func TestStatsRestore(t *testing.T) {
	t.Parallel()

	s := NewStats(2, 4, 3)
	s.Restore(map[string][]float64{"AAPL": {100, 101, 102}})

	snap := s.Update("AAPL", 103)
	assert.True(t, snap.SMAReady)
	assert.InDelta(t, 102.0, snap.SMA, 1e-9)

	windows := s.Windows()
	assert.Equal(t, []float64{101, 102, 103}, windows["AAPL"])
}
