package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummaryBody(t *testing.T) {
	t.Parallel()

	s := NewSummary()
	assert.True(t, s.Empty())
	assert.Equal(t, "No trades today.", s.Body())

	s.Add("[Bot A] BUY %.6f %s @ $%.2f", 1.5, "AAPL", 98.0)
	s.Add("[Bot A] SELL (target) %.6f %s @ $%.2f, P/L $%.2f", 1.5, "AAPL", 102.0, 6.0)
	s.AddTotals(12500.25, -3.10)

	body := s.Body()
	assert.Contains(t, body, "[Bot A] BUY 1.500000 AAPL @ $98.00")
	assert.Contains(t, body, "SELL (target)")
	assert.Contains(t, body, "EOD Equity: $12500.25")
	assert.Contains(t, body, "Unrealized P/L: $-3.10")
	assert.False(t, s.Empty())
}

func TestSummarySentFlagAndReset(t *testing.T) {
	t.Parallel()

	s := NewSummary()
	s.Add("line")
	assert.False(t, s.Sent())

	s.MarkSent()
	assert.True(t, s.Sent())

	s.Reset()
	assert.True(t, s.Empty())
	assert.False(t, s.Sent())
	assert.Equal(t, "No trades today.", s.Body())
}
