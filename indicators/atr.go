package indicators

import "github.com/marketsentinel/sentinel/market"

// ATR computes the average true range over the last period true ranges,
// which requires period+1 completed daily bars. It returns 0 when the
// input is insufficient: zero ATR means "no volatility signal", and the
// stop distance degenerates to its notional fallback.
func ATR(bars []market.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}

	bars = bars[len(bars)-(period+1):]
	sum := 0.0
	for i := 1; i < len(bars); i++ {
		sum += market.TrueRange(bars[i], bars[i-1])
	}
	return sum / float64(period)
}
