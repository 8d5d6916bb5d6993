package market

import (
	"math"
	"time"
)

// Bar represents one completed daily OHLC candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// TrueRange computes the true range of cur given the previous day's close:
// max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(cur, prev Bar) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}
