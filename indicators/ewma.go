package indicators

import "fmt"

// EWMA is a streaming exponential moving average. The first observed
// sample seeds the average directly; every later sample applies
// ema = alpha*price + (1-alpha)*ema with alpha = 2/(period+1).
type EWMA struct {
	period int
	alpha  float64
	value  float64
	seeded bool
}

// NewEWMA creates an EWMA with the given period.
func NewEWMA(period int) *EWMA {
	return &EWMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (e *EWMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *EWMA) Reset() {
	e.value = 0
	e.seeded = false
}

// Update folds one price sample into the average and returns the new value.
func (e *EWMA) Update(price float64) float64 {
	if !e.seeded {
		e.value = price
		e.seeded = true
		return e.value
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
	return e.value
}

// Seeded reports whether at least one sample has been observed.
func (e *EWMA) Seeded() bool { return e.seeded }

func (e *EWMA) Value() float64 { return e.value }
