package indicators

import "fmt"

// SMA is a streaming simple moving average over a bounded FIFO window.
// It is not Ready until the window holds a full period of samples;
// during warm-up the value must not drive trading decisions.
type SMA struct {
	period int
	window []float64
}

// NewSMA creates an SMA with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		window: make([]float64, 0, period),
	}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA(%d)", s.period)
}

func (s *SMA) Reset() {
	s.window = s.window[:0]
}

// Update appends one sample, evicting the oldest when the window is full.
func (s *SMA) Update(price float64) {
	s.window = append(s.window, price)
	if len(s.window) > s.period {
		s.window = s.window[1:]
	}
}

// Restore replaces the window with previously persisted samples, keeping
// only the most recent period of them.
func (s *SMA) Restore(samples []float64) {
	if len(samples) > s.period {
		samples = samples[len(samples)-s.period:]
	}
	s.window = append(s.window[:0], samples...)
}

// Ready reports whether a full period of samples has accumulated.
func (s *SMA) Ready() bool {
	return len(s.window) >= s.period
}

// Len returns the current window length.
func (s *SMA) Len() int { return len(s.window) }

// Samples returns a copy of the window, oldest first.
func (s *SMA) Samples() []float64 {
	out := make([]float64, len(s.window))
	copy(out, s.window)
	return out
}

// Value returns the arithmetic mean of the window and whether it is ready.
func (s *SMA) Value() (float64, bool) {
	if !s.Ready() {
		return 0, false
	}
	sum := 0.0
	for _, p := range s.window {
		sum += p
	}
	return sum / float64(len(s.window)), true
}
