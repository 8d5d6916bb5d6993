package market

import "time"

// Quote is the latest observed price for a symbol.
type Quote struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Book is a top-of-book snapshot with an approximate resting depth in USD.
type Book struct {
	Symbol   string
	Bid      float64
	Ask      float64
	DepthUSD float64
	Time     time.Time
}

// Mid returns the bid/ask midpoint.
func (b Book) Mid() float64 {
	return (b.Bid + b.Ask) / 2
}

// Spread returns the bid/ask spread.
func (b Book) Spread() float64 {
	return b.Ask - b.Bid
}
