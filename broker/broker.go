package broker

import (
	"context"

	"github.com/marketsentinel/sentinel/market"
)

// Broker is the external trading collaborator. Implementations must map
// provider faults onto the package error taxonomy (ErrNotFound for empty
// results, RejectionError for regulatory rejections) so callers can
// classify without knowing the provider.
type Broker interface {
	GetLatestPrice(ctx context.Context, symbol string) (market.Quote, error)
	GetOrderBook(ctx context.Context, symbol string) (market.Book, error)
	GetDailyBars(ctx context.Context, symbol string, n int) ([]market.Bar, error)
	GetPosition(ctx context.Context, symbol string) (Position, error)
	ListPositions(ctx context.Context) ([]Position, error)
	GetAccount(ctx context.Context) (Account, error)
	GetClock(ctx context.Context) (Clock, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
}

type Account struct {
	Cash   float64
	Equity float64
}

type Position struct {
	Symbol        string
	Qty           float64
	AvgEntryPrice float64
	UnrealizedPL  float64
}

type Clock struct {
	IsOpen   bool
	NextOpen market.Timestamp
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderRequest struct {
	Symbol      string
	Side        Side
	Qty         float64
	Type        string // "market"
	TimeInForce string // "day"
}

type OrderAck struct {
	OrderID string
	Symbol  string
	Side    Side
	Qty     float64
	Status  string
}
