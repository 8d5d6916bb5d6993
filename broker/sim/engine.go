// Package sim is an in-memory broker used by engine tests and the demo
// command: scripted prices and bars, instant fills, simple account
// bookkeeping.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marketsentinel/sentinel/broker"
	"github.com/marketsentinel/sentinel/market"
)

type Engine struct {
	mu        sync.Mutex
	acct      broker.Account
	quotes    map[string]market.Quote
	books     map[string]market.Book
	bars      map[string][]market.Bar
	positions map[string]broker.Position
	clock     broker.Clock
	fills     []broker.OrderRequest
	nextErr   error
	nextID    int
}

// NewEngine creates a sim broker with the given starting account.
func NewEngine(acct broker.Account) *Engine {
	return &Engine{
		acct:      acct,
		quotes:    make(map[string]market.Quote),
		books:     make(map[string]market.Book),
		bars:      make(map[string][]market.Bar),
		positions: make(map[string]broker.Position),
		clock:     broker.Clock{IsOpen: true},
	}
}

// SetQuote scripts the latest price for a symbol.
func (e *Engine) SetQuote(sym string, price float64, t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotes[sym] = market.Quote{Symbol: sym, Price: price, Time: t}
}

// SetBook scripts the top-of-book for a symbol.
func (e *Engine) SetBook(b market.Book) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.books[b.Symbol] = b
}

// SetBars scripts the daily bars for a symbol.
func (e *Engine) SetBars(sym string, bars []market.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bars[sym] = bars
}

// SetClock scripts the market clock.
func (e *Engine) SetClock(c broker.Clock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = c
}

// FailNext makes the next call return err once. Used to exercise retry
// and circuit-breaker paths.
func (e *Engine) FailNext(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextErr = err
}

// Fills returns the submitted orders in execution order.
func (e *Engine) Fills() []broker.OrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]broker.OrderRequest, len(e.fills))
	copy(out, e.fills)
	return out
}

func (e *Engine) takeErr() error {
	err := e.nextErr
	e.nextErr = nil
	return err
}

func (e *Engine) GetLatestPrice(ctx context.Context, sym string) (market.Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeErr(); err != nil {
		return market.Quote{}, err
	}
	q, ok := e.quotes[sym]
	if !ok {
		return market.Quote{}, fmt.Errorf("sim: no quote for %s: %w", sym, broker.ErrNotFound)
	}
	return q, nil
}

func (e *Engine) GetOrderBook(ctx context.Context, sym string) (market.Book, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeErr(); err != nil {
		return market.Book{}, err
	}
	b, ok := e.books[sym]
	if !ok {
		return market.Book{}, fmt.Errorf("sim: no book for %s: %w", sym, broker.ErrNotFound)
	}
	return b, nil
}

func (e *Engine) GetDailyBars(ctx context.Context, sym string, n int) ([]market.Bar, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeErr(); err != nil {
		return nil, err
	}
	bars := e.bars[sym]
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]market.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

func (e *Engine) GetPosition(ctx context.Context, sym string) (broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeErr(); err != nil {
		return broker.Position{}, err
	}
	p, ok := e.positions[sym]
	if !ok {
		return broker.Position{}, fmt.Errorf("sim: position does not exist: %w", broker.ErrNotFound)
	}
	return p, nil
}

func (e *Engine) ListPositions(ctx context.Context) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeErr(); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	return out, nil
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeErr(); err != nil {
		return broker.Account{}, err
	}
	return e.acct, nil
}

func (e *Engine) GetClock(ctx context.Context) (broker.Clock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeErr(); err != nil {
		return broker.Clock{}, err
	}
	return e.clock, nil
}

// SubmitOrder fills immediately at the scripted quote price.
func (e *Engine) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.takeErr(); err != nil {
		return broker.OrderAck{}, err
	}

	q, ok := e.quotes[req.Symbol]
	if !ok {
		return broker.OrderAck{}, fmt.Errorf("sim: no quote for %s: %w", req.Symbol, broker.ErrNotFound)
	}

	switch req.Side {
	case broker.Buy:
		pos := e.positions[req.Symbol]
		total := pos.Qty*pos.AvgEntryPrice + req.Qty*q.Price
		pos.Symbol = req.Symbol
		pos.Qty += req.Qty
		pos.AvgEntryPrice = total / pos.Qty
		e.positions[req.Symbol] = pos
		e.acct.Cash -= req.Qty * q.Price
	case broker.Sell:
		pos, ok := e.positions[req.Symbol]
		if !ok || pos.Qty < req.Qty {
			return broker.OrderAck{}, fmt.Errorf("sim: position does not exist: %w", broker.ErrNotFound)
		}
		pos.Qty -= req.Qty
		if pos.Qty == 0 {
			delete(e.positions, req.Symbol)
		} else {
			e.positions[req.Symbol] = pos
		}
		e.acct.Cash += req.Qty * q.Price
	default:
		return broker.OrderAck{}, fmt.Errorf("sim: unknown side %q", req.Side)
	}

	e.fills = append(e.fills, req)
	e.nextID++
	return broker.OrderAck{
		OrderID: fmt.Sprintf("SIM-%d", e.nextID),
		Symbol:  req.Symbol,
		Side:    req.Side,
		Qty:     req.Qty,
		Status:  "filled",
	}, nil
}
