package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketsentinel/sentinel/broker"
)

func TestEngineFillsBuyAndSell(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := NewEngine(broker.Account{Cash: 10_000, Equity: 10_000})
	e.SetQuote("AAPL", 100, time.Now())

	_, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "AAPL", Side: broker.Buy, Qty: 2})
	assert.NoError(t, err)

	pos, err := e.GetPosition(ctx, "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, 2.0, pos.Qty)
	assert.Equal(t, 100.0, pos.AvgEntryPrice)

	acct, err := e.GetAccount(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 9_800.0, acct.Cash)

	e.SetQuote("AAPL", 110, time.Now())
	_, err = e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "AAPL", Side: broker.Sell, Qty: 2})
	assert.NoError(t, err)

	_, err = e.GetPosition(ctx, "AAPL")
	assert.True(t, broker.IsNotFound(err))

	acct, err = e.GetAccount(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 10_020.0, acct.Cash)

	assert.Len(t, e.Fills(), 2)
}

func TestEngineAveragesEntryPrice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := NewEngine(broker.Account{Cash: 10_000})

	e.SetQuote("AAPL", 100, time.Now())
	_, err := e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "AAPL", Side: broker.Buy, Qty: 1})
	assert.NoError(t, err)

	e.SetQuote("AAPL", 110, time.Now())
	_, err = e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "AAPL", Side: broker.Buy, Qty: 1})
	assert.NoError(t, err)

	pos, err := e.GetPosition(ctx, "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, 2.0, pos.Qty)
	assert.InDelta(t, 105.0, pos.AvgEntryPrice, 1e-9)
}

func TestEngineNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := NewEngine(broker.Account{})

	_, err := e.GetLatestPrice(ctx, "NOPE")
	assert.True(t, broker.IsNotFound(err))

	_, err = e.GetPosition(ctx, "NOPE")
	assert.True(t, broker.IsNotFound(err))

	_, err = e.SubmitOrder(ctx, broker.OrderRequest{Symbol: "NOPE", Side: broker.Sell, Qty: 1})
	assert.True(t, broker.IsNotFound(err))
}

func TestEngineFailNext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := NewEngine(broker.Account{})
	e.SetQuote("AAPL", 100, time.Now())

	boom := errors.New("boom")
	e.FailNext(boom)

	_, err := e.GetLatestPrice(ctx, "AAPL")
	assert.ErrorIs(t, err, boom)

	// One-shot: the next call succeeds.
	_, err = e.GetLatestPrice(ctx, "AAPL")
	assert.NoError(t, err)
}
