// Package alpaca is a thin REST client for the Alpaca trading API
// implementing broker.Broker. It does no retrying itself; callers wrap it
// with the retry package.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/marketsentinel/sentinel/broker"
	"github.com/marketsentinel/sentinel/market"
)

const (
	// PaperURL is the paper-trading environment.
	PaperURL = "https://paper-api.alpaca.markets"
	// LiveURL is the live trading environment.
	LiveURL = "https://api.alpaca.markets"
	// DataURL serves market data for both environments.
	DataURL = "https://data.alpaca.markets"
)

// Client talks to the Alpaca trading and market-data APIs.
type Client struct {
	baseURL    string
	dataURL    string
	key        string
	secret     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an Alpaca API client. ratePerMinute bounds outbound
// requests so a tight polling loop cannot trip the provider's limits.
func NewClient(key, secret, baseURL, dataURL string, ratePerMinute int) *Client {
	if baseURL == "" {
		baseURL = PaperURL
	}
	if dataURL == "" {
		dataURL = DataURL
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 200
	}
	return &Client{
		baseURL: baseURL,
		dataURL: dataURL,
		key:     key,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1),
	}
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.key)
	req.Header.Set("APCA-API-SECRET-KEY", c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyHTTPError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// classifyHTTPError maps provider errors onto the broker taxonomy: 404s
// and "does not exist"/"not found" messages are empty results, pattern
// day trading protection is a regulatory rejection, anything else is
// transient.
func classifyHTTPError(status int, body []byte) error {
	msg := strings.ToLower(string(body))
	switch {
	case strings.Contains(msg, "pattern day trading protection"):
		return &broker.RejectionError{Reason: strings.TrimSpace(string(body))}
	case status == http.StatusNotFound,
		strings.Contains(msg, "position does not exist"),
		strings.Contains(msg, "symbol not found"):
		return fmt.Errorf("alpaca: %w", broker.ErrNotFound)
	default:
		return fmt.Errorf("alpaca: status %d: %s", status, strings.TrimSpace(string(body)))
	}
}

type tradeResponse struct {
	Trade struct {
		Price float64 `json:"p"`
		Time  string  `json:"t"`
	} `json:"trade"`
}

type quoteResponse struct {
	Quote struct {
		BidPrice float64 `json:"bp"`
		BidSize  float64 `json:"bs"`
		AskPrice float64 `json:"ap"`
		AskSize  float64 `json:"as"`
		Time     string  `json:"t"`
	} `json:"quote"`
}

type apiBar struct {
	Time   string  `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

type barsResponse struct {
	Bars []apiBar `json:"bars"`
}

type latestBarResponse struct {
	Bar apiBar `json:"bar"`
}

// GetLatestPrice returns the most recent trade price, falling back to the
// latest minute bar close when no trade is available.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (market.Quote, error) {
	var tr tradeResponse
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/stocks/%s/trades/latest", c.dataURL, url.PathEscape(symbol)), nil, &tr)
	if err == nil && tr.Trade.Price > 0 {
		return market.Quote{
			Symbol: symbol,
			Price:  tr.Trade.Price,
			Time:   parseTime(tr.Trade.Time),
		}, nil
	}
	if err != nil && !broker.IsNotFound(err) {
		return market.Quote{}, err
	}

	var lb latestBarResponse
	if err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/stocks/%s/bars/latest", c.dataURL, url.PathEscape(symbol)), nil, &lb); err != nil {
		return market.Quote{}, err
	}
	if lb.Bar.Close <= 0 {
		return market.Quote{}, fmt.Errorf("alpaca: no price for %s: %w", symbol, broker.ErrNotFound)
	}
	return market.Quote{Symbol: symbol, Price: lb.Bar.Close, Time: parseTime(lb.Bar.Time)}, nil
}

// GetOrderBook returns the latest top-of-book quote with resting depth in
// USD.
func (c *Client) GetOrderBook(ctx context.Context, symbol string) (market.Book, error) {
	var qr quoteResponse
	if err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/stocks/%s/quotes/latest", c.dataURL, url.PathEscape(symbol)), nil, &qr); err != nil {
		return market.Book{}, err
	}
	q := qr.Quote
	return market.Book{
		Symbol:   symbol,
		Bid:      q.BidPrice,
		Ask:      q.AskPrice,
		DepthUSD: q.BidPrice*q.BidSize + q.AskPrice*q.AskSize,
		Time:     parseTime(q.Time),
	}, nil
}

// GetDailyBars returns up to n completed daily bars, oldest first.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, n int) ([]market.Bar, error) {
	q := url.Values{}
	q.Set("timeframe", "1Day")
	q.Set("limit", strconv.Itoa(n))

	var br barsResponse
	if err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.dataURL, url.PathEscape(symbol), q.Encode()), nil, &br); err != nil {
		return nil, err
	}

	bars := make([]market.Bar, 0, len(br.Bars))
	for _, b := range br.Bars {
		bars = append(bars, market.Bar{
			Time:   parseTime(b.Time),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return bars, nil
}

type apiPosition struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	UnrealizedPL  string `json:"unrealized_pl"`
}

func (p apiPosition) toBroker() broker.Position {
	qty, _ := strconv.ParseFloat(p.Qty, 64)
	entry, _ := strconv.ParseFloat(p.AvgEntryPrice, 64)
	upl, _ := strconv.ParseFloat(p.UnrealizedPL, 64)
	return broker.Position{Symbol: p.Symbol, Qty: qty, AvgEntryPrice: entry, UnrealizedPL: upl}
}

// GetPosition returns the open position for symbol; broker.ErrNotFound
// when there is none.
func (c *Client) GetPosition(ctx context.Context, symbol string) (broker.Position, error) {
	var p apiPosition
	if err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/positions/%s", c.baseURL, url.PathEscape(symbol)), nil, &p); err != nil {
		return broker.Position{}, err
	}
	return p.toBroker(), nil
}

// ListPositions returns all open positions.
func (c *Client) ListPositions(ctx context.Context) ([]broker.Position, error) {
	var ps []apiPosition
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/positions", nil, &ps); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.toBroker())
	}
	return out, nil
}

type apiAccount struct {
	Cash   string `json:"cash"`
	Equity string `json:"equity"`
}

// GetAccount returns cash and equity.
func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	var a apiAccount
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/account", nil, &a); err != nil {
		return broker.Account{}, err
	}
	cash, _ := strconv.ParseFloat(a.Cash, 64)
	equity, _ := strconv.ParseFloat(a.Equity, 64)
	return broker.Account{Cash: cash, Equity: equity}, nil
}

type apiClock struct {
	IsOpen   bool   `json:"is_open"`
	NextOpen string `json:"next_open"`
}

// GetClock returns the market clock.
func (c *Client) GetClock(ctx context.Context) (broker.Clock, error) {
	var cl apiClock
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/clock", nil, &cl); err != nil {
		return broker.Clock{}, err
	}
	return broker.Clock{IsOpen: cl.IsOpen, NextOpen: parseTime(cl.NextOpen)}, nil
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SubmitOrder submits a market order. Regulatory rejections surface as
// *broker.RejectionError so the caller skips the order without retrying.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	body := orderRequest{
		Symbol:      req.Symbol,
		Qty:         strconv.FormatFloat(req.Qty, 'f', -1, 64),
		Side:        string(req.Side),
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
	}
	var or orderResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/orders", body, &or); err != nil {
		return broker.OrderAck{}, err
	}
	return broker.OrderAck{
		OrderID: or.ID,
		Symbol:  req.Symbol,
		Side:    req.Side,
		Qty:     req.Qty,
		Status:  or.Status,
	}, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
